// Package erplink enriches ledger rows with contract metadata from ERP
// database dumps.
//
// The dump directory holds one folder per ERP database, each containing a
// tab-separated contract.csv whose third column is an HTML fragment with
// attachment links. The linker extracts links into the ERP upload area,
// matches them against ledger rows by path suffix, and records the display
// filename, contract title, ordinal, and source database on the row. Dumps
// arrive in whatever encoding the export host used, so UTF-8, GBK, and
// UTF-16 are all accepted.
package erplink
