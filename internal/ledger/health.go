package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
)

// Stats returns document counts grouped by lifecycle status.
func (s *Store) Stats(ctx context.Context) (*HealthSummary, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		"SELECT file_status, COUNT(*) FROM document_status_table GROUP BY file_status")
	if err != nil {
		return nil, fmt.Errorf("aggregate document stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	summary := &HealthSummary{}
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan stats row: %w", err)
		}
		summary.Total += count
		switch Status(status) {
		case StatusDiscover:
			summary.Discover = count
		case StatusPending:
			summary.Pending = count
		case StatusProcessing:
			summary.Processing = count
		case StatusCompleted:
			summary.Completed = count
		case StatusFailed:
			summary.Failed = count
		case StatusDeleted:
			summary.Deleted = count
		}
	}
	return summary, rows.Err()
}

var requiredColumns = []string{
	"id", "filename", "filepath", "file_status",
	"created_at", "last_modified_time", "process_at", "finish_at",
	"failed_msg", "file_size", "file_hash", "file_store_path",
	"knowledge_id", "database_name", "contract_title", "contract_ord",
}

// CheckHealth inspects the ledger database at dbPath without modifying it,
// reporting whether the file, table, expected columns and row data are intact.
func CheckHealth(ctx context.Context, dbPath string) *DatabaseHealth {
	ctx = ensureContext(ctx)
	health := &DatabaseHealth{DBPath: dbPath}

	info, err := os.Stat(dbPath)
	if err != nil || info.IsDir() {
		health.Error = "database file does not exist"
		return health
	}
	health.DatabaseExists = true

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		health.Error = fmt.Sprintf("open database: %v", err)
		return health
	}
	defer func() { _ = db.Close() }()

	if err := db.PingContext(ctx); err != nil {
		health.Error = fmt.Sprintf("database not readable: %v", err)
		return health
	}
	health.DatabaseReadable = true

	var tableName string
	err = db.QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'document_status_table'").Scan(&tableName)
	if err != nil {
		health.Error = "document_status_table missing"
		return health
	}
	health.TableExists = true

	present, err := tableColumns(ctx, db)
	if err != nil {
		health.Error = err.Error()
		return health
	}
	for _, col := range requiredColumns {
		if _, ok := present[col]; ok {
			health.ColumnsPresent = append(health.ColumnsPresent, col)
		} else {
			health.MissingColumns = append(health.MissingColumns, col)
		}
	}

	var integrity string
	if err := db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&integrity); err == nil && integrity == "ok" {
		health.IntegrityCheck = true
	}

	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM document_status_table").Scan(&health.TotalDocuments); err != nil {
		health.Error = fmt.Sprintf("count documents: %v", err)
	}

	return health
}

func tableColumns(ctx context.Context, db *sql.DB) (map[string]struct{}, error) {
	rows, err := db.QueryContext(ctx, "PRAGMA table_info(document_status_table)")
	if err != nil {
		return nil, fmt.Errorf("inspect columns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns := make(map[string]struct{})
	for rows.Next() {
		var (
			cid          int
			name         string
			columnType   string
			notNull      int
			defaultValue sql.NullString
			primaryKey   int
		)
		if err := rows.Scan(&cid, &name, &columnType, &notNull, &defaultValue, &primaryKey); err != nil {
			return nil, fmt.Errorf("scan column info: %w", err)
		}
		columns[name] = struct{}{}
	}
	return columns, rows.Err()
}
