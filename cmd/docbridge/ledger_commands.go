package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"docbridge/internal/config"
	"docbridge/internal/ingest"
	"docbridge/internal/ledger"
)

func newLedgerCommand(ctx *commandContext) *cobra.Command {
	ledgerCmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect and manage tracked documents",
	}

	ledgerCmd.AddCommand(newLedgerListCommand(ctx))
	ledgerCmd.AddCommand(newLedgerRetryCommand(ctx))

	return ledgerCmd
}

func newLedgerListCommand(ctx *commandContext) *cobra.Command {
	var statusFlags []string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tracked documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses := make([]ledger.Status, 0, len(statusFlags))
			for _, raw := range statusFlags {
				status, ok := ledger.ParseStatus(raw)
				if !ok {
					return fmt.Errorf("unknown status %q", raw)
				}
				statuses = append(statuses, status)
			}
			if len(statuses) == 0 {
				statuses = ledger.AllStatuses()
			}

			return ctx.withStore(func(cfg *config.Config, store *ledger.Store) error {
				docs, err := store.ListByStatuses(cmd.Context(), limit, statuses...)
				if err != nil {
					return err
				}
				if len(docs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No documents tracked")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "File", "Status", "Knowledge", "Created", "Note"},
					buildDocumentRows(docs),
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&statusFlags, "status", "s", nil, "Filter by document status (repeatable)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum rows to show (0 shows all)")
	return cmd
}

func buildDocumentRows(docs []*ledger.Document) [][]string {
	rows := make([][]string, 0, len(docs))
	for _, doc := range docs {
		note := doc.FailedMsg
		if note == "" && doc.ContractTitle != "" {
			note = doc.ContractTitle
		}
		rows = append(rows, []string{
			formatID(doc.ID),
			truncate(doc.Filename, 40),
			string(doc.Status),
			doc.KnowledgeID,
			formatTimestamp(doc.CreatedAt),
			truncate(note, 40),
		})
	}
	return rows
}

func newLedgerRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [documentID...]",
		Short: "Reset failed documents for resubmission",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := strconv.ParseInt(arg, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid document id %q", arg)
				}
				ids = append(ids, id)
			}

			return ctx.withStore(func(cfg *config.Config, store *ledger.Store) error {
				return retryFailedDocuments(cmd.Context(), cmd.OutOrStdout(), cfg, store, ids)
			})
		},
	}
}

// retryFailedDocuments returns failed documents to discover status. Documents
// that already hold a knowledge id get their remote record deleted first so
// resubmission cannot strand an orphan upstream; a failed delete leaves the
// document untouched for a later attempt.
func retryFailedDocuments(ctx context.Context, out io.Writer, cfg *config.Config, store *ledger.Store, ids []int64) error {
	deleter := ingest.NewClient(cfg)

	var candidates []*ledger.Document
	if len(ids) == 0 {
		docs, err := store.ListByStatus(ctx, ledger.StatusFailed, 0)
		if err != nil {
			return err
		}
		candidates = docs
	} else {
		for _, id := range ids {
			doc, err := store.GetByID(ctx, id)
			if err != nil {
				return err
			}
			if doc == nil {
				fmt.Fprintf(out, "Document %d not found\n", id)
				continue
			}
			if doc.Status != ledger.StatusFailed {
				fmt.Fprintf(out, "Document %d is not in failed state\n", id)
				continue
			}
			candidates = append(candidates, doc)
		}
	}

	if len(candidates) == 0 {
		fmt.Fprintln(out, "No failed documents to retry")
		return nil
	}

	resettable := make([]int64, 0, len(candidates))
	for _, doc := range candidates {
		if doc.KnowledgeID != "" {
			if err := deleter.Delete(ctx, doc.KnowledgeID); err != nil {
				fmt.Fprintf(out, "Document %d: remote delete failed: %v\n", doc.ID, err)
				continue
			}
		}
		resettable = append(resettable, doc.ID)
	}

	if len(resettable) == 0 {
		fmt.Fprintln(out, "No documents reset")
		return nil
	}

	reset, err := store.ResetForRetry(ctx, resettable...)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Reset %d failed documents\n", reset)
	return nil
}
