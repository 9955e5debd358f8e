package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"
)

const documentColumns = `id, filename, filepath, file_status, created_at, last_modified_time,
	process_at, finish_at, failed_msg, file_size, file_hash, file_store_path,
	knowledge_id, database_name, contract_title, contract_ord`

const refreshDocumentSQL = `
UPDATE document_status_table
SET filename = ?, file_status = ?, created_at = ?, last_modified_time = ?, file_size = ?,
    process_at = NULL, finish_at = NULL, failed_msg = NULL,
    file_hash = NULL, file_store_path = NULL, knowledge_id = NULL
WHERE id = ? AND file_status != ?`

// UpsertDiscovered registers a filesystem observation for path. New paths are
// inserted in discover status. Known paths whose size or mtime differ are
// reset to discover with their submission state cleared, unless the record is
// currently processing. Records in deleted status are restored as if newly
// discovered.
func (s *Store) UpsertDiscovered(ctx context.Context, path string, size int64, modified time.Time) (UpsertOutcome, error) {
	ctx = ensureContext(ctx)

	existing, err := s.GetByPath(ctx, path)
	if err != nil {
		return OutcomeUnchanged, err
	}

	filename := filepath.Base(path)
	now := time.Now().UTC().Format(time.RFC3339Nano)
	mtime := unixSeconds(modified)

	if existing == nil {
		res, insertErr := s.execWithRetry(ctx, `
INSERT INTO document_status_table (filename, filepath, file_status, created_at, last_modified_time, file_size)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(filepath) DO NOTHING`,
			filename, path, string(StatusDiscover), now, mtime, size)
		if insertErr != nil {
			return OutcomeUnchanged, fmt.Errorf("insert document: %w", insertErr)
		}
		affected, affErr := res.RowsAffected()
		if affErr != nil {
			return OutcomeUnchanged, fmt.Errorf("insert document: %w", affErr)
		}
		if affected > 0 {
			return OutcomeInserted, nil
		}
		// Lost an insert race; reload and treat as a known path.
		existing, err = s.GetByPath(ctx, path)
		if err != nil {
			return OutcomeUnchanged, err
		}
		if existing == nil {
			return OutcomeDeferred, nil
		}
	}

	outcome := OutcomeUpdated
	if existing.Status == StatusDeleted {
		outcome = OutcomeInserted
	} else {
		if !existing.MetadataChanged(size, modified) {
			return OutcomeUnchanged, nil
		}
		if existing.Status == StatusProcessing {
			return OutcomeDeferred, nil
		}
	}

	res, err := s.execWithRetry(ctx, refreshDocumentSQL,
		filename, string(StatusDiscover), now, mtime, size,
		existing.ID, string(StatusProcessing))
	if err != nil {
		return OutcomeUnchanged, fmt.Errorf("refresh document: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return OutcomeUnchanged, fmt.Errorf("refresh document: %w", err)
	}
	if affected == 0 {
		// Another writer moved the row to processing between read and update.
		return OutcomeDeferred, nil
	}
	return outcome, nil
}

// MarkDeleted records that the file behind path vanished from disk. The first
// transition stamps finish_at; repeated calls are no-ops.
func (s *Store) MarkDeleted(ctx context.Context, path string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	return s.execWithoutResultRetry(ctx, `
UPDATE document_status_table
SET file_status = ?, finish_at = ?
WHERE filepath = ? AND file_status != ?`,
		string(StatusDeleted), now, path, string(StatusDeleted))
}

// TransitionOnSubmit records a successful upload handoff: the external
// identifier, content hash, storage location and submission time, clearing any
// stale failure message.
func (s *Store) TransitionOnSubmit(ctx context.Context, id int64, status Status, knowledgeID, fileHash, storePath string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	return s.execWithoutResultRetry(ctx, `
UPDATE document_status_table
SET file_status = ?, knowledge_id = ?, file_hash = ?, file_store_path = ?, process_at = ?, failed_msg = NULL
WHERE id = ?`,
		string(status), nullableString(knowledgeID), nullableString(fileHash), nullableString(storePath), now, id)
}

// MarkFailed flags a document as failed with the given reason. The external
// identifier is left in place for diagnostics.
func (s *Store) MarkFailed(ctx context.Context, id int64, reason string) error {
	return s.execWithoutResultRetry(ctx, `
UPDATE document_status_table
SET file_status = ?, failed_msg = ?
WHERE id = ?`,
		string(StatusFailed), nullableString(reason), id)
}

// Finalize moves a document into a terminal state and stamps finish_at.
// A completed outcome clears failed_msg; a failed outcome records the reason.
func (s *Store) Finalize(ctx context.Context, id int64, status Status, reason string) error {
	if status != StatusCompleted && status != StatusFailed {
		return fmt.Errorf("finalize requires a terminal status, got %q", status)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	return s.execWithoutResultRetry(ctx, `
UPDATE document_status_table
SET file_status = ?, finish_at = ?, failed_msg = ?
WHERE id = ?`,
		string(status), now, nullableString(reason), id)
}

// UpdateStatus sets the lifecycle status without touching any other column.
func (s *Store) UpdateStatus(ctx context.Context, id int64, status Status) error {
	return s.execWithoutResultRetry(ctx,
		"UPDATE document_status_table SET file_status = ? WHERE id = ?",
		string(status), id)
}

// ResetForRetry returns failed documents to discover status so the next
// submission run picks them up again. With no ids it resets every failed
// document. Returns the number of documents reset.
func (s *Store) ResetForRetry(ctx context.Context, ids ...int64) (int64, error) {
	ctx = ensureContext(ctx)
	now := time.Now().UTC().Format(time.RFC3339Nano)
	query := `
UPDATE document_status_table
SET file_status = ?, created_at = ?, failed_msg = NULL,
    knowledge_id = NULL, file_hash = NULL, file_store_path = NULL,
    process_at = NULL, finish_at = NULL
WHERE file_status = ?`
	args := []any{string(StatusDiscover), now, string(StatusFailed)}
	if len(ids) > 0 {
		query += fmt.Sprintf(" AND id IN (%s)", makePlaceholders(len(ids)))
		for _, id := range ids {
			args = append(args, id)
		}
	}
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("reset failed documents: %w", err)
	}
	return res.RowsAffected()
}

// SetContractInfo attaches ERP contract metadata to a document and renames it
// after the contract entry.
func (s *Store) SetContractInfo(ctx context.Context, id int64, filename, databaseName, title string, ord int64) error {
	return s.execWithoutResultRetry(ctx, `
UPDATE document_status_table
SET filename = ?, database_name = ?, contract_title = ?, contract_ord = ?
WHERE id = ?`,
		filename, nullableString(databaseName), nullableString(title), ord, id)
}

// GetByID fetches a single document. Returns nil when no row matches.
func (s *Store) GetByID(ctx context.Context, id int64) (*Document, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM document_status_table WHERE id = ?", documentColumns), id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return doc, err
}

// GetByPath fetches the document tracking path, including deleted records.
// Returns nil when the path was never registered.
func (s *Store) GetByPath(ctx context.Context, path string) (*Document, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM document_status_table WHERE filepath = ?", documentColumns), path)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return doc, err
}

// ListByStatus returns up to limit documents in the given status, oldest
// first. A limit of zero or less returns all matches.
func (s *Store) ListByStatus(ctx context.Context, status Status, limit int) ([]*Document, error) {
	return s.ListByStatuses(ctx, limit, status)
}

// ListByStatuses returns up to limit documents across the given statuses in
// insertion order.
func (s *Store) ListByStatuses(ctx context.Context, limit int, statuses ...Status) ([]*Document, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	args := make([]any, 0, len(statuses)+1)
	for _, status := range statuses {
		args = append(args, string(status))
	}
	query := fmt.Sprintf("SELECT %s FROM document_status_table WHERE file_status IN (%s) ORDER BY id",
		documentColumns, makePlaceholders(len(statuses)))
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return s.queryDocuments(ctx, query, args...)
}

// SnapshotActive returns every non-deleted document keyed by filepath, used
// by discovery to diff the ledger against the filesystem.
func (s *Store) SnapshotActive(ctx context.Context) (map[string]*Document, error) {
	docs, err := s.queryDocuments(ctx,
		fmt.Sprintf("SELECT %s FROM document_status_table WHERE file_status != ? ORDER BY id", documentColumns),
		string(StatusDeleted))
	if err != nil {
		return nil, err
	}
	snapshot := make(map[string]*Document, len(docs))
	for _, doc := range docs {
		snapshot[doc.Filepath] = doc
	}
	return snapshot, nil
}

// FindByPathSuffix returns documents whose filepath ends with suffix, used to
// match ERP-relative paths against absolute ledger paths.
func (s *Store) FindByPathSuffix(ctx context.Context, suffix string) ([]*Document, error) {
	if suffix == "" {
		return nil, nil
	}
	pattern := "%" + escapeLikePattern(suffix)
	query := fmt.Sprintf(`SELECT %s FROM document_status_table WHERE filepath LIKE ? ESCAPE '\' ORDER BY id`, documentColumns)
	return s.queryDocuments(ctx, query, pattern)
}

// RecentFailures returns the most recently failed documents, newest first.
func (s *Store) RecentFailures(ctx context.Context, limit int) ([]*Document, error) {
	if limit <= 0 {
		limit = 10
	}
	query := fmt.Sprintf("SELECT %s FROM document_status_table WHERE file_status = ? ORDER BY id DESC LIMIT ?", documentColumns)
	return s.queryDocuments(ctx, query, string(StatusFailed), limit)
}

func (s *Store) queryDocuments(ctx context.Context, query string, args ...any) ([]*Document, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var docs []*Document
	for rows.Next() {
		doc, scanErr := scanDocument(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func scanDocument(scanner interface{ Scan(dest ...any) error }) (*Document, error) {
	var (
		doc          Document
		status       string
		createdAt    sql.NullString
		lastModified sql.NullFloat64
		processAt    sql.NullString
		finishAt     sql.NullString
		failedMsg    sql.NullString
		fileSize     sql.NullInt64
		fileHash     sql.NullString
		storePath    sql.NullString
		knowledgeID  sql.NullString
		databaseName sql.NullString
		title        sql.NullString
		ord          sql.NullInt64
	)
	if err := scanner.Scan(
		&doc.ID, &doc.Filename, &doc.Filepath, &status,
		&createdAt, &lastModified, &processAt, &finishAt,
		&failedMsg, &fileSize, &fileHash, &storePath,
		&knowledgeID, &databaseName, &title, &ord,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}

	doc.Status = Status(status)
	if createdAt.Valid {
		if t, err := parseTimeString(createdAt.String); err == nil {
			doc.CreatedAt = t
		}
	}
	doc.LastModifiedTime = lastModified.Float64
	if processAt.Valid {
		if t, err := parseTimeString(processAt.String); err == nil {
			doc.ProcessAt = &t
		}
	}
	if finishAt.Valid {
		if t, err := parseTimeString(finishAt.String); err == nil {
			doc.FinishAt = &t
		}
	}
	doc.FailedMsg = failedMsg.String
	doc.FileSize = fileSize.Int64
	doc.FileHash = fileHash.String
	doc.FileStorePath = storePath.String
	doc.KnowledgeID = knowledgeID.String
	doc.DatabaseName = databaseName.String
	doc.ContractTitle = title.String
	doc.ContractOrd = ord.Int64
	return &doc, nil
}
