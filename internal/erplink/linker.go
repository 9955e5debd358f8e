package erplink

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"docbridge/internal/config"
	"docbridge/internal/ledger"
	"docbridge/internal/logging"
)

// ScriptName identifies linker runs in the audit trail.
const ScriptName = "link"

// contractFileName is the bcp export each database folder is expected to hold.
const contractFileName = "contract.csv"

// uploadPathMarker distinguishes contract attachments stored under the ERP
// web root from links into other subsystems.
const uploadPathMarker = "/SYSA/edit/upimages/"

var (
	anchorPattern = regexp.MustCompile(`(?is)<a\s+([^>]+)>(.*?)</a>`)
	hrefPattern   = regexp.MustCompile(`(?i)href="([^"]+)"`)
	tagPattern    = regexp.MustCompile(`<[^>]+>`)
)

// contractLink is one attachment reference extracted from a contract row.
type contractLink struct {
	href     string
	filename string
}

// Linker enriches ledger rows with contract metadata parsed from ERP
// database dump folders.
type Linker struct {
	cfg    *config.Config
	store  *ledger.Store
	logger *slog.Logger
}

// NewLinker constructs the contract linking stage.
func NewLinker(cfg *config.Config, store *ledger.Store, logger *slog.Logger) *Linker {
	return &Linker{
		cfg:    cfg,
		store:  store,
		logger: logging.NewComponentLogger(logger, "erplink"),
	}
}

// Name identifies the stage to the scheduler.
func (l *Linker) Name() string { return ScriptName }

// Run walks every database dump folder once and appends an audit row.
// Unreadable or undecodable dumps are logged and skipped; only a missing
// dump directory or a ledger error fails the run.
func (l *Linker) Run(ctx context.Context) error {
	logger := logging.WithContext(ctx, l.logger)
	start := time.Now()
	run := ledger.Run{ScriptName: ScriptName, Status: ledger.RunSuccess}

	err := l.link(ctx, logger, &run)
	if err != nil {
		run.Status = ledger.RunFail
		run.FailedReason = err.Error()
	}
	run.Duration = time.Since(start)

	if recordErr := l.store.RecordRun(context.WithoutCancel(ctx), run); recordErr != nil {
		logger.Error("record audit row", logging.Error(recordErr))
		if err == nil {
			err = recordErr
		}
	}

	if err != nil {
		logger.Error("link pass failed", logging.Error(err), logging.Duration("elapsed", run.Duration))
		return err
	}
	logger.Info("link pass complete",
		logging.Int("rows", run.ProcessCount),
		logging.Int("linked", run.UpdateCount),
		logging.Duration("elapsed", run.Duration),
	)
	return nil
}

func (l *Linker) link(ctx context.Context, logger *slog.Logger, run *ledger.Run) error {
	if l.cfg.ERP.DumpDir == "" {
		return errors.New("erp dump_dir is not configured")
	}
	entries, err := os.ReadDir(l.cfg.ERP.DumpDir)
	if err != nil {
		return fmt.Errorf("enumerate dump dir: %w", err)
	}
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !entry.IsDir() {
			continue
		}
		if err := l.linkDatabase(ctx, logger, run, entry.Name()); err != nil {
			return err
		}
	}
	return nil
}

// linkDatabase processes one database folder. The folder name doubles as the
// ERP database name recorded on matched rows.
func (l *Linker) linkDatabase(ctx context.Context, logger *slog.Logger, run *ledger.Run, databaseName string) error {
	dumpPath := filepath.Join(l.cfg.ERP.DumpDir, databaseName, contractFileName)
	dbLogger := logger.With(logging.Args(
		logging.String("database", databaseName),
		logging.String(logging.FieldPath, dumpPath),
	)...)

	raw, err := os.ReadFile(dumpPath)
	if errors.Is(err, fs.ErrNotExist) {
		dbLogger.Warn("no contract dump in folder")
		return nil
	}
	if err != nil {
		dbLogger.Warn("read contract dump", logging.Error(err))
		return nil
	}
	text, err := decodeText(raw)
	if err != nil {
		dbLogger.Warn("decode contract dump", logging.Error(err))
		return nil
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		// bcp emits ord, title, then the HTML fragment; the fragment may
		// itself contain tabs, so only the first two are split off.
		parts := strings.SplitN(line, "\t", 3)
		if len(parts) < 3 {
			continue
		}
		ord, err := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
		if err != nil {
			dbLogger.Warn("skip contract row with invalid ordinal",
				logging.String("value", strings.TrimSpace(parts[0])))
			continue
		}
		title := strings.TrimSpace(parts[1])
		run.ProcessCount++
		for _, link := range parseContent(parts[2]) {
			if err := l.apply(ctx, dbLogger, run, databaseName, link, title, ord); err != nil {
				return err
			}
		}
	}
	return nil
}

// apply matches one extracted link against the ledger and records the
// contract metadata on the first document whose path ends with the link
// target. A document already carrying the display name is left alone.
func (l *Linker) apply(ctx context.Context, logger *slog.Logger, run *ledger.Run, databaseName string, link contractLink, title string, ord int64) error {
	physical := path.Base(strings.ReplaceAll(link.href, "\\", "/"))
	if physical == "" || physical == "." || physical == "/" {
		return nil
	}
	candidates, err := l.store.FindByPathSuffix(ctx, physical)
	if err != nil {
		return err
	}

	want := strings.ToLower(strings.TrimPrefix(strings.ReplaceAll(link.href, "\\", "/"), "/"))
	for _, doc := range candidates {
		normalized := strings.ToLower(strings.ReplaceAll(doc.Filepath, "\\", "/"))
		if !strings.HasSuffix(normalized, want) {
			continue
		}
		if doc.Filename == link.filename {
			return nil
		}
		if err := l.store.SetContractInfo(ctx, doc.ID, link.filename, databaseName, title, ord); err != nil {
			return err
		}
		run.UpdateCount++
		logger.Info("linked contract metadata",
			logging.Int64(logging.FieldDocID, doc.ID),
			logging.String("filename", link.filename),
			logging.String("title", title),
			logging.Int64("ord", ord),
		)
		return nil
	}
	return nil
}

// parseContent extracts attachment links from one contract HTML fragment.
// Links served through WebSource.ashx point at tender blobs with no physical
// file under the ERP web root, so only upimages links are returned.
func parseContent(content string) []contractLink {
	var links []contractLink
	for _, match := range anchorPattern.FindAllStringSubmatch(content, -1) {
		attrs, inner := match[1], match[2]
		hrefMatch := hrefPattern.FindStringSubmatch(attrs)
		if hrefMatch == nil {
			continue
		}
		href := hrefMatch[1]
		if !strings.Contains(href, uploadPathMarker) {
			continue
		}
		name := strings.TrimSpace(tagPattern.ReplaceAllString(inner, ""))
		if name == "" {
			continue
		}
		links = append(links, contractLink{href: href, filename: name})
	}
	return links
}
