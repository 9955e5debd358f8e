package ledger

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a tracked document.
type Status string

const (
	StatusDiscover   Status = "discover"
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusDeleted    Status = "deleted"
)

var allStatuses = []Status{
	StatusDiscover,
	StatusPending,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
	StatusDeleted,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var terminalStatuses = map[Status]struct{}{
	StatusCompleted: {},
	StatusFailed:    {},
	StatusDeleted:   {},
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether no further automated transition leaves this status.
func (s Status) IsTerminal() bool {
	_, ok := terminalStatuses[s]
	return ok
}

// UpsertOutcome describes what UpsertDiscovered did with a sighting.
type UpsertOutcome int

const (
	// OutcomeUnchanged means the stored metadata already matched the sighting.
	OutcomeUnchanged UpsertOutcome = iota
	// OutcomeInserted means a new discover row was created, or a deleted row
	// was resurrected for a reappearing path.
	OutcomeInserted
	// OutcomeUpdated means an existing row was reset to discover because its
	// metadata changed.
	OutcomeUpdated
	// OutcomeDeferred means the row is processing and the change was left for
	// a later run.
	OutcomeDeferred
)

func (o UpsertOutcome) String() string {
	switch o {
	case OutcomeUnchanged:
		return "unchanged"
	case OutcomeInserted:
		return "inserted"
	case OutcomeUpdated:
		return "updated"
	case OutcomeDeferred:
		return "deferred"
	default:
		return "unknown"
	}
}

// Document represents one tracked file persisted in the ledger.
type Document struct {
	ID               int64
	Filename         string
	Filepath         string
	Status           Status
	CreatedAt        time.Time
	LastModifiedTime float64
	ProcessAt        *time.Time
	FinishAt         *time.Time
	FailedMsg        string
	FileSize         int64
	FileHash         string
	FileStorePath    string
	KnowledgeID      string
	DatabaseName     string
	ContractTitle    string
	ContractOrd      int64
}

// ModifiedAt converts the stored mtime seconds into a time for display.
func (d *Document) ModifiedAt() time.Time {
	return time.Unix(0, int64(d.LastModifiedTime*float64(time.Second))).UTC()
}

// MetadataChanged reports whether a fresh filesystem observation differs from
// the stored size or mtime.
func (d *Document) MetadataChanged(size int64, modified time.Time) bool {
	return d.FileSize != size || d.LastModifiedTime != unixSeconds(modified)
}

// RunStatus is the outcome recorded for one stage execution.
type RunStatus string

const (
	RunSuccess RunStatus = "success"
	RunFail    RunStatus = "fail"
)

// Run captures one execution of one pipeline stage.
type Run struct {
	ID           int64
	ScriptName   string
	Duration     time.Duration
	ProcessCount int
	InsertCount  int
	UpdateCount  int
	DeleteCount  int
	Timestamp    time.Time
	Status       RunStatus
	FailedReason string
}

// HealthSummary describes aggregated document counts per lifecycle state.
type HealthSummary struct {
	Total      int
	Discover   int
	Pending    int
	Processing int
	Completed  int
	Failed     int
	Deleted    int
}

// DatabaseHealth captures diagnostic information about the ledger database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	TableExists      bool
	ColumnsPresent   []string
	MissingColumns   []string
	IntegrityCheck   bool
	TotalDocuments   int
	Error            string
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
