package store

import "time"

// DefaultDBPath is the default relative path for the SQLite DB (per-workspace).
// Resolve against cwd; Open() creates the parent dir (e.g. .treeprop).
const DefaultDBPath = ".treeprop/treeprop.db"

// Run is one completed inference query: which model was loaded, what was
// asked, what came back, and how long it took.
type Run struct {
	ID           int64
	Model        string // model file path or logical name
	Query        string // query variable name
	EvidenceKey  string // canonical "name=value;..." form, empty for none
	Distribution map[string]float64
	Method       string // "propagation" or "elimination"
	CacheHits    int64
	DurationMS   int64
	CreatedAt    time.Time
}

// Store is the run-history facade. CLI and MCP surfaces use only this
// interface; implementation is SQLite or in-memory.
type Store interface {
	SaveRun(r *Run) (runID int64, err error)
	GetRun(runID int64) (*Run, error)
	// ListRuns returns runs newest first, at most limit (0 = all).
	ListRuns(limit int) ([]*Run, error)
	Close() error
}
