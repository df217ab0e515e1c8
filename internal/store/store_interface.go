package store

import "errors"

// ErrRetriesExhausted signals that the store's retry budget is spent and
// the table is effectively unreachable. Scans treat it as a soft end of
// data rather than a fatal failure.
var ErrRetriesExhausted = errors.New("store: retries against table exhausted")

// Cell is one (qualifier, value, version) unit within the requested
// column family.
type Cell struct {
	Qualifier string
	Value     []byte
	Timestamp int64
}

// Row holds every cell returned for one key, possibly several versions
// of the same qualifier. A Row with no cells means the key is absent.
type Row struct {
	Key   string
	Cells []Cell
}

// Latest returns the highest-timestamp cell carrying the qualifier.
func (r Row) Latest(qualifier string) (Cell, bool) {
	var best Cell
	found := false
	for _, c := range r.Cells {
		if c.Qualifier != qualifier {
			continue
		}
		if !found || c.Timestamp > best.Timestamp {
			best = c
			found = true
		}
	}
	return best, found
}

// Table is an open handle onto one physical table.
type Table interface {
	// GetBatch executes a single bulk point read for the given keys
	// against one column family. An empty qualifier requests every
	// column in the family; a non-empty one restricts the read to that
	// column. The result carries one Row per key, in key order; absent
	// keys yield a Row with no cells. A store whose retry budget is
	// exhausted returns an error matching ErrRetriesExhausted.
	GetBatch(keys []string, family, qualifier string) ([]Row, error)

	// Close releases the handle. Idempotent; failures are best-effort
	// and may be discarded by callers.
	Close() error
}

// Store opens table handles by physical table name.
type Store interface {
	OpenTable(name string) (Table, error)
}
