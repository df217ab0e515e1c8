package store

import (
	"fmt"
	"sync"

	"opal/internal/codec"
)

// memCell pairs a cell with the column family it lives in.
type memCell struct {
	family string
	cell   Cell
}

// MemStore is an in-memory column-family store used by the CLI and by
// tests. Tables are created lazily on first write or open. Every write
// appends a new cell version; reads return all versions and leave
// latest-wins resolution to the caller.
type MemStore struct {
	mu     sync.RWMutex
	tables map[string]map[string][]memCell // table -> key -> versions

	// failNext, when non-nil, fails the next GetBatch on any handle.
	failNext error
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		tables: make(map[string]map[string][]memCell),
	}
}

// PutRow encodes values into a row-payload cell for the key, versioned
// at ts.
func (s *MemStore) PutRow(table, key string, values map[string]any, ts int64) error {
	payload, err := codec.EncodeValues(values)
	if err != nil {
		return err
	}
	s.PutCell(table, key, DataFamily, Cell{
		Qualifier: RowDataQualifier,
		Value:     payload,
		Timestamp: ts,
	})
	return nil
}

// PutTimestamp writes a timestamp-only marker cell for the key.
func (s *MemStore) PutTimestamp(table, key string, ts int64) {
	s.PutCell(table, key, DataFamily, Cell{
		Qualifier: TimestampQualifier,
		Value:     codec.EncodeTimestamp(ts),
		Timestamp: ts,
	})
}

// PutCell appends a raw cell version for the key.
func (s *MemStore) PutCell(table, key, family string, cell Cell) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, ok := s.tables[table]
	if !ok {
		rows = make(map[string][]memCell)
		s.tables[table] = rows
	}
	cell.Value = cloneBytes(cell.Value)
	rows[key] = append(rows[key], memCell{family: family, cell: cell})
}

// Drop removes a table and all its rows.
func (s *MemStore) Drop(table string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tables, table)
}

// FailNextBatch arms a one-shot error: the next GetBatch on any handle
// returns err instead of data. Used to exercise degraded and fatal
// fetch paths.
func (s *MemStore) FailNextBatch(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = err
}

// OpenTable returns a handle onto the named table, creating it if it
// does not exist yet.
func (s *MemStore) OpenTable(name string) (Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tables[name]; !ok {
		s.tables[name] = make(map[string][]memCell)
	}
	return &memTable{store: s, name: name}, nil
}

var _ Store = (*MemStore)(nil)

type memTable struct {
	store  *MemStore
	name   string
	closed bool
}

func (t *memTable) GetBatch(keys []string, family, qualifier string) ([]Row, error) {
	if t.closed {
		return nil, fmt.Errorf("store: handle for table %q is closed", t.name)
	}

	s := t.store
	s.mu.Lock()
	if err := s.failNext; err != nil {
		s.failNext = nil
		s.mu.Unlock()
		return nil, err
	}
	rows := s.tables[t.name]

	out := make([]Row, 0, len(keys))
	for _, key := range keys {
		row := Row{Key: key}
		for _, mc := range rows[key] {
			if mc.family != family {
				continue
			}
			if qualifier != "" && mc.cell.Qualifier != qualifier {
				continue
			}
			cell := mc.cell
			cell.Value = cloneBytes(cell.Value)
			row.Cells = append(row.Cells, cell)
		}
		out = append(out, row)
	}
	s.mu.Unlock()
	return out, nil
}

func (t *memTable) Close() error {
	t.closed = true
	return nil
}

var _ Table = (*memTable)(nil)

func cloneBytes(src []byte) []byte {
	if src == nil {
		return nil
	}
	out := make([]byte, len(src))
	copy(out, src)
	return out
}
