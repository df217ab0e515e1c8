package scan

import (
	"errors"
	"fmt"
	"time"

	"opal/internal/codec"
	"opal/internal/common"
	"opal/internal/store"
)

// recordScanner pulls records batch by batch. State machine: pending
// buffered records are drained first; when they run out the next batch
// is fetched, skipping forward over batches that decode to nothing.
// Terminal states release the table handle exactly once: exhaustion,
// store-unreachable degradation, fatal fetch error, or explicit Close.
type recordScanner struct {
	tenantID   int
	tableName  string
	projection map[string]struct{}

	table   store.Table
	batches [][]string

	batchIndex   int
	fullyFetched bool // monotonic: never reverts to false
	pending      []*common.Record
	closed       bool
	err          error
}

var _ common.RecordIterator = (*recordScanner)(nil)

func (s *recordScanner) HasNext() bool {
	if len(s.pending) > 0 {
		return true
	}
	if s.err != nil {
		return false
	}

	for !s.fullyFetched {
		if err := s.fetchBatch(); err != nil {
			s.release()
			if errors.Is(err, store.ErrRetriesExhausted) {
				// Store unreachable mid-scan: skip the remaining
				// batches and end the iteration quietly.
				s.pending = nil
				s.fullyFetched = true
				return false
			}
			s.err = s.fatal(err)
			return false
		}
		if len(s.pending) > 0 {
			return true
		}
	}

	s.release()
	return false
}

func (s *recordScanner) Next() (*common.Record, error) {
	if s.HasNext() {
		rec := s.pending[0]
		s.pending = s.pending[1:]
		return rec, nil
	}

	s.release()
	if s.err != nil {
		return nil, s.err
	}
	return nil, ErrNoMoreRecords
}

func (s *recordScanner) Err() error {
	return s.err
}

// Ack is a no-op: a read-only scan has nothing to commit per record.
func (s *recordScanner) Ack() {}

// Close releases the table handle before the scan is exhausted.
// Idempotent; safe after any terminal transition.
func (s *recordScanner) Close() error {
	s.pending = nil
	s.fullyFetched = true
	s.release()
	return nil
}

// fetchBatch issues one bulk get for the current batch and buffers the
// decoded records. The batch index then advances; the plan counts as
// fully fetched only once the index has moved past the last batch.
func (s *recordScanner) fetchBatch() error {
	batch := s.batches[s.batchIndex]

	// Projection cannot be pushed down: the full row payload lives in a
	// single cell, so restrict the read to that cell and filter during
	// decoding. Without a projection, take the whole family.
	qualifier := ""
	if len(s.projection) > 0 {
		qualifier = store.RowDataQualifier
	}

	start := time.Now()
	rows, err := s.table.GetBatch(batch, store.DataFamily, qualifier)
	if err != nil {
		return err
	}

	records := make([]*common.Record, 0, len(rows))
	for _, row := range rows {
		rec, ok, err := s.decodeRow(row)
		if err != nil {
			return err
		}
		if ok {
			records = append(records, rec)
		}
	}
	s.pending = records

	s.batchIndex++
	if s.batchIndex >= len(s.batches) {
		s.fullyFetched = true
	}
	common.LogDuration(start, "fetched batch %d/%d: %d keys, %d records",
		s.batchIndex, len(s.batches), len(batch), len(records))
	return nil
}

// decodeRow classifies one returned row. A row-payload cell wins over a
// timestamp marker; a row with neither decodes to nothing and is
// silently omitted. Only the latest version of a cell is considered.
func (s *recordScanner) decodeRow(row store.Row) (*common.Record, bool, error) {
	if cell, ok := row.Latest(store.RowDataQualifier); ok {
		values, err := codec.DecodeValues(cell.Value, s.projection)
		if err != nil {
			return nil, false, fmt.Errorf("decode row %q: %w", row.Key, err)
		}
		return &common.Record{
			ID:        row.Key,
			TenantID:  s.tenantID,
			TableName: s.tableName,
			Values:    values,
			Timestamp: cell.Timestamp,
		}, true, nil
	}

	if cell, ok := row.Latest(store.TimestampQualifier); ok {
		ts, err := codec.DecodeTimestamp(cell.Value)
		if err != nil {
			return nil, false, fmt.Errorf("decode timestamp for row %q: %w", row.Key, err)
		}
		return &common.Record{
			ID:        row.Key,
			TenantID:  s.tenantID,
			TableName: s.tableName,
			Values:    map[string]any{},
			Timestamp: ts,
		}, true, nil
	}

	return nil, false, nil
}

// fatal wraps a fetch failure with the table and tenant it hit.
func (s *recordScanner) fatal(err error) error {
	return fmt.Errorf("scan: error reading data from table %q for tenant %d: %w",
		s.tableName, s.tenantID, err)
}

// release closes the table handle once. Close failures are discarded;
// the handle is dead either way.
func (s *recordScanner) release() {
	if s.closed {
		return
	}
	s.closed = true
	_ = s.table.Close()
}
