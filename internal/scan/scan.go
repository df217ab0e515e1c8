// Package scan implements batched point reads over a column-family
// store: an ordered id list is partitioned into fixed-size batches, each
// batch is fetched with a single bulk request, and rows are decoded into
// records lazily as the caller pulls them.
package scan

import (
	"errors"
	"fmt"

	"opal/internal/common"
	"opal/internal/store"
)

// ErrNoMoreRecords is returned by Next once the scan is exhausted.
// Callers must gate Next behind HasNext.
var ErrNoMoreRecords = errors.New("scan: no further records exist in iterator")

type Options struct {
	// BatchSize bounds how many keys go into one bulk get.
	BatchSize int

	// Columns restricts decoded values to the named columns. Empty
	// means all columns.
	Columns []string
}

var DefaultOptions = Options{
	BatchSize: 100,
}

type Option func(*Options)

func WithBatchSize(n int) Option {
	return func(o *Options) {
		o.BatchSize = n
	}
}

func WithColumns(cols ...string) Option {
	return func(o *Options) {
		o.Columns = cols
	}
}

// New opens a handle onto the tenant's logical table and returns an
// iterator over the given record ids. The first batch is fetched before
// New returns, so HasNext is immediately cheap.
//
// The iterator exclusively owns the table handle and releases it on
// every terminal path; callers abandoning iteration early must call
// Close. It is not safe for concurrent use.
func New(st store.Store, tenantID int, tableName string, ids []string, optFns ...Option) (common.RecordIterator, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	batches, err := PartitionIDs(ids, opts.BatchSize)
	if err != nil {
		return nil, err
	}

	table, err := st.OpenTable(store.TableName(tenantID, tableName))
	if err != nil {
		return nil, fmt.Errorf("scan: table %q for tenant %d could not be initialized for reading: %w",
			tableName, tenantID, err)
	}

	s := &recordScanner{
		tenantID:  tenantID,
		tableName: tableName,
		table:     table,
		batches:   batches,
	}
	if len(opts.Columns) > 0 {
		s.projection = make(map[string]struct{}, len(opts.Columns))
		for _, c := range opts.Columns {
			s.projection[c] = struct{}{}
		}
	}

	if len(batches) == 0 {
		s.fullyFetched = true
		return s, nil
	}

	if err := s.fetchBatch(); err != nil {
		s.release()
		if errors.Is(err, store.ErrRetriesExhausted) {
			// Store unreachable before the first row: degrade to an
			// empty result rather than failing the scan.
			s.pending = nil
			s.fullyFetched = true
			return s, nil
		}
		return nil, s.fatal(err)
	}
	return s, nil
}
