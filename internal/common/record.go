package common

// Record is one decoded row from a logical analytics table. TenantID and
// TableName always reflect the scan that produced the record, never
// whatever the physical store happened to return.
type Record struct {
	ID        string
	TenantID  int
	TableName string
	Values    map[string]any
	Timestamp int64
}

// RecordIterator produces a stream of decoded records. Callers must check
// HasNext before calling Next, and must serialize calls: implementations
// carry no internal synchronization.
type RecordIterator interface {
	// HasNext reports whether another record is available, fetching more
	// data when the current buffer has drained. It returns false once the
	// stream is exhausted, when the backing store becomes unreachable, or
	// when a fatal fetch error occurred; Err distinguishes the last case.
	HasNext() bool

	// Next returns the next record. Calling Next when HasNext is false
	// fails with the pending fatal error, if any, or a no-more-records
	// error.
	Next() (*Record, error)

	// Err returns the fatal fetch error that terminated the stream, or
	// nil after a clean or degraded (store-unreachable) end.
	Err() error

	// Ack acknowledges consumption of the last record returned by Next.
	// Read-only streams have nothing to commit, so this is a no-op kept
	// for enumeration protocols that require one.
	Ack()

	// Close releases the underlying resources early. Idempotent.
	Close() error
}
