package scan

import "errors"

// ErrInvalidBatchSize rejects scans configured with a non-positive
// batch size. Raised before any I/O is attempted.
var ErrInvalidBatchSize = errors.New("scan: batch size must be a positive integer")

// PartitionIDs splits ids into ordered batches of at most batchSize
// each. Batches are sub-slices of ids: non-overlapping, order
// preserving, concatenating back to the input exactly. An empty id
// list yields zero batches.
func PartitionIDs(ids []string, batchSize int) ([][]string, error) {
	if batchSize <= 0 {
		return nil, ErrInvalidBatchSize
	}
	if len(ids) == 0 {
		return nil, nil
	}

	batches := make([][]string, 0, (len(ids)+batchSize-1)/batchSize)
	for start := 0; start < len(ids); start += batchSize {
		end := min(start+batchSize, len(ids))
		batches = append(batches, ids[start:end])
	}
	return batches, nil
}
