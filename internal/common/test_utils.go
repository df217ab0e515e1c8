package common

import "testing"

// RequireMatchesIterator drains iter and compares each record to the
// expected sequence using testing.T helpers. Fails immediately on
// mismatch, and requires a clean end (no pending fatal error).
func RequireMatchesIterator(t *testing.T, iter RecordIterator, expected []*Record) {
	t.Helper()

	for i := range expected {
		if !iter.HasNext() {
			t.Fatalf("iterator exhausted at index %d", i)
		}
		rec, err := iter.Next()
		if err != nil {
			t.Fatalf("unexpected iterator error: %v", err)
		}
		if !recordsEqual(rec, expected[i]) {
			t.Fatalf("record mismatch at %d: got %+v want %+v", i, rec, expected[i])
		}
		iter.Ack()
	}

	if iter.HasNext() {
		rec, _ := iter.Next()
		t.Fatalf("expected iterator to be exhausted, got %+v", rec)
	}
	if err := iter.Err(); err != nil {
		t.Fatalf("unexpected fatal error at end: %v", err)
	}
}

func recordsEqual(a, b *Record) bool {
	if a.ID != b.ID || a.TenantID != b.TenantID || a.TableName != b.TableName || a.Timestamp != b.Timestamp {
		return false
	}
	if len(a.Values) != len(b.Values) {
		return false
	}
	for k, v := range a.Values {
		bv, ok := b.Values[k]
		if !ok || !valuesEqual(v, bv) {
			return false
		}
	}
	return true
}

func valuesEqual(a, b any) bool {
	// Byte slices are not comparable; compare contents.
	if ab, ok := a.([]byte); ok {
		bb, ok := b.([]byte)
		return ok && string(ab) == string(bb)
	}
	if _, ok := b.([]byte); ok {
		return false
	}
	return a == b
}
