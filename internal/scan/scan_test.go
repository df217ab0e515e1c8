package scan_test

import (
	"errors"
	"fmt"
	"testing"

	"opal/internal/common"
	"opal/internal/scan"
	"opal/internal/store"

	"github.com/stretchr/testify/require"
)

// countingStore wraps a MemStore so tests can observe opens, bulk gets,
// and handle closes, and inject open failures.
type countingStore struct {
	inner      store.Store
	openErr    error
	openCalls  int
	openedName string
	lastTable  *countingTable
}

func (c *countingStore) OpenTable(name string) (store.Table, error) {
	c.openCalls++
	c.openedName = name
	if c.openErr != nil {
		return nil, c.openErr
	}
	t, err := c.inner.OpenTable(name)
	if err != nil {
		return nil, err
	}
	c.lastTable = &countingTable{inner: t}
	return c.lastTable, nil
}

type countingTable struct {
	inner    store.Table
	getCalls int
	closes   int
}

func (c *countingTable) GetBatch(keys []string, family, qualifier string) ([]store.Row, error) {
	c.getCalls++
	return c.inner.GetBatch(keys, family, qualifier)
}

func (c *countingTable) Close() error {
	c.closes++
	return c.inner.Close()
}

// seedRows writes n full-data rows key-000..key-n into the tenant's
// physical table and returns the ids alongside the expected records.
func seedRows(t *testing.T, mem *store.MemStore, tenantID int, tableName string, n int) ([]string, []*common.Record) {
	t.Helper()

	physical := store.TableName(tenantID, tableName)
	var ids []string
	var expected []*common.Record
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("key-%03d", i)
		values := map[string]any{"seq": int64(i), "name": fmt.Sprintf("row %d", i)}
		ts := int64(1000 + i)
		require.NoError(t, mem.PutRow(physical, id, values, ts))

		ids = append(ids, id)
		expected = append(expected, &common.Record{
			ID:        id,
			TenantID:  tenantID,
			TableName: tableName,
			Values:    values,
			Timestamp: ts,
		})
	}
	return ids, expected
}

func TestScanAllRecordsAcrossBatches(t *testing.T) {
	mem := store.NewMemStore()
	ids, expected := seedRows(t, mem, 1, "events", 5)
	cs := &countingStore{inner: mem}

	// Three batches: [k0 k1] [k2 k3] [k4]. The final batch must be
	// fetched too, not dropped by premature exhaustion bookkeeping.
	iter, err := scan.New(cs, 1, "events", ids, scan.WithBatchSize(2))
	require.NoError(t, err)

	common.RequireMatchesIterator(t, iter, expected)
	require.Equal(t, 3, cs.lastTable.getCalls)
	require.Equal(t, 1, cs.lastTable.closes)
}

func TestScanFourBatchesFetchesFinalBatch(t *testing.T) {
	mem := store.NewMemStore()
	ids, expected := seedRows(t, mem, 1, "events", 7)
	cs := &countingStore{inner: mem}

	iter, err := scan.New(cs, 1, "events", ids, scan.WithBatchSize(2))
	require.NoError(t, err)

	common.RequireMatchesIterator(t, iter, expected)
	require.Equal(t, 4, cs.lastTable.getCalls)
}

func TestScanSingleBatch(t *testing.T) {
	mem := store.NewMemStore()
	ids, expected := seedRows(t, mem, 1, "events", 3)
	cs := &countingStore{inner: mem}

	iter, err := scan.New(cs, 1, "events", ids, scan.WithBatchSize(100))
	require.NoError(t, err)

	common.RequireMatchesIterator(t, iter, expected)
	require.Equal(t, 1, cs.lastTable.getCalls)
}

func TestInvalidBatchSizePerformsNoIO(t *testing.T) {
	cs := &countingStore{inner: store.NewMemStore()}

	for _, size := range []int{0, -5} {
		_, err := scan.New(cs, 1, "events", []string{"k1"}, scan.WithBatchSize(size))
		require.ErrorIs(t, err, scan.ErrInvalidBatchSize)
	}
	require.Zero(t, cs.openCalls)
}

func TestEmptyIDListIsImmediatelyExhausted(t *testing.T) {
	cs := &countingStore{inner: store.NewMemStore()}

	iter, err := scan.New(cs, 1, "events", nil, scan.WithBatchSize(2))
	require.NoError(t, err)

	require.False(t, iter.HasNext())
	require.NoError(t, iter.Err())
	require.Zero(t, cs.lastTable.getCalls)
	require.Equal(t, 1, cs.lastTable.closes)

	_, err = iter.Next()
	require.ErrorIs(t, err, scan.ErrNoMoreRecords)
}

func TestScanOpensDerivedTableName(t *testing.T) {
	mem := store.NewMemStore()
	ids, expected := seedRows(t, mem, -1234, "SensorReadings", 2)
	cs := &countingStore{inner: mem}

	iter, err := scan.New(cs, -1234, "SensorReadings", ids, scan.WithBatchSize(10))
	require.NoError(t, err)

	require.Equal(t, "ANX_X1234_SENSORREADINGS_DATA", cs.openedName)
	common.RequireMatchesIterator(t, iter, expected)
}

func TestProjectionFiltersColumns(t *testing.T) {
	mem := store.NewMemStore()
	physical := store.TableName(1, "events")
	require.NoError(t, mem.PutRow(physical, "k1", map[string]any{
		"keep":  "yes",
		"drop":  "no",
		"count": int64(3),
	}, 500))

	iter, err := scan.New(mem, 1, "events", []string{"k1"}, scan.WithColumns("keep", "count"))
	require.NoError(t, err)

	require.True(t, iter.HasNext())
	rec, err := iter.Next()
	require.NoError(t, err)
	require.Equal(t, map[string]any{"keep": "yes", "count": int64(3)}, rec.Values)
	require.Equal(t, int64(500), rec.Timestamp)
	require.False(t, iter.HasNext())
}

func TestTimestampMarkerRowDecodesToEmptyValues(t *testing.T) {
	mem := store.NewMemStore()
	physical := store.TableName(1, "events")
	mem.PutTimestamp(physical, "k1", 7777)

	iter, err := scan.New(mem, 1, "events", []string{"k1"})
	require.NoError(t, err)

	require.True(t, iter.HasNext())
	rec, err := iter.Next()
	require.NoError(t, err)
	require.Empty(t, rec.Values)
	require.Equal(t, int64(7777), rec.Timestamp)
}

func TestRowDataWinsOverTimestampMarker(t *testing.T) {
	mem := store.NewMemStore()
	physical := store.TableName(1, "events")
	require.NoError(t, mem.PutRow(physical, "k1", map[string]any{"v": int64(1)}, 100))
	mem.PutTimestamp(physical, "k1", 999)

	iter, err := scan.New(mem, 1, "events", []string{"k1"})
	require.NoError(t, err)

	require.True(t, iter.HasNext())
	rec, err := iter.Next()
	require.NoError(t, err)
	require.Equal(t, int64(100), rec.Timestamp)
	require.Equal(t, map[string]any{"v": int64(1)}, rec.Values)
}

func TestOnlyLatestCellVersionDecoded(t *testing.T) {
	mem := store.NewMemStore()
	physical := store.TableName(1, "events")
	require.NoError(t, mem.PutRow(physical, "k1", map[string]any{"v": int64(1)}, 10))
	require.NoError(t, mem.PutRow(physical, "k1", map[string]any{"v": int64(2)}, 20))

	iter, err := scan.New(mem, 1, "events", []string{"k1"})
	require.NoError(t, err)

	rec, err := iter.Next()
	require.NoError(t, err)
	require.Equal(t, int64(20), rec.Timestamp)
	require.Equal(t, int64(2), rec.Values["v"])
}

func TestAbsentAndUnrecognizedKeysOmitted(t *testing.T) {
	mem := store.NewMemStore()
	physical := store.TableName(1, "events")
	require.NoError(t, mem.PutRow(physical, "k1", map[string]any{"v": int64(1)}, 10))
	// k2 carries a cell in the data family nobody recognizes.
	mem.PutCell(physical, "k2", store.DataFamily, store.Cell{Qualifier: "junk", Value: []byte("x"), Timestamp: 5})
	require.NoError(t, mem.PutRow(physical, "k4", map[string]any{"v": int64(4)}, 40))

	// Batch size 1 so each key travels alone; k2 and the absent k3
	// contribute nothing.
	iter, err := scan.New(mem, 1, "events", []string{"k1", "k2", "k3", "k4"}, scan.WithBatchSize(1))
	require.NoError(t, err)

	var got []string
	for iter.HasNext() {
		rec, err := iter.Next()
		require.NoError(t, err)
		got = append(got, rec.ID)
	}
	require.NoError(t, iter.Err())
	require.Equal(t, []string{"k1", "k4"}, got)
}

func TestRetriesExhaustedMidScanEndsQuietly(t *testing.T) {
	mem := store.NewMemStore()
	ids, expected := seedRows(t, mem, 1, "events", 4)
	cs := &countingStore{inner: mem}

	iter, err := scan.New(cs, 1, "events", ids, scan.WithBatchSize(2))
	require.NoError(t, err)

	// Drain the prefetched first batch.
	for i := 0; i < 2; i++ {
		require.True(t, iter.HasNext())
		rec, err := iter.Next()
		require.NoError(t, err)
		require.Equal(t, expected[i].ID, rec.ID)
	}

	mem.FailNextBatch(store.ErrRetriesExhausted)

	require.False(t, iter.HasNext())
	require.NoError(t, iter.Err())
	require.Equal(t, 1, cs.lastTable.closes)

	// No further fetch attempts once degraded.
	calls := cs.lastTable.getCalls
	require.False(t, iter.HasNext())
	require.Equal(t, calls, cs.lastTable.getCalls)

	_, err = iter.Next()
	require.ErrorIs(t, err, scan.ErrNoMoreRecords)
}

func TestRetriesExhaustedAtConstruction(t *testing.T) {
	mem := store.NewMemStore()
	ids, _ := seedRows(t, mem, 1, "events", 3)
	cs := &countingStore{inner: mem}

	mem.FailNextBatch(store.ErrRetriesExhausted)

	iter, err := scan.New(cs, 1, "events", ids, scan.WithBatchSize(2))
	require.NoError(t, err)

	require.False(t, iter.HasNext())
	require.NoError(t, iter.Err())
	require.Equal(t, 1, cs.lastTable.closes)
}

func TestFatalFetchErrorSurfaces(t *testing.T) {
	mem := store.NewMemStore()
	ids, _ := seedRows(t, mem, 42, "events", 4)
	cs := &countingStore{inner: mem}

	iter, err := scan.New(cs, 42, "events", ids, scan.WithBatchSize(2))
	require.NoError(t, err)

	// Consume the prefetched batch, then poison the next fetch.
	for i := 0; i < 2; i++ {
		require.True(t, iter.HasNext())
		_, err := iter.Next()
		require.NoError(t, err)
	}
	boom := errors.New("region server on fire")
	mem.FailNextBatch(boom)

	require.False(t, iter.HasNext())
	require.Error(t, iter.Err())
	require.ErrorIs(t, iter.Err(), boom)
	require.Contains(t, iter.Err().Error(), `"events"`)
	require.Contains(t, iter.Err().Error(), "tenant 42")
	require.Equal(t, 1, cs.lastTable.closes)

	_, err = iter.Next()
	require.ErrorIs(t, err, boom)
}

func TestFatalErrorAtConstruction(t *testing.T) {
	mem := store.NewMemStore()
	ids, _ := seedRows(t, mem, 7, "events", 2)
	cs := &countingStore{inner: mem}

	boom := errors.New("wire torn")
	mem.FailNextBatch(boom)

	_, err := scan.New(cs, 7, "events", ids, scan.WithBatchSize(2))
	require.ErrorIs(t, err, boom)
	require.Contains(t, err.Error(), "tenant 7")
	require.Equal(t, 1, cs.lastTable.closes)
}

func TestOpenTableFailureWrapsCause(t *testing.T) {
	cause := errors.New("no such namespace")
	cs := &countingStore{inner: store.NewMemStore(), openErr: cause}

	_, err := scan.New(cs, 3, "events", []string{"k1"})
	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), `"events"`)
	require.Contains(t, err.Error(), "tenant 3")
}

func TestCorruptPayloadIsFatal(t *testing.T) {
	mem := store.NewMemStore()
	physical := store.TableName(1, "events")
	mem.PutCell(physical, "k1", store.DataFamily, store.Cell{
		Qualifier: store.TimestampQualifier,
		Value:     []byte{1, 2, 3}, // not 8 bytes
		Timestamp: 9,
	})
	cs := &countingStore{inner: mem}

	_, err := scan.New(cs, 1, "events", []string{"k1"})
	require.Error(t, err)
	require.Contains(t, err.Error(), `row "k1"`)
	require.Equal(t, 1, cs.lastTable.closes)
}

func TestNextAfterExhaustionFails(t *testing.T) {
	mem := store.NewMemStore()
	ids, expected := seedRows(t, mem, 1, "events", 1)
	cs := &countingStore{inner: mem}

	iter, err := scan.New(cs, 1, "events", ids)
	require.NoError(t, err)

	common.RequireMatchesIterator(t, iter, expected)

	_, err = iter.Next()
	require.ErrorIs(t, err, scan.ErrNoMoreRecords)
	_, err = iter.Next()
	require.ErrorIs(t, err, scan.ErrNoMoreRecords)

	// The handle is released exactly once across all of the above.
	require.Equal(t, 1, cs.lastTable.closes)
}

func TestCloseAbandonsIteration(t *testing.T) {
	mem := store.NewMemStore()
	ids, _ := seedRows(t, mem, 1, "events", 6)
	cs := &countingStore{inner: mem}

	iter, err := scan.New(cs, 1, "events", ids, scan.WithBatchSize(2))
	require.NoError(t, err)

	require.True(t, iter.HasNext())
	require.NoError(t, iter.Close())
	require.NoError(t, iter.Close())

	require.False(t, iter.HasNext())
	_, err = iter.Next()
	require.ErrorIs(t, err, scan.ErrNoMoreRecords)
	require.Equal(t, 1, cs.lastTable.closes)
	require.Equal(t, 1, cs.lastTable.getCalls)
}

func TestRecordsStampedWithScanIdentity(t *testing.T) {
	mem := store.NewMemStore()
	physical := store.TableName(-1234, "events")
	require.NoError(t, mem.PutRow(physical, "k1", map[string]any{"v": int64(1)}, 1))

	iter, err := scan.New(mem, -1234, "events", []string{"k1"})
	require.NoError(t, err)

	rec, err := iter.Next()
	require.NoError(t, err)
	require.Equal(t, -1234, rec.TenantID)
	require.Equal(t, "events", rec.TableName)
}

func TestSkipsForwardOverEmptyBatches(t *testing.T) {
	mem := store.NewMemStore()
	physical := store.TableName(1, "events")
	// Only the last of five single-key batches has data.
	require.NoError(t, mem.PutRow(physical, "k5", map[string]any{"v": int64(5)}, 50))
	cs := &countingStore{inner: mem}

	iter, err := scan.New(cs, 1, "events", []string{"k1", "k2", "k3", "k4", "k5"}, scan.WithBatchSize(1))
	require.NoError(t, err)

	require.True(t, iter.HasNext())
	rec, err := iter.Next()
	require.NoError(t, err)
	require.Equal(t, "k5", rec.ID)
	require.False(t, iter.HasNext())
	require.Equal(t, 5, cs.lastTable.getCalls)
}
