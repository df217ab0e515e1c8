package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"opal/internal/scan"
	"opal/internal/store"
)

// runDemo seeds a fresh in-memory table and scans every seeded id back
// through the batched iterator.
func runDemo(cmd *cobra.Command, args []string) error {
	mem := store.NewMemStore()
	tableName := "demo"
	physical := store.TableName(demoTenant, tableName)

	ids := make([]string, 0, demoRows)
	for i := 0; i < demoRows; i++ {
		id := fmt.Sprintf("row-%04d", i)
		values := map[string]any{
			"seq":    int64(i),
			"name":   fmt.Sprintf("synthetic row %d", i),
			"weight": float64(i) * 1.5,
			"even":   i%2 == 0,
		}
		if err := mem.PutRow(physical, id, values, int64(1_000_000+i)); err != nil {
			return err
		}
		ids = append(ids, id)
	}
	// Every tenth row only ever got a version marker, no data.
	for i := 0; i < demoRows; i += 10 {
		id := fmt.Sprintf("marker-%04d", i)
		mem.PutTimestamp(physical, id, int64(2_000_000+i))
		ids = append(ids, id)
	}

	opts := []scan.Option{scan.WithBatchSize(demoBatch)}
	if len(demoColumns) > 0 {
		opts = append(opts, scan.WithColumns(demoColumns...))
	}

	iter, err := scan.New(mem, demoTenant, tableName, ids, opts...)
	if err != nil {
		return err
	}
	defer iter.Close()

	count := 0
	for iter.HasNext() {
		rec, err := iter.Next()
		if err != nil {
			return err
		}
		fmt.Printf("%-12s ts=%-10d %v\n", rec.ID, rec.Timestamp, rec.Values)
		iter.Ack()
		count++
	}
	if err := iter.Err(); err != nil {
		return err
	}
	fmt.Printf("scanned %d records from %d ids (batch size %d)\n", count, len(ids), demoBatch)
	return nil
}
