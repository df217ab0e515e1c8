package store

import (
	"fmt"
	"strings"
)

const (
	namespacePrefix = "ANX"
	dataSuffix      = "DATA"
)

// Column layout shared by writers and the scan path.
const (
	// DataFamily is the column family holding all record data.
	DataFamily = "carbon-analytics-data"

	// RowDataQualifier names the cell carrying the encoded row payload.
	RowDataQualifier = "/"

	// TimestampQualifier names the marker cell carrying only a raw
	// timestamp, written for rows that have a version but no data.
	TimestampQualifier = "ts"
)

// TableName derives the physical table name for a tenant's logical
// table. Negative tenant ids (the super-tenant space) fold into an
// X-prefixed magnitude so the composite name stays store-safe.
func TableName(tenantID int, table string) string {
	tenant := fmt.Sprintf("%d", tenantID)
	if tenantID < 0 {
		tenant = fmt.Sprintf("X%d", -tenantID)
	}
	return strings.Join([]string{namespacePrefix, tenant, strings.ToUpper(table), dataSuffix}, "_")
}
