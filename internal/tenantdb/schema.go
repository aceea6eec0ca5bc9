package tenantdb

import (
	"fmt"
	"strings"

	"github.com/BillSOS/CleverSyncSOS-sub001/internal/roster"
)

type columnTypes struct {
	id        string
	text      string
	timestamp string
	boolean   string
}

var dialectTypes = map[string]columnTypes{
	driverPgx:     {id: "TEXT", text: "TEXT", timestamp: "TIMESTAMPTZ", boolean: "BOOLEAN"},
	driverMySQL:   {id: "VARCHAR(64)", text: "TEXT", timestamp: "DATETIME(6)", boolean: "BOOLEAN"},
	driverSQLite3: {id: "TEXT", text: "TEXT", timestamp: "DATETIME", boolean: "BOOLEAN"},
}

// createStatements returns the DDL for every roster table. The layout is the
// same for every entity type: source_id, the comparable fields, then the
// bookkeeping columns used by reconciliation.
func createStatements(driverName string) ([]string, error) {
	types, ok := dialectTypes[driverName]
	if !ok {
		return nil, fmt.Errorf("no DDL for driver %q", driverName)
	}

	var stmts []string
	for _, schema := range roster.Schemas() {
		var b strings.Builder
		fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", schema.Table)
		fmt.Fprintf(&b, "    source_id %s PRIMARY KEY,\n", types.id)
		for _, field := range schema.Fields {
			fmt.Fprintf(&b, "    %s %s NULL,\n", field, types.text)
		}
		fmt.Fprintf(&b, "    source_updated_at %s NULL,\n", types.timestamp)
		fmt.Fprintf(&b, "    active %s NOT NULL DEFAULT TRUE,\n", types.boolean)
		fmt.Fprintf(&b, "    deactivated_at %s NULL,\n", types.timestamp)
		fmt.Fprintf(&b, "    created_at %s NOT NULL,\n", types.timestamp)
		fmt.Fprintf(&b, "    updated_at %s NOT NULL\n", types.timestamp)
		b.WriteString(")")
		stmts = append(stmts, b.String())

		index := fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_active_updated ON %s (active, updated_at)",
			schema.Table, schema.Table)
		if driverName == driverMySQL {
			// MySQL has no IF NOT EXISTS for indexes; the key is declared inline instead.
			stmts[len(stmts)-1] = strings.TrimSuffix(stmts[len(stmts)-1], "\n)") +
				fmt.Sprintf(",\n    KEY idx_%s_active_updated (active, updated_at)\n)", schema.Table)
			continue
		}
		stmts = append(stmts, index)
	}
	return stmts, nil
}
