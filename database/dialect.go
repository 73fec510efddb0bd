// database/dialect.go
package database

import (
	"fmt"
	"strings"
)

// dialect holds the SQL differences between the supported drivers.
type dialect struct {
	name       string
	driverName string
	// tableExists takes the table name as its only argument.
	tableExists string
	quoteChar   string
	numbered    bool // $1, $2 instead of ?
}

var dialects = map[string]dialect{
	"postgres": {
		name:        "postgres",
		driverName:  "postgres",
		tableExists: `SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = $1`,
		quoteChar:   `"`,
		numbered:    true,
	},
	"mysql": {
		name:        "mysql",
		driverName:  "mysql",
		tableExists: "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?",
		quoteChar:   "`",
	},
	"sqlite": {
		name:        "sqlite",
		driverName:  "sqlite",
		tableExists: `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`,
		quoteChar:   `"`,
	},
}

func dialectFor(driver string) (dialect, error) {
	d, ok := dialects[driver]
	if !ok {
		return dialect{}, fmt.Errorf("unsupported database driver %q", driver)
	}
	return d, nil
}

// quote quotes an identifier. Survey headers are normalized but still come
// from a remote file, so embedded quote characters are doubled.
func (d dialect) quote(ident string) string {
	return d.quoteChar + strings.ReplaceAll(ident, d.quoteChar, d.quoteChar+d.quoteChar) + d.quoteChar
}

// placeholders returns n comma separated bind parameters.
func (d dialect) placeholders(n int) string {
	params := make([]string, n)
	for i := range params {
		if d.numbered {
			params[i] = fmt.Sprintf("$%d", i+1)
		} else {
			params[i] = "?"
		}
	}
	return strings.Join(params, ", ")
}
