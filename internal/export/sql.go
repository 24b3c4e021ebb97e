package export

import (
	"fmt"
	"strings"
)

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// tableStatements returns the statements that drop and recreate the output
// table with one TEXT column per header key, plus the insert statement.
// quote quotes identifiers, placeholder renders the n-th (1-based) bind parameter.
func tableStatements(header []string, quote func(string) string, placeholder func(n int) string) (drop, create, insert string) {
	table := quote(TableName)

	columns := make([]string, len(header))
	defs := make([]string, len(header))
	params := make([]string, len(header))
	for i, key := range header {
		columns[i] = quote(key)
		defs[i] = fmt.Sprintf("%s TEXT", quote(key))
		params[i] = placeholder(i + 1)
	}

	drop = fmt.Sprintf("DROP TABLE IF EXISTS %s", table)
	create = fmt.Sprintf("CREATE TABLE %s (%s)", table, strings.Join(defs, ", "))
	insert = fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		table,
		strings.Join(columns, ", "),
		strings.Join(params, ", "),
	)
	return drop, create, insert
}

// sqlArgs converts row values into bind arguments, null stays NULL.
func sqlArgs(values []any) []any {
	args := make([]any, len(values))
	for i, v := range values {
		if v == nil {
			continue
		}
		args[i] = Cell(v)
	}
	return args
}
