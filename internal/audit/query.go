package audit

import (
	"strconv"
	"strings"
)

// placeholder renders the nth (1-based) bind parameter for a driver.
type placeholder func(n int) string

func questionMark(int) string { return "?" }

func dollar(n int) string { return "$" + strconv.Itoa(n) }

// whereClause builds the WHERE clause for a filter. The clause only ever
// contains column names and placeholders; values travel in args.
func whereClause(f Filter, ph placeholder) (string, []any) {
	var (
		conditions []string
		args       []any
	)
	add := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		conditions = append(conditions, column+" = "+ph(len(args)))
	}

	add("action", f.Action)
	add("entity_type", f.EntityType)
	add("entity_id", f.EntityID)

	if len(conditions) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}
