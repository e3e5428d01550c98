package db

import (
	"fmt"
	"strings"
)

// Filter accumulates conjunctive equality conditions with positional
// placeholders, in the style of the hand-written search queries.
type Filter struct {
	conds []string
	args  []any
}

// Eq adds "column = $n".
func (f *Filter) Eq(column string, value any) *Filter {
	f.args = append(f.args, value)
	f.conds = append(f.conds, fmt.Sprintf("%s = $%d", column, len(f.args)))
	return f
}

// IsNull adds "column IS NULL".
func (f *Filter) IsNull(column string) *Filter {
	f.conds = append(f.conds, column+" IS NULL")
	return f
}

// Where renders the WHERE clause, or an empty string when no condition was added.
func (f *Filter) Where() string {
	if len(f.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(f.conds, " AND ")
}

// Args returns the placeholder values in order.
func (f *Filter) Args() []any {
	return f.args
}

// Next returns the next free placeholder index, for callers appending their
// own parameters after the filter.
func (f *Filter) Next() int {
	return len(f.args) + 1
}

// Empty reports whether no condition was added.
func (f *Filter) Empty() bool {
	return len(f.conds) == 0
}
