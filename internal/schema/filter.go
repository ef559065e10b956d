package schema

import "strings"

// Filter decides which listed tables make it into a live build.
//
// When Includes is non-nil it is an allow-list of name prefixes and
// Excludes is ignored. Otherwise a table is kept unless it starts with one
// of the Excludes prefixes. IncludeViews asks the listing step for views
// as well as base tables.
type Filter struct {
	Includes     []string
	Excludes     []string
	IncludeViews bool
}

// Include reports whether table passes the prefix rules.
func (f Filter) Include(table string) bool {
	if f.Includes != nil {
		return hasAnyPrefix(table, f.Includes)
	}
	return !hasAnyPrefix(table, f.Excludes)
}

// Apply returns the tables that pass, preserving order.
func (f Filter) Apply(tables []string) []string {
	out := make([]string, 0, len(tables))
	for _, t := range tables {
		if f.Include(t) {
			out = append(out, t)
		}
	}
	return out
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
