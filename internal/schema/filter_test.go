package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilter_Include(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		table  string
		want   bool
	}{
		{"no rules keeps everything", Filter{}, "orders", true},
		{"exclude prefix drops", Filter{Excludes: []string{"tmp_", "django_"}}, "django_session", false},
		{"exclude prefix keeps others", Filter{Excludes: []string{"tmp_"}}, "orders", true},
		{"include prefix keeps", Filter{Includes: []string{"sales_"}}, "sales_orders", true},
		{"include prefix drops others", Filter{Includes: []string{"sales_"}}, "orders", false},
		{"includes win over excludes", Filter{Includes: []string{"sales_"}, Excludes: []string{"sales_"}}, "sales_orders", true},
		{"empty includes keeps nothing", Filter{Includes: []string{}}, "orders", false},
		{"prefix is case sensitive", Filter{Excludes: []string{"TMP_"}}, "tmp_x", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Include(tt.table))
		})
	}
}

func TestFilter_Apply(t *testing.T) {
	tables := []string{"auth_user", "orders", "tmp_load", "customers"}

	got := Filter{Excludes: []string{"tmp_", "auth_"}}.Apply(tables)
	assert.Equal(t, []string{"orders", "customers"}, got)

	got = Filter{Includes: []string{"cust", "ord"}}.Apply(tables)
	assert.Equal(t, []string{"orders", "customers"}, got)

	assert.Empty(t, Filter{}.Apply(nil))
}
