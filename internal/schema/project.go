package schema

import "github.com/koustreak/schemacache/internal/database"

// TypeMapper resolves a native column type to a logical type name.
type TypeMapper interface {
	FieldType(code string, row database.ColumnRow) (string, error)
}

// LogicalType resolves code through m, reporting UnknownType on any failure.
func LogicalType(m TypeMapper, code string, row database.ColumnRow) string {
	t, err := m.FieldType(code, row)
	if err != nil || t == "" {
		return UnknownType
	}
	return t
}

// ToJSON projects info to table -> column names, dropping types.
// Table and column order are preserved.
func ToJSON(info Info) JSONSchema {
	var out JSONSchema
	for _, t := range info {
		cols := make([]string, 0, len(t.Columns))
		for _, c := range t.Columns {
			cols = append(cols, c.Name)
		}
		out.Set(t.Name, cols)
	}
	return out
}
