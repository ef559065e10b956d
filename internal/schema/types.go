package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// UnknownType is the logical type reported when a native type cannot be mapped.
const UnknownType = "Unknown"

// Column describes a single column and its logical type.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Table describes a table or view and its columns in ordinal order.
type Table struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
}

// Info is a connection's schema: tables in introspection order.
// Table names are unique, and so are column names within a table.
type Info []Table

// Table returns the table named name.
func (i Info) Table(name string) (Table, bool) {
	for _, t := range i {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}

// Names returns the table names in order.
func (i Info) Names() []string {
	out := make([]string, len(i))
	for n, t := range i {
		out[n] = t.Name
	}
	return out
}

// JSONSchema maps table names to column names, keeping insertion order.
// It marshals to a JSON object whose keys appear in that order.
// The zero value is an empty schema ready to use.
type JSONSchema struct {
	tables  []string
	columns map[string][]string
}

// Set records columns for table. Replacing an existing table keeps its position.
func (s *JSONSchema) Set(table string, columns []string) {
	if s.columns == nil {
		s.columns = make(map[string][]string)
	}
	if columns == nil {
		columns = []string{}
	}
	if _, ok := s.columns[table]; !ok {
		s.tables = append(s.tables, table)
	}
	s.columns[table] = columns
}

// Columns returns the column names recorded for table.
func (s JSONSchema) Columns(table string) ([]string, bool) {
	cols, ok := s.columns[table]
	return cols, ok
}

// Tables returns the table names in insertion order.
func (s JSONSchema) Tables() []string {
	return append([]string(nil), s.tables...)
}

func (s JSONSchema) Len() int {
	return len(s.tables)
}

func (s JSONSchema) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, t := range s.tables {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(t)
		if err != nil {
			return nil, err
		}
		cols, err := json.Marshal(s.columns[t])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(cols)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (s *JSONSchema) UnmarshalJSON(data []byte) error {
	*s = JSONSchema{}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("json schema: expected object, got %v", tok)
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		table, ok := tok.(string)
		if !ok {
			return fmt.Errorf("json schema: expected table name, got %v", tok)
		}
		var cols []string
		if err := dec.Decode(&cols); err != nil {
			return fmt.Errorf("json schema: columns of %q: %w", table, err)
		}
		s.Set(table, cols)
	}

	_, err = dec.Token()
	return err
}
