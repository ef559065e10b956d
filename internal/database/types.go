package database

import (
	"strings"

	"github.com/koustreak/schemacache/internal/errs"
)

// Logical type names shared by every dialect.
const (
	TypeAutoInteger    = "AutoInteger"
	TypeBigAutoInteger = "BigAutoInteger"
	TypeSmallInteger   = "SmallInteger"
	TypeInteger        = "Integer"
	TypeBigInteger     = "BigInteger"
	TypeBoolean        = "Boolean"
	TypeString         = "String"
	TypeText           = "Text"
	TypeDecimal        = "Decimal"
	TypeFloat          = "Float"
	TypeDate           = "Date"
	TypeDateTime       = "DateTime"
	TypeTime           = "Time"
	TypeDuration       = "Duration"
	TypeBinary         = "Binary"
	TypeUUID           = "UUID"
	TypeJSON           = "JSON"
	TypeIPAddress      = "IPAddress"
)

// TypeMap maps lower-cased native type codes to logical type names.
type TypeMap map[string]string

// Lookup resolves code, ignoring case and any "(n,m)" size suffix.
// Unmapped codes return an errs.ErrKindUnsupported error.
func (m TypeMap) Lookup(code string) (string, error) {
	key := BaseTypeName(code)
	if t, ok := m[key]; ok {
		return t, nil
	}
	return "", errs.Newf(errs.ErrKindUnsupported, "no logical type for native type %q", code)
}

// BaseTypeName lower-cases code and strips a trailing size or precision
// suffix: "VARCHAR(20)" becomes "varchar".
func BaseTypeName(code string) string {
	c := strings.ToLower(strings.TrimSpace(code))
	if i := strings.IndexByte(c, '('); i >= 0 {
		c = strings.TrimSpace(c[:i])
	}
	return c
}
