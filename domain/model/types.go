// Package model provides the domain model shared by the preview and the
// parallel chunk parses: field kinds, target column types, the flattened
// schema and the parse configuration.
package model

import (
	"fmt"
	"strings"
)

// Kind is the primitive kind of a flattened source field.
type Kind int

const (
	// KindNull is a field that only ever holds null
	KindNull Kind = iota
	// KindBool is a boolean field
	KindBool
	// KindInt is a 32-bit integer field
	KindInt
	// KindLong is a 64-bit integer field
	KindLong
	// KindFloat is a 32-bit floating point field
	KindFloat
	// KindDouble is a 64-bit floating point field
	KindDouble
	// KindString is a UTF-8 string field
	KindString
	// KindBytes is a raw byte sequence field
	KindBytes
	// KindEnum is an enumeration field, decoded as the symbol ordinal
	KindEnum
)

// String returns the kind name
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindInt:
		return "int"
	case KindLong:
		return "long"
	case KindFloat:
		return "float"
	case KindDouble:
		return "double"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindEnum:
		return "enum"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ColumnType represents the target column type of the output frame
type ColumnType int

const (
	// ColumnTypeBad is a column that never holds a valid value
	ColumnTypeBad ColumnType = iota
	// ColumnTypeNumeric is a numeric column
	ColumnTypeNumeric
	// ColumnTypeCategorical is a categorical column holding domain ordinals
	ColumnTypeCategorical
	// ColumnTypeString is a string column
	ColumnTypeString
)

const (
	columnTypeBadStr         = "bad"
	columnTypeNumericStr     = "numeric"
	columnTypeCategoricalStr = "categorical"
	columnTypeStringStr      = "string"
)

// String returns the column type name
func (ct ColumnType) String() string {
	switch ct {
	case ColumnTypeNumeric:
		return columnTypeNumericStr
	case ColumnTypeCategorical:
		return columnTypeCategoricalStr
	case ColumnTypeString:
		return columnTypeStringStr
	default:
		return columnTypeBadStr
	}
}

// ParseColumnType parses a column type name as produced by String.
func ParseColumnType(s string) (ColumnType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case columnTypeBadStr:
		return ColumnTypeBad, nil
	case columnTypeNumericStr:
		return ColumnTypeNumeric, nil
	case columnTypeCategoricalStr:
		return ColumnTypeCategorical, nil
	case columnTypeStringStr:
		return ColumnTypeString, nil
	default:
		return ColumnTypeBad, fmt.Errorf("unknown column type %q", s)
	}
}

// MarshalYAML encodes the column type by name.
func (ct ColumnType) MarshalYAML() (interface{}, error) {
	return ct.String(), nil
}

// UnmarshalYAML decodes a column type name.
func (ct *ColumnType) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := ParseColumnType(s)
	if err != nil {
		return err
	}
	*ct = parsed
	return nil
}

// ColumnTypeOf maps a source kind to the column type it is written into.
func ColumnTypeOf(k Kind) ColumnType {
	switch k {
	case KindBool, KindInt, KindLong, KindFloat, KindDouble:
		return ColumnTypeNumeric
	case KindEnum:
		return ColumnTypeCategorical
	case KindString, KindBytes:
		return ColumnTypeString
	default:
		return ColumnTypeBad
	}
}
