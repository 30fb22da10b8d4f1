package model

import (
	"github.com/cockroachdb/errors"
	"github.com/hamba/avro/v2"
)

// FlatField is one supported top-level field of the source record schema.
type FlatField struct {
	// Name is the field name, used as the column name
	Name string
	// Position is the index of the field within the source record
	Position int
	// Kind is the primitive kind after unwrapping a nullable union
	Kind Kind
	// Schema is the effective (non-null) schema of the field
	Schema avro.Schema
	// Nullable is true when the field is declared as a union with null
	Nullable bool
	// Symbols holds the enum symbols in declaration order
	Symbols []string
}

// Flatten returns the supported fields of a record schema in declaration
// order. Nested records, arrays, maps, fixed and wider unions are left out.
// Schemas that are not records flatten to nothing.
func Flatten(schema avro.Schema) []FlatField {
	rec, ok := recordOf(schema)
	if !ok {
		return nil
	}

	var flat []FlatField
	for i, f := range rec.Fields() {
		field, err := flattenField(i, f)
		if err != nil {
			continue
		}
		flat = append(flat, field)
	}
	return flat
}

// Unsupported lists the fields Flatten leaves out, each wrapped with
// ErrUnsupportedField.
func Unsupported(schema avro.Schema) []error {
	rec, ok := recordOf(schema)
	if !ok {
		return []error{errors.Wrapf(ErrUnsupportedField, "top-level schema is %s, not a record", schema.Type())}
	}

	var errs []error
	for i, f := range rec.Fields() {
		if _, err := flattenField(i, f); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func recordOf(schema avro.Schema) (*avro.RecordSchema, bool) {
	if schema == nil {
		return nil, false
	}
	if ref, ok := schema.(*avro.RefSchema); ok {
		return recordOf(ref.Schema())
	}
	rec, ok := schema.(*avro.RecordSchema)
	return rec, ok
}

func flattenField(pos int, f *avro.Field) (FlatField, error) {
	eff, nullable, ok := effectiveSchema(f.Type())
	if !ok {
		return FlatField{}, errors.Wrapf(ErrUnsupportedField, "field %q has type %s", f.Name(), f.Type().Type())
	}
	kind, ok := primitiveKind(eff)
	if !ok {
		return FlatField{}, errors.Wrapf(ErrUnsupportedField, "field %q has type %s", f.Name(), eff.Type())
	}

	field := FlatField{
		Name:     f.Name(),
		Position: pos,
		Kind:     kind,
		Schema:   eff,
		Nullable: nullable,
	}
	if kind == KindEnum {
		field.Symbols = append([]string(nil), eff.(*avro.EnumSchema).Symbols()...)
	}
	return field, nil
}

// effectiveSchema unwraps named references and unions of one supported
// branch or of null plus one supported branch.
func effectiveSchema(s avro.Schema) (avro.Schema, bool, bool) {
	switch s.Type() {
	case avro.Ref:
		return effectiveSchema(s.(*avro.RefSchema).Schema())
	case avro.Union:
		types := s.(*avro.UnionSchema).Types()
		switch len(types) {
		case 1:
			eff, nullable, ok := effectiveSchema(types[0])
			return eff, nullable, ok
		case 2:
			switch {
			case types[0].Type() == avro.Null:
				eff, _, ok := effectiveSchema(types[1])
				return eff, true, ok
			case types[1].Type() == avro.Null:
				eff, _, ok := effectiveSchema(types[0])
				return eff, true, ok
			}
		}
		return nil, false, false
	default:
		_, ok := primitiveKind(s)
		return s, s.Type() == avro.Null, ok
	}
}

func primitiveKind(s avro.Schema) (Kind, bool) {
	switch s.Type() {
	case avro.Null:
		return KindNull, true
	case avro.Boolean:
		return KindBool, true
	case avro.Int:
		return KindInt, true
	case avro.Long:
		return KindLong, true
	case avro.Float:
		return KindFloat, true
	case avro.Double:
		return KindDouble, true
	case avro.String:
		return KindString, true
	case avro.Bytes:
		return KindBytes, true
	case avro.Enum:
		return KindEnum, true
	case avro.Ref:
		return primitiveKind(s.(*avro.RefSchema).Schema())
	default:
		return 0, false
	}
}
