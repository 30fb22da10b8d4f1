// Package frame collects parsed rows into arrow columns.
package frame

import (
	"math"
	"strings"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/memory"
	"github.com/cockroachdb/errors"
	"github.com/nao1215/chunkparse/domain/model"
)

// DomainKey is the field metadata key holding the comma separated domain of
// a categorical column. Enum symbols are Avro names and never hold commas.
const DomainKey = "chunkparse.domain"

// Schema returns the arrow schema of the frames built for cfg. Numeric and
// bad columns are float64, categorical columns hold int32 domain ordinals
// with the domain in the field metadata, and string columns are utf8.
// Every column is nullable.
func Schema(cfg *model.ParseConfiguration) *arrow.Schema {
	fields := make([]arrow.Field, cfg.NumColumns())
	for i, name := range cfg.ColumnNames {
		fields[i] = arrow.Field{Name: name, Type: arrowType(cfg.ColumnTypes[i]), Nullable: true}
		if cfg.ColumnTypes[i] == model.ColumnTypeCategorical {
			fields[i].Metadata = arrow.NewMetadata([]string{DomainKey}, []string{strings.Join(cfg.Domain(i), ",")})
		}
	}
	return arrow.NewSchema(fields, nil)
}

// Domains reads the categorical domains back from a schema built by Schema.
// Columns without a domain get nil.
func Domains(s *arrow.Schema) [][]string {
	out := make([][]string, s.NumFields())
	for i, f := range s.Fields() {
		if v, ok := f.Metadata.GetValue(DomainKey); ok && v != "" {
			out[i] = strings.Split(v, ",")
		}
	}
	return out
}

func arrowType(ct model.ColumnType) arrow.DataType {
	switch ct {
	case model.ColumnTypeCategorical:
		return arrow.PrimitiveTypes.Int32
	case model.ColumnTypeString:
		return arrow.BinaryTypes.String
	default:
		return arrow.PrimitiveTypes.Float64
	}
}

// Frame receives the cells of one chunk, one call per column per row.
type Frame struct {
	types []model.ColumnType
	b     *array.RecordBuilder
	rows  int
	err   error
}

// New creates an empty frame for cfg.
func New(mem memory.Allocator, cfg *model.ParseConfiguration) *Frame {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	return &Frame{
		types: cfg.ColumnTypes,
		b:     array.NewRecordBuilder(mem, Schema(cfg)),
	}
}

// AddNumber appends mantissa * 10^exp. On a categorical column the value is
// the domain ordinal and exp must be 0.
func (f *Frame) AddNumber(col int, mantissa int64, exp int) {
	switch bld := f.builder(col).(type) {
	case *array.Float64Builder:
		v := float64(mantissa)
		switch {
		case exp > 0:
			v *= math.Pow10(exp)
		case exp < 0:
			v /= math.Pow10(-exp)
		}
		bld.Append(v)
	case *array.Int32Builder:
		if exp != 0 || mantissa < 0 || mantissa > math.MaxInt32 {
			f.fail(errors.AssertionFailedf("categorical column %d got %de%d", col, mantissa, exp))
			bld.AppendNull()
			return
		}
		bld.Append(int32(mantissa))
	default:
		f.mismatch(col, "number")
	}
}

// AddFloat appends a floating point value to a numeric column.
func (f *Frame) AddFloat(col int, v float64) {
	if bld, ok := f.builder(col).(*array.Float64Builder); ok {
		bld.Append(v)
		return
	}
	f.mismatch(col, "float")
}

// AddString appends raw bytes to a string column.
func (f *Frame) AddString(col int, b []byte) {
	if bld, ok := f.builder(col).(*array.StringBuilder); ok {
		bld.BinaryBuilder.Append(b)
		return
	}
	f.mismatch(col, "string")
}

// AddInvalid marks the cell as missing.
func (f *Frame) AddInvalid(col int) {
	if bld := f.builder(col); bld != nil {
		bld.AppendNull()
	}
}

// EndRow closes the current row. It fails when a column did not receive
// exactly one value for the row, or when an earlier cell was rejected.
func (f *Frame) EndRow() error {
	if f.err != nil {
		return f.err
	}
	want := f.rows + 1
	for i, bld := range f.b.Fields() {
		if bld.Len() != want {
			f.fail(errors.AssertionFailedf("column %d has %d values at row %d", i, bld.Len(), f.rows))
			return f.err
		}
	}
	f.rows++
	return nil
}

// Rows returns the number of completed rows
func (f *Frame) Rows() int {
	return f.rows
}

// NewRecord hands the buffered rows over as a record and resets the frame.
func (f *Frame) NewRecord() arrow.Record {
	f.rows = 0
	return f.b.NewRecord()
}

// Release frees the builders.
func (f *Frame) Release() {
	f.b.Release()
}

func (f *Frame) builder(col int) array.Builder {
	if col < 0 || col >= len(f.types) {
		f.fail(errors.AssertionFailedf("column %d out of range [0,%d)", col, len(f.types)))
		return nil
	}
	return f.b.Field(col)
}

func (f *Frame) mismatch(col int, what string) {
	if col < 0 || col >= len(f.types) {
		return
	}
	f.fail(errors.AssertionFailedf("%s written to %s column %d", errors.Safe(what), f.types[col], col))
	f.b.Field(col).AppendNull()
}

func (f *Frame) fail(err error) {
	if f.err == nil {
		f.err = err
	}
}
