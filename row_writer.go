package chunkparse

import (
	"github.com/cockroachdb/errors"
	"github.com/nao1215/chunkparse/container"
	"github.com/nao1215/chunkparse/domain/model"
)

// Sink receives the cells of parsed rows. Every row gets exactly one Add
// call per column, in column order, followed by EndRow.
type Sink interface {
	// AddNumber adds mantissa * 10^exp. Categorical columns get the domain
	// ordinal with exp 0.
	AddNumber(col int, mantissa int64, exp int)
	// AddFloat adds a floating point value
	AddFloat(col int, v float64)
	// AddString adds the raw bytes of a string cell
	AddString(col int, b []byte)
	// AddInvalid marks the cell as missing
	AddInvalid(col int)
	// EndRow closes the row
	EndRow() error
}

// writeRow writes one record as one row. Column c takes the value of the
// flattened field flat[c].
func writeRow(sink Sink, flat []model.FlatField, types []model.ColumnType, rec container.Record) error {
	for c, f := range flat {
		if f.Position < 0 || f.Position >= len(rec) {
			return errors.AssertionFailedf("field %q at position %d outside record of %d fields",
				errors.Safe(f.Name), f.Position, len(rec))
		}
		if err := writeCell(sink, c, f, types[c], rec[f.Position]); err != nil {
			return err
		}
	}
	return sink.EndRow()
}

func writeCell(sink Sink, col int, f model.FlatField, target model.ColumnType, v any) error {
	if v == nil || f.Kind == model.KindNull {
		sink.AddInvalid(col)
		return nil
	}
	if want := model.ColumnTypeOf(f.Kind); want != target {
		return errors.AssertionFailedf("field %q of kind %s mapped to %s column %d",
			errors.Safe(f.Name), f.Kind, target, col)
	}

	switch val := v.(type) {
	case bool:
		var n int64
		if val {
			n = 1
		}
		sink.AddNumber(col, n, 0)
	case int32:
		sink.AddNumber(col, int64(val), 0)
	case int64:
		sink.AddNumber(col, val, 0)
	case float32:
		sink.AddFloat(col, float64(val))
	case float64:
		sink.AddFloat(col, val)
	case container.Enum:
		sink.AddNumber(col, int64(val.Ordinal), 0)
	case string:
		sink.AddString(col, []byte(val))
	case []byte:
		sink.AddString(col, val)
	default:
		return errors.AssertionFailedf("field %q of kind %s decoded as %T", errors.Safe(f.Name), f.Kind, v)
	}
	return nil
}
