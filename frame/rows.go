package frame

import (
	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/cockroachdb/errors"
)

// batchRows is the record batch size used when walking a table
const batchRows = 4096

// EachRow calls fn for every row of tbl. Missing cells are nil, numeric
// cells float64, string cells string. Categorical cells are the domain
// label when domains[col] knows the ordinal and the int64 ordinal otherwise.
// The row slice is reused between calls.
func EachRow(tbl arrow.Table, domains [][]string, fn func(row []any) error) error {
	tr := array.NewTableReader(tbl, batchRows)
	defer tr.Release()

	row := make([]any, tbl.NumCols())
	for tr.Next() {
		rec := tr.Record()
		for i := range int(rec.NumRows()) {
			for j, col := range rec.Columns() {
				var domain []string
				if j < len(domains) {
					domain = domains[j]
				}
				row[j] = cellValue(col, i, domain)
			}
			if err := fn(row); err != nil {
				return err
			}
		}
	}
	if err := tr.Err(); err != nil {
		return errors.Wrap(err, "read table records")
	}
	return nil
}

func cellValue(col arrow.Array, i int, domain []string) any {
	if col.IsNull(i) {
		return nil
	}
	switch a := col.(type) {
	case *array.Float64:
		return a.Value(i)
	case *array.Int32:
		ord := a.Value(i)
		if ord >= 0 && int(ord) < len(domain) {
			return domain[ord]
		}
		return int64(ord)
	case *array.String:
		return a.Value(i)
	default:
		return col.ValueStr(i)
	}
}
