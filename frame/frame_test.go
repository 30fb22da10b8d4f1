package frame

import (
	"testing"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/memory"
	"github.com/cockroachdb/errors"
	"github.com/nao1215/chunkparse/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfiguration() *model.ParseConfiguration {
	return &model.ParseConfiguration{
		Header:      []byte("h"),
		ColumnNames: []string{"n", "c", "s", "b"},
		ColumnTypes: []model.ColumnType{
			model.ColumnTypeNumeric,
			model.ColumnTypeCategorical,
			model.ColumnTypeString,
			model.ColumnTypeBad,
		},
		Domains: [][]string{nil, {"BLUE", "GREEN", "RED"}, nil, nil},
	}
}

func TestSchema(t *testing.T) {
	t.Parallel()

	s := Schema(testConfiguration())
	require.Equal(t, 4, s.NumFields())
	assert.Equal(t, arrow.PrimitiveTypes.Float64, s.Field(0).Type)
	assert.Equal(t, arrow.PrimitiveTypes.Int32, s.Field(1).Type)
	assert.Equal(t, arrow.BinaryTypes.String, s.Field(2).Type)
	assert.Equal(t, arrow.PrimitiveTypes.Float64, s.Field(3).Type)
	for _, f := range s.Fields() {
		assert.True(t, f.Nullable)
	}
	assert.False(t, s.Field(0).HasMetadata())
	assert.Equal(t, [][]string{nil, {"BLUE", "GREEN", "RED"}, nil, nil}, Domains(s))
}

func TestFrame_Rows(t *testing.T) {
	t.Parallel()

	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	cfg := testConfiguration()
	f := New(mem, cfg)
	defer f.Release()

	f.AddNumber(0, 15, -1)
	f.AddNumber(1, 2, 0)
	f.AddString(2, []byte("hello"))
	f.AddInvalid(3)
	require.NoError(t, f.EndRow())

	f.AddFloat(0, 2.5)
	f.AddInvalid(1)
	f.AddInvalid(2)
	f.AddInvalid(3)
	require.NoError(t, f.EndRow())
	assert.Equal(t, 2, f.Rows())

	rec := f.NewRecord()
	defer rec.Release()
	assert.Equal(t, 0, f.Rows())
	require.Equal(t, int64(2), rec.NumRows())

	num := rec.Column(0).(*array.Float64)
	assert.InDelta(t, 1.5, num.Value(0), 1e-12)
	assert.Equal(t, 2.5, num.Value(1))

	cat := rec.Column(1).(*array.Int32)
	assert.Equal(t, int32(2), cat.Value(0))
	assert.True(t, cat.IsNull(1))

	str := rec.Column(2).(*array.String)
	assert.Equal(t, "hello", str.Value(0))
	assert.True(t, str.IsNull(1))

	assert.Equal(t, 2, rec.Column(3).NullN())

	tbl := array.NewTableFromRecords(Schema(cfg), []arrow.Record{rec})
	defer tbl.Release()

	var got [][]any
	err := EachRow(tbl, cfg.Domains, func(row []any) error {
		got = append(got, append([]any(nil), row...))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, [][]any{
		{1.5, "RED", "hello", nil},
		{2.5, nil, nil, nil},
	}, got)
}

func TestFrame_Violations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		write func(f *Frame)
	}{
		{
			name: "missing column",
			write: func(f *Frame) {
				f.AddNumber(0, 1, 0)
				f.AddNumber(1, 0, 0)
				f.AddString(2, nil)
			},
		},
		{
			name: "column written twice",
			write: func(f *Frame) {
				f.AddNumber(0, 1, 0)
				f.AddNumber(0, 1, 0)
				f.AddNumber(1, 0, 0)
				f.AddString(2, nil)
				f.AddInvalid(3)
			},
		},
		{
			name: "string into numeric column",
			write: func(f *Frame) {
				f.AddString(0, []byte("x"))
				f.AddNumber(1, 0, 0)
				f.AddString(2, nil)
				f.AddInvalid(3)
			},
		},
		{
			name: "float into categorical column",
			write: func(f *Frame) {
				f.AddNumber(0, 1, 0)
				f.AddFloat(1, 1)
				f.AddString(2, nil)
				f.AddInvalid(3)
			},
		},
		{
			name: "column out of range",
			write: func(f *Frame) {
				f.AddInvalid(9)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := New(nil, testConfiguration())
			defer f.Release()

			tt.write(f)
			err := f.EndRow()
			require.Error(t, err)
			assert.True(t, errors.IsAssertionFailure(err), "got %v", err)
		})
	}
}
