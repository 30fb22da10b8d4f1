package chunkparse

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/hamba/avro/v2/ocf"
	"github.com/nao1215/chunkparse/chunkstore"
	"github.com/nao1215/chunkparse/container"
	"github.com/nao1215/chunkparse/domain/model"
	"github.com/nao1215/chunkparse/internal/ocftest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eventSchema = `{
  "type": "record",
  "name": "Event",
  "fields": [
    {"name": "id", "type": "long"},
    {"name": "name", "type": ["null", "string"]},
    {"name": "color", "type": {"type": "enum", "name": "Color", "symbols": ["BLUE", "GREEN", "RED"]}},
    {"name": "tags", "type": {"type": "array", "items": "string"}},
    {"name": "score", "type": "double"},
    {"name": "flag", "type": "boolean"},
    {"name": "small", "type": "int"},
    {"name": "ratio", "type": "float"},
    {"name": "payload", "type": "bytes"}
  ]
}`

var eventColumns = []string{"id", "name", "color", "score", "flag", "small", "ratio", "payload"}

var eventColors = []string{"BLUE", "GREEN", "RED"}

type event struct {
	ID      int64    `avro:"id"`
	Name    *string  `avro:"name"`
	Color   string   `avro:"color"`
	Tags    []string `avro:"tags"`
	Score   float64  `avro:"score"`
	Flag    bool     `avro:"flag"`
	Small   int32    `avro:"small"`
	Ratio   float32  `avro:"ratio"`
	Payload []byte   `avro:"payload"`
}

func events(n int) []any {
	out := make([]any, n)
	for i := range out {
		e := event{
			ID:      int64(i),
			Color:   eventColors[i%len(eventColors)],
			Tags:    []string{"a", "b"},
			Score:   float64(i) / 2,
			Flag:    i%2 == 0,
			Small:   int32(i * 3),
			Ratio:   float32(i) / 4,
			Payload: []byte(fmt.Sprintf("p%d", i)),
		}
		if i%4 != 0 {
			name := fmt.Sprintf("name-%d", i)
			e.Name = &name
		}
		out[i] = e
	}
	return out
}

// wantEvent is row i as collected by a sink without domains.
func wantEvent(i int) []any {
	var name any
	if i%4 != 0 {
		name = fmt.Sprintf("name-%d", i)
	}
	var flag int64
	if i%2 == 0 {
		flag = 1
	}
	return []any{int64(i), name, int64(i % 3), float64(i) / 2, flag, int64(i * 3), float64(i) / 4, fmt.Sprintf("p%d", i)}
}

func wantEvents(n int) [][]any {
	out := make([][]any, n)
	for i := range out {
		out[i] = wantEvent(i)
	}
	return out
}

// newCollectSink returns a sink that keeps rows as plain values, with
// categorical cells as ordinals.
func newCollectSink(cfg *model.ParseConfiguration) *previewSink {
	return &previewSink{domains: make([][]string, cfg.NumColumns()), width: cfg.NumColumns()}
}

func configFor(t *testing.T, data []byte) *model.ParseConfiguration {
	t.Helper()

	res, err := Preview(data)
	require.NoError(t, err)
	return res.Config
}

func cloneConfig(cfg *model.ParseConfiguration) *model.ParseConfiguration {
	c := *cfg
	c.Header = bytes.Clone(cfg.Header)
	c.ColumnNames = slices.Clone(cfg.ColumnNames)
	c.ColumnTypes = slices.Clone(cfg.ColumnTypes)
	c.Domains = make([][]string, len(cfg.Domains))
	for i, d := range cfg.Domains {
		c.Domains[i] = slices.Clone(d)
	}
	return &c
}

// parseAll parses every chunk of store in index order into one sink.
func parseAll(t *testing.T, store chunkstore.Store, cfg *model.ParseConfiguration) ([][]any, []ChunkResult) {
	t.Helper()

	sink := newCollectSink(cfg)
	results := make([]ChunkResult, store.NumChunks())
	for i := range store.NumChunks() {
		res, err := ParseChunk(context.Background(), store, i, cfg, sink)
		require.NoError(t, err)
		require.NoError(t, res.Err, "chunk %d", i)
		results[i] = res
	}
	return sink.rows, results
}

// maxMarkerGap returns the largest distance between consecutive sync markers.
func maxMarkerGap(data, sync []byte) int {
	var offsets []int
	for off := 0; ; {
		i := bytes.Index(data[off:], sync)
		if i < 0 {
			break
		}
		offsets = append(offsets, off+i)
		off += i + 1
	}
	gap := 0
	for i := 1; i < len(offsets); i++ {
		gap = max(gap, offsets[i]-offsets[i-1])
	}
	return gap
}

func TestParseChunk_PartitionCompleteness(t *testing.T) {
	t.Parallel()

	const n = 120
	codecs := []ocf.CodecName{ocf.Null, ocf.Deflate, ocf.Snappy, ocf.ZStandard}
	chunkSizes := []int{1, 2, 3, 7, 16, 17, 31, 64, 100, 257, 1000, 4096, 1 << 20}

	for _, codec := range codecs {
		data := ocftest.Encode(t, eventSchema, events(n), ocf.WithCodec(codec), ocf.WithBlockLength(7))
		cfg := configFor(t, data)

		for _, size := range chunkSizes {
			t.Run(fmt.Sprintf("%s/%d", codec, size), func(t *testing.T) {
				t.Parallel()

				store, err := chunkstore.NewMemory(data, size)
				require.NoError(t, err)

				rows, results := parseAll(t, store, cfg)
				assert.Equal(t, wantEvents(n), rows)

				var blocks int64
				for _, res := range results {
					blocks += res.Blocks
				}
				assert.Equal(t, int64((n+6)/7), blocks, "every block is decoded exactly once")
			})
		}
	}
}

func TestParseChunk_OwnershipExclusive(t *testing.T) {
	t.Parallel()

	data := ocftest.Encode(t, eventSchema, events(60), ocf.WithBlockLength(5))
	cfg := configFor(t, data)
	hdr, err := container.ParseHeader(cfg.Header)
	require.NoError(t, err)

	for _, size := range []int{5, 13, 40, 90} {
		store, err := chunkstore.NewMemory(data, size)
		require.NoError(t, err)

		owners := make(map[int64]int)
		for i := range store.NumChunks() {
			start := int64(i * size)
			end := min(start+int64(size), int64(len(data)))
			for off := start; off < end; off++ {
				if off+container.SyncSize <= int64(len(data)) &&
					bytes.Equal(data[off:off+container.SyncSize], hdr.Sync[:]) &&
					container.OwnsBlock(0, end-start, off-start) {
					owners[off]++
				}
			}
		}
		for off, count := range owners {
			assert.Equal(t, 1, count, "marker at %d with chunk size %d", off, size)
		}
		assert.Len(t, owners, 60/5+1, "header marker plus one trailing marker per block")
	}
}

func TestParseChunk_LazyLoadTerminates(t *testing.T) {
	t.Parallel()

	data := ocftest.Encode(t, eventSchema, events(80), ocf.WithBlockLength(9))
	cfg := configFor(t, data)
	hdr, err := container.ParseHeader(cfg.Header)
	require.NoError(t, err)
	gap := maxMarkerGap(data, hdr.Sync[:])

	for _, size := range []int{8, 33, 128} {
		store, err := chunkstore.NewMemory(data, size)
		require.NoError(t, err)

		for i := range store.NumChunks() {
			res, err := ParseChunk(context.Background(), store, i, cfg, newCollectSink(cfg))
			require.NoError(t, err)
			assert.Less(t, res.ExtraChunks*size, gap+2*container.SyncSize+size,
				"chunk %d of size %d loaded %d extra chunks", i, size, res.ExtraChunks)
		}
	}
}

func TestParseChunk_Cases(t *testing.T) {
	t.Parallel()

	t.Run("single chunk with one block of three records", func(t *testing.T) {
		t.Parallel()

		data := ocftest.Encode(t, eventSchema, events(3))
		cfg := configFor(t, data)
		store, err := chunkstore.NewMemory(data, len(data))
		require.NoError(t, err)

		sink := newCollectSink(cfg)
		res, err := ParseChunk(context.Background(), store, 0, cfg, sink)
		require.NoError(t, err)
		require.NoError(t, res.Err)
		assert.Equal(t, int64(3), res.Rows)
		assert.Equal(t, int64(1), res.Blocks)
		assert.Equal(t, wantEvents(3), sink.rows)
	})

	t.Run("range starting inside a block yields no rows", func(t *testing.T) {
		t.Parallel()

		data := ocftest.Encode(t, eventSchema, events(200), ocf.WithBlockLength(1000))
		cfg := configFor(t, data)
		size := len(cfg.Header) + 64
		require.Less(t, 2*size, len(data)-container.SyncSize, "chunk 1 must lie inside the only block")

		store, err := chunkstore.NewMemory(data, size)
		require.NoError(t, err)

		sink := newCollectSink(cfg)
		res, err := ParseChunk(context.Background(), store, 1, cfg, sink)
		require.NoError(t, err)
		require.NoError(t, res.Err)
		assert.Zero(t, res.Rows)
		assert.Zero(t, res.Blocks)
		assert.Empty(t, sink.rows)
	})

	t.Run("enum symbol is written as its ordinal", func(t *testing.T) {
		t.Parallel()

		data := ocftest.Encode(t, eventSchema, events(3))
		cfg := configFor(t, data)
		store, err := chunkstore.NewMemory(data, len(data))
		require.NoError(t, err)

		sink := newCollectSink(cfg)
		_, err = ParseChunk(context.Background(), store, 0, cfg, sink)
		require.NoError(t, err)
		require.Len(t, sink.rows, 3)
		assert.Equal(t, int64(2), sink.rows[2][2])
		assert.Equal(t, eventColors[2], cfg.Domain(2)[2], "ordinal indexes the configured domain")
	})

	t.Run("null field is written as a missing cell", func(t *testing.T) {
		t.Parallel()

		data := ocftest.Encode(t, eventSchema, events(5))
		cfg := configFor(t, data)
		store, err := chunkstore.NewMemory(data, len(data))
		require.NoError(t, err)

		rec := &recordingSink{}
		_, err = ParseChunk(context.Background(), store, 0, cfg, rec)
		require.NoError(t, err)
		assert.Equal(t, []string{"invalid:1", "invalid:1"}, rec.invalid(), "rows 0 and 4 have no name")
	})

	t.Run("store exhausted mid-block keeps decoded rows", func(t *testing.T) {
		t.Parallel()

		full := ocftest.Encode(t, eventSchema, events(10), ocf.WithBlockLength(3))
		cfg := configFor(t, full)
		data := full[:len(full)-10]

		store, err := chunkstore.NewMemory(data, len(data))
		require.NoError(t, err)

		sink := newCollectSink(cfg)
		res, err := ParseChunk(context.Background(), store, 0, cfg, sink)
		require.NoError(t, err)
		require.Error(t, res.Err)
		assert.True(t, errors.Is(res.Err, ErrTransientDecode))
		assert.Equal(t, int64(9), res.Rows)
		assert.Equal(t, wantEvents(9), sink.rows)
	})
}

func TestParseChunk_SchemaMismatch(t *testing.T) {
	t.Parallel()

	data := ocftest.Encode(t, eventSchema, events(6))
	base := configFor(t, data)

	tests := []struct {
		name   string
		modify func(c *model.ParseConfiguration)
	}{
		{
			name: "domain in another order",
			modify: func(c *model.ParseConfiguration) {
				slices.Reverse(c.Domains[2])
			},
		},
		{
			name: "domain with an extra label",
			modify: func(c *model.ParseConfiguration) {
				c.Domains[2] = append(c.Domains[2], "YELLOW")
			},
		},
		{
			name: "renamed column",
			modify: func(c *model.ParseConfiguration) {
				c.ColumnNames[0] = "key"
			},
		},
		{
			name: "missing column",
			modify: func(c *model.ParseConfiguration) {
				c.ColumnNames = c.ColumnNames[:7]
				c.ColumnTypes = c.ColumnTypes[:7]
				c.Domains = c.Domains[:7]
			},
		},
		{
			name: "changed column type",
			modify: func(c *model.ParseConfiguration) {
				c.ColumnTypes[3] = model.ColumnTypeString
			},
		},
		{
			name: "fingerprint of another header",
			modify: func(c *model.ParseConfiguration) {
				c.Fingerprint++
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := cloneConfig(base)
			tt.modify(cfg)
			store, err := chunkstore.NewMemory(data, len(data))
			require.NoError(t, err)

			sink := newCollectSink(cfg)
			res, err := ParseChunk(context.Background(), store, 0, cfg, sink)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrSchemaMismatch), "got %v", err)
			assert.Zero(t, res.Rows)
			assert.Empty(t, sink.rows)
		})
	}
}

func TestParseChunk_HeaderReconstructionIsIdempotent(t *testing.T) {
	t.Parallel()

	data := ocftest.Encode(t, eventSchema, events(30), ocf.WithBlockLength(4))
	cfg := configFor(t, data)
	header := bytes.Clone(cfg.Header)

	store, err := chunkstore.NewMemory(data, 50)
	require.NoError(t, err)

	first, _ := parseAll(t, store, cfg)
	second, _ := parseAll(t, store, cfg)
	assert.Equal(t, first, second)
	assert.Equal(t, header, cfg.Header, "parsing never mutates the stored header")
}

func TestParseChunk_StoreError(t *testing.T) {
	t.Parallel()

	data := ocftest.Encode(t, eventSchema, events(20), ocf.WithBlockLength(4))
	cfg := configFor(t, data)
	mem, err := chunkstore.NewMemory(data, 64)
	require.NoError(t, err)

	t.Run("first chunk", func(t *testing.T) {
		t.Parallel()

		store := &failingStore{Store: mem, failAt: 0}
		res, err := ParseChunk(context.Background(), store, 0, cfg, newCollectSink(cfg))
		require.NoError(t, err)
		assert.True(t, errors.Is(res.Err, ErrTransientDecode))
		assert.True(t, errors.Is(res.Err, errStoreDown))
	})

	t.Run("following chunk", func(t *testing.T) {
		t.Parallel()

		store := &failingStore{Store: mem, failAt: 1}
		res, err := ParseChunk(context.Background(), store, 0, cfg, newCollectSink(cfg))
		require.NoError(t, err)
		assert.True(t, errors.Is(res.Err, ErrTransientDecode))
		assert.True(t, errors.Is(res.Err, errStoreDown))
	})
}

func TestParseChunk_LeadingBytes(t *testing.T) {
	t.Parallel()

	data := ocftest.Encode(t, eventSchema, events(40), ocf.WithBlockLength(6))
	cfg := configFor(t, data)
	prefixed := append([]byte("junk!"), data...)

	for _, size := range []int{3, 50, 200, 64 << 10} {
		t.Run(fmt.Sprintf("chunk size %d", size), func(t *testing.T) {
			t.Parallel()

			mem, err := chunkstore.NewMemory(prefixed, size)
			require.NoError(t, err)
			store := &offsetStore{Store: mem, offset: 5}

			got, _ := parseAll(t, store, cfg)
			assert.Equal(t, wantEvents(40), got)
		})
	}
}

func TestBindColumns(t *testing.T) {
	t.Parallel()

	data := ocftest.Encode(t, eventSchema, events(1))
	cfg := configFor(t, data)
	hdr, err := container.ParseHeader(cfg.Header)
	require.NoError(t, err)

	flat, err := bindColumns(cfg, hdr)
	require.NoError(t, err)
	names := make([]string, len(flat))
	for i, f := range flat {
		names[i] = f.Name
	}
	assert.Equal(t, eventColumns, names)
	assert.Equal(t, 4, flat[3].Position, "tags is skipped")
}

var errStoreDown = errors.New("store down")

// failingStore fails to fetch one chunk.
type failingStore struct {
	chunkstore.Store
	failAt int
}

func (f *failingStore) Chunk(ctx context.Context, idx int) ([]byte, error) {
	if idx == f.failAt {
		return nil, errStoreDown
	}
	return f.Store.Chunk(ctx, idx)
}

// offsetStore starts the first chunk offset bytes in.
type offsetStore struct {
	chunkstore.Store
	offset int64
}

func (o *offsetStore) ChunkStartOffset(idx int) int64 {
	if idx == 0 {
		return o.offset
	}
	return o.Store.ChunkStartOffset(idx)
}

// recordingSink records every call as "kind:col".
type recordingSink struct {
	calls []string
}

func (r *recordingSink) AddNumber(col int, _ int64, _ int) {
	r.calls = append(r.calls, fmt.Sprintf("number:%d", col))
}

func (r *recordingSink) AddFloat(col int, _ float64) {
	r.calls = append(r.calls, fmt.Sprintf("float:%d", col))
}

func (r *recordingSink) AddString(col int, _ []byte) {
	r.calls = append(r.calls, fmt.Sprintf("string:%d", col))
}

func (r *recordingSink) AddInvalid(col int) {
	r.calls = append(r.calls, fmt.Sprintf("invalid:%d", col))
}

func (r *recordingSink) EndRow() error {
	r.calls = append(r.calls, "end")
	return nil
}

func (r *recordingSink) invalid() []string {
	var out []string
	for _, c := range r.calls {
		if len(c) > 8 && c[:8] == "invalid:" {
			out = append(out, c)
		}
	}
	return out
}
