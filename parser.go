package chunkparse

import (
	"context"
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/nao1215/chunkparse/chunkstore"
	"github.com/nao1215/chunkparse/container"
	"github.com/nao1215/chunkparse/domain/model"
	"github.com/nao1215/chunkparse/stream"
)

// ChunkResult describes what one chunk contributed to the parse.
type ChunkResult struct {
	// Index is the chunk index
	Index int
	// Rows is the number of rows written to the sink
	Rows int64
	// StartOffset is where the chunk's range starts within the chunk
	StartOffset int64
	// Blocks is the number of blocks decoded
	Blocks int64
	// BlockCount is the record count of the last block read
	BlockCount int64
	// BlockSize is the compressed size of the last block read
	BlockSize int64
	// ExtraChunks is the number of following chunks loaded
	ExtraChunks int
	// Err is the transient failure that stopped the chunk early, if any
	Err error
}

// ParseOptions configures a single chunk parse.
type ParseOptions struct {
	// OnLoad is called whenever a following chunk is loaded
	OnLoad func(start, loaded int)
}

// ParseChunk decodes the records owned by chunk idx into sink. A block is
// owned by the chunk whose range holds the first byte of the block's
// leading sync marker.
//
// Transient failures (malformed or truncated blocks, store errors) end the
// chunk early: the rows already written stay in sink and the failure is
// returned in ChunkResult.Err. A returned error is fatal: a schema mismatch
// (no rows are written) or a broken invariant.
func ParseChunk(ctx context.Context, store chunkstore.Store, idx int, cfg *model.ParseConfiguration, sink Sink, opts ...ParseOptions) (res ChunkResult, err error) {
	var opt ParseOptions
	if len(opts) > 0 {
		opt = opts[0]
	}
	res.Index = idx

	// Rebuild the header state from the stored bytes for every chunk
	hdr, err := container.ParseHeader(cfg.Header)
	if err != nil {
		return res, NewErrorContext("parse header").WithChunk(idx).Error(mismatch(err))
	}
	flat, err := bindColumns(cfg, hdr)
	if err != nil {
		return res, NewErrorContext("bind columns").WithChunk(idx).Error(err)
	}

	var streamOpts []stream.Option
	if opt.OnLoad != nil {
		streamOpts = append(streamOpts, stream.WithLoadHook(opt.OnLoad))
	}
	st, err := stream.New(ctx, store, idx, streamOpts...)
	if err != nil {
		res.Err = transient(idx, err)
		return res, nil
	}
	defer func() {
		res.ExtraChunks = st.ExtraChunks()
	}()

	start, end := st.Tell(), st.OwnedEnd()
	res.StartOffset = start
	if start >= end {
		return res, nil
	}

	rdr, err := container.Open(st, start, hdr, container.WithLimit(end))
	if err != nil {
		res.Err = transient(idx, err)
		return res, nil
	}

	for rdr.HasNext() && container.OwnsBlock(start, end, rdr.PreviousSync()) {
		rec, err := rdr.Next()
		if err != nil {
			break
		}
		if err := writeRow(sink, flat, cfg.ColumnTypes, rec); err != nil {
			return res, NewErrorContext("write row").WithChunk(idx).Error(err)
		}
		res.Rows++
	}
	res.Blocks = rdr.Blocks()
	res.BlockCount = rdr.BlockCount()
	res.BlockSize = rdr.BlockSize()

	if err := rdr.Err(); err != nil {
		res.Err = transient(idx, err)
	} else if err := st.Err(); err != nil {
		res.Err = transient(idx, err)
	}
	return res, nil
}

// bindColumns flattens the header schema and checks it against the
// configured columns: same count, same names, same types and, for
// categorical columns, the same symbols in the same order.
func bindColumns(cfg *model.ParseConfiguration, hdr *container.Header) ([]model.FlatField, error) {
	if cfg.Fingerprint != 0 && cfg.Fingerprint != model.Fingerprint(cfg.Header) {
		return nil, mismatch(errors.Wrap(model.ErrFingerprintMismatch, "stored header"))
	}

	flat := model.Flatten(hdr.Schema)
	if len(flat) != cfg.NumColumns() {
		return nil, mismatch(errors.Newf("schema has %d supported fields, configuration has %d columns",
			len(flat), cfg.NumColumns()))
	}
	if len(cfg.ColumnTypes) != len(flat) {
		return nil, errors.AssertionFailedf("%d column names but %d column types",
			cfg.NumColumns(), len(cfg.ColumnTypes))
	}

	for i, f := range flat {
		if f.Name != cfg.ColumnNames[i] {
			return nil, mismatch(errors.Newf("column %d is %q in the schema but %q in the configuration",
				i, f.Name, cfg.ColumnNames[i]))
		}
		want := model.ColumnTypeOf(f.Kind)
		if want != cfg.ColumnTypes[i] {
			return nil, mismatch(errors.Newf("column %q is %s in the schema but %s in the configuration",
				f.Name, want, cfg.ColumnTypes[i]))
		}
		if f.Kind == model.KindEnum && !slices.Equal(f.Symbols, cfg.Domain(i)) {
			return nil, mismatch(errors.Newf("column %q has symbols %v in the schema but domain %v in the configuration",
				f.Name, f.Symbols, cfg.Domain(i)))
		}
	}
	return flat, nil
}
