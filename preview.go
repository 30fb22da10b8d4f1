package chunkparse

import (
	"bytes"
	"math"

	"github.com/cockroachdb/errors"
	"github.com/nao1215/chunkparse/container"
	"github.com/nao1215/chunkparse/domain/model"
)

const (
	// DefaultChunkSize is recommended when the sample holds no complete block
	DefaultChunkSize = 4 << 20
	// MinChunkSize is the smallest recommended chunk size
	MinChunkSize = 64 << 10
	// DefaultPreviewRows is the number of rows decoded for the preview
	DefaultPreviewRows = 10

	// blockOverhead bounds the framing around a block payload: two varints
	// of at most 10 bytes each and the trailing sync marker
	blockOverhead = 2*10 + container.SyncSize
)

// PreviewOptions configures Preview.
type PreviewOptions struct {
	// Rows is the maximum number of preview rows to decode
	Rows int
	// MinChunkSize floors the recommended chunk size
	MinChunkSize int64
}

// NewPreviewOptions creates the default preview options.
func NewPreviewOptions() PreviewOptions {
	return PreviewOptions{
		Rows:         DefaultPreviewRows,
		MinChunkSize: MinChunkSize,
	}
}

// WithRows sets the number of preview rows.
func (o PreviewOptions) WithRows(n int) PreviewOptions {
	o.Rows = n
	return o
}

// WithMinChunkSize sets the floor of the recommended chunk size.
func (o PreviewOptions) WithMinChunkSize(n int64) PreviewOptions {
	o.MinChunkSize = n
	return o
}

// PreviewResult is the outcome of a preview.
type PreviewResult struct {
	// Config is the parse configuration for the whole file
	Config *model.ParseConfiguration
	// BlockCount is the record count of the first block, if the sample holds it
	BlockCount int64
	// Rows holds the first decoded rows, one value per column: nil for a
	// missing cell, int64 or float64 for numbers, the label for categories
	// and string for strings
	Rows [][]any
	// Excluded lists the fields left out of the columns
	Excluded []error
}

// Preview derives the parse configuration of a container file from a
// sample of its leading bytes. The sample must hold the whole header; it
// should hold the first block so that a block-aligned chunk size can be
// recommended.
func Preview(sample []byte, opts ...PreviewOptions) (*PreviewResult, error) {
	opt := NewPreviewOptions()
	if len(opts) > 0 {
		opt = opts[0]
	}

	// Open the header
	hdr, err := container.ParseHeader(sample)
	if err != nil {
		return nil, NewErrorContext("preview").Error(errors.Mark(err, ErrFormatNotRecognized))
	}

	// Flatten the schema into columns
	flat := model.Flatten(hdr.Schema)
	if len(flat) == 0 {
		return nil, NewErrorContext("preview").
			WithDetails(string(hdr.Schema.Type()) + " schema").
			Error(errors.Mark(ErrNoSupportedColumns, ErrFormatNotRecognized))
	}

	headerBytes := bytes.Clone(sample[:hdr.Len])
	cfg := &model.ParseConfiguration{
		Header:      headerBytes,
		ColumnNames: make([]string, len(flat)),
		ColumnTypes: make([]model.ColumnType, len(flat)),
		Domains:     make([][]string, len(flat)),
		Codec:       hdr.Codec,
		Fingerprint: model.Fingerprint(headerBytes),
	}
	for i, f := range flat {
		cfg.ColumnNames[i] = f.Name
		cfg.ColumnTypes[i] = model.ColumnTypeOf(f.Kind)
		if f.Kind == model.KindEnum {
			cfg.Domains[i] = f.Symbols
		}
	}

	res := &PreviewResult{
		Config:   cfg,
		Excluded: model.Unsupported(hdr.Schema),
	}

	// Read the first block, if the sample holds it
	markerAt := hdr.Len - container.SyncSize
	rdr, err := container.Open(bytes.NewReader(sample[markerAt:]), markerAt, hdr)
	if err != nil {
		return nil, NewErrorContext("preview").Error(errors.Mark(err, ErrFormatNotRecognized))
	}
	if rdr.HasNext() {
		res.BlockCount = rdr.BlockCount()
		cfg.BlockSize = rdr.BlockSize()
		cfg.ChunkSize = max(cfg.BlockSize+blockOverhead, opt.MinChunkSize)
	} else {
		cfg.ChunkSize = DefaultChunkSize
	}

	// Decode the preview rows; a sample cut inside a later block just ends them
	sink := &previewSink{domains: cfg.Domains, width: len(flat)}
	for len(sink.rows) < opt.Rows && rdr.HasNext() {
		rec, err := rdr.Next()
		if err != nil {
			break
		}
		if err := writeRow(sink, flat, cfg.ColumnTypes, rec); err != nil {
			return nil, err
		}
	}
	res.Rows = sink.rows
	return res, nil
}

// previewSink collects cells as plain values.
type previewSink struct {
	domains [][]string
	width   int
	cur     []any
	rows    [][]any
}

func (p *previewSink) set(col int, v any) {
	if p.cur == nil {
		p.cur = make([]any, p.width)
	}
	p.cur[col] = v
}

func (p *previewSink) AddNumber(col int, mantissa int64, exp int) {
	if d := p.domains[col]; d != nil && exp == 0 && mantissa >= 0 && mantissa < int64(len(d)) {
		p.set(col, d[mantissa])
		return
	}
	if exp == 0 {
		p.set(col, mantissa)
		return
	}
	v := float64(mantissa)
	if exp > 0 {
		v *= math.Pow10(exp)
	} else {
		v /= math.Pow10(-exp)
	}
	p.set(col, v)
}

func (p *previewSink) AddFloat(col int, v float64) { p.set(col, v) }

func (p *previewSink) AddString(col int, b []byte) { p.set(col, string(b)) }

func (p *previewSink) AddInvalid(col int) { p.set(col, nil) }

func (p *previewSink) EndRow() error {
	if p.cur == nil {
		p.cur = make([]any, p.width)
	}
	p.rows = append(p.rows, p.cur)
	p.cur = nil
	return nil
}
