package container

import (
	"bytes"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/hamba/avro/v2"
)

// maxBlockSize bounds the compressed size of one block
const maxBlockSize = 1 << 30

// decodeConfig lets a single string or bytes value fill a whole block.
var decodeConfig = avro.Config{MaxByteSliceSize: maxBlockSize}.Freeze()

// Record is one decoded top-level record, addressed by field position.
// Supported values are nil, bool, int32, int64, float32, float64, string,
// []byte and Enum. Unsupported fields are decoded generically.
type Record []any

// Enum is a decoded enum value.
type Enum struct {
	Ordinal int
	Symbol  string
}

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithLimit stops the reader at the first sync marker starting at or after
// limit. Blocks introduced by such markers are never read.
func WithLimit(limit int64) ReaderOption {
	return func(r *Reader) {
		r.limit = limit
	}
}

// Reader iterates the records of the blocks following the first sync marker
// found from its start position.
type Reader struct {
	in     *byteReader
	hdr    *Header
	codec  Codec
	fields []*avro.Field
	limit  int64

	dec        *avro.Reader
	remaining  int64
	blockCount int64
	blockSize  int64
	blocks     int64

	prevSync int64
	nextSync int64
	found    bool
	done     bool
	err      error
}

// Open scans r, positioned at absolute offset pos, for the header's sync
// marker and readies the reader on the block that follows it. Reaching the
// end of r (or the limit) without finding a marker yields a reader with no
// records.
func Open(r io.Reader, pos int64, hdr *Header, opts ...ReaderOption) (*Reader, error) {
	codec, err := NewCodec(hdr.Codec)
	if err != nil {
		return nil, err
	}
	rec, ok := hdr.Schema.(*avro.RecordSchema)
	if !ok {
		return nil, errors.Wrapf(ErrCorrupt, "top-level schema is %s, not a record", hdr.Schema.Type())
	}

	rd := &Reader{
		in:       newByteReader(r, pos),
		hdr:      hdr,
		codec:    codec,
		fields:   rec.Fields(),
		limit:    -1,
		prevSync: -1,
		nextSync: -1,
	}
	for _, opt := range opts {
		opt(rd)
	}
	if err := rd.scan(); err != nil {
		return nil, err
	}
	return rd, nil
}

// scan slides a window over the input until it equals the sync marker.
func (r *Reader) scan() error {
	var win [SyncSize]byte
	start := r.in.pos
	if r.pastLimit(start) {
		return nil
	}
	if err := r.in.readFull(win[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil
		}
		return errors.Wrap(err, "scan for sync marker")
	}

	for {
		if win == r.hdr.Sync {
			r.found = true
			r.nextSync = start
			return nil
		}
		start++
		if r.pastLimit(start) {
			return nil
		}
		c, err := r.in.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return errors.Wrap(err, "scan for sync marker")
		}
		copy(win[:], win[1:])
		win[SyncSize-1] = c
	}
}

func (r *Reader) pastLimit(off int64) bool {
	return r.limit >= 0 && off >= r.limit
}

// HasNext reports whether another record is available, reading the next
// block when the current one is used up. After it returns false, Err tells
// a clean end from a failure.
func (r *Reader) HasNext() bool {
	for r.remaining == 0 {
		if r.done || r.err != nil || !r.found {
			return false
		}
		if r.pastLimit(r.nextSync) {
			r.done = true
			return false
		}
		if err := r.readBlock(); err != nil {
			if errors.Is(err, io.EOF) {
				r.done = true
			} else {
				r.err = err
			}
			return false
		}
	}
	return true
}

// readBlock frames the block after nextSync. It returns io.EOF only when
// the input ends cleanly right after a sync marker.
func (r *Reader) readBlock() error {
	count, err := r.in.readLong()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return io.EOF
		}
		return errors.Wrap(err, "read block count")
	}
	size, err := r.in.readLong()
	if err != nil {
		return errors.Wrap(noEOF(err), "read block size")
	}
	if count < 0 || size < 0 || size > maxBlockSize {
		return errors.Wrapf(ErrCorrupt, "block count %d size %d", count, size)
	}

	raw := make([]byte, size)
	if err := r.in.readFull(raw); err != nil {
		return errors.Wrapf(noEOF(err), "read block of %d bytes", size)
	}
	trailing := r.in.pos
	var sync [SyncSize]byte
	if err := r.in.readFull(sync[:]); err != nil {
		return errors.Wrap(noEOF(err), "read block sync marker")
	}
	if sync != r.hdr.Sync {
		return errors.Wrapf(ErrCorrupt, "sync marker mismatch at offset %d", trailing)
	}

	data, err := r.codec.Decode(raw)
	if err != nil {
		return errors.Wrapf(err, "decode %s block", r.hdr.Codec)
	}

	r.prevSync, r.nextSync = r.nextSync, trailing
	r.dec = avro.NewReader(bytes.NewReader(data), max(len(data), 1), avro.WithReaderConfig(decodeConfig))
	r.remaining = count
	r.blockCount = count
	r.blockSize = size
	r.blocks++
	return nil
}

// Next decodes the next record. HasNext must have returned true.
func (r *Reader) Next() (Record, error) {
	if r.remaining == 0 {
		return nil, errors.AssertionFailedf("container: Next called without a pending record")
	}

	rec := make(Record, len(r.fields))
	for i, f := range r.fields {
		rec[i] = readValue(r.dec, f.Type())
		if r.dec.Error != nil {
			break
		}
	}
	if err := r.dec.Error; err != nil && !errors.Is(err, io.EOF) {
		r.err = errors.Wrap(errors.Mark(err, ErrCorrupt), "decode record")
		r.remaining = 0
		return nil, r.err
	} else if err != nil {
		r.err = errors.Wrap(errors.Mark(io.ErrUnexpectedEOF, ErrCorrupt), "block ends inside a record")
		r.remaining = 0
		return nil, r.err
	}
	r.remaining--
	return rec, nil
}

// Err returns the error that stopped the reader, if any.
func (r *Reader) Err() error {
	return r.err
}

// PreviousSync returns the offset of the sync marker in front of the block
// being iterated, or -1 when no marker was found.
func (r *Reader) PreviousSync() int64 {
	if !r.found {
		return -1
	}
	if r.blocks == 0 {
		return r.nextSync
	}
	return r.prevSync
}

// BlockCount returns the record count of the current block
func (r *Reader) BlockCount() int64 {
	return r.blockCount
}

// BlockSize returns the compressed byte size of the current block
func (r *Reader) BlockSize() int64 {
	return r.blockSize
}

// Blocks returns the number of blocks read so far
func (r *Reader) Blocks() int64 {
	return r.blocks
}

// Offset returns the absolute input offset consumed so far
func (r *Reader) Offset() int64 {
	return r.in.pos
}

func readValue(dec *avro.Reader, s avro.Schema) any {
	switch s.Type() {
	case avro.Null:
		return nil
	case avro.Boolean:
		return dec.ReadBool()
	case avro.Int:
		return dec.ReadInt()
	case avro.Long:
		return dec.ReadLong()
	case avro.Float:
		return dec.ReadFloat()
	case avro.Double:
		return dec.ReadDouble()
	case avro.String:
		return dec.ReadString()
	case avro.Bytes:
		return dec.ReadBytes()
	case avro.Enum:
		symbols := s.(*avro.EnumSchema).Symbols()
		idx := int(dec.ReadInt())
		if idx < 0 || idx >= len(symbols) {
			dec.ReportError("decode enum", "ordinal out of range")
			return nil
		}
		return Enum{Ordinal: idx, Symbol: symbols[idx]}
	case avro.Union:
		types := s.(*avro.UnionSchema).Types()
		idx := dec.ReadLong()
		if idx < 0 || idx >= int64(len(types)) {
			dec.ReportError("decode union", "branch index out of range")
			return nil
		}
		return readValue(dec, types[idx])
	case avro.Ref:
		return readValue(dec, s.(*avro.RefSchema).Schema())
	default:
		return dec.ReadNext(s)
	}
}
