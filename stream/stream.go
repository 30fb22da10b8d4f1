// Package stream presents a chunk-backed byte range as a forward-growing,
// seekable stream.
package stream

import (
	"context"
	"io"
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/nao1215/chunkparse/chunkstore"
)

// ErrNegativePosition is returned when a seek targets a position before 0
var ErrNegativePosition = errors.New("stream: negative position")

// Option configures a Stream.
type Option func(*Stream)

// WithLoadHook registers fn to be called after every extra chunk load with
// the starting chunk index and the number of extra chunks loaded so far.
func WithLoadHook(fn func(start, loaded int)) Option {
	return func(s *Stream) {
		s.onLoad = fn
	}
}

// Stream reads the bytes of one chunk and lazily appends the chunks that
// follow it when a read or skip runs past the buffered bytes. The buffer
// only grows; nothing is released until the Stream is dropped.
type Stream struct {
	ctx       context.Context
	store     chunkstore.Store
	start     int
	owned     int64
	buf       []byte
	pos       int64
	extra     int
	exhausted bool
	err       error
	onLoad    func(start, loaded int)
}

// New loads chunk idx and positions the cursor at the chunk's start offset.
func New(ctx context.Context, store chunkstore.Store, idx int, opts ...Option) (*Stream, error) {
	first, err := store.Chunk(ctx, idx)
	if err != nil {
		return nil, errors.Wrapf(err, "load chunk %d", idx)
	}

	s := &Stream{
		ctx:   ctx,
		store: store,
		start: idx,
		buf:   slices.Clip(first),
		owned: int64(len(first)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.pos = min(max(store.ChunkStartOffset(idx), 0), s.owned)
	return s, nil
}

// Read implements io.Reader. At the end of all available chunks it returns
// io.EOF; a failed chunk fetch is reported once the buffered bytes are used
// up.
func (s *Stream) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	s.needData(int64(len(p)))
	if s.remaining() <= 0 {
		if s.err != nil {
			return 0, s.err
		}
		return 0, io.EOF
	}
	n := copy(p, s.buf[s.pos:])
	s.pos += int64(n)
	return n, nil
}

// ReadByte implements io.ByteReader.
func (s *Stream) ReadByte() (byte, error) {
	var b [1]byte
	if _, err := s.Read(b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

// Skip advances the cursor by up to n bytes and returns how far it moved.
// A short skip means the end of the stream was reached.
func (s *Stream) Skip(n int64) int64 {
	if n <= 0 {
		return 0
	}
	s.needData(n)
	n = min(n, s.remaining())
	s.pos += n
	return n
}

// Seek implements io.Seeker. The cursor is reset to the start of the buffer
// and moved forward to the target, loading chunks as needed. io.SeekEnd is
// not supported since the total length is unknown up front.
func (s *Stream) Seek(offset int64, whence int) (int64, error) {
	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = s.pos + offset
	default:
		return s.pos, errors.Newf("stream: unsupported whence %d", whence)
	}
	if target < 0 {
		return s.pos, errors.Wrapf(ErrNegativePosition, "seek to %d", target)
	}

	s.pos = 0
	if got := s.Skip(target); got < target {
		return s.pos, io.ErrUnexpectedEOF
	}
	return s.pos, nil
}

// Tell returns the cursor position.
func (s *Stream) Tell() int64 {
	return s.pos
}

// Len returns the number of buffered bytes.
func (s *Stream) Len() int64 {
	return int64(len(s.buf))
}

// OwnedEnd returns the end of the starting chunk, which bounds the byte
// range assigned to this stream.
func (s *Stream) OwnedEnd() int64 {
	return s.owned
}

// ExtraChunks returns how many chunks beyond the starting one were loaded.
func (s *Stream) ExtraChunks() int {
	return s.extra
}

// StartIndex returns the index of the starting chunk
func (s *Stream) StartIndex() int {
	return s.start
}

// Err returns the chunk fetch error that stopped the stream, if any.
func (s *Stream) Err() error {
	return s.err
}

func (s *Stream) remaining() int64 {
	return int64(len(s.buf)) - s.pos
}

// needData loads chunks until n bytes are buffered past the cursor or no
// more chunks are available.
func (s *Stream) needData(n int64) {
	for s.remaining() < n {
		if !s.loadNext() {
			return
		}
	}
}

func (s *Stream) loadNext() bool {
	if s.exhausted {
		return false
	}

	idx := s.start + s.extra + 1
	next, err := s.store.Chunk(s.ctx, idx)
	if err != nil {
		s.err = errors.Wrapf(err, "load chunk %d", idx)
		s.exhausted = true
		return false
	}
	if len(next) == 0 {
		s.exhausted = true
		return false
	}

	s.buf = append(s.buf, next...)
	s.extra++
	if s.onLoad != nil {
		s.onLoad(s.start, s.extra)
	}
	return true
}
