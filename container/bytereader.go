package container

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/dennwc/varint"
)

// byteReader tracks the absolute offset of everything read from r.
type byteReader struct {
	r   io.Reader
	br  io.ByteReader
	pos int64
}

func newByteReader(r io.Reader, pos int64) *byteReader {
	br, ok := r.(io.ByteReader)
	if !ok {
		b := bufio.NewReader(r)
		r, br = b, b
	}
	return &byteReader{r: r, br: br, pos: pos}
}

func (b *byteReader) ReadByte() (byte, error) {
	c, err := b.br.ReadByte()
	if err != nil {
		return 0, err
	}
	b.pos++
	return c, nil
}

func (b *byteReader) readFull(p []byte) error {
	n, err := io.ReadFull(b.r, p)
	b.pos += int64(n)
	return err
}

// readLong reads a zigzag encoded variable-length long. A clean io.EOF is
// returned only when no byte of the value could be read.
func (b *byteReader) readLong() (int64, error) {
	var buf [binary.MaxVarintLen64]byte
	for i := range buf {
		c, err := b.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) && i > 0 {
				err = io.ErrUnexpectedEOF
			}
			return 0, err
		}
		buf[i] = c
		if c < 0x80 {
			u, n := varint.Uvarint(buf[:i+1])
			if n <= 0 {
				return 0, errors.Wrap(ErrCorrupt, "malformed varint")
			}
			return zigzag(u), nil
		}
	}
	return 0, errors.Wrap(ErrCorrupt, "varint overflows a 64-bit integer")
}

func (b *byteReader) readBytes(limit int64) ([]byte, error) {
	n, err := b.readLong()
	if err != nil {
		return nil, noEOF(err)
	}
	if n < 0 || n > limit {
		return nil, errors.Wrapf(ErrCorrupt, "byte length %d out of range", n)
	}
	p := make([]byte, n)
	if err := b.readFull(p); err != nil {
		return nil, noEOF(err)
	}
	return p, nil
}

func zigzag(u uint64) int64 {
	return int64(u>>1) ^ -int64(u&1)
}

// noEOF turns a clean io.EOF into io.ErrUnexpectedEOF for reads that
// started inside a structure.
func noEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
