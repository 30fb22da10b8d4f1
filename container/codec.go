package container

import (
	"bytes"
	"compress/bzip2"
	"encoding/binary"
	"hash/crc32"
	"io"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/golang/snappy"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// Codec names as they appear in the avro.codec header entry.
const (
	CodecNull      = "null"
	CodecDeflate   = "deflate"
	CodecSnappy    = "snappy"
	CodecZstandard = "zstandard"
	CodecBzip2     = "bzip2"
	CodecXZ        = "xz"
)

// ErrUnsupportedCodec is returned for a codec name without a decoder
var ErrUnsupportedCodec = errors.New("container: unsupported codec")

// Codec decompresses block payloads.
type Codec interface {
	Decode(src []byte) ([]byte, error)
}

// NewCodec returns the decoder for a codec name.
func NewCodec(name string) (Codec, error) {
	switch name {
	case CodecNull, "":
		return nullCodec{}, nil
	case CodecDeflate:
		return deflateCodec{}, nil
	case CodecSnappy:
		return snappyCodec{}, nil
	case CodecZstandard:
		return zstdCodec{}, nil
	case CodecBzip2:
		return bzip2Codec{}, nil
	case CodecXZ:
		return xzCodec{}, nil
	default:
		return nil, errors.Wrapf(ErrUnsupportedCodec, "%q", name)
	}
}

type nullCodec struct{}

func (nullCodec) Decode(src []byte) ([]byte, error) {
	return src, nil
}

// deflateCodec reads raw deflate data without zlib framing.
type deflateCodec struct{}

func (deflateCodec) Decode(src []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(src))
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "inflate block")
	}
	return out, nil
}

// snappyCodec expects a big-endian CRC32 of the uncompressed bytes after
// the compressed payload.
type snappyCodec struct{}

func (snappyCodec) Decode(src []byte) ([]byte, error) {
	if len(src) < crc32.Size {
		return nil, errors.Wrapf(ErrCorrupt, "snappy block of %d bytes has no checksum", len(src))
	}
	payload, sum := src[:len(src)-crc32.Size], src[len(src)-crc32.Size:]

	out, err := snappy.Decode(nil, payload)
	if err != nil {
		return nil, errors.Wrap(err, "snappy decode block")
	}
	if got, want := crc32.ChecksumIEEE(out), binary.BigEndian.Uint32(sum); got != want {
		return nil, errors.Wrapf(ErrCorrupt, "snappy checksum %08x, want %08x", got, want)
	}
	return out, nil
}

var zstdDecoder = sync.OnceValues(func() (*zstd.Decoder, error) {
	return zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
})

type zstdCodec struct{}

func (zstdCodec) Decode(src []byte) ([]byte, error) {
	dec, err := zstdDecoder()
	if err != nil {
		return nil, errors.Wrap(err, "create zstd decoder")
	}
	out, err := dec.DecodeAll(src, nil)
	if err != nil {
		return nil, errors.Wrap(err, "zstd decode block")
	}
	return out, nil
}

type bzip2Codec struct{}

func (bzip2Codec) Decode(src []byte) ([]byte, error) {
	out, err := io.ReadAll(bzip2.NewReader(bytes.NewReader(src)))
	if err != nil {
		return nil, errors.Wrap(err, "bzip2 decode block")
	}
	return out, nil
}

type xzCodec struct{}

func (xzCodec) Decode(src []byte) ([]byte, error) {
	r, err := xz.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, errors.Wrap(err, "create xz reader")
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "xz decode block")
	}
	return out, nil
}
