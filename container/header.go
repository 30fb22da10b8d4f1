// Package container reads Avro object container files from an arbitrary
// position: it scans for a sync marker, frames the data blocks that follow
// and decodes their records against a header captured earlier.
package container

import (
	"bytes"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/hamba/avro/v2"
)

const (
	// SyncSize is the length of the sync marker
	SyncSize = 16

	magic = "Obj\x01"

	schemaKey = "avro.schema"
	codecKey  = "avro.codec"

	// maxMetaValue bounds a single header metadata value
	maxMetaValue = 64 << 20
)

var (
	// ErrNotContainer is returned when the bytes do not start with the
	// container magic
	ErrNotContainer = errors.New("container: not an object container file")

	// ErrCorrupt is returned for malformed header or block framing
	ErrCorrupt = errors.New("container: corrupt data")
)

// Header is the decoded container preamble.
type Header struct {
	// Schema is the writer schema
	Schema avro.Schema
	// Codec names the block compression
	Codec string
	// Sync is the marker that closes the header and every block
	Sync [SyncSize]byte
	// Meta holds every metadata entry, including the schema and codec
	Meta map[string][]byte
	// Len is the byte length of the header, sync marker included
	Len int64
}

// ParseHeader decodes header bytes. It has no side effects: the same bytes
// always yield an equal, independent Header.
func ParseHeader(b []byte) (*Header, error) {
	return ReadHeader(bytes.NewReader(b))
}

// ReadHeader decodes a header from the start of r.
func ReadHeader(r io.Reader) (*Header, error) {
	in := newByteReader(r, 0)

	var m [len(magic)]byte
	if err := in.readFull(m[:]); err != nil {
		return nil, errors.Wrap(errors.Mark(noEOF(err), ErrNotContainer), "read magic")
	}
	if string(m[:]) != magic {
		return nil, errors.Wrapf(ErrNotContainer, "magic %q", m[:])
	}

	meta, err := readMeta(in)
	if err != nil {
		return nil, err
	}

	h := &Header{Meta: meta, Codec: CodecNull}
	if err := in.readFull(h.Sync[:]); err != nil {
		return nil, errors.Wrap(errors.Mark(noEOF(err), ErrCorrupt), "read sync marker")
	}
	h.Len = in.pos

	if c, ok := meta[codecKey]; ok && len(c) > 0 {
		h.Codec = string(c)
	}
	if _, err := NewCodec(h.Codec); err != nil {
		return nil, err
	}

	raw, ok := meta[schemaKey]
	if !ok {
		return nil, errors.Wrapf(ErrCorrupt, "missing %s metadata", schemaKey)
	}
	// A private cache keeps named types of one file from leaking into the
	// parse of another.
	schema, err := avro.ParseWithCache(string(raw), "", &avro.SchemaCache{})
	if err != nil {
		return nil, errors.Wrap(errors.Mark(err, ErrCorrupt), "parse schema")
	}
	h.Schema = schema
	return h, nil
}

// readMeta decodes the metadata map: blocks of key/value pairs, each block
// prefixed by its entry count, terminated by an empty block. A negative
// count is followed by the block byte size.
func readMeta(in *byteReader) (map[string][]byte, error) {
	meta := make(map[string][]byte)
	for {
		count, err := in.readLong()
		if err != nil {
			return nil, errors.Wrap(errors.Mark(noEOF(err), ErrCorrupt), "read metadata block count")
		}
		if count == 0 {
			return meta, nil
		}
		if count < 0 {
			count = -count
			if _, err := in.readLong(); err != nil {
				return nil, errors.Wrap(errors.Mark(noEOF(err), ErrCorrupt), "read metadata block size")
			}
		}
		for ; count > 0; count-- {
			key, err := in.readBytes(maxMetaValue)
			if err != nil {
				return nil, errors.Wrap(errors.Mark(err, ErrCorrupt), "read metadata key")
			}
			val, err := in.readBytes(maxMetaValue)
			if err != nil {
				return nil, errors.Wrap(errors.Mark(err, ErrCorrupt), "read metadata value")
			}
			meta[string(key)] = val
		}
	}
}
