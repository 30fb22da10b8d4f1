// Package ocftest builds object container files for tests.
package ocftest

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/hamba/avro/v2"
	"github.com/hamba/avro/v2/ocf"
)

// Encode writes records into a container with the ocf encoder.
func Encode(tb testing.TB, schema string, records []any, opts ...ocf.EncoderFunc) []byte {
	tb.Helper()

	var buf bytes.Buffer
	enc, err := ocf.NewEncoder(schema, &buf, opts...)
	if err != nil {
		tb.Fatalf("create encoder: %v", err)
	}
	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			tb.Fatalf("encode record %d: %v", i, err)
		}
	}
	if err := enc.Close(); err != nil {
		tb.Fatalf("close encoder: %v", err)
	}
	return buf.Bytes()
}

// Datums marshals records back to back, which is the payload of one
// uncompressed block.
func Datums(tb testing.TB, schema string, records []any) []byte {
	tb.Helper()

	s, err := avro.Parse(schema)
	if err != nil {
		tb.Fatalf("parse schema: %v", err)
	}
	var out []byte
	for i, rec := range records {
		b, err := avro.Marshal(s, rec)
		if err != nil {
			tb.Fatalf("marshal record %d: %v", i, err)
		}
		out = append(out, b...)
	}
	return out
}

// Block is one hand-built data block; Data is already compressed.
type Block struct {
	Count int64
	Data  []byte
}

// Raw assembles a container by hand, for codecs the encoder lacks and for
// corrupt inputs.
func Raw(schema, codec string, sync [16]byte, blocks ...Block) []byte {
	out := []byte("Obj\x01")

	meta := map[string][]byte{"avro.schema": []byte(schema)}
	if codec != "" {
		meta["avro.codec"] = []byte(codec)
	}
	out = binary.AppendVarint(out, int64(len(meta)))
	for _, k := range []string{"avro.schema", "avro.codec"} {
		v, ok := meta[k]
		if !ok {
			continue
		}
		out = appendBytes(out, []byte(k))
		out = appendBytes(out, v)
	}
	out = binary.AppendVarint(out, 0)
	out = append(out, sync[:]...)

	for _, b := range blocks {
		out = binary.AppendVarint(out, b.Count)
		out = binary.AppendVarint(out, int64(len(b.Data)))
		out = append(out, b.Data...)
		out = append(out, sync[:]...)
	}
	return out
}

func appendBytes(out, b []byte) []byte {
	out = binary.AppendVarint(out, int64(len(b)))
	return append(out, b...)
}
