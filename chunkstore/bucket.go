package chunkstore

import (
	"context"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/efficientgo/core/errcapture"
	"github.com/thanos-io/objstore"
)

// Bucket is a Store that range-reads fixed-size chunks of one object.
type Bucket struct {
	bkt       objstore.BucketReader
	name      string
	size      int64
	chunkSize int64
}

var _ Store = (*Bucket)(nil)

// NewBucket stats the object once and serves chunks of chunkSize bytes.
func NewBucket(ctx context.Context, bkt objstore.BucketReader, name string, chunkSize int64) (*Bucket, error) {
	if chunkSize <= 0 {
		return nil, errors.Wrapf(ErrInvalidChunkSize, "got %d", chunkSize)
	}
	attrs, err := bkt.Attributes(ctx, name)
	if err != nil {
		return nil, errors.Wrapf(err, "attributes of %s", name)
	}
	return &Bucket{
		bkt:       bkt,
		name:      name,
		size:      attrs.Size,
		chunkSize: chunkSize,
	}, nil
}

// Size returns the object size in bytes
func (b *Bucket) Size() int64 {
	return b.size
}

// Chunk implements Store.
func (b *Bucket) Chunk(ctx context.Context, idx int) (_ []byte, err error) {
	off := int64(idx) * b.chunkSize
	if idx < 0 || off >= b.size {
		return nil, nil
	}
	length := min(b.chunkSize, b.size-off)

	rc, err := b.bkt.GetRange(ctx, b.name, off, length)
	if err != nil {
		return nil, errors.Wrapf(err, "get range %s [%d,+%d)", b.name, off, length)
	}
	defer errcapture.Do(&err, rc.Close, "close range reader")

	buf := make([]byte, length)
	if _, err := io.ReadFull(rc, buf); err != nil {
		return nil, errors.Wrapf(err, "read chunk %d of %s", idx, b.name)
	}
	return buf, nil
}

// ChunkStartOffset implements Store.
func (b *Bucket) ChunkStartOffset(int) int64 {
	return 0
}

// NumChunks implements Store.
func (b *Bucket) NumChunks() int {
	return int((b.size + b.chunkSize - 1) / b.chunkSize)
}

// ReadSample reads at most n leading bytes of an object, for previews.
func ReadSample(ctx context.Context, bkt objstore.BucketReader, name string, n int64) (_ []byte, err error) {
	attrs, err := bkt.Attributes(ctx, name)
	if err != nil {
		return nil, errors.Wrapf(err, "attributes of %s", name)
	}
	n = min(n, attrs.Size)
	if n <= 0 {
		return nil, nil
	}

	rc, err := bkt.GetRange(ctx, name, 0, n)
	if err != nil {
		return nil, errors.Wrapf(err, "get range %s [0,+%d)", name, n)
	}
	defer errcapture.Do(&err, rc.Close, "close range reader")

	return io.ReadAll(rc)
}
