package chunkparse

import (
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// CompressionHandler wraps dump writers with a compressor.
type CompressionHandler interface {
	// CreateWriter returns a writer that compresses into w and a function
	// that flushes and closes the compressor. w itself is left open.
	CreateWriter(w io.Writer) (io.Writer, func() error, error)
	// Extension is the file suffix of the compression, such as ".gz"
	Extension() string
}

type compressionHandler struct {
	ct CompressionType
}

// NewCompressionHandler returns the handler for ct. Unknown types fail on
// CreateWriter.
func NewCompressionHandler(ct CompressionType) CompressionHandler {
	return compressionHandler{ct: ct}
}

func (h compressionHandler) CreateWriter(w io.Writer) (io.Writer, func() error, error) {
	var wc io.WriteCloser
	switch h.ct {
	case CompressionNone:
		return w, func() error { return nil }, nil
	case CompressionGZ:
		wc = gzip.NewWriter(w)
	case CompressionXZ:
		xw, err := xz.NewWriter(w)
		if err != nil {
			return nil, nil, errors.Wrap(err, "xz writer")
		}
		wc = xw
	case CompressionZSTD:
		zw, err := zstd.NewWriter(w)
		if err != nil {
			return nil, nil, errors.Wrap(err, "zstd writer")
		}
		wc = zw
	default:
		return nil, nil, errors.Mark(errors.Newf("cannot write compression type %d", int(h.ct)), ErrUnsupportedExport)
	}
	return wc, wc.Close, nil
}

func (h compressionHandler) Extension() string {
	return h.ct.Extension()
}

// createCompressedFile creates path and returns a writer that compresses into
// it. The cleanup function closes the compressor, then syncs and closes the file.
func createCompressedFile(path string, compressionType CompressionType) (io.Writer, func() error, error) {
	file, err := os.Create(path) //nolint:gosec // output path chosen by the caller
	if err != nil {
		return nil, nil, errors.Wrap(err, "create output file")
	}

	w, closeCompressor, err := NewCompressionHandler(compressionType).CreateWriter(file)
	if err != nil {
		return nil, nil, errors.CombineErrors(err, file.Close())
	}

	return w, func() error {
		err := closeCompressor()
		err = errors.CombineErrors(err, file.Sync())
		return errors.CombineErrors(err, file.Close())
	}, nil
}
