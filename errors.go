package chunkparse

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// Standard errors. Wrapped errors keep their identity, so callers test them
// with errors.Is.
var (
	// ErrFormatNotRecognized indicates that the preview sample is not an
	// object container file this package can read
	ErrFormatNotRecognized = errors.New("chunkparse: format not recognized")

	// ErrNoSupportedColumns indicates that the schema has no field that can
	// be written into a column
	ErrNoSupportedColumns = errors.New("chunkparse: no supported columns")

	// ErrSchemaMismatch indicates that the file no longer matches the parse
	// configuration it is parsed with
	ErrSchemaMismatch = errors.New("chunkparse: schema mismatch")

	// ErrTransientDecode indicates a chunk that stopped early on malformed
	// or missing bytes; the rows decoded before the failure are kept
	ErrTransientDecode = errors.New("chunkparse: transient decode failure")

	// ErrNoStore indicates that a job was built without a chunk store
	ErrNoStore = errors.New("chunkparse: no chunk store")

	// ErrNoConfiguration indicates that a job was built without a parse configuration
	ErrNoConfiguration = errors.New("chunkparse: no parse configuration")

	// ErrUnsupportedExport indicates an output format and compression pair
	// that cannot be written
	ErrUnsupportedExport = errors.New("chunkparse: unsupported export")
)

// ErrorContext provides context for where an error occurred
type ErrorContext struct {
	Operation string
	Object    string
	Chunk     int
	Details   string
}

// NewErrorContext creates a new error context. Chunk starts at -1, meaning
// no chunk.
func NewErrorContext(operation string) *ErrorContext {
	return &ErrorContext{
		Operation: operation,
		Chunk:     -1,
	}
}

// WithObject adds the name of the file or object being parsed
func (ec *ErrorContext) WithObject(object string) *ErrorContext {
	ec.Object = object
	return ec
}

// WithChunk adds the chunk index
func (ec *ErrorContext) WithChunk(idx int) *ErrorContext {
	ec.Chunk = idx
	return ec
}

// WithDetails adds details to the error context
func (ec *ErrorContext) WithDetails(details string) *ErrorContext {
	ec.Details = details
	return ec
}

// Error creates a formatted error with context
func (ec *ErrorContext) Error(baseErr error) error {
	var parts []string
	parts = append(parts, fmt.Sprintf("chunkparse: %s failed", ec.Operation))

	if ec.Object != "" {
		parts = append(parts, "object: "+ec.Object)
	}

	if ec.Chunk >= 0 {
		parts = append(parts, fmt.Sprintf("chunk: %d", ec.Chunk))
	}

	if ec.Details != "" {
		parts = append(parts, "details: "+ec.Details)
	}

	msg := strings.Join(parts, ", ")
	if baseErr != nil {
		return errors.Wrap(baseErr, msg)
	}
	return errors.New(msg)
}

// transient marks err as a transient decode failure of chunk idx.
func transient(idx int, err error) error {
	return NewErrorContext("decode").WithChunk(idx).Error(errors.Mark(err, ErrTransientDecode))
}

// mismatch marks err as a schema mismatch.
func mismatch(err error) error {
	return errors.Mark(err, ErrSchemaMismatch)
}
