package chunkparse

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// OutputFormat selects the file format of a dump.
type OutputFormat int

// Dump formats. Text formats hold one line per row with a header.
const (
	OutputFormatCSV OutputFormat = iota
	OutputFormatTSV
	OutputFormatLTSV
	OutputFormatParquet
	OutputFormatXLSX
)

var outputFormatNames = [...]string{
	OutputFormatCSV:     "csv",
	OutputFormatTSV:     "tsv",
	OutputFormatLTSV:    "ltsv",
	OutputFormatParquet: "parquet",
	OutputFormatXLSX:    "xlsx",
}

// String returns the format name; unknown values read as csv.
func (f OutputFormat) String() string {
	if f < 0 || int(f) >= len(outputFormatNames) {
		return outputFormatNames[OutputFormatCSV]
	}
	return outputFormatNames[f]
}

// Extension is the format name with a leading dot.
func (f OutputFormat) Extension() string {
	return "." + f.String()
}

// ParseOutputFormat parses a format name as produced by String.
func ParseOutputFormat(s string) (OutputFormat, error) {
	for i, name := range outputFormatNames {
		if strings.EqualFold(s, name) {
			return OutputFormat(i), nil
		}
	}
	return OutputFormatCSV, errors.Mark(errors.Newf("unknown output format %q", s), ErrUnsupportedExport)
}

// CompressionType selects the compression of a dump.
type CompressionType int

// Dump compressions. bzip2 can be read from containers but not written.
const (
	CompressionNone CompressionType = iota
	CompressionGZ
	CompressionXZ
	CompressionZSTD
)

var compressionNames = [...]struct{ name, ext string }{
	CompressionNone: {"none", ""},
	CompressionGZ:   {"gz", ".gz"},
	CompressionXZ:   {"xz", ".xz"},
	CompressionZSTD: {"zstd", ".zst"},
}

func (c CompressionType) known() bool {
	return c >= 0 && int(c) < len(compressionNames)
}

// String returns the compression name; unknown values read as none.
func (c CompressionType) String() string {
	if !c.known() {
		return compressionNames[CompressionNone].name
	}
	return compressionNames[c].name
}

// Extension returns the suffix appended to compressed text dumps.
func (c CompressionType) Extension() string {
	if !c.known() {
		return ""
	}
	return compressionNames[c].ext
}

// ParseCompressionType parses a compression name as produced by String.
// The empty string means no compression.
func ParseCompressionType(s string) (CompressionType, error) {
	if s == "" {
		return CompressionNone, nil
	}
	for i, c := range compressionNames {
		if strings.EqualFold(s, c.name) {
			return CompressionType(i), nil
		}
	}
	return CompressionNone, errors.Mark(errors.Newf("unknown compression %q", s), ErrUnsupportedExport)
}

// DumpOptions is passed by value to Result.Dump:
//
//	opts := NewDumpOptions().WithFormat(OutputFormatTSV).WithCompression(CompressionGZ)
//	path, err := result.Dump("./output", "events", opts)
type DumpOptions struct {
	Format OutputFormat
	// Compression specifies the compression type. Text formats are
	// compressed as a whole; Parquet uses it as the column codec; XLSX
	// accepts only CompressionNone.
	Compression CompressionType
}

// NewDumpOptions returns uncompressed CSV.
func NewDumpOptions() DumpOptions {
	return DumpOptions{Format: OutputFormatCSV, Compression: CompressionNone}
}

// WithFormat returns a copy using format.
func (o DumpOptions) WithFormat(format OutputFormat) DumpOptions {
	o.Format = format
	return o
}

// WithCompression returns a copy using compression.
func (o DumpOptions) WithCompression(compression CompressionType) DumpOptions {
	o.Compression = compression
	return o
}

// FileExtension is the format extension, followed by the compression
// extension for text formats. Parquet compresses its pages instead.
func (o DumpOptions) FileExtension() string {
	if o.Format == OutputFormatParquet || o.Format == OutputFormatXLSX {
		return o.Format.Extension()
	}
	return o.Format.Extension() + o.Compression.Extension()
}

// validate rejects combinations that cannot be written.
func (o DumpOptions) validate() error {
	switch o.Format {
	case OutputFormatCSV, OutputFormatTSV, OutputFormatLTSV:
	case OutputFormatParquet:
		if o.Compression == CompressionXZ {
			return errors.Mark(errors.New("parquet does not support xz compression"), ErrUnsupportedExport)
		}
	case OutputFormatXLSX:
		if o.Compression != CompressionNone {
			return errors.Mark(errors.Newf("xlsx cannot be compressed with %s", o.Compression), ErrUnsupportedExport)
		}
	default:
		return errors.Mark(errors.Newf("unknown output format %d", o.Format), ErrUnsupportedExport)
	}
	return nil
}
