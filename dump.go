package chunkparse

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/apache/arrow/go/v18/parquet"
	"github.com/apache/arrow/go/v18/parquet/compress"
	"github.com/apache/arrow/go/v18/parquet/pqarrow"
	"github.com/cockroachdb/errors"
	"github.com/nao1215/chunkparse/frame"
	"github.com/xuri/excelize/v2"
)

// parquetRowGroupRows is the row group size of Parquet dumps
const parquetRowGroupRows = 64 << 10

// xlsxMaxSheetName is the longest sheet name Excel accepts
const xlsxMaxSheetName = 31

// Dump writes the result table to outputDir/name with the extension given by
// the options and returns the path written. The output directory is created
// if needed.
//
// Example:
//
//	// Default: CSV
//	path, err := result.Dump("./output", "events")
//
//	// TSV with gzip compression
//	options := NewDumpOptions().
//		WithFormat(OutputFormatTSV).
//		WithCompression(CompressionGZ)
//	path, err := result.Dump("./output", "events", options)
func (r *Result) Dump(outputDir, name string, opts ...DumpOptions) (string, error) {
	options := NewDumpOptions()
	if len(opts) > 0 {
		options = opts[0]
	}
	ec := NewErrorContext("dump").WithObject(name).WithDetails(options.Format.String())
	if err := options.validate(); err != nil {
		return "", ec.Error(err)
	}

	if err := os.MkdirAll(outputDir, 0o750); err != nil {
		return "", ec.Error(errors.Wrap(err, "create output directory"))
	}
	path := filepath.Join(outputDir, name+options.FileExtension())

	var err error
	switch options.Format {
	case OutputFormatParquet:
		err = r.writeParquet(path, options.Compression)
	case OutputFormatXLSX:
		err = r.writeXLSX(path, name)
	default:
		err = r.writeText(path, options)
	}
	if err != nil {
		return "", ec.Error(err)
	}
	return path, nil
}

// writeText writes CSV, TSV or LTSV, compressed as a whole.
func (r *Result) writeText(path string, options DumpOptions) (retErr error) {
	w, cleanup, err := createCompressedFile(path, options.Compression)
	if err != nil {
		return err
	}
	defer func() {
		if err := cleanup(); err != nil && retErr == nil {
			retErr = errors.Wrap(err, "close output file")
		}
	}()

	if options.Format == OutputFormatLTSV {
		return r.writeLTSV(w)
	}

	cw := csv.NewWriter(w)
	if options.Format == OutputFormatTSV {
		cw.Comma = '\t'
	}
	if err := cw.Write(r.Config.ColumnNames); err != nil {
		return errors.Wrap(err, "write header")
	}
	record := make([]string, r.Config.NumColumns())
	err = frame.EachRow(r.Table, r.Config.Domains, func(row []any) error {
		for i, v := range row {
			record[i] = formatCell(v)
		}
		return cw.Write(record)
	})
	if err != nil {
		return errors.Wrap(err, "write rows")
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flush rows")
}

// writeLTSV writes one label:value line per row. Missing cells are left out.
func (r *Result) writeLTSV(w io.Writer) error {
	var sb strings.Builder
	names := r.Config.ColumnNames
	err := frame.EachRow(r.Table, r.Config.Domains, func(row []any) error {
		sb.Reset()
		first := true
		for i, v := range row {
			if v == nil {
				continue
			}
			if !first {
				sb.WriteByte('\t')
			}
			first = false
			sb.WriteString(names[i])
			sb.WriteByte(':')
			sb.WriteString(ltsvEscaper.Replace(formatCell(v)))
		}
		sb.WriteByte('\n')
		_, err := io.WriteString(w, sb.String())
		return err
	})
	return errors.Wrap(err, "write rows")
}

var ltsvEscaper = strings.NewReplacer("\t", `\t`, "\n", `\n`, "\r", `\r`)

// writeParquet writes the table as is; categorical columns keep their
// ordinals and the arrow schema is stored in the file metadata.
func (r *Result) writeParquet(path string, compression CompressionType) (retErr error) {
	codec := compress.Codecs.Uncompressed
	switch compression {
	case CompressionGZ:
		codec = compress.Codecs.Gzip
	case CompressionZSTD:
		codec = compress.Codecs.Zstd
	}

	file, err := os.Create(path) //nolint:gosec // output path chosen by the caller
	if err != nil {
		return errors.Wrap(err, "create output file")
	}
	// WriteTable closes file once the footer is written
	defer func() {
		if err := file.Close(); err != nil && !errors.Is(err, os.ErrClosed) && retErr == nil {
			retErr = errors.Wrap(err, "close output file")
		}
	}()

	props := parquet.NewWriterProperties(parquet.WithCompression(codec))
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema())
	if err := pqarrow.WriteTable(r.Table, file, parquetRowGroupRows, props, arrowProps); err != nil {
		return errors.Wrap(err, "write parquet")
	}
	return nil
}

// writeXLSX writes a single sheet with a header row.
func (r *Result) writeXLSX(path, name string) (retErr error) {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil && retErr == nil {
			retErr = errors.Wrap(err, "close workbook")
		}
	}()

	sheet := name
	if len(sheet) > xlsxMaxSheetName {
		sheet = sheet[:xlsxMaxSheetName]
	}
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return errors.Wrap(err, "name sheet")
	}

	header := make([]any, len(r.Config.ColumnNames))
	for i, n := range r.Config.ColumnNames {
		header[i] = n
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return errors.Wrap(err, "write header")
	}

	line := 2
	err := frame.EachRow(r.Table, r.Config.Domains, func(row []any) error {
		cell, err := excelize.CoordinatesToCellName(1, line)
		if err != nil {
			return err
		}
		line++
		return f.SetSheetRow(sheet, cell, &row)
	})
	if err != nil {
		return errors.Wrap(err, "write rows")
	}
	return errors.Wrap(f.SaveAs(path), "save workbook")
}

// formatCell renders a cell value from frame.EachRow as text.
func formatCell(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case int64:
		return strconv.FormatInt(val, 10)
	case string:
		return val
	default:
		return ""
	}
}
