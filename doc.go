// Package chunkparse parses Avro object container files whose bytes are
// handed out as fixed-size chunks, one worker per chunk.
//
// A container file is a header followed by blocks of records, each block
// closed by the 16-byte sync marker declared in the header. Chunk
// boundaries fall anywhere, inside a block or even inside a marker, so every
// chunk decides for itself which blocks it decodes: a block belongs to the
// chunk whose byte range holds the first byte of the marker that precedes
// it. The header is parsed once, from a sample, and its bytes travel with
// the parse configuration so that each chunk can rebuild the reader state
// without reading the start of the file.
//
// # Features
//
//   - Null, deflate, snappy, zstandard, bzip2 and xz block codecs
//   - Chunks from memory or from any objstore bucket (filesystem, S3, GCS, ...)
//   - Flattening of record schemas into numeric, categorical and string columns
//   - Rows collected into an Apache Arrow table, in file order
//   - Export as CSV, TSV, LTSV (optionally gz, xz or zstd compressed),
//     Parquet or XLSX, and loading into SQLite
//   - Prometheus metrics, OpenTelemetry spans and chunk event callbacks
//
// # Basic Usage
//
// Preview a sample of the file to derive the configuration, then run a job:
//
//	preview, err := chunkparse.Preview(data[:64<<10])
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	store, err := chunkstore.NewMemory(data, int(preview.Config.ChunkSize))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	job, err := chunkparse.NewBuilder().
//	    WithStore(store).
//	    WithConfiguration(preview.Config).
//	    SetParallelism(8).
//	    Build(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := job.Run(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer result.Release()
//
// # Failures
//
// A chunk that hits a truncated or malformed block keeps the rows it decoded
// before the failure; the failure is reported in Result.Warnings and marked
// with ErrTransientDecode. A configuration that no longer matches the file
// fails the job with ErrSchemaMismatch.
//
// # Configuration
//
// The parse configuration can be saved with model.MarshalConfiguration and
// loaded again with model.UnmarshalConfiguration, so that a file is
// previewed once and parsed many times.
package chunkparse
