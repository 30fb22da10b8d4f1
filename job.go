package chunkparse

import (
	"context"
	"time"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/memory"
	"github.com/cockroachdb/errors"
	"github.com/hashicorp/go-multierror"
	"github.com/nao1215/chunkparse/chunkstore"
	"github.com/nao1215/chunkparse/domain/model"
	"github.com/nao1215/chunkparse/frame"
	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Job parses every chunk of one file. Create it with Builder.
type Job struct {
	id          ulid.ULID
	store       chunkstore.Store
	cfg         *model.ParseConfiguration
	parallelism int
	logger      Logger
	listener    EventListener
	metrics     *Metrics
	mem         memory.Allocator
}

// Result is the outcome of a job.
type Result struct {
	// JobID identifies the job
	JobID ulid.ULID
	// Config is the configuration the job ran with
	Config *model.ParseConfiguration
	// Table holds every row in file order
	Table arrow.Table
	// Chunks describes each chunk, by index
	Chunks []ChunkResult
	// Warnings aggregates the transient chunk failures; nil when there were none
	Warnings error
}

// Rows returns the total number of rows
func (r *Result) Rows() int64 {
	return r.Table.NumRows()
}

// Release frees the table.
func (r *Result) Release() {
	if r.Table != nil {
		r.Table.Release()
	}
}

// ID returns the job id
func (j *Job) ID() ulid.ULID {
	return j.id
}

// Metrics returns the collectors updated by the job
func (j *Job) Metrics() *Metrics {
	return j.metrics
}

// Run parses all chunks, at most Parallelism at a time, and joins their
// rows in chunk index order. Transient chunk failures do not fail the job;
// they are collected in Result.Warnings. A schema mismatch or a broken
// invariant in any chunk fails the job.
func (j *Job) Run(ctx context.Context) (*Result, error) {
	n := j.store.NumChunks()
	records := make([]arrow.Record, n)
	chunks := make([]ChunkResult, n)
	defer func() {
		for _, rec := range records {
			if rec != nil {
				rec.Release()
			}
		}
	}()

	j.logger.Infof("parsing %d chunks with %d workers", n, j.parallelism)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.parallelism)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rec, res, err := j.parseChunk(gctx, i)
			chunks[i] = res
			if err != nil {
				j.logger.Errorf("chunk %d: %v", i, err)
				return err
			}
			records[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var warnings *multierror.Error
	failed := 0
	for _, res := range chunks {
		if res.Err != nil {
			warnings = multierror.Append(warnings, res.Err)
			failed++
		}
	}

	schema := frame.Schema(j.cfg)
	tbl := array.NewTableFromRecords(schema, records)

	res := &Result{
		JobID:    j.id,
		Config:   j.cfg,
		Table:    tbl,
		Chunks:   chunks,
		Warnings: warnings.ErrorOrNil(),
	}
	j.logger.Infof("parsed %d rows from %d chunks, %d with warnings", tbl.NumRows(), n, failed)
	return res, nil
}

// parseChunk parses chunk idx into a fresh frame and reports the outcome.
func (j *Job) parseChunk(ctx context.Context, idx int) (arrow.Record, ChunkResult, error) {
	ctx, span := tracer().Start(ctx, "chunkparse.parseChunk",
		trace.WithAttributes(attribute.Int("chunk", idx), attribute.String("job_id", j.id.String())))
	defer span.End()

	f := frame.New(j.mem, j.cfg)
	defer f.Release()

	start := time.Now()
	res, err := ParseChunk(ctx, j.store, idx, j.cfg, f, ParseOptions{
		OnLoad: func(start, loaded int) {
			j.listener.ChunkLoaded(ChunkLoadInfo{JobID: j.id, Chunk: start, Loaded: loaded})
		},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "chunk parse failed")
		return nil, res, err
	}
	if int64(f.Rows()) != res.Rows {
		return nil, res, errors.AssertionFailedf("chunk %d reported %d rows but its frame holds %d", idx, res.Rows, f.Rows())
	}

	j.metrics.observe(res, time.Since(start).Seconds())
	span.SetAttributes(
		attribute.Int64("rows", res.Rows),
		attribute.Int64("blocks", res.Blocks),
		attribute.Int("extra_chunks", res.ExtraChunks),
	)

	info := ChunkInfo{JobID: j.id, ChunkResult: res}
	if res.Err != nil {
		span.RecordError(res.Err)
		j.listener.ChunkFailed(info)
	} else {
		j.listener.ChunkParsed(info)
	}
	return f.NewRecord(), res, nil
}
