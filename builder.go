package chunkparse

import (
	"context"
	"runtime"

	"github.com/apache/arrow/go/v18/arrow/memory"
	"github.com/cockroachdb/errors"
	"github.com/nao1215/chunkparse/chunkstore"
	"github.com/nao1215/chunkparse/domain/model"
	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
)

// Builder configures a parse job. Use NewBuilder to create a new instance,
// then chain method calls to configure it.
//
// The typical usage pattern is:
//
//	preview, err := chunkparse.Preview(sample)
//	if err != nil {
//		return err
//	}
//	store, err := chunkstore.NewMemory(data, int(preview.Config.ChunkSize))
//	if err != nil {
//		return err
//	}
//	job, err := chunkparse.NewBuilder().
//		WithStore(store).
//		WithConfiguration(preview.Config).
//		Build(ctx)
//	if err != nil {
//		return err
//	}
//	result, err := job.Run(ctx)
type Builder struct {
	// store hands out the chunks of the file
	store chunkstore.Store
	// cfg is the parse configuration produced by Preview
	cfg *model.ParseConfiguration
	// parallelism bounds the number of chunks parsed at once
	parallelism int
	// logger receives job level messages
	logger Logger
	// listener receives chunk events
	listener *EventListener
	// registerer receives the job metrics
	registerer prometheus.Registerer
	// mem allocates the frame buffers
	mem memory.Allocator
}

// NewBuilder creates a new job builder.
func NewBuilder() *Builder {
	return &Builder{
		parallelism: 0, // Default: GOMAXPROCS
		logger:      DefaultLogger,
	}
}

// WithStore sets the chunk store to parse.
func (b *Builder) WithStore(store chunkstore.Store) *Builder {
	b.store = store
	return b
}

// WithConfiguration sets the parse configuration, usually from Preview or
// model.UnmarshalConfiguration.
func (b *Builder) WithConfiguration(cfg *model.ParseConfiguration) *Builder {
	b.cfg = cfg
	return b
}

// SetParallelism sets the maximum number of chunks parsed at once. Values
// below 1 mean runtime.GOMAXPROCS(0).
func (b *Builder) SetParallelism(n int) *Builder {
	b.parallelism = n
	return b
}

// WithLogger sets the logger. A nil logger discards messages.
func (b *Builder) WithLogger(logger Logger) *Builder {
	if logger == nil {
		logger = DiscardLogger
	}
	b.logger = logger
	return b
}

// WithEventListener sets the listener for chunk events. Without one, chunk
// events are logged to the job logger.
func (b *Builder) WithEventListener(listener EventListener) *Builder {
	b.listener = &listener
	return b
}

// WithMetrics registers the job metrics with reg, labelled with the job id.
func (b *Builder) WithMetrics(reg prometheus.Registerer) *Builder {
	b.registerer = reg
	return b
}

// WithAllocator sets the arrow allocator used for the frames.
func (b *Builder) WithAllocator(mem memory.Allocator) *Builder {
	b.mem = mem
	return b
}

// Build validates the configuration and creates the job.
func (b *Builder) Build(_ context.Context) (*Job, error) {
	if b.store == nil {
		return nil, ErrNoStore
	}
	if b.cfg == nil {
		return nil, ErrNoConfiguration
	}
	if err := b.cfg.Validate(); err != nil {
		if errors.Is(err, model.ErrFingerprintMismatch) {
			err = mismatch(err)
		}
		return nil, NewErrorContext("build job").Error(err)
	}

	parallelism := b.parallelism
	if parallelism < 1 {
		parallelism = runtime.GOMAXPROCS(0)
	}
	mem := b.mem
	if mem == nil {
		mem = memory.DefaultAllocator
	}

	id := ulid.Make()
	logger := prefixLogger{prefix: id.String(), l: b.logger}

	// Label the collectors with the job id so that jobs can share a registry
	var registerer prometheus.Registerer
	if b.registerer != nil {
		registerer = prometheus.WrapRegistererWith(prometheus.Labels{"job_id": id.String()}, b.registerer)
	}

	var listener EventListener
	if b.listener != nil {
		// Failures are logged whatever the listener does with them
		listener = *b.listener
		listener.EnsureDefaults()
		onFailed, logFailed := listener.ChunkFailed, MakeLoggingEventListener(b.logger).ChunkFailed
		listener.ChunkFailed = func(info ChunkInfo) {
			logFailed(info)
			onFailed(info)
		}
	} else {
		listener = MakeLoggingEventListener(b.logger)
	}
	listener.EnsureDefaults()

	return &Job{
		id:          id,
		store:       b.store,
		cfg:         b.cfg,
		parallelism: parallelism,
		logger:      logger,
		listener:    listener,
		metrics:     NewMetrics(registerer),
		mem:         mem,
	}, nil
}
