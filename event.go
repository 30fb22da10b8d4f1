package chunkparse

import (
	"github.com/oklog/ulid/v2"
)

// ChunkInfo contains the info for a chunk parse event.
type ChunkInfo struct {
	// JobID identifies the job the chunk belongs to
	JobID ulid.ULID
	ChunkResult
}

// ChunkLoadInfo contains the info for an extra chunk load.
type ChunkLoadInfo struct {
	JobID ulid.ULID
	// Chunk is the index of the chunk being parsed
	Chunk int
	// Loaded is the number of chunks loaded beyond Chunk so far
	Loaded int
}

// EventListener contains a set of functions that will be invoked when
// various job events occur. Callbacks may be invoked concurrently from
// different chunk parses.
type EventListener struct {
	// ChunkParsed is invoked after a chunk parse completes without failure.
	ChunkParsed func(ChunkInfo)

	// ChunkFailed is invoked after a chunk parse stopped on a transient
	// failure. ChunkInfo.Err holds the failure; the rows decoded before it
	// are kept.
	ChunkFailed func(ChunkInfo)

	// ChunkLoaded is invoked whenever a chunk parse pulls in a following
	// chunk to finish its blocks.
	ChunkLoaded func(ChunkLoadInfo)
}

// EnsureDefaults ensures that non-nil callbacks are set for every event.
func (l *EventListener) EnsureDefaults() {
	if l.ChunkParsed == nil {
		l.ChunkParsed = func(ChunkInfo) {}
	}
	if l.ChunkFailed == nil {
		l.ChunkFailed = func(ChunkInfo) {}
	}
	if l.ChunkLoaded == nil {
		l.ChunkLoaded = func(ChunkLoadInfo) {}
	}
}

// MakeLoggingEventListener creates an EventListener that logs all events to
// the specified logger.
func MakeLoggingEventListener(logger Logger) EventListener {
	if logger == nil {
		logger = DefaultLogger
	}

	return EventListener{
		ChunkParsed: func(info ChunkInfo) {
			logger.Infof("[JOB %s] chunk=%d rows=%d start=%d blocks=%d block_size=%d extra_chunks=%d",
				info.JobID, info.Index, info.Rows, info.StartOffset, info.Blocks, info.BlockSize, info.ExtraChunks)
		},
		ChunkFailed: func(info ChunkInfo) {
			logger.Errorf("[JOB %s] chunk=%d rows=%d kept after failure: %v",
				info.JobID, info.Index, info.Rows, info.Err)
		},
		ChunkLoaded: func(info ChunkLoadInfo) {
			logger.Infof("[JOB %s] chunk=%d loaded=%d", info.JobID, info.Chunk, info.Loaded)
		},
	}
}

// TeeEventListener wraps two EventListeners, forwarding all events to both.
func TeeEventListener(a, b EventListener) EventListener {
	a.EnsureDefaults()
	b.EnsureDefaults()
	return EventListener{
		ChunkParsed: func(info ChunkInfo) {
			a.ChunkParsed(info)
			b.ChunkParsed(info)
		},
		ChunkFailed: func(info ChunkInfo) {
			a.ChunkFailed(info)
			b.ChunkFailed(info)
		},
		ChunkLoaded: func(info ChunkLoadInfo) {
			a.ChunkLoaded(info)
			b.ChunkLoaded(info)
		},
	}
}
