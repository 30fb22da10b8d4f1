package chunkparse

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

var tracer = sync.OnceValue(func() trace.Tracer {
	return otel.GetTracerProvider().Tracer("github.com/nao1215/chunkparse")
})
