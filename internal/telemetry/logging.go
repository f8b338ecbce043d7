package telemetry

import (
	"io"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// NewLogger returns the process logger with service metadata and the
// trace-correlation hook installed.
func NewLogger(w io.Writer, serviceName, version string, level zerolog.Level) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	return zerolog.New(w).
		Level(level).
		Hook(TraceHook{}).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", version).
		Logger()
}

// TraceHook adds trace_id and span_id to events logged with a context that
// carries a valid span (see zerolog.Event.Ctx).
type TraceHook struct{}

// Run implements zerolog.Hook.
func (TraceHook) Run(e *zerolog.Event, _ zerolog.Level, _ string) {
	ctx := e.GetCtx()
	if ctx == nil {
		return
	}
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return
	}
	e.Str("trace_id", sc.TraceID().String()).Str("span_id", sc.SpanID().String())
}
