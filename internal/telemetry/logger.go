package telemetry

import (
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

// OTELHook adds trace and span ids to log events that carry a context
// with a valid span.
type OTELHook struct{}

func (h OTELHook) Run(e *zerolog.Event, _ zerolog.Level, _ string) {
	ctx := e.GetCtx()
	if ctx == nil {
		return
	}

	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return
	}

	e.Str("trace_id", sc.TraceID().String())
	e.Str("span_id", sc.SpanID().String())
}

// SetupLogging configures the global zerolog logger: console output on w,
// the given level, and the OTEL hook. debug forces debug level.
func SetupLogging(w io.Writer, level string, debug bool) error {
	lvl := zerolog.DebugLevel
	if !debug {
		var err error
		lvl, err = zerolog.ParseLevel(strings.ToLower(level))
		if err != nil {
			return fmt.Errorf("parse log level %q: %w", level, err)
		}
		if lvl == zerolog.NoLevel {
			lvl = zerolog.InfoLevel
		}
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(lvl)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: w}).
		With().
		Timestamp().
		Logger().
		Hook(OTELHook{})

	return nil
}
