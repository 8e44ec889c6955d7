// Package rlog provides the structured logger shared by render-core
// subsystems. It wraps zerolog, the logging library harvested from the
// corpus's golang.org/x/exp/event sample (itsManjeet-exp) rather than hand
// rolling one, matching the teacher's own convention of never reimplementing
// an ambient concern the ecosystem already does well.
package rlog

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Logger is a thin facade over zerolog.Logger scoped to one subsystem
// ("component" field), so call sites read naturally: rlog.For("barrier").Warn()....
type Logger struct {
	z zerolog.Logger
}

var base = zerolog.New(io.Discard).With().Timestamp().Logger()

// Configure points every subsequent For() call at the given writer and level.
// Call once at host startup; defaults to a discarding logger so library use
// in tests never spams stdout.
func Configure(w io.Writer, level zerolog.Level) {
	if w == nil {
		w = os.Stderr
	}
	base = zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// For returns a Logger scoped to the named component (e.g. "drawgen", "staging").
func For(component string) Logger {
	return Logger{z: base.With().Str("component", component).Logger()}
}

func (l Logger) Debug() *zerolog.Event { return l.z.Debug() }
func (l Logger) Info() *zerolog.Event  { return l.z.Info() }
func (l Logger) Warn() *zerolog.Event  { return l.z.Warn() }
func (l Logger) Error() *zerolog.Event { return l.z.Error() }
