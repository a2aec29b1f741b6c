package stream

import (
	"context"
	"errors"
	"iter"
	"log/slog"
)

// Source opens the stream channel for one message. The returned iterator yields each received
// payload in delivery order, or an error on transport failure. Stopping the iteration closes the
// channel.
type Source interface {
	Stream(ctx context.Context, message string) iter.Seq2[string, error]
}

// Sink receives the effects of a session. The chat transcript is the usual implementation.
type Sink interface {
	SetLoading(ctx context.Context, loading bool) error
	MergeAssistant(ctx context.Context, content string) error
	AppendError(ctx context.Context) error
}

// Accumulator drives stream sessions: it issues the request through its Source, feeds every
// received payload to Step, and applies the resulting effects to a Sink.
type Accumulator struct {
	source Source

	logger *slog.Logger
}

const errLoggerKey = "err"

// ErrUnterminated is the failure reported when a stream ends before the sentinel.
var ErrUnterminated = errors.New("stream ended before " + Sentinel)

// NewAccumulator creates an Accumulator reading from source.
func NewAccumulator(source Source, logger *slog.Logger) Accumulator {
	return Accumulator{
		source: source,
		logger: logger.With(slog.String("module", "stream")),
	}
}

// Run performs one session for message and returns its terminal state. Failures of the stream are
// recovered into the sink and never returned; failures of the sink itself are logged and do not
// interrupt the session.
func (a Accumulator) Run(ctx context.Context, sink Sink, message string) State {
	s, effects := Step(Session{}, Start())
	a.apply(ctx, sink, effects)

	for payload, err := range a.source.Stream(ctx, message) {
		ev := Data(payload)
		if err != nil {
			a.logger.Warn("Stream failed", slog.String(errLoggerKey, err.Error()))
			ev = Fail(err)
		}

		s, effects = Step(s, ev)
		if a.apply(ctx, sink, effects) {
			// Leaving the loop closes the channel, so payloads sent after this point are never read.
			break
		}
	}

	if !s.State.Terminal() {
		err := ErrUnterminated
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		a.logger.Warn("Stream closed", slog.String(errLoggerKey, err.Error()))
		s, effects = Step(s, Fail(err))
		a.apply(ctx, sink, effects)
	}

	a.logger.Debug("Session ended",
		slog.String("state", s.State.String()),
		slog.Int("length", len(s.Buffer)))

	return s.State
}

// apply performs effects in order and reports whether one of them closed the channel.
func (a Accumulator) apply(ctx context.Context, sink Sink, effects []Effect) bool {
	closed := false
	// The final effects are still applied when the session context is cancelled.
	ctx = context.WithoutCancel(ctx)
	for _, e := range effects {
		var err error
		switch e.Kind {
		case EffectSetLoading:
			err = sink.SetLoading(ctx, e.Loading)
		case EffectMergeAssistant:
			err = sink.MergeAssistant(ctx, e.Content)
		case EffectAppendError:
			err = sink.AppendError(ctx)
		case EffectClose:
			closed = true
		}
		if err != nil {
			a.logger.Error("Failed to apply effect",
				slog.Int("effect", int(e.Kind)),
				slog.String(errLoggerKey, err.Error()))
		}
	}
	return closed
}
