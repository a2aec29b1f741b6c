package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/MegaGrindStone/nany-chat/internal/stream"
)

// Runner performs one stream session for a message, applying its effects to the sink.
// stream.Accumulator is the production implementation.
type Runner interface {
	Run(ctx context.Context, sink stream.Sink, message string) stream.State
}

// Chat connects user input to a Transcript and a Runner. At most one session runs at a time: a
// submission made while a response is streaming is rejected.
type Chat struct {
	transcript *Transcript
	runner     Runner

	active *atomic.Bool

	logger *slog.Logger
}

const errLoggerKey = "err"

var (
	// ErrEmptyMessage is returned by Submit when the input is empty after trimming whitespace.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrBusy is returned by Submit while a previous response is still streaming.
	ErrBusy = errors.New("a response is still streaming")
)

// New creates a Chat writing to transcript and streaming responses through runner.
func New(transcript *Transcript, runner Runner, logger *slog.Logger) Chat {
	return Chat{
		transcript: transcript,
		runner:     runner,
		active:     &atomic.Bool{},
		logger: logger.With(
			slog.String("module", "chat"),
			slog.String("conversationID", transcript.ConversationID()),
		),
	}
}

// Transcript returns the transcript the chat writes to.
func (c Chat) Transcript() *Transcript {
	return c.transcript
}

// Busy reports whether a session is running.
func (c Chat) Busy() bool {
	return c.active.Load()
}

// Submit sends input to the chat endpoint. The user message is appended and the transcript marked
// as loading before Submit returns; the response is streamed into the transcript in the background,
// bounded by ctx. The returned channel receives the terminal state of the session and is then closed.
//
// Input that is empty after trimming returns ErrEmptyMessage and input submitted while a session
// is running returns ErrBusy; neither appends a message nor issues a request.
func (c Chat) Submit(ctx context.Context, input string) (<-chan stream.State, error) {
	if strings.TrimSpace(input) == "" {
		return nil, ErrEmptyMessage
	}
	if !c.active.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}

	if _, err := c.transcript.AppendUser(ctx, input); err != nil {
		c.logger.Error("Failed to store user message", slog.String(errLoggerKey, err.Error()))
	}
	// The session counts as loading from the moment Submit returns.
	_ = c.transcript.SetLoading(ctx, true)

	done := make(chan stream.State, 1)
	go func() {
		defer close(done)

		state := c.runner.Run(ctx, c.transcript, input)
		c.active.Store(false)

		c.logger.Info("Response finished", slog.String("state", state.String()))
		done <- state
	}()

	return done, nil
}
