package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/aretw0/parley/internal/logging"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
)

// Engine is the part of parley.Engine the chat loop drives.
type Engine interface {
	Converse(ctx context.Context, conversationID, utterance string, sink ports.EventSink) error
	Present(ctx context.Context, conversationID string, sink ports.EventSink) error
	Session(conversationID string) (*domain.Session, error)
}

// ContentRenderer transforms node prompts before they are printed (e.g. markdown to ANSI).
type ContentRenderer func(string) (string, error)

// Runner is the line-oriented terminal chat.
type Runner struct {
	Engine         Engine
	ConversationID string
	Input          io.Reader
	Output         io.Writer
	Renderer       ContentRenderer
	Sanitizer      Sanitizer
	Logger         *slog.Logger

	// Interrupts delivers Ctrl+C. An interrupt during a turn cancels that turn only,
	// one while waiting for input ends the chat. Nil disables it.
	Interrupts <-chan os.Signal
}

// NewRunner creates a Runner on Stdin/Stdout.
func NewRunner(engine Engine, opts ...Option) *Runner {
	r := &Runner{
		Engine:         engine,
		ConversationID: "terminal",
		Input:          os.Stdin,
		Output:         os.Stdout,
		Sanitizer:      NewSanitizer(0),
		Logger:         logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NotifyInterrupts subscribes to SIGINT for the runner. Call the returned func to stop.
func NotifyInterrupts() (<-chan os.Signal, func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt)
	return ch, func() { signal.Stop(ch) }
}

// Run presents the current node and then handles one line per turn until the
// conversation reaches a terminal node, the input ends, the user types "exit"
// or ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	sink := NewTextSink(r.Output, r.resolve)
	sink.Renderer = r.Renderer
	lines := newLineReader(r.Input)

	if err := r.turn(ctx, sink, ""); err != nil {
		return err
	}

	for !sink.Terminal() {
		fmt.Fprint(r.Output, "> ")
		line, err := r.readLine(ctx, lines)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				fmt.Fprintln(r.Output)
				return nil
			}
			return err
		}

		text := strings.TrimSpace(line)
		switch strings.ToLower(text) {
		case "exit", "quit":
			return nil
		}

		clean, err := r.Sanitizer.Clean(text)
		if err != nil {
			fmt.Fprintf(r.Output, "Error: %v. Please try again.\n", err)
			continue
		}

		if err := r.turn(ctx, sink, sink.Choose(clean)); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) readLine(ctx context.Context, lines *lineReader) (string, error) {
	if r.Interrupts == nil {
		return lines.ReadLine(ctx)
	}
	readCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-r.Interrupts:
			cancel()
		case <-readCtx.Done():
		}
	}()
	return lines.ReadLine(readCtx)
}

// turn runs one utterance; an interrupt cancels the turn and the chat goes on.
func (r *Runner) turn(ctx context.Context, sink *TextSink, utterance string) error {
	turnCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if r.Interrupts != nil {
		go func() {
			select {
			case <-r.Interrupts:
				r.Logger.Debug("Turn interrupted", "conversation_id", r.ConversationID)
				cancel()
			case <-turnCtx.Done():
			}
		}()
	}

	var err error
	if utterance == "" {
		err = r.Engine.Present(turnCtx, r.ConversationID, sink)
	} else {
		err = r.Engine.Converse(turnCtx, r.ConversationID, utterance, sink)
	}
	if turnCtx.Err() != nil && ctx.Err() == nil {
		fmt.Fprintln(r.Output, "\n(interrupted)")
		return nil
	}
	return err
}

func (r *Runner) resolve(nodeID string) (*domain.Node, bool) {
	s, err := r.Engine.Session(r.ConversationID)
	if err != nil || s.Workflow == nil {
		return nil, false
	}
	return s.Workflow.Resolve(nodeID)
}
