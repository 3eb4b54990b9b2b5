package runner

import (
	"io"
	"log/slog"
	"os"
)

// Option defines a functional option for configuring the Runner.
type Option func(*Runner)

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.Logger = logger
	}
}

// WithIO replaces Stdin/Stdout.
func WithIO(in io.Reader, out io.Writer) Option {
	return func(r *Runner) {
		r.Input = in
		r.Output = out
	}
}

// WithConversationID sets the conversation the chat drives (default: "terminal").
func WithConversationID(id string) Option {
	return func(r *Runner) {
		r.ConversationID = id
	}
}

// WithRenderer configures the content renderer (e.g. TUI, Markdown).
func WithRenderer(renderer ContentRenderer) Option {
	return func(r *Runner) {
		r.Renderer = renderer
	}
}

// WithMaxInputSize sets the byte limit of typed lines.
func WithMaxInputSize(n int) Option {
	return func(r *Runner) {
		r.Sanitizer = NewSanitizer(n)
	}
}

// WithInterrupts wires Ctrl+C handling, see NotifyInterrupts.
func WithInterrupts(ch <-chan os.Signal) Option {
	return func(r *Runner) {
		r.Interrupts = ch
	}
}
