package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
)

// Completer is a scripted ports.Completer for demos and tests.
// It cycles through Replies and streams each one word by word.
type Completer struct {
	Replies []string
	Delay   time.Duration

	mu    sync.Mutex
	next  int
	calls int
}

var _ ports.Completer = (*Completer)(nil)

// NewCompleter creates a scripted completer.
func NewCompleter(replies ...string) *Completer {
	return &Completer{Replies: replies}
}

// Stream implements ports.Completer.
func (c *Completer) Stream(ctx context.Context, prompt []domain.Message) (<-chan domain.Chunk, error) {
	c.mu.Lock()
	c.calls++
	reply := ""
	if len(c.Replies) > 0 {
		reply = c.Replies[c.next%len(c.Replies)]
		c.next++
	}
	c.mu.Unlock()

	out := make(chan domain.Chunk)
	go func() {
		defer close(out)
		for _, word := range strings.SplitAfter(reply, " ") {
			if word == "" {
				continue
			}
			if c.Delay > 0 {
				select {
				case <-time.After(c.Delay):
				case <-ctx.Done():
					return
				}
			}
			select {
			case out <- domain.Chunk{Text: word}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Calls returns how many completions were started.
func (c *Completer) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}
