package runtime_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/parley/internal/runtime"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
	"github.com/stretchr/testify/require"
)

// fakeCompleter replays scripted chunks and records every prompt it receives.
type fakeCompleter struct {
	mu       sync.Mutex
	chunks   []string
	err      error // delivered as the final chunk
	startErr error // returned by Stream itself
	block    bool  // after the chunks, wait for ctx to be done
	prompts  [][]domain.Message
}

func (f *fakeCompleter) Stream(ctx context.Context, prompt []domain.Message) (<-chan domain.Chunk, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	if f.startErr != nil {
		return nil, f.startErr
	}

	out := make(chan domain.Chunk)
	go func() {
		defer close(out)
		for _, c := range f.chunks {
			select {
			case out <- domain.Chunk{Text: c}:
			case <-ctx.Done():
				return
			}
		}
		if f.block {
			<-ctx.Done()
			return
		}
		if f.err != nil {
			select {
			case out <- domain.Chunk{Err: f.err}:
			case <-ctx.Done():
			}
		}
	}()
	return out, nil
}

func (f *fakeCompleter) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

// recorder is an EventSink that keeps every event.
type recorder struct {
	mu     sync.Mutex
	events []domain.Event
	onEmit func(domain.Event)
}

func (r *recorder) Emit(_ context.Context, ev domain.Event) error {
	r.mu.Lock()
	r.events = append(r.events, ev)
	hook := r.onEmit
	r.mu.Unlock()
	if hook != nil {
		hook(ev)
	}
	return nil
}

func (r *recorder) types() []domain.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.EventType, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

func (r *recorder) last() domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

func (r *recorder) ofType(t domain.EventType) []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Event
	for _, ev := range r.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

// promptPresenter renders a node as its prompt text.
var promptPresenter = ports.PresenterFunc(func(n *domain.Node) (any, error) {
	return n.Prompt, nil
})

var fixedTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newEngine(c ports.Completer) *runtime.Engine {
	return runtime.NewEngine(c, promptPresenter,
		runtime.WithClock(func() time.Time { return fixedTime }),
		runtime.WithExchangeIDs(func() string { return "exchange-1" }),
	)
}

// supportGraph: A --Continue--> B, A --Yes--> B, A --Again--> (self), A --Broken--> Z (missing), B is free text, C terminal.
func supportGraph(t *testing.T) *domain.Graph {
	t.Helper()
	g, err := domain.NewGraph("support", "support", "A", []*domain.Node{
		{ID: "A", Prompt: "Shall we go on?", Kind: domain.NodeChoice, Answers: []domain.Answer{
			{Label: "Continue", Target: "B"},
			{Label: "Yes", Target: "B"},
			{Label: "No", Target: "C"},
			{Label: "Again"},
			{Label: "Broken", Target: "Z"},
		}},
		{ID: "B", Prompt: "Tell me more", Kind: domain.NodeChoiceWithText, Answers: []domain.Answer{
			{Label: "Back", Target: "A"},
		}},
		{ID: "C", Prompt: "Goodbye", Kind: domain.NodeTerminal},
	})
	require.NoError(t, err)
	return g
}
