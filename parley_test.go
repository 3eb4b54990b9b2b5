package parley_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/parley"
	"github.com/aretw0/parley/pkg/adapters/memory"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const supportFlow = `{
  "workflowId": "support",
  "workflowName": "Support",
  "startNode": 1,
  "nodes": [
    {"id": 1, "question": "Do you need help?", "questionType": "Options",
     "answers": [{"response": "Yes", "nextNode": 2}, {"response": "No", "nextNode": 3}]},
    {"id": 2, "question": "Describe your problem.", "questionType": "OptionsWithText",
     "answers": [{"response": "Start over", "nextNode": 1}]},
    {"id": 3, "question": "Goodbye!", "questionType": "Terminal"}
  ]
}`

const surveyFlow = `
startNode: q1
nodes:
  - id: q1
    question: How was it?
    questionType: Text
`

// sink collects events across goroutines.
type sink struct {
	mu     sync.Mutex
	events []domain.Event
}

func (s *sink) Emit(_ context.Context, ev domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *sink) types() []domain.EventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.EventType, len(s.events))
	for i, ev := range s.events {
		out[i] = ev.Type
	}
	return out
}

func (s *sink) last() domain.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events[len(s.events)-1]
}

func (s *sink) text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sb strings.Builder
	for _, ev := range s.events {
		if ev.Type == domain.EventStreamChunk {
			sb.WriteString(ev.Text)
		}
	}
	return sb.String()
}

func newEngine(t *testing.T, opts ...parley.Option) (*parley.Engine, *memory.Completer, *memory.Catalog) {
	t.Helper()
	catalog, err := memory.NewLoader(map[string]string{
		"workflow.json": supportFlow,
		"survey.yaml":   surveyFlow,
	})
	require.NoError(t, err)
	completer := memory.NewCompleter("Have you tried restarting it?")

	base := []parley.Option{parley.WithCatalog(catalog), parley.WithCompleter(completer)}
	eng, err := parley.New(append(base, opts...)...)
	require.NoError(t, err)
	return eng, completer, catalog
}

func TestNew_RequiresCatalogAndCompleter(t *testing.T) {
	_, err := parley.New(parley.WithCompleter(memory.NewCompleter()))
	assert.Error(t, err)

	_, err = parley.New(parley.WithCatalog(memory.NewCatalog()))
	assert.Error(t, err)
}

func TestEngine_WalkThrough(t *testing.T) {
	eng, completer, _ := newEngine(t)
	ctx := context.Background()
	rec := &sink{}

	require.NoError(t, eng.Present(ctx, "c1", rec))
	assert.Equal(t, "1", rec.last().NodeID)

	require.NoError(t, eng.Converse(ctx, "c1", "  yes ", rec))
	assert.Equal(t, "2", rec.last().NodeID)

	require.NoError(t, eng.Converse(ctx, "c1", "My printer is on fire", rec))
	assert.Equal(t, []domain.EventType{
		domain.EventPresentNode,
		domain.EventPresentNode,
		domain.EventStreamChunk, domain.EventStreamChunk, domain.EventStreamChunk,
		domain.EventStreamChunk, domain.EventStreamChunk,
		domain.EventStreamEnd,
		domain.EventPresentNode,
	}, rec.types())
	assert.Equal(t, "Have you tried restarting it?", rec.text())
	assert.Equal(t, "2", rec.last().NodeID, "free text never moves the conversation")
	assert.Equal(t, 1, completer.Calls())

	transcript, err := eng.Transcript("c1")
	require.NoError(t, err)
	require.Len(t, transcript, 3)
	assert.Equal(t, "yes", transcript[0].Text)
	assert.Equal(t, domain.SpeakerAssistant, transcript[2].Speaker)
	assert.Equal(t, "Have you tried restarting it?", transcript[2].Text)
}

func TestEngine_ConverseNilSink(t *testing.T) {
	eng, _, _ := newEngine(t)

	require.NoError(t, eng.Converse(context.Background(), "c1", "No", nil))

	s, err := eng.Session("c1")
	require.NoError(t, err)
	assert.Equal(t, "3", s.CurrentNodeID)
}

func TestEngine_UnknownDefaultWorkflow(t *testing.T) {
	eng, _, _ := newEngine(t, parley.WithDefaultWorkflow("missing.json"))

	err := eng.Converse(context.Background(), "c1", "hi", nil)
	assert.ErrorIs(t, err, domain.ErrWorkflowNotFound)
	assert.Empty(t, eng.Conversations())
}

func TestEngine_SetUserBindsWorkflow(t *testing.T) {
	eng, _, _ := newEngine(t)
	ctx := context.Background()
	rec := &sink{}

	require.NoError(t, eng.Converse(ctx, "c1", "yes", rec))
	require.NoError(t, eng.SetUser(ctx, "c1", "Ada", "survey.yaml", rec))

	assert.Equal(t, "q1", rec.last().NodeID)
	s, err := eng.Session("c1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", s.UserName)
	assert.Equal(t, "q1", s.CurrentNodeID)
	assert.Len(t, s.Transcript, 1, "rebinding keeps the transcript")
}

func TestEngine_SetUserNewConversation(t *testing.T) {
	eng, _, _ := newEngine(t)

	require.NoError(t, eng.SetUser(context.Background(), "fresh", "", "", nil))

	s, err := eng.Session("fresh")
	require.NoError(t, err)
	assert.Equal(t, domain.AnonymousUser, s.UserName)
	assert.Equal(t, "1", s.CurrentNodeID)
}

func TestEngine_SwitchWorkflowUnknown(t *testing.T) {
	eng, _, _ := newEngine(t)

	err := eng.SwitchWorkflow(context.Background(), "c1", "nope.json", nil)
	assert.ErrorIs(t, err, domain.ErrWorkflowNotFound)
}

func TestEngine_TranscriptUnknownConversation(t *testing.T) {
	eng, _, _ := newEngine(t)

	_, err := eng.Transcript("ghost")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestEngine_EndConversation(t *testing.T) {
	eng, _, _ := newEngine(t)
	ctx := context.Background()

	require.NoError(t, eng.Present(ctx, "c1", nil))
	assert.Equal(t, []string{"c1"}, eng.Conversations())

	require.NoError(t, eng.EndConversation(ctx, "c1"))
	assert.Empty(t, eng.Conversations())
	assert.ErrorIs(t, eng.EndConversation(ctx, "c1"), domain.ErrSessionNotFound)
}

func TestEngine_SubscribeSeesEveryTurn(t *testing.T) {
	eng, _, _ := newEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := eng.Subscribe(ctx, "c1")
	require.NoError(t, err)

	require.NoError(t, eng.Present(ctx, "c1", nil))
	require.NoError(t, eng.Converse(ctx, "c1", "yes", nil))

	var nodes []string
	for len(nodes) < 2 {
		select {
		case ev := <-events:
			nodes = append(nodes, ev.NodeID)
		case <-time.After(time.Second):
			t.Fatal("missing bus event")
		}
	}
	assert.Equal(t, []string{"1", "2"}, nodes)
}

func TestEngine_ConcurrentTurnsAreSerialized(t *testing.T) {
	eng, _, _ := newEngine(t)
	ctx := context.Background()
	require.NoError(t, eng.Converse(ctx, "c1", "yes", nil))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, eng.Converse(ctx, "c1", "help me", nil))
		}()
	}
	wg.Wait()

	transcript, err := eng.Transcript("c1")
	require.NoError(t, err)
	require.Len(t, transcript, 1+20*2)
	for i := 1; i < len(transcript); i += 2 {
		assert.Equal(t, domain.SpeakerUser, transcript[i].Speaker)
		assert.Equal(t, domain.SpeakerAssistant, transcript[i+1].Speaker)
	}
}

func TestEngine_NodeEditing(t *testing.T) {
	eng, _, catalog := newEngine(t)
	ctx := context.Background()

	require.NoError(t, eng.Present(ctx, "c1", nil))

	g, err := eng.AddNode(ctx, "workflow.json", &domain.Node{ID: "4", Prompt: "New step", Kind: domain.NodeFreeText})
	require.NoError(t, err)
	assert.Equal(t, 4, g.Len())

	g, err = eng.UpdateNode(ctx, "workflow.json", &domain.Node{ID: "4", Prompt: "Edited", Kind: domain.NodeFreeText})
	require.NoError(t, err)
	n, _ := g.Resolve("4")
	assert.Equal(t, "Edited", n.Prompt)

	_, err = eng.UpdateNode(ctx, "workflow.json", &domain.Node{ID: "99"})
	assert.ErrorIs(t, err, domain.ErrNodeNotFound)

	g, err = eng.DeleteNode(ctx, "workflow.json", "3")
	require.NoError(t, err)
	start := g.Start()
	assert.Equal(t, []string{"Yes"}, start.Labels(), "answers leading to a deleted node are dropped")

	_, err = eng.DeleteNode(ctx, "workflow.json", "1")
	assert.ErrorIs(t, err, domain.ErrStartNodeRemoval)

	stored, err := catalog.Load(ctx, "workflow.json")
	require.NoError(t, err)
	assert.Equal(t, 3, stored.Len())

	s, err := eng.Session("c1")
	require.NoError(t, err)
	assert.Equal(t, 3, s.Workflow.Len(), "live sessions keep the graph they were bound to")
}

func TestEngine_ConcurrentNodeEdits(t *testing.T) {
	eng, _, catalog := newEngine(t)
	ctx := context.Background()

	const editors = 20
	var wg sync.WaitGroup
	for i := 0; i < editors; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := eng.AddNode(ctx, "workflow.json", &domain.Node{ID: fmt.Sprintf("extra-%d", i), Prompt: "Extra", Kind: domain.NodeFreeText})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	stored, err := catalog.Load(ctx, "workflow.json")
	require.NoError(t, err)
	assert.Equal(t, 3+editors, stored.Len(), "no edit is lost")
}
