package parley

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aretw0/parley/internal/logging"
	"github.com/aretw0/parley/internal/presentation/card"
	"github.com/aretw0/parley/internal/runtime"
	"github.com/aretw0/parley/pkg/adapters/memory"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/observability"
	"github.com/aretw0/parley/pkg/ports"
	"github.com/aretw0/parley/pkg/session"
)

// DefaultWorkflow is the workflow bound to conversations that did not pick one.
const DefaultWorkflow = "workflow.json"

// Engine is the high-level entry point for the Parley library.
// It owns the live sessions and routes every turn through the orchestrator,
// one turn at a time per conversation.
type Engine struct {
	runtime         *runtime.Engine
	sessions        *session.Manager
	catalog         ports.WorkflowCatalog
	completer       ports.Completer
	presenter       ports.Presenter
	bus             ports.EventBus
	metrics         *observability.Metrics
	logger          *slog.Logger
	defaultWorkflow string
	runtimeOpts     []runtime.EngineOption

	// editMu serializes load-edit-save of stored workflows. One lock for all of them:
	// "intro" and "intro.yaml" may name the same file.
	editMu sync.Mutex
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithCatalog sets where workflows are loaded from and saved to. Required.
func WithCatalog(c ports.WorkflowCatalog) Option {
	return func(e *Engine) {
		e.catalog = c
	}
}

// WithCompleter sets the language model backend used for free text. Required.
func WithCompleter(c ports.Completer) Option {
	return func(e *Engine) {
		e.completer = c
	}
}

// WithPresenter replaces the adaptive card presenter.
func WithPresenter(p ports.Presenter) Option {
	return func(e *Engine) {
		e.presenter = p
	}
}

// WithEventBus replaces the in-process event bus, e.g. with the Redis one.
func WithEventBus(b ports.EventBus) Option {
	return func(e *Engine) {
		e.bus = b
	}
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithDefaultWorkflow sets the workflow bound to new conversations (default: "workflow.json").
func WithDefaultWorkflow(name string) Option {
	return func(e *Engine) {
		e.defaultWorkflow = name
	}
}

// WithSystemPrompt replaces the priming message of free-text exchanges.
func WithSystemPrompt(prompt string) Option {
	return func(e *Engine) {
		if prompt != "" {
			e.runtimeOpts = append(e.runtimeOpts, runtime.WithSystemPrompt(prompt))
		}
	}
}

// New initializes a new Parley Engine.
func New(opts ...Option) (*Engine, error) {
	eng := &Engine{defaultWorkflow: DefaultWorkflow}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.catalog == nil {
		return nil, errors.New("a workflow catalog is required")
	}
	if eng.completer == nil {
		return nil, errors.New("a completer is required")
	}
	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}
	if eng.presenter == nil {
		eng.presenter = card.New()
	}
	if eng.bus == nil {
		eng.bus = memory.NewBus(eng.logger)
	}

	eng.sessions = session.NewManager(
		session.WithLogger(eng.logger.With("component", "sessions")),
		session.WithCreateHook(eng.metrics.SessionCreated),
	)

	runtimeOpts := []runtime.EngineOption{
		runtime.WithLogger(eng.logger),
		runtime.WithMetrics(eng.metrics),
	}
	runtimeOpts = append(runtimeOpts, eng.runtimeOpts...)
	eng.runtime = runtime.NewEngine(eng.completer, eng.presenter, runtimeOpts...)

	return eng, nil
}

// Converse handles one user utterance. Events for the turn go to sink (which may be nil)
// and to the event bus. Conversation failures are reported as error notices, not as
// errors: the returned error means the turn could not run at all.
func (e *Engine) Converse(ctx context.Context, conversationID, utterance string, sink ports.EventSink) error {
	if _, err := e.sessions.LookupOrCreate(ctx, conversationID, e.factory(e.defaultWorkflow)); err != nil {
		return err
	}
	return e.sessions.WithLock(ctx, conversationID, func(ctx context.Context) error {
		s, err := e.sessions.Get(conversationID)
		if err != nil {
			return err
		}
		res := e.runtime.Handle(ctx, s, utterance, e.tee(sink))
		e.sessions.Replace(conversationID, res.Session)
		return nil
	})
}

// Present emits the current node without interpreting any input.
func (e *Engine) Present(ctx context.Context, conversationID string, sink ports.EventSink) error {
	return e.Converse(ctx, conversationID, "", sink)
}

// SetUser names the user of a conversation and binds it to workflowName
// (the default workflow when empty), then presents the start node.
func (e *Engine) SetUser(ctx context.Context, conversationID, userName, workflowName string, sink ports.EventSink) error {
	return e.rebind(ctx, conversationID, workflowName, sink, func(s *domain.Session) {
		s.SetUserName(userName)
	})
}

// SwitchWorkflow binds a conversation to another workflow, keeping its transcript,
// and presents the new start node.
func (e *Engine) SwitchWorkflow(ctx context.Context, conversationID, workflowName string, sink ports.EventSink) error {
	return e.rebind(ctx, conversationID, workflowName, sink, nil)
}

func (e *Engine) rebind(ctx context.Context, conversationID, workflowName string, sink ports.EventSink, edit func(*domain.Session)) error {
	if workflowName == "" {
		workflowName = e.defaultWorkflow
	}
	g, err := e.catalog.Load(ctx, workflowName)
	if err != nil {
		return err
	}
	if _, err := e.sessions.LookupOrCreate(ctx, conversationID, e.factory(workflowName)); err != nil {
		return err
	}
	return e.sessions.WithLock(ctx, conversationID, func(ctx context.Context) error {
		s, err := e.sessions.Get(conversationID)
		if err != nil {
			return err
		}
		next := s.Clone()
		if edit != nil {
			edit(next)
		}
		next.Bind(g)
		e.logger.Info("Workflow bound",
			"conversation_id", conversationID,
			"workflow", g.ID,
			"user", next.UserName,
		)
		res := e.runtime.Handle(ctx, next, "", e.tee(sink))
		e.sessions.Replace(conversationID, res.Session)
		return nil
	})
}

// Session returns a copy of the conversation's session.
func (e *Engine) Session(conversationID string) (*domain.Session, error) {
	s, err := e.sessions.Get(conversationID)
	if err != nil {
		return nil, err
	}
	return s.Clone(), nil
}

// Transcript returns a copy of the conversation's transcript.
func (e *Engine) Transcript(conversationID string) ([]domain.Turn, error) {
	s, err := e.Session(conversationID)
	if err != nil {
		return nil, err
	}
	return s.Transcript, nil
}

// Conversations lists the live conversation ids.
func (e *Engine) Conversations() []string {
	return e.sessions.List()
}

// EndConversation forgets a conversation.
func (e *Engine) EndConversation(ctx context.Context, conversationID string) error {
	if _, err := e.sessions.Get(conversationID); err != nil {
		return err
	}
	return e.sessions.Delete(ctx, conversationID)
}

// Subscribe streams every event of a conversation, across turns, until ctx is done.
func (e *Engine) Subscribe(ctx context.Context, conversationID string) (<-chan domain.Event, error) {
	return e.bus.Subscribe(ctx, conversationID)
}

// Workflows lists the catalog.
func (e *Engine) Workflows(ctx context.Context) ([]string, error) {
	return e.catalog.List(ctx)
}

// Workflow loads a workflow from the catalog.
func (e *Engine) Workflow(ctx context.Context, name string) (*domain.Graph, error) {
	return e.catalog.Load(ctx, name)
}

// AddNode upserts a node of a stored workflow. Live conversations keep the version they were bound to.
func (e *Engine) AddNode(ctx context.Context, workflowName string, node *domain.Node) (*domain.Graph, error) {
	return e.editWorkflow(ctx, workflowName, func(g *domain.Graph) (*domain.Graph, error) {
		return g.WithNode(node), nil
	})
}

// UpdateNode replaces an existing node of a stored workflow.
func (e *Engine) UpdateNode(ctx context.Context, workflowName string, node *domain.Node) (*domain.Graph, error) {
	return e.editWorkflow(ctx, workflowName, func(g *domain.Graph) (*domain.Graph, error) {
		return g.ReplaceNode(node)
	})
}

// DeleteNode removes a node, and every answer leading to it, from a stored workflow.
func (e *Engine) DeleteNode(ctx context.Context, workflowName, nodeID string) (*domain.Graph, error) {
	return e.editWorkflow(ctx, workflowName, func(g *domain.Graph) (*domain.Graph, error) {
		return g.WithoutNode(nodeID)
	})
}

func (e *Engine) editWorkflow(ctx context.Context, name string, edit func(*domain.Graph) (*domain.Graph, error)) (*domain.Graph, error) {
	e.editMu.Lock()
	defer e.editMu.Unlock()

	g, err := e.catalog.Load(ctx, name)
	if err != nil {
		return nil, err
	}
	edited, err := edit(g)
	if err != nil {
		return nil, fmt.Errorf("failed to edit workflow %q: %w", name, err)
	}
	if err := e.catalog.Save(ctx, name, edited); err != nil {
		return nil, err
	}
	e.logger.Info("Workflow updated", "workflow", name, "nodes", edited.Len())
	return edited, nil
}

func (e *Engine) factory(workflowName string) ports.SessionFactory {
	return func(ctx context.Context, conversationID string) (*domain.Session, error) {
		g, err := e.catalog.Load(ctx, workflowName)
		if err != nil {
			return nil, err
		}
		return domain.NewSession(conversationID, g), nil
	}
}

// tee forwards each event to the caller's sink and then to the bus.
// A bus failure only costs the remote subscribers that event.
func (e *Engine) tee(sink ports.EventSink) ports.EventSink {
	return ports.SinkFunc(func(ctx context.Context, ev domain.Event) error {
		var err error
		if sink != nil {
			err = sink.Emit(ctx, ev)
		}
		if perr := e.bus.Publish(ctx, ev); perr != nil {
			e.logger.Warn("Failed to publish event",
				"conversation_id", ev.ConversationID,
				"type", ev.Type,
				"error", perr,
			)
		}
		return err
	})
}
