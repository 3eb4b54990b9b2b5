package runtime

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/parley/internal/logging"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/observability"
	"github.com/aretw0/parley/pkg/ports"
	"github.com/google/uuid"
)

// ErrNoWorkflow is reported for a session that was never bound to a workflow.
var ErrNoWorkflow = errors.New("session has no workflow")

// Engine is the conversation orchestrator. It is stateless: every call works on
// the session it is given, and the caller serializes calls per conversation.
type Engine struct {
	completer    ports.Completer
	presenter    ports.Presenter
	systemPrompt string
	metrics      *observability.Metrics
	logger       *slog.Logger
	now          func() time.Time
	newID        func() string
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithSystemPrompt replaces DefaultSystemPrompt.
func WithSystemPrompt(prompt string) EngineOption {
	return func(e *Engine) {
		e.systemPrompt = prompt
	}
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *observability.Metrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithClock overrides the transcript clock.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// WithExchangeIDs overrides the generator of stream exchange ids.
func WithExchangeIDs(gen func() string) EngineOption {
	return func(e *Engine) {
		e.newID = gen
	}
}

// NewEngine creates an orchestrator.
func NewEngine(completer ports.Completer, presenter ports.Presenter, opts ...EngineOption) *Engine {
	e := &Engine{
		completer:    completer,
		presenter:    presenter,
		systemPrompt: DefaultSystemPrompt,
		logger:       logging.NewNop(),
		now:          time.Now,
		newID:        uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "orchestrator")
	return e
}

// Result describes a handled turn.
type Result struct {
	// Session is the updated copy of the input session; the caller persists it.
	Session *domain.Session

	// Decision is the zero Decision when the turn only presented a node.
	Decision Decision

	// Err is a failure that was already handled and reported to the user as a notice.
	Err error

	// Cancelled is set when ctx was cancelled during the turn. Nothing was emitted after that.
	Cancelled bool
}

// Handle runs one turn of the conversation.
//
// The input session is not modified. Failures never escape: they are logged, surfaced
// to sink as error notices and recorded in Result.Err, and the returned session is
// always consistent and ready for the next turn.
func (e *Engine) Handle(ctx context.Context, in *domain.Session, utterance string, sink ports.EventSink) *Result {
	s := in.Clone()
	res := &Result{Session: s}
	text := strings.TrimSpace(utterance)
	log := e.logger.With("conversation_id", s.ConversationID)

	if s.Workflow == nil {
		res.Err = ErrNoWorkflow
		log.Error("Cannot handle turn", "error", ErrNoWorkflow)
		e.emit(ctx, sink, domain.NoticeEvent(s.ConversationID, domain.KindUnknown, unexpectedNotice))
		return res
	}

	node, ok := s.Workflow.Resolve(s.CurrentNodeID)
	if !ok {
		e.recoverPosition(ctx, s, res, sink)
		return res
	}

	// Rendered before matching: every path below falls back to it.
	payload, err := e.presenter.Present(node)
	if err != nil {
		e.unexpected(ctx, s, res, sink, err)
		return res
	}

	if text == "" {
		e.metrics.Turn(observability.OutcomePresent)
		e.emit(ctx, sink, domain.PresentEvent(s.ConversationID, node, payload))
		return res
	}

	log.Info("Processing user response", "node_id", node.ID, "preview", logging.Preview(text, 50))
	s.Append(domain.SpeakerUser, text, e.now())

	d := Decide(node, text)
	res.Decision = d
	log.Debug("Decided", "node_id", node.ID, "outcome", d.Outcome.String())

	switch d.Outcome {
	case Transition:
		next, ok := s.Workflow.Resolve(d.Target)
		if !ok {
			derr := &domain.DanglingEdgeError{NodeID: node.ID, Label: d.Answer.Label, Target: d.Target}
			res.Err = derr
			log.Warn("Answer points to a missing node, staying", "error", derr)
			e.metrics.Turn(observability.OutcomeDanglingEdge)
			e.emit(ctx, sink, domain.NoticeEvent(s.ConversationID, domain.KindDanglingEdge, Notice(domain.KindDanglingEdge)))
			e.emit(ctx, sink, domain.PresentEvent(s.ConversationID, node, payload))
			return res
		}
		s.CurrentNodeID = next.ID
		e.metrics.Turn(observability.OutcomeTransition)
		e.present(ctx, s, res, sink, next)

	case SelfLoop:
		e.metrics.Turn(observability.OutcomeSelfLoop)
		e.emit(ctx, sink, domain.PresentEvent(s.ConversationID, node, payload))

	case Terminal:
		e.metrics.Turn(observability.OutcomeTerminal)
		e.emit(ctx, sink, domain.PresentEvent(s.ConversationID, node, payload))

	case Escalate:
		e.metrics.Turn(observability.OutcomeEscalate)
		e.escalate(ctx, s, res, sink, node, payload)
	}
	return res
}

// recoverPosition moves a session that points outside its workflow back to the start node.
// The utterance was addressed to a node that no longer exists, so it is neither matched nor recorded.
func (e *Engine) recoverPosition(ctx context.Context, s *domain.Session, res *Result, sink ports.EventSink) {
	lerr := &domain.LostPositionError{
		ConversationID: s.ConversationID,
		NodeID:         s.CurrentNodeID,
		WorkflowID:     s.Workflow.ID,
	}
	res.Err = lerr
	e.logger.Warn("Session lost its position, resetting to start",
		"conversation_id", s.ConversationID,
		"start_node", s.Workflow.StartNodeID,
		"error", lerr,
	)
	e.metrics.Turn(observability.OutcomeLostPosition)

	s.CurrentNodeID = s.Workflow.StartNodeID
	e.emit(ctx, sink, domain.NoticeEvent(s.ConversationID, domain.KindLostPosition, Notice(domain.KindLostPosition)))
	e.present(ctx, s, res, sink, s.Workflow.Start())
}

func (e *Engine) present(ctx context.Context, s *domain.Session, res *Result, sink ports.EventSink, node *domain.Node) {
	payload, err := e.presenter.Present(node)
	if err != nil {
		e.unexpected(ctx, s, res, sink, err)
		return
	}
	e.emit(ctx, sink, domain.PresentEvent(s.ConversationID, node, payload))
}

func (e *Engine) unexpected(ctx context.Context, s *domain.Session, res *Result, sink ports.EventSink, err error) {
	res.Err = err
	e.logger.Error("Unexpected failure while handling turn",
		"conversation_id", s.ConversationID,
		"node_id", s.CurrentNodeID,
		"error", err,
	)
	e.emit(ctx, sink, domain.NoticeEvent(s.ConversationID, domain.KindUnknown, unexpectedNotice))
}

// emit delivers an event unless ctx is already done. A failing sink is logged, not fatal.
func (e *Engine) emit(ctx context.Context, sink ports.EventSink, ev domain.Event) bool {
	if ctx.Err() != nil {
		return false
	}
	if err := sink.Emit(ctx, ev); err != nil {
		e.logger.Warn("Failed to emit event",
			"conversation_id", ev.ConversationID,
			"type", ev.Type,
			"error", err,
		)
		return false
	}
	return true
}
