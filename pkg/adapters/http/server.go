package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/aretw0/parley"
	"github.com/aretw0/parley/internal/compiler"
	"github.com/aretw0/parley/internal/logging"
	"github.com/aretw0/parley/internal/presentation/graph"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
	"github.com/aretw0/parley/pkg/runner"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxBodySize = 1 << 20

// Engine is the part of parley.Engine the HTTP transport needs.
type Engine interface {
	Converse(ctx context.Context, conversationID, utterance string, sink ports.EventSink) error
	Present(ctx context.Context, conversationID string, sink ports.EventSink) error
	SetUser(ctx context.Context, conversationID, userName, workflowName string, sink ports.EventSink) error
	Session(conversationID string) (*domain.Session, error)
	Subscribe(ctx context.Context, conversationID string) (<-chan domain.Event, error)
	Workflows(ctx context.Context) ([]string, error)
	Workflow(ctx context.Context, name string) (*domain.Graph, error)
	AddNode(ctx context.Context, workflowName string, node *domain.Node) (*domain.Graph, error)
	DeleteNode(ctx context.Context, workflowName, nodeID string) (*domain.Graph, error)
}

var _ Engine = (*parley.Engine)(nil)

// Server routes HTTP requests to the engine.
type Server struct {
	Engine    Engine
	Sanitizer runner.Sanitizer
	Gatherer  prometheus.Gatherer
	Logger    *slog.Logger

	parser *compiler.Parser
}

// Option configures the Server.
type Option func(*Server)

// WithLogger configures a logger for the Server.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.Logger = logger
	}
}

// WithMaxInputSize sets the byte limit of user utterances.
func WithMaxInputSize(n int) Option {
	return func(s *Server) {
		s.Sanitizer = runner.NewSanitizer(n)
	}
}

// WithGatherer selects the registry served on /metrics (default: the global one).
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.Gatherer = g
	}
}

// NewHandler creates a new HTTP handler for the engine.
func NewHandler(engine Engine, opts ...Option) http.Handler {
	s := &Server{
		Engine:    engine,
		Sanitizer: runner.NewSanitizer(0),
		Gatherer:  prometheus.DefaultGatherer,
		Logger:    logging.NewNop(),
		parser:    compiler.NewParser(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Logger = s.Logger.With("component", "http")

	r := chi.NewRouter()
	r.Use(enableCORS)

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{}))

	r.Route("/conversations/{id}", func(r chi.Router) {
		r.Get("/", s.GetConversation)
		r.Post("/messages", s.PostMessage)
		r.Put("/user", s.PutUser)
		r.Get("/transcript", s.GetTranscript)
		r.Get("/events", s.SubscribeEvents)
	})

	r.Route("/workflows", func(r chi.Router) {
		r.Get("/", s.ListWorkflows)
		r.Get("/{name}", s.GetWorkflow)
		r.Get("/{name}/diagram", s.GetDiagram)
		r.Put("/{name}/nodes/{nodeID}", s.PutNode)
		r.Delete("/{name}/nodes/{nodeID}", s.DeleteNode)
	})

	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type messageRequest struct {
	Text string `json:"text"`
}

type userRequest struct {
	UserName string `json:"userName"`
	Workflow string `json:"workflow"`
}

type transcriptResponse struct {
	ConversationID string        `json:"conversation_id"`
	UserName       string        `json:"user_name"`
	Workflow       string        `json:"workflow"`
	CurrentNode    string        `json:"current_node"`
	Turns          []domain.Turn `json:"turns"`
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"app":     "parley-http",
		"version": strings.TrimSpace(parley.Version),
	})
}

// PostMessage handles POST /conversations/{id}/messages. The events of the turn are
// streamed back as server-sent events as soon as they are produced.
func (s *Server) PostMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var body messageRequest
	if err := decodeBody(r, &body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.Logger.Warn("PostMessage: Invalid request body", "error", err)
		return
	}

	text, err := s.Sanitizer.Clean(body.Text)
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid input: %v", err), http.StatusBadRequest)
		s.Logger.Warn("PostMessage: Input rejected", "error", err, "size", len(body.Text))
		return
	}

	stream, err := newEventStream(w)
	if err != nil {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	if err := s.Engine.Converse(r.Context(), id, text, stream); err != nil {
		if !stream.started() {
			s.writeError(w, err)
			return
		}
		s.Logger.Error("PostMessage: Turn aborted", "conversation_id", id, "error", err)
	}
}

// GetConversation handles GET /conversations/{id}, returning the presentation of the current node.
// Unknown conversations are started on the default workflow.
func (s *Server) GetConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec := &collector{}
	if err := s.Engine.Present(r.Context(), id, rec); err != nil {
		s.writeError(w, err)
		return
	}
	s.writePresentation(w, rec)
}

// PutUser handles PUT /conversations/{id}/user.
func (s *Server) PutUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var body userRequest
	if err := decodeBody(r, &body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	userName, err := s.Sanitizer.Clean(strings.TrimSpace(body.UserName))
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid user name: %v", err), http.StatusBadRequest)
		return
	}

	rec := &collector{}
	if err := s.Engine.SetUser(r.Context(), id, userName, body.Workflow, rec); err != nil {
		s.writeError(w, err)
		return
	}
	s.writePresentation(w, rec)
}

// GetTranscript handles GET /conversations/{id}/transcript.
func (s *Server) GetTranscript(w http.ResponseWriter, r *http.Request) {
	sess, err := s.Engine.Session(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	resp := transcriptResponse{
		ConversationID: sess.ConversationID,
		UserName:       sess.UserName,
		CurrentNode:    sess.CurrentNodeID,
		Turns:          sess.Transcript,
	}
	if sess.Workflow != nil {
		resp.Workflow = sess.Workflow.ID
	}
	writeJSON(w, http.StatusOK, resp)
}

// SubscribeEvents handles GET /conversations/{id}/events (SSE). Unlike PostMessage it
// follows every turn of the conversation, whichever client or replica handles it.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	stream, err := newEventStream(w)
	if err != nil {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	events, err := s.Engine.Subscribe(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.Logger.Info("SSE: Subscribing to conversation events", "conversation_id", id)

	stream.comment("connected")
	for {
		select {
		case <-r.Context().Done():
			s.Logger.Info("SSE Client Disconnected", "conversation_id", id)
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := stream.Emit(r.Context(), ev); err != nil {
				return
			}
		}
	}
}

// ListWorkflows handles GET /workflows.
func (s *Server) ListWorkflows(w http.ResponseWriter, r *http.Request) {
	names, err := s.Engine.Workflows(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"workflows": names})
}

// GetWorkflow handles GET /workflows/{name}.
func (s *Server) GetWorkflow(w http.ResponseWriter, r *http.Request) {
	g, err := s.Engine.Workflow(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, compiler.Document(g))
}

// GetDiagram handles GET /workflows/{name}/diagram. With ?conversation=<id> the
// conversation's current node is highlighted.
func (s *Server) GetDiagram(w http.ResponseWriter, r *http.Request) {
	g, err := s.Engine.Workflow(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	var overlay *graph.Overlay
	if convID := r.URL.Query().Get("conversation"); convID != "" {
		sess, err := s.Engine.Session(convID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		overlay = &graph.Overlay{CurrentNode: sess.CurrentNodeID}
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, graph.GenerateMermaid(g, overlay))
}

// PutNode handles PUT /workflows/{name}/nodes/{nodeID} (upsert).
func (s *Server) PutNode(w http.ResponseWriter, r *http.Request) {
	nodeID := chi.URLParam(r, "nodeID")
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	node, err := s.parser.ParseNode(data, compiler.FormatJSON)
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid node: %v", err), http.StatusBadRequest)
		return
	}
	if node.ID != nodeID {
		http.Error(w, "Node id does not match the URL", http.StatusBadRequest)
		return
	}

	g, err := s.Engine.AddNode(r.Context(), chi.URLParam(r, "name"), node)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, compiler.Document(g))
}

// DeleteNode handles DELETE /workflows/{name}/nodes/{nodeID}.
func (s *Server) DeleteNode(w http.ResponseWriter, r *http.Request) {
	g, err := s.Engine.DeleteNode(r.Context(), chi.URLParam(r, "name"), chi.URLParam(r, "nodeID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, compiler.Document(g))
}

func (s *Server) writePresentation(w http.ResponseWriter, rec *collector) {
	ev, ok := rec.lastOf(domain.EventPresentNode)
	if !ok {
		// Presentation failed; the notice says why.
		if notice, ok := rec.lastOf(domain.EventErrorNotice); ok {
			writeJSON(w, http.StatusInternalServerError, notice)
			return
		}
		http.Error(w, "Nothing to present", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	var loadErr *domain.GraphLoadError
	switch {
	case errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrWorkflowNotFound),
		errors.Is(err, domain.ErrNodeNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrStartNodeRemoval):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.As(err, &loadErr):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, context.Canceled):
		// Client went away.
	default:
		s.Logger.Error("Request failed", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
	}
}

func decodeBody(r *http.Request, v any) error {
	return json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// collector is an EventSink that keeps the events of one turn.
type collector struct {
	mu     sync.Mutex
	events []domain.Event
}

func (c *collector) Emit(_ context.Context, ev domain.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

func (c *collector) lastOf(t domain.EventType) (domain.Event, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.events) - 1; i >= 0; i-- {
		if c.events[i].Type == t {
			return c.events[i], true
		}
	}
	return domain.Event{}, false
}
