package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/parley"
	"github.com/aretw0/parley/internal/logging"
	"github.com/aretw0/parley/internal/presentation/graph"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
	"github.com/aretw0/parley/pkg/runner"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// TurnResponse summarizes the events of one turn for a tool caller.
type TurnResponse struct {
	ConversationID string   `json:"conversation_id"`
	NodeID         string   `json:"node_id,omitempty"`
	Question       string   `json:"question,omitempty"`
	Options        []string `json:"options,omitempty"`
	Terminal       bool     `json:"terminal"`
	Reply          string   `json:"reply,omitempty"`
	Notices        []string `json:"notices,omitempty"`
}

// Engine defines the interface required by the MCP server to interact with Parley.
type Engine interface {
	Converse(ctx context.Context, conversationID, utterance string, sink ports.EventSink) error
	Present(ctx context.Context, conversationID string, sink ports.EventSink) error
	Session(conversationID string) (*domain.Session, error)
	Workflows(ctx context.Context) ([]string, error)
	Workflow(ctx context.Context, name string) (*domain.Graph, error)
}

var _ Engine = (*parley.Engine)(nil)

// Server wraps the Parley Engine and exposes it as an MCP Server.
type Server struct {
	engine    Engine
	sanitizer runner.Sanitizer
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures the Server.
type Option func(*Server)

// WithLogger configures a logger for the Server.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMaxInputSize sets the byte limit of user utterances.
func WithMaxInputSize(n int) Option {
	return func(s *Server) {
		s.sanitizer = runner.NewSanitizer(n)
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(engine Engine, opts ...Option) *Server {
	s := &Server{
		engine:    engine,
		sanitizer: runner.NewSanitizer(0),
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("parley-mcp", strings.TrimSpace(parley.Version)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "mcp")
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves MCP over SSE on addr until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{Addr: addr, Handler: mux}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	// TOOL: converse
	s.mcpServer.AddTool(mcp.NewTool("converse",
		mcp.WithDescription("Send a user message to a conversation. Matching an option moves the conversation; other text is answered by the assistant."),
		mcp.WithString("conversation_id", mcp.Required(), mcp.Description("Conversation identifier")),
		mcp.WithString("text", mcp.Required(), mcp.Description("What the user said")),
	), s.handleConverse)

	// TOOL: present
	s.mcpServer.AddTool(mcp.NewTool("present",
		mcp.WithDescription("Show the current question of a conversation, starting it if needed."),
		mcp.WithString("conversation_id", mcp.Required(), mcp.Description("Conversation identifier")),
	), s.handlePresent)

	// TOOL: list_workflows
	s.mcpServer.AddTool(mcp.NewTool("list_workflows",
		mcp.WithDescription("List the available workflows."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		names, err := s.engine.Workflows(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
		}
		return mcp.NewToolResultText(strings.Join(names, "\n")), nil
	})

	// TOOL: get_graph
	s.mcpServer.AddTool(mcp.NewTool("get_graph",
		mcp.WithDescription("Get a Mermaid diagram of a workflow, optionally highlighting where a conversation stands."),
		mcp.WithString("workflow", mcp.Required(), mcp.Description("Workflow name")),
		mcp.WithString("conversation_id", mcp.Description("Conversation to highlight (optional)")),
	), s.handleGetGraph)
}

func (s *Server) handleConverse(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("conversation_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text, err := request.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	clean, err := s.sanitizer.Clean(text)
	if err != nil {
		s.logger.Warn("MCP Converse: Input rejected", "error", err, "size", len(text))
		return mcp.NewToolResultError(fmt.Sprintf("input rejected: %v", err)), nil
	}

	rec := newTurnRecorder(id)
	if err := s.engine.Converse(ctx, id, clean, rec); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("converse failed: %v", err)), nil
	}
	return rec.result(s.engine)
}

func (s *Server) handlePresent(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("conversation_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rec := newTurnRecorder(id)
	if err := s.engine.Present(ctx, id, rec); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("present failed: %v", err)), nil
	}
	return rec.result(s.engine)
}

func (s *Server) handleGetGraph(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("workflow")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	g, err := s.engine.Workflow(ctx, name)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("load failed: %v", err)), nil
	}

	var overlay *graph.Overlay
	if id := request.GetString("conversation_id", ""); id != "" {
		sess, err := s.engine.Session(id)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("unknown conversation: %v", err)), nil
		}
		overlay = &graph.Overlay{CurrentNode: sess.CurrentNodeID}
	}
	return mcp.NewToolResultText(graph.GenerateMermaid(g, overlay)), nil
}

func (s *Server) registerResources() {
	// EXPOSE: parley://workflows
	s.mcpServer.AddResource(mcp.NewResource("parley://workflows", "Available Workflows",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		names, err := s.engine.Workflows(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list workflows: %w", err)
		}
		jsonBytes, _ := json.Marshal(names)
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "parley://workflows",
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}

// turnRecorder folds the events of a turn into a TurnResponse.
type turnRecorder struct {
	mu    sync.Mutex
	resp  TurnResponse
	reply strings.Builder
}

func newTurnRecorder(conversationID string) *turnRecorder {
	return &turnRecorder{resp: TurnResponse{ConversationID: conversationID}}
}

func (r *turnRecorder) Emit(_ context.Context, ev domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch ev.Type {
	case domain.EventPresentNode:
		r.resp.NodeID = ev.NodeID
		r.resp.Terminal = ev.Terminal
	case domain.EventStreamChunk:
		r.reply.WriteString(ev.Text)
	case domain.EventErrorNotice:
		r.resp.Notices = append(r.resp.Notices, ev.Message)
	}
	return nil
}

// result fills the question and options from the session's workflow, since the
// presentation payload is meant for rendering, not for tool callers.
func (r *turnRecorder) result(engine Engine) (*mcp.CallToolResult, error) {
	r.mu.Lock()
	resp := r.resp
	resp.Reply = r.reply.String()
	r.mu.Unlock()

	if sess, err := engine.Session(resp.ConversationID); err == nil && sess.Workflow != nil {
		if node, ok := sess.Workflow.Resolve(resp.NodeID); ok {
			resp.Question = node.Prompt
			resp.Options = node.Labels()
		}
	}

	data, err := json.Marshal(resp)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}
