package runner

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/aretw0/parley/pkg/domain"
)

// NodeResolver finds the node a presentation event refers to.
type NodeResolver func(nodeID string) (*domain.Node, bool)

// TextSink prints the events of a turn for a terminal user. Streamed chunks are
// written as they arrive; nodes are printed as their question plus numbered options.
type TextSink struct {
	Writer   io.Writer
	Renderer ContentRenderer
	Resolve  NodeResolver

	mu        sync.Mutex
	streaming bool
	current   *domain.Node
	terminal  bool
}

// NewTextSink creates a sink writing to w.
func NewTextSink(w io.Writer, resolve NodeResolver) *TextSink {
	return &TextSink{Writer: w, Resolve: resolve}
}

// Emit implements ports.EventSink.
func (s *TextSink) Emit(_ context.Context, ev domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev.Type {
	case domain.EventStreamChunk:
		if !s.streaming {
			s.streaming = true
			fmt.Fprint(s.Writer, "\n")
		}
		_, err := io.WriteString(s.Writer, ev.Text)
		return err

	case domain.EventStreamEnd:
		if s.streaming {
			fmt.Fprint(s.Writer, "\n")
		}
		s.streaming = false

	case domain.EventErrorNotice:
		s.breakLine()
		fmt.Fprintf(s.Writer, "! %s\n", ev.Message)

	case domain.EventPresentNode:
		s.breakLine()
		s.terminal = ev.Terminal
		node, ok := s.Resolve(ev.NodeID)
		if !ok {
			return fmt.Errorf("cannot display node %q: %w", ev.NodeID, domain.ErrNodeNotFound)
		}
		s.current = node
		s.printNode(node)
	}
	return nil
}

// breakLine ends an interrupted stream so the next output starts on its own line.
func (s *TextSink) breakLine() {
	if s.streaming {
		fmt.Fprint(s.Writer, "\n")
		s.streaming = false
	}
}

func (s *TextSink) printNode(node *domain.Node) {
	prompt := node.Prompt
	if s.Renderer != nil {
		if rendered, err := s.Renderer(prompt); err == nil {
			prompt = rendered
		}
	}
	fmt.Fprintf(s.Writer, "\n%s\n", strings.TrimSpace(prompt))

	if node.IsTerminal() {
		return
	}
	for i, label := range node.Labels() {
		fmt.Fprintf(s.Writer, "  %d) %s\n", i+1, label)
	}
	if node.AcceptsText() {
		fmt.Fprintln(s.Writer, "  (or type your own question)")
	}
}

// Current returns the last presented node.
func (s *TextSink) Current() *domain.Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Terminal reports whether the last presented node ends the conversation.
func (s *TextSink) Terminal() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.terminal
}

// Choose maps a typed option number to its label. Other input is returned unchanged.
func (s *TextSink) Choose(input string) string {
	node := s.Current()
	if node == nil {
		return input
	}
	n, err := strconv.Atoi(input)
	if err != nil {
		return input
	}
	labels := node.Labels()
	if n < 1 || n > len(labels) {
		return input
	}
	return labels[n-1]
}
