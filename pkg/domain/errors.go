package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound is returned when a conversation id is unknown to the session store.
	ErrSessionNotFound = errors.New("session not found")

	// ErrNodeNotFound is returned when a node id does not resolve in a graph.
	ErrNodeNotFound = errors.New("node not found")

	// ErrWorkflowNotFound is returned when a catalog has no workflow under the requested name.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrStartNodeRemoval is returned when an edit would delete the start node.
	ErrStartNodeRemoval = errors.New("cannot delete the start node")

	// ErrEmptyStream is returned when a completion finished without producing any text.
	ErrEmptyStream = errors.New("completion produced no text")
)

// ErrorKind classifies user-facing notices.
type ErrorKind string

const (
	KindLostPosition     ErrorKind = "lost_position"
	KindDanglingEdge     ErrorKind = "dangling_edge"
	KindUnreachable      ErrorKind = "unreachable"
	KindTimeout          ErrorKind = "timeout"
	KindMalformedRequest ErrorKind = "malformed_request"
	KindEmptyResponse    ErrorKind = "empty_response"
	KindUnknown          ErrorKind = "unknown"
)

// GraphLoadError reports a malformed or missing workflow source.
type GraphLoadError struct {
	Source string
	Err    error
}

func (e *GraphLoadError) Error() string {
	return fmt.Sprintf("load workflow %q: %v", e.Source, e.Err)
}

func (e *GraphLoadError) Unwrap() error { return e.Err }

// LostPositionError reports a session whose current node is missing from its own workflow.
type LostPositionError struct {
	ConversationID string
	NodeID         string
	WorkflowID     string
}

func (e *LostPositionError) Error() string {
	return fmt.Sprintf("conversation %q lost its position: node %q not in workflow %q", e.ConversationID, e.NodeID, e.WorkflowID)
}

func (e *LostPositionError) Unwrap() error { return ErrNodeNotFound }

// DanglingEdgeError reports a matched answer whose target does not resolve.
type DanglingEdgeError struct {
	NodeID string
	Label  string
	Target string
}

func (e *DanglingEdgeError) Error() string {
	return fmt.Sprintf("answer %q on node %q points to missing node %q", e.Label, e.NodeID, e.Target)
}

func (e *DanglingEdgeError) Unwrap() error { return ErrNodeNotFound }

// CompletionError is a classified failure of a completion backend.
type CompletionError struct {
	Kind       ErrorKind
	Provider   string
	StatusCode int
	Err        error
}

func (e *CompletionError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s completion failed (%s, status %d): %v", e.Provider, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s completion failed (%s): %v", e.Provider, e.Kind, e.Err)
}

func (e *CompletionError) Unwrap() error { return e.Err }
