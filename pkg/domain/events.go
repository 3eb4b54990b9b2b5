package domain

import "time"

// EventType defines the category of an outbound event.
type EventType string

const (
	EventPresentNode EventType = "present_node"
	EventStreamChunk EventType = "stream_chunk"
	EventStreamEnd   EventType = "stream_end"
	EventErrorNotice EventType = "error_notice"
)

// Event is what a turn asks the transport to deliver.
type Event struct {
	Type           EventType `json:"type"`
	ConversationID string    `json:"conversation_id"`
	Timestamp      time.Time `json:"timestamp"`

	// present_node
	NodeID   string `json:"node_id,omitempty"`
	Payload  any    `json:"payload,omitempty"`
	Terminal bool   `json:"terminal,omitempty"`

	// stream_chunk, stream_end
	ExchangeID string `json:"exchange_id,omitempty"`
	Text       string `json:"text,omitempty"`

	// error_notice
	Message string    `json:"message,omitempty"`
	Kind    ErrorKind `json:"kind,omitempty"`
}

// PresentEvent wraps a rendered node.
func PresentEvent(conversationID string, node *Node, payload any) Event {
	return Event{
		Type:           EventPresentNode,
		ConversationID: conversationID,
		Timestamp:      time.Now(),
		NodeID:         node.ID,
		Payload:        payload,
		Terminal:       node.IsTerminal(),
	}
}

// ChunkEvent carries a fragment of an assistant reply.
func ChunkEvent(conversationID, exchangeID, text string) Event {
	return Event{
		Type:           EventStreamChunk,
		ConversationID: conversationID,
		Timestamp:      time.Now(),
		ExchangeID:     exchangeID,
		Text:           text,
	}
}

// EndEvent marks an assistant reply as complete.
func EndEvent(conversationID, exchangeID string) Event {
	return Event{
		Type:           EventStreamEnd,
		ConversationID: conversationID,
		Timestamp:      time.Now(),
		ExchangeID:     exchangeID,
	}
}

// NoticeEvent carries a user-facing error message.
func NoticeEvent(conversationID string, kind ErrorKind, message string) Event {
	return Event{
		Type:           EventErrorNotice,
		ConversationID: conversationID,
		Timestamp:      time.Now(),
		Message:        message,
		Kind:           kind,
	}
}
