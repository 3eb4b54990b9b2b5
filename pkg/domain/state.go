package domain

import "time"

// AnonymousUser is the user name of a session nobody introduced.
const AnonymousUser = "Anonymous"

// Speaker identifies who produced a transcript turn.
type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "assistant"
)

// Turn is one transcript entry.
type Turn struct {
	Speaker   Speaker   `json:"speaker"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is the mutable record of one conversation.
type Session struct {
	ConversationID string
	UserName       string
	CurrentNodeID  string
	Transcript     []Turn
	Workflow       *Graph
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewSession creates a session positioned on the start node of workflow.
func NewSession(conversationID string, workflow *Graph) *Session {
	now := time.Now()
	s := &Session{
		ConversationID: conversationID,
		UserName:       AnonymousUser,
		Transcript:     []Turn{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.Bind(workflow)
	return s
}

// Bind attaches a workflow and resets the position to its start node. The transcript is kept.
func (s *Session) Bind(workflow *Graph) {
	s.Workflow = workflow
	s.CurrentNodeID = ""
	if workflow != nil {
		s.CurrentNodeID = workflow.StartNodeID
	}
}

// SetUserName sets the display name, keeping AnonymousUser for blank names.
func (s *Session) SetUserName(name string) {
	if name == "" {
		name = AnonymousUser
	}
	s.UserName = name
}

// Append records a turn.
func (s *Session) Append(speaker Speaker, text string, at time.Time) {
	s.Transcript = append(s.Transcript, Turn{Speaker: speaker, Text: text, Timestamp: at})
	s.UpdatedAt = at
}

// Clone returns a copy that can be mutated without affecting s. The workflow is shared.
func (s *Session) Clone() *Session {
	c := *s
	c.Transcript = append(make([]Turn, 0, len(s.Transcript)), s.Transcript...)
	return &c
}
