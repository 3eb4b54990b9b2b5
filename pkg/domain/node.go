package domain

import "strings"

// NodeKind determines the presentation variant of a node and whether free text is invited.
type NodeKind string

const (
	// NodeChoice offers only the node's answers.
	NodeChoice NodeKind = "Options"
	// NodeChoiceWithText offers the answers plus a free text box.
	NodeChoiceWithText NodeKind = "OptionsWithText"
	// NodeFreeText only asks for free text.
	NodeFreeText NodeKind = "Text"
	// NodeMessage asks the user to write a message (title, body, attachments) in one form.
	// Its submission is free text like any other.
	NodeMessage NodeKind = "Message"
	// NodeTerminal closes the conversation. Utterances that match nothing are not escalated.
	NodeTerminal NodeKind = "Terminal"
)

// ParseNodeKind maps the questionType spellings found in workflow documents to a NodeKind.
// A missing questionType means NodeChoice; unknown values fall back to NodeFreeText.
func ParseNodeKind(s string) NodeKind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "options", "choice", "choice_only":
		return NodeChoice
	case "message":
		return NodeMessage
	case "optionswithtext", "options_with_text", "choice_with_text":
		return NodeChoiceWithText
	case "terminal", "end":
		return NodeTerminal
	default:
		return NodeFreeText
	}
}

// Answer is a labeled edge leaving a node.
type Answer struct {
	// Label is what the user has to say (case-insensitive, exact) to take this edge.
	Label string `json:"response" yaml:"response"`

	// Target is the next node. Empty means stay on the current node.
	Target string `json:"nextNode,omitempty" yaml:"nextNode,omitempty"`

	// SystemPrompt is carried through for hosts; matching ignores it.
	SystemPrompt string `json:"system,omitempty" yaml:"system,omitempty"`
}

// Matches reports whether the utterance selects this answer.
func (a Answer) Matches(utterance string) bool {
	return strings.EqualFold(a.Label, utterance)
}

// Node is a single step of a workflow.
type Node struct {
	ID      string   `json:"id" yaml:"id"`
	Prompt  string   `json:"question" yaml:"question"`
	Kind    NodeKind `json:"questionType" yaml:"questionType"`
	Answers []Answer `json:"answers" yaml:"answers"`
}

// IsTerminal reports whether the node closes the conversation.
func (n *Node) IsTerminal() bool {
	return n.Kind == NodeTerminal
}

// AcceptsText reports whether the node invites text of the user's own.
func (n *Node) AcceptsText() bool {
	switch n.Kind {
	case NodeFreeText, NodeChoiceWithText, NodeMessage:
		return true
	}
	return false
}

// Labels returns the answer labels in declaration order.
func (n *Node) Labels() []string {
	labels := make([]string, 0, len(n.Answers))
	for _, a := range n.Answers {
		labels = append(labels, a.Label)
	}
	return labels
}

// Clone returns a deep copy of the node.
func (n *Node) Clone() *Node {
	c := *n
	c.Answers = append([]Answer(nil), n.Answers...)
	return &c
}
