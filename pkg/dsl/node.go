package dsl

import "github.com/aretw0/parley/pkg/domain"

// NodeBuilder provides a fluent API for configuring a node.
type NodeBuilder struct {
	node    domain.Node
	builder *Builder
}

// Ask sets the prompt of the node.
func (n *NodeBuilder) Ask(prompt string) *NodeBuilder {
	n.node.Prompt = prompt
	return n
}

// Choice restricts the node to its answers. This is the default kind, as in workflow documents.
func (n *NodeBuilder) Choice() *NodeBuilder {
	n.node.Kind = domain.NodeChoice
	return n
}

// ChoiceWithText offers the answers plus free text.
func (n *NodeBuilder) ChoiceWithText() *NodeBuilder {
	n.node.Kind = domain.NodeChoiceWithText
	return n
}

// FreeText only asks for free text.
func (n *NodeBuilder) FreeText() *NodeBuilder {
	n.node.Kind = domain.NodeFreeText
	return n
}

// Answer adds an answer leading to target.
func (n *NodeBuilder) Answer(label, target string) *NodeBuilder {
	n.node.Answers = append(n.node.Answers, domain.Answer{Label: label, Target: target})
	return n
}

// Stay adds an answer that keeps the conversation on this node.
func (n *NodeBuilder) Stay(label string) *NodeBuilder {
	return n.Answer(label, "")
}

// System attaches a system prompt to the last answer added.
func (n *NodeBuilder) System(prompt string) *NodeBuilder {
	if len(n.node.Answers) > 0 {
		n.node.Answers[len(n.node.Answers)-1].SystemPrompt = prompt
	}
	return n
}

// Message asks for a written message (title, body, attachments).
func (n *NodeBuilder) Message() *NodeBuilder {
	n.node.Kind = domain.NodeMessage
	return n
}

// Terminal marks the node as the end of the conversation.
func (n *NodeBuilder) Terminal() *NodeBuilder {
	n.node.Kind = domain.NodeTerminal
	return n
}

// Then returns to the workflow builder, for chaining the next node.
func (n *NodeBuilder) Then() *Builder {
	return n.builder
}

// Build returns a copy of the underlying node.
func (n *NodeBuilder) Build() *domain.Node {
	return n.node.Clone()
}
