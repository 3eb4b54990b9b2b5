// Package card renders workflow nodes as Adaptive Cards.
package card

import (
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
)

const (
	schemaURL = "http://adaptivecards.io/schemas/adaptive-card.json"
	version   = "1.6"

	// ResponseInputID is the id of the free text input; hosts read the user's text from it.
	ResponseInputID = "userResponse"

	// Input ids of the message form.
	MessageTitleID       = "title"
	MessageBodyID        = "message"
	MessageAttachmentsID = "attachments"
)

// Card is the root of an Adaptive Card document.
type Card struct {
	Schema  string    `json:"$schema"`
	Type    string    `json:"type"`
	Version string    `json:"version"`
	Body    []Element `json:"body"`
	Actions []Action  `json:"actions,omitempty"`
}

// Element is a body item. Only the fields relevant to its Type are set.
type Element struct {
	Type         string   `json:"type"`
	ID           string   `json:"id,omitempty"`
	Text         string   `json:"text,omitempty"`
	Wrap         bool     `json:"wrap,omitempty"`
	Size         string   `json:"size,omitempty"`
	Weight       string   `json:"weight,omitempty"`
	Separator    bool     `json:"separator,omitempty"`
	Placeholder  string   `json:"placeholder,omitempty"`
	MaxLength    int      `json:"maxLength,omitempty"`
	IsMultiline  bool     `json:"isMultiline,omitempty"`
	Actions      []Action `json:"actions,omitempty"`
	InlineAction *Action  `json:"inlineAction,omitempty"`
}

// Action is a submit button.
type Action struct {
	Type  string            `json:"type"`
	Title string            `json:"title"`
	Data  map[string]string `json:"data,omitempty"`
}

// Presenter renders nodes by kind.
type Presenter struct {
	// MaxInputLength caps the free text box. Zero means 500.
	MaxInputLength int
}

var _ ports.Presenter = (*Presenter)(nil)

// New creates a Presenter with default settings.
func New() *Presenter {
	return &Presenter{}
}

// Present implements ports.Presenter. The payload is a *Card.
func (p *Presenter) Present(node *domain.Node) (any, error) {
	return p.Render(node), nil
}

// Render builds the card for node.
func (p *Presenter) Render(node *domain.Node) *Card {
	c := &Card{Schema: schemaURL, Type: "AdaptiveCard", Version: version}
	c.Body = append(c.Body, question(node.Prompt))

	switch node.Kind {
	case domain.NodeChoice:
		c.Body = append(c.Body, hint("Select an option below:"))
		if len(node.Answers) > 0 {
			c.Body = append(c.Body, Element{Type: "ActionSet", Actions: choices(node)})
		}
	case domain.NodeChoiceWithText:
		c.Body = append(c.Body, hint("Select an option below or type your response:"))
		if len(node.Answers) > 0 {
			c.Body = append(c.Body, Element{Type: "ActionSet", Actions: choices(node)})
		}
		c.Body = append(c.Body, p.textInput())
	case domain.NodeMessage:
		c.Body = append(c.Body, messageForm()...)
		c.Actions = []Action{{
			Type:  "Action.Submit",
			Title: "Submit",
			Data:  map[string]string{"action": "submitMessageForm"},
		}}
	case domain.NodeTerminal:
		c.Body = append(c.Body, hint("This conversation has ended. Thank you!"))
	default:
		c.Body = append(c.Body, p.textInput())
	}
	return c
}

func question(text string) Element {
	if text == "" {
		text = "No question provided."
	}
	return Element{Type: "TextBlock", Text: text, Wrap: true, Size: "Medium", Weight: "Bolder"}
}

func hint(text string) Element {
	return Element{Type: "TextBlock", Text: text, Wrap: true, Separator: true}
}

func messageForm() []Element {
	return []Element{
		hint("Please fill out the details below:"),
		{Type: "Input.Text", ID: MessageTitleID, Placeholder: "Enter the title here", MaxLength: 100},
		{Type: "Input.Text", ID: MessageBodyID, Placeholder: "Type your message here", MaxLength: 500, IsMultiline: true},
		{Type: "Input.Text", ID: MessageAttachmentsID, Placeholder: "Add any attachments or URLs here", MaxLength: 200},
	}
}

func choices(node *domain.Node) []Action {
	actions := make([]Action, 0, len(node.Answers))
	for _, a := range node.Answers {
		actions = append(actions, Action{
			Type:  "Action.Submit",
			Title: a.Label,
			Data:  map[string]string{"option": a.Label},
		})
	}
	return actions
}

func (p *Presenter) textInput() Element {
	max := p.MaxInputLength
	if max <= 0 {
		max = 500
	}
	return Element{
		Type:        "Input.Text",
		ID:          ResponseInputID,
		Placeholder: "Type your answer here and press Enter...",
		MaxLength:   max,
		InlineAction: &Action{
			Type:  "Action.Submit",
			Title: "Send",
			Data:  map[string]string{"action": "submitText"},
		},
	}
}
