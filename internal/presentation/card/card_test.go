package card

import (
	"encoding/json"
	"testing"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func node(kind domain.NodeKind, labels ...string) *domain.Node {
	n := &domain.Node{ID: "n", Prompt: "Pick", Kind: kind}
	for _, l := range labels {
		n.Answers = append(n.Answers, domain.Answer{Label: l})
	}
	return n
}

func types(c *Card) []string {
	var out []string
	for _, e := range c.Body {
		out = append(out, e.Type)
	}
	return out
}

func TestRender_Choice(t *testing.T) {
	c := New().Render(node(domain.NodeChoice, "Yes", "No"))

	assert.Equal(t, "1.6", c.Version)
	assert.Equal(t, []string{"TextBlock", "TextBlock", "ActionSet"}, types(c))
	require.Len(t, c.Body[2].Actions, 2)
	assert.Equal(t, "Yes", c.Body[2].Actions[0].Title)
	assert.Equal(t, map[string]string{"option": "No"}, c.Body[2].Actions[1].Data)
}

func TestRender_ChoiceWithText(t *testing.T) {
	c := New().Render(node(domain.NodeChoiceWithText, "Back"))

	assert.Equal(t, []string{"TextBlock", "TextBlock", "ActionSet", "Input.Text"}, types(c))
	assert.Equal(t, ResponseInputID, c.Body[3].ID)
	assert.Equal(t, 500, c.Body[3].MaxLength)
}

func TestRender_FreeTextAndTerminal(t *testing.T) {
	c := (&Presenter{MaxInputLength: 120}).Render(node(domain.NodeFreeText))
	assert.Equal(t, []string{"TextBlock", "Input.Text"}, types(c))
	assert.Equal(t, 120, c.Body[1].MaxLength)

	c = New().Render(node(domain.NodeTerminal, "ignored"))
	assert.Equal(t, []string{"TextBlock", "TextBlock"}, types(c))
	assert.Empty(t, c.Actions)
}

func TestRender_Message(t *testing.T) {
	c := New().Render(node(domain.NodeMessage))

	assert.Equal(t, []string{"TextBlock", "TextBlock", "Input.Text", "Input.Text", "Input.Text"}, types(c))
	assert.Equal(t, MessageTitleID, c.Body[2].ID)
	assert.True(t, c.Body[3].IsMultiline)
	assert.Equal(t, MessageAttachmentsID, c.Body[4].ID)
	require.Len(t, c.Actions, 1)
	assert.Equal(t, map[string]string{"action": "submitMessageForm"}, c.Actions[0].Data)
}

func TestPresent_SerializesAsAdaptiveCard(t *testing.T) {
	payload, err := New().Present(node(domain.NodeChoice, "Yes"))
	require.NoError(t, err)

	data, err := json.Marshal(payload)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "AdaptiveCard", doc["type"])
	assert.Equal(t, schemaURL, doc["$schema"])
}

func TestRender_EmptyPrompt(t *testing.T) {
	c := New().Render(&domain.Node{ID: "x", Kind: domain.NodeFreeText})
	assert.Equal(t, "No question provided.", c.Body[0].Text)
}
