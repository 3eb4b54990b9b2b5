package compiler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/aretw0/parley/internal/dto"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Format is the serialization of a workflow source.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks the format from a file extension. Anything but .yaml/.yml is JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Parser converts workflow documents into graphs and back.
type Parser struct {
	validate *validator.Validate
}

// NewParser creates a new parser instance.
func NewParser() *Parser {
	return &Parser{
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Parse decodes a workflow source. Node ids and targets may be numbers or strings;
// both end up as strings. Every failure is a *domain.GraphLoadError.
func (p *Parser) Parse(source string, data []byte, format Format) (*domain.Graph, error) {
	var doc dto.WorkflowDocument
	if err := p.decode(data, format, &doc); err != nil {
		return nil, &domain.GraphLoadError{Source: source, Err: err}
	}
	return p.Build(source, doc)
}

// ParseNode decodes a single node document, as sent by workflow editors.
func (p *Parser) ParseNode(data []byte, format Format) (*domain.Node, error) {
	var nd dto.NodeDocument
	if err := p.decode(data, format, &nd); err != nil {
		return nil, err
	}
	return nodeFromDocument(nd), nil
}

// decodeJSON keeps numbers as json.Number so numeric ids survive beyond 2^53.
func decodeJSON(data []byte, out *map[string]any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return errors.New("unexpected data after the document")
	}
	return nil
}

// decode runs raw JSON/YAML through a weakly typed mapstructure pass into out, then validates it.
func (p *Parser) decode(data []byte, format Format, out any) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return errors.New("empty document")
	}

	var raw map[string]any
	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &raw)
	default:
		err = decodeJSON(data, &raw)
	}
	if err != nil {
		return fmt.Errorf("decode %s: %w", format, err)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(raw); err != nil {
		return fmt.Errorf("normalize: %w", err)
	}

	if err := p.validate.Struct(out); err != nil {
		return describeValidation(err)
	}
	return nil
}

// Build turns a decoded document into a graph.
func (p *Parser) Build(source string, doc dto.WorkflowDocument) (*domain.Graph, error) {
	nodes := make([]*domain.Node, 0, len(doc.Nodes))
	for _, nd := range doc.Nodes {
		nodes = append(nodes, nodeFromDocument(nd))
	}

	id := doc.WorkflowID
	if id == "" {
		id = source
	}
	name := doc.WorkflowName
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	}

	g, err := domain.NewGraph(id, name, strings.TrimSpace(doc.StartNode), nodes)
	if err != nil {
		var loadErr *domain.GraphLoadError
		if errors.As(err, &loadErr) {
			loadErr.Source = source
		}
		return nil, err
	}
	return g, nil
}

func nodeFromDocument(nd dto.NodeDocument) *domain.Node {
	node := &domain.Node{
		ID:      strings.TrimSpace(nd.ID),
		Prompt:  nd.Question,
		Kind:    domain.ParseNodeKind(nd.QuestionType),
		Answers: make([]domain.Answer, 0, len(nd.Answers)),
	}
	for _, ad := range nd.Answers {
		node.Answers = append(node.Answers, domain.Answer{
			Label:        ad.Response,
			Target:       strings.TrimSpace(ad.NextNode),
			SystemPrompt: ad.System,
		})
	}
	return node
}

// Document converts a graph back to its on-disk shape.
func Document(g *domain.Graph) dto.WorkflowDocument {
	doc := dto.WorkflowDocument{
		WorkflowID:   g.ID,
		WorkflowName: g.Name,
		StartNode:    g.StartNodeID,
		Nodes:        make([]dto.NodeDocument, 0, g.Len()),
	}
	for _, n := range g.Nodes() {
		nd := dto.NodeDocument{
			ID:           n.ID,
			Question:     n.Prompt,
			QuestionType: string(n.Kind),
			Answers:      make([]dto.AnswerDocument, 0, len(n.Answers)),
		}
		for _, a := range n.Answers {
			nd.Answers = append(nd.Answers, dto.AnswerDocument{
				Response: a.Label,
				NextNode: a.Target,
				System:   a.SystemPrompt,
			})
		}
		doc.Nodes = append(doc.Nodes, nd)
	}
	return doc
}

// Encode serializes a graph in the given format.
func Encode(g *domain.Graph, format Format) ([]byte, error) {
	doc := Document(g)
	if format == FormatYAML {
		return yaml.Marshal(doc)
	}
	return json.MarshalIndent(doc, "", "  ")
}

func describeValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return errors.New(strings.Join(msgs, "; "))
}
