package dsl

import (
	"fmt"

	"github.com/aretw0/parley/pkg/domain"
)

// Builder manages the workflow construction.
type Builder struct {
	id    string
	start string
	nodes map[string]*NodeBuilder
	order []string
}

// New creates a new workflow builder. The first node added is the start node
// unless Start says otherwise.
func New(id string) *Builder {
	return &Builder{
		id:    id,
		nodes: make(map[string]*NodeBuilder),
	}
}

// Start sets the start node.
func (b *Builder) Start(id string) *Builder {
	b.start = id
	return b
}

// Add creates a new node in the workflow.
// If the node already exists, it returns the existing builder.
func (b *Builder) Add(id string) *NodeBuilder {
	if nb, ok := b.nodes[id]; ok {
		return nb
	}
	nb := &NodeBuilder{
		node: domain.Node{
			ID:   id,
			Kind: domain.NodeChoice,
		},
		builder: b,
	}
	b.nodes[id] = nb
	b.order = append(b.order, id)
	if b.start == "" {
		b.start = id
	}
	return nb
}

// Build compiles the nodes into a Graph.
func (b *Builder) Build() (*domain.Graph, error) {
	nodes := make([]*domain.Node, 0, len(b.order))
	for _, id := range b.order {
		nodes = append(nodes, b.nodes[id].Build())
	}

	g, err := domain.NewGraph(b.id, b.id, b.start, nodes)
	if err != nil {
		return nil, fmt.Errorf("failed to build workflow: %w", err)
	}
	return g, nil
}

// MustBuild is Build for fixtures; it panics on error.
func (b *Builder) MustBuild() *domain.Graph {
	g, err := b.Build()
	if err != nil {
		panic(err)
	}
	return g
}
