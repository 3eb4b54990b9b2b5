package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/parley/internal/compiler"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
)

// Catalog implements ports.WorkflowCatalog using an in-memory map.
// Safe for concurrent use.
type Catalog struct {
	mu     sync.RWMutex
	graphs map[string]*domain.Graph
}

var _ ports.WorkflowCatalog = (*Catalog)(nil)

// NewCatalog creates a catalog holding the given graphs under their ids.
func NewCatalog(graphs ...*domain.Graph) *Catalog {
	c := &Catalog{graphs: make(map[string]*domain.Graph, len(graphs))}
	for _, g := range graphs {
		c.graphs[g.ID] = g
	}
	return c
}

// NewLoader creates a catalog from raw workflow documents keyed by name.
// The format of each document follows the extension of its name.
func NewLoader(sources map[string]string) (*Catalog, error) {
	parser := compiler.NewParser()
	c := NewCatalog()
	for name, src := range sources {
		g, err := parser.Parse(name, []byte(src), compiler.FormatFromPath(name))
		if err != nil {
			return nil, err
		}
		c.graphs[name] = g
	}
	return c, nil
}

// Load returns the named graph.
func (c *Catalog) Load(ctx context.Context, name string) (*domain.Graph, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	g, ok := c.graphs[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, domain.ErrWorkflowNotFound)
	}
	return g, nil
}

// List returns all workflow names.
func (c *Catalog) List(ctx context.Context) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.graphs))
	for name := range c.graphs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Save stores the graph. Graphs are immutable, so no copy is needed.
func (c *Catalog) Save(ctx context.Context, name string, graph *domain.Graph) error {
	if name == "" {
		return fmt.Errorf("workflow name cannot be empty")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.graphs[name] = graph
	return nil
}
