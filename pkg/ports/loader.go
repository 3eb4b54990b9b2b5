package ports

import (
	"context"

	"github.com/aretw0/parley/pkg/domain"
)

// GraphLoader retrieves workflow graphs by name.
type GraphLoader interface {
	// Load returns the named workflow.
	// It returns domain.ErrWorkflowNotFound when the name is unknown and a
	// *domain.GraphLoadError when the source is malformed.
	Load(ctx context.Context, name string) (*domain.Graph, error)

	// List returns the names of the available workflows, sorted.
	List(ctx context.Context) ([]string, error)
}

// WorkflowCatalog is a GraphLoader that can also persist edited workflows.
type WorkflowCatalog interface {
	GraphLoader

	// Save stores graph under name, replacing any previous version.
	Save(ctx context.Context, name string, graph *domain.Graph) error
}
