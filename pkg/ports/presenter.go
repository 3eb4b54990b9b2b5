package ports

import "github.com/aretw0/parley/pkg/domain"

// Presenter renders a node into a serializable payload the orchestrator forwards untouched.
type Presenter interface {
	Present(node *domain.Node) (any, error)
}

// PresenterFunc adapts a function to Presenter.
type PresenterFunc func(node *domain.Node) (any, error)

func (f PresenterFunc) Present(node *domain.Node) (any, error) { return f(node) }
