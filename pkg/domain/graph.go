package domain

import (
	"fmt"
	"sort"
)

// Graph is a loaded workflow. It is never mutated in place: edits return a new Graph,
// so a Graph bound to live sessions can be shared freely.
type Graph struct {
	ID          string
	Name        string
	StartNodeID string

	nodes map[string]*Node
	order []string
}

// NewGraph builds a graph and checks the invariants a loaded workflow must hold:
// unique non-empty node ids and a start node that resolves.
// Dangling answer targets are accepted; they are reported when traversed.
func NewGraph(id, name, startNodeID string, nodes []*Node) (*Graph, error) {
	g := &Graph{
		ID:          id,
		Name:        name,
		StartNodeID: startNodeID,
		nodes:       make(map[string]*Node, len(nodes)),
		order:       make([]string, 0, len(nodes)),
	}
	for _, n := range nodes {
		if n == nil || n.ID == "" {
			return nil, &GraphLoadError{Source: id, Err: fmt.Errorf("node without id")}
		}
		if _, dup := g.nodes[n.ID]; dup {
			return nil, &GraphLoadError{Source: id, Err: fmt.Errorf("duplicate node id %q", n.ID)}
		}
		g.nodes[n.ID] = n
		g.order = append(g.order, n.ID)
	}
	if startNodeID == "" {
		return nil, &GraphLoadError{Source: id, Err: fmt.Errorf("missing start node")}
	}
	if _, ok := g.nodes[startNodeID]; !ok {
		return nil, &GraphLoadError{Source: id, Err: fmt.Errorf("start node %q: %w", startNodeID, ErrNodeNotFound)}
	}
	return g, nil
}

// Resolve returns the node with the given id.
func (g *Graph) Resolve(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Start returns the start node. It always resolves for a graph built by NewGraph.
func (g *Graph) Start() *Node {
	return g.nodes[g.StartNodeID]
}

// Nodes returns the nodes in declaration order.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id])
	}
	return out
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.order)
}

// DanglingEdges lists "node -> target" pairs whose target does not resolve, sorted.
func (g *Graph) DanglingEdges() []string {
	var out []string
	for _, id := range g.order {
		for _, a := range g.nodes[id].Answers {
			if a.Target == "" {
				continue
			}
			if _, ok := g.nodes[a.Target]; !ok {
				out = append(out, fmt.Sprintf("%s -> %s", id, a.Target))
			}
		}
	}
	sort.Strings(out)
	return out
}

func (g *Graph) clone() *Graph {
	c := &Graph{
		ID:          g.ID,
		Name:        g.Name,
		StartNodeID: g.StartNodeID,
		nodes:       make(map[string]*Node, len(g.nodes)),
		order:       append([]string(nil), g.order...),
	}
	for id, n := range g.nodes {
		c.nodes[id] = n
	}
	return c
}

// WithNode returns a copy of the graph where node is added, or replaces the node with the same id.
func (g *Graph) WithNode(node *Node) *Graph {
	c := g.clone()
	if _, exists := c.nodes[node.ID]; !exists {
		c.order = append(c.order, node.ID)
	}
	c.nodes[node.ID] = node.Clone()
	return c
}

// ReplaceNode is WithNode restricted to existing nodes.
func (g *Graph) ReplaceNode(node *Node) (*Graph, error) {
	if _, ok := g.nodes[node.ID]; !ok {
		return nil, fmt.Errorf("update node %q: %w", node.ID, ErrNodeNotFound)
	}
	return g.WithNode(node), nil
}

// WithoutNode returns a copy of the graph without the node and without any answer pointing to it.
func (g *Graph) WithoutNode(id string) (*Graph, error) {
	if _, ok := g.nodes[id]; !ok {
		return nil, fmt.Errorf("delete node %q: %w", id, ErrNodeNotFound)
	}
	if id == g.StartNodeID {
		return nil, fmt.Errorf("delete node %q: %w", id, ErrStartNodeRemoval)
	}
	c := g.clone()
	delete(c.nodes, id)
	order := c.order[:0]
	for _, nid := range c.order {
		if nid != id {
			order = append(order, nid)
		}
	}
	c.order = order

	for nid, n := range c.nodes {
		kept := make([]Answer, 0, len(n.Answers))
		for _, a := range n.Answers {
			if a.Target != id {
				kept = append(kept, a)
			}
		}
		if len(kept) != len(n.Answers) {
			nn := n.Clone()
			nn.Answers = kept
			c.nodes[nid] = nn
		}
	}
	return c, nil
}
