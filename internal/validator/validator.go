package validator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/parley/pkg/domain"
)

// Report lists the structural problems of a workflow. A workflow with problems still
// loads: a dangling answer is handled at runtime by staying on the node.
type Report struct {
	// Dangling holds answers that lead to missing nodes, as "from -> to".
	Dangling []string
	// Unreachable holds nodes no path from the start node leads to.
	Unreachable []string
	// DeadEnds holds non-terminal nodes that offer no way to continue: no answers
	// and no free text.
	DeadEnds []string
}

// OK reports whether nothing was found.
func (r Report) OK() bool {
	return len(r.Dangling) == 0 && len(r.Unreachable) == 0 && len(r.DeadEnds) == 0
}

// Err folds the report into an error, nil when OK.
func (r Report) Err() error {
	if r.OK() {
		return nil
	}
	var problems []string
	for _, d := range r.Dangling {
		problems = append(problems, "Broken answer: "+d)
	}
	for _, id := range r.Unreachable {
		problems = append(problems, fmt.Sprintf("Unreachable node: '%s'", id))
	}
	for _, id := range r.DeadEnds {
		problems = append(problems, fmt.Sprintf("Dead end (no answers, no free text): '%s'", id))
	}
	return fmt.Errorf("found %d errors:\n- %s", len(problems), strings.Join(problems, "\n- "))
}

// ValidateGraph crawls the workflow from its start node.
func ValidateGraph(g *domain.Graph) Report {
	report := Report{Dangling: g.DanglingEdges()}

	visited := map[string]bool{}
	queue := []string{g.StartNodeID}
	for len(queue) > 0 {
		currentID := queue[0]
		queue = queue[1:]
		if visited[currentID] {
			continue
		}
		visited[currentID] = true

		node, ok := g.Resolve(currentID)
		if !ok {
			continue // reported as dangling
		}
		for _, a := range node.Answers {
			if a.Target != "" && !visited[a.Target] {
				queue = append(queue, a.Target)
			}
		}
	}

	for _, node := range g.Nodes() {
		if !visited[node.ID] {
			report.Unreachable = append(report.Unreachable, node.ID)
		}
		if !node.IsTerminal() && node.Kind == domain.NodeChoice && len(node.Answers) == 0 {
			report.DeadEnds = append(report.DeadEnds, node.ID)
		}
	}
	sort.Strings(report.Unreachable)
	sort.Strings(report.DeadEnds)
	return report
}
