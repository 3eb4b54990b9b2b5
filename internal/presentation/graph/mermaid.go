package graph

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/aretw0/parley/pkg/domain"
)

const maxLabelRunes = 40

// Overlay contains conversation state to highlight on the diagram.
type Overlay struct {
	CurrentNode string
}

// GenerateMermaid produces a Mermaid flowchart of a workflow.
// Node shapes follow what the node accepts:
// - Start: ((Circle))
// - Terminal: ([Stadium])
// - Free text allowed: [/Parallelogram/]
// - Choices only: [Rectangle]
// Answers without a target are drawn as dotted self loops, answers pointing to a
// missing node end on a red placeholder.
func GenerateMermaid(g *domain.Graph, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	var dangling []string
	for _, node := range g.Nodes() {
		safeID := mermaidID(node.ID)

		opener, closer := "[", "]"
		switch {
		case node.ID == g.StartNodeID:
			opener, closer = "((", "))"
		case node.IsTerminal():
			opener, closer = "([", "])"
		case node.AcceptsText():
			opener, closer = "[/", "/]"
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", safeID, opener, label(node), closer)

		for _, a := range node.Answers {
			text := escape(a.Label)
			if a.Target == "" {
				fmt.Fprintf(&sb, "    %s -. \"%s\" .-> %s\n", safeID, text, safeID)
				continue
			}
			if _, ok := g.Resolve(a.Target); !ok {
				dangling = append(dangling, a.Target)
			}
			fmt.Fprintf(&sb, "    %s -- \"%s\" --> %s\n", safeID, text, mermaidID(a.Target))
		}
	}

	if len(dangling) > 0 {
		sb.WriteString("\n    %% Missing targets\n")
		sb.WriteString("    classDef missing fill:#ffcdd2,stroke:#c62828,stroke-dasharray:5 5,color:#000;\n")
		seen := make(map[string]bool)
		for _, id := range dangling {
			if seen[id] {
				continue
			}
			seen[id] = true
			fmt.Fprintf(&sb, "    %s[\"%s (missing)\"]\n", mermaidID(id), escape(id))
			fmt.Fprintf(&sb, "    class %s missing;\n", mermaidID(id))
		}
	}

	if overlay != nil && overlay.CurrentNode != "" {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")
		fmt.Fprintf(&sb, "    class %s current;\n", mermaidID(overlay.CurrentNode))
	}

	return sb.String()
}

func label(node *domain.Node) string {
	prompt := strings.Join(strings.Fields(node.Prompt), " ")
	if utf8.RuneCountInString(prompt) > maxLabelRunes {
		prompt = string([]rune(prompt)[:maxLabelRunes]) + "..."
	}
	if prompt == "" {
		return escape(node.ID)
	}
	return escape(node.ID) + ": " + escape(prompt)
}

func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

// mermaidID prefixes ids so that numeric ids and keywords like "end" stay valid.
func mermaidID(id string) string {
	var sb strings.Builder
	sb.WriteString("n_")
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}
	return sb.String()
}
