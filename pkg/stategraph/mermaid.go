package stategraph

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// MermaidOverlay highlights a run on the rendered graph.
type MermaidOverlay struct {
	// Visited lists nodes that already ran.
	Visited []string
	// Current is the node the thread is parked on or continues at.
	Current string
}

// Mermaid renders the graph as a Mermaid flowchart.
// Static edges are solid, conditional routes are dotted and labelled, and
// command destinations are dotted without a label.
func (cg *CompiledGraph) Mermaid() string {
	return cg.MermaidWithOverlay(nil)
}

// MermaidWithOverlay renders the graph and styles the overlay's nodes.
func (cg *CompiledGraph) MermaidWithOverlay(overlay *MermaidOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")
	sb.WriteString("    __start__((\"start\"))\n")
	for _, id := range cg.order {
		fmt.Fprintf(&sb, "    %s[\"%s\"]\n", mermaidID(id), id)
	}
	sb.WriteString("    __end__((\"end\"))\n")

	fmt.Fprintf(&sb, "    __start__ --> %s\n", mermaidID(cg.entryPoint))
	for _, id := range cg.order {
		from := mermaidID(id)

		if to, ok := cg.edges[id]; ok {
			fmt.Fprintf(&sb, "    %s --> %s\n", from, mermaidID(to))
		}

		if ce, ok := cg.conditionalEdges[id]; ok {
			if ce.routes == nil {
				for _, to := range cg.successors[id] {
					fmt.Fprintf(&sb, "    %s -.-> %s\n", from, mermaidID(to))
				}
			}
			for _, label := range slices.Sorted(maps.Keys(ce.routes)) {
				safeLabel := strings.ReplaceAll(label, "\"", "'")
				fmt.Fprintf(&sb, "    %s -. \"%s\" .-> %s\n", from, safeLabel, mermaidID(ce.routes[label]))
			}
		}

		for _, to := range cg.nodes[id].destinations {
			fmt.Fprintf(&sb, "    %s -.-> %s\n", from, mermaidID(to))
		}
	}

	if overlay != nil {
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[string]bool)
		for _, id := range overlay.Visited {
			if !cg.HasNode(id) || seen[id] {
				continue
			}
			seen[id] = true
			fmt.Fprintf(&sb, "    class %s visited;\n", mermaidID(id))
		}
		if overlay.Current != "" && (overlay.Current == END || cg.HasNode(overlay.Current)) {
			fmt.Fprintf(&sb, "    class %s current;\n", mermaidID(overlay.Current))
		}
	}

	return sb.String()
}

// mermaidID makes a node ID safe to use as a Mermaid identifier.
func mermaidID(id string) string {
	if id == END {
		return "__end__"
	}
	r := strings.NewReplacer(".", "_", "-", "_", "/", "_", "\\", "_")
	return "n_" + r.Replace(id)
}
