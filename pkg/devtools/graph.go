package devtools

import (
	"bytes"
	"context"
	"fmt"

	"github.com/goccy/go-graphviz"

	"github.com/vango-dev/atoms/pkg/atom"
)

// DOT renders nodes as a Graphviz digraph. Edges point from a dependency to
// the atom that reads it. Mounted atoms are filled, errored atoms are red and
// stale atoms are dashed.
func DOT(nodes []atom.NodeInfo) string {
	var buf bytes.Buffer
	buf.WriteString("digraph atoms {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontname=\"Helvetica\"];\n")
	buf.WriteString("\n")

	known := make(map[uint64]bool, len(nodes))
	for _, n := range nodes {
		known[n.ID] = true
	}

	for _, n := range nodes {
		label := n.Label
		if n.Error != "" {
			label += "\nerror"
		} else if n.Value != "" {
			label += "\n" + n.Value
		}
		attrs := fmt.Sprintf("label=%q", label)
		switch {
		case n.Error != "":
			attrs += ", fillcolor=\"#f8d7da\", color=\"#c0392b\""
		case n.Mounted:
			attrs += ", fillcolor=\"#d6eaf8\""
		}
		if n.Stale {
			attrs += ", style=\"rounded,filled,dashed\""
		}
		fmt.Fprintf(&buf, "  n%d [%s];\n", n.ID, attrs)
	}

	buf.WriteString("\n")
	for _, n := range nodes {
		for _, dep := range n.Deps {
			if known[dep] {
				fmt.Fprintf(&buf, "  n%d -> n%d;\n", dep, n.ID)
			}
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

// RenderSVG renders a DOT graph to SVG.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}
