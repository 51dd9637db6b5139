package core

import (
	"fmt"
	"io"
	"strings"
)

// RenderMode selects what Render prints for each occupied cell.
type RenderMode int

const (
	// RenderLinks prints '*' for the AP, 'O' for LOS, '+' for relayed and
	// 'x' for unserved nodes.
	RenderLinks RenderMode = iota
	// RenderStability prints each node's stability counter.
	RenderStability
	// RenderReachability prints each node's reachability counter.
	RenderReachability
)

// ParseRenderMode maps a name to a RenderMode.
func ParseRenderMode(name string) (RenderMode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "links":
		return RenderLinks, nil
	case "stability":
		return RenderStability, nil
	case "reachability":
		return RenderReachability, nil
	default:
		return 0, fmt.Errorf("ParseRenderMode: unknown mode %q", name)
	}
}

// Render writes the grid to w, highest Y row first, one cell per column.
func Render(w io.Writer, g *Graph, mode RenderMode) error {
	width := 2
	if mode != RenderLinks {
		width = 3
	}
	var b strings.Builder
	for y := g.Length - 1; y >= 0; y-- {
		for x := 0; x < g.Width; x++ {
			b.WriteString(pad(cellGlyph(g, x, y, mode), width))
		}
		b.WriteByte('\n')
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func cellGlyph(g *Graph, x, y int, mode RenderMode) string {
	id := g.NodeAt(x, y)
	switch {
	case id == NoNode:
		return "-"
	case id == g.AP():
		return "*"
	}
	n := g.Node(id)
	switch mode {
	case RenderStability:
		return fmt.Sprint(n.Stability)
	case RenderReachability:
		return fmt.Sprint(n.Reachability)
	}
	switch n.state {
	case LinkRelayed:
		return "+"
	case LinkBlocked:
		return "x"
	default:
		return "O"
	}
}

func pad(s string, width int) string {
	if len(s) >= width {
		return s + " "
	}
	return s + strings.Repeat(" ", width-len(s))
}
