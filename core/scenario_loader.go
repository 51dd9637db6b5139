// core/scenario_loader.go
package core

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/mesh-relay-simulator/model"
)

// Topology is a summary of what LoadTopology placed.
type Topology struct {
	Graph  *Graph
	Nodes  []NodeID
	Groups map[string]int
}

// internal file shapes, kept unexported so the format can evolve. YAML is a
// superset of JSON, so both encodings load.
type topologyFile struct {
	Width  int               `yaml:"width"`
	Length int               `yaml:"length"`
	AP     model.AccessPoint `yaml:"ap"`
	Nodes  []nodeFile        `yaml:"nodes"`
}

type nodeFile struct {
	X      float64 `yaml:"x"`
	Y      float64 `yaml:"y"`
	Height float64 `yaml:"height"`
	// Group is an optional label; nodes sharing it form a group led by the
	// first one listed.
	Group string `yaml:"group"`
}

// LoadTopology reads an explicit node placement from r. It fails on decode
// errors, an AP off the grid, an empty node list, and overlapping nodes.
func LoadTopology(r io.Reader) (*Topology, error) {
	var payload topologyFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&payload); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("LoadTopology: empty document: %w", ErrZeroPopulation)
		}
		return nil, fmt.Errorf("LoadTopology: decode failed: %w", err)
	}
	if len(payload.Nodes) == 0 {
		return nil, fmt.Errorf("LoadTopology: no nodes: %w", ErrZeroPopulation)
	}

	g, err := NewGraph(payload.Width, payload.Length, payload.AP)
	if err != nil {
		return nil, fmt.Errorf("LoadTopology: %w", err)
	}

	result := &Topology{
		Graph:  g,
		Nodes:  make([]NodeID, 0, len(payload.Nodes)),
		Groups: make(map[string]int),
	}
	members := make(map[string][]NodeID)
	var order []string

	for i, nf := range payload.Nodes {
		height := nf.Height
		if height == 0 {
			height = model.DefaultMinHeight
		}
		id, err := g.AddNode(model.Position{X: nf.X, Y: nf.Y, Height: height})
		if err != nil {
			return nil, fmt.Errorf("LoadTopology: node %d: %w", i, err)
		}
		result.Nodes = append(result.Nodes, id)

		label := strings.TrimSpace(nf.Group)
		if label == "" {
			continue
		}
		if _, seen := members[label]; !seen {
			order = append(order, label)
		}
		members[label] = append(members[label], id)
	}

	for _, label := range order {
		group := members[label]
		idx, err := g.SetGroup(group)
		if err != nil {
			return nil, fmt.Errorf("LoadTopology: group %q: %w", label, err)
		}
		result.Groups[label] = idx

		leader := group[0]
		lx, ly := g.Node(leader).Pos.Cell()
		for _, m := range group[1:] {
			n := g.Node(m)
			mx, my := n.Pos.Cell()
			n.Motion.Leader = leader
			n.Motion.OffsetX = mx - lx
			n.Motion.OffsetY = my - ly
		}
	}
	return result, nil
}
