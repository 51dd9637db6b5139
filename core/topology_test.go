package core

import (
	"errors"
	"math/rand/v2"
	"reflect"
	"testing"

	"github.com/signalsfoundry/mesh-relay-simulator/model"
)

func baseSpec(layout model.Layout) model.ScenarioSpec {
	return model.ScenarioSpec{
		Width:      20,
		Length:     20,
		AP:         model.AccessPoint{X: 10, Y: 0, Height: 3},
		Population: 40,
		Layout:     layout,
		GroupSize:  6,
	}
}

func TestGenerateTopologyZeroSpread(t *testing.T) {
	spec := baseSpec(model.LayoutUniform)
	spread := 0
	spec.HeightSpreadCm = &spread
	g, err := GenerateTopology(spec, rand.New(rand.NewPCG(1, 1)))
	if err != nil {
		t.Fatalf("GenerateTopology: %v", err)
	}
	for id := NodeID(1); int(id) <= g.Population(); id++ {
		if h := g.Node(id).Pos.Height; h != model.DefaultMinHeight {
			t.Fatalf("node %d height = %v, want %v", id, h, model.DefaultMinHeight)
		}
	}
}

func TestGenerateTopologyRejectsInvalidScenarios(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*model.ScenarioSpec)
		want   error
	}{
		{"zero population", func(s *model.ScenarioSpec) { s.Population = 0 }, ErrZeroPopulation},
		{"negative population", func(s *model.ScenarioSpec) { s.Population = -3 }, ErrZeroPopulation},
		{"AP off grid", func(s *model.ScenarioSpec) { s.AP.X = 20 }, ErrAPOutOfBounds},
		{"AP negative", func(s *model.ScenarioSpec) { s.AP.Y = -1 }, ErrAPOutOfBounds},
		{"too many nodes", func(s *model.ScenarioSpec) { s.Population = 400 }, ErrPopulationTooLarge},
		{"unknown layout", func(s *model.ScenarioSpec) { s.Layout = "spiral" }, ErrUnknownLayout},
		{"group radius one", func(s *model.ScenarioSpec) {
			s.Layout = model.LayoutGroup
			s.GroupRadius = 1
		}, ErrGroupRadius},
		{"negative spread", func(s *model.ScenarioSpec) {
			spread := -1
			s.HeightSpreadCm = &spread
		}, ErrHeightSpread},
		{"regions too small", func(s *model.ScenarioSpec) {
			s.Layout = model.LayoutPoisson
			s.Regions = []model.Region{{MinX: 0, MinY: 0, MaxX: 3, MaxY: 3}}
		}, ErrPopulationTooLarge},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			spec := baseSpec(model.LayoutUniform)
			tc.mutate(&spec)
			g, err := GenerateTopology(spec, rand.New(rand.NewPCG(1, 1)))
			if !errors.Is(err, tc.want) {
				t.Fatalf("GenerateTopology error = %v, want %v", err, tc.want)
			}
			if g != nil {
				t.Fatalf("GenerateTopology returned a graph on error")
			}
		})
	}
}

func TestGenerateTopologyLayouts(t *testing.T) {
	for _, layout := range []model.Layout{model.LayoutUniform, model.LayoutGroup, model.LayoutPoisson} {
		t.Run(string(layout), func(t *testing.T) {
			spec := baseSpec(layout)
			g, err := GenerateTopology(spec, rand.New(rand.NewPCG(42, 0)))
			if err != nil {
				t.Fatalf("GenerateTopology: %v", err)
			}
			if g.Population() != spec.Population {
				t.Fatalf("Population = %d, want %d", g.Population(), spec.Population)
			}
			checkGrid(t, g)
			for i := 1; i < g.Len(); i++ {
				h := g.Node(NodeID(i)).Pos.Height
				if h < model.DefaultMinHeight || h > model.DefaultMinHeight+float64(model.DefaultHeightSpread)/100+1e-9 {
					t.Fatalf("node %d height = %v outside default range", i, h)
				}
			}
		})
	}
}

func TestGenerateTopologyGroups(t *testing.T) {
	spec := baseSpec(model.LayoutGroup)
	g, err := GenerateTopology(spec, rand.New(rand.NewPCG(9, 9)))
	if err != nil {
		t.Fatalf("GenerateTopology: %v", err)
	}
	// 40 nodes in groups of 6: six full groups and one of 4.
	if g.Groups() != 7 {
		t.Fatalf("Groups = %d, want 7", g.Groups())
	}
	if got := len(g.Group(6)); got != 4 {
		t.Fatalf("last group size = %d, want 4", got)
	}
	for idx := 0; idx < g.Groups(); idx++ {
		members := g.Group(idx)
		leader := members[0]
		if g.Node(leader).Motion.Leader != leader {
			t.Fatalf("group %d leader %d follows %d", idx, leader, g.Node(leader).Motion.Leader)
		}
		lx, ly := g.Node(leader).Pos.Cell()
		for _, m := range members[1:] {
			n := g.Node(m)
			if n.Group != idx || n.Motion.Leader != leader {
				t.Fatalf("member %d group=%d leader=%d, want %d/%d", m, n.Group, n.Motion.Leader, idx, leader)
			}
			x, y := n.Pos.Cell()
			if x-lx != n.Motion.OffsetX || y-ly != n.Motion.OffsetY {
				t.Fatalf("member %d offset (%d,%d) does not match position", m, n.Motion.OffsetX, n.Motion.OffsetY)
			}
			if abs(n.Motion.OffsetX) >= spec.WithDefaults().GroupRadius || abs(n.Motion.OffsetY) >= spec.WithDefaults().GroupRadius {
				t.Fatalf("member %d offset (%d,%d) outside group radius", m, n.Motion.OffsetX, n.Motion.OffsetY)
			}
		}
	}
}

func TestGenerateTopologyPoissonStaysInRegions(t *testing.T) {
	spec := baseSpec(model.LayoutPoisson)
	spec.Regions = []model.Region{
		{MinX: 0, MinY: 5, MaxX: 6, MaxY: 11},
		{MinX: 12, MinY: 12, MaxX: 20, MaxY: 20},
	}
	g, err := GenerateTopology(spec, rand.New(rand.NewPCG(5, 6)))
	if err != nil {
		t.Fatalf("GenerateTopology: %v", err)
	}
	for i := 1; i < g.Len(); i++ {
		x, y := g.Node(NodeID(i)).Pos.Cell()
		if !spec.Regions[0].Contains(x, y) && !spec.Regions[1].Contains(x, y) {
			t.Fatalf("node %d at (%d,%d) outside every region", i, x, y)
		}
	}
}

func TestGenerateTopologyIsDeterministic(t *testing.T) {
	for _, layout := range []model.Layout{model.LayoutUniform, model.LayoutGroup, model.LayoutPoisson} {
		a, err := GenerateTopology(baseSpec(layout), rand.New(rand.NewPCG(77, 1)))
		if err != nil {
			t.Fatalf("GenerateTopology: %v", err)
		}
		b, err := GenerateTopology(baseSpec(layout), rand.New(rand.NewPCG(77, 1)))
		if err != nil {
			t.Fatalf("GenerateTopology: %v", err)
		}
		if !reflect.DeepEqual(positions(a), positions(b)) {
			t.Fatalf("%s: same seed produced different placements", layout)
		}
	}
}

func TestGenerateTopologyFillsGrid(t *testing.T) {
	spec := model.ScenarioSpec{
		Width:      4,
		Length:     4,
		AP:         model.AccessPoint{X: 0, Y: 0, Height: 3},
		Population: 15,
		Layout:     model.LayoutUniform,
	}
	g, err := GenerateTopology(spec, rand.New(rand.NewPCG(1, 2)))
	if err != nil {
		t.Fatalf("GenerateTopology: %v", err)
	}
	checkGrid(t, g)
	if g.Population() != 15 {
		t.Fatalf("Population = %d, want 15", g.Population())
	}
}

func positions(g *Graph) []model.Position {
	out := make([]model.Position, g.Len())
	for i := range out {
		out[i] = g.Node(NodeID(i)).Pos
	}
	return out
}

// checkGrid verifies every node owns its cell and no cell is shared.
func checkGrid(t *testing.T, g *Graph) {
	t.Helper()
	occupied := 0
	for x := 0; x < g.Width; x++ {
		for y := 0; y < g.Length; y++ {
			id := g.NodeAt(x, y)
			if id == NoNode {
				continue
			}
			occupied++
			nx, ny := g.Node(id).Pos.Cell()
			if nx != x || ny != y {
				t.Fatalf("cell (%d,%d) holds node %d at (%d,%d)", x, y, id, nx, ny)
			}
		}
	}
	if occupied != g.Len() {
		t.Fatalf("occupied cells = %d, want %d", occupied, g.Len())
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
