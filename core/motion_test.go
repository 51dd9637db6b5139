package core

import (
	"errors"
	"math/rand/v2"
	"reflect"
	"testing"

	"github.com/signalsfoundry/mesh-relay-simulator/model"
)

func TestMobilityModelsKeepGridConsistent(t *testing.T) {
	cases := []struct {
		name   string
		layout model.Layout
	}{
		{"random-walk", model.LayoutUniform},
		{"waypoint-group", model.LayoutGroup},
		{"static", model.LayoutUniform},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rng := rand.New(rand.NewPCG(11, 3))
			g, err := GenerateTopology(baseSpec(tc.layout), rng)
			if err != nil {
				t.Fatalf("GenerateTopology: %v", err)
			}
			mobility, err := NewMobilityModel(tc.name)
			if err != nil {
				t.Fatalf("NewMobilityModel: %v", err)
			}
			apX, apY := g.Node(g.AP()).Pos.Cell()
			for step := 0; step < 50; step++ {
				mobility.Step(g, rng)
				checkGrid(t, g)
			}
			if x, y := g.Node(g.AP()).Pos.Cell(); x != apX || y != apY {
				t.Fatalf("AP moved to (%d,%d)", x, y)
			}
		})
	}
}

func TestStaticMobilityLeavesNodesInPlace(t *testing.T) {
	rng := rand.New(rand.NewPCG(2, 2))
	g, err := GenerateTopology(baseSpec(model.LayoutUniform), rng)
	if err != nil {
		t.Fatalf("GenerateTopology: %v", err)
	}
	before := positions(g)
	StaticMobility{}.Step(g, rng)
	if !reflect.DeepEqual(before, positions(g)) {
		t.Fatalf("static mobility moved nodes")
	}
}

func TestRandomWalkMovesNodes(t *testing.T) {
	rng := rand.New(rand.NewPCG(4, 4))
	g, err := GenerateTopology(baseSpec(model.LayoutUniform), rng)
	if err != nil {
		t.Fatalf("GenerateTopology: %v", err)
	}
	before := positions(g)
	for range 5 {
		RandomWalk{}.Step(g, rng)
	}
	if reflect.DeepEqual(before, positions(g)) {
		t.Fatalf("random walk left every node in place after 5 steps")
	}
}

func TestSlideSkipsOccupiedCellsAndStopsAtEdge(t *testing.T) {
	g, ids := newTestGraph(t, 5, 5, spot{4, 4, 3},
		spot{0, 0, 1.2},
		spot{1, 0, 1.2},
		spot{3, 3, 1.2},
	)
	mover, blocker, corner := ids[0], ids[1], ids[2]

	if !slide(g, mover, 1, 0) {
		t.Fatalf("slide east = false, want true")
	}
	if x, y := g.Node(mover).Pos.Cell(); x != 2 || y != 0 {
		t.Fatalf("mover at (%d,%d), want (2,0)", x, y)
	}
	if g.NodeAt(0, 0) != NoNode || g.NodeAt(1, 0) != blocker {
		t.Fatalf("grid not updated after slide")
	}

	// (4,4) holds the AP, so the diagonal slide runs off the grid.
	if slide(g, corner, 1, 1) {
		t.Fatalf("slide off grid = true, want false")
	}
	if x, y := g.Node(corner).Pos.Cell(); x != 3 || y != 3 {
		t.Fatalf("corner moved to (%d,%d)", x, y)
	}
}

func TestWaypointGroupMovesLeaderTowardsWaypoint(t *testing.T) {
	g, ids := newTestGraph(t, 20, 20, spot{19, 19, 3},
		spot{5, 5, 1.2},
		spot{6, 7, 1.2},
	)
	leader, member := ids[0], ids[1]
	if _, err := g.SetGroup([]NodeID{leader, member}); err != nil {
		t.Fatalf("SetGroup: %v", err)
	}
	m := g.Node(member)
	m.Motion.Leader = leader
	m.Motion.OffsetX, m.Motion.OffsetY = 1, 2

	l := g.Node(leader)
	l.Motion.DestX, l.Motion.DestY = 10, 5

	wp := NewWaypointGroup()
	wp.Step(g, rand.New(rand.NewPCG(8, 8)))

	if x, y := g.Node(leader).Pos.Cell(); x != 6 || y != 5 {
		t.Fatalf("leader at (%d,%d), want (6,5)", x, y)
	}
	if x, y := g.Node(member).Pos.Cell(); x != 7 || y != 7 {
		t.Fatalf("member at (%d,%d), want (7,7)", x, y)
	}
}

func TestWaypointGroupRetargetsWhenStuck(t *testing.T) {
	g, ids := newTestGraph(t, 10, 10, spot{9, 9, 3}, spot{0, 5, 1.2})
	leader := ids[0]
	n := g.Node(leader)
	n.Motion.DestX, n.Motion.DestY = -5, 5

	wp := &WaypointGroup{StuckLimit: 3, IdleMax: 2}
	rng := rand.New(rand.NewPCG(1, 1))
	for range 3 {
		wp.Step(g, rng)
	}
	if n.Motion.DestX == -5 {
		t.Fatalf("leader kept unreachable waypoint after %d stuck steps", 3)
	}
	if !g.InBounds(n.Motion.DestX, n.Motion.DestY) {
		t.Fatalf("new waypoint (%d,%d) is off the grid", n.Motion.DestX, n.Motion.DestY)
	}
}

func TestNewMobilityModel(t *testing.T) {
	cases := map[string]MobilityModel{
		"":               StaticMobility{},
		"static":         StaticMobility{},
		"Random-Walk":    RandomWalk{},
		"waypoint-group": NewWaypointGroup(),
	}
	for name, want := range cases {
		got, err := NewMobilityModel(name)
		if err != nil {
			t.Fatalf("NewMobilityModel(%q): %v", name, err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("NewMobilityModel(%q) = %#v, want %#v", name, got, want)
		}
	}
	if _, err := NewMobilityModel("teleport"); !errors.Is(err, ErrUnknownMobility) {
		t.Fatalf("NewMobilityModel(teleport) error = %v, want ErrUnknownMobility", err)
	}
}
