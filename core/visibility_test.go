package core

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/signalsfoundry/mesh-relay-simulator/model"
)

func TestDistanceIncludesHeight(t *testing.T) {
	a := model.Position{X: 0, Y: 0, Height: 1}
	b := model.Position{X: 3, Y: 4, Height: 1}
	if got := Distance(a, b); got != 5 {
		t.Fatalf("Distance = %v, want 5", got)
	}
	b.Height = 13
	if got := Distance(a, b); got != 13 {
		t.Fatalf("Distance = %v, want 13", got)
	}
}

func TestOffAxisDistance(t *testing.T) {
	origin := model.Position{X: 0, Y: 0}
	target := model.Position{X: 4, Y: 4}
	cases := []struct {
		p    model.Position
		want float64
	}{
		{model.Position{X: 2, Y: 2}, 0},
		{model.Position{X: 2, Y: 1}, 1 / math.Sqrt2},
		{model.Position{X: 0, Y: 4}, 4 / math.Sqrt2},
	}
	for _, tc := range cases {
		if got := offAxisDistance(origin, target, tc.p); math.Abs(got-tc.want) > 1e-12 {
			t.Fatalf("offAxisDistance(%v) = %v, want %v", tc.p, got, tc.want)
		}
	}
	if got := offAxisDistance(origin, origin, target); !math.IsInf(got, 1) {
		t.Fatalf("degenerate line distance = %v, want +Inf", got)
	}
}

func TestLOSHeightAt(t *testing.T) {
	origin := model.Position{X: 0, Y: 0, Height: 10}
	target := model.Position{X: 4, Y: 0, Height: 2}
	if got := losHeightAt(origin, target, model.Position{X: 2, Y: 0, Height: 6}); math.Abs(got-6) > 1e-9 {
		t.Fatalf("losHeightAt midpoint = %v, want 6", got)
	}
	if got := losHeightAt(origin, origin, target); got != 10 {
		t.Fatalf("losHeightAt degenerate = %v, want origin height", got)
	}
}

func TestGridOracleTallObstacleBlocksFarNode(t *testing.T) {
	g, ids := newTestGraph(t, 8, 8, spot{0, 0, 10},
		spot{2, 0, 15},
		spot{4, 0, 1.2},
	)
	middle, far := ids[0], ids[1]
	oracle := NewGridOracle()

	if !oracle.IsBlocked(g, far, g.AP()) {
		t.Fatalf("IsBlocked(far, AP) = false, want true")
	}
	if oracle.IsBlocked(g, middle, g.AP()) {
		t.Fatalf("IsBlocked(middle, AP) = true, want false")
	}

	prepare(g, oracle, RankByDistance)
	if got := g.Blocked(); len(got) != 1 || got[0] != far {
		t.Fatalf("Blocked() = %v, want [%d]", got, far)
	}
	parents := g.Node(far).Parents()
	if len(parents) != 1 || parents[0].Node != middle {
		t.Fatalf("far parents = %v, want [%d]", parents, middle)
	}
}

func TestGridOracleEmptyCandidatesWhenNoRelayVisible(t *testing.T) {
	g, ids := newTestGraph(t, 8, 8, spot{0, 0, 10},
		spot{1, 0, 20},
		spot{2, 0, 15},
		spot{4, 0, 1.2},
	)
	tower, middle, far := ids[0], ids[1], ids[2]
	oracle := NewGridOracle()
	prepare(g, oracle, RankByDistance)

	if got := g.LOS(); len(got) != 1 || got[0] != tower {
		t.Fatalf("LOS() = %v, want [%d]", got, tower)
	}
	if got := g.Node(far).Parents(); len(got) != 0 {
		t.Fatalf("far parents = %v, want none", got)
	}
	if got := g.Node(middle).Parents(); len(got) != 1 || got[0].Node != tower {
		t.Fatalf("middle parents = %v, want [%d]", got, tower)
	}
}

func TestGridOracleObstacleClassification(t *testing.T) {
	cases := []struct {
		name     string
		origin   spot
		obstacle spot
		target   spot
		want     bool
	}{
		{"height tie occludes", spot{0, 0, 2}, spot{2, 0, 2}, spot{4, 0, 2}, true},
		{"shorter than both", spot{0, 0, 2}, spot{2, 0, 1.9}, spot{4, 0, 2}, false},
		{"partial below sight line", spot{0, 0, 10}, spot{2, 0, 5}, spot{4, 0, 1}, false},
		{"partial above sight line", spot{0, 0, 10}, spot{2, 0, 6}, spot{4, 0, 1}, true},
		{"on diagonal", spot{0, 0, 3}, spot{2, 2, 5}, spot{4, 4, 1.2}, true},
		{"off axis beyond radius", spot{0, 0, 3}, spot{2, 1, 50}, spot{4, 4, 1.2}, false},
		{"outside bounding box", spot{0, 0, 3}, spot{5, 0, 50}, spot{4, 0, 1.2}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g, ids := newTestGraph(t, 8, 8, tc.origin, tc.obstacle, tc.target)
			oracle := NewGridOracle()
			if got := oracle.IsBlocked(g, g.AP(), ids[1]); got != tc.want {
				t.Fatalf("IsBlocked(AP, target) = %v, want %v", got, tc.want)
			}
			if got := oracle.IsBlocked(g, ids[1], g.AP()); got != tc.want {
				t.Fatalf("IsBlocked(target, AP) = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestGridOracleRadius(t *testing.T) {
	g, ids := newTestGraph(t, 8, 8, spot{0, 0, 3}, spot{2, 1, 50}, spot{4, 4, 1.2})
	oracle := NewGridOracle()
	oracle.OcclusionRadius = 1
	if !oracle.IsBlocked(g, g.AP(), ids[1]) {
		t.Fatalf("IsBlocked with radius 1 = false, want true")
	}
}

func TestGridOracleClutter(t *testing.T) {
	g, ids := newTestGraph(t, 8, 8, spot{0, 0, 3}, spot{4, 4, 1.2})

	always := NewGridOracle().WithClutter(1, rand.New(rand.NewPCG(1, 2)))
	if !always.IsBlocked(g, ids[0], g.AP()) {
		t.Fatalf("IsBlocked with clutter 1 = false, want true")
	}
	never := NewGridOracle().WithClutter(0, rand.New(rand.NewPCG(1, 2)))
	if never.IsBlocked(g, ids[0], g.AP()) {
		t.Fatalf("IsBlocked with clutter 0 = true, want false")
	}
	if !NewGridOracle().IsBlocked(g, ids[0], NodeID(99)) {
		t.Fatalf("IsBlocked with unknown node = false, want true")
	}
}
