package core

import (
	"context"
	"testing"

	"github.com/signalsfoundry/mesh-relay-simulator/model"
)

// pairOracle reports a path blocked only when the unordered pair was
// registered with block.
type pairOracle struct {
	blocked map[[2]NodeID]bool
}

func newPairOracle() *pairOracle {
	return &pairOracle{blocked: make(map[[2]NodeID]bool)}
}

func pairKey(a, b NodeID) [2]NodeID {
	if a > b {
		a, b = b, a
	}
	return [2]NodeID{a, b}
}

func (o *pairOracle) block(a, b NodeID) *pairOracle {
	o.blocked[pairKey(a, b)] = true
	return o
}

func (o *pairOracle) unblock(a, b NodeID) *pairOracle {
	delete(o.blocked, pairKey(a, b))
	return o
}

func (o *pairOracle) IsBlocked(_ *Graph, a, b NodeID) bool {
	return o.blocked[pairKey(a, b)]
}

type spot struct {
	x, y int
	h    float64
}

func newTestGraph(t *testing.T, width, length int, ap spot, nodes ...spot) (*Graph, []NodeID) {
	t.Helper()
	g, err := NewGraph(width, length, model.AccessPoint{X: ap.x, Y: ap.y, Height: ap.h})
	if err != nil {
		t.Fatalf("NewGraph: %v", err)
	}
	ids := make([]NodeID, 0, len(nodes))
	for _, n := range nodes {
		h := n.h
		if h == 0 {
			h = model.DefaultMinHeight
		}
		id, err := g.AddNode(model.Position{X: float64(n.x), Y: float64(n.y), Height: h})
		if err != nil {
			t.Fatalf("AddNode(%d,%d): %v", n.x, n.y, err)
		}
		ids = append(ids, id)
	}
	return g, ids
}

// prepare runs the pre-matching pipeline for one timestep.
func prepare(g *Graph, oracle VisibilityOracle, key RankKey) {
	g.RefreshBlockage(oracle)
	g.BuildCandidates(oracle)
	g.RankCandidates(key)
}

func mustPolicy(t *testing.T, v Variant) Policy {
	t.Helper()
	p, err := PolicyFor(v)
	if err != nil {
		t.Fatalf("PolicyFor(%q): %v", v, err)
	}
	return p
}

func runMatch(t *testing.T, g *Graph, oracle VisibilityOracle, v Variant, step int, opts ...EngineOption) MatchResult {
	t.Helper()
	return NewEngine(mustPolicy(t, v), oracle, opts...).Run(context.Background(), g, step)
}

// checkAssignments verifies the structural invariants of a finished pass.
func checkAssignments(t *testing.T, g *Graph, res MatchResult) {
	t.Helper()
	if res.Matched+res.Unmatched != res.Blocked {
		t.Fatalf("matched %d + unmatched %d != blocked %d", res.Matched, res.Unmatched, res.Blocked)
	}
	if res.Blocked != len(g.Blocked()) {
		t.Fatalf("Blocked = %d, want %d", res.Blocked, len(g.Blocked()))
	}

	served := make(map[NodeID]NodeID)
	for i := 1; i < g.Len(); i++ {
		id := NodeID(i)
		n := g.Node(id)
		switch n.State() {
		case LinkLOS:
			if n.Relay() != NoNode {
				t.Fatalf("LOS node %d has relay %d", id, n.Relay())
			}
			if c := n.Child(); c != NoNode {
				if g.Node(c).Relay() != id {
					t.Fatalf("relay %d child %d points at %d", id, c, g.Node(c).Relay())
				}
			}
		case LinkRelayed:
			r := n.Relay()
			if r == NoNode || g.Node(r).State() != LinkLOS {
				t.Fatalf("relayed node %d has relay %d", id, r)
			}
			if g.Node(r).Child() != id {
				t.Fatalf("node %d relay %d child = %d", id, r, g.Node(r).Child())
			}
			if prev, dup := served[r]; dup {
				t.Fatalf("relay %d serves both %d and %d", r, prev, id)
			}
			served[r] = id
			claim, ok := n.Claim()
			list := n.candidates(claim.Pool)
			if !ok || claim.Index < 0 || claim.Index >= len(list) || list[claim.Index].Node != r {
				t.Fatalf("node %d claim %+v does not name relay %d", id, claim, r)
			}
			if n.RelayAt(g.Step()) != r {
				t.Fatalf("node %d history at %d = %d, want %d", id, g.Step(), n.RelayAt(g.Step()), r)
			}
		case LinkBlocked:
			if n.Relay() != NoNode || n.Child() != NoNode {
				t.Fatalf("blocked node %d has relay %d child %d", id, n.Relay(), n.Child())
			}
		}
	}
	if len(served) != res.Matched {
		t.Fatalf("served %d nodes, Matched = %d", len(served), res.Matched)
	}
}
