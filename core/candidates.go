package core

import "math/rand/v2"

// RefreshBlockage re-tests every ground node against the AP and splits the
// population into LOS relays and blocked nodes. All relay pairings are
// cleared; they are re-derived by the matching engine. It returns the
// blocked count.
func (g *Graph) RefreshBlockage(oracle VisibilityOracle) int {
	g.clearPairings()
	g.los = g.los[:0]
	g.blocked = g.blocked[:0]

	ap := g.AP()
	for i := 1; i < len(g.nodes); i++ {
		id := NodeID(i)
		n := &g.nodes[i]
		if oracle.IsBlocked(g, id, ap) {
			n.state = LinkBlocked
			g.blocked = append(g.blocked, id)
		} else {
			n.state = LinkLOS
			g.los = append(g.los, id)
		}
	}
	return len(g.blocked)
}

// SampleLinks draws the shadowed capacity of every LOS node's AP link for
// this timestep. Blocked nodes get zero.
func (g *Graph) SampleLinks(m LinkModel, rng *rand.Rand) {
	ap := g.nodes[g.AP()].Pos
	for i := 1; i < len(g.nodes); i++ {
		n := &g.nodes[i]
		if n.state != LinkLOS {
			n.apCapacity = 0
			continue
		}
		n.apCapacity = m.Capacity(Distance(n.Pos, ap), rng.NormFloat64())
	}
}

// BuildCandidates fills the parent list of every blocked node with the LOS
// nodes it can see, and its peer list with the rest of its group. LOS nodes
// get empty lists. Lists are in arena order until RankCandidates runs.
func (g *Graph) BuildCandidates(oracle VisibilityOracle) {
	for i := 1; i < len(g.nodes); i++ {
		n := &g.nodes[i]
		n.parents = n.parents[:0]
		n.peers = n.peers[:0]
	}

	for _, b := range g.blocked {
		n := &g.nodes[b]
		for _, c := range g.los {
			if oracle.IsBlocked(g, b, c) {
				continue
			}
			n.parents = append(n.parents, Candidate{Node: c, Distance: Distance(n.Pos, g.nodes[c].Pos)})
		}
		for _, m := range g.Group(n.Group) {
			if m == b {
				continue
			}
			n.peers = append(n.peers, Candidate{Node: m, Distance: Distance(n.Pos, g.nodes[m].Pos)})
		}
	}
}

func (g *Graph) indexOf(node, relay NodeID, p Pool) (int, bool) {
	for i, c := range g.nodes[node].candidates(p) {
		if c.Node == relay {
			return i, true
		}
	}
	return -1, false
}

func (g *Graph) claimDistance(node NodeID) float64 {
	n := &g.nodes[node]
	list := n.candidates(n.claim.Pool)
	if n.relay == NoNode || n.claim.Index < 0 || n.claim.Index >= len(list) {
		return 0
	}
	return list[n.claim.Index].Distance
}
