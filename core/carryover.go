package core

// carry re-establishes pairs from timestep t-1 that are still valid: the
// relay still sees the AP, the node is still blocked, and the two still
// see each other. Carried pairs are locked for this pass.
func (e *Engine) carry(g *Graph, t int) {
	for _, b := range g.blocked {
		n := &g.nodes[b]
		r := n.RelayAt(t - 1)
		if r == NoNode || r == g.AP() || int(r) >= len(g.nodes) {
			continue
		}
		relay := &g.nodes[r]
		if relay.state != LinkLOS || relay.child != NoNode {
			continue
		}
		claim, ok := e.carriedClaim(g, b, r)
		if !ok || e.oracle.IsBlocked(g, b, r) {
			continue
		}
		g.Assign(r, b, claim)
		e.state[b] = MatchState{Checked: true, Locked: true}
		e.res.Carried++
		e.emit(MatchEvent{Kind: EventCarry, Timestep: t, Node: b, Relay: r, Other: NoNode})
	}
}

// carriedClaim finds relay in b's candidate lists, preferring the peer pool
// when the scope uses it.
func (e *Engine) carriedClaim(g *Graph, b, relay NodeID) (Claim, bool) {
	for _, pool := range e.policy.Scope.pools() {
		if idx, ok := g.indexOf(b, relay, pool); ok {
			return Claim{Pool: pool, Index: idx}, true
		}
	}
	return Claim{}, false
}

// steal is the last pool: break a carried pair among b's parents according
// to the policy's StealPolicy. The former holder is requeued.
func (e *Engine) steal(g *Graph, b NodeID) bool {
	if e.policy.Steal == StealNone {
		return false
	}
	n := &g.nodes[b]
	pick := -1
	for idx, cand := range n.parents {
		holder := g.nodes[cand.Node].child
		if holder == NoNode || !e.state[holder].Locked {
			continue
		}
		if pick < 0 {
			pick = idx
			if e.policy.Steal == StealFirst {
				break
			}
			continue
		}
		current := g.nodes[n.parents[pick].Node].child
		if g.nodes[holder].Stability < g.nodes[current].Stability {
			pick = idx
		}
	}
	if pick < 0 {
		return false
	}

	r := n.parents[pick].Node
	evicted := g.Assign(r, b, Claim{Pool: PoolParents, Index: pick})
	e.state[b].Checked = true
	e.state[evicted] = MatchState{}
	e.res.Steals++
	e.emit(MatchEvent{Kind: EventSteal, Timestep: g.step, Node: b, Relay: r, Other: evicted})
	return true
}
