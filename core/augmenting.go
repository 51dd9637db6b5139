package core

// pathFrame is one level of the alternating-path search: node is looking
// for a relay, next is the next parent index to try, and via/viaIdx is the
// occupied relay it descended through.
type pathFrame struct {
	node   NodeID
	next   int
	via    NodeID
	viaIdx int
}

// runAugmenting gives each unchecked blocked node one augmenting-path
// search. When carried pairs exist, a failed search is retried with the
// carried pairs allowed to move.
func (e *Engine) runAugmenting(g *Graph) {
	visited := make([]bool, g.Len())
	for _, b := range g.blocked {
		if e.state[b].Checked {
			continue
		}
		ok := e.augment(g, b, visited, false)
		if !ok && e.res.Carried > 0 {
			ok = e.augment(g, b, visited, true)
		}
		e.state[b].Checked = true
		if !ok {
			g.nodes[b].Reachability++
			e.emit(MatchEvent{Kind: EventFail, Timestep: g.step, Node: b, Relay: NoNode, Other: NoNode})
		}
	}
	e.res.Passes = 1
}

// augment searches depth-first for an alternating path from root to a free
// relay and rewires the whole path when it finds one. visited is scratch
// space sized to the arena; it is cleared before returning.
func (e *Engine) augment(g *Graph, root NodeID, visited []bool, allowLocked bool) bool {
	var touched []NodeID
	defer func() {
		for _, r := range touched {
			visited[r] = false
		}
	}()

	stack := []pathFrame{{node: root, via: NoNode}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		parents := g.nodes[top.node].parents
		if top.next >= len(parents) {
			stack = stack[:len(stack)-1]
			continue
		}
		idx := top.next
		r := parents[idx].Node
		top.next++
		if visited[r] {
			continue
		}
		holder := g.nodes[r].child
		if holder != NoNode && e.state[holder].Locked && !allowLocked {
			continue
		}
		visited[r] = true
		touched = append(touched, r)

		if holder == NoNode {
			e.rewire(g, stack, r, idx)
			return true
		}
		top.via = r
		top.viaIdx = idx
		stack = append(stack, pathFrame{node: holder, via: NoNode})
	}
	return false
}

// rewire shifts every node on the path one relay along, deepest first, so
// each Assign lands on a slot that has just been freed.
func (e *Engine) rewire(g *Graph, stack []pathFrame, free NodeID, freeIdx int) {
	relay, idx := free, freeIdx
	for k := len(stack) - 1; k >= 0; k-- {
		node := stack[k].node
		g.Assign(relay, node, Claim{Pool: PoolParents, Index: idx})
		if k > 0 {
			if e.state[node].Locked {
				e.state[node].Locked = false
				e.res.Steals++
			}
			e.res.Evictions++
			e.emit(MatchEvent{Kind: EventEvict, Timestep: g.step, Node: node, Relay: relay, Other: NoNode})
			relay, idx = stack[k-1].via, stack[k-1].viaIdx
			continue
		}
		e.emit(MatchEvent{Kind: EventAssign, Timestep: g.step, Node: node, Relay: relay, Other: NoNode})
	}
}
