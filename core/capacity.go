package core

// ApplyCapacityDelay turns the finished relay tree into per-node capacity
// and delay. It must run after matching for the timestep is complete.
//
// A direct node keeps its capped AP-link rate. A relay sends every frame
// twice, so its rate is halved and shared with its child; the child pays one
// extra beam switch on top of the relay's delay. Blocked nodes without a
// relay get zero capacity and zero delay.
func ApplyCapacityDelay(g *Graph, m LinkModel) {
	for i := 1; i < len(g.nodes); i++ {
		n := &g.nodes[i]
		if n.state != LinkLOS {
			n.Capacity = 0
			n.Delay = 0
		}
	}

	for _, id := range g.los {
		n := &g.nodes[id]
		if n.child == NoNode {
			n.Delay = m.HopDelayMs() + m.TransferMs(n.apCapacity, 1)
			n.Capacity = m.Cap(n.apCapacity)
			continue
		}
		c := &g.nodes[n.child]
		n.Delay = m.HopDelayMs() + m.TransferMs(n.apCapacity, 2)
		n.Capacity = m.Cap(n.apCapacity / 2)
		c.Capacity = n.Capacity
		c.Delay = n.Delay + m.BeamMs
	}
}

// TotalCapacity sums the capacity of every ground node.
func TotalCapacity(g *Graph) float64 {
	var total float64
	for i := 1; i < len(g.nodes); i++ {
		total += g.nodes[i].Capacity
	}
	return total
}

// MeanCapacity is TotalCapacity averaged over the population.
func MeanCapacity(g *Graph) float64 {
	if g.Population() == 0 {
		return 0
	}
	return TotalCapacity(g) / float64(g.Population())
}

// MeanDelay averages delay over nodes that were served this timestep.
func MeanDelay(g *Graph) float64 {
	var sum float64
	count := 0
	for i := 1; i < len(g.nodes); i++ {
		if d := g.nodes[i].Delay; d > 0 {
			sum += d
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// MaxReachability returns the highest reachability counter in the graph.
func MaxReachability(g *Graph) int {
	best := 0
	for i := 1; i < len(g.nodes); i++ {
		best = max(best, g.nodes[i].Reachability)
	}
	return best
}

// MaxStability returns the highest stability counter in the graph.
func MaxStability(g *Graph) int {
	best := 0
	for i := 1; i < len(g.nodes); i++ {
		best = max(best, g.nodes[i].Stability)
	}
	return best
}

// TotalStability sums the stability counters of the population.
func TotalStability(g *Graph) int {
	total := 0
	for i := 1; i < len(g.nodes); i++ {
		total += g.nodes[i].Stability
	}
	return total
}

// JainIndex is Jain's fairness index over the stability counters. A graph
// where nobody changed relay scores 1.
func JainIndex(g *Graph) float64 {
	var sum, sumSq float64
	for i := 1; i < len(g.nodes); i++ {
		s := float64(g.nodes[i].Stability)
		sum += s
		sumSq += s * s
	}
	if sumSq == 0 {
		return 1
	}
	return (sum * sum) / (float64(g.Population()) * sumSq)
}

// RecordStability bumps the stability counter of every node whose relay at
// timestep t differs from the one at t-1, and returns how many changed.
func RecordStability(g *Graph, t int) int {
	if t <= 0 {
		return 0
	}
	changed := 0
	for i := 1; i < len(g.nodes); i++ {
		n := &g.nodes[i]
		if n.RelayAt(t) != n.RelayAt(t-1) {
			n.Stability++
			changed++
		}
	}
	return changed
}
