package core

import (
	"math/rand/v2"
	"sync"

	"github.com/signalsfoundry/mesh-relay-simulator/model"
)

// DefaultOcclusionRadius is how far (in cell units) an obstacle may sit off
// the origin-target line and still occlude it.
const DefaultOcclusionRadius = 0.25

// VisibilityOracle decides whether the path between two nodes is obstructed.
type VisibilityOracle interface {
	IsBlocked(g *Graph, origin, target NodeID) bool
}

// GridOracle checks obstruction against the other nodes on the occupancy
// grid. An optional clutter probability adds geometry-independent
// occlusion for unmodelled obstacles.
type GridOracle struct {
	// OcclusionRadius is the maximum off-axis distance of an occluder.
	OcclusionRadius float64

	// ClutterChance is the probability that an otherwise clear path is
	// reported blocked. Zero disables clutter.
	ClutterChance float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewGridOracle returns an oracle with the default occlusion radius and no
// clutter.
func NewGridOracle() *GridOracle {
	return &GridOracle{OcclusionRadius: DefaultOcclusionRadius}
}

// WithClutter enables random clutter drawn from rng.
func (o *GridOracle) WithClutter(chance float64, rng *rand.Rand) *GridOracle {
	o.ClutterChance = chance
	o.rng = rng
	return o
}

// IsBlocked scans every occupied cell in the bounding box between the two
// endpoint cells. The endpoints themselves never occlude.
func (o *GridOracle) IsBlocked(g *Graph, origin, target NodeID) bool {
	a := g.Node(origin)
	b := g.Node(target)
	if a == nil || b == nil {
		return true
	}
	radius := o.OcclusionRadius
	if radius == 0 {
		radius = DefaultOcclusionRadius
	}

	ax, ay := a.Pos.Cell()
	bx, by := b.Pos.Cell()
	minX, maxX := ordered(ax, bx)
	minY, maxY := ordered(ay, by)

	for x := minX; x <= maxX; x++ {
		for y := minY; y <= maxY; y++ {
			id := g.NodeAt(x, y)
			if id == NoNode || id == origin || id == target {
				continue
			}
			if (x == ax && y == ay) || (x == bx && y == by) {
				continue
			}
			if occludes(a.Pos, b.Pos, g.nodes[id].Pos, radius) {
				return true
			}
		}
	}
	return o.clutter()
}

func (o *GridOracle) clutter() bool {
	if o.ClutterChance <= 0 || o.rng == nil {
		return false
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.rng.Float64() < o.ClutterChance
}

// occludes classifies a single obstacle against the origin-target path.
// Height ties count as occluding.
func occludes(origin, target, obstacle model.Position, radius float64) bool {
	if offAxisDistance(origin, target, obstacle) > radius {
		return false
	}
	h := obstacle.Height
	tallerThanOrigin := h >= origin.Height
	tallerThanTarget := h >= target.Height
	switch {
	case tallerThanOrigin && tallerThanTarget:
		return true
	case tallerThanOrigin || tallerThanTarget:
		return losHeightAt(origin, target, obstacle) < h
	default:
		return false
	}
}

func ordered(a, b int) (int, int) {
	if a > b {
		return b, a
	}
	return a, b
}
