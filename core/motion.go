package core

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
)

// ErrUnknownMobility is returned for an unrecognised mobility model name.
var ErrUnknownMobility = errors.New("unknown mobility model")

// MobilityModel advances node positions by one timestep. Implementations
// must keep the occupancy grid consistent, which Graph.Move guarantees.
type MobilityModel interface {
	Step(g *Graph, rng *rand.Rand)
}

// StaticMobility leaves every node where it is.
type StaticMobility struct{}

// Step for static mobility does nothing.
func (StaticMobility) Step(*Graph, *rand.Rand) {}

// compass holds the eight neighbour directions; index 8 means stay put.
var compass = [8][2]int{
	{0, 1}, {1, 1}, {1, 0}, {1, -1},
	{0, -1}, {-1, -1}, {-1, 0}, {-1, 1},
}

// RandomWalk moves every node in one of eight directions, or not at all,
// with equal probability. A node slides past occupied cells to the first
// free one in its direction and stays put if it reaches the grid edge.
type RandomWalk struct{}

// Step moves each ground node once, in arena order.
func (RandomWalk) Step(g *Graph, rng *rand.Rand) {
	for i := 1; i < g.Len(); i++ {
		dir := rng.IntN(len(compass) + 1)
		if dir == len(compass) {
			continue
		}
		slide(g, NodeID(i), compass[dir][0], compass[dir][1])
	}
}

// slide moves id along (dx, dy) to the first free cell and reports whether
// it found one before leaving the grid.
func slide(g *Graph, id NodeID, dx, dy int) bool {
	x, y := g.Node(id).Pos.Cell()
	for inc := 1; ; inc++ {
		nx, ny := x+inc*dx, y+inc*dy
		if !g.InBounds(nx, ny) {
			return false
		}
		if g.NodeAt(nx, ny) == NoNode {
			return g.Move(id, nx, ny) == nil
		}
	}
}

// WaypointGroup moves group leaders one cell per axis towards a random
// waypoint. Members keep their offset from the leader when the target cell
// is free. A leader that keeps hitting the edge, or that has waited at a
// reached waypoint, picks a new one.
type WaypointGroup struct {
	// StuckLimit is the number of blocked steps before a new waypoint.
	StuckLimit int
	// IdleMax bounds the random pause at a reached waypoint.
	IdleMax int
}

// NewWaypointGroup returns the model with the reference limits.
func NewWaypointGroup() *WaypointGroup {
	return &WaypointGroup{StuckLimit: 10, IdleMax: 5}
}

// Step advances every leader and its members.
func (m *WaypointGroup) Step(g *Graph, rng *rand.Rand) {
	idleMax := max(m.IdleMax, 1)
	stuck := max(m.StuckLimit, 1)

	for i := 1; i < g.Len(); i++ {
		id := NodeID(i)
		n := g.Node(id)
		if n.Motion.Leader != id {
			continue
		}
		x, y := n.Pos.Cell()

		if x == n.Motion.DestX && y == n.Motion.DestY {
			switch {
			case n.Motion.Timer == 0:
				m.retarget(g, n, rng, idleMax)
			default:
				if n.Motion.Timer > idleMax {
					n.Motion.Timer = rng.IntN(idleMax)
				}
				n.Motion.Timer--
				n.Motion.Idle = n.Motion.Timer > 0
			}
			continue
		}

		n.Motion.Idle = false
		if x != n.Motion.DestX && !slide(g, id, sign(n.Motion.DestX-x), 0) {
			n.Motion.Timer++
		}
		x, y = n.Pos.Cell()
		if y != n.Motion.DestY && !slide(g, id, 0, sign(n.Motion.DestY-y)) {
			n.Motion.Timer++
		}

		followLeader(g, id)

		if n.Motion.Timer >= stuck {
			m.retarget(g, n, rng, idleMax)
		}
	}
}

func (m *WaypointGroup) retarget(g *Graph, n *Node, rng *rand.Rand, idleMax int) {
	n.Motion.Timer = rng.IntN(idleMax)
	n.Motion.DestX = rng.IntN(g.Width)
	n.Motion.DestY = rng.IntN(g.Length)
}

// followLeader moves each member of leader's group towards its offset
// position. Each axis is only corrected when the target stays on the grid.
func followLeader(g *Graph, leader NodeID) {
	lx, ly := g.Node(leader).Pos.Cell()
	for _, member := range g.Group(g.Node(leader).Group) {
		if member == leader {
			continue
		}
		mn := g.Node(member)
		mx, my := mn.Pos.Cell()
		tx, ty := lx+mn.Motion.OffsetX, ly+mn.Motion.OffsetY

		nx, ny := mx, my
		if tx >= 0 && tx < g.Width {
			nx = tx
		}
		if ty >= 0 && ty < g.Length {
			ny = ty
		}
		if nx == mx && ny == my {
			continue
		}
		if g.NodeAt(nx, ny) == NoNode {
			_ = g.Move(member, nx, ny)
		}
	}
}

func sign(v int) int {
	switch {
	case v < 0:
		return -1
	case v > 0:
		return 1
	default:
		return 0
	}
}

// NewMobilityModel chooses a model by name: static, random-walk or
// waypoint-group.
func NewMobilityModel(name string) (MobilityModel, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "static":
		return StaticMobility{}, nil
	case "random-walk", "random":
		return RandomWalk{}, nil
	case "waypoint-group", "waypoint":
		return NewWaypointGroup(), nil
	default:
		return nil, fmt.Errorf("NewMobilityModel: %q: %w", name, ErrUnknownMobility)
	}
}
