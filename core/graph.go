package core

import (
	"errors"
	"fmt"

	"github.com/signalsfoundry/mesh-relay-simulator/model"
)

var (
	ErrAPOutOfBounds      = errors.New("access point outside grid bounds")
	ErrZeroPopulation     = errors.New("population must be positive")
	ErrPopulationTooLarge = errors.New("population larger than grid")
	ErrPlacementExhausted = errors.New("no free cell for node placement")
	ErrOutOfBounds        = errors.New("position outside grid bounds")
	ErrCellOccupied       = errors.New("grid cell already occupied")
	ErrBadGrid            = errors.New("grid dimensions must be positive")
	ErrUnknownNode        = errors.New("unknown node")
)

// NodeID indexes a node inside a Graph's arena. The AP is always node 0.
type NodeID int

// NoNode marks an empty relay slot or a missing assignment.
const NoNode NodeID = -1

// LinkState is a node's relation to the AP for the current timestep.
type LinkState int

const (
	// LinkLOS means the node sees the AP directly and may relay.
	LinkLOS LinkState = iota
	// LinkBlocked means the node is obstructed and has no relay.
	LinkBlocked
	// LinkRelayed means the node is obstructed and served by a relay.
	LinkRelayed
)

func (s LinkState) String() string {
	switch s {
	case LinkLOS:
		return "los"
	case LinkBlocked:
		return "blocked"
	case LinkRelayed:
		return "relayed"
	default:
		return fmt.Sprintf("LinkState(%d)", int(s))
	}
}

// Pool identifies a candidate list a relay can be drawn from.
type Pool int

const (
	// PoolPeers is the node's same-group peer list.
	PoolPeers Pool = iota
	// PoolParents is the node's AP-visible parent list.
	PoolParents
)

func (p Pool) String() string {
	if p == PoolPeers {
		return "peers"
	}
	return "parents"
}

// Candidate is one relay option with its 3-D distance to the node.
type Candidate struct {
	Node     NodeID
	Distance float64
}

// Claim records which entry of which candidate list a relayed node holds.
type Claim struct {
	Pool  Pool
	Index int
}

// Mobility is the per-node movement bookkeeping used by mobility models.
type Mobility struct {
	// Leader is the node this one follows; a node leading itself moves on
	// its own.
	Leader NodeID
	// OffsetX/OffsetY is the member position relative to its leader.
	OffsetX, OffsetY int
	// DestX/DestY is the current waypoint of a leader.
	DestX, DestY int
	// Timer counts stuck steps while travelling and idle steps at a waypoint.
	Timer int
	// Idle is set while a leader waits at a reached waypoint.
	Idle bool
}

// Node is a ground node (or the AP) in the arena.
type Node struct {
	ID     NodeID
	Pos    model.Position
	Group  int
	Motion Mobility

	// Capacity (bits/s) and Delay (ms) are written by ApplyCapacityDelay.
	Capacity float64
	Delay    float64

	// Reachability counts timesteps the node ended without a relay.
	Reachability int
	// Stability counts relay changes between consecutive timesteps.
	Stability int

	state      LinkState
	relay      NodeID
	child      NodeID
	claim      Claim
	apCapacity float64
	parents    []Candidate
	peers      []Candidate
	history    []NodeID
}

// State returns the node's link state for the current timestep.
func (n *Node) State() LinkState { return n.state }

// Relay returns the node serving n, or NoNode.
func (n *Node) Relay() NodeID { return n.relay }

// Child returns the node n is relaying for, or NoNode.
func (n *Node) Child() NodeID { return n.child }

// Claim returns the candidate entry n holds and whether n is relayed.
func (n *Node) Claim() (Claim, bool) { return n.claim, n.relay != NoNode }

// Parents returns the ranked AP-visible relay candidates. Read only.
func (n *Node) Parents() []Candidate { return n.parents }

// Peers returns the ranked same-group peers. Read only.
func (n *Node) Peers() []Candidate { return n.peers }

// LinkCapacity is the sampled capacity of the node's direct AP link.
func (n *Node) LinkCapacity() float64 { return n.apCapacity }

// RelayAt returns the relay that served n at timestep t, or NoNode.
func (n *Node) RelayAt(t int) NodeID {
	if t < 0 || t >= len(n.history) {
		return NoNode
	}
	return n.history[t]
}

func (n *Node) candidates(p Pool) []Candidate {
	if p == PoolPeers {
		return n.peers
	}
	return n.parents
}

func (n *Node) record(t int, relay NodeID) {
	for len(n.history) <= t {
		n.history = append(n.history, NoNode)
	}
	n.history[t] = relay
}

// Graph is the node arena plus the occupancy grid used for obstruction
// scans. Every occupied cell maps to exactly one node.
type Graph struct {
	Width  int
	Length int

	nodes   []Node
	grid    []NodeID
	los     []NodeID
	blocked []NodeID
	groups  [][]NodeID
	step    int
}

// NewGraph builds an empty width x length grid with the AP placed on it.
func NewGraph(width, length int, ap model.AccessPoint) (*Graph, error) {
	if width <= 0 || length <= 0 {
		return nil, fmt.Errorf("NewGraph: %dx%d: %w", width, length, ErrBadGrid)
	}
	if ap.X < 0 || ap.X >= width || ap.Y < 0 || ap.Y >= length {
		return nil, fmt.Errorf("NewGraph: AP at (%d,%d) on %dx%d grid: %w", ap.X, ap.Y, width, length, ErrAPOutOfBounds)
	}

	g := &Graph{
		Width:  width,
		Length: length,
		grid:   make([]NodeID, width*length),
	}
	for i := range g.grid {
		g.grid[i] = NoNode
	}
	g.nodes = append(g.nodes, Node{
		ID:     0,
		Pos:    ap.Position(),
		Group:  -1,
		Motion: Mobility{Leader: 0, DestX: ap.X, DestY: ap.Y},
		state:  LinkLOS,
		relay:  NoNode,
		child:  NoNode,
	})
	g.grid[g.cell(ap.X, ap.Y)] = 0
	return g, nil
}

// AddNode places a new node at pos. The node starts as its own group and
// its own mobility leader.
func (g *Graph) AddNode(pos model.Position) (NodeID, error) {
	x, y := pos.Cell()
	if !g.InBounds(x, y) {
		return NoNode, fmt.Errorf("AddNode: (%d,%d): %w", x, y, ErrOutOfBounds)
	}
	if g.grid[g.cell(x, y)] != NoNode {
		return NoNode, fmt.Errorf("AddNode: (%d,%d): %w", x, y, ErrCellOccupied)
	}

	id := NodeID(len(g.nodes))
	g.nodes = append(g.nodes, Node{
		ID:     id,
		Pos:    pos,
		Group:  -1,
		Motion: Mobility{Leader: id, DestX: x, DestY: y},
		state:  LinkLOS,
		relay:  NoNode,
		child:  NoNode,
	})
	g.grid[g.cell(x, y)] = id
	return id, nil
}

// SetGroup registers members as one group. The first member leads it.
func (g *Graph) SetGroup(members []NodeID) (int, error) {
	for _, m := range members {
		if !g.valid(m) || m == g.AP() {
			return -1, fmt.Errorf("SetGroup: node %d: %w", m, ErrUnknownNode)
		}
	}
	idx := len(g.groups)
	group := append([]NodeID(nil), members...)
	g.groups = append(g.groups, group)
	for _, m := range group {
		g.nodes[m].Group = idx
	}
	return idx, nil
}

// Group returns the members of group idx, leader first. Read only.
func (g *Graph) Group(idx int) []NodeID {
	if idx < 0 || idx >= len(g.groups) {
		return nil
	}
	return g.groups[idx]
}

// Groups returns the number of registered groups.
func (g *Graph) Groups() int { return len(g.groups) }

// AP returns the access point's ID.
func (g *Graph) AP() NodeID { return 0 }

// Len returns the arena size, AP included.
func (g *Graph) Len() int { return len(g.nodes) }

// Population returns the number of ground nodes (AP excluded).
func (g *Graph) Population() int { return len(g.nodes) - 1 }

// Node returns the node with the given ID. The pointer stays valid until
// the next AddNode call.
func (g *Graph) Node(id NodeID) *Node {
	if !g.valid(id) {
		return nil
	}
	return &g.nodes[id]
}

// NodeAt returns the node occupying cell (x, y), or NoNode.
func (g *Graph) NodeAt(x, y int) NodeID {
	if !g.InBounds(x, y) {
		return NoNode
	}
	return g.grid[g.cell(x, y)]
}

// InBounds reports whether (x, y) is a cell of the grid.
func (g *Graph) InBounds(x, y int) bool {
	return x >= 0 && x < g.Width && y >= 0 && y < g.Length
}

// Move relocates a ground node to cell (x, y), keeping its height.
func (g *Graph) Move(id NodeID, x, y int) error {
	if !g.valid(id) || id == g.AP() {
		return fmt.Errorf("Move: node %d: %w", id, ErrUnknownNode)
	}
	if !g.InBounds(x, y) {
		return fmt.Errorf("Move: (%d,%d): %w", x, y, ErrOutOfBounds)
	}
	n := &g.nodes[id]
	ox, oy := n.Pos.Cell()
	if ox == x && oy == y {
		return nil
	}
	if g.grid[g.cell(x, y)] != NoNode {
		return fmt.Errorf("Move: (%d,%d): %w", x, y, ErrCellOccupied)
	}
	g.grid[g.cell(ox, oy)] = NoNode
	g.grid[g.cell(x, y)] = id
	n.Pos.X = float64(x)
	n.Pos.Y = float64(y)
	return nil
}

// LOS returns the nodes that saw the AP at the last refresh. Read only.
func (g *Graph) LOS() []NodeID { return g.los }

// Blocked returns the nodes that were obstructed at the last refresh, in
// evaluation order. Read only.
func (g *Graph) Blocked() []NodeID { return g.blocked }

// Step returns the timestep assignments are currently recorded against.
func (g *Graph) Step() int { return g.step }

// Assign pairs relay with node for the current timestep and returns the
// node that previously held the relay's slot, or NoNode. Both old pairings
// (node's previous relay and relay's previous child) are detached before
// the new pair is attached.
func (g *Graph) Assign(relay, node NodeID, claim Claim) NodeID {
	r := g.mustNode(relay)
	n := g.mustNode(node)
	if relay == node || relay == g.AP() {
		panic(fmt.Sprintf("core: invalid relay %d for node %d", relay, node))
	}
	if r.state != LinkLOS {
		panic(fmt.Sprintf("core: relay %d is %s", relay, r.state))
	}
	if n.state == LinkLOS {
		panic(fmt.Sprintf("core: node %d has direct AP link", node))
	}

	g.Unassign(node)
	evicted := r.child
	if evicted != NoNode {
		g.Unassign(evicted)
	}

	r.child = node
	n.relay = relay
	n.claim = claim
	n.state = LinkRelayed
	n.record(g.step, relay)
	return evicted
}

// Unassign detaches node from its relay, if any. The node returns to the
// blocked state.
func (g *Graph) Unassign(node NodeID) {
	n := g.mustNode(node)
	if n.relay == NoNode {
		return
	}
	g.nodes[n.relay].child = NoNode
	n.relay = NoNode
	n.claim = Claim{}
	n.state = LinkBlocked
	n.record(g.step, NoNode)
}

// resetAssignments clears every pairing and starts recording at step t.
func (g *Graph) resetAssignments(t int) {
	g.step = t
	g.clearPairings()
	for i := 1; i < len(g.nodes); i++ {
		g.nodes[i].record(t, NoNode)
	}
}

// clearPairings detaches every pair without touching the history, so the
// previous timestep's relays stay readable for carry-over.
func (g *Graph) clearPairings() {
	for i := range g.nodes {
		n := &g.nodes[i]
		if n.relay != NoNode {
			n.state = LinkBlocked
		}
		n.relay = NoNode
		n.child = NoNode
		n.claim = Claim{}
	}
}

func (g *Graph) valid(id NodeID) bool {
	return id >= 0 && int(id) < len(g.nodes)
}

func (g *Graph) mustNode(id NodeID) *Node {
	if !g.valid(id) {
		panic(fmt.Sprintf("core: unknown node %d", id))
	}
	return &g.nodes[id]
}

func (g *Graph) cell(x, y int) int {
	return x*g.Length + y
}
