package core

import (
	"context"
	"time"

	"github.com/signalsfoundry/mesh-relay-simulator/internal/logging"
)

// MatchResult summarises one matching pass.
type MatchResult struct {
	Timestep  int
	Blocked   int
	Matched   int
	Unmatched int
	// Carried counts pairs kept from the previous timestep.
	Carried int
	// Evictions counts slots taken from a holder by comparison or by an
	// augmenting-path rewire.
	Evictions int
	// Steals counts carried pairs broken by the steal pool.
	Steals int
	// Passes counts sweeps over the blocked list.
	Passes int
}

// MatchState is the per-node scratch state of one matching pass.
type MatchState struct {
	// Checked is set once the node's outcome for this pass is decided.
	Checked bool
	// Locked marks a pair carried over from the previous timestep; only the
	// steal pool may break it.
	Locked bool
}

// EventKind labels a MatchEvent.
type EventKind int

const (
	EventAssign EventKind = iota
	EventEvict
	EventSteal
	EventCarry
	EventFail
)

// MatchEvent is emitted to listeners for every change the engine makes.
// For EventEvict and EventSteal, Other is the node that lost the slot.
type MatchEvent struct {
	Kind     EventKind
	Timestep int
	Node     NodeID
	Relay    NodeID
	Other    NodeID
}

// MatchRecorder receives the outcome of every pass, e.g. for metrics.
type MatchRecorder interface {
	ObserveMatch(variant string, res MatchResult, elapsed time.Duration)
}

// Engine runs one matching policy over a graph. It holds no graph state
// between runs and is not safe for concurrent use.
type Engine struct {
	policy    Policy
	oracle    VisibilityOracle
	carryOver bool
	log       logging.Logger
	recorder  MatchRecorder
	listeners []func(MatchEvent)

	state []MatchState
	res   MatchResult
}

// EngineOption customises Engine construction.
type EngineOption func(*Engine)

// WithLogger attaches a structured logger.
func WithLogger(log logging.Logger) EngineOption {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithMatchRecorder attaches a recorder called after each Run.
func WithMatchRecorder(r MatchRecorder) EngineOption {
	return func(e *Engine) {
		e.recorder = r
	}
}

// WithCarryOver toggles keeping still-valid pairs from the previous
// timestep. It is on by default.
func WithCarryOver(enabled bool) EngineOption {
	return func(e *Engine) {
		e.carryOver = enabled
	}
}

// WithEventListener registers a callback for every assignment change.
func WithEventListener(fn func(MatchEvent)) EngineOption {
	return func(e *Engine) {
		if fn != nil {
			e.listeners = append(e.listeners, fn)
		}
	}
}

// NewEngine builds an engine for policy. The oracle is consulted for
// peer links and carried pairs at match time.
func NewEngine(policy Policy, oracle VisibilityOracle, opts ...EngineOption) *Engine {
	e := &Engine{
		policy:    policy,
		oracle:    oracle,
		carryOver: true,
		log:       logging.Noop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Policy returns the engine's policy.
func (e *Engine) Policy() Policy { return e.policy }

// Run assigns relays to the graph's blocked nodes for timestep t. Candidate
// lists must already be built and ranked. Unmatched nodes have their
// reachability incremented; that is a normal outcome, not an error.
func (e *Engine) Run(ctx context.Context, g *Graph, t int) MatchResult {
	start := time.Now()

	g.resetAssignments(t)
	e.state = make([]MatchState, g.Len())
	e.res = MatchResult{Timestep: t, Blocked: len(g.blocked)}

	if t > 0 && e.carryOver {
		e.carry(g, t)
	}

	if e.policy.Scope == ScopeAugmentingPath {
		e.runAugmenting(g)
	} else {
		e.runPools(g)
	}

	for _, b := range g.blocked {
		if g.nodes[b].relay != NoNode {
			e.res.Matched++
		} else {
			e.res.Unmatched++
		}
	}

	res := e.res
	elapsed := time.Since(start)
	if e.recorder != nil {
		e.recorder.ObserveMatch(string(e.policy.Variant), res, elapsed)
	}
	e.log.Debug(ctx, "matching pass complete",
		logging.String("variant", string(e.policy.Variant)),
		logging.Int("timestep", t),
		logging.Int("blocked", res.Blocked),
		logging.Int("matched", res.Matched),
		logging.Int("unmatched", res.Unmatched),
		logging.Int("carried", res.Carried),
		logging.Int("evictions", res.Evictions),
		logging.Int("passes", res.Passes),
	)
	return res
}

// runPools is the generalised slot-contest loop. Every sweep visits each
// unchecked blocked node; evicted nodes are unchecked again and picked up
// by the same or the next sweep.
func (e *Engine) runPools(g *Graph) {
	for {
		pending := false
		for _, b := range g.blocked {
			if e.state[b].Checked {
				continue
			}
			pending = true
			e.place(g, b)
		}
		if !pending {
			return
		}
		e.res.Passes++
	}
}

// place decides node b: it ends either assigned or failed.
func (e *Engine) place(g *Graph, b NodeID) {
	n := &g.nodes[b]
	for rank, pool := range e.policy.Scope.pools() {
		for idx, cand := range n.candidates(pool) {
			r := cand.Node
			if pool == PoolPeers && !e.peerUsable(g, b, r) {
				continue
			}
			holder := g.nodes[r].child
			if holder == NoNode {
				e.take(g, r, b, Claim{Pool: pool, Index: idx})
				return
			}
			if !e.displaces(g, rank, Contender{Node: b, Distance: cand.Distance}, holder) {
				continue
			}
			e.take(g, r, b, Claim{Pool: pool, Index: idx})
			return
		}
	}

	if e.steal(g, b) {
		return
	}

	e.state[b].Checked = true
	n.Reachability++
	e.emit(MatchEvent{Kind: EventFail, Timestep: g.step, Node: b, Relay: NoNode, Other: NoNode})
}

// displaces reports whether a challenger drawing from pool rank may take
// holder's slot. A claim from an earlier pool always beats a later one;
// claims from the same pool go to the comparator.
func (e *Engine) displaces(g *Graph, rank int, challenger Contender, holder NodeID) bool {
	if e.state[holder].Locked {
		return false
	}
	held := e.poolRank(g.nodes[holder].claim.Pool)
	switch {
	case rank < held:
		return true
	case rank > held:
		return false
	case e.policy.Compare == nil:
		return false
	default:
		return e.policy.Compare(g, challenger, Contender{Node: holder, Distance: g.claimDistance(holder)})
	}
}

func (e *Engine) poolRank(p Pool) int {
	for i, q := range e.policy.Scope.pools() {
		if q == p {
			return i
		}
	}
	return len(e.policy.Scope.pools())
}

// peerUsable reports whether peer can relay for node right now: the peer
// must see the AP and the two must see each other.
func (e *Engine) peerUsable(g *Graph, node, peer NodeID) bool {
	return g.nodes[peer].state == LinkLOS && !e.oracle.IsBlocked(g, node, peer)
}

// take attaches node to relay, evicting and requeueing any holder.
func (e *Engine) take(g *Graph, relay, node NodeID, claim Claim) {
	evicted := g.Assign(relay, node, claim)
	e.state[node].Checked = true
	if evicted != NoNode {
		e.state[evicted] = MatchState{}
		e.res.Evictions++
		e.emit(MatchEvent{Kind: EventEvict, Timestep: g.step, Node: node, Relay: relay, Other: evicted})
		return
	}
	e.emit(MatchEvent{Kind: EventAssign, Timestep: g.step, Node: node, Relay: relay, Other: NoNode})
}

func (e *Engine) emit(ev MatchEvent) {
	for _, fn := range e.listeners {
		fn(ev)
	}
}
