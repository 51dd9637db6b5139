package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnknownRankKey is returned when a rank key name is not recognised.
var ErrUnknownRankKey = errors.New("unknown rank key")

// RankKey selects the primary ordering of candidate lists.
type RankKey int

const (
	// RankByDistance prefers closer relays; ties go to the taller relay.
	RankByDistance RankKey = iota
	// RankByCapacity prefers higher AP-link capacity; ties go to the closer relay.
	RankByCapacity
	// RankByHeight prefers taller relays; ties go to the closer relay.
	RankByHeight
)

func (k RankKey) String() string {
	switch k {
	case RankByDistance:
		return "distance"
	case RankByCapacity:
		return "capacity"
	case RankByHeight:
		return "height"
	default:
		return fmt.Sprintf("RankKey(%d)", int(k))
	}
}

// ParseRankKey maps a configuration name to a RankKey.
func ParseRankKey(name string) (RankKey, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "distance":
		return RankByDistance, nil
	case "capacity":
		return RankByCapacity, nil
	case "height":
		return RankByHeight, nil
	default:
		return 0, fmt.Errorf("ParseRankKey: %q: %w", name, ErrUnknownRankKey)
	}
}

// RankCandidates orders every blocked node's parent and peer lists by key.
// Equal keys fall back to the secondary key and finally to node ID, so the
// result does not depend on the input order.
func (g *Graph) RankCandidates(key RankKey) {
	for _, b := range g.blocked {
		n := &g.nodes[b]
		g.rank(n.parents, key)
		g.rank(n.peers, key)
	}
}

func (g *Graph) rank(list []Candidate, key RankKey) {
	sort.SliceStable(list, func(i, j int) bool {
		return g.prefer(list[i], list[j], key)
	})
}

// prefer reports whether a ranks strictly before b.
func (g *Graph) prefer(a, b Candidate, key RankKey) bool {
	na, nb := &g.nodes[a.Node], &g.nodes[b.Node]
	switch key {
	case RankByCapacity:
		if na.apCapacity != nb.apCapacity {
			return na.apCapacity > nb.apCapacity
		}
		if a.Distance != b.Distance {
			return a.Distance < b.Distance
		}
	case RankByHeight:
		if na.Pos.Height != nb.Pos.Height {
			return na.Pos.Height > nb.Pos.Height
		}
		if a.Distance != b.Distance {
			return a.Distance < b.Distance
		}
	default:
		if a.Distance != b.Distance {
			return a.Distance < b.Distance
		}
		if na.Pos.Height != nb.Pos.Height {
			return na.Pos.Height > nb.Pos.Height
		}
	}
	return a.Node < b.Node
}
