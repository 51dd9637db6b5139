package core

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/signalsfoundry/mesh-relay-simulator/model"
)

var (
	// ErrUnknownLayout is returned when a scenario names an unsupported layout.
	ErrUnknownLayout = errors.New("unknown layout")
	// ErrGroupRadius is returned for a group layout whose radius leaves no
	// room for a member next to its leader.
	ErrGroupRadius = errors.New("group radius must be at least 2")
	// ErrHeightSpread is returned for a negative height spread.
	ErrHeightSpread = errors.New("height spread must not be negative")
)

// placementAttempts bounds rejection sampling per node.
const placementAttempts = 4096

// GenerateTopology builds the initial graph for one trial. Invalid
// scenarios (AP off the grid, no population, more nodes than free cells)
// fail before any node is placed.
func GenerateTopology(spec model.ScenarioSpec, rng *rand.Rand) (*Graph, error) {
	spec = spec.WithDefaults()
	if spec.Population <= 0 {
		return nil, fmt.Errorf("GenerateTopology: population %d: %w", spec.Population, ErrZeroPopulation)
	}
	g, err := NewGraph(spec.Width, spec.Length, spec.AP)
	if err != nil {
		return nil, fmt.Errorf("GenerateTopology: %w", err)
	}
	if spec.Population > spec.Width*spec.Length-1 {
		return nil, fmt.Errorf("GenerateTopology: %d nodes on %dx%d grid: %w",
			spec.Population, spec.Width, spec.Length, ErrPopulationTooLarge)
	}

	if *spec.HeightSpreadCm < 0 {
		return nil, fmt.Errorf("GenerateTopology: spread %dcm: %w", *spec.HeightSpreadCm, ErrHeightSpread)
	}
	if spec.Layout == model.LayoutGroup && spec.GroupSize > 1 && spec.GroupRadius < 2 {
		return nil, fmt.Errorf("GenerateTopology: radius %d: %w", spec.GroupRadius, ErrGroupRadius)
	}

	gen := &generator{g: g, spec: spec, rng: rng}
	switch spec.Layout {
	case model.LayoutUniform:
		err = gen.uniform()
	case model.LayoutGroup:
		err = gen.groups()
	case model.LayoutPoisson:
		err = gen.poisson()
	default:
		err = fmt.Errorf("layout %q: %w", spec.Layout, ErrUnknownLayout)
	}
	if err != nil {
		return nil, fmt.Errorf("GenerateTopology: %w", err)
	}
	return g, nil
}

type generator struct {
	g    *Graph
	spec model.ScenarioSpec
	rng  *rand.Rand
}

func (gen *generator) height() float64 {
	return gen.spec.MinHeight + float64(gen.rng.IntN(*gen.spec.HeightSpreadCm+1))/100
}

func (gen *generator) place(x, y int) (NodeID, error) {
	return gen.g.AddNode(model.Position{X: float64(x), Y: float64(y), Height: gen.height()})
}

// freeCell draws a random unoccupied cell inside r.
func (gen *generator) freeCell(r model.Region) (int, int, bool) {
	w, l := r.MaxX-r.MinX, r.MaxY-r.MinY
	if w <= 0 || l <= 0 {
		return 0, 0, false
	}
	for range placementAttempts {
		x := r.MinX + gen.rng.IntN(w)
		y := r.MinY + gen.rng.IntN(l)
		if gen.g.InBounds(x, y) && gen.g.NodeAt(x, y) == NoNode {
			return x, y, true
		}
	}
	// Dense region: fall back to a scan so placement stays total.
	for x := max(r.MinX, 0); x < min(r.MaxX, gen.g.Width); x++ {
		for y := max(r.MinY, 0); y < min(r.MaxY, gen.g.Length); y++ {
			if gen.g.NodeAt(x, y) == NoNode {
				return x, y, true
			}
		}
	}
	return 0, 0, false
}

func (gen *generator) whole() model.Region {
	return model.Region{MaxX: gen.g.Width, MaxY: gen.g.Length}
}

func (gen *generator) uniform() error {
	for i := 0; i < gen.spec.Population; i++ {
		x, y, ok := gen.freeCell(gen.whole())
		if !ok {
			return ErrPlacementExhausted
		}
		if _, err := gen.place(x, y); err != nil {
			return err
		}
	}
	return nil
}

// groups places leaders away from the grid edge and scatters each leader's
// members within the group radius. Members remember their offset so the
// waypoint model can move the group as a unit. A short final group takes
// the remainder of the population.
func (gen *generator) groups() error {
	size := max(gen.spec.GroupSize, 1)
	margin := model.DefaultGroupMargin
	if gen.g.Width <= 2*margin || gen.g.Length <= 2*margin {
		margin = 0
	}
	leaderArea := model.Region{
		MinX: margin, MinY: margin,
		MaxX: gen.g.Width - margin, MaxY: gen.g.Length - margin,
	}

	for remaining := gen.spec.Population; remaining > 0; remaining -= size {
		n := min(size, remaining)
		lx, ly, ok := gen.freeCell(leaderArea)
		if !ok {
			return ErrPlacementExhausted
		}
		leader, err := gen.place(lx, ly)
		if err != nil {
			return err
		}
		members := []NodeID{leader}
		for i := 1; i < n; i++ {
			id, err := gen.member(leader, lx, ly)
			if err != nil {
				return err
			}
			members = append(members, id)
		}
		if _, err := gen.g.SetGroup(members); err != nil {
			return err
		}
	}
	return nil
}

func (gen *generator) member(leader NodeID, lx, ly int) (NodeID, error) {
	radius := gen.spec.GroupRadius
	for range placementAttempts {
		dx, dy := 0, 0
		for dx == 0 && dy == 0 {
			dx = gen.rng.IntN(radius)
			dy = gen.rng.IntN(radius)
		}
		if gen.rng.IntN(2) == 0 {
			dx = -dx
		}
		if gen.rng.IntN(2) == 0 {
			dy = -dy
		}
		x, y := lx+dx, ly+dy
		if !gen.g.InBounds(x, y) || gen.g.NodeAt(x, y) != NoNode {
			continue
		}
		id, err := gen.place(x, y)
		if err != nil {
			return NoNode, err
		}
		n := gen.g.Node(id)
		n.Motion.Leader = leader
		n.Motion.OffsetX = dx
		n.Motion.OffsetY = dy
		return id, nil
	}
	return NoNode, ErrPlacementExhausted
}

// poisson sweeps the regions repeatedly, drawing an exponentially
// distributed count (mean population/regions) for each, until the whole
// population is placed. Full regions are skipped.
func (gen *generator) poisson() error {
	regions := gen.spec.Regions
	if len(regions) == 0 {
		regions = model.SplitRegions(gen.g.Width, gen.g.Length, model.DefaultRegionSplit)
	}
	capacity := 0
	for _, r := range regions {
		capacity += gen.free(r)
	}
	if capacity < gen.spec.Population {
		return fmt.Errorf("%d nodes in regions with %d free cells: %w", gen.spec.Population, capacity, ErrPopulationTooLarge)
	}

	mean := float64(gen.spec.Population) / float64(len(regions))
	remaining := gen.spec.Population
	for remaining > 0 {
		left := 0
		for _, r := range regions {
			left += gen.free(r)
		}
		if left == 0 {
			return ErrPlacementExhausted
		}
		for _, r := range regions {
			if remaining == 0 {
				break
			}
			count := min(int(-math.Log(1-gen.rng.Float64())*mean), remaining, gen.free(r))
			for range count {
				x, y, ok := gen.freeCell(r)
				if !ok {
					break
				}
				if _, err := gen.place(x, y); err != nil {
					return err
				}
				remaining--
			}
		}
	}
	return nil
}

func (gen *generator) free(r model.Region) int {
	n := 0
	for x := max(r.MinX, 0); x < min(r.MaxX, gen.g.Width); x++ {
		for y := max(r.MinY, 0); y < min(r.MaxY, gen.g.Length); y++ {
			if gen.g.NodeAt(x, y) == NoNode {
				n++
			}
		}
	}
	return n
}
