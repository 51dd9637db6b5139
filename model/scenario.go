package model

// Layout selects how the topology generator places the population.
type Layout string

const (
	// LayoutUniform places every node on a random free cell.
	LayoutUniform Layout = "uniform"
	// LayoutGroup places groups of co-located nodes around a leader.
	LayoutGroup Layout = "group"
	// LayoutPoisson draws a Poisson-like count per region and fills each region.
	LayoutPoisson Layout = "poisson"
)

// Generator defaults for the 50x50 reference grid.
const (
	DefaultWidth        = 50
	DefaultLength       = 50
	DefaultPopulation   = 100
	DefaultGroupSize    = 10
	DefaultGroupRadius  = 6
	DefaultGroupMargin  = 5
	DefaultMinHeight    = 1.2
	DefaultHeightSpread = 80 // centimetres above DefaultMinHeight
	DefaultRegionSplit  = 4
)

// ScenarioSpec is everything the topology generator needs to build one
// trial's initial graph.
type ScenarioSpec struct {
	Width      int
	Length     int
	AP         AccessPoint
	Population int
	Layout     Layout

	// GroupSize is the number of nodes per group, leader included. Only
	// used by LayoutGroup. 1 means every node moves on its own.
	GroupSize int
	// GroupRadius bounds the member offset from its leader: each axis
	// offset is below it, so it must be at least 2.
	GroupRadius int

	// Regions restricts LayoutPoisson placement. Empty means an even
	// DefaultRegionSplit x DefaultRegionSplit split of the grid.
	Regions []Region

	// MinHeight and HeightSpreadCm define node heights as
	// MinHeight + U{0..HeightSpreadCm}/100. A nil HeightSpreadCm means
	// DefaultHeightSpread; a zero spread puts every node at MinHeight.
	MinHeight      float64
	HeightSpreadCm *int
}

// WithDefaults returns a copy of s with unset tuning fields filled in.
// Population and AP are left alone so that invalid input still fails, and
// so is any value a caller set explicitly.
func (s ScenarioSpec) WithDefaults() ScenarioSpec {
	if s.Width == 0 {
		s.Width = DefaultWidth
	}
	if s.Length == 0 {
		s.Length = DefaultLength
	}
	if s.Layout == "" {
		s.Layout = LayoutUniform
	}
	if s.GroupSize == 0 {
		s.GroupSize = 1
	}
	if s.GroupRadius == 0 {
		s.GroupRadius = DefaultGroupRadius
	}
	if s.MinHeight == 0 {
		s.MinHeight = DefaultMinHeight
	}
	if s.HeightSpreadCm == nil {
		spread := DefaultHeightSpread
		s.HeightSpreadCm = &spread
	}
	return s
}
