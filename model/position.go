package model

// Position is a node location on the simulation grid. X and Y are grid
// coordinates (cells are one unit wide); Height is the antenna elevation in
// metres above ground.
type Position struct {
	X      float64
	Y      float64
	Height float64
}

// Cell returns the grid cell containing the planar part of the position.
// Coordinates are rounded half up, matching how obstacles are binned.
func (p Position) Cell() (int, int) {
	return int(p.X + 0.5), int(p.Y + 0.5)
}

// AccessPoint describes the fixed AP every node tries to reach.
type AccessPoint struct {
	X      int     `yaml:"x" json:"x"`
	Y      int     `yaml:"y" json:"y"`
	Height float64 `yaml:"height" json:"height"`
}

// Position returns the AP location as a Position.
func (ap AccessPoint) Position() Position {
	return Position{X: float64(ap.X), Y: float64(ap.Y), Height: ap.Height}
}
