package model

// Region is an axis-aligned rectangle of grid cells, [MinX, MaxX) x [MinY, MaxY).
// The poisson layout draws a per-region node count and places nodes inside it.
type Region struct {
	MinX int `yaml:"min_x" json:"min_x"`
	MinY int `yaml:"min_y" json:"min_y"`
	MaxX int `yaml:"max_x" json:"max_x"`
	MaxY int `yaml:"max_y" json:"max_y"`
}

// Cells returns the number of grid cells covered by the region.
func (r Region) Cells() int {
	w := r.MaxX - r.MinX
	l := r.MaxY - r.MinY
	if w <= 0 || l <= 0 {
		return 0
	}
	return w * l
}

// Contains reports whether the cell (x, y) lies inside the region.
func (r Region) Contains(x, y int) bool {
	return x >= r.MinX && x < r.MaxX && y >= r.MinY && y < r.MaxY
}

// SplitRegions divides a width x length grid into an n x n lattice of
// regions, row-major by X then Y. Trailing cells that do not divide evenly
// are left out, so every region has the same size.
func SplitRegions(width, length, n int) []Region {
	if n <= 0 {
		return nil
	}
	w := width / n
	l := length / n
	if w == 0 || l == 0 {
		return nil
	}
	regions := make([]Region, 0, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			regions = append(regions, Region{
				MinX: i * w,
				MinY: j * l,
				MaxX: (i + 1) * w,
				MaxY: (j + 1) * l,
			})
		}
	}
	return regions
}
