package climatology

import (
	"fmt"
	"slices"
)

// Grid is a raw gridded variable as read from a file, before orientation.
type Grid struct {
	Shape []int     // 2, 3 or 4 dimensions, slowest first
	Data  []float64 // row-major, NaN for missing
	Lats  []float64
	Lons  []float64
}

// Orient turns a raw grid into a Field running north to south and from
// 180W eastwards:
//   - a 4-D variable keeps its first level;
//   - a 2-D variable becomes a single time slice;
//   - a 1x360x180 grid has its spatial axes swapped;
//   - latitudes starting in the south are flipped;
//   - longitudes starting just east of 0 are rolled by half a circle.
func Orient(g Grid) (*Field, error) {
	shape, data := g.Shape, g.Data
	switch len(shape) {
	case 2:
		shape = []int{1, shape[0], shape[1]}
	case 3:
	case 4:
		shape, data = firstLevel(shape, data)
	default:
		return nil, fmt.Errorf("%d-dimensional variable, want 2 to 4", len(shape))
	}
	if shape[0]*shape[1]*shape[2] != len(data) {
		return nil, fmt.Errorf("shape %v does not match %d values", shape, len(data))
	}
	nt, ny, nx := shape[0], shape[1], shape[2]
	out := slices.Clone(data)

	if nt == 1 && ny == 360 && nx == 180 {
		out = transpose(out, ny, nx)
		ny, nx = nx, ny
	}
	if len(g.Lats) > 0 && g.Lats[0] < 0 {
		flipLat(out, nt, ny, nx)
	}
	if len(g.Lons) > 0 && g.Lons[0] > 0 && g.Lons[0] < 1 {
		rollLon(out, nt, ny, nx, nx/2)
	}
	return NewField(nt, ny, nx, out)
}

func firstLevel(shape []int, data []float64) ([]int, []float64) {
	nt, nl, ny, nx := shape[0], shape[1], shape[2], shape[3]
	if nt*nl*ny*nx != len(data) {
		return shape, data
	}
	out := make([]float64, 0, nt*ny*nx)
	for t := range nt {
		start := (t * nl) * ny * nx
		out = append(out, data[start:start+ny*nx]...)
	}
	return []int{nt, ny, nx}, out
}

func transpose(data []float64, ny, nx int) []float64 {
	out := make([]float64, len(data))
	for y := range ny {
		for x := range nx {
			out[x*ny+y] = data[y*nx+x]
		}
	}
	return out
}

func flipLat(data []float64, nt, ny, nx int) {
	for t := range nt {
		base := t * ny * nx
		for y := range ny / 2 {
			a := data[base+y*nx : base+(y+1)*nx]
			b := data[base+(ny-1-y)*nx : base+(ny-y)*nx]
			for i := range a {
				a[i], b[i] = b[i], a[i]
			}
		}
	}
}

// rollLon shifts every row by k columns, so column i moves to (i+k) mod nx.
func rollLon(data []float64, nt, ny, nx, k int) {
	row := make([]float64, nx)
	for r := range nt * ny {
		src := data[r*nx : (r+1)*nx]
		for i, v := range src {
			row[(i+k)%nx] = v
		}
		copy(src, row)
	}
}
