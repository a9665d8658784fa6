// Package buddy implements the neighbour-consistency ("buddy") checks. Each
// check grids the anomalies of a batch into 1 degree by pentad super
// observations, derives a buddy mean and spread for every populated cell from
// the cells around it, and compares each observation with its cell's buddies.
package buddy

import (
	"fmt"
	"math"

	"github.com/couchcryptid/marine-qc/internal/calendar"
	"github.com/couchcryptid/marine-qc/internal/climatology"
)

// Grid dimensions.
const (
	NLon    = 360
	NLat    = 180
	NPentad = calendar.PentadsPerYear
)

// NoBuddyStdev is the buddy spread of a cell that has no neighbours at any
// search radius. Observations in such cells are untestable.
const NoBuddyStdev = 500.0

// radcon is degrees to radians as the MDS code defined it.
const radcon = 3.1415928 / 180.0

// Radius is a search box half-width in degrees of longitude and latitude and
// in pentads.
type Radius struct {
	Lon    int `yaml:"lon"`
	Lat    int `yaml:"lat"`
	Pentad int `yaml:"pentad"`
}

type cellIndex struct{ x, y, p int }

type cell struct {
	sum   float64
	nobs  int
	mean  float64
	bmean float64
	bsd   float64
	// buddies is false when no search radius found a neighbour.
	buddies bool
}

// Grid accumulates anomalies on a 360 x 180 x 73 grid. Only populated cells
// are stored.
type Grid struct {
	cells    map[cellIndex]*cell
	averaged bool
}

// NewGrid returns an empty grid.
func NewGrid() *Grid {
	return &Grid{cells: make(map[cellIndex]*cell)}
}

// onGrid reports whether a position can be placed in a cell. Longitudes may
// run 0 to 360 or -180 to 180.
func onGrid(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 360
}

func index(lat, lon float64, month, day int) (cellIndex, error) {
	if !onGrid(lat, lon) {
		return cellIndex{}, fmt.Errorf("position %v, %v off the grid", lat, lon)
	}
	if lon > 180 {
		lon -= 360
	}
	p, err := calendar.WhichPentad(month, day)
	if err != nil {
		return cellIndex{}, err
	}
	return cellIndex{
		x: climatology.MDSLonToXIndex(lon, 1),
		y: climatology.MDSLatToYIndex(lat, 1),
		p: p - 1,
	}, nil
}

// Add puts one anomaly into its cell. A NaN anomaly is ignored.
func (g *Grid) Add(lat, lon float64, month, day int, anomaly float64) error {
	i, err := index(lat, lon, month, day)
	if err != nil {
		return err
	}
	if math.IsNaN(anomaly) {
		return nil
	}
	c, ok := g.cells[i]
	if !ok {
		c = &cell{}
		g.cells[i] = c
	}
	c.sum += anomaly
	c.nobs++
	g.averaged = false
	return nil
}

// Average turns each cell's running sum into its mean anomaly.
func (g *Grid) Average() {
	for _, c := range g.cells {
		c.mean = c.sum / float64(c.nobs)
	}
	g.averaged = true
}

// Len is the number of populated cells.
func (g *Grid) Len() int { return len(g.cells) }

// Neighbours returns the mean anomaly and observation count of every
// populated cell within r of (x, y, p), excluding that cell itself. The
// longitude half-width grows with 1/cos(latitude) and all three axes wrap.
func (g *Grid) Neighbours(r Radius, x, y, p int) (means []float64, nobs []int) {
	latitude := 89.5 - float64(y)
	fullX := int(float64(r.Lon) / math.Cos(latitude*radcon))

	for dx := -fullX; dx <= fullX; dx++ {
		for dy := -r.Lat; dy <= r.Lat; dy++ {
			for dp := -r.Pentad; dp <= r.Pentad; dp++ {
				if dx == 0 && dy == 0 && dp == 0 {
					continue
				}
				i := cellIndex{
					x: wrap(x+dx, NLon),
					y: wrap(y+dy, NLat),
					p: wrap(p+dp, NPentad),
				}
				if c, ok := g.cells[i]; ok {
					means = append(means, c.mean)
					nobs = append(nobs, c.nobs)
				}
			}
		}
	}
	return means, nobs
}

func wrap(i, n int) int {
	i %= n
	if i < 0 {
		i += n
	}
	return i
}

// cellCentre returns the latitude, longitude and pentad start date of a cell.
func cellCentre(i cellIndex) (lat, lon float64, month, day int) {
	month, day, _ = calendar.PentadToMonthDay(i.p + 1)
	return 89.5 - float64(i.y), -179.5 + float64(i.x), month, day
}

// BuddyMean returns the buddy mean of the cell holding lat/lon on month/day.
func (g *Grid) BuddyMean(lat, lon float64, month, day int) (float64, error) {
	c, err := g.lookup(lat, lon, month, day)
	if err != nil {
		return 0, err
	}
	return c.bmean, nil
}

// BuddyStdev returns the buddy spread of the cell holding lat/lon on
// month/day.
func (g *Grid) BuddyStdev(lat, lon float64, month, day int) (float64, error) {
	c, err := g.lookup(lat, lon, month, day)
	if err != nil {
		return 0, err
	}
	return c.bsd, nil
}

func (g *Grid) lookup(lat, lon float64, month, day int) (*cell, error) {
	i, err := index(lat, lon, month, day)
	if err != nil {
		return nil, err
	}
	c, ok := g.cells[i]
	if !ok {
		return &cell{}, nil
	}
	return c, nil
}

func sum(ns []int) int {
	var s int
	for _, n := range ns {
		s += n
	}
	return s
}
