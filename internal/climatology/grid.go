package climatology

import "math"

// Grids run north to south and west to east: y index 0 is the band just
// below 90N and x index 0 the band just east of 180W.

// LatToYIndex returns the general-style y index of lat on a grid of
// resolution res. Points on a cell boundary go to the cell south of it.
func LatToYIndex(lat, res float64) int {
	n := int(180 / res)
	y := int((90 - lat) / res)
	if y >= n {
		y = n - 1
	}
	if y < 0 {
		y = 0
	}
	return y
}

// LonToXIndex returns the general-style x index of lon, wrapping longitudes
// outside [-180, 180). Points on a cell boundary go to the cell east of it.
func LonToXIndex(lon, res float64) int {
	n := int(360 / res)
	x := int(math.Floor((lon + 180) / res))
	x %= n
	if x < 0 {
		x += n
	}
	return x
}

// MDSLatToYIndex returns the y index as the MDS2/3 1x1 grids assigned it. In
// the northern hemisphere boundary latitudes go north, except 90 which goes
// south; in the southern hemisphere they go south, except -90 which goes
// north. The equator goes south.
func MDSLatToYIndex(lat, res float64) int {
	local := lat
	switch local {
	case -90:
		local += 0.001
	case 90:
		local -= 0.001
	}
	if lat > 0 {
		return int(90/res - 1 - float64(int(local/res)))
	}
	return int(90/res - float64(int(local/res)))
}

// MDSLonToXIndex returns the x index as the MDS2/3 1x1 grids assigned it.
// West of Greenwich boundary longitudes go west, except -180 which goes
// east; east of Greenwich they go east, except 180 which goes west. The
// prime meridian goes west.
func MDSLonToXIndex(lon, res float64) int {
	local := lon
	switch local {
	case -180:
		local += 0.001
	case 180:
		local -= 0.001
	}
	if local > 0 {
		return int(float64(int(local/res)) + 180/res)
	}
	return int(float64(int(local/res)) + 180/res - 1)
}

// YIndexToLat returns the latitude of the centre of row y.
func YIndexToLat(y int, res float64) float64 {
	return 90 - float64(y)*res - res/2
}

// XIndexToLon returns the longitude of the centre of column x.
func XIndexToLon(x int, res float64) float64 {
	return float64(x)*res - 180 + res/2
}
