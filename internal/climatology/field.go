package climatology

import (
	"fmt"
	"math"

	"github.com/couchcryptid/marine-qc/internal/calendar"
)

// ErrInvalidDate is returned by lookups for a month/day that is not in the
// calendar.
var ErrInvalidDate = calendar.ErrInvalidDate

// Field is an immutable time x lat x lon climatology. Missing cells are NaN.
type Field struct {
	NTime int
	NLat  int
	NLon  int
	Res   float64

	data []float64
}

// NewField wraps data laid out as [time][lat][lon], north first and west
// first. The time axis must hold 1 (static), 73 (pentad) or 365 (daily)
// slices.
func NewField(ntime, nlat, nlon int, data []float64) (*Field, error) {
	switch ntime {
	case 1, calendar.PentadsPerYear, 365:
	default:
		return nil, fmt.Errorf("time axis of %d slices, want 1, 73 or 365", ntime)
	}
	if nlat <= 0 || nlon <= 0 {
		return nil, fmt.Errorf("empty grid %dx%d", nlat, nlon)
	}
	if len(data) != ntime*nlat*nlon {
		return nil, fmt.Errorf("%d values for a %dx%dx%d grid", len(data), ntime, nlat, nlon)
	}
	return &Field{NTime: ntime, NLat: nlat, NLon: nlon, Res: 180 / float64(nlat), data: data}, nil
}

// Missing returns a static 1x1 field in which every cell is missing.
func Missing() *Field {
	return &Field{NTime: 1, NLat: 180, NLon: 360, Res: 1}
}

// IsMissing reports whether the field carries no data at all.
func (f *Field) IsMissing() bool { return f.data == nil }

// TimeIndex returns the slice used for month/day: always 0 for a static
// field, the pentad for 73 slices and the day of year for 365.
func (f *Field) TimeIndex(month, day int) (int, error) {
	if !calendar.ValidMonthDay(month, day) {
		return 0, fmt.Errorf("%w: %02d-%02d", ErrInvalidDate, month, day)
	}
	switch f.NTime {
	case calendar.PentadsPerYear:
		p, err := calendar.WhichPentad(month, day)
		return p - 1, err
	case 365:
		d, err := calendar.DayInYear(month, day)
		return d - 1, err
	default:
		return 0, nil
	}
}

// At returns the cell at (t, y, x). ok is false for a missing cell or an
// index off the grid.
func (f *Field) At(t, y, x int) (float64, bool) {
	if f.data == nil || t < 0 || t >= f.NTime || y < 0 || y >= f.NLat || x < 0 || x >= f.NLon {
		return 0, false
	}
	v := f.data[(t*f.NLat+y)*f.NLon+x]
	if math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// Value looks up lat/lon on month/day, choosing cells the general way.
// ok is false when the cell is missing or the coordinates are not numbers.
func (f *Field) Value(lat, lon float64, month, day int) (float64, bool, error) {
	t, err := f.TimeIndex(month, day)
	if err != nil {
		return 0, false, err
	}
	if math.IsNaN(lat) || math.IsNaN(lon) || lat < -90 || lat > 90 {
		return 0, false, nil
	}
	v, ok := f.At(t, LatToYIndex(lat, f.Res), LonToXIndex(lon, f.Res))
	return v, ok, nil
}

// ValueMDS looks up lat/lon on month/day, choosing boundary cells the way the
// MDS grids did.
func (f *Field) ValueMDS(lat, lon float64, month, day int) (float64, bool, error) {
	t, err := f.TimeIndex(month, day)
	if err != nil {
		return 0, false, err
	}
	if math.IsNaN(lat) || math.IsNaN(lon) || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return 0, false, nil
	}
	v, ok := f.At(t, MDSLatToYIndex(lat, f.Res), MDSLonToXIndex(lon, f.Res))
	return v, ok, nil
}
