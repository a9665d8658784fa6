// Package track implements the sequential checks run over one platform's
// reports in time order.
//
// Every check takes the whole track and returns one outcome per report.
// Invalid parameters are an error. A track whose times go backwards, or that
// has a report without a position or time, is Untestable as a whole; Validate
// says why.
package track

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/couchcryptid/marine-qc/internal/domain"
)

// EarthRadius is the mean radius of the Earth in km.
const EarthRadius = 6371.0088

var (
	// ErrUnsorted is returned by Validate for a track whose times go backwards.
	ErrUnsorted = errors.New("track times not in order")
	// ErrIncomplete is returned by Validate for a report without a position
	// or a time.
	ErrIncomplete = errors.New("track report without position or time")
	// ErrInvalidParams wraps every parameter validation failure.
	ErrInvalidParams = errors.New("invalid track check parameters")
)

// Point is one report's position and time.
type Point struct {
	Lat  float64
	Lon  float64
	Time time.Time
}

// Validate returns ErrIncomplete or ErrUnsorted for a track that the
// position checks cannot use. Equal times are allowed.
func Validate(points []Point) error {
	for i, p := range points {
		if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) || p.Time.IsZero() {
			return fmt.Errorf("%w: report %d", ErrIncomplete, i)
		}
		if i > 0 && p.Time.Before(points[i-1].Time) {
			return fmt.Errorf("%w: report %d at %s before %s", ErrUnsorted, i,
				p.Time.Format(time.DateTime), points[i-1].Time.Format(time.DateTime))
		}
	}
	return nil
}

// SphereDistance is the great circle distance in km between two points.
func SphereDistance(lat1, lon1, lat2, lon2 float64) float64 {
	return angularDistance(lat1, lon1, lat2, lon2) * EarthRadius
}

// angularDistance in radians, by the Vincenty formula for a sphere.
func angularDistance(lat1, lon1, lat2, lon2 float64) float64 {
	const rad = math.Pi / 180
	lat1, lon1, lat2, lon2 = lat1*rad, lon1*rad, lat2*rad, lon2*rad

	dl := math.Abs(lon1 - lon2)
	a := math.Cos(lat2) * math.Sin(dl)
	b := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dl)
	top := math.Sqrt(a*a + b*b)
	bottom := math.Sin(lat1)*math.Sin(lat2) + math.Cos(lat1)*math.Cos(lat2)*math.Cos(dl)
	return math.Atan2(top, bottom)
}

// hours returns each report's time in hours since the first report.
func hours(points []Point) []float64 {
	hrs := make([]float64, len(points))
	for i, p := range points {
		hrs[i] = p.Time.Sub(points[0].Time).Hours()
	}
	return hrs
}

func fill(n int, o domain.Outcome) []domain.Outcome {
	out := make([]domain.Outcome, n)
	for i := range out {
		out[i] = o
	}
	return out
}

func outcomes(flags []bool) []domain.Outcome {
	out := make([]domain.Outcome, len(flags))
	for i, f := range flags {
		if f {
			out[i] = domain.Failed
		}
	}
	return out
}

// lastWithin returns the last index j >= i with hrs[j] <= hrs[i]+span.
func lastWithin(hrs []float64, i int, span float64) int {
	j := i
	for j+1 < len(hrs) && hrs[j+1] <= hrs[i]+span {
		j++
	}
	return j
}

func paramError(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidParams}, args...)...)
}
