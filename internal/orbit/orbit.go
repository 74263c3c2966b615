// Package orbit derives scalar quantities from trajectory state vectors:
// instantaneous speed and nearest-in-time record selection.
package orbit

import (
	"errors"
	"math"
	"time"

	"github.com/iranarang/iss-data-analysis/internal/oem"
)

// ErrNoData indicates the trajectory document holds no state vectors.
var ErrNoData = errors.New("no state vectors loaded")

// Speed returns the Euclidean magnitude of the state vector's velocity in km/s.
func Speed(sv oem.StateVector) float64 {
	return math.Sqrt(sv.XDot*sv.XDot + sv.YDot*sv.YDot + sv.ZDot*sv.ZDot)
}

// Nearest returns the state vector whose epoch minimizes the absolute time
// difference to t, along with its speed.
//
// The scan uses a strict less-than comparison, so when two records are
// exactly equidistant from t the earlier one wins. The feed delivers a few
// hundred records, so a linear scan is fine.
func Nearest(doc *oem.Document, t time.Time) (oem.StateVector, float64, error) {
	if doc == nil || len(doc.StateVectors) == 0 {
		return oem.StateVector{}, 0, ErrNoData
	}

	best := doc.StateVectors[0]
	minDiff := math.Abs(t.Sub(best.EpochTime).Seconds())

	for _, sv := range doc.StateVectors[1:] {
		diff := math.Abs(t.Sub(sv.EpochTime).Seconds())
		if diff < minDiff {
			minDiff = diff
			best = sv
		}
	}

	return best, Speed(best), nil
}
