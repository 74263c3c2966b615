// Package transform converts inertial-frame trajectory positions to geodetic
// coordinates.
//
// The ephemeris feed delivers positions in the J2000 inertial frame. The
// inertial-to-Earth-fixed rotation here uses GMST only, ignoring precession,
// nutation, and polar motion, which keeps the subsatellite-point error well
// under the resolution a reverse geocoder can distinguish.
//
// Reference: Vallado, "Fundamentals of Astrodynamics and Applications", Ch. 3.
package transform

import (
	"errors"
	"math"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
)

// ErrConversion indicates a malformed (non-finite) position input.
var ErrConversion = errors.New("position is not a finite vector")

// RotateFunc maps an inertial Cartesian position (km) and a GMST angle
// (radians) to an Earth-fixed Cartesian position (km). It is a field on
// Converter so a different geodesy library can be substituted without
// touching callers.
type RotateFunc func(x, y, z, gmst float64) (float64, float64, float64)

// Converter turns inertial positions tagged with an epoch into geodetic
// latitude/longitude/altitude.
type Converter struct {
	// TruncateSeconds drops the sub-second part of the epoch before
	// computing the rotation angle. The original tracker did this; at
	// Earth's equatorial rotation speed each discarded fractional second
	// shifts the ground point by up to ~0.46 km. Off by default.
	TruncateSeconds bool

	// Rotate performs the inertial-to-Earth-fixed rotation.
	Rotate RotateFunc
}

// NewConverter returns a Converter backed by the go-satellite frame rotation.
func NewConverter(truncateSeconds bool) *Converter {
	return &Converter{
		TruncateSeconds: truncateSeconds,
		Rotate:          rotateECIToECEF,
	}
}

func rotateECIToECEF(x, y, z, gmst float64) (float64, float64, float64) {
	ecf := satellite.ECIToECEF(satellite.Vector3{X: x, Y: y, Z: z}, gmst)
	return ecf.X, ecf.Y, ecf.Z
}

// ToGeodetic converts an inertial position (km) sampled at epoch to geodetic
// coordinates. The epoch matters because Earth's orientation at that instant
// determines the rotation angle.
func (c *Converter) ToGeodetic(x, y, z float64, epoch time.Time) (GeodeticPoint, error) {
	if !finite(x) || !finite(y) || !finite(z) {
		return GeodeticPoint{}, ErrConversion
	}

	t := epoch.UTC()
	if c.TruncateSeconds {
		t = t.Truncate(time.Second)
	}

	ex, ey, ez := c.Rotate(x, y, z, GMST(t))
	return ECEFToGeodetic(ex, ey, ez), nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
