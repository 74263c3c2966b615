package oem

import "time"

// StateVector is one sample of the ISS trajectory: position and velocity in
// the J2000 inertial frame at a specific instant.
type StateVector struct {
	// Epoch is the raw feed string (e.g. "2024-047T12:00:00.000Z"), kept
	// verbatim because lookups match on exact string equality.
	Epoch     string    `json:"EPOCH"`
	EpochTime time.Time `json:"-"`

	// Position in kilometers.
	X float64 `json:"X"`
	Y float64 `json:"Y"`
	Z float64 `json:"Z"`

	// Velocity in kilometers per second.
	XDot float64 `json:"X_DOT"`
	YDot float64 `json:"Y_DOT"`
	ZDot float64 `json:"Z_DOT"`
}

// Document is the fully parsed ephemeris feed. It is immutable after parsing
// and replaced wholesale on every refresh; never mutated in place.
type Document struct {
	Header       map[string]string `json:"header"`
	Metadata     map[string]string `json:"metadata"`
	Comments     []string          `json:"comments"`
	StateVectors []StateVector     `json:"stateVectors"`

	Source    string    `json:"-"`
	FetchedAt time.Time `json:"-"`
}

// Lookup returns the state vector whose raw epoch string equals epoch exactly.
func (d *Document) Lookup(epoch string) (StateVector, bool) {
	for _, sv := range d.StateVectors {
		if sv.Epoch == epoch {
			return sv, true
		}
	}
	return StateVector{}, false
}

// EpochRange represents the first and last epoch times in a document.
type EpochRange struct {
	Min time.Time
	Max time.Time
}

// Range returns the epoch bounds of the document's state vectors.
// The feed delivers vectors in ascending epoch order, so this is first/last.
func (d *Document) Range() (EpochRange, bool) {
	if len(d.StateVectors) == 0 {
		return EpochRange{}, false
	}
	return EpochRange{
		Min: d.StateVectors[0].EpochTime,
		Max: d.StateVectors[len(d.StateVectors)-1].EpochTime,
	}, true
}
