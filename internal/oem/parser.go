// Package oem loads the NASA public ISS OEM (Orbit Ephemeris Message)
// trajectory feed: fetching the XML document, parsing it into a typed
// Document, holding the current snapshot, and caching raw copies on disk.
package oem

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// epochLayout matches the feed's epoch encoding: four-digit year, zero-padded
// day of year, time with fractional seconds, UTC. The fractional part is
// optional on parse.
const epochLayout = "2006-002T15:04:05.999999999Z"

// ParseEpoch converts a feed epoch string (YYYY-DDDThh:mm:ss.ffffffZ) to a
// UTC time.Time.
func ParseEpoch(s string) (time.Time, error) {
	t, err := time.Parse(epochLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid epoch %q: %w", s, err)
	}
	return t.UTC(), nil
}

// kvElement captures an arbitrary child element as a name/value pair, used
// for the header and metadata blocks whose field sets vary between feeds.
type kvElement struct {
	XMLName xml.Name
	Value   string `xml:",chardata"`
}

// measure is a numeric element carrying a units attribute, e.g.
// <X units="km">-4945.2</X>.
type measure struct {
	Units string `xml:"units,attr"`
	Value string `xml:",chardata"`
}

func (m measure) float() (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(m.Value), 64)
}

type xmlStateVector struct {
	Epoch string  `xml:"EPOCH"`
	X     measure `xml:"X"`
	Y     measure `xml:"Y"`
	Z     measure `xml:"Z"`
	XDot  measure `xml:"X_DOT"`
	YDot  measure `xml:"Y_DOT"`
	ZDot  measure `xml:"Z_DOT"`
}

type xmlBlock struct {
	Entries []kvElement `xml:",any"`
}

// xmlDocument mirrors the NDM/OEM structure:
// ndm > oem > {header, body > segment > {metadata, data}}.
type xmlDocument struct {
	XMLName      xml.Name         `xml:"ndm"`
	Header       xmlBlock         `xml:"oem>header"`
	Metadata     xmlBlock         `xml:"oem>body>segment>metadata"`
	Comments     []string         `xml:"oem>body>segment>data>COMMENT"`
	StateVectors []xmlStateVector `xml:"oem>body>segment>data>stateVector"`
}

// Parse decodes a raw OEM XML document into a typed Document.
// Any malformed epoch or numeric field fails the whole parse: a partially
// usable trajectory is worse than keeping the previous snapshot.
func Parse(data []byte) (*Document, error) {
	var raw xmlDocument
	if err := xml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding OEM XML: %w", err)
	}

	doc := &Document{
		Header:       blockToMap(raw.Header),
		Metadata:     blockToMap(raw.Metadata),
		Comments:     make([]string, 0, len(raw.Comments)),
		StateVectors: make([]StateVector, 0, len(raw.StateVectors)),
	}

	for _, c := range raw.Comments {
		doc.Comments = append(doc.Comments, strings.TrimSpace(c))
	}

	for i, sv := range raw.StateVectors {
		parsed, err := parseStateVector(sv)
		if err != nil {
			return nil, fmt.Errorf("state vector %d: %w", i, err)
		}
		doc.StateVectors = append(doc.StateVectors, parsed)
	}

	return doc, nil
}

func parseStateVector(sv xmlStateVector) (StateVector, error) {
	epoch := strings.TrimSpace(sv.Epoch)
	epochTime, err := ParseEpoch(epoch)
	if err != nil {
		return StateVector{}, err
	}

	out := StateVector{Epoch: epoch, EpochTime: epochTime}

	fields := []struct {
		name string
		m    measure
		dst  *float64
	}{
		{"X", sv.X, &out.X},
		{"Y", sv.Y, &out.Y},
		{"Z", sv.Z, &out.Z},
		{"X_DOT", sv.XDot, &out.XDot},
		{"Y_DOT", sv.YDot, &out.YDot},
		{"Z_DOT", sv.ZDot, &out.ZDot},
	}
	for _, f := range fields {
		v, err := f.m.float()
		if err != nil {
			return StateVector{}, fmt.Errorf("invalid %s value %q: %w", f.name, f.m.Value, err)
		}
		*f.dst = v
	}

	return out, nil
}

func blockToMap(b xmlBlock) map[string]string {
	m := make(map[string]string, len(b.Entries))
	for _, e := range b.Entries {
		m[e.XMLName.Local] = strings.TrimSpace(e.Value)
	}
	return m
}
