package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/iranarang/iss-data-analysis/internal/geocode"
	"github.com/iranarang/iss-data-analysis/internal/metrics"
	"github.com/iranarang/iss-data-analysis/internal/oem"
	"github.com/iranarang/iss-data-analysis/internal/orbit"
	"github.com/iranarang/iss-data-analysis/internal/transform"
)

// Response literals carried over from the original tracker. Clients match on
// these exact strings, so they are part of the contract despite the 200
// status they ship with.
const (
	notFoundLiteral     = "<error>Epoch not found</error>"
	invalidIntLiteral   = "Invalid parameter(s), must be an integer."
	invalidRangeLiteral = "Invalid parameter(s), must be in the data set."
	locationErrLiteral  = "error"
	oceanSentinel       = "Located in the ocean"
)

// Handlers implements the public data routes. Each handler is a pure
// composition of the stored document and the orbit/transform/geocode
// helpers; no handler mutates shared state.
type Handlers struct {
	store     *oem.Store
	fetcher   *oem.Fetcher
	converter *transform.Converter
	geocoder  *geocode.Client
	logger    *slog.Logger
	now       func() time.Time
}

// NewHandlers wires the route handlers to their collaborators.
func NewHandlers(store *oem.Store, fetcher *oem.Fetcher, converter *transform.Converter, geocoder *geocode.Client, logger *slog.Logger) *Handlers {
	return &Handlers{
		store:     store,
		fetcher:   fetcher,
		converter: converter,
		geocoder:  geocoder,
		logger:    logger,
		now:       time.Now,
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func writeText(w http.ResponseWriter, s string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(s))
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// snapshot returns the shared startup/refresh document, or nil.
func (h *Handlers) snapshot() *oem.Document {
	return h.store.Get()
}

// freshDocument fetches a request-scoped copy of the feed. On failure it
// falls back to the shared snapshot so a flaky upstream does not take the
// route down; the fallback never replaces the shared copy and the fresh copy
// is discarded with the request.
func (h *Handlers) freshDocument(ctx context.Context) *oem.Document {
	doc, err := h.fetcher.FetchDocument(ctx)
	if err != nil {
		h.logger.Warn("per-request feed fetch failed, serving stored snapshot", "error", err)
		return h.snapshot()
	}
	return doc
}

// Epochs serves /epochs: the full freshly fetched document when no
// parameters are given, or an integer-validated slice of its state vectors.
func (h *Handlers) Epochs(w http.ResponseWriter, r *http.Request) {
	doc := h.freshDocument(r.Context())
	if doc == nil {
		writeJSONError(w, http.StatusBadGateway, "upstream feed unavailable")
		return
	}

	q := r.URL.Query()
	hasLimit := q.Has("limit")
	hasOffset := q.Has("offset")

	if !hasLimit && !hasOffset {
		writeJSON(w, doc)
		return
	}

	var limit, offset int
	var err error
	if hasLimit {
		limit, err = strconv.Atoi(q.Get("limit"))
		if err != nil {
			writeText(w, invalidIntLiteral)
			return
		}
	}
	if hasOffset {
		offset, err = strconv.Atoi(q.Get("offset"))
		if err != nil {
			writeText(w, invalidIntLiteral)
			return
		}
	}

	n := len(doc.StateVectors)
	if !hasLimit {
		limit = n - offset
	}

	if offset < 0 || limit < 0 || offset+limit > n {
		writeText(w, invalidRangeLiteral)
		return
	}

	writeJSON(w, doc.StateVectors[offset:offset+limit])
}

// Epoch serves /epochs/{epoch}: the state vector whose raw epoch string
// matches exactly.
func (h *Handlers) Epoch(w http.ResponseWriter, r *http.Request) {
	doc := h.snapshot()
	if doc == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "no trajectory data loaded")
		return
	}

	sv, ok := doc.Lookup(r.PathValue("epoch"))
	if !ok {
		writeText(w, notFoundLiteral)
		return
	}
	writeJSON(w, sv)
}

// EpochSpeed serves /epochs/{epoch}/speed as a plain-text float.
func (h *Handlers) EpochSpeed(w http.ResponseWriter, r *http.Request) {
	doc := h.snapshot()
	if doc == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "no trajectory data loaded")
		return
	}

	sv, ok := doc.Lookup(r.PathValue("epoch"))
	if !ok {
		writeText(w, notFoundLiteral)
		return
	}
	writeText(w, formatFloat(orbit.Speed(sv)))
}

// EpochLocation serves /epochs/{epoch}/location: geodetic coordinates plus a
// reverse-geocoded place name.
func (h *Handlers) EpochLocation(w http.ResponseWriter, r *http.Request) {
	doc := h.snapshot()
	if doc == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "no trajectory data loaded")
		return
	}

	sv, ok := doc.Lookup(r.PathValue("epoch"))
	if !ok {
		writeText(w, locationErrLiteral)
		return
	}

	pt, place, ok := h.locate(w, r, sv)
	if !ok {
		return
	}

	writeJSON(w, map[string]string{
		"latitude":    formatFloat(pt.LatDeg),
		"longitude":   formatFloat(pt.LonDeg),
		"altitude":    formatFloat(pt.AltKm) + " km",
		"geolocation": place,
	})
}

// Now serves /now: speed and location for the record nearest wall-clock time.
func (h *Handlers) Now(w http.ResponseWriter, r *http.Request) {
	sv, speed, err := orbit.Nearest(h.snapshot(), h.now())
	if err != nil {
		if errors.Is(err, orbit.ErrNoData) {
			writeJSONError(w, http.StatusServiceUnavailable, "no trajectory data loaded")
			return
		}
		writeJSONError(w, http.StatusInternalServerError, "nearest-epoch lookup failed")
		return
	}

	pt, place, ok := h.locate(w, r, sv)
	if !ok {
		return
	}

	writeJSON(w, map[string]any{
		"instantaneous speed": speed,
		"latitude":            formatFloat(pt.LatDeg),
		"longitude":           formatFloat(pt.LonDeg),
		"altitude":            formatFloat(pt.AltKm) + " km",
		"geolocation":         place,
	})
}

// locate converts a state vector to geodetic coordinates and reverse
// geocodes it, writing the error response itself when either step fails.
func (h *Handlers) locate(w http.ResponseWriter, r *http.Request, sv oem.StateVector) (transform.GeodeticPoint, string, bool) {
	pt, err := h.converter.ToGeodetic(sv.X, sv.Y, sv.Z, sv.EpochTime)
	if err != nil {
		h.logger.Error("coordinate conversion failed", "epoch", sv.Epoch, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "coordinate conversion failed")
		return transform.GeodeticPoint{}, "", false
	}

	place, found, err := h.geocoder.Reverse(r.Context(), pt.LatDeg, pt.LonDeg)
	if err != nil {
		metrics.IncGeocode("error")
		h.logger.Error("reverse geocoding failed", "epoch", sv.Epoch, "error", err)
		writeJSONError(w, http.StatusBadGateway, "geocoding service unavailable")
		return transform.GeodeticPoint{}, "", false
	}
	if !found {
		metrics.IncGeocode("no_locality")
		return pt, oceanSentinel, true
	}
	metrics.IncGeocode("found")
	return pt, place, true
}

// Comment serves /comment: the feed's free-text annotations.
func (h *Handlers) Comment(w http.ResponseWriter, r *http.Request) {
	doc := h.snapshot()
	if doc == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "no trajectory data loaded")
		return
	}
	writeJSON(w, doc.Comments)
}

// Header serves /header: the document-level metadata block.
func (h *Handlers) Header(w http.ResponseWriter, r *http.Request) {
	doc := h.snapshot()
	if doc == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "no trajectory data loaded")
		return
	}
	writeJSON(w, doc.Header)
}

// Metadata serves /metadata: the segment metadata block.
func (h *Handlers) Metadata(w http.ResponseWriter, r *http.Request) {
	doc := h.snapshot()
	if doc == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "no trajectory data loaded")
		return
	}
	writeJSON(w, doc.Metadata)
}
