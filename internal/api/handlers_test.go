package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/iranarang/iss-data-analysis/internal/geocode"
	"github.com/iranarang/iss-data-analysis/internal/oem"
	"github.com/iranarang/iss-data-analysis/internal/transform"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

const feedXML = `<?xml version="1.0"?>
<ndm><oem id="CCSDS_OEM_VERS" version="2.0">
<header><ORIGINATOR>NASA/JSC</ORIGINATOR></header>
<body><segment>
<metadata><OBJECT_NAME>ISS</OBJECT_NAME></metadata>
<data>
<COMMENT>Units are in kg and m^2</COMMENT>
<stateVector>
<EPOCH>2024-047T12:00:00.000Z</EPOCH>
<X units="km">6778.137</X><Y units="km">0.0</Y><Z units="km">0.0</Z>
<X_DOT units="km/s">3.0</X_DOT><Y_DOT units="km/s">4.0</Y_DOT><Z_DOT units="km/s">5.0</Z_DOT>
</stateVector>
<stateVector>
<EPOCH>2024-052T00:00:00.000Z</EPOCH>
<X units="km">0.0</X><Y units="km">6778.137</Y><Z units="km">0.0</Z>
<X_DOT units="km/s">6.27</X_DOT><Y_DOT units="km/s">0.67</Y_DOT><Z_DOT units="km/s">-2.74</Z_DOT>
</stateVector>
<stateVector>
<EPOCH>2024-058T22:04:00.000Z</EPOCH>
<X units="km">-6778.137</X><Y units="km">0.0</Y><Z units="km">0.0</Z>
<X_DOT units="km/s">-0.91</X_DOT><Y_DOT units="km/s">4.07</Y_DOT><Z_DOT units="km/s">5.56</Z_DOT>
</stateVector>
</data>
</segment></body></oem></ndm>`

func fixtureDoc(t *testing.T) *oem.Document {
	t.Helper()
	doc, err := oem.Parse([]byte(feedXML))
	if err != nil {
		t.Fatalf("parsing fixture: %v", err)
	}
	doc.Source = "fixture"
	doc.FetchedAt = time.Now()
	return doc
}

// stubGeocoder answers every reverse lookup with the given display name, or
// the Nominatim no-match payload when name is empty.
func stubGeocoder(t *testing.T, name string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if name == "" {
			w.Write([]byte(`{"error":"Unable to geocode"}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"display_name": name})
	}))
	t.Cleanup(server.Close)
	return server
}

func stubFeed(t *testing.T, status int) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		w.Write([]byte(feedXML))
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestHandlers(t *testing.T, doc *oem.Document, feedURL, geoURL string) *Handlers {
	t.Helper()
	store := oem.NewStore()
	if doc != nil {
		store.Set(doc)
	}
	return &Handlers{
		store:     store,
		fetcher:   oem.NewFetcher(feedURL, 2*time.Second, 0, testLogger()),
		converter: transform.NewConverter(false),
		geocoder:  geocode.NewClient(geoURL, "isstrack-test", 2*time.Second, 0, testLogger()),
		logger:    testLogger(),
		now: func() time.Time {
			return time.Date(2024, 2, 19, 0, 0, 0, 0, time.UTC)
		},
	}
}

// newTestMux registers the data routes so PathValue works.
func newTestMux(h *Handlers) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /epochs", h.Epochs)
	mux.HandleFunc("GET /epochs/{epoch}", h.Epoch)
	mux.HandleFunc("GET /epochs/{epoch}/speed", h.EpochSpeed)
	mux.HandleFunc("GET /epochs/{epoch}/location", h.EpochLocation)
	mux.HandleFunc("GET /comment", h.Comment)
	mux.HandleFunc("GET /header", h.Header)
	mux.HandleFunc("GET /metadata", h.Metadata)
	mux.HandleFunc("GET /now", h.Now)
	return mux
}

func get(t *testing.T, mux *http.ServeMux, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("GET", path, nil))
	return w
}

func TestEpochLookup(t *testing.T) {
	feed := stubFeed(t, http.StatusOK)
	geo := stubGeocoder(t, "somewhere")
	mux := newTestMux(newTestHandlers(t, fixtureDoc(t), feed.URL, geo.URL))

	// Every stored epoch must round-trip by exact string equality.
	for _, epoch := range []string{
		"2024-047T12:00:00.000Z",
		"2024-052T00:00:00.000Z",
		"2024-058T22:04:00.000Z",
	} {
		w := get(t, mux, "/epochs/"+epoch)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		var sv map[string]any
		if err := json.NewDecoder(w.Body).Decode(&sv); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
		if sv["EPOCH"] != epoch {
			t.Errorf("EPOCH = %v, want %q", sv["EPOCH"], epoch)
		}
	}
}

func TestEpochNotFound(t *testing.T) {
	feed := stubFeed(t, http.StatusOK)
	geo := stubGeocoder(t, "somewhere")
	mux := newTestMux(newTestHandlers(t, fixtureDoc(t), feed.URL, geo.URL))

	for _, path := range []string{
		"/epochs/not-a-real-epoch",
		"/epochs/not-a-real-epoch/speed",
	} {
		w := get(t, mux, path)
		if w.Code != http.StatusOK {
			t.Errorf("%s: status = %d, want 200 with literal body", path, w.Code)
		}
		if got := w.Body.String(); got != notFoundLiteral {
			t.Errorf("%s: body = %q, want %q", path, got, notFoundLiteral)
		}
	}
}

func TestEpochSpeed(t *testing.T) {
	feed := stubFeed(t, http.StatusOK)
	geo := stubGeocoder(t, "somewhere")
	mux := newTestMux(newTestHandlers(t, fixtureDoc(t), feed.URL, geo.URL))

	w := get(t, mux, "/epochs/2024-047T12:00:00.000Z/speed")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	got, err := strconv.ParseFloat(strings.TrimSpace(w.Body.String()), 64)
	if err != nil {
		t.Fatalf("body %q is not a float: %v", w.Body.String(), err)
	}
	// Velocity triple (3,4,5).
	if want := math.Sqrt(50); math.Abs(got-want) > 1e-9 {
		t.Errorf("speed = %v, want %v", got, want)
	}
}

func TestEpochsFullDocument(t *testing.T) {
	feed := stubFeed(t, http.StatusOK)
	geo := stubGeocoder(t, "somewhere")
	mux := newTestMux(newTestHandlers(t, nil, feed.URL, geo.URL))

	w := get(t, mux, "/epochs")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var doc struct {
		Header       map[string]string `json:"header"`
		StateVectors []map[string]any  `json:"stateVectors"`
	}
	if err := json.NewDecoder(w.Body).Decode(&doc); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(doc.StateVectors) != 3 {
		t.Errorf("state vector count = %d, want 3", len(doc.StateVectors))
	}
	if doc.Header["ORIGINATOR"] != "NASA/JSC" {
		t.Errorf("header = %v", doc.Header)
	}
}

func TestEpochsSlice(t *testing.T) {
	feed := stubFeed(t, http.StatusOK)
	geo := stubGeocoder(t, "somewhere")
	mux := newTestMux(newTestHandlers(t, nil, feed.URL, geo.URL))

	tests := []struct {
		name       string
		query      string
		wantCount  int
		wantFirst  string
		wantBody   string // literal body when not a JSON slice
	}{
		{name: "limit only", query: "?limit=2", wantCount: 2, wantFirst: "2024-047T12:00:00.000Z"},
		{name: "offset only", query: "?offset=2", wantCount: 1, wantFirst: "2024-058T22:04:00.000Z"},
		{name: "limit and offset", query: "?limit=1&offset=1", wantCount: 1, wantFirst: "2024-052T00:00:00.000Z"},
		{name: "zero limit", query: "?limit=0", wantCount: 0},
		{name: "full range", query: "?limit=3&offset=0", wantCount: 3, wantFirst: "2024-047T12:00:00.000Z"},
		{name: "non-integer limit", query: "?limit=abc", wantBody: invalidIntLiteral},
		{name: "non-integer offset", query: "?offset=1.5", wantBody: invalidIntLiteral},
		{name: "range exceeded", query: "?limit=3&offset=1", wantBody: invalidRangeLiteral},
		{name: "offset past the end", query: "?offset=4", wantBody: invalidRangeLiteral},
		{name: "negative offset", query: "?offset=-1", wantBody: invalidRangeLiteral},
		{name: "negative limit", query: "?limit=-2", wantBody: invalidRangeLiteral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(t, mux, "/epochs"+tt.query)
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", w.Code)
			}
			if tt.wantBody != "" {
				if got := w.Body.String(); got != tt.wantBody {
					t.Errorf("body = %q, want %q", got, tt.wantBody)
				}
				return
			}
			var svs []map[string]any
			if err := json.NewDecoder(w.Body).Decode(&svs); err != nil {
				t.Fatalf("decoding response: %v", err)
			}
			if len(svs) != tt.wantCount {
				t.Fatalf("record count = %d, want %d", len(svs), tt.wantCount)
			}
			if tt.wantFirst != "" && svs[0]["EPOCH"] != tt.wantFirst {
				t.Errorf("first EPOCH = %v, want %q", svs[0]["EPOCH"], tt.wantFirst)
			}
		})
	}
}

// TestEpochsFallback verifies the per-request fetch falls back to the shared
// snapshot when the upstream is down, and fails with 502 when there is no
// snapshot either.
func TestEpochsFallback(t *testing.T) {
	deadFeed := stubFeed(t, http.StatusInternalServerError)
	geo := stubGeocoder(t, "somewhere")

	withSnapshot := newTestMux(newTestHandlers(t, fixtureDoc(t), deadFeed.URL, geo.URL))
	w := get(t, withSnapshot, "/epochs?limit=1")
	if w.Code != http.StatusOK {
		t.Errorf("with snapshot: status = %d, want 200", w.Code)
	}

	withoutSnapshot := newTestMux(newTestHandlers(t, nil, deadFeed.URL, geo.URL))
	w = get(t, withoutSnapshot, "/epochs")
	if w.Code != http.StatusBadGateway {
		t.Errorf("without snapshot: status = %d, want 502", w.Code)
	}
}

func TestEpochLocation(t *testing.T) {
	feed := stubFeed(t, http.StatusOK)
	geo := stubGeocoder(t, "Houston, Harris County, Texas, United States")
	mux := newTestMux(newTestHandlers(t, fixtureDoc(t), feed.URL, geo.URL))

	w := get(t, mux, "/epochs/2024-047T12:00:00.000Z/location")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var loc map[string]string
	if err := json.NewDecoder(w.Body).Decode(&loc); err != nil {
		t.Fatalf("decoding response: %v", err)
	}

	lat, err := strconv.ParseFloat(loc["latitude"], 64)
	if err != nil {
		t.Fatalf("latitude %q is not numeric: %v", loc["latitude"], err)
	}
	lon, err := strconv.ParseFloat(loc["longitude"], 64)
	if err != nil {
		t.Fatalf("longitude %q is not numeric: %v", loc["longitude"], err)
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		t.Errorf("coordinates out of range: lat=%v lon=%v", lat, lon)
	}
	if !strings.HasSuffix(loc["altitude"], " km") {
		t.Errorf("altitude = %q, want a ' km' suffix", loc["altitude"])
	}
	if loc["geolocation"] != "Houston, Harris County, Texas, United States" {
		t.Errorf("geolocation = %q", loc["geolocation"])
	}
}

func TestEpochLocationOcean(t *testing.T) {
	feed := stubFeed(t, http.StatusOK)
	geo := stubGeocoder(t, "") // no locality
	mux := newTestMux(newTestHandlers(t, fixtureDoc(t), feed.URL, geo.URL))

	w := get(t, mux, "/epochs/2024-047T12:00:00.000Z/location")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var loc map[string]string
	if err := json.NewDecoder(w.Body).Decode(&loc); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if loc["geolocation"] != oceanSentinel {
		t.Errorf("geolocation = %q, want %q", loc["geolocation"], oceanSentinel)
	}
}

func TestEpochLocationNotFound(t *testing.T) {
	feed := stubFeed(t, http.StatusOK)
	geo := stubGeocoder(t, "somewhere")
	mux := newTestMux(newTestHandlers(t, fixtureDoc(t), feed.URL, geo.URL))

	w := get(t, mux, "/epochs/not-a-real-epoch/location")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if got := w.Body.String(); got != locationErrLiteral {
		t.Errorf("body = %q, want %q", got, locationErrLiteral)
	}
}

func TestEpochLocationGeocoderDown(t *testing.T) {
	feed := stubFeed(t, http.StatusOK)
	geo := stubGeocoder(t, "somewhere")
	geo.Close() // transport failure on every lookup
	mux := newTestMux(newTestHandlers(t, fixtureDoc(t), feed.URL, geo.URL))

	w := get(t, mux, "/epochs/2024-047T12:00:00.000Z/location")
	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", w.Code)
	}
}

func TestNow(t *testing.T) {
	feed := stubFeed(t, http.StatusOK)
	geo := stubGeocoder(t, "Quito, Ecuador")
	h := newTestHandlers(t, fixtureDoc(t), feed.URL, geo.URL)
	mux := newTestMux(h)

	w := get(t, mux, "/now")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp map[string]any
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}

	// The fixed clock (2024-02-19) is 60h from the day-47 record and 48h
	// from the day-52 record, so day 52 must win.
	speed, ok := resp["instantaneous speed"].(float64)
	if !ok {
		t.Fatalf("instantaneous speed missing or not a number: %v", resp)
	}
	want := math.Sqrt(6.27*6.27 + 0.67*0.67 + 2.74*2.74)
	if math.Abs(speed-want) > 1e-9 {
		t.Errorf("speed = %v, want %v (the day-52 record)", speed, want)
	}
	if resp["geolocation"] != "Quito, Ecuador" {
		t.Errorf("geolocation = %v", resp["geolocation"])
	}
	if alt, _ := resp["altitude"].(string); !strings.HasSuffix(alt, " km") {
		t.Errorf("altitude = %v, want a ' km' suffix", resp["altitude"])
	}
}

func TestNowNoData(t *testing.T) {
	feed := stubFeed(t, http.StatusOK)
	geo := stubGeocoder(t, "somewhere")
	mux := newTestMux(newTestHandlers(t, nil, feed.URL, geo.URL))

	w := get(t, mux, "/now")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestCommentHeaderMetadata(t *testing.T) {
	feed := stubFeed(t, http.StatusOK)
	geo := stubGeocoder(t, "somewhere")
	mux := newTestMux(newTestHandlers(t, fixtureDoc(t), feed.URL, geo.URL))

	w := get(t, mux, "/comment")
	var comments []string
	if err := json.NewDecoder(w.Body).Decode(&comments); err != nil {
		t.Fatalf("decoding /comment: %v", err)
	}
	if len(comments) != 1 || comments[0] != "Units are in kg and m^2" {
		t.Errorf("comments = %v", comments)
	}

	w = get(t, mux, "/header")
	var header map[string]string
	if err := json.NewDecoder(w.Body).Decode(&header); err != nil {
		t.Fatalf("decoding /header: %v", err)
	}
	if header["ORIGINATOR"] != "NASA/JSC" {
		t.Errorf("header = %v", header)
	}

	w = get(t, mux, "/metadata")
	var meta map[string]string
	if err := json.NewDecoder(w.Body).Decode(&meta); err != nil {
		t.Fatalf("decoding /metadata: %v", err)
	}
	if meta["OBJECT_NAME"] != "ISS" {
		t.Errorf("metadata = %v", meta)
	}
}

func TestDataRoutesRequireDocument(t *testing.T) {
	feed := stubFeed(t, http.StatusOK)
	geo := stubGeocoder(t, "somewhere")
	mux := newTestMux(newTestHandlers(t, nil, feed.URL, geo.URL))

	for _, path := range []string{
		"/comment",
		"/header",
		"/metadata",
		"/epochs/2024-047T12:00:00.000Z",
		"/epochs/2024-047T12:00:00.000Z/speed",
		"/epochs/2024-047T12:00:00.000Z/location",
	} {
		w := get(t, mux, path)
		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("%s: status = %d, want 503 with no document", path, w.Code)
		}
	}
}
