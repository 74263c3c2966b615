package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestServerRoutes(t *testing.T) {
	feed := stubFeed(t, http.StatusOK)
	geo := stubGeocoder(t, "somewhere")
	h := newTestHandlers(t, fixtureDoc(t), feed.URL, geo.URL)
	srv := NewServer(":0", testLogger(), false, h.store, h)

	tests := []struct {
		path       string
		wantStatus int
	}{
		{"/healthz", http.StatusOK},
		{"/readyz", http.StatusOK},
		{"/metrics", http.StatusOK},
		{"/epochs/2024-047T12:00:00.000Z", http.StatusOK},
		{"/nope", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			srv.HTTPServer().Handler.ServeHTTP(w, httptest.NewRequest("GET", tt.path, nil))
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestRequestIDAssigned(t *testing.T) {
	feed := stubFeed(t, http.StatusOK)
	geo := stubGeocoder(t, "somewhere")
	h := newTestHandlers(t, fixtureDoc(t), feed.URL, geo.URL)
	srv := NewServer(":0", testLogger(), false, h.store, h)

	w := httptest.NewRecorder()
	srv.HTTPServer().Handler.ServeHTTP(w, httptest.NewRequest("GET", "/healthz", nil))
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("no X-Request-ID assigned")
	}

	// A caller-supplied ID is propagated instead of replaced.
	req := httptest.NewRequest("GET", "/healthz", nil)
	req.Header.Set("X-Request-ID", "caller-id")
	w = httptest.NewRecorder()
	srv.HTTPServer().Handler.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-ID"); got != "caller-id" {
		t.Errorf("X-Request-ID = %q, want caller-id", got)
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		trustProxy bool
		want       string
	}{
		{"direct", "10.1.2.3:5555", "", false, "10.1.2.3"},
		{"proxy ignored when untrusted", "10.1.2.3:5555", "203.0.113.9", false, "10.1.2.3"},
		{"proxy honored when trusted", "10.1.2.3:5555", "203.0.113.9", true, "203.0.113.9"},
		{"first forwarded entry wins", "10.1.2.3:5555", "203.0.113.9, 198.51.100.2", true, "203.0.113.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if got := clientIP(r, tt.trustProxy); got != tt.want {
				t.Errorf("clientIP = %q, want %q", got, tt.want)
			}
		})
	}
}
