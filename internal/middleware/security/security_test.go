package security

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
)

func mustDetector(t *testing.T, extra ...string) *Detector {
	t.Helper()
	d, err := NewDetector(extra...)
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}
	return d
}

func TestNewDetectorRejectsBadCIDR(t *testing.T) {
	if _, err := NewDetector("not-a-cidr"); err == nil {
		t.Error("expected error for invalid CIDR")
	}
}

func TestExtractClientIP(t *testing.T) {
	d := mustDetector(t, "203.0.113.0/24")

	tests := []struct {
		name    string
		remote  string
		headers map[string]string
		want    string
	}{
		{"direct public", "8.8.8.8:1234", map[string]string{"X-Forwarded-For": "1.1.1.1"}, "8.8.8.8"},
		{"trusted proxy xff", "10.0.0.2:80", map[string]string{"X-Forwarded-For": "1.1.1.1, 10.0.0.2"}, "1.1.1.1"},
		{"extra trusted proxy", "203.0.113.9:80", map[string]string{"X-Forwarded-For": "9.9.9.9"}, "9.9.9.9"},
		{"trusted proxy real ip", "127.0.0.1:80", map[string]string{"X-Real-IP": "2.2.2.2"}, "2.2.2.2"},
		{"garbage forwarded", "127.0.0.1:80", map[string]string{"X-Forwarded-For": "nope"}, "127.0.0.1"},
		{"no port", "4.4.4.4", nil, "4.4.4.4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := d.ExtractClientIP(r); got != tt.want {
				t.Errorf("ExtractClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestInspect(t *testing.T) {
	d := mustDetector(t)

	tests := []struct {
		name       string
		method     string
		target     string
		agent      string
		suspicious bool
	}{
		{"normal", http.MethodGet, "/api/summary?days=30", "Mozilla/5.0", false},
		{"curl is fine", http.MethodGet, "/healthz", "curl/8.0", false},
		{"traversal", http.MethodGet, "/static/../.env", "", true},
		{"query injection", http.MethodGet, "/api/transactions?category=1+union+select", "", true},
		{"scanner", http.MethodGet, "/", "sqlmap/1.7", true},
		{"trace method", "TRACE", "/", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, tt.target, nil)
			r.Header.Set("User-Agent", tt.agent)
			if got := d.Inspect(r) != ""; got != tt.suspicious {
				t.Errorf("suspicious = %v, want %v (%q)", got, tt.suspicious, d.Inspect(r))
			}
		})
	}
}

func TestDetectorMiddleware(t *testing.T) {
	d := mustDetector(t)
	reached := 0
	h := d.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { reached++ }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/wp-admin", nil))
	if reached != 1 {
		t.Error("suspicious GET should still be served")
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("TRACE", "/", nil))
	if rec.Code != http.StatusMethodNotAllowed || reached != 1 {
		t.Errorf("TRACE: code %d, reached %d", rec.Code, reached)
	}

	m := d.Metrics()
	if m.SuspiciousRequests != 2 || m.BlockedRequests != 1 {
		t.Errorf("metrics = %+v", m)
	}
}

func TestHeaders(t *testing.T) {
	h := Headers(DefaultHeadersConfig())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Header().Get("X-Frame-Options") != "DENY" || rec.Header().Get("Content-Security-Policy") == "" {
		t.Errorf("missing headers: %v", rec.Header())
	}
	if rec.Header().Get("Strict-Transport-Security") != "" {
		t.Error("HSTS set on plain HTTP")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.TLS = &tls.ConnectionState{}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Strict-Transport-Security"); got != "max-age=31536000; includeSubDomains" {
		t.Errorf("HSTS = %q", got)
	}
}

func TestStaticAssets(t *testing.T) {
	h := StaticAssets(3600)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/static/app.css", nil))
	if got := rec.Header().Get("Cache-Control"); got != "public, max-age=3600" {
		t.Errorf("Cache-Control = %q", got)
	}
}
