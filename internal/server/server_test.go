package server

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestSecurityHeaders(t *testing.T) {
	handler := securityHeaders(okHandler())

	req := httptest.NewRequest("GET", "/", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	tests := []struct {
		header string
		want   string
	}{
		{"X-Content-Type-Options", "nosniff"},
		{"X-Frame-Options", "DENY"},
		{"Referrer-Policy", "strict-origin-when-cross-origin"},
	}
	for _, tt := range tests {
		got := rr.Header().Get(tt.header)
		if got != tt.want {
			t.Errorf("%s = %q, want %q", tt.header, got, tt.want)
		}
	}

	csp := rr.Header().Get("Content-Security-Policy")
	if !strings.Contains(csp, "default-src 'self'") {
		t.Errorf("CSP = %q, want to contain default-src 'self'", csp)
	}
	if !strings.Contains(csp, "ws:") {
		t.Errorf("CSP = %q, want websocket connect-src", csp)
	}
}

func TestRequestID_Generated(t *testing.T) {
	var seen string
	handler := requestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get("X-Request-ID")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/ui/v1/pages", nil))

	got := rr.Header().Get("X-Request-ID")
	if len(got) != 36 {
		t.Errorf("X-Request-ID = %q, want a uuid", got)
	}
	if seen != got {
		t.Errorf("handler saw %q, response has %q", seen, got)
	}
}

func TestRequestID_Propagated(t *testing.T) {
	handler := requestID(okHandler())

	req := httptest.NewRequest("GET", "/ui/v1/pages", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if got := rr.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Errorf("X-Request-ID = %q, want abc-123", got)
	}
}

func TestLimitBody_UnderLimit(t *testing.T) {
	handler := limitBody(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))

	body := bytes.NewReader(make([]byte, 1024)) // 1KB, well under 1MB limit
	req := httptest.NewRequest("POST", "/ui/v1/remediation", body)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rr.Code)
	}
}

func TestLimitBody_OverLimit(t *testing.T) {
	handler := limitBody(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "body too large", http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	body := bytes.NewReader(make([]byte, 2<<20)) // 2MB, over 1MB limit
	req := httptest.NewRequest("POST", "/ui/v1/remediation", body)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rr.Code)
	}
}

func TestLimitBody_GET_NoLimit(t *testing.T) {
	handler := limitBody(okHandler())

	req := httptest.NewRequest("GET", "/ui/v1/pages", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rr.Code)
	}
}

func TestIsAPIPath(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/ui/v1/pages", true},
		{"/api/health", true},
		{"/ws", true},
		{"/healthz", false},
		{"/", false},
		{"/app.js", false},
	}
	for _, tt := range tests {
		if got := isAPIPath(tt.path); got != tt.want {
			t.Errorf("isAPIPath(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestCorsMiddleware_WithOrigin(t *testing.T) {
	s := &Server{opts: Options{CORSOrigin: "https://example.com"}}
	handler := s.corsMiddleware(okHandler())

	req := httptest.NewRequest("GET", "/ui/v1/pages", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://example.com" {
		t.Errorf("CORS origin = %q, want https://example.com", got)
	}
	if got := rr.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(got, "DELETE") {
		t.Errorf("CORS methods = %q", got)
	}
}

func TestCorsMiddleware_NoOrigin(t *testing.T) {
	s := &Server{}
	handler := s.corsMiddleware(okHandler())

	req := httptest.NewRequest("GET", "/ui/v1/pages", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("CORS origin = %q, want empty (no cors configured)", got)
	}
}

func TestCorsMiddleware_NonAPIPath(t *testing.T) {
	s := &Server{opts: Options{CORSOrigin: "https://example.com"}}
	handler := s.corsMiddleware(okHandler())

	req := httptest.NewRequest("GET", "/healthz", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("CORS origin = %q, want empty for non-API path", got)
	}
}

func TestCorsMiddleware_Preflight(t *testing.T) {
	s := &Server{opts: Options{CORSOrigin: "https://example.com"}}
	handler := s.corsMiddleware(okHandler())

	req := httptest.NewRequest("OPTIONS", "/ui/v1/theme", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", rr.Code)
	}
}

func TestRateLimiter(t *testing.T) {
	s := &Server{}
	handler := s.rateLimiter(okHandler())

	var limited int
	for range 60 {
		req := httptest.NewRequest("GET", "/ui/v1/pages", nil)
		req.RemoteAddr = "10.1.1.1:5000"
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Code == http.StatusTooManyRequests {
			limited++
		}
	}
	if limited == 0 {
		t.Error("expected some requests to be rate limited")
	}

	// Static files are never limited.
	req := httptest.NewRequest("GET", "/index.html", nil)
	req.RemoteAddr = "10.1.1.1:5000"
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("static status = %d, want 200", rr.Code)
	}
}

func TestRateLimiter_ConcurrentClientsAndPrune(t *testing.T) {
	s := &Server{}
	handler := s.rateLimiter(okHandler())

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 10 {
				req := httptest.NewRequest("GET", "/ui/v1/pages", nil)
				req.RemoteAddr = "10.2.2." + string(rune('1'+i%2)) + ":5000"
				handler.ServeHTTP(httptest.NewRecorder(), req)
			}
		}()
	}
	wg.Wait()

	count := func() int {
		n := 0
		s.limiters.Range(func(_, _ any) bool { n++; return true })
		return n
	}
	if got := count(); got != 2 {
		t.Fatalf("limiters = %d, want 2", got)
	}

	s.pruneLimiters(time.Now())
	if got := count(); got != 2 {
		t.Errorf("fresh limiters pruned, %d left", got)
	}
	s.pruneLimiters(time.Now().Add(limiterIdle + time.Minute))
	if got := count(); got != 0 {
		t.Errorf("idle limiters kept, %d left", got)
	}
}

func TestAuthMiddleware_NoToken(t *testing.T) {
	s := &Server{}
	handler := s.authMiddleware(okHandler())

	req := httptest.NewRequest("GET", "/ui/v1/pages", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 (no token = open)", rr.Code)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	s := &Server{opts: Options{APIToken: "test-token"}}
	handler := s.authMiddleware(okHandler())

	req := httptest.NewRequest("GET", "/ui/v1/pages", nil)
	req.Header.Set("Authorization", "Bearer test-token")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rr.Code)
	}
}

func TestAuthMiddleware_InvalidToken(t *testing.T) {
	s := &Server{opts: Options{APIToken: "test-token"}}
	handler := s.authMiddleware(okHandler())

	for _, auth := range []string{"Bearer wrong-token", "test-token", ""} {
		req := httptest.NewRequest("GET", "/api/health", nil)
		if auth != "" {
			req.Header.Set("Authorization", auth)
		}
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusUnauthorized {
			t.Errorf("Authorization %q: status = %d, want 401", auth, rr.Code)
		}
	}
}

func TestAuthMiddleware_WebsocketQueryToken(t *testing.T) {
	s := &Server{opts: Options{APIToken: "test-token"}}
	handler := s.authMiddleware(okHandler())

	req := httptest.NewRequest("GET", "/ws?page=dashboard&token=test-token", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("ws with query token: status = %d, want 200", rr.Code)
	}

	// The query token is only honored on /ws.
	req = httptest.NewRequest("GET", "/ui/v1/pages?token=test-token", nil)
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("pages with query token: status = %d, want 401", rr.Code)
	}
}

func TestAuthMiddleware_NonAPIPath(t *testing.T) {
	s := &Server{opts: Options{APIToken: "test-token"}}
	handler := s.authMiddleware(okHandler())

	// Non-API paths should bypass auth
	req := httptest.NewRequest("GET", "/healthz", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 (non-API bypasses auth)", rr.Code)
	}
}

func TestCheckOrigin(t *testing.T) {
	s := &Server{opts: Options{CORSOrigin: "https://ops.example.com"}}
	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"http://dash.local:8080", true},
		{"https://ops.example.com", true},
		{"https://evil.example.com", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest("GET", "http://dash.local:8080/ws", nil)
		if tt.origin != "" {
			req.Header.Set("Origin", tt.origin)
		}
		if got := s.checkOrigin(req); got != tt.want {
			t.Errorf("checkOrigin(%q) = %v, want %v", tt.origin, got, tt.want)
		}
	}
}
