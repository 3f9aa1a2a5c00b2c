package server

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/xreach/acp/internal/graph"
	"github.com/xreach/acp/internal/theme"
	"github.com/xreach/acp/internal/ui"
	"github.com/xreach/acp/internal/views"
)

// Options configures the dashboard server.
type Options struct {
	Listen     string
	ReadOnly   bool
	APIToken   string
	CORSOrigin string
	// Backend is the origin relative /api/ calls are proxied to. Nil
	// disables the proxy.
	Backend      *url.URL
	BackendToken string
}

// GraphSyncer mirrors the inventory into a graph database.
type GraphSyncer interface {
	Sync(ctx context.Context, t graph.Topology) error
}

// Server serves the embedded UI, the page snapshot API, the websocket feed
// and the backend proxy.
type Server struct {
	registry *views.Registry
	pages    *views.Pages
	themes   *theme.Provider
	syncer   GraphSyncer
	logger   *slog.Logger
	opts     Options
	srv      *http.Server
	upgrader websocket.Upgrader

	limiters    sync.Map // map[string]*ipLimiter
	stopCleanup chan struct{}
	stopOnce    sync.Once
}

// limiterIdle is how long a client's limiter survives without requests.
const limiterIdle = 10 * time.Minute

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64 // unix nanos
}

func newIPLimiter(now time.Time) *ipLimiter {
	il := &ipLimiter{limiter: rate.NewLimiter(20, 40)}
	il.touch(now)
	return il
}

func (il *ipLimiter) touch(now time.Time) { il.lastSeen.Store(now.UnixNano()) }

func (il *ipLimiter) idle(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, il.lastSeen.Load()))
}

// New creates a Server. syncer may be nil.
func New(registry *views.Registry, pages *views.Pages, themes *theme.Provider, syncer GraphSyncer, logger *slog.Logger, opts Options) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		registry:    registry,
		pages:       pages,
		themes:      themes,
		syncer:      syncer,
		logger:      logger,
		opts:        opts,
		stopCleanup: make(chan struct{}),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// isAPIPath reports whether a path is subject to auth, CORS and rate
// limiting. The static UI and /healthz are not.
func isAPIPath(p string) bool {
	return strings.HasPrefix(p, "/ui/") || strings.HasPrefix(p, "/api/") || p == "/ws"
}

// requestID propagates or assigns an X-Request-ID.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
			r.Header.Set("X-Request-ID", id)
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

// securityHeaders adds standard security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Content-Security-Policy",
			"default-src 'self'; connect-src 'self' ws: wss:; style-src 'self' 'unsafe-inline'")
		next.ServeHTTP(w, r)
	})
}

// limitBody caps request body size to 1 MB on mutating methods.
func limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	ip, _, _ := net.SplitHostPort(r.RemoteAddr)
	if ip == "" {
		ip = r.RemoteAddr
	}
	return ip
}

// rateLimiter limits API requests to 20/sec burst 40 per client IP. The
// dashboard polls several pages at once, hence the higher rate.
func (s *Server) rateLimiter(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isAPIPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		now := time.Now()
		val, _ := s.limiters.LoadOrStore(clientIP(r), newIPLimiter(now))
		il := val.(*ipLimiter)
		il.touch(now)

		if !il.limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// cleanupLimiters periodically drops idle limiters.
func (s *Server) cleanupLimiters() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCleanup:
			return
		case now := <-ticker.C:
			s.pruneLimiters(now)
		}
	}
}

func (s *Server) pruneLimiters(now time.Time) {
	s.limiters.Range(func(key, value any) bool {
		if value.(*ipLimiter).idle(now) > limiterIdle {
			s.limiters.Delete(key)
		}
		return true
	})
}

// corsMiddleware adds CORS headers when a cors_origin is configured.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.opts.CORSOrigin != "" && isAPIPath(r.URL.Path) {
			w.Header().Set("Access-Control-Allow-Origin", s.opts.CORSOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")
			w.Header().Set("Access-Control-Max-Age", "86400")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// authMiddleware checks the bearer token on API paths when an API token
// is configured. Browsers cannot set headers on websocket upgrades, so
// /ws also accepts ?token=.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.opts.APIToken != "" && isAPIPath(r.URL.Path) {
			auth := r.Header.Get("Authorization")
			token := strings.TrimPrefix(auth, "Bearer ")
			if token == auth {
				token = ""
			}
			if token == "" && r.URL.Path == "/ws" {
				token = r.URL.Query().Get("token")
			}
			if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(s.opts.APIToken)) != 1 {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if s.opts.CORSOrigin != "" && origin == s.opts.CORSOrigin {
		return true
	}
	u, err := url.Parse(origin)
	return err == nil && u.Host == r.Host
}

// newProxy forwards /api/ requests to the backend, replacing the
// dashboard's own credentials with the backend token.
func (s *Server) newProxy() http.Handler {
	target := s.opts.Backend
	proxy := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
			pr.Out.Header.Del("Authorization")
			if s.opts.BackendToken != "" {
				pr.Out.Header.Set("Authorization", "Bearer "+s.opts.BackendToken)
			}
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			s.logger.Warn("backend proxy failed", "path", r.URL.Path, "error", err)
			writeError(w, http.StatusBadGateway, "backend unavailable")
		},
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.opts.ReadOnly && r.Method != http.MethodGet && r.Method != http.MethodHead {
			writeError(w, http.StatusMethodNotAllowed, "read-only mode")
			return
		}
		proxy.ServeHTTP(w, r)
	})
}

// Handler builds the routed handler with the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	RegisterRoutes(mux, s)

	if s.opts.Backend != nil {
		mux.Handle("/api/", s.newProxy())
	}
	mux.Handle("/", http.FileServer(http.FS(ui.StaticFiles())))

	// Middleware chain: request id → security headers → body limit → CORS → rate limit → auth → mux
	var handler http.Handler = mux
	handler = s.authMiddleware(handler)
	handler = s.rateLimiter(handler)
	handler = s.corsMiddleware(handler)
	handler = limitBody(handler)
	handler = securityHeaders(handler)
	handler = requestID(handler)
	return handler
}

// Start serves until Shutdown.
func (s *Server) Start() error {
	s.srv = &http.Server{
		Addr:        s.opts.Listen,
		Handler:     s.Handler(),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}
	go s.cleanupLimiters()

	s.logger.Info("starting server", "listen", s.opts.Listen, "read_only", s.opts.ReadOnly)
	if s.opts.APIToken != "" {
		s.logger.Info("API authentication enabled")
	} else {
		s.logger.Warn("API authentication disabled (set server.api_token to enable)")
	}
	if s.opts.Backend != nil {
		s.logger.Info("proxying /api/ to backend", "backend", s.opts.Backend.String())
	}
	fmt.Printf("ACP dashboard running at http://localhost%s\n", s.opts.Listen)

	return s.srv.ListenAndServe()
}

// Shutdown stops the server and every mounted page.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stopCleanup) })
	var err error
	if s.srv != nil {
		err = s.srv.Shutdown(ctx)
	}
	s.registry.StopAll()
	return err
}
