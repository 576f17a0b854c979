package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"pembukuan/internal/cache"
	"pembukuan/internal/report"
	"pembukuan/internal/store"
	"pembukuan/web"
)

type Server struct {
	http.Server
	store          *store.Store
	maxUploadBytes int64
	rateLimiter    *rateLimiter

	// Report cache keyed by account name and state version. A state change
	// bumps the version, so stale entries simply age out.
	reportCache  *cache.LRUCache[report.AccountReport]
	cacheManager *cache.Manager

	shutdownOnce sync.Once
}

// Mutating-request budget per client address.
const (
	rateLimit       = 60
	rateWindow      = time.Minute
	rateStaleAfter  = 10 * time.Minute
	rateSweepEvery  = 5 * time.Minute
)

// rateLimiter counts requests per client address within a sliding window.
// A background sweep drops addresses that have gone quiet.
type rateLimiter struct {
	mu           sync.Mutex
	clients      map[string]*clientWindow
	stopSweep    chan struct{}
	shutdownOnce sync.Once
}

type clientWindow struct {
	lastSeen time.Time
	count    int
}

func newRateLimiter() *rateLimiter {
	rl := &rateLimiter{
		clients:   make(map[string]*clientWindow),
		stopSweep: make(chan struct{}),
	}
	go rl.sweepLoop()
	return rl
}

func (rl *rateLimiter) sweepLoop() {
	ticker := time.NewTicker(rateSweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.dropStale()
		case <-rl.stopSweep:
			return
		}
	}
}

func (rl *rateLimiter) dropStale() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-rateStaleAfter)
	for addr, c := range rl.clients {
		if c.lastSeen.Before(cutoff) {
			delete(rl.clients, addr)
		}
	}
}

func (rl *rateLimiter) stop() {
	rl.shutdownOnce.Do(func() {
		close(rl.stopSweep)
	})
}

// allow records one request for the address and reports whether it still
// fits the window's budget.
func (rl *rateLimiter) allow(addr string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	c, ok := rl.clients[addr]
	if !ok {
		rl.clients[addr] = &clientWindow{lastSeen: now, count: 1}
		return true
	}

	if now.Sub(c.lastSeen) > rateWindow {
		c.count = 0
	}
	c.count++
	c.lastSeen = now
	return c.count <= rateLimit
}

// NewServer configures routes, returning a ready-to-run http.Server.
func NewServer(addr string, st *store.Store, maxUploadBytes int64) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		store:          st,
		maxUploadBytes: maxUploadBytes,
		rateLimiter:    newRateLimiter(),
		reportCache:    cache.NewLRUCache[report.AccountReport](100, 5*time.Minute), // Max 100 entries, 5min TTL
		cacheManager:   cache.NewManager(),
	}

	s.cacheManager.Register(s.reportCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/upload", s.withSecurityHeaders(s.handleUpload))
	mux.HandleFunc("/api/save", s.withSecurityHeaders(s.handleSave))
	mux.HandleFunc("/api/template", s.withSecurityHeaders(s.handleTemplate))
	mux.HandleFunc("/api/accounts", s.withSecurityHeaders(s.handleAccounts))
	mux.HandleFunc("/api/accounts/select", s.withSecurityHeaders(s.handleSelectAccount))
	mux.HandleFunc("/api/settings", s.withSecurityHeaders(s.handleSettings))
	mux.HandleFunc("/api/accounts/{name}/transactions", s.withSecurityHeaders(s.handleReplaceTransactions))
	mux.HandleFunc("/api/reports/{account}", s.withSecurityHeaders(s.handleReport))

	mux.HandleFunc("/", s.handleIndex)
	mux.Handle("/static/", http.FileServerFS(web.StaticFS))

	return s
}

// handleIndex serves the embedded frontend entry page.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	page, err := web.StaticFS.ReadFile("static/index.html")
	if err != nil {
		http.Error(w, "frontend not available", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(page)
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	// Ensure shutdown logic runs only once
	s.shutdownOnce.Do(func() {
		if s.cacheManager != nil {
			s.cacheManager.Stop()
		}
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// withSecurityHeaders adds security headers, rate limiting, and request logging to responses
func (s *Server) withSecurityHeaders(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := clientAddress(r)

		// Generate request ID for tracing
		requestID := generateRequestID()

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"client_ip", clientIP,
			"user_agent", r.Header.Get("User-Agent"))

		// Apply rate limiting to mutating requests
		if (r.Method == http.MethodPost || r.Method == http.MethodPut) && !s.rateLimiter.allow(clientIP) {
			slog.WarnContext(ctx, "Rate limit exceeded", "client_ip", clientIP, "method", r.Method, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		// Create a custom response writer to capture status code
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		// Log request completion
		duration := time.Since(start)
		slog.InfoContext(ctx, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", duration.Milliseconds(),
			"client_ip", clientIP)
	}
}

type contextKey string

const requestIDKey contextKey = "request_id"

// clientAddress extracts the client IP, considering proxies.
func clientAddress(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return ip
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// generateRequestID creates a unique request ID for tracing
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp if random fails
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}
