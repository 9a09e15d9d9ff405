package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"khata/internal/cache"
	"khata/internal/services"
)

type Server struct {
	http.Server
	ledger      *services.LedgerService
	rateLimiter *rateLimiter

	// reportCache memoizes rendered report payloads keyed by snapshot
	// version, so repeated dashboard polls never re-aggregate.
	reportCache  *cache.LRUCache[[]byte]
	cacheManager *cache.Manager

	shutdownOnce sync.Once
}

// Options tune the server's cache; zero values take defaults.
type Options struct {
	CacheSize int
	CacheTTL  time.Duration
}

// NewServer configures routes and caches, returning a ready-to-run
// server.
func NewServer(addr string, ledger *services.LedgerService, opts Options) *Server {
	if opts.CacheSize <= 0 {
		opts.CacheSize = 256
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}

	mux := http.NewServeMux()
	s := &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		ledger:       ledger,
		rateLimiter:  newRateLimiter(),
		reportCache:  cache.NewLRUCache[[]byte](opts.CacheSize, opts.CacheTTL),
		cacheManager: cache.NewManager(),
	}
	s.cacheManager.Register(s.reportCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("GET /api/data", s.guard(s.handleData))
	mux.HandleFunc("POST /api/products", s.guard(s.handleAddProduct))
	mux.HandleFunc("POST /api/sellers", s.guard(s.handleAddSeller))
	mux.HandleFunc("POST /api/sales", s.guard(s.handleRecordSale))
	mux.HandleFunc("POST /api/payments", s.guard(s.handleRecordPayment))

	mux.HandleFunc("GET /api/dashboard", s.guard(s.handleDashboard))
	mux.HandleFunc("GET /api/transactions", s.guard(s.handleTransactions))
	mux.HandleFunc("GET /api/reports/monthly-sales", s.guard(s.handleMonthlySales))
	mux.HandleFunc("GET /api/reports/top-sellers", s.guard(s.handleTopSellers))
	mux.HandleFunc("GET /api/reports/top-products", s.guard(s.handleTopProducts))
	mux.HandleFunc("GET /api/reports/seller-dues", s.guard(s.handleSellerDues))
	mux.HandleFunc("GET /api/reports/stock", s.guard(s.handleStock))
	mux.HandleFunc("GET /api/reports/seller-summary", s.guard(s.handleSellerSummary))
	mux.HandleFunc("GET /api/reports/due-mismatch", s.guard(s.handleDueMismatch))

	return s
}

// guard applies rate limiting and response headers shared by all API
// handlers.
func (s *Server) guard(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.rateLimiter.allow(clientIP(r)) {
			writeErrorStatus(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Cache-Control", "no-store")
		next(w, r)
	}
}

// Shutdown stops the cache sweeper and rate limiter before draining
// in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready"))
}
