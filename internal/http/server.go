package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"fintrack/internal/assistant"
	"fintrack/internal/auth"
	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/security"
	"fintrack/internal/middleware/trace"
	"fintrack/internal/services"
	appweb "fintrack/web"
)

// Services are the application services the handlers drive.
type Services struct {
	Accounts     *services.AccountService
	Wallets      *services.WalletService
	Transactions *services.TransactionService
	Loader       *services.Loader
	Assistant    *assistant.Service
}

// Options configures NewServer. Zero values fall back to sensible defaults.
type Options struct {
	Addr         string
	StoreTimeout time.Duration
	Money        core.MoneyFormatter
	// Currency is used for new wallets and empty views.
	Currency string

	RateLimitPerMinute     int
	AuthRateLimitPerMinute int
	TrustedProxies         []string

	// Ping reports backend readiness; nil means always ready.
	Ping func(ctx context.Context) error
	// Caches are reported on /readyz and /metrics.
	Caches map[string]cache.StatsReporter

	Logger *log.Logger
}

type Server struct {
	http.Server
	svc      Services
	sessions *auth.Manager
	logger   *log.Logger

	pages    map[string]*template.Template
	partials *template.Template
	static   fs.FS

	money        core.MoneyFormatter
	currency     string
	storeTimeout time.Duration
	ping         func(ctx context.Context) error
	caches       map[string]cache.StatsReporter

	detector    *security.Detector
	tracer      *trace.Middleware
	limiter     *ratelimit.Limiter
	authLimiter *ratelimit.Limiter

	now          func() time.Time
	started      time.Time
	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run server.
func NewServer(svc Services, sessions *auth.Manager, opts Options) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = 7 * time.Second
	}
	if opts.Currency == "" {
		opts.Currency = core.DefaultCurrency
	}
	if opts.RateLimitPerMinute <= 0 {
		opts.RateLimitPerMinute = ratelimit.DefaultConfig().RequestsPerMinute
	}
	if opts.AuthRateLimitPerMinute <= 0 {
		opts.AuthRateLimitPerMinute = 10
	}
	if opts.Money == (core.MoneyFormatter{}) {
		opts.Money = core.NewMoneyFormatter("en-US")
	}

	s := &Server{
		svc:          svc,
		sessions:     sessions,
		logger:       logger.WithComponent(log.ComponentHTTP),
		money:        opts.Money,
		currency:     opts.Currency,
		storeTimeout: opts.StoreTimeout,
		ping:         opts.Ping,
		caches:       opts.Caches,
		now:          time.Now,
	}
	s.started = s.now()

	if err := s.loadTemplates(appweb.TemplatesFS); err != nil {
		return nil, err
	}
	static, err := fs.Sub(appweb.StaticFS, "static")
	if err != nil {
		return nil, err
	}
	s.static = static

	s.detector = security.NewDetector(logger)
	for _, cidr := range opts.TrustedProxies {
		if err := s.detector.AddTrustedProxy(cidr); err != nil {
			return nil, err
		}
	}
	s.tracer = trace.NewMiddleware(logger, s.detector.ClientIP)

	general := ratelimit.DefaultConfig()
	general.Name = "general"
	general.RequestsPerMinute = opts.RateLimitPerMinute
	s.limiter = ratelimit.NewLimiter(general, logger)

	strict := ratelimit.DefaultConfig()
	strict.Name = "auth"
	strict.RequestsPerMinute = opts.AuthRateLimitPerMinute
	s.authLimiter = ratelimit.NewLimiter(strict, logger)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           s.routes(),
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	page := func(h http.HandlerFunc) http.Handler {
		return auth.Require("/login", s.withStoreTimeout(h))
	}
	guest := func(h http.HandlerFunc) http.Handler {
		return auth.GuestOnly("/", s.withStoreTimeout(h))
	}
	strict := s.authLimiter.Middleware(s.detector.ClientIP, s.onRateLimit)

	// Public
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.Handle("GET /static/", security.StaticAssets(3600,
		http.StripPrefix("/static/", http.FileServer(http.FS(s.static)))))

	// Authentication
	mux.Handle("GET /login", guest(s.handleLoginPage))
	mux.Handle("POST /login", strict(guest(s.handleLogin)))
	mux.Handle("GET /register", guest(s.handleRegisterPage))
	mux.Handle("POST /register", strict(guest(s.handleRegister)))
	mux.Handle("GET /forgot-password", guest(s.handleForgotPage))
	mux.Handle("POST /forgot-password", strict(guest(s.handleForgot)))
	mux.Handle("POST /logout", s.withStoreTimeout(s.handleLogout))

	// Pages
	mux.Handle("GET /{$}", page(s.handleDashboard))
	mux.Handle("GET /wallets", page(s.handleWallets))
	mux.Handle("GET /transactions", page(s.handleTransactions))
	mux.Handle("GET /reports", page(s.handleReports))
	mux.Handle("GET /settings", page(s.handleSettings))

	// Wallets
	mux.Handle("POST /wallets", page(s.handleCreateWallet))
	mux.Handle("GET /wallets/{id}/edit", page(s.handleEditWallet))
	mux.Handle("GET /wallets/{id}/confirm-delete", page(s.handleConfirmDeleteWallet))
	mux.Handle("POST /wallets/{id}", page(s.handleUpdateWallet))
	mux.Handle("DELETE /wallets/{id}", page(s.handleDeleteWallet))

	// Transactions
	mux.Handle("POST /transactions", page(s.handleCreateTransaction))
	mux.Handle("GET /transactions/categories", page(s.handleCategoryOptions))
	mux.Handle("GET /transactions/{id}/edit", page(s.handleEditTransaction))
	mux.Handle("GET /transactions/{id}/confirm-delete", page(s.handleConfirmDeleteTransaction))
	mux.Handle("POST /transactions/{id}", page(s.handleUpdateTransaction))
	mux.Handle("DELETE /transactions/{id}", page(s.handleDeleteTransaction))

	// Assistant, reports, settings
	mux.Handle("POST /assistant", page(s.handleAssistant))
	mux.Handle("GET /reports/export.csv", page(s.handleExportCSV))
	mux.Handle("GET /reports/chart.png", page(s.handleMonthlyChart))
	mux.Handle("GET /reports/categories.png", page(s.handleCategoryChart))
	mux.Handle("POST /settings/password", page(s.handleChangePassword))

	mux.HandleFunc("/", s.handleUnknown)

	var h http.Handler = mux
	h = s.limiter.Middleware(s.detector.ClientIP, s.onRateLimit)(h)
	h = s.sessions.Resolve(h)
	h = s.detector.Middleware(h)
	h = security.NoStore(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.tracer.Middleware(h)
	return h
}

// withStoreTimeout bounds every store call made while serving the request.
// Client disconnects cancel the same context.
func (s *Server) withStoreTimeout(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), s.storeTimeout)
		defer cancel()
		next(w, r.WithContext(ctx))
	})
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	TooManyRequestsError().Write(w)
}

// handleUnknown sends every unmatched path to the dashboard.
func (s *Server) handleUnknown(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	// Ensure shutdown logic runs only once
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		s.authLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// identity is the signed-in user; routes behind auth.Require always have one.
func identity(r *http.Request) core.Identity {
	return auth.IdentityFrom(r.Context())
}
