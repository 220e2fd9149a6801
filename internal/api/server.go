// Package api is the JSON HTTP surface of the wellnessgrid server:
// authentication, tracker CRUD, the assistant endpoint and chat-session
// bookkeeping. Routing uses net/http method patterns; cross-cutting
// concerns are layered as middleware around a single ServeMux.
package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wellnessgrid/wellnessgrid/internal/auth"
	"github.com/wellnessgrid/wellnessgrid/internal/postgres"
)

// Server lifecycle timeouts.
const (
	// ShutdownTimeout is the maximum wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout caps header reads to blunt slowloris clients.
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading a full request.
	ReadTimeout = 30 * time.Second

	// WriteTimeout is generous because /api/ask waits on the inference
	// backend end to end.
	WriteTimeout = 60 * time.Second

	// IdleTimeout bounds keep-alive connections.
	IdleTimeout = 120 * time.Second
)

// ServerConfig wires the server's dependencies.
type ServerConfig struct {
	Logger   *slog.Logger
	Pool     *pgxpool.Pool // required
	Tokens   *auth.Tokens  // required
	Pipeline Asker         // required
	Backend  HealthProber  // required: inference reachability for GET /api/ask
	Docs     DocumentCounter

	Users       *postgres.Users
	Conditions  *postgres.Conditions
	Medications *postgres.Medications
	Entries     *postgres.Entries
	Resources   *postgres.Resources
	Settings    *postgres.Settings
	Sessions    *postgres.Sessions

	CORSOrigins []string
	TrustProxy  bool
	IsDev       bool

	// Rate limiting: RateMax requests per RateWindow per client IP.
	RateWindow time.Duration // 0 means 1 minute
	RateMax    int           // 0 means 60
}

// Server is the HTTP API server.
type Server struct {
	mux *http.ServeMux
}

// NewServer builds the route table and middleware stack.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Pool == nil {
		return nil, errors.New("database pool is required")
	}
	if cfg.Tokens == nil {
		return nil, errors.New("token manager is required")
	}
	if cfg.Pipeline == nil || cfg.Backend == nil || cfg.Docs == nil {
		return nil, errors.New("assistant pipeline is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	validate := newValidator()

	ah := &authHandler{users: cfg.Users, tokens: cfg.Tokens, validate: validate, logger: logger}
	th := &trackerHandler{
		conditions:  cfg.Conditions,
		medications: cfg.Medications,
		entries:     cfg.Entries,
		validate:    validate,
		logger:      logger,
	}
	rh := &resourceHandler{resources: cfg.Resources, logger: logger}
	sh := &settingsHandler{settings: cfg.Settings, validate: validate, logger: logger}
	ch := &sessionHandler{sessions: cfg.Sessions, validate: validate, logger: logger}
	qh := &askHandler{
		pipeline:  cfg.Pipeline,
		backend:   cfg.Backend,
		documents: cfg.Docs,
		sessions:  cfg.Sessions,
		validate:  validate,
		logger:    logger,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/register", ah.register)
	mux.HandleFunc("POST /api/auth/login", ah.login)
	mux.HandleFunc("GET /api/auth/me", ah.me)

	mux.HandleFunc("POST /api/ask", qh.ask)
	mux.HandleFunc("GET /api/ask", qh.probe)

	mux.HandleFunc("POST /api/conditions", th.createCondition)
	mux.HandleFunc("GET /api/conditions", th.listConditions)
	mux.HandleFunc("GET /api/conditions/{id}", th.getCondition)
	mux.HandleFunc("PUT /api/conditions/{id}", th.updateCondition)
	mux.HandleFunc("DELETE /api/conditions/{id}", th.deleteCondition)

	mux.HandleFunc("POST /api/medications", th.createMedication)
	mux.HandleFunc("GET /api/medications", th.listMedications)
	mux.HandleFunc("GET /api/medications/{id}", th.getMedication)
	mux.HandleFunc("PUT /api/medications/{id}", th.updateMedication)
	mux.HandleFunc("DELETE /api/medications/{id}", th.deleteMedication)

	mux.HandleFunc("POST /api/symptoms", th.createSymptom)
	mux.HandleFunc("GET /api/symptoms", th.listSymptoms)
	mux.HandleFunc("DELETE /api/symptoms/{id}", th.deleteSymptom)

	mux.HandleFunc("POST /api/moods", th.createMood)
	mux.HandleFunc("GET /api/moods", th.listMoods)
	mux.HandleFunc("DELETE /api/moods/{id}", th.deleteMood)

	mux.HandleFunc("POST /api/vitals", th.createVitals)
	mux.HandleFunc("GET /api/vitals", th.listVitals)
	mux.HandleFunc("DELETE /api/vitals/{id}", th.deleteVitals)

	mux.HandleFunc("GET /api/resources", rh.list)
	mux.HandleFunc("GET /api/resources/{id}", rh.get)

	mux.HandleFunc("GET /api/settings/notifications", sh.get)
	mux.HandleFunc("PUT /api/settings/notifications", sh.update)

	mux.HandleFunc("POST /api/sessions", ch.create)
	mux.HandleFunc("GET /api/sessions", ch.list)
	mux.HandleFunc("GET /api/sessions/{id}", ch.get)
	mux.HandleFunc("GET /api/sessions/{id}/messages", ch.messages)
	mux.HandleFunc("DELETE /api/sessions/{id}", ch.delete)

	window := cfg.RateWindow
	if window <= 0 {
		window = time.Minute
	}
	maxRequests := cfg.RateMax
	if maxRequests <= 0 {
		maxRequests = 60
	}
	rl := newRateLimiter(window, maxRequests)

	// Registration, login and the pipeline probe are reachable without a
	// token; everything else under /api requires one. Keys are
	// "METHOD path" so opening the GET probe does not open POST /api/ask.
	open := map[string]bool{
		"POST /api/auth/register": true,
		"POST /api/auth/login":    true,
		"GET /api/ask":            true,
	}

	// Middleware stack (outermost first):
	//   Recovery → RequestID → Logging → CORS → RateLimit → Auth → Routes
	// RequestID precedes Logging so request_id lands in log attributes;
	// CORS precedes RateLimit so preflights get headers even when limited.
	var handler http.Handler = mux
	handler = authMiddleware(cfg.Tokens, logger, open)(handler)
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	isDev := cfg.IsDev
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setSecurityHeaders(w, isDev)
		handler.ServeHTTP(w, r)
	})

	// Health probes stay outside the middleware stack so orchestrators
	// are never rate limited or asked for credentials.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health)
	topMux.Handle("GET /ready", readiness(cfg.Pool, logger))
	topMux.Handle("/", final)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
