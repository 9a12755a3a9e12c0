package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"agri-compath/internal/api"
	"agri-compath/internal/database"
	"agri-compath/internal/engine"
	"agri-compath/internal/feed"
	"agri-compath/internal/middleware"
	"agri-compath/internal/utils"
	"agri-compath/internal/websocket"

	"github.com/gorilla/mux"
	ws "github.com/gorilla/websocket"
)

const maxBodyBytes = 1 << 20

// Server holds all server dependencies, including the engine that runs live
// views.
type Server struct {
	Engine         *engine.Engine
	Hub            *websocket.Hub
	Fetcher        *feed.Fetcher
	Poster         *feed.Poster
	DB             database.DBAdapter
	Auth           *middleware.Authenticator
	CORS           *middleware.CORSConfig
	Metrics        *utils.MetricsCollector
	Logger         *slog.Logger
	RequestTimeout time.Duration

	upgrader ws.Upgrader
}

// NewServer creates a new Server instance with the given components
func NewServer(
	eng *engine.Engine,
	hub *websocket.Hub,
	fetcher *feed.Fetcher,
	poster *feed.Poster,
	db database.DBAdapter,
	auth *middleware.Authenticator,
	cors *middleware.CORSConfig,
	metrics *utils.MetricsCollector,
	logger *slog.Logger,
) *Server {
	s := &Server{
		Engine:         eng,
		Hub:            hub,
		Fetcher:        fetcher,
		Poster:         poster,
		DB:             db,
		Auth:           auth,
		CORS:           cors,
		Metrics:        metrics,
		Logger:         logger.With("component", "http"),
		RequestTimeout: 5 * time.Second,
	}
	s.upgrader = ws.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return s.CORS.OriginAllowed(r.Header.Get("Origin"))
		},
	}
	return s
}

// Routes builds the HTTP handler. metricsHandler is mounted on /metrics when
// non-nil.
func (s *Server) Routes(metricsHandler http.Handler) http.Handler {
	r := mux.NewRouter()
	r.Use(s.instrument)

	r.HandleFunc("/health", s.HandleHealth()).Methods(http.MethodGet)
	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler).Methods(http.MethodGet)
	}
	// Browsers cannot set headers on websocket requests, so /ws reads its
	// token from the query string.
	r.HandleFunc("/ws", s.HandleWebSocket()).Methods(http.MethodGet)

	protected := r.NewRoute().Subrouter()
	protected.Use(s.Auth.Require)
	protected.HandleFunc("/communities/{communityId:[0-9]+}/topics", s.HandleTopics()).Methods(http.MethodGet)
	protected.HandleFunc("/communities/{communityId:[0-9]+}/topics/{kind}/{itemId:[0-9]+}", s.HandleThread()).Methods(http.MethodGet)
	protected.HandleFunc("/communities/{communityId:[0-9]+}/posts", s.HandleCreatePost()).Methods(http.MethodPost)
	protected.HandleFunc("/communities/{communityId:[0-9]+}/shares", s.HandleShareRecord()).Methods(http.MethodPost)
	protected.HandleFunc("/records", s.HandleCreateRecord()).Methods(http.MethodPost)
	protected.HandleFunc("/admin/communities", s.HandleCreateCommunity()).Methods(http.MethodPost)
	protected.HandleFunc("/admin/communities/{communityId:[0-9]+}/alerts", s.HandleBroadcast()).Methods(http.MethodPost)

	return middleware.CORSMiddleware(s.CORS)(r)
}

// instrument counts requests and records their latency per route.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()
		s.Metrics.IncrementRequests()
		next.ServeHTTP(w, r)

		name := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if template, err := route.GetPathTemplate(); err == nil {
				name = template
			}
		}
		s.Metrics.AddOperationLatency(r.Method+" "+name, time.Since(startTime))
	})
}

// HandleHealth handles health check requests
func (s *Server) HandleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":      "ok",
			"uptime":      s.Metrics.Uptime().Round(time.Second).String(),
			"server_time": time.Now(),
		})
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := utils.AsAppError(err)
	status := utils.AppErrorToHTTPStatus(appErr.Code)
	if status >= http.StatusInternalServerError {
		s.Metrics.IncrementErrors()
		s.Logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "code", appErr.Code, "error", err)
	} else {
		s.Logger.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "code", appErr.Code, "error", err)
	}

	message := appErr.Message
	if appErr.Code == utils.ErrDatabase {
		message = "internal error"
	}
	writeJSON(w, status, api.ErrorResponse{Code: appErr.Code, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return utils.NewAppError(utils.ErrInvalidInput, "invalid request body", err)
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		return 0, utils.NewAppError(utils.ErrInvalidInput, "invalid "+name, err)
	}
	return id, nil
}
