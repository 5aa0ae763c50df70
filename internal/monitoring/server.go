package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/alexliesenfeld/health"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Check is a named dependency probe exposed on /health.
type Check struct {
	Name string
	// Interval > 0 runs the probe in the background instead of per request.
	Interval time.Duration
	Probe    func(ctx context.Context) error
}

// Message is the JSON body of non-2xx responses.
type Message struct {
	Message string `json:"Message"`
}

type Server struct {
	logger *zap.Logger
	srv    *http.Server
}

func NewServer(addr string, logger *zap.Logger, checks ...Check) *Server {
	return &Server{
		logger: logger,
		srv: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(logger, checks...),
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

func (s *Server) Start() {
	go func() {
		s.logger.Info("monitoring endpoint enabled", zap.String("addr", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("monitoring server error", zap.Error(err))
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func NewRouter(logger *zap.Logger, checks ...Check) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/metrics", instrument(promhttp.Handler().ServeHTTP, logger)).Methods(http.MethodGet)
	r.HandleFunc("/health", instrument(healthHandler(logger, checks).ServeHTTP, logger)).Methods(http.MethodGet)
	r.NotFoundHandler = NotFoundHandler(logger)
	r.MethodNotAllowedHandler = MethodNotAllowedHandler(logger)
	return r
}

func healthHandler(logger *zap.Logger, checks []Check) http.Handler {
	opts := []health.CheckerOption{
		health.WithCacheDuration(1 * time.Second),
		health.WithTimeout(5 * time.Second),
	}
	for _, c := range checks {
		check := health.Check{
			Name:    c.Name,
			Check:   c.Probe,
			Timeout: 3 * time.Second,
			StatusListener: func(ctx context.Context, name string, state health.CheckState) {
				logger.Info("health check status changed",
					zap.String("name", name),
					zap.String("state", string(state.Status)),
				)
			},
		}
		if c.Interval > 0 {
			opts = append(opts, health.WithPeriodicCheck(c.Interval, 5*time.Second, check))
		} else {
			opts = append(opts, health.WithCheck(check))
		}
	}
	return health.NewHandler(health.NewChecker(opts...))
}

// NotFoundHandler returns a handler that returns a 404 response.
func NotFoundHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, logger, http.StatusNotFound, "Not found")
	}
}

// MethodNotAllowedHandler returns a handler that returns a 405 response.
func MethodNotAllowedHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, logger, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func writeMessage(w http.ResponseWriter, logger *zap.Logger, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(Message{Message: msg}); err != nil {
		logger.Error("error encoding response", zap.Error(err))
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func instrument(next http.HandlerFunc, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		path := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				path = tpl
			}
		}

		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("panic in handler",
					zap.Any("panic", rec),
					zap.String("stack", string(debug.Stack())),
				)
				writeMessage(sw, logger, http.StatusInternalServerError, "Internal server error")
			}
			code := fmt.Sprintf("%d", sw.status)
			HttpTotalRequests.WithLabelValues(path, r.Method, code).Inc()
			HttpRequestDuration.WithLabelValues(path, r.Method, code).Observe(time.Since(start).Seconds())
		}()

		next(sw, r)
	}
}
