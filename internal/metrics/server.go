package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"framecull/internal/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	srv      *http.Server
	listener net.Listener
	logger   logger.Logger
}

func NewHandler(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return mux
}

// StartServer listens on addr and serves in the background.
func StartServer(addr string, gatherer prometheus.Gatherer, log logger.Logger) (*Server, error) {
	if log == nil {
		log = logger.Nop()
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	s := &Server{
		srv: &http.Server{
			Handler:           NewHandler(gatherer),
			ReadHeaderTimeout: 5 * time.Second,
		},
		listener: listener,
		logger:   log,
	}

	go func() {
		log.Info("MetricsServer", "metrics server starting", map[string]interface{}{
			"addr": listener.Addr().String(),
		})
		if err := s.srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("MetricsServer", err, nil)
		}
	}()

	return s, nil
}

func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Shutdown satisfies shutdown.Shutdownable.
func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		s.logger.Warning("MetricsServer", "metrics server shutdown failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}
