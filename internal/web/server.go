// Package web provides the HTTP server and routing
package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"ariadm/internal/config"
	"ariadm/internal/database"
	"ariadm/internal/downloader"
	"ariadm/internal/web/handlers"
)

// Server represents the HTTP server
type Server struct {
	server   *http.Server
	handlers *handlers.Handlers
	logger   *slog.Logger
}

// NewServer creates a new HTTP server
func NewServer(cfg *config.Config, db *database.DB, plugins *database.PluginsDB, supervisor *downloader.Supervisor) *Server {
	h := handlers.NewHandlers(db, plugins, supervisor)

	mux := http.NewServeMux()
	h.Register(mux)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      requestLogger(mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		server:   server,
		handlers: h,
		logger:   slog.Default(),
	}
}

// Start serves until Shutdown is called. It returns http.ErrServerClosed after a clean shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.server.Addr, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln
func (s *Server) Serve(ln net.Listener) error {
	_, port, _ := net.SplitHostPort(ln.Addr().String())
	localIP := getLocalIP()

	s.logger.Info("Starting HTTP server",
		"addr", ln.Addr().String(),
		"local_ip", localIP,
		"url", fmt.Sprintf("http://%s:%s/api", localIP, port))

	return s.server.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	if err := s.server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func requestLogger(next http.Handler) http.Handler {
	logger := slog.Default()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start))
	})
}

// getLocalIP returns the first private IPv4 address, preferring 192.168.*
func getLocalIP() string {
	interfaces, err := net.Interfaces()
	if err != nil {
		return "localhost"
	}

	fallback := ""
	for _, iface := range interfaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			ip := ipNet.IP.To4()
			if ip == nil || !ip.IsPrivate() {
				continue
			}
			if ip[0] == 192 && ip[1] == 168 {
				return ip.String()
			}
			if fallback == "" {
				fallback = ip.String()
			}
		}
	}

	if fallback == "" {
		return "localhost"
	}
	return fallback
}
