package dashboard

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"fundingwatch/config"
	"fundingwatch/internal/metrics"
	"fundingwatch/internal/monitor"
	"fundingwatch/logger"
)

const defaultPort = "8000"

// Checker runs a funding check on demand and exposes the latest report.
type Checker interface {
	Check(ctx context.Context) (monitor.Report, error)
	Last() (monitor.Report, bool)
}

// Server exposes the manual trigger and the status API.
type Server struct {
	cfg        config.ServerConfig
	log        *logger.Log
	checker    Checker
	history    *metrics.History
	logStore   *logStore
	httpServer *http.Server
	prometheus bool
	scheduler  ScheduleStats
}

// ScheduleStats reports how many scheduled runs completed or were skipped.
type ScheduleStats interface {
	Stats() (runs, skipped int64)
}

type Option func(*Server)

// WithScheduler adds the scheduler counters to /api/status.
func WithScheduler(stats ScheduleStats) Option {
	return func(s *Server) { s.scheduler = stats }
}

// WithPrometheus toggles the /metrics route. It is on by default.
func WithPrometheus(enabled bool) Option {
	return func(s *Server) { s.prometheus = enabled }
}

// NewServer returns nil when the server is disabled.
func NewServer(cfg config.ServerConfig, checker Checker, log *logger.Log, opts ...Option) *Server {
	if !cfg.Enabled {
		return nil
	}

	cfg.Address = normalizeAddress(cfg.Address)
	if cfg.MetricHistory <= 0 {
		cfg.MetricHistory = 200
	}

	store := newLogStore(cfg.MetricHistory, logrus.InfoLevel)
	log.AddHook(store)

	s := &Server{
		cfg:        cfg,
		log:        log,
		checker:    checker,
		history:    metrics.NewHistory(cfg.MetricHistory),
		logStore:   store,
		prometheus: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run serves until ctx is cancelled or the listener fails.
func (s *Server) Run(ctx context.Context) error {
	if s == nil {
		return nil
	}
	defer s.cleanup()

	s.httpServer = &http.Server{
		Addr:              s.cfg.Address,
		Handler:           s.buildRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.log.WithComponent("server").WithFields(logger.Fields{"address": s.cfg.Address}).Info("http server listening")

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		<-errCh
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) cleanup() {
	s.history.Close()
	s.logStore.close()
}

// Address reports the address the server listens on.
func (s *Server) Address() string {
	if s == nil {
		return ""
	}
	return s.cfg.Address
}

func (s *Server) buildRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/check_funding", s.handleCheck)

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/api/last", func(c *gin.Context) {
		rep, ok := s.checker.Last()
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "no funding check has completed yet"})
			return
		}
		c.JSON(http.StatusOK, rep)
	})

	router.GET("/api/status", func(c *gin.Context) {
		status := gin.H{"counters": logger.Snapshot()}
		if s.scheduler != nil {
			runs, skipped := s.scheduler.Stats()
			status["scheduler"] = gin.H{"runs": runs, "skipped": skipped}
		}
		c.JSON(http.StatusOK, status)
	})

	router.GET("/api/metrics", func(c *gin.Context) {
		snapshot := s.history.Snapshot()
		payload := make([]gin.H, 0, len(snapshot))
		for _, m := range snapshot {
			payload = append(payload, gin.H{
				"timestamp": m.Timestamp.Format(time.RFC3339Nano),
				"component": m.Component,
				"name":      m.Name,
				"value":     m.Value,
				"type":      m.Type,
				"fields":    m.Fields,
			})
		}
		c.JSON(http.StatusOK, gin.H{"metrics": payload})
	})

	router.GET("/api/logs", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"logs": s.logStore.snapshot()})
	})

	if s.prometheus {
		router.GET("/metrics", gin.WrapH(metrics.Handler()))
	}

	return router
}

func (s *Server) handleCheck(c *gin.Context) {
	log := s.log.WithComponent("server").WithFields(logger.Fields{"remote": c.ClientIP()})

	rep, err := s.checker.Check(c.Request.Context())
	if err != nil {
		log.WithError(err).Error("manual funding check failed")
		c.String(http.StatusInternalServerError, "Error: %s", err.Error())
		return
	}

	log.WithFields(logger.Fields{"run_id": rep.RunID, "digests": len(rep.Messages)}).Info("manual funding check done")
	c.String(http.StatusOK, "Funding check done, alerts sent if applicable.")
}

func normalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)

	if addr == "" {
		return "0.0.0.0:" + defaultPort
	}

	if strings.Contains(addr, "://") {
		if parsed, err := url.Parse(addr); err == nil {
			if host := parsed.Host; host != "" {
				addr = host
			} else if parsed.Opaque != "" {
				addr = parsed.Opaque
			}
		}
	}

	if strings.HasPrefix(addr, ":") && len(addr) > 1 && addr[1] >= '0' && addr[1] <= '9' {
		return "0.0.0.0" + addr
	}

	host, port, err := net.SplitHostPort(addr)
	if err == nil {
		if host == "" || host == "*" {
			host = "0.0.0.0"
		}
		if port == "" {
			port = defaultPort
		}
		return net.JoinHostPort(host, port)
	}

	if ip := net.ParseIP(addr); ip != nil || !strings.Contains(addr, ":") {
		return net.JoinHostPort(addr, defaultPort)
	}

	return addr
}
