package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"mentionguard/internal/antispam"
	"mentionguard/internal/core"
	"mentionguard/internal/flood"
)

const (
	serviceName     = "mentionguard"
	shutdownTimeout = 10 * time.Second
)

// StatsSource exposes the engine's read-only views
type StatsSource interface {
	Statistics() antispam.Stats
	SpamReport() antispam.Report
}

// PipelineSource exposes the dispatcher's runtime state
type PipelineSource interface {
	Enabled() bool
	NoticeThrottleStats() flood.Stats
	DedupSize() int
}

type Server struct {
	config   *core.ServerConfig
	logger   *zap.Logger
	server   *http.Server
	registry *prometheus.Registry
	metrics  *Metrics
	stats    StatsSource
	ready    atomic.Bool
}

var (
	_ core.MetricsRecorder = (*Server)(nil)
	_ PipelineSource       = (*core.Dispatcher)(nil)
)

type Metrics struct {
	MessagesTotal  *prometheus.CounterVec
	VerdictsTotal  *prometheus.CounterVec
	CommandsTotal  *prometheus.CounterVec
	ErrorsTotal    *prometheus.CounterVec
	ProcessingTime prometheus.Histogram
}

func NewServer(config *core.ServerConfig, stats StatsSource, logger *zap.Logger) *Server {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	s := &Server{
		config:   config,
		logger:   logger,
		registry: registry,
		metrics:  newMetrics(registry, stats),
		stats:    stats,
	}
	s.server = createHTTPServer(config, setupRoutes(s))

	return s
}

func newMetrics(registry prometheus.Registerer, stats StatsSource) *Metrics {
	metrics := &Metrics{
		MessagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mentionguard_messages_total",
				Help: "Total number of messages processed",
			},
			[]string{"status"},
		),
		VerdictsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mentionguard_verdicts_total",
				Help: "Total number of warnings and blocks issued",
			},
			[]string{"action"},
		),
		CommandsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mentionguard_commands_total",
				Help: "Total number of chat commands handled",
			},
			[]string{"command", "status"},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mentionguard_errors_total",
				Help: "Total number of errors",
			},
			[]string{"component", "type"},
		),
		ProcessingTime: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "mentionguard_processing_duration_seconds",
				Help:    "Time spent processing messages",
				Buckets: prometheus.DefBuckets,
			},
		),
	}

	registry.MustRegister(
		metrics.MessagesTotal,
		metrics.VerdictsTotal,
		metrics.CommandsTotal,
		metrics.ErrorsTotal,
		metrics.ProcessingTime,
	)

	if stats != nil {
		registry.MustRegister(
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Name: "mentionguard_tracked_senders",
				Help: "Number of senders with a mention history",
			}, func() float64 { return float64(stats.Statistics().TotalSenders) }),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Name: "mentionguard_blocked_senders",
				Help: "Number of senders currently blocked",
			}, func() float64 { return float64(stats.Statistics().BlockedSenders) }),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Name: "mentionguard_warned_senders",
				Help: "Number of senders holding at least one warning",
			}, func() float64 { return float64(stats.Statistics().WarnedSenders) }),
		)
	}

	return metrics
}

// RegisterPipeline adds gauges backed by the dispatcher, which is built after the server
func (s *Server) RegisterPipeline(pipeline PipelineSource) {
	s.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "mentionguard_protection_enabled",
			Help: "Whether mention enforcement is switched on (1) or off (0)",
		}, func() float64 {
			if pipeline.Enabled() {
				return 1
			}
			return 0
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "mentionguard_notice_throttle_chats",
			Help: "Number of chats with a notice throttle bucket",
		}, func() float64 { return float64(pipeline.NoticeThrottleStats().ActiveKeys) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "mentionguard_notice_limit_per_minute",
			Help: "Notices allowed per chat per minute, 0 when unthrottled",
		}, func() float64 { return float64(pipeline.NoticeThrottleStats().LimitPerMinute) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "mentionguard_dedup_entries",
			Help: "Number of message ids remembered for deduplication",
		}, func() float64 { return float64(pipeline.DedupSize()) }),
	)
}

func createHTTPServer(config *core.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      handler,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}
}

func setupRoutes(s *Server) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, s.logger, http.StatusOK, map[string]string{"status": "ok", "service": serviceName})
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		if !s.ready.Load() {
			writeJSON(w, s.logger, http.StatusServiceUnavailable,
				map[string]string{"status": "starting", "service": serviceName})
			return
		}
		writeJSON(w, s.logger, http.StatusOK, map[string]string{"status": "ready", "service": serviceName})
	})

	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{Registry: s.registry}))

	mux.HandleFunc("/api/stats", func(w http.ResponseWriter, _ *http.Request) {
		if s.stats == nil {
			writeJSON(w, s.logger, http.StatusServiceUnavailable, map[string]string{"error": "engine not available"})
			return
		}
		writeJSON(w, s.logger, http.StatusOK, s.stats.Statistics())
	})

	mux.HandleFunc("/api/report", func(w http.ResponseWriter, _ *http.Request) {
		if s.stats == nil {
			writeJSON(w, s.logger, http.StatusServiceUnavailable, map[string]string{"error": "engine not available"})
			return
		}
		writeJSON(w, s.logger, http.StatusOK, s.stats.SpamReport())
	})

	mux.HandleFunc("/", homeHandler(s.logger))

	return mux
}

func writeJSON(w http.ResponseWriter, logger *zap.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("Failed to write JSON response", zap.Error(err))
	}
}

func homeHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`<!DOCTYPE html>
<html>
<head>
    <title>MentionGuard</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 40px; }
        .header { color: #333; }
        .endpoint { margin: 10px 0; }
        .endpoint a { text-decoration: none; color: #0066cc; }
        .endpoint a:hover { text-decoration: underline; }
    </style>
</head>
<body>
    <h1 class="header">🛡️ MentionGuard</h1>
    <p>Mention spam protection for group chats</p>

    <h2>Endpoints</h2>
    <div class="endpoint">📊 <a href="/metrics">Metrics</a> - Prometheus metrics</div>
    <div class="endpoint">📈 <a href="/api/stats">Stats</a> - Sender statistics</div>
    <div class="endpoint">📋 <a href="/api/report">Report</a> - Top mention senders</div>
    <div class="endpoint">💚 <a href="/healthz">Health</a> - Health check</div>
    <div class="endpoint">✅ <a href="/readyz">Ready</a> - Readiness check</div>
</body>
</html>`)); err != nil {
			logger.Debug("Failed to write home page", zap.Error(err))
		}
	}
}

// SetReady flips the readiness probe
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting HTTP server",
		zap.String("addr", s.server.Addr))

	go func() {
		<-ctx.Done()
		s.logger.Info("Shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Failed to shutdown HTTP server gracefully", zap.Error(err))
		}
	}()

	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	return nil
}

func (s *Server) GetMetrics() *Metrics {
	return s.metrics
}

func (s *Server) RecordMessage(status string) {
	s.metrics.MessagesTotal.WithLabelValues(status).Inc()
}

func (s *Server) RecordVerdict(action string) {
	s.metrics.VerdictsTotal.WithLabelValues(action).Inc()
}

func (s *Server) RecordCommand(command, status string) {
	s.metrics.CommandsTotal.WithLabelValues(command, status).Inc()
}

func (s *Server) RecordError(component, errorType string) {
	s.metrics.ErrorsTotal.WithLabelValues(component, errorType).Inc()
}

func (s *Server) RecordProcessingTime(duration time.Duration) {
	s.metrics.ProcessingTime.Observe(duration.Seconds())
}
