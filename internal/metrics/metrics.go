package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the desk engine.
type Metrics struct {
	OrdersPlaced      *prometheus.CounterVec // labels: broker
	OrdersFailed      *prometheus.CounterVec // labels: broker
	FailoverContinues prometheus.Counter

	PlansCreated    prometheus.Counter
	PlanTransitions *prometheus.CounterVec // labels: status
	ActivePlans     prometheus.Gauge
	TickDur         prometheus.Histogram
	SquareOffs      prometheus.Counter

	JournalWriteDur prometheus.Histogram
}

// NewMetrics registers and returns all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		OrdersPlaced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deskengine_orders_placed_total",
			Help: "Orders confirmed per broker",
		}, []string{"broker"}),
		OrdersFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deskengine_orders_failed_total",
			Help: "Orders rejected per broker",
		}, []string{"broker"}),
		FailoverContinues: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "deskengine_failover_continues_total",
			Help: "Times execution continued to the next candidate broker",
		}),

		PlansCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "deskengine_plans_created_total",
			Help: "Deployment plans accepted",
		}),
		PlanTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deskengine_plan_transitions_total",
			Help: "Deployment plan status transitions (by target status)",
		}, []string{"status"}),
		ActivePlans: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "deskengine_active_plans",
			Help: "Plans currently in a non-terminal status",
		}),
		TickDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "deskengine_tick_duration_seconds",
			Help:    "Deployment engine batch tick latency",
			Buckets: prometheus.DefBuckets,
		}),
		SquareOffs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "deskengine_square_offs_total",
			Help: "Global square-off invocations",
		}),

		JournalWriteDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "deskengine_journal_write_duration_seconds",
			Help:    "SQLite journal insert latency",
			Buckets: prometheus.DefBuckets,
		}),
	}

	prometheus.MustRegister(
		m.OrdersPlaced,
		m.OrdersFailed,
		m.FailoverContinues,
		m.PlansCreated,
		m.PlanTransitions,
		m.ActivePlans,
		m.TickDur,
		m.SquareOffs,
		m.JournalWriteDur,
	)

	return m
}

// HealthStatus represents the desk's dependency health.
type HealthStatus struct {
	mu sync.RWMutex

	RedisConnected bool      `json:"redis_connected"`
	JournalOK      bool      `json:"journal_ok"`
	BrokerOK       bool      `json:"broker_ok"`
	LastTickAt     time.Time `json:"last_tick_at"`

	RedisLatencyMs   float64   `json:"redis_latency_ms"`
	JournalLatencyMs float64   `json:"journal_latency_ms"`
	LastCheckAt      time.Time `json:"last_check_at"`
	StartedAt        time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{StartedAt: time.Now()}
}

func (h *HealthStatus) SetRedisConnected(v bool) {
	h.mu.Lock()
	h.RedisConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetJournalOK(v bool) {
	h.mu.Lock()
	h.JournalOK = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetBrokerOK(v bool) {
	h.mu.Lock()
	h.BrokerOK = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastTickAt(t time.Time) {
	h.mu.Lock()
	h.LastTickAt = t
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckJournal pings the journal database and records latency + health.
func (h *HealthStatus) CheckJournal(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.JournalOK = err == nil
	h.JournalLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if sqlDB != nil {
					h.CheckJournal(probeCtx, sqlDB)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK
	if !h.BrokerOK || !h.JournalOK {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}

	tickAge := ""
	if !h.LastTickAt.IsZero() {
		tickAge = time.Since(h.LastTickAt).Round(time.Millisecond).String()
	}

	status := struct {
		Status           string  `json:"status"`
		Uptime           string  `json:"uptime"`
		BrokerOK         bool    `json:"broker_ok"`
		RedisConnected   bool    `json:"redis_connected"`
		RedisLatencyMs   float64 `json:"redis_latency_ms"`
		JournalOK        bool    `json:"journal_ok"`
		JournalLatencyMs float64 `json:"journal_latency_ms"`
		LastTickAt       string  `json:"last_tick_at"`
		TickAge          string  `json:"tick_age"`
		LastCheckAt      string  `json:"last_check_at"`
	}{
		Status:           overallStatus,
		Uptime:           time.Since(h.StartedAt).Round(time.Second).String(),
		BrokerOK:         h.BrokerOK,
		RedisConnected:   h.RedisConnected,
		RedisLatencyMs:   h.RedisLatencyMs,
		JournalOK:        h.JournalOK,
		JournalLatencyMs: h.JournalLatencyMs,
		LastTickAt:       h.LastTickAt.Format(time.RFC3339),
		TickAge:          tickAge,
		LastCheckAt:      h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		health: health,
		addr:   addr,
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
