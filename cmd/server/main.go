// Package main is the entry point for the Whale Copy Engine, a service
// that tracks high-volume traders on BNB Chain and decides whether an
// observed trade is worth copying, and at what size.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/yourorg/whale-copy-engine/internal/aggregate"
	"github.com/yourorg/whale-copy-engine/internal/audit"
	"github.com/yourorg/whale-copy-engine/internal/circuitbreaker"
	"github.com/yourorg/whale-copy-engine/internal/config"
	"github.com/yourorg/whale-copy-engine/internal/discovery"
	"github.com/yourorg/whale-copy-engine/internal/engine"
	"github.com/yourorg/whale-copy-engine/internal/fetch"
	"github.com/yourorg/whale-copy-engine/internal/model"
	otelsetup "github.com/yourorg/whale-copy-engine/internal/otel"
	"github.com/yourorg/whale-copy-engine/internal/recommend"
	"github.com/yourorg/whale-copy-engine/internal/store"
	"github.com/yourorg/whale-copy-engine/internal/validation"
)

// startTime records when the service was initialized for uptime reporting
var startTime = time.Now()

// Server wires the decision engine behind a thin HTTP adapter
type Server struct {
	cfg        config.Config
	aggregator *aggregate.Aggregator
	engine     *engine.Engine
	breaker    *circuitbreaker.CircuitBreaker
	exporter   *audit.Exporter
	metrics    *serverMetrics
	rateLimit  *rate.Limiter
	server     *http.Server
}

// serverMetrics holds Prometheus metrics for the server
type serverMetrics struct {
	decisionCounter  *prometheus.CounterVec
	decisionDuration *prometheus.HistogramVec
	fallbackCounter  *prometheus.CounterVec
	ingestCounter    *prometheus.CounterVec
	whaleCount       prometheus.Gauge
}

// registerMetrics sets up Prometheus metrics collection
func registerMetrics() *serverMetrics {
	m := &serverMetrics{
		decisionCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "whale_copy_decisions_total",
				Help: "Total number of decisions issued",
			},
			[]string{"status", "strategy"},
		),
		decisionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "whale_copy_decision_duration_seconds",
				Help:    "Decision latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"strategy"},
		),
		fallbackCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "whale_copy_advisory_fallbacks_total",
				Help: "Total number of advisory fallbacks by reason",
			},
			[]string{"reason"},
		),
		ingestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "whale_copy_trade_events_total",
				Help: "Total number of trade events by disposition",
			},
			[]string{"disposition"},
		),
		whaleCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "whale_copy_tracked_whales",
				Help: "Number of tracked whales",
			},
		),
	}

	prometheus.MustRegister(
		m.decisionCounter,
		m.decisionDuration,
		m.fallbackCounter,
		m.ingestCounter,
		m.whaleCount,
	)

	return m
}

// main is the entry point for the application
func main() {
	setupLogging()

	cfg := config.Load()

	shutdownTracer := otelsetup.InitTracer(cfg)
	defer shutdownTracer()

	server := NewServer(cfg)
	server.Start()
}

// setupLogging configures the logging for the application
func setupLogging() {
	logFormat := strings.ToLower(os.Getenv("LOG_FORMAT"))
	logLevel := strings.ToLower(os.Getenv("LOG_LEVEL"))

	switch logFormat {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	switch logLevel {
	case "debug":
		logrus.SetLevel(logrus.DebugLevel)
	case "info":
		logrus.SetLevel(logrus.InfoLevel)
	case "warn", "warning":
		logrus.SetLevel(logrus.WarnLevel)
	case "error":
		logrus.SetLevel(logrus.ErrorLevel)
	default:
		logrus.SetLevel(logrus.InfoLevel)
	}

	logrus.Info("Logging configured")
}

// NewServer assembles the store, aggregator, recommenders, and facade
func NewServer(cfg config.Config) *Server {
	st := store.New()

	opts := validation.DefaultOptions()
	opts.MinTradeUSD = cfg.MinTradeUSD
	opts.NativePriceUSD = cfg.BNBPriceUSD

	aggregator := aggregate.New(st, opts, nil)

	var breaker *circuitbreaker.CircuitBreaker
	if getEnvBool("ENABLE_CIRCUIT_BREAKER", true) {
		breaker = circuitbreaker.New(circuitbreaker.Options{
			FailureThreshold: cfg.BreakerFailureThreshold,
			Cooldown:         cfg.BreakerCooldown,
			OnTrip: func(reason string) {
				logrus.Warnf("Advisory circuit tripped: %s", reason)
			},
		})
	}

	advisory := recommend.NewAdvisory(fetch.NewOpenRouterClient(cfg), cfg.AdvisoryModel, breaker)
	heuristic := recommend.NewHeuristic()

	var metricsRegistry *serverMetrics
	if getEnvBool("ENABLE_METRICS", true) {
		metricsRegistry = registerMetrics()
	}

	var exporter *audit.Exporter
	if cfg.WebhookURL != "" {
		exp, err := audit.NewExporter(audit.ExporterConfig{
			WebhookURL:    cfg.WebhookURL,
			WebhookAPIKey: cfg.WebhookAPIKey,
			BatchSize:     getEnvInt("AUDIT_BATCH_SIZE", 100),
			FlushInterval: getDurationOrDefault("AUDIT_FLUSH_INTERVAL", time.Minute),
		})
		if err != nil {
			logrus.Warnf("Failed to initialize audit exporter: %v", err)
		} else {
			exporter = exp
			logrus.Info("Decision audit exporter initialized")
		}
	}

	s := &Server{
		cfg:        cfg,
		aggregator: aggregator,
		engine:     engine.New(st, advisory, heuristic),
		breaker:    breaker,
		exporter:   exporter,
		metrics:    metricsRegistry,
		rateLimit: rate.NewLimiter(
			rate.Limit(getEnvFloat("RATE_LIMIT_RPS", 10.0)),
			getEnvInt("RATE_LIMIT_BURST", 20),
		),
	}

	logrus.WithFields(logrus.Fields{
		"port":            cfg.Port,
		"advisory_model":  cfg.AdvisoryModel,
		"min_trade_usd":   cfg.MinTradeUSD,
		"circuit_breaker": breaker != nil,
		"metrics":         metricsRegistry != nil,
		"subgraph":        cfg.SubgraphURL != "",
	}).Info("Server initialized")

	return s
}

// Start begins the HTTP server, the background tasks, and sets up
// graceful shutdown
func (s *Server) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Background whale discovery; seed demo whales when no subgraph is
	// configured so the engine answers locally
	if s.cfg.SubgraphURL != "" {
		d := discovery.New(fetch.NewSubgraphClient(s.cfg), s.aggregator, s.cfg.DiscoveryInterval)
		go d.Run(ctx)
	} else {
		discovery.SeedWhales(s.aggregator)
	}

	if s.exporter != nil {
		go s.exporter.Run(ctx)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/decide", s.handleDecide)
	mux.HandleFunc("/ingest", s.handleIngest)
	mux.HandleFunc("/outcomes", s.handleOutcomes)
	mux.HandleFunc("/whales", s.handleWhales)
	mux.HandleFunc("/whales/", s.handleWhale)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)
	mux.Handle("/metrics", promhttp.Handler())

	s.server = &http.Server{
		Addr:         ":" + s.cfg.Port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logrus.Infof("Server starting on port %s", s.cfg.Port)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Error starting server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Server shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		logrus.Fatalf("Server shutdown failed: %v", err)
	}

	logrus.Info("Server stopped")
}

// decideRequest is the decision endpoint's input schema
type decideRequest struct {
	WhaleAddress string                 `json:"whaleAddress"`
	Strategy     string                 `json:"strategy,omitempty"`
	Trade        model.TradeDetails     `json:"trade"`
	User         model.UserContext      `json:"user"`
	Market       model.MarketConditions `json:"market,omitempty"`
}

// decideResponse is the decision endpoint's output schema
type decideResponse struct {
	Recommendation model.Recommendation `json:"recommendation"`
	Strategy       string               `json:"strategy"`
	Fallback       bool                 `json:"fallback"`
	FallbackReason string               `json:"fallbackReason,omitempty"`
	LatencyMs      int64                `json:"latencyMs"`
}

// handleDecide runs one copy/no-copy decision
func (s *Server) handleDecide(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !s.rateLimit.Allow() {
		s.errorResponse(w, http.StatusTooManyRequests, "Rate limit exceeded")
		return
	}

	var req decideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.WhaleAddress == "" {
		s.errorResponse(w, http.StatusBadRequest, "whaleAddress is required")
		return
	}

	ctx, span := otelsetup.Tracer().Start(r.Context(), "decide")
	defer span.End()

	outcome, err := s.engine.Decide(ctx, req.WhaleAddress,
		recommend.Strategy(req.Strategy), req.Trade, req.User, req.Market)
	if err != nil {
		otelsetup.RecordError(ctx, err)
		if errors.Is(err, engine.ErrWhaleNotFound) {
			if s.metrics != nil {
				s.metrics.decisionCounter.WithLabelValues("not_found", req.Strategy).Inc()
			}
			s.errorResponse(w, http.StatusNotFound, "Whale not tracked: "+req.WhaleAddress)
			return
		}
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	if s.metrics != nil {
		s.metrics.decisionCounter.WithLabelValues("success", string(outcome.Strategy)).Inc()
		s.metrics.decisionDuration.WithLabelValues(string(outcome.Strategy)).Observe(time.Since(start).Seconds())
		if outcome.Fallback {
			s.metrics.fallbackCounter.WithLabelValues(outcome.FallbackReason).Inc()
		}
	}

	if s.exporter != nil {
		s.exporter.Add(audit.Record{
			WhaleAddress:   model.NormalizeAddress(req.WhaleAddress),
			Strategy:       string(outcome.Strategy),
			Recommendation: outcome.Recommendation,
			Fallback:       outcome.Fallback,
			FallbackReason: outcome.FallbackReason,
			IssuedAt:       time.Now().Unix(),
		})
	}

	writeJSON(w, http.StatusOK, decideResponse{
		Recommendation: outcome.Recommendation,
		Strategy:       string(outcome.Strategy),
		Fallback:       outcome.Fallback,
		FallbackReason: outcome.FallbackReason,
		LatencyMs:      time.Since(start).Milliseconds(),
	})
}

// tradeEventWire is the transport form of a trade event: raw amounts
// arrive as decimal strings because they exceed JSON's safe integer range
type tradeEventWire struct {
	Sender    string `json:"sender"`
	AmountIn  string `json:"amountIn"`
	AmountOut string `json:"amountOut"`
	Timestamp int64  `json:"timestamp"`
	TxHash    string `json:"txHash"`
}

// handleIngest accepts a batch of trade events for environments without
// a streaming transport
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var events []tradeEventWire
	if err := json.NewDecoder(r.Body).Decode(&events); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	recorded, skipped := 0, 0
	for _, wireEvent := range events {
		event, err := wireEvent.toEvent()
		if err != nil {
			s.errorResponse(w, http.StatusBadRequest, err.Error())
			return
		}
		if _, ok := s.aggregator.Ingest(event); ok {
			recorded++
		} else {
			skipped++
		}
	}

	if s.metrics != nil {
		s.metrics.ingestCounter.WithLabelValues("recorded").Add(float64(recorded))
		s.metrics.ingestCounter.WithLabelValues("skipped").Add(float64(skipped))
		s.metrics.whaleCount.Set(float64(s.aggregator.Store().Count()))
	}

	writeJSON(w, http.StatusOK, map[string]int{
		"recorded": recorded,
		"skipped":  skipped,
	})
}

func (e tradeEventWire) toEvent() (model.TradeEvent, error) {
	amountIn, ok := new(big.Int).SetString(e.AmountIn, 10)
	if !ok {
		return model.TradeEvent{}, errors.New("invalid amountIn: " + e.AmountIn)
	}
	amountOut, ok := new(big.Int).SetString(e.AmountOut, 10)
	if !ok {
		return model.TradeEvent{}, errors.New("invalid amountOut: " + e.AmountOut)
	}
	return model.TradeEvent{
		Sender:    common.HexToAddress(e.Sender),
		AmountIn:  amountIn,
		AmountOut: amountOut,
		Timestamp: e.Timestamp,
		TxHash:    common.HexToHash(e.TxHash),
	}, nil
}

// outcomeWire is one settlement confirmation
type outcomeWire struct {
	WhaleAddress string  `json:"whaleAddress"`
	TxHash       string  `json:"txHash"`
	Success      bool    `json:"success"`
	ProfitUSD    float64 `json:"profitUSD"`
}

// handleOutcomes applies settlement confirmations to recorded trades
func (s *Server) handleOutcomes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var outcomes []outcomeWire
	if err := json.NewDecoder(r.Body).Decode(&outcomes); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	applied := 0
	for _, o := range outcomes {
		if _, ok := s.aggregator.MarkOutcome(o.WhaleAddress, common.HexToHash(o.TxHash), o.Success, o.ProfitUSD); ok {
			applied++
		}
	}

	writeJSON(w, http.StatusOK, map[string]int{
		"applied": applied,
		"ignored": len(outcomes) - applied,
	})
}

// handleWhales lists tracked whales, best win rate first
func (s *Server) handleWhales(w http.ResponseWriter, r *http.Request) {
	limit := getQueryInt(r, "limit", 10)

	var whales []model.WhaleRecord
	if r.URL.Query().Get("active") == "true" {
		whales = s.engine.ActiveWhales()
		if limit > 0 && len(whales) > limit {
			whales = whales[:limit]
		}
	} else {
		whales = s.engine.TopWhales(limit)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"whales": whales,
		"count":  len(whales),
	})
}

// handleWhale returns one whale by address
func (s *Server) handleWhale(w http.ResponseWriter, r *http.Request) {
	address := strings.TrimPrefix(r.URL.Path, "/whales/")
	if address == "" {
		s.errorResponse(w, http.StatusBadRequest, "Address is required")
		return
	}

	rec, err := s.engine.Whale(address)
	if err != nil {
		s.errorResponse(w, http.StatusNotFound, "Whale not tracked: "+address)
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// handleHealth is a simple health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "OK",
		"version":   "1.0.0",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleStatus provides detailed service status information
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":         "operational",
		"uptime":         time.Since(startTime).String(),
		"version":        "1.0.0",
		"tracked_whales": s.aggregator.Store().Count(),
		"configuration": map[string]interface{}{
			"advisory_model":  s.cfg.AdvisoryModel,
			"min_trade_usd":   s.cfg.MinTradeUSD,
			"circuit_breaker": s.breaker != nil,
		},
	}

	if s.breaker != nil {
		status["circuit_state"] = s.breaker.GetState().String()
		if reason := s.breaker.LastFailure(); reason != "" {
			status["circuit_last_failure"] = reason
		}
	}

	writeJSON(w, http.StatusOK, status)
}

// errorResponse returns a formatted JSON error
func (s *Server) errorResponse(w http.ResponseWriter, statusCode int, errorMsg string) {
	logrus.Warn(errorMsg)
	writeJSON(w, statusCode, map[string]interface{}{
		"status": "error",
		"error":  errorMsg,
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}
