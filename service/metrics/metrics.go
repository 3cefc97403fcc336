package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// Following the explicit dependency injection pattern, this struct
// is passed to all components that need to record metrics.
type Metrics struct {
	// Solana RPC Metrics
	solanaRPCCallsTotal    *prometheus.CounterVec
	solanaRPCCallDuration  *prometheus.HistogramVec
	solanaRPCRateLimitHits *prometheus.CounterVec
	solanaRPCRetries       *prometheus.CounterVec

	// Trade Pipeline Metrics
	tradesTotal            *prometheus.CounterVec
	tradeStageDuration     *prometheus.HistogramVec
	broadcastAttempts      *prometheus.HistogramVec
	confirmationDuration   *prometheus.HistogramVec
	ledgerDuplicatesTotal  prometheus.Counter
	tradeValidationsFailed *prometheus.CounterVec

	// Trade API Metrics
	tradeAPIRequestsTotal   *prometheus.CounterVec
	tradeAPIRequestDuration *prometheus.HistogramVec

	// Wallet Metrics
	walletConnected       prometheus.Gauge
	walletSignaturesTotal *prometheus.CounterVec

	// HTTP Metrics
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsTotal    *prometheus.CounterVec
	sseActiveConnections *prometheus.GaugeVec
	sseEventsSent        *prometheus.CounterVec

	// NATS Metrics
	natsMessagesPublished *prometheus.CounterVec
	natsPublishDuration   *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		// Solana RPC Metrics
		solanaRPCCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_calls_total",
				Help: "Total number of Solana RPC calls by method and status",
			},
			[]string{"method", "status", "endpoint"},
		),
		solanaRPCCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solana_rpc_call_duration_seconds",
				Help:    "Duration of Solana RPC calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"method", "endpoint"},
		),
		solanaRPCRateLimitHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_rate_limit_hits_total",
				Help: "Total number of Solana RPC rate limit hits (429 errors)",
			},
			[]string{"endpoint"},
		),
		solanaRPCRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_retries_total",
				Help: "Total number of Solana RPC retry attempts",
			},
			[]string{"method", "reason"},
		),

		// Trade Pipeline Metrics
		tradesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trades_total",
				Help: "Total number of trade pipeline runs by direction, status and failure reason",
			},
			[]string{"direction", "status", "reason"},
		),
		tradeStageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "trade_stage_duration_seconds",
				Help:    "Duration of each trade pipeline stage in seconds",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"stage", "status"},
		),
		broadcastAttempts: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "trade_broadcast_attempts",
				Help:    "Number of submission attempts needed per broadcast",
				Buckets: []float64{1, 2, 3, 4, 5, 10},
			},
			[]string{"status"},
		),
		confirmationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "trade_confirmation_duration_seconds",
				Help:    "Time from broadcast to confirmation outcome in seconds",
				Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 90},
			},
			[]string{"outcome"},
		),
		ledgerDuplicatesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "trade_ledger_duplicates_total",
				Help: "Total number of completed records dropped because their signature was already recorded",
			},
		),
		tradeValidationsFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trade_validations_failed_total",
				Help: "Total number of trade requests rejected by validation",
			},
			[]string{"field"},
		),

		// Trade API Metrics
		tradeAPIRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trade_api_requests_total",
				Help: "Total number of trade-construction service requests",
			},
			[]string{"operation", "status"},
		),
		tradeAPIRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "trade_api_request_duration_seconds",
				Help:    "Duration of trade-construction service requests in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"operation"},
		),

		// Wallet Metrics
		walletConnected: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "wallet_connected",
				Help: "1 when a wallet session is connected, 0 otherwise",
			},
		),
		walletSignaturesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wallet_signature_requests_total",
				Help: "Total number of wallet signing requests by result",
			},
			[]string{"result"},
		),

		// HTTP Metrics
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
			},
			[]string{"handler", "method", "status"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"handler", "method", "status"},
		),
		sseActiveConnections: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sse_active_connections",
				Help: "Number of active SSE connections",
			},
			[]string{"stream"},
		),
		sseEventsSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sse_events_sent_total",
				Help: "Total number of SSE events sent",
			},
			[]string{"stream", "event_type"},
		),

		// NATS Metrics
		natsMessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nats_messages_published_total",
				Help: "Total number of NATS messages published",
			},
			[]string{"subject", "status"},
		),
		natsPublishDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nats_publish_duration_seconds",
				Help:    "Duration of NATS publish operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"subject"},
		),
	}
}

// Solana RPC metric helpers

// RecordRPCCall records a Solana RPC call with duration.
func (m *Metrics) RecordRPCCall(method, status, endpoint string, duration float64) {
	m.solanaRPCCallsTotal.WithLabelValues(method, status, endpoint).Inc()
	m.solanaRPCCallDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// RecordRateLimitHit records a rate limit hit (429 error).
func (m *Metrics) RecordRateLimitHit(endpoint string) {
	m.solanaRPCRateLimitHits.WithLabelValues(endpoint).Inc()
}

// RecordRPCRetry records a retry attempt.
func (m *Metrics) RecordRPCRetry(method, reason string) {
	m.solanaRPCRetries.WithLabelValues(method, reason).Inc()
}

// Trade pipeline metric helpers

// RecordTrade records the outcome of one pipeline run.
func (m *Metrics) RecordTrade(direction, status, reason string) {
	m.tradesTotal.WithLabelValues(direction, status, reason).Inc()
}

// RecordStage records the duration of a single pipeline stage.
func (m *Metrics) RecordStage(stage string, err error, duration float64) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.tradeStageDuration.WithLabelValues(stage, status).Observe(duration)
}

// RecordBroadcastAttempts records how many submissions a broadcast took.
func (m *Metrics) RecordBroadcastAttempts(status string, attempts int) {
	m.broadcastAttempts.WithLabelValues(status).Observe(float64(attempts))
}

// RecordConfirmation records how long confirmation took to resolve.
func (m *Metrics) RecordConfirmation(outcome string, duration float64) {
	m.confirmationDuration.WithLabelValues(outcome).Observe(duration)
}

// RecordLedgerDuplicate records a completed record dropped as a duplicate.
func (m *Metrics) RecordLedgerDuplicate() {
	m.ledgerDuplicatesTotal.Inc()
}

// RecordValidationFailure records a trade request rejected on the given field.
func (m *Metrics) RecordValidationFailure(field string) {
	m.tradeValidationsFailed.WithLabelValues(field).Inc()
}

// Trade API metric helpers

// RecordTradeAPIRequest records a request to the trade-construction service.
func (m *Metrics) RecordTradeAPIRequest(operation string, err error, duration float64) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.tradeAPIRequestsTotal.WithLabelValues(operation, status).Inc()
	m.tradeAPIRequestDuration.WithLabelValues(operation).Observe(duration)
}

// Wallet metric helpers

// RecordWalletConnected sets the wallet connection gauge.
func (m *Metrics) RecordWalletConnected(connected bool) {
	if connected {
		m.walletConnected.Set(1)
		return
	}
	m.walletConnected.Set(0)
}

// RecordSignatureRequest records a wallet signing request by result.
func (m *Metrics) RecordSignatureRequest(result string) {
	m.walletSignaturesTotal.WithLabelValues(result).Inc()
}

// HTTP metric helpers

// RecordHTTPRequest records an HTTP request with duration.
func (m *Metrics) RecordHTTPRequest(handler, method string, statusCode int, duration float64) {
	status := statusCodeToString(statusCode)
	m.httpRequestDuration.WithLabelValues(handler, method, status).Observe(duration)
	m.httpRequestsTotal.WithLabelValues(handler, method, status).Inc()
}

// RecordSSEConnectionChange records a change in SSE connection count.
func (m *Metrics) RecordSSEConnectionChange(stream string, delta float64) {
	m.sseActiveConnections.WithLabelValues(stream).Add(delta)
}

// RecordSSEEventSent records an SSE event being sent.
func (m *Metrics) RecordSSEEventSent(stream, eventType string) {
	m.sseEventsSent.WithLabelValues(stream, eventType).Inc()
}

// NATS metric helpers

// RecordNATSPublish records a NATS publish operation.
func (m *Metrics) RecordNATSPublish(subject, status string, duration float64) {
	m.natsMessagesPublished.WithLabelValues(subject, status).Inc()
	m.natsPublishDuration.WithLabelValues(subject).Observe(duration)
}

// Helper functions

func statusCodeToString(code int) string {
	// Group status codes by class
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "unknown"
	}
}
