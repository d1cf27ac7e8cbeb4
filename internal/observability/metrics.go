package observability

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/yungbote/mentorbridge/internal/platform/envutil"
	"github.com/yungbote/mentorbridge/internal/platform/logger"
)

type Metrics struct {
	apiRequests *CounterVec
	apiLatency  *HistogramVec
	apiInflight *Gauge
	apiReqTotal *Counter
	apiReqError *Counter

	wizardTransitions *CounterVec
	submissions       *CounterVec
	otpSends          *CounterVec

	checkoutOutcomes *CounterVec
	checkoutPending  *Gauge

	backendCalls   *CounterVec
	backendLatency *HistogramVec

	redisUp   *Gauge
	redisPing *Gauge
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool {
	return envutil.Bool("METRICS_ENABLED", false)
}

func Current() *Metrics {
	return instance
}

func scrapeInterval() time.Duration {
	return envutil.Duration("METRICS_SCRAPE_INTERVAL", 15*time.Second)
}

// Init returns nil when metrics are disabled; every method is nil-safe.
func Init(log *logger.Logger) *Metrics {
	if !Enabled() {
		return nil
	}
	initOnce.Do(func() {
		instance = newMetrics()
		if log != nil {
			log.Info("metrics enabled")
		}
	})
	return instance
}

func newMetrics() *Metrics {
	return &Metrics{
		apiRequests: NewCounterVec("mb_api_requests_total", "Total API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency: NewHistogramVec(
			"mb_api_request_duration_seconds",
			"API request latency in seconds by method/route/status.",
			[]string{"method", "route", "status"},
			[]float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		),
		apiInflight: NewGauge("mb_api_inflight_requests", "In-flight API requests."),
		apiReqTotal: NewCounter("mb_api_requests_total_all", "Total API requests (all)."),
		apiReqError: NewCounter("mb_api_requests_error_total", "API requests answered with a 5xx status."),

		wizardTransitions: NewCounterVec("mb_wizard_transitions_total", "Wizard step transitions by action/from/to.", []string{"action", "from", "to"}),
		submissions:       NewCounterVec("mb_assessment_submissions_total", "Assessment submissions by outcome.", []string{"outcome"}),
		otpSends:          NewCounterVec("mb_otp_sends_total", "Email OTP sends by outcome.", []string{"outcome"}),

		checkoutOutcomes: NewCounterVec("mb_checkout_outcomes_total", "Checkout attempts by booking type/status/reason.", []string{"booking_type", "status", "reason"}),
		checkoutPending:  NewGauge("mb_checkout_pending", "Checkout attempts waiting on the hosted UI."),

		backendCalls: NewCounterVec("mb_backend_requests_total", "Backend requests by method/path/status.", []string{"method", "path", "status"}),
		backendLatency: NewHistogramVec(
			"mb_backend_request_duration_seconds",
			"Backend request latency in seconds by method/path.",
			[]string{"method", "path"},
			[]float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15},
		),

		redisUp:   NewGauge("mb_redis_up", "Redis reachability (1 up, 0 down)."),
		redisPing: NewGauge("mb_redis_ping_seconds", "Last redis ping latency."),
	}
}

func (m *Metrics) StartServer(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil {
		return
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           http.HandlerFunc(m.WriteHTTP),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if log != nil {
				log.Error("metrics server failed", "error", err, "addr", addr)
			}
		}
	}()
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

type promWriter interface {
	WritePrometheus(w io.Writer) error
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	for _, c := range []promWriter{
		m.apiRequests, m.apiLatency, m.apiInflight, m.apiReqTotal, m.apiReqError,
		m.wizardTransitions, m.submissions, m.otpSends,
		m.checkoutOutcomes, m.checkoutPending,
		m.backendCalls, m.backendLatency,
		m.redisUp, m.redisPing,
	} {
		if err := c.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unknown"
	}
	if status == "" {
		status = "0"
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route, status)
	m.apiReqTotal.Inc()
	if isServerErrorStatus(status) {
		m.apiReqError.Inc()
	}
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

func (m *Metrics) IncWizardTransition(action, from, to string) {
	if m == nil {
		return
	}
	m.wizardTransitions.Inc(action, from, to)
}

func (m *Metrics) IncSubmission(outcome string) {
	if m == nil {
		return
	}
	m.submissions.Inc(outcome)
}

func (m *Metrics) IncOTPSend(outcome string) {
	if m == nil {
		return
	}
	m.otpSends.Inc(outcome)
}

func (m *Metrics) IncCheckout(bookingType, status, reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "none"
	}
	m.checkoutOutcomes.Inc(bookingType, status, reason)
}

func (m *Metrics) SetCheckoutPending(n int) {
	if m == nil {
		return
	}
	m.checkoutPending.Set(float64(n))
}

func (m *Metrics) ObserveBackend(method, path, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.backendCalls.Inc(method, path, status)
	m.backendLatency.Observe(dur.Seconds(), method, path)
}

// Pinger is the part of the redis client the collector probes.
type Pinger interface {
	Ping(ctx context.Context) error
}

func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, rdb Pinger) {
	if m == nil || rdb == nil {
		return
	}
	interval := scrapeInterval()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				start := time.Now()
				if err := rdb.Ping(ctx); err != nil {
					m.redisUp.Set(0)
					if log != nil {
						log.Warn("metrics: redis ping failed", "error", err)
					}
					continue
				}
				m.redisUp.Set(1)
				m.redisPing.Set(time.Since(start).Seconds())
			}
		}
	}()
}
