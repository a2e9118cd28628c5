package deta

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
)

// Observer provides hooks for monitoring SDK operations. Implementations
// should be fast and non-blocking; the SDK calls them synchronously on
// the request path.
//
// Example:
//
//	type printObserver struct{}
//
//	func (printObserver) OnRequestStart(method, path string) {
//	    fmt.Printf("-> %s %s\n", method, path)
//	}
type Observer interface {
	// OnRequestStart is called when an HTTP request starts.
	OnRequestStart(method, path string)

	// OnRequestEnd is called when an HTTP request completes, successfully
	// or not. err is nil on success.
	OnRequestEnd(method, path string, duration time.Duration, err error)

	// OnRetryAttempt is called before each retry attempt with the delay
	// about to be applied and the error that triggered the retry.
	OnRetryAttempt(method, path string, attempt int, delay time.Duration, err error)

	// OnCircuitBreakerStateChange is called when a circuit breaker
	// changes state.
	OnCircuitBreakerStateChange(endpoint string, oldState, newState CircuitState)
}

// NoopObserver is the default observer; it does nothing.
type NoopObserver struct{}

// OnRequestStart does nothing
func (n *NoopObserver) OnRequestStart(method, path string) {}

// OnRequestEnd does nothing
func (n *NoopObserver) OnRequestEnd(method, path string, duration time.Duration, err error) {}

// OnRetryAttempt does nothing
func (n *NoopObserver) OnRetryAttempt(method, path string, attempt int, delay time.Duration, err error) {
}

// OnCircuitBreakerStateChange does nothing
func (n *NoopObserver) OnCircuitBreakerStateChange(endpoint string, oldState, newState CircuitState) {
}

// MetricsCollector is a simple in-memory Observer implementation that
// counts requests, errors, and retries per endpoint and records
// latencies. Intended for debugging and tests; for production export use
// NewPrometheusObserver.
type MetricsCollector struct {
	mu                  sync.RWMutex
	requestCount        map[string]int64
	latencies           map[string][]time.Duration
	errorCount          map[string]int64
	retryCount          map[string]int64
	circuitStateChanges map[string]int64
}

// NewMetricsCollector creates a thread-safe in-memory metrics collector.
//
//	metrics := deta.NewMetricsCollector()
//	config := deta.DefaultConfig().WithObserver(metrics)
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		requestCount:        make(map[string]int64),
		latencies:           make(map[string][]time.Duration),
		errorCount:          make(map[string]int64),
		retryCount:          make(map[string]int64),
		circuitStateChanges: make(map[string]int64),
	}
}

// OnRequestStart increments the request count
func (m *MetricsCollector) OnRequestStart(method, path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[method+" "+path]++
}

// OnRequestEnd records request duration and errors
func (m *MetricsCollector) OnRequestEnd(method, path string, duration time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := method + " " + path
	m.latencies[key] = append(m.latencies[key], duration)
	if err != nil {
		m.errorCount[key]++
	}
}

// OnRetryAttempt increments the retry count
func (m *MetricsCollector) OnRetryAttempt(method, path string, attempt int, delay time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retryCount[method+" "+path]++
}

// OnCircuitBreakerStateChange tracks state changes
func (m *MetricsCollector) OnCircuitBreakerStateChange(endpoint string, oldState, newState CircuitState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.circuitStateChanges[endpoint]++
}

// GetMetrics returns a snapshot of current metrics. The returned map is
// a copy and safe to read without locks. Keys: "requests", "latencies",
// "errors", "retries", "circuit_breaker_state_changes".
func (m *MetricsCollector) GetMetrics() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	requestsCopy := make(map[string]int64, len(m.requestCount))
	for k, v := range m.requestCount {
		requestsCopy[k] = v
	}

	latenciesCopy := make(map[string][]time.Duration, len(m.latencies))
	for k, v := range m.latencies {
		latenciesCopy[k] = append([]time.Duration(nil), v...)
	}

	errorsCopy := make(map[string]int64, len(m.errorCount))
	for k, v := range m.errorCount {
		errorsCopy[k] = v
	}

	retriesCopy := make(map[string]int64, len(m.retryCount))
	for k, v := range m.retryCount {
		retriesCopy[k] = v
	}

	circuitChangesCopy := make(map[string]int64, len(m.circuitStateChanges))
	for k, v := range m.circuitStateChanges {
		circuitChangesCopy[k] = v
	}

	return map[string]interface{}{
		"requests":                      requestsCopy,
		"latencies":                     latenciesCopy,
		"errors":                        errorsCopy,
		"retries":                       retriesCopy,
		"circuit_breaker_state_changes": circuitChangesCopy,
	}
}

// LogObserver logs SDK operations through a logrus logger with
// structured fields. Successful requests log at debug level, failures
// and retries at warn.
//
//	logger := logrus.New()
//	config := deta.DefaultConfig().
//	    WithObserver(deta.NewLogObserver(logger))
type LogObserver struct {
	logger *logrus.Logger
}

// NewLogObserver creates an observer that logs through the given logger.
// If logger is nil, the logrus standard logger is used.
func NewLogObserver(logger *logrus.Logger) *LogObserver {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &LogObserver{logger: logger}
}

// OnRequestStart logs the request at debug level
func (l *LogObserver) OnRequestStart(method, path string) {
	l.logger.WithFields(logrus.Fields{
		"method": method,
		"path":   path,
	}).Debug("request started")
}

// OnRequestEnd logs the outcome; failures log at warn level
func (l *LogObserver) OnRequestEnd(method, path string, duration time.Duration, err error) {
	fields := logrus.Fields{
		"method":   method,
		"path":     path,
		"duration": duration,
	}
	if err != nil {
		l.logger.WithFields(fields).WithError(err).Warn("request failed")
		return
	}
	l.logger.WithFields(fields).Debug("request completed")
}

// OnRetryAttempt logs the retry at warn level
func (l *LogObserver) OnRetryAttempt(method, path string, attempt int, delay time.Duration, err error) {
	l.logger.WithFields(logrus.Fields{
		"method":  method,
		"path":    path,
		"attempt": attempt,
		"delay":   delay,
	}).WithError(err).Warn("retrying request")
}

// OnCircuitBreakerStateChange logs the transition at warn level
func (l *LogObserver) OnCircuitBreakerStateChange(endpoint string, oldState, newState CircuitState) {
	l.logger.WithFields(logrus.Fields{
		"endpoint": endpoint,
		"from":     oldState.String(),
		"to":       newState.String(),
	}).Warn("circuit breaker state changed")
}

// PrometheusObserver exports SDK operation metrics as Prometheus
// collectors: request totals, error totals, retry totals, and request
// duration histograms, labeled by method and endpoint class.
//
// Record keys are stripped from the endpoint label to keep cardinality
// bounded: every /items/{key} request shares the "items" label.
//
//	reg := prometheus.NewRegistry()
//	config := deta.DefaultConfig().
//	    WithObserver(deta.NewPrometheusObserver(reg))
type PrometheusObserver struct {
	requests     *prometheus.CounterVec
	errors       *prometheus.CounterVec
	retries      *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	circuitState *prometheus.CounterVec
}

// NewPrometheusObserver creates an observer registering its collectors
// with reg. If reg is nil, the default Prometheus registerer is used.
func NewPrometheusObserver(reg prometheus.Registerer) *PrometheusObserver {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &PrometheusObserver{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "deta",
			Name:      "client_requests_total",
			Help:      "Total number of requests issued by the client.",
		}, []string{"method", "endpoint"}),
		errors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "deta",
			Name:      "client_request_errors_total",
			Help:      "Total number of failed requests.",
		}, []string{"method", "endpoint"}),
		retries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "deta",
			Name:      "client_request_retries_total",
			Help:      "Total number of retry attempts.",
		}, []string{"method", "endpoint"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "deta",
			Name:      "client_request_duration_seconds",
			Help:      "Request latency distribution.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		circuitState: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "deta",
			Name:      "client_circuit_state_changes_total",
			Help:      "Total number of circuit breaker state transitions.",
		}, []string{"endpoint", "state"}),
	}
}

// OnRequestStart increments the request counter
func (p *PrometheusObserver) OnRequestStart(method, path string) {
	p.requests.WithLabelValues(method, endpointLabel(path)).Inc()
}

// OnRequestEnd records latency and errors
func (p *PrometheusObserver) OnRequestEnd(method, path string, duration time.Duration, err error) {
	endpoint := endpointLabel(path)
	p.duration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	if err != nil {
		p.errors.WithLabelValues(method, endpoint).Inc()
	}
}

// OnRetryAttempt increments the retry counter
func (p *PrometheusObserver) OnRetryAttempt(method, path string, attempt int, delay time.Duration, err error) {
	p.retries.WithLabelValues(method, endpointLabel(path)).Inc()
}

// OnCircuitBreakerStateChange counts the transition by target state
func (p *PrometheusObserver) OnCircuitBreakerStateChange(endpoint string, oldState, newState CircuitState) {
	p.circuitState.WithLabelValues(endpointLabel(endpoint), newState.String()).Inc()
}

// endpointLabel reduces a request path to a bounded-cardinality label.
func endpointLabel(path string) string {
	if strings.Contains(path, "/query") {
		return "query"
	}
	if strings.Contains(path, "/items") {
		return "items"
	}
	return "other"
}

// observedCircuitBreaker wraps a circuit breaker so state changes reach
// the observer.
type observedCircuitBreaker struct {
	cb       CircuitBreaker
	endpoint string
	observer Observer

	mu        sync.Mutex
	lastState CircuitState
}

func newObservedCircuitBreaker(cb CircuitBreaker, endpoint string, observer Observer) CircuitBreaker {
	return &observedCircuitBreaker{
		cb:        cb,
		endpoint:  endpoint,
		observer:  observer,
		lastState: cb.State(),
	}
}

// Execute runs the function and notifies state changes
func (o *observedCircuitBreaker) Execute(fn func() error) error {
	err := o.cb.Execute(fn)
	o.notifyIfChanged(o.cb.State())
	return err
}

// State returns the current state
func (o *observedCircuitBreaker) State() CircuitState {
	return o.cb.State()
}

// Reset resets the circuit and notifies of state change
func (o *observedCircuitBreaker) Reset() {
	o.cb.Reset()
	o.notifyIfChanged(o.cb.State())
}

// notifyIfChanged fires the observer hook once per observed transition.
func (o *observedCircuitBreaker) notifyIfChanged(current CircuitState) {
	o.mu.Lock()
	changed := current != o.lastState
	last := o.lastState
	if changed {
		o.lastState = current
	}
	o.mu.Unlock()

	if changed {
		o.observer.OnCircuitBreakerStateChange(o.endpoint, last, current)
	}
}

// CompositeObserver fans observer callbacks out to multiple observers.
// A panicking observer is recovered so it cannot affect the others.
type CompositeObserver struct {
	observers []Observer
}

// NewCompositeObserver creates an observer that delegates to multiple
// observers, e.g. a LogObserver plus a PrometheusObserver.
func NewCompositeObserver(observers ...Observer) Observer {
	return &CompositeObserver{observers: observers}
}

// OnRequestStart notifies all observers
func (c *CompositeObserver) OnRequestStart(method, path string) {
	for _, obs := range c.observers {
		safeNotify(func() { obs.OnRequestStart(method, path) })
	}
}

// OnRequestEnd notifies all observers
func (c *CompositeObserver) OnRequestEnd(method, path string, duration time.Duration, err error) {
	for _, obs := range c.observers {
		safeNotify(func() { obs.OnRequestEnd(method, path, duration, err) })
	}
}

// OnRetryAttempt notifies all observers
func (c *CompositeObserver) OnRetryAttempt(method, path string, attempt int, delay time.Duration, err error) {
	for _, obs := range c.observers {
		safeNotify(func() { obs.OnRetryAttempt(method, path, attempt, delay, err) })
	}
}

// OnCircuitBreakerStateChange notifies all observers
func (c *CompositeObserver) OnCircuitBreakerStateChange(endpoint string, oldState, newState CircuitState) {
	for _, obs := range c.observers {
		safeNotify(func() { obs.OnCircuitBreakerStateChange(endpoint, oldState, newState) })
	}
}

func safeNotify(fn func()) {
	defer func() {
		_ = recover()
	}()
	fn()
}
