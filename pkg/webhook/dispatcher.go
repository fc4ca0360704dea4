// Package webhook matches store events against registrations and performs
// asynchronous, signed, deliberately unreliable deliveries. Delivery never
// blocks or fails the request that triggered the event.
package webhook

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/expr-lang/expr"

	"github.com/trackmock/trackmock/pkg/jql"
	"github.com/trackmock/trackmock/pkg/logging"
	"github.com/trackmock/trackmock/pkg/store"
)

// Config tunes delivery behavior. Jitter and poison parameters are
// deliberately configuration inputs, not constants, so test suites can pin
// them.
type Config struct {
	// JitterMin/JitterMax bound the random delay before each send.
	JitterMin time.Duration
	JitterMax time.Duration
	// Timeout bounds one send; exceeding it is a failed attempt.
	Timeout time.Duration
	// PoisonProbability is the chance an attempt is corrupted or dropped.
	PoisonProbability float64
	// LegacySignature additionally emits the v1 digest header.
	LegacySignature bool
	// QueueSize is the per-registration job buffer. A full queue drops the
	// attempt (recorded as failed) rather than blocking emission.
	QueueSize int
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		JitterMin: 50 * time.Millisecond,
		JitterMax: 250 * time.Millisecond,
		Timeout:   5 * time.Second,
		QueueSize: 64,
	}
}

type job struct {
	event store.Event
	hook  store.Webhook
}

// Dispatcher fans store events out to matching registrations. One worker
// goroutine per registration preserves per-registration emission order;
// deliveries across registrations are independent.
type Dispatcher struct {
	store  *store.Store
	cfg    Config
	client *http.Client
	log    *slog.Logger
	logs   *deliveryLog

	mu      sync.Mutex
	workers map[string]chan job
	stopped bool
	stop    chan struct{}

	rngMu sync.Mutex
	rng   *rand.Rand
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the operational logger.
func WithLogger(log *slog.Logger) Option {
	return func(d *Dispatcher) {
		if log != nil {
			d.log = log
		}
	}
}

// WithHTTPClient overrides the delivery client (used by tests).
func WithHTTPClient(c *http.Client) Option {
	return func(d *Dispatcher) {
		if c != nil {
			d.client = c
		}
	}
}

// New creates a Dispatcher reading registrations from the store.
func New(s *store.Store, cfg Config, opts ...Option) *Dispatcher {
	def := DefaultConfig()
	if cfg.JitterMax <= 0 {
		cfg.JitterMin, cfg.JitterMax = def.JitterMin, def.JitterMax
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	d := &Dispatcher{
		store:   s,
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		log:     logging.Nop(),
		logs:    &deliveryLog{},
		workers: make(map[string]chan job),
		stop:    make(chan struct{}),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Emit implements store.EventSink. It matches the event against every
// registration and enqueues one delivery job per match. Emit itself never
// blocks on network work.
func (d *Dispatcher) Emit(ev store.Event) {
	fields := flattenPayload(ev)
	for _, hook := range d.store.Webhooks() {
		if !d.matches(hook, ev, fields) {
			continue
		}
		d.logs.addDelivery(Delivery{
			EventID:   ev.ID,
			EventType: ev.Type,
			WebhookID: hook.ID,
			URL:       hook.URL,
			Enqueued:  time.Now().UTC(),
		})
		d.enqueue(*hook, ev)
	}
}

// matches applies the event-type patterns and both optional filters.
func (d *Dispatcher) matches(hook *store.Webhook, ev store.Event, fields map[string][]string) bool {
	typeMatched := false
	for _, pattern := range hook.Events {
		if ok, err := doublestar.Match(pattern, ev.Type); err == nil && ok {
			typeMatched = true
			break
		}
	}
	if !typeMatched {
		return false
	}

	if hook.JQLFilter != "" {
		plan := jql.ParseLenient(hook.JQLFilter)
		if !plan.MatchFields(fields) {
			return false
		}
	}

	if hook.ExprFilter != "" && !d.evalExpr(hook, fields, ev) {
		return false
	}
	return true
}

func (d *Dispatcher) evalExpr(hook *store.Webhook, fields map[string][]string, ev store.Event) bool {
	env := map[string]any{"event": ev.Type}
	for k, vs := range fields {
		if len(vs) == 1 {
			env[k] = vs[0]
		} else {
			env[k] = vs
		}
	}
	program, err := expr.Compile(hook.ExprFilter, expr.AllowUndefinedVariables())
	if err != nil {
		d.log.Warn("webhook expr filter no longer compiles", "webhook", hook.ID, "error", err)
		return false
	}
	out, err := expr.Run(program, env)
	if err != nil {
		d.log.Warn("webhook expr filter failed", "webhook", hook.ID, "error", err)
		return false
	}
	matched, ok := out.(bool)
	return ok && matched
}

// enqueue hands a job to the registration's worker, creating it on first
// use. A full queue is recorded as a failed attempt.
func (d *Dispatcher) enqueue(hook store.Webhook, ev store.Event) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	ch, ok := d.workers[hook.ID]
	if !ok {
		ch = make(chan job, d.cfg.QueueSize)
		d.workers[hook.ID] = ch
		go d.worker(ch)
	}
	d.mu.Unlock()

	select {
	case ch <- job{event: ev, hook: hook}:
	default:
		d.logs.addAttempt(Attempt{
			EventID:   ev.ID,
			WebhookID: hook.ID,
			URL:       hook.URL,
			Error:     "delivery queue full",
			At:        time.Now().UTC(),
		})
	}
}

func (d *Dispatcher) worker(ch chan job) {
	for {
		select {
		case <-d.stop:
			return
		case j := <-ch:
			d.deliver(j)
		}
	}
}

// deliver performs one attempt: jitter, optional poison, signed POST.
func (d *Dispatcher) deliver(j job) {
	select {
	case <-d.stop:
		return
	case <-time.After(d.jitter()):
	}

	body, err := json.Marshal(envelope(j.event))
	if err != nil {
		d.recordFailure(j, 0, "encode payload: "+err.Error(), 0, false)
		return
	}

	poisoned := d.roll() < d.cfg.PoisonProbability
	if poisoned && d.roll() < 0.5 {
		// Dropped outright: the consumer sees nothing and must rely on its
		// own retry handling.
		d.recordFailure(j, 0, "poisoned: delivery dropped", 0, true)
		return
	}
	if poisoned {
		body = corrupt(body)
	}

	req, err := http.NewRequest(http.MethodPost, j.hook.URL, bytes.NewReader(body))
	if err != nil {
		d.recordFailure(j, 0, "build request: "+err.Error(), 0, poisoned)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderEventID, j.event.ID)
	req.Header.Set(HeaderSignatureVersion, SignatureVersion)
	req.Header.Set(HeaderSignature, Sign(j.hook.Secret, body))
	if d.cfg.LegacySignature {
		req.Header.Set(HeaderSignatureLegacy, SignLegacy(j.hook.Secret, body))
	}

	start := time.Now()
	resp, err := d.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		d.recordFailure(j, 0, err.Error(), latency, poisoned)
		return
	}
	defer resp.Body.Close()

	attempt := Attempt{
		EventID:    j.event.ID,
		WebhookID:  j.hook.ID,
		URL:        j.hook.URL,
		StatusCode: resp.StatusCode,
		LatencyMS:  latency.Milliseconds(),
		Poisoned:   poisoned,
		Success:    resp.StatusCode >= 200 && resp.StatusCode < 300 && !poisoned,
		At:         time.Now().UTC(),
	}
	d.logs.addAttempt(attempt)
	d.log.Debug("webhook delivered",
		"webhook", j.hook.ID, "event", j.event.ID, "status", resp.StatusCode, "poisoned", poisoned)
}

func (d *Dispatcher) recordFailure(j job, status int, msg string, latency time.Duration, poisoned bool) {
	d.logs.addAttempt(Attempt{
		EventID:    j.event.ID,
		WebhookID:  j.hook.ID,
		URL:        j.hook.URL,
		StatusCode: status,
		Error:      msg,
		LatencyMS:  latency.Milliseconds(),
		Poisoned:   poisoned,
		At:         time.Now().UTC(),
	})
	d.log.Debug("webhook delivery failed", "webhook", j.hook.ID, "event", j.event.ID, "error", msg)
}

// Deliveries returns the append-only delivery log.
func (d *Dispatcher) Deliveries() []Delivery { return d.logs.Deliveries() }

// Attempts returns the append-only attempt log.
func (d *Dispatcher) Attempts() []Attempt { return d.logs.Attempts() }

// Close stops all workers. In-flight attempts are abandoned best-effort;
// there is no durable queue.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.stopped = true
	close(d.stop)
}

func (d *Dispatcher) jitter() time.Duration {
	if d.cfg.JitterMax <= d.cfg.JitterMin {
		return d.cfg.JitterMin
	}
	spread := d.cfg.JitterMax - d.cfg.JitterMin
	d.rngMu.Lock()
	defer d.rngMu.Unlock()
	return d.cfg.JitterMin + time.Duration(d.rng.Int63n(int64(spread)))
}

func (d *Dispatcher) roll() float64 {
	d.rngMu.Lock()
	defer d.rngMu.Unlock()
	return d.rng.Float64()
}

// envelope is the wire shape of an outbound event payload.
func envelope(ev store.Event) map[string]any {
	out := map[string]any{
		"id":           ev.ID,
		"webhookEvent": ev.Type,
		"timestamp":    ev.Timestamp.Format(time.RFC3339),
	}
	for k, v := range ev.Payload {
		out[k] = v
	}
	return out
}

// corrupt flips bytes spread across the body so consumers exercising
// signature verification see a mismatch.
func corrupt(body []byte) []byte {
	out := append([]byte(nil), body...)
	for i := 0; i < len(out); i += 7 {
		out[i] ^= 0xFF
	}
	return out
}
