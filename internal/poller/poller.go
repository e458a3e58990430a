// Package poller waits for asynchronously computed query results to appear behind a
// pre-signed URL.
//
// A poll starts by recording a baseline timestamp and triggering the query. The result
// location is then fetched with If-Modified-Since set to the baseline until the store
// answers 200, which means the computation wrote a new object after the baseline.
// Halfway through the retry budget the query is triggered once more, because the first
// pre-signed location may expire before the result is ready.
package poller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"cureports/internal/metrics"
	"cureports/pkg/telemetry"
)

// ErrInvalidPayload is returned when a fresh response body is not valid JSON.
var ErrInvalidPayload = errors.New("result payload is not valid JSON")

// Status is the terminal outcome of a poll.
type Status int

const (
	// StatusFresh means a 200 response was received and Result.Payload holds its body.
	StatusFresh Status = iota + 1
	// StatusExhausted means the not-ready budget ran out.
	StatusExhausted
	// StatusTransportExhausted means the transport failure cap was reached.
	StatusTransportExhausted
)

func (s Status) String() string {
	switch s {
	case StatusFresh:
		return "fresh"
	case StatusExhausted:
		return "exhausted"
	case StatusTransportExhausted:
		return "transport_exhausted"
	default:
		return "unknown"
	}
}

// Result describes how a poll ended.
type Result struct {
	Status            Status
	Payload           json.RawMessage
	Checks            int
	Triggers          int
	TransportFailures int
}

// OK reports whether the poll produced a payload.
func (r Result) OK() bool {
	return r.Status == StatusFresh
}

// Trigger starts (or restarts) the remote computation and returns the location its
// result will be written to.
type Trigger func(ctx context.Context) (string, error)

// Config bounds a poll.
type Config struct {
	// InitialDelay is waited once before the first trigger.
	InitialDelay time.Duration
	// Interval is waited before every fetch.
	Interval time.Duration
	// FetchTimeout bounds a single conditional fetch.
	FetchTimeout time.Duration
	// MaxRetries is the number of not-ready responses tolerated; the poll gives up on
	// response MaxRetries+1.
	MaxRetries int
	// MaxTransportFailures caps transport errors. Zero means unlimited.
	MaxTransportFailures int
}

// DefaultConfig mirrors the production settings.
func DefaultConfig() Config {
	return Config{
		InitialDelay: 2 * time.Second,
		Interval:     2 * time.Second,
		FetchTimeout: 5 * time.Second,
		MaxRetries:   20,
	}
}

func (c Config) validate() error {
	if c.Interval < 0 || c.InitialDelay < 0 {
		return errors.New("poll intervals must not be negative")
	}
	if c.FetchTimeout <= 0 {
		return errors.New("fetch timeout must be positive")
	}
	if c.MaxRetries < 0 || c.MaxTransportFailures < 0 {
		return errors.New("retry budgets must not be negative")
	}
	return nil
}

// retriggerAt is the not-ready count after which the query is triggered again.
func (c Config) retriggerAt() int {
	return c.MaxRetries / 2
}

// Poller runs polls one at a time. It holds no per-poll state.
type Poller struct {
	cfg     Config
	client  *http.Client
	logger  *log.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
}

// Option customises a Poller.
type Option func(*Poller)

// WithHTTPClient sets the client used for conditional fetches.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Poller) {
		if c != nil {
			p.client = c
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(p *Poller) {
		if l != nil {
			p.logger = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Poller) { p.metrics = m }
}

// WithClock replaces time.Now and the context-aware sleep, for tests.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(p *Poller) {
		if now != nil {
			p.now = now
		}
		if sleep != nil {
			p.sleep = sleep
		}
	}
}

// New validates cfg and builds a Poller.
func New(cfg Config, opts ...Option) (*Poller, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	p := &Poller{
		cfg:    cfg,
		client: http.DefaultClient,
		logger: log.New(io.Discard, "", 0),
		tracer: telemetry.Tracer("cureports/internal/poller"),
		now:    time.Now,
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// attempt is the mutable state of a single poll.
type attempt struct {
	issuedAt          time.Time
	location          string
	count             int
	checks            int
	triggers          int
	transportFailures int
}

func (a *attempt) result(status Status, payload json.RawMessage) Result {
	return Result{
		Status:            status,
		Payload:           payload,
		Checks:            a.checks,
		Triggers:          a.triggers,
		TransportFailures: a.transportFailures,
	}
}

// Await triggers the query and polls its result location until fresh data arrives or a
// budget runs out. A non-nil error means the poll could not run to a terminal status:
// the first trigger failed, ctx was cancelled, or the fresh body was not JSON.
func (p *Poller) Await(ctx context.Context, name string, trigger Trigger) (Result, error) {
	if trigger == nil {
		return Result{}, errors.New("trigger is required")
	}

	ctx, span := p.tracer.Start(ctx, "poller.await", trace.WithAttributes(attribute.String("query.name", name)))
	defer span.End()

	res, err := p.await(ctx, name, trigger)
	span.SetAttributes(
		attribute.String("poll.status", res.Status.String()),
		attribute.Int("poll.checks", res.Checks),
		attribute.Int("poll.triggers", res.Triggers),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return res, err
}

func (p *Poller) await(ctx context.Context, name string, trigger Trigger) (Result, error) {
	a := &attempt{issuedAt: p.now().UTC()}
	ifModifiedSince := a.issuedAt.Format(http.TimeFormat)

	if err := p.sleep(ctx, p.cfg.InitialDelay); err != nil {
		return a.result(0, nil), err
	}

	location, err := trigger(ctx)
	if err == nil {
		err = validateLocation(location)
	}
	if err != nil {
		return a.result(0, nil), fmt.Errorf("trigger %s: %w", name, err)
	}
	a.location = location
	a.triggers++

	for {
		if err := p.sleep(ctx, p.cfg.Interval); err != nil {
			return a.result(0, nil), err
		}

		status, body, err := p.fetch(ctx, a.location, ifModifiedSince)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return a.result(0, nil), ctxErr
			}
			a.transportFailures++
			p.metrics.ObserveCheck(metrics.CheckTransportError)
			p.logger.Printf("WARN query %s: fetch failed (%d transport failures): %v", name, a.transportFailures, err)
			if p.cfg.MaxTransportFailures > 0 && a.transportFailures >= p.cfg.MaxTransportFailures {
				p.logger.Printf("ERROR query %s: giving up after %d transport failures", name, a.transportFailures)
				return a.result(StatusTransportExhausted, nil), nil
			}
			continue
		}
		a.checks++

		if status == http.StatusOK {
			p.metrics.ObserveCheck(metrics.CheckFresh)
			if !json.Valid(body) {
				return a.result(0, nil), fmt.Errorf("query %s: %w", name, ErrInvalidPayload)
			}
			return a.result(StatusFresh, json.RawMessage(body)), nil
		}

		p.metrics.ObserveCheck(metrics.CheckNotReady)
		a.count++

		if a.count == p.cfg.retriggerAt() {
			p.retrigger(ctx, name, trigger, a)
		}

		if a.count > p.cfg.MaxRetries {
			p.logger.Printf("ERROR query %s: no fresh result after %d checks", name, a.checks)
			return a.result(StatusExhausted, nil), nil
		}
	}
}

// retrigger obtains a new location. The not-ready count is kept so the overall budget
// still bounds the poll.
func (p *Poller) retrigger(ctx context.Context, name string, trigger Trigger, a *attempt) {
	location, err := trigger(ctx)
	if err == nil {
		err = validateLocation(location)
	}
	if err != nil {
		p.logger.Printf("WARN query %s: re-trigger failed, keeping previous location: %v", name, err)
		return
	}
	a.location = location
	a.triggers++
	p.metrics.ObserveRetrigger()
	p.logger.Printf("INFO query %s: re-triggered after %d checks", name, a.checks)
}

func (p *Poller) fetch(ctx context.Context, location, ifModifiedSince string) (int, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.FetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("If-Modified-Since", ifModifiedSince)

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read body: %w", err)
	}
	return resp.StatusCode, body, nil
}

func validateLocation(location string) error {
	u, err := url.Parse(location)
	if err != nil {
		return fmt.Errorf("invalid result location: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid result location %q", location)
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
