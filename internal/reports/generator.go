package reports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"cureports/internal/metrics"
	"cureports/internal/poller"
	"cureports/internal/publish"
	"cureports/internal/queryapi"
	"cureports/pkg/telemetry"
)

// PublishedSubject carries an event for every report written to the bucket.
const PublishedSubject = "cureports.reports.published"

// ErrNoFreshData is returned when a poll ended without a payload.
var ErrNoFreshData = errors.New("no fresh data")

// Executor triggers query executions.
type Executor interface {
	Exec(ctx context.Context, req queryapi.Request) (string, error)
}

// Awaiter waits for the result of a triggered query.
type Awaiter interface {
	Await(ctx context.Context, name string, trigger poller.Trigger) (poller.Result, error)
}

// Publisher stores report payloads.
type Publisher interface {
	Bucket() string
	ObjectKey(key string) string
	Publish(ctx context.Context, key string, payload []byte) (publish.Destination, error)
	Verify(ctx context.Context, dest publish.Destination, payload []byte) error
}

// EventPublisher is notified of published reports. It is optional.
type EventPublisher interface {
	Publish(ctx context.Context, subject string, v any) error
}

// Artifact is a fetched report payload paired with its destination key.
type Artifact struct {
	Query   string
	Key     string
	Payload json.RawMessage
}

// Failure identifies a report that was not published.
type Failure struct {
	Query  string
	Bucket string
	Key    string
	Err    error
}

// Summary is the outcome of a batch.
type Summary struct {
	RunID     string
	Published []publish.Destination
	Failures  []Failure
}

// PublishedEvent is published on PublishedSubject.
type PublishedEvent struct {
	RunID       string    `json:"run_id"`
	Query       string    `json:"query"`
	Bucket      string    `json:"bucket"`
	Key         string    `json:"key"`
	URL         string    `json:"url"`
	Presigned   string    `json:"presigned_url,omitempty"`
	Bytes       int       `json:"bytes"`
	PublishedAt time.Time `json:"published_at"`
}

// Config wires a Generator.
type Config struct {
	Executor  Executor
	Poller    Awaiter
	Publisher Publisher
	Events    EventPublisher
	Metrics   *metrics.Metrics
	Logger    *log.Logger
	// Verify reads every published object back and compares it with the payload.
	Verify bool
	Now    func() time.Time
}

// Generator runs report items one after another.
type Generator struct {
	exec    Executor
	poller  Awaiter
	pub     Publisher
	events  EventPublisher
	metrics *metrics.Metrics
	logger  *log.Logger
	verify  bool
	now     func() time.Time
	tracer  trace.Tracer
}

func NewGenerator(cfg Config) (*Generator, error) {
	if cfg.Executor == nil {
		return nil, errors.New("executor is required")
	}
	if cfg.Poller == nil {
		return nil, errors.New("poller is required")
	}
	if cfg.Publisher == nil {
		return nil, errors.New("publisher is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard, "", 0)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Generator{
		exec:    cfg.Executor,
		poller:  cfg.Poller,
		pub:     cfg.Publisher,
		events:  cfg.Events,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
		verify:  cfg.Verify,
		now:     cfg.Now,
		tracer:  telemetry.Tracer("cureports/internal/reports"),
	}, nil
}

// Run generates every item in order. A failed item is logged and recorded in the summary;
// only cancellation of ctx stops the batch early.
func (g *Generator) Run(ctx context.Context, items []Item) (Summary, error) {
	summary := Summary{RunID: uuid.NewString()}
	g.logger.Printf("INFO run %s: generating %d reports", summary.RunID, len(items))

	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		dest, err := g.generate(ctx, summary.RunID, it)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return summary, ctxErr
			}
			g.metrics.ObserveReport(it.Request.Name, metrics.ReportFailed)
			g.logger.Printf("ERROR cannot receive or publish data for query: %s, bucket: %s, key: %s: %v",
				it.Request.Name, g.pub.Bucket(), g.pub.ObjectKey(it.Key), err)
			summary.Failures = append(summary.Failures, Failure{
				Query:  it.Request.Name,
				Bucket: g.pub.Bucket(),
				Key:    g.pub.ObjectKey(it.Key),
				Err:    err,
			})
			continue
		}

		g.metrics.ObserveReport(it.Request.Name, metrics.ReportPublished)
		g.logger.Printf("INFO report generated and results uploaded at: %s", dest.URL)
		summary.Published = append(summary.Published, dest)
	}

	g.logger.Printf("INFO run %s done: %d published, %d failed", summary.RunID, len(summary.Published), len(summary.Failures))
	return summary, nil
}

func (g *Generator) generate(ctx context.Context, runID string, it Item) (publish.Destination, error) {
	ctx, span := g.tracer.Start(ctx, "report.generate", trace.WithAttributes(
		attribute.String("query.name", it.Request.Name),
		attribute.String("report.key", it.Key),
	))
	defer span.End()

	artifact, err := g.fetch(ctx, it)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return publish.Destination{}, err
	}

	dest, err := g.pub.Publish(ctx, artifact.Key, artifact.Payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return publish.Destination{}, err
	}
	if dest.PresignErr != nil {
		span.AddEvent("presign failed", trace.WithAttributes(attribute.String("error", dest.PresignErr.Error())))
		g.logger.Printf("WARN report %s stored without a pre-signed url: %v", dest.Key, dest.PresignErr)
	}

	if g.verify {
		if err := g.pub.Verify(ctx, dest, artifact.Payload); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return dest, err
		}
	}

	g.announce(ctx, runID, artifact, dest)
	return dest, nil
}

func (g *Generator) fetch(ctx context.Context, it Item) (*Artifact, error) {
	req := it.Request
	trigger := func(ctx context.Context) (string, error) {
		return g.exec.Exec(ctx, req)
	}

	res, err := g.poller.Await(ctx, req.Name, trigger)
	if err != nil {
		return nil, err
	}
	if !res.OK() {
		return nil, fmt.Errorf("%w after %d checks (%s)", ErrNoFreshData, res.Checks, res.Status)
	}

	return &Artifact{Query: req.Name, Key: it.Key, Payload: res.Payload}, nil
}

func (g *Generator) announce(ctx context.Context, runID string, a *Artifact, dest publish.Destination) {
	if g.events == nil {
		return
	}
	event := PublishedEvent{
		RunID:       runID,
		Query:       a.Query,
		Bucket:      dest.Bucket,
		Key:         dest.Key,
		URL:         dest.URL,
		Presigned:   dest.PresignedURL,
		Bytes:       len(a.Payload),
		PublishedAt: g.now().UTC(),
	}
	if err := g.events.Publish(ctx, PublishedSubject, event); err != nil {
		g.logger.Printf("WARN cannot announce report %s: %v", dest.Key, err)
	}
}
