package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"

	"cureports/internal/config"
	"cureports/internal/metrics"
	"cureports/internal/poller"
	"cureports/internal/publish"
	"cureports/internal/queryapi"
	"cureports/internal/reports"
	"cureports/pkg/bus"
	gos3 "cureports/pkg/s3"
	"cureports/pkg/telemetry"
)

// app carries the dependencies shared by the cu-reports commands. Everything except the
// logger is created by setup once the command line has been parsed.
type app struct {
	logger   *log.Logger
	cfg      config.Config
	metrics  *metrics.Metrics
	bus      *bus.Bus
	reporter *telemetry.Reporter
	api      *queryapi.Client
	command  string
}

func (a *app) setup(ctx context.Context, command, token string) error {
	a.command = command

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg = cfg.WithToken(token)
	if cfg.QueryAPI.Token == "" {
		return errors.New("moonstream token is required: pass --moonstream-token or set MOONSTREAM_ACCESS_TOKEN")
	}
	a.cfg = cfg
	a.metrics = metrics.New()

	if cfg.Telemetry.NATSURL != "" {
		b, err := bus.Connect(cfg.Telemetry.NATSURL, nats.Name(serviceName))
		if err != nil {
			a.logger.Printf("WARN cannot connect to nats at %s: %v", cfg.Telemetry.NATSURL, err)
		} else {
			a.bus = b
		}
	}

	var publisher telemetry.Publisher
	if a.bus != nil {
		publisher = a.bus
	}
	a.reporter = telemetry.NewReporter(serviceName, cfg.Telemetry.ReportingEnabled, publisher, a.logger)
	a.reporter.SystemReport(ctx, version)

	a.api, err = queryapi.New(cfg.QueryAPI.URL, cfg.QueryAPI.Token, telemetry.HTTPClient(cfg.QueryAPI.Timeout))
	if err != nil {
		return fmt.Errorf("query api client: %w", err)
	}
	return nil
}

// newGenerator wires the poller, the S3 publisher and the event bus for a report run.
func (a *app) newGenerator(ctx context.Context, verify bool) (*reports.Generator, error) {
	if err := a.cfg.RequirePublish(); err != nil {
		return nil, err
	}

	s3Client, err := gos3.NewClientFromEnv(ctx)
	if err != nil {
		return nil, fmt.Errorf("s3 client: %w", err)
	}
	pub, err := publish.NewPublisher(s3Client, a.cfg.Publish.Bucket, a.cfg.Publish.Prefix, a.cfg.Publish.PresignTTL, a.metrics)
	if err != nil {
		return nil, err
	}

	p, err := poller.New(poller.Config{
		InitialDelay:         a.cfg.Poll.InitialDelay,
		Interval:             a.cfg.Poll.Interval,
		FetchTimeout:         a.cfg.Poll.FetchTimeout,
		MaxRetries:           a.cfg.Poll.MaxRetries,
		MaxTransportFailures: a.cfg.Poll.MaxTransportFailures,
	},
		poller.WithHTTPClient(telemetry.HTTPClient(0)),
		poller.WithLogger(a.logger),
		poller.WithMetrics(a.metrics),
	)
	if err != nil {
		return nil, fmt.Errorf("poller: %w", err)
	}

	var events reports.EventPublisher
	if a.bus != nil {
		events = a.bus
	}

	return reports.NewGenerator(reports.Config{
		Executor:  a.api,
		Poller:    p,
		Publisher: pub,
		Events:    events,
		Metrics:   a.metrics,
		Logger:    a.logger,
		Verify:    verify,
	})
}

// runReports runs items and reports every failure through the consent reporter.
func (a *app) runReports(ctx context.Context, gen *reports.Generator, items []reports.Item) error {
	summary, err := gen.Run(ctx, items)
	for _, f := range summary.Failures {
		a.reporter.ErrorReport(ctx, f.Err, map[string]string{
			"query":  f.Query,
			"bucket": f.Bucket,
			"key":    f.Key,
		})
	}
	return err
}

// close pushes metrics when a Pushgateway is configured and releases the bus.
func (a *app) close(ctx context.Context) {
	if a.metrics != nil && a.cfg.Telemetry.PushgatewayURL != "" {
		pushCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := a.metrics.Push(pushCtx, a.cfg.Telemetry.PushgatewayURL, serviceName); err != nil {
			a.logger.Printf("WARN cannot push metrics to %s: %v", a.cfg.Telemetry.PushgatewayURL, err)
		}
		cancel()
	}
	a.bus.Close()
}
