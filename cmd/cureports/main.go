package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cureports/pkg/telemetry"
)

const serviceName = "cureports"

// Set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, logger, err := telemetry.Init(ctx, serviceName, os.Stderr)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			fmt.Fprintf(os.Stderr, "%s: telemetry shutdown error: %v\n", serviceName, err)
		}
	}()

	a := &app{logger: logger}
	defer a.close(context.WithoutCancel(ctx))
	defer func() {
		if r := recover(); r != nil {
			a.reporter.PanicReport(context.WithoutCancel(ctx), r)
			panic(r)
		}
	}()

	if err := newRootCommand(a).ExecuteContext(ctx); err != nil {
		a.reporter.ErrorReport(context.WithoutCancel(ctx), err, map[string]string{"command": a.command})
		return err
	}
	return nil
}
