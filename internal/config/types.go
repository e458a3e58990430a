package config

import "time"

type Config struct {
	QueryAPI  QueryAPIConfig
	Poll      PollConfig
	Publish   PublishConfig
	Telemetry TelemetryConfig
}

type QueryAPIConfig struct {
	URL     string
	Token   string
	Timeout time.Duration
}

type PollConfig struct {
	InitialDelay         time.Duration
	Interval             time.Duration
	FetchTimeout         time.Duration
	MaxRetries           int
	MaxTransportFailures int
}

type PublishConfig struct {
	Bucket     string
	Prefix     string
	PresignTTL time.Duration
}

type TelemetryConfig struct {
	ReportingEnabled bool
	NATSURL          string
	PushgatewayURL   string
}
