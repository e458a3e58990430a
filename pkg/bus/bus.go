package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	// Stream retains every cureports event.
	Stream = "CUREPORTS"
	// SubjectPrefix is shared by all subjects the stream captures.
	SubjectPrefix = "cureports."

	streamMaxAge = 7 * 24 * time.Hour
)

// Bus publishes JSON events to the cureports JetStream stream.
type Bus struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// Connect dials NATS and creates the stream if the server does not have it yet.
func Connect(url string, opts ...nats.Option) (*Bus, error) {
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, err
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, err
	}

	if err := ensureStream(js); err != nil {
		nc.Close()
		return nil, err
	}

	return &Bus{conn: nc, js: js}, nil
}

func ensureStream(js nats.JetStreamContext) error {
	_, err := js.StreamInfo(Stream)
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("stream %s: %w", Stream, err)
	}
	_, err = js.AddStream(&nats.StreamConfig{
		Name:     Stream,
		Subjects: []string{SubjectPrefix + ">"},
		Storage:  nats.FileStorage,
		MaxAge:   streamMaxAge,
	})
	if err != nil {
		return fmt.Errorf("create stream %s: %w", Stream, err)
	}
	return nil
}

// Close flushes pending publishes and shuts down the underlying NATS connection.
func (b *Bus) Close() {
	if b == nil || b.conn == nil {
		return
	}
	if err := b.conn.Drain(); err != nil {
		b.conn.Close()
	}
}

// Publish encodes v as JSON and publishes it to subj, which must fall under SubjectPrefix.
func (b *Bus) Publish(ctx context.Context, subj string, v any) error {
	if b == nil {
		return errors.New("nil bus")
	}
	if !strings.HasPrefix(subj, SubjectPrefix) || len(subj) == len(SubjectPrefix) {
		return fmt.Errorf("subject %q is not part of stream %s", subj, Stream)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", subj, err)
	}
	if b.js == nil {
		return errors.New("bus is not connected")
	}

	msg := nats.NewMsg(subj)
	msg.Header.Set("Content-Type", "application/json")
	msg.Data = data

	_, err = b.js.PublishMsg(msg, nats.Context(ctx))
	return err
}
