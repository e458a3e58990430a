package publish

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cureports/internal/metrics"
)

// ErrMismatch is returned by Verify when the stored object differs from the payload.
var ErrMismatch = errors.New("stored object does not match published payload")

// ObjectStore is the object storage used to publish reports. *s3.Client implements it.
type ObjectStore interface {
	PutJSON(ctx context.Context, bucket, key string, body []byte) error
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)
	PresignGet(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
}

// Destination is where a report ended up.
type Destination struct {
	Bucket       string
	Key          string
	URL          string
	PresignedURL string
	// PresignErr is set when the object was stored but no pre-signed URL could be made.
	PresignErr   error
}

// Publisher writes report payloads under a fixed bucket and prefix.
type Publisher struct {
	store      ObjectStore
	bucket     string
	prefix     string
	presignTTL time.Duration
	metrics    *metrics.Metrics
	now        func() time.Time
}

// NewPublisher validates its arguments. presignTTL of zero disables pre-signed URLs.
func NewPublisher(store ObjectStore, bucket, prefix string, presignTTL time.Duration, m *metrics.Metrics) (*Publisher, error) {
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, errors.New("bucket is required")
	}
	if store == nil {
		return nil, errors.New("object store is required")
	}
	if presignTTL < 0 {
		return nil, errors.New("presign ttl must not be negative")
	}
	return &Publisher{
		store:      store,
		bucket:     bucket,
		prefix:     strings.Trim(prefix, "/"),
		presignTTL: presignTTL,
		metrics:    m,
		now:        time.Now,
	}, nil
}

// Bucket is the destination bucket name.
func (p *Publisher) Bucket() string {
	return p.bucket
}

// ObjectKey joins the configured prefix and a report key.
func (p *Publisher) ObjectKey(key string) string {
	key = strings.TrimLeft(key, "/")
	if p.prefix == "" {
		return key
	}
	return p.prefix + "/" + key
}

// PublicURL is the address a published object is served from.
func PublicURL(bucket, objectKey string) string {
	return fmt.Sprintf("https://%s/%s", bucket, objectKey)
}

// Publish stores payload under key. There is no retry; errors go to the caller. Once the
// object is stored the publish counts as done, and a presign failure is only reported
// through Destination.PresignErr.
func (p *Publisher) Publish(ctx context.Context, key string, payload []byte) (Destination, error) {
	if strings.TrimSpace(key) == "" {
		return Destination{}, errors.New("report key is required")
	}
	objectKey := p.ObjectKey(key)

	start := p.now()
	if err := p.store.PutJSON(ctx, p.bucket, objectKey, payload); err != nil {
		return Destination{}, fmt.Errorf("put s3://%s/%s: %w", p.bucket, objectKey, err)
	}
	p.metrics.ObservePublish(p.now().Sub(start).Seconds())

	dest := Destination{
		Bucket: p.bucket,
		Key:    objectKey,
		URL:    PublicURL(p.bucket, objectKey),
	}

	if p.presignTTL > 0 {
		url, err := p.store.PresignGet(ctx, p.bucket, objectKey, p.presignTTL)
		if err != nil {
			dest.PresignErr = fmt.Errorf("presign s3://%s/%s: %w", p.bucket, objectKey, err)
		} else {
			dest.PresignedURL = url
		}
	}

	return dest, nil
}

// Verify reads the object back and compares it byte-for-byte with payload.
func (p *Publisher) Verify(ctx context.Context, dest Destination, payload []byte) error {
	stored, err := p.store.GetObject(ctx, dest.Bucket, dest.Key)
	if err != nil {
		return fmt.Errorf("get s3://%s/%s: %w", dest.Bucket, dest.Key, err)
	}
	if !bytes.Equal(stored, payload) {
		return fmt.Errorf("s3://%s/%s: %w", dest.Bucket, dest.Key, ErrMismatch)
	}
	return nil
}
