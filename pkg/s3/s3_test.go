package s3

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

// fakeS3 is a path-style S3 endpoint that keeps objects in memory.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	headers map[string]http.Header
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, headers: map[string]http.Header{}}
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/")
	switch r.Method {
	case http.MethodPut:
		data, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.objects[path] = data
		f.headers[path] = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		data, ok := f.objects[path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(data)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestClient(endpoint string) *Client {
	cfg := aws.Config{
		Region:      "us-east-1",
		Credentials: credentials.NewStaticCredentialsProvider("AKIDEXAMPLE", "secret", ""),
	}
	return NewClient(cfg, endpoint, true)
}

func TestPutJSONAndGetObject(t *testing.T) {
	fake := newFakeS3()
	srv := httptest.NewServer(fake)
	defer srv.Close()

	client := newTestClient(srv.URL)
	ctx := context.Background()
	payload := []byte(`{"data":[{"owner":"0x1","count":3}]}`)

	if err := client.PutJSON(ctx, "public-data", "cu_reports/lagerst_owners/0xA/data.json", payload); err != nil {
		t.Fatalf("PutJSON() error = %v", err)
	}

	hdr := fake.headers["public-data/cu_reports/lagerst_owners/0xA/data.json"]
	if hdr == nil {
		t.Fatalf("object not stored, have %v", fake.objects)
	}
	if got := hdr.Get("Content-Type"); got != "application/json" {
		t.Fatalf("Content-Type = %q", got)
	}
	if got := hdr.Get("X-Amz-Meta-Sha256"); got == "" {
		t.Fatal("sha256 metadata missing")
	}

	got, err := client.GetObject(ctx, "public-data", "cu_reports/lagerst_owners/0xA/data.json")
	if err != nil {
		t.Fatalf("GetObject() error = %v", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("GetObject() = %s, want %s", got, payload)
	}

	if _, err := client.GetObject(ctx, "public-data", "missing.json"); err == nil {
		t.Fatal("GetObject() for a missing key should fail")
	}
}

func TestPresignGet(t *testing.T) {
	client := newTestClient("http://localhost:8333")

	raw, err := client.PresignGet(context.Background(), "reports", "cu/q/data.json", 15*time.Minute)
	if err != nil {
		t.Fatalf("PresignGet() error = %v", err)
	}
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse presigned url: %v", err)
	}
	if u.Path != "/reports/cu/q/data.json" {
		t.Fatalf("presigned path = %q", u.Path)
	}
	if got := u.Query().Get("X-Amz-Expires"); got != "900" {
		t.Fatalf("X-Amz-Expires = %q, want 900", got)
	}
}

func TestNilClient(t *testing.T) {
	var c *Client
	if err := c.PutJSON(context.Background(), "b", "k", []byte(`{}`)); err == nil {
		t.Fatal("PutJSON on nil client should fail")
	}
	if _, err := c.GetObject(context.Background(), "b", "k"); err == nil {
		t.Fatal("GetObject on nil client should fail")
	}
	if _, err := c.PresignGet(context.Background(), "b", "k", time.Minute); err == nil {
		t.Fatal("PresignGet on nil client should fail")
	}
}

func TestNewClientFromEnvRequiresBothKeys(t *testing.T) {
	t.Setenv("S3_ACCESS_KEY", "only-access")
	t.Setenv("S3_SECRET_KEY", "")
	if _, err := NewClientFromEnv(context.Background()); err == nil {
		t.Fatal("NewClientFromEnv() with a lone access key should fail")
	}
}

func TestEncodeSHA256(t *testing.T) {
	got, err := encodeSHA256("e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855")
	if err != nil {
		t.Fatalf("encodeSHA256() error = %v", err)
	}
	if got != "47DEQpj8HBSa+/TImW+5JCeuQeRkm5NMpJWZG3hSuFU=" {
		t.Fatalf("encodeSHA256() = %q", got)
	}
	if _, err := encodeSHA256(""); err == nil {
		t.Fatal("encodeSHA256(\"\") should fail")
	}
}
