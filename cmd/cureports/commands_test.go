package main

import (
	"bytes"
	"context"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	a := &app{logger: log.New(io.Discard, "", 0)}
	cmd := newRootCommand(a)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	a.close(context.Background())
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := executeCommand(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if strings.TrimSpace(out) != version {
		t.Fatalf("version output = %q", out)
	}
}

func TestTokenRequired(t *testing.T) {
	t.Setenv("MOONSTREAM_ACCESS_TOKEN", "")
	t.Setenv("NATS_URL", "")

	_, err := executeCommand(t, "cu-reports", "queries", "list")
	if err == nil || !strings.Contains(err.Error(), "moonstream token is required") {
		t.Fatalf("err = %v", err)
	}
}

func TestQueriesListUsesTokenFlag(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/queries/list" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"queries":[{"id":"q-1","name":"cu-bank-withdrawals-total"}]}`)
	}))
	defer srv.Close()

	t.Setenv("QUERY_API_URL", srv.URL)
	t.Setenv("MOONSTREAM_ACCESS_TOKEN", "from-env")
	t.Setenv("NATS_URL", "")
	t.Setenv("PUSHGATEWAY_URL", "")

	out, err := executeCommand(t, "cu-reports", "--moonstream-token", "from-flag", "queries", "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if gotAuth != "Bearer from-flag" {
		t.Fatalf("Authorization = %q", gotAuth)
	}
	if !strings.Contains(out, "q-1") || !strings.Contains(out, "cu-bank-withdrawals-total") {
		t.Fatalf("output = %q", out)
	}
}

func TestRunTokenomicsRequiresBucket(t *testing.T) {
	t.Setenv("MOONSTREAM_ACCESS_TOKEN", "token")
	t.Setenv("NATS_URL", "")
	t.Setenv("REPORTS_S3_BUCKET", "")

	_, err := executeCommand(t, "cu-reports", "queries", "run-tokenomics")
	if err == nil || !strings.Contains(err.Error(), "REPORTS_S3_BUCKET") {
		t.Fatalf("err = %v", err)
	}
}
