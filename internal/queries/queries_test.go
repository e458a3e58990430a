package queries

import (
	"bytes"
	"context"
	"errors"
	"log"
	"reflect"
	"strings"
	"testing"

	"cureports/internal/queryapi"
)

func TestLoadCatalogue(t *testing.T) {
	cat, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	var names []string
	for _, d := range cat.Tokenomics {
		names = append(names, d.Name)
		if d.Query == "" {
			t.Fatalf("query %s has empty body", d.Name)
		}
	}
	want := []string{
		"erc20_721_volume", "volume_change", "erc1155_volume", "most_recent_sale",
		"most_active_buyers", "most_active_sellers", "lagerst_owners",
		"total_supply_erc721", "total_supply_terminus",
	}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("tokenomics queries = %v, want %v", names, want)
	}

	if len(cat.GameBank) == 0 {
		t.Fatal("game bank catalogue is empty")
	}

	def, ok := cat.Tokenomic("most_recent_sale")
	if !ok || !strings.Contains(def.Query, ":amount") {
		t.Fatalf("Tokenomic(most_recent_sale) = %+v, %v", def, ok)
	}
	if _, ok := cat.Tokenomic("cu-bank-withdrawals-total"); ok {
		t.Fatal("game bank query should not resolve as tokenomics")
	}
}

type fakeManager struct {
	calls     []string
	createErr map[string]error
	deleteErr error
}

func (f *fakeManager) Create(_ context.Context, name, _ string) (*queryapi.Entry, error) {
	f.calls = append(f.calls, "create:"+name)
	if err := f.createErr[name]; err != nil {
		return nil, err
	}
	return &queryapi.Entry{ID: "id-" + name, JournalURL: "https://journal"}, nil
}

func (f *fakeManager) Delete(_ context.Context, name string) (string, error) {
	f.calls = append(f.calls, "delete:"+name)
	return "id-" + name, f.deleteErr
}

func TestInstallContinuesPastFailures(t *testing.T) {
	defs := []Definition{{Name: "a", Query: "SELECT 1"}, {Name: "b", Query: "SELECT 2"}, {Name: "c", Query: "SELECT 3"}}
	api := &fakeManager{createErr: map[string]error{"b": errors.New("conflict")}}
	var logs bytes.Buffer

	summary, err := Install(context.Background(), api, defs, false, log.New(&logs, "", 0))
	if err != nil {
		t.Fatalf("Install() error = %v", err)
	}
	if !reflect.DeepEqual(summary.Created, []string{"a", "c"}) || !reflect.DeepEqual(summary.Failed, []string{"b"}) {
		t.Fatalf("Install() summary = %+v", summary)
	}
	if !reflect.DeepEqual(api.calls, []string{"create:a", "create:b", "create:c"}) {
		t.Fatalf("calls = %v", api.calls)
	}
	if !strings.Contains(logs.String(), "cannot create query b") {
		t.Fatalf("missing failure log in %q", logs.String())
	}
}

func TestInstallOverwriteDeletesFirst(t *testing.T) {
	defs := []Definition{{Name: "a", Query: "SELECT 1"}}
	api := &fakeManager{deleteErr: errors.New("not found")}

	summary, err := Install(context.Background(), api, defs, true, log.New(&bytes.Buffer{}, "", 0))
	if err != nil {
		t.Fatalf("Install() error = %v", err)
	}
	if !reflect.DeepEqual(api.calls, []string{"delete:a", "create:a"}) {
		t.Fatalf("calls = %v", api.calls)
	}
	if len(summary.Created) != 1 {
		t.Fatalf("a failed delete must not block create, summary = %+v", summary)
	}
}
