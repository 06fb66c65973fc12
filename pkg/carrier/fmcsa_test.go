package carrier

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"

	"github.com/freightdesk-ai/platform/pkg/common/logger"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}

const fmcsaFixture = `{
	"content": {
		"carrier": {
			"legalName": "RIDGELINE TRUCKING LLC",
			"dbaName": "RIDGELINE",
			"allowedToOperate": "Y",
			"safetyRating": "S",
			"totalPowerUnits": 12,
			"totalDrivers": 15,
			"oosDate": ""
		}
	}
}`

func TestFMCSALookup(t *testing.T) {
	var gotPath, gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("webKey")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(fmcsaFixture))
	}))
	defer server.Close()

	client := NewFMCSAClient(server.URL, "test-key", nil)
	snapshot, err := client.Lookup(context.Background(), "1234567")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}

	if gotPath != "/carriers/1234567" {
		t.Errorf("requested path %q", gotPath)
	}
	if gotKey != "test-key" {
		t.Errorf("webKey = %q", gotKey)
	}
	if snapshot.LegalName != "RIDGELINE TRUCKING LLC" {
		t.Errorf("legal name = %q", snapshot.LegalName)
	}
	if snapshot.OperatingStatus != "AUTHORIZED" {
		t.Errorf("operating status = %q", snapshot.OperatingStatus)
	}
	if snapshot.SafetyRating != "Satisfactory" {
		t.Errorf("safety rating = %q", snapshot.SafetyRating)
	}
	if snapshot.PowerUnits != 12 || snapshot.Drivers != 15 {
		t.Errorf("fleet size = %d units %d drivers", snapshot.PowerUnits, snapshot.Drivers)
	}
	if snapshot.OutOfService {
		t.Error("carrier should not be out of service")
	}
	if snapshot.DOTNumber != "1234567" {
		t.Errorf("dot number = %q", snapshot.DOTNumber)
	}
}

func TestFMCSALookupNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := NewFMCSAClient(server.URL, "test-key", nil)
	if _, err := client.Lookup(context.Background(), "9999999"); !errors.Is(err, ErrNoFMCSARecord) {
		t.Errorf("expected ErrNoFMCSARecord, got %v", err)
	}
}

func TestFMCSALookupEmptyRecord(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"content":{"carrier":{}}}`))
	}))
	defer server.Close()

	client := NewFMCSAClient(server.URL, "test-key", nil)
	if _, err := client.Lookup(context.Background(), "1234567"); !errors.Is(err, ErrNoFMCSARecord) {
		t.Errorf("expected ErrNoFMCSARecord, got %v", err)
	}
}

func TestFMCSALookupRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "upstream hiccup", http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(fmcsaFixture))
	}))
	defer server.Close()

	client := NewFMCSAClient(server.URL, "test-key", nil)
	snapshot, err := client.Lookup(context.Background(), "1234567")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if snapshot.LegalName == "" {
		t.Error("expected a snapshot after retry")
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("server saw %d requests, want 2", got)
	}
}

func TestFMCSALookupRequiresDOT(t *testing.T) {
	client := NewFMCSAClient("http://localhost:1", "test-key", nil)
	if _, err := client.Lookup(context.Background(), "  "); err == nil {
		t.Error("expected error for blank dot number")
	}
}

func TestSafetyRating(t *testing.T) {
	cases := map[string]string{
		"S":  "Satisfactory",
		"c":  "Conditional",
		"U":  "Unsatisfactory",
		"":   "",
		"XX": "XX",
	}
	for code, want := range cases {
		if got := safetyRating(code); got != want {
			t.Errorf("safetyRating(%q) = %q, want %q", code, got, want)
		}
	}
}
