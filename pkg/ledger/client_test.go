package ledger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/counterline/poscore/pkg/config"
	pkgerrors "github.com/counterline/poscore/pkg/errors"
	"github.com/counterline/poscore/pkg/types"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(config.LedgerConfig{BaseURL: srv.URL, Timeout: 2 * time.Second}, "till-1", nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client, srv
}

func TestPostSaleSendsIdempotencyKey(t *testing.T) {
	var gotKey string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("Idempotency-Key")
		var req SaleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if req.TerminalID != "till-1" {
			t.Errorf("terminal id not stamped, got %q", req.TerminalID)
		}
		json.NewEncoder(w).Encode(SaleResult{SaleID: "s-1", SaleNumber: "0001"})
	}))

	result, err := client.PostSale(context.Background(), SaleRequest{
		IdempotencyKey: "key-1",
		Currency:       "USD",
		Totals:         types.Totals{SubtotalCents: 13000, TotalCents: 13000},
		SoldAt:         time.Now(),
	})
	if err != nil {
		t.Fatalf("post sale: %v", err)
	}
	if gotKey != "key-1" {
		t.Fatalf("expected idempotency header, got %q", gotKey)
	}
	if result.SaleNumber != "0001" {
		t.Fatalf("unexpected sale number %q", result.SaleNumber)
	}
}

func TestPostSaleServerErrorIsSyncError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := client.PostSale(context.Background(), SaleRequest{IdempotencyKey: "key-2"})
	if err == nil {
		t.Fatal("expected error for 502")
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeSync {
		t.Fatalf("expected sync error, got %v", err)
	}
}

func TestPostSaleRejectsMissingKey(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request must not reach the server")
	}))

	_, err := client.PostSale(context.Background(), SaleRequest{})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestProbeDetectsOutage(t *testing.T) {
	healthy := true
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/healthz" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))

	if err := client.Probe(context.Background()); err != nil {
		t.Fatalf("probe while healthy: %v", err)
	}
	healthy = false
	if err := client.Probe(context.Background()); err == nil {
		t.Fatal("expected probe failure")
	}
}

func TestPullProductsUsesCursor(t *testing.T) {
	cursor := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("since"); got != cursor.Format(time.RFC3339Nano) {
			t.Errorf("unexpected cursor %q", got)
		}
		json.NewEncoder(w).Encode([]ProductDelta{{ID: "p-1", Name: "Coffee", UnitPriceCents: 5000, Active: true, UpdatedAt: cursor.Add(time.Hour)}})
	}))

	deltas, err := client.PullProducts(context.Background(), cursor, 200)
	if err != nil {
		t.Fatalf("pull products: %v", err)
	}
	if len(deltas) != 1 || deltas[0].Name != "Coffee" {
		t.Fatalf("unexpected deltas %+v", deltas)
	}
}
