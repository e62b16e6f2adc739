package square

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/counterline/poscore/pkg/config"
	pkgerrors "github.com/counterline/poscore/pkg/errors"
	"github.com/counterline/poscore/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "square-test", Level: zerolog.Disabled, Output: io.Discard})
}

func TestNewClient_EnvValidation(t *testing.T) {
	if _, err := NewClient(context.Background(), config.SquareConfig{Env: "staging"}, testLogger()); err == nil {
		t.Fatal("expected error for unknown environment")
	}
	if _, err := NewClient(context.Background(), config.SquareConfig{}, nil); err == nil {
		t.Fatal("expected error for nil logger")
	}
}

func TestReaderPresent(t *testing.T) {
	// No credentials at all: the terminal boots, tap is just unavailable.
	c, err := NewClient(context.Background(), config.SquareConfig{}, testLogger())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if c.ReaderPresent() {
		t.Fatal("reader should be absent without credentials")
	}

	// Token but no paired device is still absent.
	c, err = NewClient(context.Background(), config.SquareConfig{AccessToken: "tok"}, testLogger())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if c.ReaderPresent() {
		t.Fatal("reader should be absent without a device id")
	}

	c, err = NewClient(context.Background(), config.SquareConfig{
		AccessToken: "tok",
		LocationID:  "loc-1",
		DeviceID:    "dev-1",
	}, testLogger())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if !c.ReaderPresent() {
		t.Fatal("reader should be present with token, location, and device")
	}
}

func TestChargeTap_ReaderAbsent(t *testing.T) {
	c, err := NewClient(context.Background(), config.SquareConfig{}, testLogger())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	_, err = c.ChargeTap(context.Background(), TapChargeParams{AmountCents: 1000, SourceID: "tok"})
	if pkgerrors.ReasonOf(err) != pkgerrors.ReasonMethodUnavailable {
		t.Fatalf("expected MethodUnavailable, got %v", err)
	}
}

func TestEnsureIdempotencyKey(t *testing.T) {
	c := &Client{}
	if got := c.ensureIdempotencyKey("tap.charge", "custom-key"); got != "custom-key" {
		t.Fatalf("expected provided key, got %q", got)
	}
	if got := c.ensureIdempotencyKey("tap.charge", ""); !strings.HasPrefix(got, "tap.charge-") {
		t.Fatalf("generated idempotency key %q missing prefix", got)
	}
}

func TestRedact(t *testing.T) {
	c := &Client{}
	if out := c.redact("source_token", "abc123"); out != "[REDACTED]" {
		t.Fatalf("expected redacted value, got %v", out)
	}
	if v := c.redact("status", "ok"); v != "ok" {
		t.Fatalf("unexpected redaction for safe key")
	}
}

func TestDomainCodeForStatus(t *testing.T) {
	tests := []struct {
		status int
		code   pkgerrors.Code
	}{
		{http.StatusUnauthorized, pkgerrors.CodeUnauthorized},
		{http.StatusNotFound, pkgerrors.CodeNotFound},
		{http.StatusConflict, pkgerrors.CodeConflict},
		{http.StatusBadRequest, pkgerrors.CodeValidation},
		{http.StatusUnprocessableEntity, pkgerrors.CodeStateConflict},
		{http.StatusInternalServerError, pkgerrors.CodeDependency},
	}
	for _, tt := range tests {
		if got := domainCodeForStatus(tt.status); got != tt.code {
			t.Fatalf("status %d expected %s got %s", tt.status, tt.code, got)
		}
	}
}

func TestTapChargeSettled(t *testing.T) {
	cases := []struct {
		status string
		want   bool
	}{
		{"COMPLETED", true},
		{"APPROVED", true},
		{"FAILED", false},
		{"CANCELED", false},
		{"", false},
	}
	for _, tc := range cases {
		charge := &TapCharge{Status: tc.status}
		if charge.Settled() != tc.want {
			t.Fatalf("Settled() for %q = %v, want %v", tc.status, charge.Settled(), tc.want)
		}
	}
}
