package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/counterline/poscore/pkg/config"
)

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		DeviceTokenSecret: "test-secret",
		Issuer:            "poscore",
		TokenTTL:          time.Hour,
	}
}

func TestMintAndParseDeviceToken(t *testing.T) {
	cfg := testAuthConfig()
	now := time.Now()

	signed, err := MintDeviceToken(cfg, now, DeviceTokenPayload{
		TerminalID: "till-1",
		OperatorID: "op-7",
	})
	if err != nil {
		t.Fatalf("MintDeviceToken: %v", err)
	}

	claims, err := ParseDeviceToken(cfg, signed)
	if err != nil {
		t.Fatalf("ParseDeviceToken: %v", err)
	}
	if claims.TerminalID != "till-1" || claims.OperatorID != "op-7" {
		t.Fatalf("claims = %+v", claims)
	}
	if claims.ID == "" {
		t.Fatal("expected a generated jti")
	}
}

func TestParseDeviceToken_RejectsWrongSecret(t *testing.T) {
	cfg := testAuthConfig()

	signed, err := MintDeviceToken(cfg, time.Now(), DeviceTokenPayload{TerminalID: "till-1"})
	if err != nil {
		t.Fatalf("MintDeviceToken: %v", err)
	}

	other := cfg
	other.DeviceTokenSecret = "different"
	if _, err := ParseDeviceToken(other, signed); err == nil {
		t.Fatal("expected parse to fail with the wrong secret")
	}
}

func TestParseDeviceToken_RejectsExpired(t *testing.T) {
	cfg := testAuthConfig()

	signed, err := MintDeviceToken(cfg, time.Now().Add(-2*time.Hour), DeviceTokenPayload{TerminalID: "till-1"})
	if err != nil {
		t.Fatalf("MintDeviceToken: %v", err)
	}
	if _, err := ParseDeviceToken(cfg, signed); err == nil {
		t.Fatal("expected parse to fail for an expired token")
	}
}

func TestMintDeviceToken_Validation(t *testing.T) {
	cfg := testAuthConfig()

	if _, err := MintDeviceToken(cfg, time.Now(), DeviceTokenPayload{TerminalID: "  "}); err == nil ||
		!strings.Contains(err.Error(), "terminal id") {
		t.Fatalf("expected terminal id error, got %v", err)
	}

	cfg.DeviceTokenSecret = ""
	if _, err := MintDeviceToken(cfg, time.Now(), DeviceTokenPayload{TerminalID: "till-1"}); err == nil {
		t.Fatal("expected secret error")
	}
}
