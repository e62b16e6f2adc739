package routes

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	pkgauth "github.com/counterline/poscore/pkg/auth"
	"github.com/counterline/poscore/pkg/config"
)

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", TerminalID: "till-1", Currency: "USD"},
		Auth: config.AuthConfig{
			DeviceTokenSecret: "test-secret",
			Issuer:            "poscore",
			TokenTTL:          time.Hour,
		},
	}
}

func TestRouter_HealthLiveIsPublic(t *testing.T) {
	router := NewRouter(testConfig(), nil, nil, nil, nil, nil, nil, nil, nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestRouter_APIRequiresDeviceToken(t *testing.T) {
	router := NewRouter(testConfig(), nil, nil, nil, nil, nil, nil, nil, nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sync/status", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestRouter_AcceptsMintedToken(t *testing.T) {
	cfg := testConfig()
	router := NewRouter(cfg, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil)

	token, err := pkgauth.MintDeviceToken(cfg.Auth, time.Now(), pkgauth.DeviceTokenPayload{TerminalID: "till-1"})
	if err != nil {
		t.Fatalf("MintDeviceToken: %v", err)
	}

	// The stub services are nil, so only routing and auth are under test; a
	// nonexistent path behind auth must 404 rather than 401.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/does-not-exist", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}
