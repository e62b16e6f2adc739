package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	pkgauth "github.com/counterline/poscore/pkg/auth"
	"github.com/counterline/poscore/pkg/config"
)

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		DeviceTokenSecret: "test-secret",
		Issuer:            "poscore",
		TokenTTL:          time.Hour,
	}
}

func protectedHandler(t *testing.T, hit *bool) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*hit = true
		claims := ClaimsFromContext(r.Context())
		if claims == nil {
			t.Error("expected claims in context")
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestDeviceAuth_AllowsMatchingTerminal(t *testing.T) {
	cfg := testAuthConfig()
	token, err := pkgauth.MintDeviceToken(cfg, time.Now(), pkgauth.DeviceTokenPayload{TerminalID: "till-1"})
	if err != nil {
		t.Fatalf("MintDeviceToken: %v", err)
	}

	hit := false
	handler := DeviceAuth(cfg, "till-1", nil)(protectedHandler(t, &hit))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK || !hit {
		t.Fatalf("expected 200 and handler hit, got %d hit=%v", resp.Code, hit)
	}
}

func TestDeviceAuth_RejectsMissingToken(t *testing.T) {
	hit := false
	handler := DeviceAuth(testAuthConfig(), "till-1", nil)(protectedHandler(t, &hit))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized || hit {
		t.Fatalf("expected 401 and no handler hit, got %d hit=%v", resp.Code, hit)
	}
}

func TestDeviceAuth_RejectsOtherTerminal(t *testing.T) {
	cfg := testAuthConfig()
	token, err := pkgauth.MintDeviceToken(cfg, time.Now(), pkgauth.DeviceTokenPayload{TerminalID: "till-2"})
	if err != nil {
		t.Fatalf("MintDeviceToken: %v", err)
	}

	hit := false
	handler := DeviceAuth(cfg, "till-1", nil)(protectedHandler(t, &hit))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized || hit {
		t.Fatalf("expected 401 and no handler hit, got %d hit=%v", resp.Code, hit)
	}
}
