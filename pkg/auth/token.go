package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/counterline/poscore/pkg/config"
)

var jwtSigningMethod = jwt.SigningMethodHS256

// DeviceTokenPayload identifies a register device and the operator signed in
// on it.
type DeviceTokenPayload struct {
	TerminalID string
	OperatorID string
	JTI        string
}

// DeviceTokenClaims are the claims carried by a device token.
type DeviceTokenClaims struct {
	TerminalID string `json:"terminal_id"`
	OperatorID string `json:"operator_id,omitempty"`
	jwt.RegisteredClaims
}

// MintDeviceToken issues a signed JWT binding an operator to a terminal.
func MintDeviceToken(cfg config.AuthConfig, now time.Time, payload DeviceTokenPayload) (string, error) {
	if cfg.DeviceTokenSecret == "" {
		return "", fmt.Errorf("device token secret is required")
	}
	if cfg.Issuer == "" {
		return "", fmt.Errorf("device token issuer is required")
	}
	if cfg.TokenTTL <= 0 {
		return "", fmt.Errorf("device token ttl must be positive")
	}
	if strings.TrimSpace(payload.TerminalID) == "" {
		return "", fmt.Errorf("terminal id is required")
	}

	jti := strings.TrimSpace(payload.JTI)
	if jti == "" {
		jti = uuid.NewString()
	}

	claims := DeviceTokenClaims{
		TerminalID: payload.TerminalID,
		OperatorID: payload.OperatorID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.TokenTTL)),
			ID:        jti,
		},
	}

	token := jwt.NewWithClaims(jwtSigningMethod, claims)
	signed, err := token.SignedString([]byte(cfg.DeviceTokenSecret))
	if err != nil {
		return "", fmt.Errorf("signing device token: %w", err)
	}
	return signed, nil
}

// ParseDeviceToken validates the JWT string and returns typed claims.
func ParseDeviceToken(cfg config.AuthConfig, tokenString string) (*DeviceTokenClaims, error) {
	if cfg.DeviceTokenSecret == "" {
		return nil, fmt.Errorf("device token secret is required")
	}

	claims := &DeviceTokenClaims{}
	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (interface{}, error) {
			if token.Method != jwtSigningMethod {
				return nil, fmt.Errorf("unexpected signing method %s", token.Header["alg"])
			}
			return []byte(cfg.DeviceTokenSecret), nil
		},
		jwt.WithValidMethods([]string{jwtSigningMethod.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
	)
	if err != nil {
		return nil, err
	}
	if claims.TerminalID == "" {
		return nil, fmt.Errorf("token missing terminal id")
	}

	return claims, nil
}
