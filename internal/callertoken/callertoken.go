// Package callertoken issues and validates the bearer tokens that
// identify workflow callers. A token binds a ledger address to the role
// registered for it so handlers can gate operations without a ledger
// round trip per request.
package callertoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"attest/pkg/faults"
)

const issuer = "attest"

// Claims are the JWT claims carried by a caller token.
type Claims struct {
	Address string `json:"address"`
	Role    string `json:"role"`
	jwt.RegisteredClaims
}

// Service signs and validates caller tokens with a shared HMAC key.
type Service struct {
	signingKey []byte
	tokenTTL   time.Duration
}

func NewService(signingKey string, tokenTTL time.Duration) *Service {
	return &Service{
		signingKey: []byte(signingKey),
		tokenTTL:   tokenTTL,
	}
}

// Issue signs a token for the given caller address and role.
func (s *Service) Issue(address, role string) (string, error) {
	if address == "" {
		return "", faults.New(faults.CodeInvalidInput, "address cannot be empty")
	}
	if role == "" {
		return "", faults.New(faults.CodeInvalidInput, "role cannot be empty")
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Address: address,
		Role:    role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
			ID:        uuid.NewString(),
		},
	})

	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", err
	}
	return signed, nil
}

// Validate parses and verifies a caller token and returns its claims.
func (s *Service) Validate(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, faults.New(faults.CodeInvalidInput, "empty token")
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	}, jwt.WithIssuer(issuer))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, faults.New(faults.CodePermissionDenied, "token expired")
		}
		return nil, faults.New(faults.CodePermissionDenied, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, faults.New(faults.CodePermissionDenied, "invalid token claims")
	}
	if claims.Address == "" || claims.Role == "" {
		return nil, faults.New(faults.CodePermissionDenied, "token missing caller identity")
	}

	return claims, nil
}
