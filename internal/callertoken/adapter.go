package callertoken

import (
	"attest/internal/platform/middleware"
)

// Adapter exposes the token service through the middleware's validator
// interface.
type Adapter struct {
	service *Service
}

func NewAdapter(service *Service) *Adapter {
	return &Adapter{service: service}
}

func (a *Adapter) Validate(tokenString string) (*middleware.CallerClaims, error) {
	claims, err := a.service.Validate(tokenString)
	if err != nil {
		return nil, err
	}
	return &middleware.CallerClaims{
		Address: claims.Address,
		Role:    claims.Role,
	}, nil
}
