package jwtauth

import (
	authmw "tripsecretary/pkg/platform/middleware/auth"
)

// Adapter exposes the Service as the middleware's TokenValidator.
type Adapter struct {
	service *Service
}

func NewAdapter(service *Service) *Adapter {
	return &Adapter{service: service}
}

func (a *Adapter) ValidateToken(tokenString string) (*authmw.Claims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return &authmw.Claims{
		UserID: claims.UserID,
		JTI:    claims.ID,
	}, nil
}
