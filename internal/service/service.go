// Package service holds the business operations that sit between the
// HTTP handlers and the repositories.
package service

import (
	"github.com/deppfellow/tourbook/internal/lib/job"
	"github.com/deppfellow/tourbook/internal/repository"
	"github.com/deppfellow/tourbook/internal/server"
)

type Services struct {
	Repos   *repository.Repositories
	Auth    *AuthService
	Tours   *TourService
	Reviews *ReviewService
	Job     *job.JobService
}

func NewService(s *server.Server, repos *repository.Repositories) (*Services, error) {
	authService, err := NewAuthService(repos.Users, s.Job, AuthConfig{
		Secret:   s.Config.Auth.SecretKey,
		TokenTTL: s.Config.Auth.TokenTTL,
	})
	if err != nil {
		return nil, err
	}

	reviewService := NewReviewService(repos)
	reviewService.Register()

	return &Services{
		Repos:   repos,
		Auth:    authService,
		Tours:   NewTourService(repos.Tours),
		Reviews: reviewService,
		Job:     s.Job,
	}, nil
}
