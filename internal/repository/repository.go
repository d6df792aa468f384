// Package repository declares the stored resources and the lookups the
// services need beyond the generic handlers.
package repository

import (
	"github.com/deppfellow/tourbook/internal/model"
	"github.com/deppfellow/tourbook/internal/resource"
	"github.com/deppfellow/tourbook/internal/server"
	"github.com/deppfellow/tourbook/internal/store"
)

type Repositories struct {
	Registry *resource.Registry
	Tours    *TourRepository
	Reviews  *ReviewRepository
	Users    *UserRepository
}

type options struct {
	passwordCost int
}

// Option tunes New.
type Option func(*options)

// WithPasswordCost overrides the bcrypt cost used when saving passwords.
func WithPasswordCost(cost int) Option {
	return func(o *options) { o.passwordCost = cost }
}

// NewRepositories builds the repositories over the server's store.
func NewRepositories(s *server.Server, opts ...Option) *Repositories {
	return New(s.Store, opts...)
}

// New registers every resource against st.
func New(st store.Store, opts ...Option) *Repositories {
	o := options{passwordCost: model.PasswordCost}
	for _, opt := range opts {
		opt(&o)
	}

	reg := resource.NewRegistry(st)
	return &Repositories{
		Registry: reg,
		Tours:    newTourRepository(reg),
		Reviews:  newReviewRepository(reg),
		Users:    newUserRepository(reg, o.passwordCost),
	}
}
