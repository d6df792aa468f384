package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/deppfellow/tourbook/internal/repository"
	"github.com/deppfellow/tourbook/internal/store"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type mail struct {
	kind, to, name, url string
}

type fakeMailer struct {
	sent []mail
	err  error
}

func (m *fakeMailer) SendWelcomeEmail(_ context.Context, to, name, url string) error {
	m.sent = append(m.sent, mail{"welcome", to, name, url})
	return m.err
}

func (m *fakeMailer) SendPasswordResetEmail(_ context.Context, to, name, url string) error {
	m.sent = append(m.sent, mail{"reset", to, name, url})
	return m.err
}

const testSecret = "a-very-long-test-secret-of-32-bytes!!"

type fixture struct {
	repos   *repository.Repositories
	mailer  *fakeMailer
	auth    *AuthService
	tours   *TourService
	reviews *ReviewService
}

func setup(t *testing.T) *fixture {
	t.Helper()
	repos := repository.New(store.NewMemoryStore(), repository.WithPasswordCost(bcrypt.MinCost))
	require.NoError(t, repos.Registry.EnsureIndexes(context.Background()))

	mailer := &fakeMailer{}
	auth, err := NewAuthService(repos.Users, mailer, AuthConfig{Secret: testSecret, TokenTTL: time.Hour})
	require.NoError(t, err)

	reviews := NewReviewService(repos)
	reviews.Register()

	return &fixture{repos: repos, mailer: mailer, auth: auth, tours: NewTourService(repos.Tours), reviews: reviews}
}

func raw(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func (f *fixture) signup(t *testing.T, name, email string) *Session {
	t.Helper()
	s, err := f.auth.Signup(context.Background(), SignupInput{
		Name: name, Email: email, Password: "pass1234", PasswordConfirm: "pass1234",
	}, "http://localhost/me")
	require.NoError(t, err)
	return s
}

func (f *fixture) tour(t *testing.T, name string, extra map[string]any) store.Document {
	t.Helper()
	b := map[string]any{
		"name":         name,
		"duration":     7,
		"maxGroupSize": 10,
		"difficulty":   "easy",
		"price":        500,
		"summary":      "A tour",
		"imageCover":   "cover.jpg",
	}
	for k, v := range extra {
		b[k] = v
	}
	doc, err := f.repos.Tours.Create(context.Background(), raw(t, b))
	require.NoError(t, err)
	return doc
}

var errBoom = errors.New("boom")
