package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/deppfellow/tourbook/internal/model"
	"github.com/deppfellow/tourbook/internal/resource"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignup_IssuesTokenAndSendsWelcome(t *testing.T) {
	f := setup(t)

	s := f.signup(t, "Jane Doe", "jane@example.com")
	assert.NotEmpty(t, s.Token)
	assert.Equal(t, "jane@example.com", s.User["email"])
	assert.NotContains(t, s.User, "password")
	assert.Equal(t, []mail{{"welcome", "jane@example.com", "Jane", "http://localhost/me"}}, f.mailer.sent)

	u, err := f.auth.Authenticate(context.Background(), s.Token)
	require.NoError(t, err)
	assert.Equal(t, s.User.ID(), u.ID)
	assert.Equal(t, model.RoleUser, u.Role)
}

func TestSignup_IgnoresRoleAndSurvivesMailFailure(t *testing.T) {
	f := setup(t)
	f.mailer.err = errBoom

	s := f.signup(t, "Mallory", "mallory@example.com")
	assert.Equal(t, "user", s.User["role"])
}

func TestSignup_ValidationFailure(t *testing.T) {
	f := setup(t)

	_, err := f.auth.Signup(context.Background(), SignupInput{Name: "J", Email: "nope", Password: "short"}, "")
	var rerr *resource.Error
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, resource.KindValidation, rerr.Kind)
	assert.Empty(t, f.mailer.sent)
}

func TestLogin(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.signup(t, "Jane Doe", "jane@example.com")

	_, err := f.auth.Login(ctx, "", "pass1234")
	assert.Equal(t, ErrMissingLogin, err)

	_, err = f.auth.Login(ctx, "jane@example.com", "wrong-password")
	assert.Equal(t, ErrBadCredentials, err)

	_, err = f.auth.Login(ctx, "nobody@example.com", "pass1234")
	assert.Equal(t, ErrBadCredentials, err)

	s, err := f.auth.Login(ctx, "JANE@example.com", "pass1234")
	require.NoError(t, err)
	assert.NotEmpty(t, s.Token)
}

func TestAuthenticate_Failures(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.auth.Authenticate(ctx, "")
	assert.Equal(t, ErrNotLoggedIn, err)

	_, err = f.auth.Authenticate(ctx, "not.a.jwt")
	assert.Equal(t, ErrInvalidToken, err)

	other, err := NewAuthService(f.repos.Users, f.mailer, AuthConfig{Secret: "another-secret-that-is-long-enough!!", TokenTTL: time.Hour})
	require.NoError(t, err)
	s := f.signup(t, "Jane Doe", "jane@example.com")
	forged, err := other.SignToken(s.User.ID())
	require.NoError(t, err)
	_, err = f.auth.Authenticate(ctx, forged)
	assert.Equal(t, ErrInvalidToken, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: s.User.ID()}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = f.auth.Authenticate(ctx, none)
	assert.Equal(t, ErrInvalidToken, err)
}

func TestAuthenticate_Expired(t *testing.T) {
	f := setup(t)
	s := f.signup(t, "Jane Doe", "jane@example.com")

	f.auth.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err := f.auth.Authenticate(context.Background(), s.Token)
	assert.Equal(t, ErrTokenExpired, err)
}

func TestAuthenticate_DeletedOrInactiveUser(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	s := f.signup(t, "Jane Doe", "jane@example.com")

	require.NoError(t, f.auth.DeleteMe(ctx, s.User.ID()))
	_, err := f.auth.Authenticate(ctx, s.Token)
	assert.Equal(t, ErrUserGone, err)

	_, err = f.auth.Login(ctx, "jane@example.com", "pass1234")
	assert.Equal(t, ErrBadCredentials, err)
}

func TestUpdatePassword_InvalidatesOlderTokens(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	s := f.signup(t, "Jane Doe", "jane@example.com")

	_, err := f.auth.UpdatePassword(ctx, s.User.ID(), UpdatePasswordInput{
		PasswordCurrent: "wrong", Password: "newpass123", PasswordConfirm: "newpass123",
	})
	assert.Equal(t, ErrWrongPassword, err)

	// Tokens issued a few seconds before the change stop working.
	f.auth.now = func() time.Time { return time.Now().Add(-5 * time.Second) }
	old, err := f.auth.SignToken(s.User.ID())
	require.NoError(t, err)
	f.auth.now = time.Now

	fresh, err := f.auth.UpdatePassword(ctx, s.User.ID(), UpdatePasswordInput{
		PasswordCurrent: "pass1234", Password: "newpass123", PasswordConfirm: "newpass123",
	})
	require.NoError(t, err)

	_, err = f.auth.Authenticate(ctx, old)
	assert.Equal(t, ErrPasswordChanged, err)
	_, err = f.auth.Authenticate(ctx, fresh.Token)
	assert.NoError(t, err)

	_, err = f.auth.Login(ctx, "jane@example.com", "newpass123")
	assert.NoError(t, err)
}

func TestForgotAndResetPassword(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.signup(t, "Jane Doe", "jane@example.com")

	err := f.auth.ForgotPassword(ctx, "nobody@example.com", nil)
	assert.Equal(t, ErrNoSuchEmail, err)

	var token string
	require.NoError(t, f.auth.ForgotPassword(ctx, "jane@example.com", func(tok string) string {
		token = tok
		return "http://localhost/api/v1/users/resetPassword/" + tok
	}))
	require.Len(t, f.mailer.sent, 2)
	assert.Equal(t, "reset", f.mailer.sent[1].kind)
	assert.Equal(t, "http://localhost/api/v1/users/resetPassword/"+token, f.mailer.sent[1].url)

	_, err = f.auth.ResetPassword(ctx, "bogus", "newpass123", "newpass123")
	assert.Equal(t, ErrResetTokenInvalid, err)

	_, err = f.auth.ResetPassword(ctx, token, "newpass123", "mismatch1")
	var rerr *resource.Error
	require.ErrorAs(t, err, &rerr)

	s, err := f.auth.ResetPassword(ctx, token, "newpass123", "newpass123")
	require.NoError(t, err)
	assert.NotEmpty(t, s.Token)

	_, err = f.auth.ResetPassword(ctx, token, "again12345", "again12345")
	assert.Equal(t, ErrResetTokenInvalid, err)

	_, err = f.auth.Login(ctx, "jane@example.com", "newpass123")
	assert.NoError(t, err)
}

func TestForgotPassword_ExpiredToken(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.signup(t, "Jane Doe", "jane@example.com")

	var token string
	require.NoError(t, f.auth.ForgotPassword(ctx, "jane@example.com", func(tok string) string { token = tok; return tok }))

	f.auth.now = func() time.Time { return time.Now().Add(11 * time.Minute) }
	_, err := f.auth.ResetPassword(ctx, token, "newpass123", "newpass123")
	assert.Equal(t, ErrResetTokenInvalid, err)
}

func TestForgotPassword_MailFailureDropsToken(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	s := f.signup(t, "Jane Doe", "jane@example.com")
	f.mailer.err = errBoom

	err := f.auth.ForgotPassword(ctx, "jane@example.com", func(tok string) string { return tok })
	assert.Equal(t, ErrEmailFailed, err)

	u, err := f.repos.Users.ByID(ctx, s.User.ID())
	require.NoError(t, err)
	assert.Empty(t, u.PasswordResetToken)
	assert.Nil(t, u.PasswordResetExpires)
}

func TestUpdateMe(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	s := f.signup(t, "Jane Doe", "jane@example.com")

	_, err := f.auth.UpdateMe(ctx, s.User.ID(), json.RawMessage(`{"password":"x"}`), "")
	assert.Equal(t, ErrNotForPassword, err)

	doc, err := f.auth.UpdateMe(ctx, s.User.ID(), json.RawMessage(`{"name":"Jane Smith","role":"admin"}`), "user-1.jpeg")
	require.NoError(t, err)
	assert.Equal(t, "Jane Smith", doc["name"])
	assert.Equal(t, "user", doc["role"])
	assert.Equal(t, "user-1.jpeg", doc["photo"])
}

func TestFirstName(t *testing.T) {
	assert.Equal(t, "Jane", firstName("Jane Doe"))
	assert.Equal(t, "Cher", firstName("Cher"))
}
