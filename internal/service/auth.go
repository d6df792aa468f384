package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/deppfellow/tourbook/internal/errs"
	"github.com/deppfellow/tourbook/internal/lib/job"
	"github.com/deppfellow/tourbook/internal/model"
	"github.com/deppfellow/tourbook/internal/repository"
	"github.com/deppfellow/tourbook/internal/resource"
	"github.com/deppfellow/tourbook/internal/store"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

// Client-facing authentication failures.
var (
	ErrNotLoggedIn       = errs.NewUnauthorizedError("You are not logged in! Please log in to get access.", false)
	ErrInvalidToken      = errs.NewUnauthorizedError("Invalid token. Please log in again!", false)
	ErrTokenExpired      = errs.NewUnauthorizedError("Your token has expired! Please log in again.", false)
	ErrUserGone          = errs.NewUnauthorizedError("The user belonging to this token does no longer exist.", false)
	ErrPasswordChanged   = errs.NewUnauthorizedError("User recently changed password! Please log in again.", false)
	ErrBadCredentials    = errs.NewUnauthorizedError("Incorrect email or password", false)
	ErrWrongPassword     = errs.NewUnauthorizedError("Your current password is wrong.", false)
	ErrMissingLogin      = errs.NewBadRequestError("Please provide email and password!", false, nil, nil, nil)
	ErrResetTokenInvalid = errs.NewBadRequestError("Token is invalid or has expired", false, nil, nil, nil)
	ErrNotForPassword    = errs.NewBadRequestError("This route is not for password updates. Please use /updateMyPassword.", false, nil, nil, nil)
	ErrNoSuchEmail       = errs.NewNotFoundError("There is no user with email address.", false, nil)
	ErrEmailFailed       = errs.NewInternalServerErrorWithMessage("There was an error sending the email. Try again later!")
)

type AuthConfig struct {
	Secret   string
	TokenTTL time.Duration
}

// Claims identifies a user by Subject.
type Claims struct {
	jwt.RegisteredClaims
}

// Session is a freshly issued token with the user it belongs to.
type Session struct {
	Token string
	User  store.Document
}

type AuthService struct {
	users  *repository.UserRepository
	mailer job.Mailer
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewAuthService(users *repository.UserRepository, mailer job.Mailer, cfg AuthConfig) (*AuthService, error) {
	if cfg.Secret == "" {
		return nil, errors.New("auth secret is required")
	}
	return &AuthService{
		users:  users,
		mailer: mailer,
		secret: []byte(cfg.Secret),
		ttl:    cfg.TokenTTL,
		now:    time.Now,
	}, nil
}

// TokenTTL is the lifetime of issued tokens.
func (a *AuthService) TokenTTL() time.Duration { return a.ttl }

// SignToken issues a token for userID.
func (a *AuthService) SignToken(userID string) (string, error) {
	now := a.now()
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

// ParseToken verifies signature and expiry.
func (a *AuthService) ParseToken(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.now), jwt.WithIssuedAt())
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired
	case err != nil:
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" || claims.IssuedAt == nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Authenticate resolves a token to a current, active user.
func (a *AuthService) Authenticate(ctx context.Context, token string) (*model.User, error) {
	if token == "" {
		return nil, ErrNotLoggedIn
	}
	claims, err := a.ParseToken(token)
	if err != nil {
		return nil, err
	}

	user, err := a.users.ByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrInvalidID) {
			return nil, ErrUserGone
		}
		return nil, err
	}
	if user == nil {
		return nil, ErrUserGone
	}
	if user.ChangedPasswordAfter(claims.IssuedAt.Time) {
		return nil, ErrPasswordChanged
	}
	return user, nil
}

type SignupInput struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

// Signup creates a user with the default role and sends the welcome email
// linking to meURL. A failed email does not fail the signup.
func (a *AuthService) Signup(ctx context.Context, in SignupInput, meURL string) (*Session, error) {
	doc, err := a.users.Insert(ctx, &model.User{
		Name:            in.Name,
		Email:           in.Email,
		Password:        in.Password,
		PasswordConfirm: in.PasswordConfirm,
	}, resource.SaveOptions{})
	if err != nil {
		return nil, err
	}

	name, _ := doc["name"].(string)
	email, _ := doc["email"].(string)
	if err := a.mailer.SendWelcomeEmail(ctx, email, firstName(name), meURL); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("user_id", doc.ID()).Msg("failed to send welcome email")
	}

	return a.session(doc)
}

// Login checks credentials and issues a token.
func (a *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	if email == "" || password == "" {
		return nil, ErrMissingLogin
	}
	user, err := a.users.ByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.CorrectPassword(password) {
		return nil, ErrBadCredentials
	}
	return a.sessionFor(ctx, user.ID)
}

// ForgotPassword stores a reset token and emails the link built by
// resetURL. The token is dropped again when the email cannot be sent.
func (a *AuthService) ForgotPassword(ctx context.Context, email string, resetURL func(token string) string) error {
	user, err := a.users.ByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrNoSuchEmail
	}

	token, err := user.CreatePasswordResetToken(a.now())
	if err != nil {
		return err
	}
	if _, err := a.users.Save(ctx, user, resource.SaveOptions{SkipValidation: true}); err != nil {
		return err
	}

	if err := a.mailer.SendPasswordResetEmail(ctx, user.Email, firstName(user.Name), resetURL(token)); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("user_id", user.ID).Msg("failed to send password reset email")
		user.ClearPasswordReset()
		if _, saveErr := a.users.Save(ctx, user, resource.SaveOptions{SkipValidation: true}); saveErr != nil {
			return saveErr
		}
		return ErrEmailFailed
	}
	return nil
}

// ResetPassword sets a new password for the holder of a valid reset token.
func (a *AuthService) ResetPassword(ctx context.Context, token, password, confirm string) (*Session, error) {
	user, err := a.users.ByResetToken(ctx, token, a.now())
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrResetTokenInvalid
	}

	user.Password = password
	user.PasswordConfirm = confirm
	user.ClearPasswordReset()
	if _, err := a.users.Save(ctx, user, resource.SaveOptions{
		Modified: []string{"password", "passwordConfirm", "passwordResetToken", "passwordResetExpires"},
	}); err != nil {
		return nil, err
	}
	return a.sessionFor(ctx, user.ID)
}

type UpdatePasswordInput struct {
	PasswordCurrent string `json:"passwordCurrent"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

// UpdatePassword changes the password of a logged in user.
func (a *AuthService) UpdatePassword(ctx context.Context, userID string, in UpdatePasswordInput) (*Session, error) {
	user, err := a.users.ByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserGone
	}
	if !user.CorrectPassword(in.PasswordCurrent) {
		return nil, ErrWrongPassword
	}

	user.Password = in.Password
	user.PasswordConfirm = in.PasswordConfirm
	if _, err := a.users.Save(ctx, user, resource.SaveOptions{Modified: []string{"password", "passwordConfirm"}}); err != nil {
		return nil, err
	}
	return a.sessionFor(ctx, user.ID)
}

// selfEditable are the fields a user may change on their own account.
var selfEditable = []string{"name", "email"}

// UpdateMe changes the caller's name, email and photo. A non-empty photo
// overrides the body.
func (a *AuthService) UpdateMe(ctx context.Context, userID string, body json.RawMessage, photo string) (store.Document, error) {
	fields := map[string]json.RawMessage{}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &fields); err != nil {
			return nil, errs.NewBadRequestError("Invalid request body", false, nil, nil, nil)
		}
	}
	if _, ok := fields["password"]; ok {
		return nil, ErrNotForPassword
	}
	if _, ok := fields["passwordConfirm"]; ok {
		return nil, ErrNotForPassword
	}

	filtered := map[string]any{}
	for _, f := range selfEditable {
		if v, ok := fields[f]; ok {
			filtered[f] = v
		}
	}
	if photo != "" {
		filtered["photo"] = photo
	}

	raw, err := json.Marshal(filtered)
	if err != nil {
		return nil, err
	}
	return a.users.Update(ctx, userID, raw)
}

// DeleteMe deactivates the caller's account.
func (a *AuthService) DeleteMe(ctx context.Context, userID string) error {
	_, err := a.users.Patch(ctx, userID, store.Update{Set: store.Document{"active": false}})
	return err
}

func (a *AuthService) sessionFor(ctx context.Context, userID string) (*Session, error) {
	doc, err := a.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return a.session(doc)
}

func (a *AuthService) session(doc store.Document) (*Session, error) {
	token, err := a.SignToken(doc.ID())
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, User: doc}, nil
}

func firstName(name string) string {
	for i, r := range name {
		if r == ' ' {
			return name[:i]
		}
	}
	return name
}
