package model

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Roles a user can hold.
const (
	RoleUser      = "user"
	RoleGuide     = "guide"
	RoleLeadGuide = "lead-guide"
	RoleAdmin     = "admin"
)

const (
	DefaultPhoto = "default.jpg"

	PasswordCost     = 12
	PasswordResetTTL = 10 * time.Minute
)

type User struct {
	ID                   string     `json:"_id,omitempty"`
	Name                 string     `json:"name" validate:"required"`
	Email                string     `json:"email" validate:"required,email"`
	Photo                string     `json:"photo,omitempty"`
	Role                 string     `json:"role" validate:"required,oneof=user guide lead-guide admin"`
	Password             string     `json:"password,omitempty" validate:"required,min=8"`
	PasswordConfirm      string     `json:"passwordConfirm,omitempty"`
	PasswordChangedAt    *time.Time `json:"passwordChangedAt,omitempty"`
	PasswordResetToken   string     `json:"passwordResetToken,omitempty"`
	PasswordResetExpires *time.Time `json:"passwordResetExpires,omitempty"`
	Active               *bool      `json:"active,omitempty"`
}

// IsActive reports whether the account has not been deactivated.
func (u *User) IsActive() bool {
	return u.Active == nil || *u.Active
}

// CorrectPassword compares a candidate against the stored bcrypt hash.
func (u *User) CorrectPassword(candidate string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(candidate)) == nil
}

// ChangedPasswordAfter reports whether the password changed after a token
// issued at iat. Comparison is in whole seconds.
func (u *User) ChangedPasswordAfter(iat time.Time) bool {
	if u.PasswordChangedAt == nil {
		return false
	}
	return iat.Unix() < u.PasswordChangedAt.Unix()
}

// CreatePasswordResetToken sets a hashed reset token expiring after
// PasswordResetTTL and returns the plain token to send to the user.
func (u *User) CreatePasswordResetToken(now time.Time) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	token := hex.EncodeToString(buf)

	expires := now.Add(PasswordResetTTL)
	u.PasswordResetToken = HashResetToken(token)
	u.PasswordResetExpires = &expires
	return token, nil
}

// ClearPasswordReset drops a pending reset token.
func (u *User) ClearPasswordReset() {
	u.PasswordResetToken = ""
	u.PasswordResetExpires = nil
}

// HashResetToken is the stored form of a reset token.
func HashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
