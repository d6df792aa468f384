package repository

import (
	"context"
	"strings"
	"time"

	"github.com/deppfellow/tourbook/internal/errs"
	"github.com/deppfellow/tourbook/internal/model"
	"github.com/deppfellow/tourbook/internal/query"
	"github.com/deppfellow/tourbook/internal/resource"
	"github.com/deppfellow/tourbook/internal/store"
	"golang.org/x/crypto/bcrypt"
)

const CollectionUsers = "users"

type UserRepository struct {
	*resource.Factory[model.User]
}

func newUserRepository(reg *resource.Registry, cost int) *UserRepository {
	return &UserRepository{resource.NewFactory(reg, resource.Descriptor[model.User]{
		Collection: CollectionUsers,
		Singular:   "user",
		Indexes: []store.Index{
			{Fields: []store.IndexField{{Field: "email"}}, Unique: true},
		},
		Scope:  query.Filter{}.Add("active", query.OpNe, false),
		Hidden: []string{"password", "passwordConfirm", "active", "passwordResetToken", "passwordResetExpires"},
		Defaults: func(u *model.User) {
			if u.Photo == "" {
				u.Photo = model.DefaultPhoto
			}
			if u.Role == "" {
				u.Role = model.RoleUser
			}
			if u.Active == nil {
				active := true
				u.Active = &active
			}
		},
		Normalize: func(u *model.User) {
			u.Email = strings.ToLower(strings.TrimSpace(u.Email))
			u.Name = strings.TrimSpace(u.Name)
		},
		Validators: []resource.Validator[model.User]{validatePasswordConfirm},
		BeforeSave: []resource.Hook[model.User]{hashPassword(cost)},
	})}
}

func validatePasswordConfirm(_ context.Context, u *model.User, sc resource.SaveContext) []errs.FieldError {
	if !sc.IsModified("password") {
		return nil
	}
	switch {
	case u.PasswordConfirm == "":
		return []errs.FieldError{{Field: "passwordConfirm", Error: "Please confirm your password"}}
	case u.PasswordConfirm != u.Password:
		return []errs.FieldError{{Field: "passwordConfirm", Error: "Passwords are not the same!"}}
	}
	return nil
}

// hashPassword replaces a changed password with its bcrypt hash. On
// existing users it also stamps passwordChangedAt one second in the past,
// so a token issued right after the change stays valid.
func hashPassword(cost int) resource.Hook[model.User] {
	return func(_ context.Context, u *model.User, sc resource.SaveContext) error {
		if !sc.IsModified("password") {
			return nil
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), cost)
		if err != nil {
			return err
		}
		u.Password = string(hash)
		u.PasswordConfirm = ""
		if !sc.IsNew {
			changed := time.Now().UTC().Add(-time.Second)
			u.PasswordChangedAt = &changed
		}
		return nil
	}
}

// ByID returns an active user with hidden fields, or nil.
func (r *UserRepository) ByID(ctx context.Context, id string) (*model.User, error) {
	return r.FindOne(ctx, query.Eq(query.IDField, id))
}

// ByEmail returns an active user with hidden fields, or nil.
func (r *UserRepository) ByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.FindOne(ctx, query.Eq("email", strings.ToLower(strings.TrimSpace(email))))
}

// ByResetToken returns the user holding the unexpired plain reset token,
// or nil.
func (r *UserRepository) ByResetToken(ctx context.Context, token string, now time.Time) (*model.User, error) {
	return r.FindOne(ctx, query.Eq("passwordResetToken", model.HashResetToken(token)).
		Add("passwordResetExpires", query.OpGt, now.UTC()))
}
