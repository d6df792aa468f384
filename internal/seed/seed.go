// Package seed loads the development data set into a store and clears it
// again.
package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/deppfellow/tourbook/internal/model"
	"github.com/deppfellow/tourbook/internal/query"
	"github.com/deppfellow/tourbook/internal/repository"
	"github.com/deppfellow/tourbook/internal/resource"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	ToursFile   = "tours.json"
	UsersFile   = "users.json"
	ReviewsFile = "reviews.json"
)

// Result counts the documents imported or deleted per collection.
type Result struct {
	Tours   int64 `json:"tours"`
	Users   int64 `json:"users"`
	Reviews int64 `json:"reviews"`
}

type Seeder struct {
	repos  *repository.Repositories
	logger *zerolog.Logger
}

func New(repos *repository.Repositories, logger *zerolog.Logger) *Seeder {
	return &Seeder{repos: repos, logger: logger}
}

// Import reads the three data files from dir. Stores issue their own ids,
// so references in guides, tour and user are rewritten to the new ones.
// Users whose password is already a bcrypt hash are stored as is.
func (s *Seeder) Import(ctx context.Context, dir string) (Result, error) {
	var res Result
	ids := map[string]string{}

	users, err := readFile(filepath.Join(dir, UsersFile))
	if err != nil {
		return res, err
	}
	for i, raw := range users {
		var u model.User
		oldID, err := decode(raw, &u)
		if err != nil {
			return res, errors.Wrapf(err, "%s entry %d", UsersFile, i)
		}

		opts := resource.SaveOptions{}
		if strings.HasPrefix(u.Password, "$2") {
			opts.SkipValidation = true
			opts.SkipHooks = true
		} else if u.PasswordConfirm == "" {
			u.PasswordConfirm = u.Password
		}

		doc, err := s.repos.Users.Insert(ctx, &u, opts)
		if err != nil {
			return res, errors.Wrapf(err, "import user %q", u.Email)
		}
		remember(ids, oldID, doc.ID())
		res.Users++
	}

	tours, err := readFile(filepath.Join(dir, ToursFile))
	if err != nil {
		return res, err
	}
	for i, raw := range tours {
		var t model.Tour
		oldID, err := decode(raw, &t)
		if err != nil {
			return res, errors.Wrapf(err, "%s entry %d", ToursFile, i)
		}
		for j, guide := range t.Guides {
			t.Guides[j] = lookup(ids, guide)
		}

		doc, err := s.repos.Tours.Insert(ctx, &t, resource.SaveOptions{})
		if err != nil {
			return res, errors.Wrapf(err, "import tour %q", t.Name)
		}
		remember(ids, oldID, doc.ID())
		res.Tours++
	}

	reviews, err := readFile(filepath.Join(dir, ReviewsFile))
	if err != nil {
		return res, err
	}
	for i, raw := range reviews {
		var r model.Review
		if _, err := decode(raw, &r); err != nil {
			return res, errors.Wrapf(err, "%s entry %d", ReviewsFile, i)
		}
		r.Tour = lookup(ids, r.Tour)
		r.User = lookup(ids, r.User)

		if _, err := s.repos.Reviews.Insert(ctx, &r, resource.SaveOptions{}); err != nil {
			return res, errors.Wrapf(err, "import review %d", i)
		}
		res.Reviews++
	}

	s.logger.Info().
		Int64("tours", res.Tours).
		Int64("users", res.Users).
		Int64("reviews", res.Reviews).
		Msg("data imported")
	return res, nil
}

// Delete removes every tour, user and review, inactive users included.
func (s *Seeder) Delete(ctx context.Context) (Result, error) {
	var res Result
	targets := []struct {
		name  string
		count *int64
		del   func(context.Context, query.Filter) (int64, error)
	}{
		{repository.CollectionReviews, &res.Reviews, s.repos.Reviews.Collection().DeleteMany},
		{repository.CollectionTours, &res.Tours, s.repos.Tours.Collection().DeleteMany},
		{repository.CollectionUsers, &res.Users, s.repos.Users.Collection().DeleteMany},
	}
	for _, target := range targets {
		n, err := target.del(ctx, query.Filter{})
		if err != nil {
			return res, errors.Wrapf(err, "delete %s", target.name)
		}
		*target.count = n
	}

	s.logger.Info().
		Int64("tours", res.Tours).
		Int64("users", res.Users).
		Int64("reviews", res.Reviews).
		Msg("data deleted")
	return res, nil
}

func readFile(path string) ([]json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read seed file")
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return entries, nil
}

// decode fills v from raw and returns the entry's original id. The id is
// cleared on v so the store assigns a fresh one.
func decode[T any](raw json.RawMessage, v *T) (string, error) {
	var head struct {
		ID string `json:"_id"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return "", err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return "", err
	}
	delete(fields, "_id")
	delete(fields, "id")
	clean, err := json.Marshal(fields)
	if err != nil {
		return "", err
	}
	if err := json.Unmarshal(clean, v); err != nil {
		return "", err
	}
	return head.ID, nil
}

func remember(ids map[string]string, oldID, newID string) {
	if oldID != "" {
		ids[oldID] = newID
	}
}

// lookup maps an original id to its new one. Unknown ids are kept, so a
// data set already using store ids imports unchanged.
func lookup(ids map[string]string, id string) string {
	if mapped, ok := ids[id]; ok {
		return mapped
	}
	return id
}
