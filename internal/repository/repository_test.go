package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/deppfellow/tourbook/internal/errs"
	"github.com/deppfellow/tourbook/internal/query"
	"github.com/deppfellow/tourbook/internal/resource"
	"github.com/deppfellow/tourbook/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func setup(t *testing.T) *Repositories {
	t.Helper()
	repos := New(store.NewMemoryStore(), WithPasswordCost(bcrypt.MinCost))
	require.NoError(t, repos.Registry.EnsureIndexes(context.Background()))
	return repos
}

func body(t *testing.T, v any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

func tourBody(name string, extra map[string]any) map[string]any {
	b := map[string]any{
		"name":         name,
		"duration":     5,
		"maxGroupSize": 25,
		"difficulty":   "easy",
		"price":        397,
		"summary":      "  Breathtaking hike through the Canadian Banff National Park  ",
		"imageCover":   "tour-1-cover.jpg",
		"startDates":   []string{"2021-04-25T09:00:00.000Z", "2021-07-20T00:00:00Z"},
	}
	for k, v := range extra {
		b[k] = v
	}
	return b
}

func createUser(t *testing.T, repos *Repositories, name, email string, extra map[string]any) store.Document {
	t.Helper()
	b := map[string]any{
		"name":            name,
		"email":           email,
		"password":        "pass1234",
		"passwordConfirm": "pass1234",
	}
	for k, v := range extra {
		b[k] = v
	}
	doc, err := repos.Users.Create(context.Background(), body(t, b))
	require.NoError(t, err)
	return doc
}

func fieldErrors(t *testing.T, err error) []errs.FieldError {
	t.Helper()
	var rerr *resource.Error
	require.ErrorAs(t, err, &rerr)
	require.Equal(t, resource.KindValidation, rerr.Kind)
	return rerr.Fields
}

func TestTour_CreateAppliesDefaultsAndDerivedFields(t *testing.T) {
	repos := setup(t)

	doc, err := repos.Tours.Create(context.Background(), body(t, tourBody("The Forest Hiker", nil)))
	require.NoError(t, err)

	assert.Equal(t, "the-forest-hiker", doc["slug"])
	assert.Equal(t, "Breathtaking hike through the Canadian Banff National Park", doc["summary"])
	assert.EqualValues(t, 4.5, doc["ratingsAverage"])
	assert.EqualValues(t, 0.7, doc["durationWeeks"])
	assert.Equal(t, []any{
		time.Date(2021, 4, 25, 9, 0, 0, 0, time.UTC),
		time.Date(2021, 7, 20, 0, 0, 0, 0, time.UTC),
	}, doc["startDates"])
}

func TestTour_DiscountMustBeBelowPrice(t *testing.T) {
	repos := setup(t)

	_, err := repos.Tours.Create(context.Background(), body(t, tourBody("The Forest Hiker", map[string]any{"priceDiscount": 500})))
	assert.Equal(t, []errs.FieldError{{
		Field: "priceDiscount",
		Error: "Discount price (500) should be below regular price",
	}}, fieldErrors(t, err))
}

func TestTour_UpdateRevalidatesDiscountAgainstStoredPrice(t *testing.T) {
	repos := setup(t)
	ctx := context.Background()

	doc, err := repos.Tours.Create(ctx, body(t, tourBody("The Forest Hiker", map[string]any{"priceDiscount": 100})))
	require.NoError(t, err)

	_, err = repos.Tours.Update(ctx, doc.ID(), body(t, map[string]any{"price": 50}))
	assert.Len(t, fieldErrors(t, err), 1)

	updated, err := repos.Tours.Update(ctx, doc.ID(), body(t, map[string]any{"name": "The Forest Hiker II"}))
	require.NoError(t, err)
	assert.Equal(t, "the-forest-hiker-ii", updated["slug"])
}

func TestTour_UniqueName(t *testing.T) {
	repos := setup(t)
	ctx := context.Background()

	_, err := repos.Tours.Create(ctx, body(t, tourBody("The Forest Hiker", nil)))
	require.NoError(t, err)

	_, err = repos.Tours.Create(ctx, body(t, tourBody("The Forest Hiker", nil)))
	assert.ErrorIs(t, err, store.ErrDuplicateKey)
}

func TestTour_SecretToursAreHidden(t *testing.T) {
	repos := setup(t)
	ctx := context.Background()

	_, err := repos.Tours.Create(ctx, body(t, tourBody("The Forest Hiker", nil)))
	require.NoError(t, err)
	secret, err := repos.Tours.Create(ctx, body(t, tourBody("The Secret Garden", map[string]any{"secretTour": true})))
	require.NoError(t, err)

	docs, err := repos.Tours.List(ctx, nil, nil)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "The Forest Hiker", docs[0]["name"])

	_, err = repos.Tours.Get(ctx, secret.ID())
	assert.True(t, resource.IsNotFound(err))
}

func TestTour_PopulatesGuidesAndReviews(t *testing.T) {
	repos := setup(t)
	ctx := context.Background()

	guide := createUser(t, repos, "Lourdes Browning", "loulou@example.com", map[string]any{"role": "guide"})
	reviewer := createUser(t, repos, "Laura Wilson", "laura@example.com", nil)

	tour, err := repos.Tours.Create(ctx, body(t, tourBody("The Forest Hiker", map[string]any{"guides": []string{guide.ID()}})))
	require.NoError(t, err)
	_, err = repos.Reviews.Create(ctx, body(t, map[string]any{
		"review": "Amazing!",
		"rating": 5,
		"tour":   tour.ID(),
		"user":   reviewer.ID(),
	}))
	require.NoError(t, err)

	doc, err := repos.Tours.BySlug(ctx, "the-forest-hiker")
	require.NoError(t, err)
	require.NotNil(t, doc)

	guides, ok := doc["guides"].([]any)
	require.True(t, ok, "guides is %T", doc["guides"])
	require.Len(t, guides, 1)
	guideDoc, ok := guides[0].(store.Document)
	require.True(t, ok, "guide is %T", guides[0])
	assert.Equal(t, "Lourdes Browning", guideDoc["name"])
	assert.NotContains(t, guideDoc, "password")
	assert.NotContains(t, guideDoc, query.VersionKey)

	reviews := doc["reviews"].([]store.Document)
	require.Len(t, reviews, 1)
	user := reviews[0]["user"].(store.Document)
	assert.Equal(t, store.Document{"_id": reviewer.ID(), "name": "Laura Wilson", "photo": "default.jpg"}, user)
}

func TestTour_RejectsInvalidGuideIDs(t *testing.T) {
	repos := setup(t)

	_, err := repos.Tours.Create(context.Background(), body(t, tourBody("The Forest Hiker", map[string]any{"guides": []string{"nope"}})))
	assert.Equal(t, []errs.FieldError{{Field: "guides", Error: "is not a valid id"}}, fieldErrors(t, err))
}

func TestUser_CreateHashesPasswordAndHidesSecrets(t *testing.T) {
	repos := setup(t)
	ctx := context.Background()

	doc := createUser(t, repos, "Jane Doe", "  Jane@Example.com ", nil)
	assert.Equal(t, "jane@example.com", doc["email"])
	assert.Equal(t, "user", doc["role"])
	assert.Equal(t, "default.jpg", doc["photo"])
	assert.NotContains(t, doc, "password")
	assert.NotContains(t, doc, "passwordConfirm")
	assert.NotContains(t, doc, "active")

	u, err := repos.Users.ByEmail(ctx, "JANE@example.com")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.True(t, u.CorrectPassword("pass1234"))
	assert.Empty(t, u.PasswordConfirm)
	assert.Nil(t, u.PasswordChangedAt)
}

func TestUser_PasswordConfirm(t *testing.T) {
	repos := setup(t)
	ctx := context.Background()

	_, err := repos.Users.Create(ctx, body(t, map[string]any{"name": "J", "email": "j@example.com", "password": "pass1234"}))
	assert.Equal(t, []errs.FieldError{{Field: "passwordConfirm", Error: "Please confirm your password"}}, fieldErrors(t, err))

	_, err = repos.Users.Create(ctx, body(t, map[string]any{
		"name": "J", "email": "j@example.com", "password": "pass1234", "passwordConfirm": "pass4321",
	}))
	assert.Equal(t, []errs.FieldError{{Field: "passwordConfirm", Error: "Passwords are not the same!"}}, fieldErrors(t, err))
}

func TestUser_SavePasswordStampsChangedAt(t *testing.T) {
	repos := setup(t)
	ctx := context.Background()

	doc := createUser(t, repos, "Jane Doe", "jane@example.com", nil)
	u, err := repos.Users.ByID(ctx, doc.ID())
	require.NoError(t, err)

	u.Password = "newpass123"
	u.PasswordConfirm = "newpass123"
	_, err = repos.Users.Save(ctx, u, resource.SaveOptions{Modified: []string{"password", "passwordConfirm"}})
	require.NoError(t, err)

	reloaded, err := repos.Users.ByID(ctx, doc.ID())
	require.NoError(t, err)
	assert.True(t, reloaded.CorrectPassword("newpass123"))
	require.NotNil(t, reloaded.PasswordChangedAt)
	assert.WithinDuration(t, time.Now().Add(-time.Second), *reloaded.PasswordChangedAt, 2*time.Second)

	// Saving other fields keeps the hash untouched.
	reloaded.Name = "Jane Smith"
	_, err = repos.Users.Save(ctx, reloaded, resource.SaveOptions{Modified: []string{"name"}})
	require.NoError(t, err)
	again, err := repos.Users.ByID(ctx, doc.ID())
	require.NoError(t, err)
	assert.True(t, again.CorrectPassword("newpass123"))
}

func TestUser_InactiveUsersAreHidden(t *testing.T) {
	repos := setup(t)
	ctx := context.Background()

	doc := createUser(t, repos, "Jane Doe", "jane@example.com", nil)
	_, err := repos.Users.Patch(ctx, doc.ID(), store.Update{Set: store.Document{"active": false}})
	require.NoError(t, err)

	u, err := repos.Users.ByEmail(ctx, "jane@example.com")
	require.NoError(t, err)
	assert.Nil(t, u)

	_, err = repos.Users.Get(ctx, doc.ID())
	assert.True(t, resource.IsNotFound(err))
}

func TestUser_ByResetToken(t *testing.T) {
	repos := setup(t)
	ctx := context.Background()

	doc := createUser(t, repos, "Jane Doe", "jane@example.com", nil)
	u, err := repos.Users.ByID(ctx, doc.ID())
	require.NoError(t, err)

	now := time.Now().UTC()
	token, err := u.CreatePasswordResetToken(now)
	require.NoError(t, err)
	_, err = repos.Users.Save(ctx, u, resource.SaveOptions{SkipValidation: true})
	require.NoError(t, err)

	found, err := repos.Users.ByResetToken(ctx, token, now)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, doc.ID(), found.ID)

	expired, err := repos.Users.ByResetToken(ctx, token, now.Add(11*time.Minute))
	require.NoError(t, err)
	assert.Nil(t, expired)

	wrong, err := repos.Users.ByResetToken(ctx, "not-the-token", now)
	require.NoError(t, err)
	assert.Nil(t, wrong)
}

func TestReview_StatsAndUniqueness(t *testing.T) {
	repos := setup(t)
	ctx := context.Background()

	tour, err := repos.Tours.Create(ctx, body(t, tourBody("The Forest Hiker", nil)))
	require.NoError(t, err)

	empty, err := repos.Reviews.Stats(ctx, tour.ID())
	require.NoError(t, err)
	assert.Equal(t, RatingStats{Quantity: 0, Average: 4.5}, empty)

	for i, rating := range []float64{4, 5, 5} {
		u := createUser(t, repos, "Reviewer", "r"+string(rune('a'+i))+"@example.com", nil)
		_, err := repos.Reviews.Create(ctx, body(t, map[string]any{
			"review": "Nice", "rating": rating, "tour": tour.ID(), "user": u.ID(),
		}))
		require.NoError(t, err)

		if i == 0 {
			_, err = repos.Reviews.Create(ctx, body(t, map[string]any{
				"review": "Again", "rating": 1, "tour": tour.ID(), "user": u.ID(),
			}))
			assert.True(t, errors.Is(err, store.ErrDuplicateKey))
		}
	}

	stats, err := repos.Reviews.Stats(ctx, tour.ID())
	require.NoError(t, err)
	assert.Equal(t, RatingStats{Quantity: 3, Average: 4.7}, stats)

	require.NoError(t, repos.Tours.SetRatings(ctx, tour.ID(), stats.Quantity, stats.Average))
	reloaded, err := repos.Tours.Get(ctx, tour.ID())
	require.NoError(t, err)
	assert.EqualValues(t, 3, reloaded["ratingsQuantity"])
	assert.EqualValues(t, 4.7, reloaded["ratingsAverage"])
}
