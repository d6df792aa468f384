package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReviewWritesRecomputeTourRatings(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	tour := f.tour(t, "The Forest Hiker", nil)
	other := f.tour(t, "The Sea Explorer", nil)
	alice := f.signup(t, "Alice", "alice@example.com")
	bob := f.signup(t, "Bob", "bob@example.com")

	ratingsOf := func(id string) (any, any) {
		doc, err := f.repos.Tours.Get(ctx, id)
		require.NoError(t, err)
		return doc["ratingsQuantity"], doc["ratingsAverage"]
	}

	first, err := f.repos.Reviews.Create(ctx, raw(t, map[string]any{
		"review": "Great", "rating": 5, "tour": tour.ID(), "user": alice.User.ID(),
	}))
	require.NoError(t, err)
	_, err = f.repos.Reviews.Create(ctx, raw(t, map[string]any{
		"review": "Fine", "rating": 4, "tour": tour.ID(), "user": bob.User.ID(),
	}))
	require.NoError(t, err)

	n, avg := ratingsOf(tour.ID())
	assert.EqualValues(t, 2, n)
	assert.EqualValues(t, 4.5, avg)

	_, err = f.repos.Reviews.Update(ctx, first.ID(), raw(t, map[string]any{"rating": 3}))
	require.NoError(t, err)
	n, avg = ratingsOf(tour.ID())
	assert.EqualValues(t, 2, n)
	assert.EqualValues(t, 3.5, avg)

	// Moving a review updates both tours.
	_, err = f.repos.Reviews.Update(ctx, first.ID(), raw(t, map[string]any{"tour": other.ID()}))
	require.NoError(t, err)
	n, avg = ratingsOf(tour.ID())
	assert.EqualValues(t, 1, n)
	assert.EqualValues(t, 4, avg)
	n, _ = ratingsOf(other.ID())
	assert.EqualValues(t, 1, n)

	require.NoError(t, f.repos.Reviews.Delete(ctx, first.ID()))
	n, avg = ratingsOf(other.ID())
	assert.EqualValues(t, 0, n)
	assert.EqualValues(t, 4.5, avg)
}

func TestWithDefaults(t *testing.T) {
	out, err := WithDefaults(json.RawMessage(`{"review":"ok","tour":"explicit"}`), map[string]string{
		"tour": "from-route",
		"user": "u1",
		"none": "",
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"review":"ok","tour":"explicit","user":"u1"}`, string(out))

	out, err = WithDefaults(nil, map[string]string{"tour": "t1"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"tour":"t1"}`, string(out))

	out, err = WithDefaults(json.RawMessage(`[1]`), map[string]string{"tour": "t1"})
	require.NoError(t, err)
	assert.Equal(t, `[1]`, string(out))
}
