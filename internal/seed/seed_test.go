package seed

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/deppfellow/tourbook/internal/query"
	"github.com/deppfellow/tourbook/internal/repository"
	"github.com/deppfellow/tourbook/internal/service"
	"github.com/deppfellow/tourbook/internal/store"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const usersJSON = `[
  {"_id": "u1", "name": "Leo Gillespie", "email": "admin@example.io", "role": "admin", "password": "test1234"},
  {"_id": "u2", "name": "Lourdes Browning", "email": "guide@example.io", "role": "guide", "password": "test1234"},
  {"_id": "u3", "name": "Sophie Louise Hart", "email": "sophie@example.io", "role": "user", "password": "test1234"},
  {"_id": "u4", "name": "Ayla Cornell", "email": "ayla@example.io", "role": "user", "password": "%s"}
]`

const toursJSON = `[
  {
    "_id": "t1",
    "name": "The Forest Hiker",
    "duration": 5,
    "maxGroupSize": 25,
    "difficulty": "easy",
    "price": 397,
    "summary": "Breathtaking hike through the Canadian Banff National Park",
    "imageCover": "tour-1-cover.jpg",
    "startDates": ["2021-04-25T09:00:00.000Z"],
    "guides": ["u2"],
    "locations": [{"_id": "loc1", "id": "x", "type": "Point", "coordinates": [-116.21, 51.41], "day": 1}]
  }
]`

const reviewsJSON = `[
  {"_id": "r1", "review": "Amazing!", "rating": 5, "tour": "t1", "user": "u3"},
  {"_id": "r2", "review": "Pretty good.", "rating": 4, "tour": "t1", "user": "u4"}
]`

func setup(t *testing.T) (*Seeder, *repository.Repositories) {
	t.Helper()
	repos := repository.New(store.NewMemoryStore(), repository.WithPasswordCost(bcrypt.MinCost))
	require.NoError(t, repos.Registry.EnsureIndexes(context.Background()))
	service.NewReviewService(repos).Register()

	logger := zerolog.Nop()
	return New(repos, &logger), repos
}

func writeData(t *testing.T, hashed string) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		UsersFile:   fmt.Sprintf(usersJSON, hashed),
		ToursFile:   toursJSON,
		ReviewsFile: reviewsJSON,
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
	}
	return dir
}

func TestImport(t *testing.T) {
	ctx := context.Background()
	seeder, repos := setup(t)

	hash, err := bcrypt.GenerateFromPassword([]byte("already1234"), bcrypt.MinCost)
	require.NoError(t, err)

	res, err := seeder.Import(ctx, writeData(t, string(hash)))
	require.NoError(t, err)
	assert.Equal(t, Result{Tours: 1, Users: 4, Reviews: 2}, res)

	guide, err := repos.Users.FindOne(ctx, query.Eq("email", "guide@example.io"))
	require.NoError(t, err)
	require.NotNil(t, guide)
	assert.True(t, guide.CorrectPassword("test1234"))

	ayla, err := repos.Users.FindOne(ctx, query.Eq("email", "ayla@example.io"))
	require.NoError(t, err)
	require.NotNil(t, ayla)
	assert.True(t, ayla.CorrectPassword("already1234"))

	tours, err := repos.Tours.Find(ctx, query.Filter{})
	require.NoError(t, err)
	require.Len(t, tours, 1)
	tour := tours[0]
	assert.Equal(t, []string{guide.ID}, tour.Guides)
	assert.Equal(t, 2, tour.RatingsQuantity)
	assert.Equal(t, 4.5, tour.RatingsAverage)

	reviews, err := repos.Reviews.Find(ctx, query.Eq("tour", tour.ID))
	require.NoError(t, err)
	assert.Len(t, reviews, 2)
}

func TestImport_MissingFile(t *testing.T) {
	seeder, _ := setup(t)

	_, err := seeder.Import(context.Background(), t.TempDir())
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	seeder, repos := setup(t)

	_, err := seeder.Import(ctx, writeData(t, "test1234"))
	require.NoError(t, err)

	res, err := seeder.Delete(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{Tours: 1, Users: 4, Reviews: 2}, res)

	count, err := repos.Tours.Collection().Count(ctx, query.Filter{})
	require.NoError(t, err)
	assert.Zero(t, count)
}
