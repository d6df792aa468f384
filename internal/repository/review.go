package repository

import (
	"context"
	"time"

	"github.com/deppfellow/tourbook/internal/model"
	"github.com/deppfellow/tourbook/internal/query"
	"github.com/deppfellow/tourbook/internal/resource"
	"github.com/deppfellow/tourbook/internal/store"
)

const CollectionReviews = "reviews"

type ReviewRepository struct {
	*resource.Factory[model.Review]
}

func newReviewRepository(reg *resource.Registry) *ReviewRepository {
	return &ReviewRepository{resource.NewFactory(reg, resource.Descriptor[model.Review]{
		Collection: CollectionReviews,
		Singular:   "review",
		Indexes: []store.Index{
			{Fields: []store.IndexField{{Field: "tour"}, {Field: "user"}}, Unique: true},
		},
		Populate: []resource.Population{{
			Path:       "user",
			Collection: CollectionUsers,
			Select:     query.Projection{Include: []string{"name", "photo"}},
			Auto:       true,
		}},
		Refs: []string{"tour", "user"},
		Defaults: func(r *model.Review) {
			if r.CreatedAt.IsZero() {
				r.CreatedAt = time.Now().UTC()
			}
		},
	})}
}

// RatingStats summarizes the reviews of one tour.
type RatingStats struct {
	Quantity int
	Average  float64
}

// Stats computes the review count and mean rating of a tour. The mean
// covers rated reviews only and falls back to the default rating.
func (r *ReviewRepository) Stats(ctx context.Context, tourID string) (RatingStats, error) {
	reviews, err := r.Find(ctx, query.Eq("tour", tourID))
	if err != nil {
		return RatingStats{}, err
	}

	stats := RatingStats{Quantity: len(reviews), Average: model.DefaultRatingsAverage}
	var sum float64
	var rated int
	for _, rv := range reviews {
		if rv.Rating == 0 {
			continue
		}
		rated++
		sum += rv.Rating
	}
	if rated > 0 {
		stats.Average = model.RoundRating(sum / float64(rated))
	}
	return stats, nil
}

// ByTourAndUser returns the review a user left on a tour, or nil.
func (r *ReviewRepository) ByTourAndUser(ctx context.Context, tourID, userID string) (*model.Review, error) {
	return r.FindOne(ctx, query.Eq("tour", tourID).Merge(query.Eq("user", userID)))
}
