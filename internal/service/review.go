package service

import (
	"context"
	"encoding/json"

	"github.com/deppfellow/tourbook/internal/repository"
	"github.com/deppfellow/tourbook/internal/resource"
	"github.com/deppfellow/tourbook/internal/store"
	"github.com/rs/zerolog"
)

type ReviewService struct {
	reviews *repository.ReviewRepository
	tours   *repository.TourRepository
}

func NewReviewService(repos *repository.Repositories) *ReviewService {
	return &ReviewService{reviews: repos.Reviews, tours: repos.Tours}
}

// Register subscribes the rating recomputation to review writes.
func (s *ReviewService) Register() {
	s.reviews.Subscribe(s.onReviewWrite)
}

func (s *ReviewService) onReviewWrite(ctx context.Context, ev resource.Event) error {
	seen := map[string]bool{}
	for _, doc := range []store.Document{ev.Before, ev.After} {
		tourID, _ := doc["tour"].(string)
		if tourID == "" || seen[tourID] {
			continue
		}
		seen[tourID] = true
		if err := s.CalcAverageRatings(ctx, tourID); err != nil {
			return err
		}
	}
	return nil
}

// CalcAverageRatings stores the review count and mean rating on a tour.
// A tour that no longer exists is skipped.
func (s *ReviewService) CalcAverageRatings(ctx context.Context, tourID string) error {
	stats, err := s.reviews.Stats(ctx, tourID)
	if err != nil {
		return err
	}
	err = s.tours.SetRatings(ctx, tourID, stats.Quantity, stats.Average)
	if resource.IsNotFound(err) {
		zerolog.Ctx(ctx).Debug().Str("tour_id", tourID).Msg("reviewed tour no longer exists")
		return nil
	}
	return err
}

// WithDefaults fills missing top-level fields of a JSON object body.
func WithDefaults(body json.RawMessage, defaults map[string]string) (json.RawMessage, error) {
	fields := map[string]json.RawMessage{}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &fields); err != nil {
			return body, nil
		}
	}
	if fields == nil {
		fields = map[string]json.RawMessage{}
	}
	for k, v := range defaults {
		if v == "" {
			continue
		}
		if _, ok := fields[k]; ok {
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		fields[k] = raw
	}
	return json.Marshal(fields)
}

// Reviews exposes the repository the handlers serve.
func (s *ReviewService) Reviews() *repository.ReviewRepository { return s.reviews }
