package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/deppfellow/tourbook/internal/errs"
	"github.com/deppfellow/tourbook/internal/model"
	"github.com/deppfellow/tourbook/internal/query"
	"github.com/deppfellow/tourbook/internal/resource"
	"github.com/deppfellow/tourbook/internal/store"
	"github.com/gosimple/slug"
)

const (
	CollectionTours = "tours"
	// PopulateReviews names the on-demand reviews population of a tour.
	PopulateReviews = "reviews"
)

type TourRepository struct {
	*resource.Factory[model.Tour]
}

func newTourRepository(reg *resource.Registry) *TourRepository {
	return &TourRepository{resource.NewFactory(reg, resource.Descriptor[model.Tour]{
		Collection: CollectionTours,
		Singular:   "tour",
		Indexes: []store.Index{
			{Fields: []store.IndexField{{Field: "price"}, {Field: "ratingsAverage", Desc: true}}},
			{Fields: []store.IndexField{{Field: "slug"}}},
			{Fields: []store.IndexField{{Field: "name"}}, Unique: true},
		},
		Scope:    query.Filter{}.Add("secretTour", query.OpNe, true),
		Virtuals: tourVirtuals,
		Populate: []resource.Population{
			{
				Path:       "guides",
				Collection: CollectionUsers,
				Select:     query.Projection{Exclude: []string{query.VersionKey, "passwordChangedAt"}},
				Auto:       true,
			},
			{
				Path:         PopulateReviews,
				Collection:   CollectionReviews,
				ForeignField: "tour",
			},
		},
		Refs:       []string{"guides"},
		Defaults:   tourDefaults,
		Normalize:  normalizeTour,
		Validators: []resource.Validator[model.Tour]{validateDiscount},
		BeforeSave: []resource.Hook[model.Tour]{slugify},
	})}
}

func tourVirtuals(doc store.Document) {
	if days, ok := number(doc["duration"]); ok {
		doc["durationWeeks"] = model.DurationWeeks(days)
	}
}

func tourDefaults(t *model.Tour) {
	if t.RatingsAverage == 0 {
		t.RatingsAverage = model.DefaultRatingsAverage
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	if t.Images == nil {
		t.Images = []string{}
	}
	if t.StartDates == nil {
		t.StartDates = []time.Time{}
	}
	if t.Locations == nil {
		t.Locations = []model.Location{}
	}
	if t.Guides == nil {
		t.Guides = []string{}
	}
	if t.StartLocation != nil && t.StartLocation.Type == "" {
		t.StartLocation.Type = "Point"
	}
	for i := range t.Locations {
		if t.Locations[i].Type == "" {
			t.Locations[i].Type = "Point"
		}
	}
}

func normalizeTour(t *model.Tour) {
	t.Name = strings.TrimSpace(t.Name)
	t.Summary = strings.TrimSpace(t.Summary)
	t.Description = strings.TrimSpace(t.Description)
	t.RatingsAverage = model.RoundRating(t.RatingsAverage)
}

func validateDiscount(_ context.Context, t *model.Tour, _ resource.SaveContext) []errs.FieldError {
	if t.PriceDiscount == nil || *t.PriceDiscount < t.Price {
		return nil
	}
	return []errs.FieldError{{
		Field: "priceDiscount",
		Error: fmt.Sprintf("Discount price (%v) should be below regular price", *t.PriceDiscount),
	}}
}

func slugify(_ context.Context, t *model.Tour, sc resource.SaveContext) error {
	if sc.IsModified("name") || t.Slug == "" {
		t.Slug = slug.Make(t.Name)
	}
	return nil
}

// BySlug returns a tour with its reviews, or nil.
func (r *TourRepository) BySlug(ctx context.Context, s string) (store.Document, error) {
	return r.FindOneDoc(ctx, query.Eq("slug", s), PopulateReviews)
}

// SetRatings stores recomputed review statistics on a tour.
func (r *TourRepository) SetRatings(ctx context.Context, tourID string, quantity int, average float64) error {
	_, err := r.Patch(ctx, tourID, store.Update{Set: store.Document{
		"ratingsQuantity": quantity,
		"ratingsAverage":  average,
	}})
	return err
}
