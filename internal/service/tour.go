package service

import (
	"context"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/deppfellow/tourbook/internal/query"
	"github.com/deppfellow/tourbook/internal/repository"
)

type TourService struct {
	tours *repository.TourRepository
}

func NewTourService(tours *repository.TourRepository) *TourService {
	return &TourService{tours: tours}
}

// AliasTopCheap presets the query of the top-5-cheap listing over params.
func AliasTopCheap(params url.Values) url.Values {
	out := url.Values{}
	for k, v := range params {
		out[k] = v
	}
	preset := map[string]string{
		query.ParamLimit:  "5",
		query.ParamSort:   "-ratingsAverage,price",
		query.ParamFields: "name,price,ratingsAverage,summary,difficulty",
	}
	for k, v := range preset {
		out.Set(k, v)
	}
	return out
}

// DifficultyStats aggregates the well rated tours of one difficulty.
type DifficultyStats struct {
	Difficulty string  `json:"_id"`
	NumTours   int     `json:"numTours"`
	NumRatings int     `json:"numRatings"`
	AvgRating  float64 `json:"avgRating"`
	AvgPrice   float64 `json:"avgPrice"`
	MinPrice   float64 `json:"minPrice"`
	MaxPrice   float64 `json:"maxPrice"`
}

// minStatsRating is the rating a tour needs to count towards Stats.
const minStatsRating = 4.5

// Stats groups tours rated at least 4.5 by upper-cased difficulty, cheapest
// average first.
func (s *TourService) Stats(ctx context.Context) ([]DifficultyStats, error) {
	tours, err := s.tours.Find(ctx, query.Filter{}.Add("ratingsAverage", query.OpGte, minStatsRating))
	if err != nil {
		return nil, err
	}

	groups := map[string]*DifficultyStats{}
	ratingSums := map[string]float64{}
	priceSums := map[string]float64{}
	for _, t := range tours {
		key := strings.ToUpper(t.Difficulty)
		g, ok := groups[key]
		if !ok {
			g = &DifficultyStats{Difficulty: key, MinPrice: t.Price, MaxPrice: t.Price}
			groups[key] = g
		}
		g.NumTours++
		g.NumRatings += t.RatingsQuantity
		ratingSums[key] += t.RatingsAverage
		priceSums[key] += t.Price
		g.MinPrice = min(g.MinPrice, t.Price)
		g.MaxPrice = max(g.MaxPrice, t.Price)
	}

	out := make([]DifficultyStats, 0, len(groups))
	for key, g := range groups {
		g.AvgRating = ratingSums[key] / float64(g.NumTours)
		g.AvgPrice = priceSums[key] / float64(g.NumTours)
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AvgPrice != out[j].AvgPrice {
			return out[i].AvgPrice < out[j].AvgPrice
		}
		return out[i].Difficulty < out[j].Difficulty
	})
	return out, nil
}

// MonthPlan lists the tours starting in one month.
type MonthPlan struct {
	Month         int      `json:"month"`
	NumTourStarts int      `json:"numTourStarts"`
	Tours         []string `json:"tours"`
}

// MonthlyPlan counts tour starts per month of year, busiest month first.
func (s *TourService) MonthlyPlan(ctx context.Context, year int) ([]MonthPlan, error) {
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(1, 0, 0)

	tours, err := s.tours.Find(ctx, nil)
	if err != nil {
		return nil, err
	}

	months := map[int]*MonthPlan{}
	for _, t := range tours {
		for _, start := range t.StartDates {
			if start.Before(from) || !start.Before(to) {
				continue
			}
			m := int(start.UTC().Month())
			p, ok := months[m]
			if !ok {
				p = &MonthPlan{Month: m, Tours: []string{}}
				months[m] = p
			}
			p.NumTourStarts++
			p.Tours = append(p.Tours, t.Name)
		}
	}

	out := make([]MonthPlan, 0, len(months))
	for _, p := range months {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].NumTourStarts != out[j].NumTourStarts {
			return out[i].NumTourStarts > out[j].NumTourStarts
		}
		return out[i].Month < out[j].Month
	})
	if len(out) > 12 {
		out = out[:12]
	}
	return out, nil
}

// Tours exposes the repository the handlers serve.
func (s *TourService) Tours() *repository.TourRepository { return s.tours }
