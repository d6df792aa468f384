package model

import (
	"math"
	"time"
)

// Difficulty levels accepted for a tour.
const (
	DifficultyEasy      = "easy"
	DifficultyMedium    = "medium"
	DifficultyDifficult = "difficult"
)

const DefaultRatingsAverage = 4.5

type Tour struct {
	ID              string      `json:"_id,omitempty"`
	Name            string      `json:"name" validate:"required,min=10,max=40"`
	Slug            string      `json:"slug,omitempty"`
	Duration        int         `json:"duration" validate:"required,gt=0"`
	MaxGroupSize    int         `json:"maxGroupSize" validate:"required,gt=0"`
	Difficulty      string      `json:"difficulty" validate:"required,oneof=easy medium difficult"`
	RatingsAverage  float64     `json:"ratingsAverage" validate:"min=1,max=5"`
	RatingsQuantity int         `json:"ratingsQuantity"`
	Price           float64     `json:"price" validate:"required,gt=0"`
	PriceDiscount   *float64    `json:"priceDiscount,omitempty"`
	Summary         string      `json:"summary" validate:"required"`
	Description     string      `json:"description,omitempty"`
	ImageCover      string      `json:"imageCover" validate:"required"`
	Images          []string    `json:"images"`
	CreatedAt       time.Time   `json:"createdAt"`
	StartDates      []time.Time `json:"startDates"`
	SecretTour      bool        `json:"secretTour"`
	StartLocation   *Location   `json:"startLocation,omitempty"`
	Locations       []Location  `json:"locations" validate:"dive"`
	Guides          []string    `json:"guides"`
}

// RoundRating rounds a rating to one decimal, 4.666 -> 4.7.
func RoundRating(v float64) float64 {
	return math.Round(v*10) / 10
}

// DurationWeeks is the tour length in weeks, rounded to one decimal.
func DurationWeeks(days float64) float64 {
	return math.Round(days/7*10) / 10
}
