package model

import "time"

type Review struct {
	ID        string    `json:"_id,omitempty"`
	Review    string    `json:"review" validate:"required"`
	Rating    float64   `json:"rating,omitempty" validate:"omitempty,min=1,max=5"`
	CreatedAt time.Time `json:"createdAt"`
	Tour      string    `json:"tour" validate:"required"`
	User      string    `json:"user" validate:"required"`
}
