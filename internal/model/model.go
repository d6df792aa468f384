// Package model defines the stored documents of the application.
package model

// Location is a GeoJSON point with a description. Tour locations also
// carry the day of the tour they are visited on.
type Location struct {
	Type        string    `json:"type,omitempty" validate:"omitempty,oneof=Point"`
	Coordinates []float64 `json:"coordinates,omitempty" validate:"omitempty,len=2"`
	Address     string    `json:"address,omitempty"`
	Description string    `json:"description,omitempty"`
	Day         int       `json:"day,omitempty"`
}
