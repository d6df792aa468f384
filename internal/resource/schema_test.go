package resource

import (
	"testing"
	"time"

	"github.com/deppfellow/tourbook/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type point struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
	Day         int       `json:"day,omitempty"`
}

type schemaSubject struct {
	ID         string      `json:"_id,omitempty"`
	Name       string      `json:"name"`
	Price      float64     `json:"price"`
	Secret     bool        `json:"secret,omitempty"`
	StartDates []time.Time `json:"startDates"`
	CreatedAt  time.Time   `json:"createdAt"`
	Start      *point      `json:"start,omitempty"`
	Stops      []point     `json:"stops"`
	Ignored    string      `json:"-"`
}

func TestSchemaOf(t *testing.T) {
	s := SchemaOf[schemaSubject]()

	cases := map[string]Field{
		"name":              {Path: "name", Type: TypeString},
		"price":             {Path: "price", Type: TypeNumber},
		"secret":            {Path: "secret", Type: TypeBool},
		"startDates":        {Path: "startDates", Type: TypeDate, Array: true},
		"createdAt":         {Path: "createdAt", Type: TypeDate},
		"start":             {Path: "start", Type: TypeObject},
		"start.coordinates": {Path: "start.coordinates", Type: TypeNumber, Array: true},
		"stops.day":         {Path: "stops.day", Type: TypeNumber, Array: true},
	}
	for path, want := range cases {
		got, ok := s.Field(path)
		require.True(t, ok, path)
		assert.Equal(t, want, got, path)
	}

	_, ok := s.Field("Ignored")
	assert.False(t, ok)
	assert.True(t, s.HasTopLevel("stops"))
	assert.False(t, s.HasTopLevel("day"))
}

func TestSchema_Cast(t *testing.T) {
	s := SchemaOf[schemaSubject]()

	v, ok := s.Cast("price", "397")
	assert.True(t, ok)
	assert.Equal(t, 397.0, v)

	v, ok = s.Cast("secret", "true")
	assert.True(t, ok)
	assert.Equal(t, true, v)

	v, ok = s.Cast("startDates", "2021-07-01")
	assert.True(t, ok)
	assert.Equal(t, time.Date(2021, 7, 1, 0, 0, 0, 0, time.UTC), v)

	_, ok = s.Cast("price", "cheap")
	assert.False(t, ok)

	_, ok = s.Cast("unknown", "1")
	assert.False(t, ok)
}

func TestSchema_Normalize(t *testing.T) {
	s := SchemaOf[schemaSubject]()
	doc := store.Document{
		"name":       "2021-01-01",
		"createdAt":  "2021-03-05T10:00:00Z",
		"startDates": []any{"2021-06-19T09:00:00.000Z", "2021-07-20T09:00:00.000Z"},
	}

	s.normalize(doc)

	assert.Equal(t, "2021-01-01", doc["name"])
	assert.Equal(t, time.Date(2021, 3, 5, 10, 0, 0, 0, time.UTC), doc["createdAt"])
	assert.Equal(t, []any{
		time.Date(2021, 6, 19, 9, 0, 0, 0, time.UTC),
		time.Date(2021, 7, 20, 9, 0, 0, 0, time.UTC),
	}, doc["startDates"])
}
