package resource

import "github.com/deppfellow/tourbook/internal/store"

// Envelope is the success body of every API response.
//
//	{ "status": "success", "results": 2, "data": { "tours": [...] } }
type Envelope struct {
	Status  string         `json:"status"`
	Token   string         `json:"token,omitempty"`
	Results *int           `json:"results,omitempty"`
	Data    map[string]any `json:"data"`
}

// One wraps a single value under key.
func One(key string, v any) *Envelope {
	return &Envelope{Status: "success", Data: map[string]any{key: v}}
}

// Many wraps a list under key and reports its length.
func Many(key string, docs []store.Document) *Envelope {
	if docs == nil {
		docs = []store.Document{}
	}
	n := len(docs)
	return &Envelope{Status: "success", Results: &n, Data: map[string]any{key: docs}}
}
