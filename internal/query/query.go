// Package query defines the per-request query description (filters, sort,
// projection, pagination) and the Features builder that derives it from
// query-string parameters.
//
// A Spec is store-agnostic: every store backend translates a Spec
// into its own syntax (bson for MongoDB, SQL over JSONB for Postgres, plain Go
// evaluation for the in-memory store).
package query

import "strings"

// Operator is a comparison operator in a filter.
type Operator string

const (
	OpEq  Operator = "eq"
	OpGt  Operator = "gt"
	OpGte Operator = "gte"
	OpLt  Operator = "lt"
	OpLte Operator = "lte"

	// OpNe and OpIn are only used by resource scopes and population.
	// They are never parsed from a query string.
	OpNe Operator = "ne"
	OpIn Operator = "in"
)

// ParseOperator maps a query-string suffix token (the "gte" in
// "price[gte]") to an Operator. Only the range operators are recognised.
func ParseOperator(token string) (Operator, bool) {
	switch token {
	case "gt":
		return OpGt, true
	case "gte":
		return OpGte, true
	case "lt":
		return OpLt, true
	case "lte":
		return OpLte, true
	}
	return "", false
}

// Comparison is a single operator/value pair applied to a field.
type Comparison struct {
	Op    Operator
	Value any
}

// Filter maps a document field (dot notation for nested fields) to the
// comparisons it must satisfy. All comparisons are ANDed.
type Filter map[string][]Comparison

// Add appends a comparison for field and returns the filter.
func (f Filter) Add(field string, op Operator, value any) Filter {
	f[field] = append(f[field], Comparison{Op: op, Value: value})
	return f
}

// Merge returns a new filter holding the comparisons of f and other.
func (f Filter) Merge(other Filter) Filter {
	out := make(Filter, len(f)+len(other))
	for field, cmps := range f {
		out[field] = append(out[field], cmps...)
	}
	for field, cmps := range other {
		out[field] = append(out[field], cmps...)
	}
	return out
}

// Eq builds a single-field equality filter.
func Eq(field string, value any) Filter {
	return Filter{field: {{Op: OpEq, Value: value}}}
}

// SortField is one key of a compound sort.
type SortField struct {
	Field string
	Desc  bool
}

// ParseSort splits "a,-b" into [{a asc} {b desc}]. Empty tokens are skipped.
func ParseSort(raw string) []SortField {
	var fields []SortField
	for _, token := range strings.Split(raw, ",") {
		token = strings.TrimSpace(token)
		if token == "" || token == "-" {
			continue
		}
		if strings.HasPrefix(token, "-") {
			fields = append(fields, SortField{Field: token[1:], Desc: true})
			continue
		}
		fields = append(fields, SortField{Field: token})
	}
	return fields
}

// Projection selects the fields returned for each document. Include and
// Exclude are mutually exclusive; the identifier is always returned unless
// it is explicitly excluded.
type Projection struct {
	Include []string
	Exclude []string
}

// IsZero reports whether the projection returns whole documents.
func (p Projection) IsZero() bool {
	return len(p.Include) == 0 && len(p.Exclude) == 0
}

// Spec is the complete description of a find for one request.
type Spec struct {
	Filter     Filter
	Sort       []SortField
	Projection Projection
	Page       int
	Limit      int
	Skip       int
}

const (
	// DefaultPage is used when the page parameter is absent or invalid.
	DefaultPage = 1
	// DefaultLimit is used when the limit parameter is absent or invalid.
	DefaultLimit = 100
)

// Reserved query-string keys consumed by the builder stages rather than the
// filter.
const (
	ParamPage   = "page"
	ParamSort   = "sort"
	ParamLimit  = "limit"
	ParamFields = "fields"
)

// VersionKey is the internal document version field every store maintains.
// It is excluded from results unless explicitly requested.
const VersionKey = "__v"

// IDField is the document identifier field.
const IDField = "_id"
