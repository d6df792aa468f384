package query

import (
	"math"
	"net/url"
	"regexp"
	"slices"
	"sort"
	"strconv"
	"strings"
)

// Caster converts a raw query-string value for field into the value the
// store should compare against. ok is false for fields it does not know,
// in which case the raw string is used unchanged.
type Caster interface {
	Cast(field, raw string) (value any, ok bool)
}

// Features incrementally narrows a find over a collection. Each stage
// returns the builder so stages can be chained:
//
//	spec := query.New(base, c.QueryParams(), caster).
//		Filter().
//		Sort().
//		LimitFields().
//		Paginate().
//		Spec()
//
// Stages must be applied in the order Filter, Sort, LimitFields, Paginate.
type Features struct {
	params url.Values
	caster Caster
	spec   Spec
}

// New starts a builder over a find restricted by base (may be nil).
func New(base Filter, params url.Values, caster Caster) *Features {
	filter := Filter{}
	if base != nil {
		filter = base.Merge(nil)
	}
	if params == nil {
		params = url.Values{}
	}

	return &Features{
		params: params,
		caster: caster,
		spec: Spec{
			Filter: filter,
			Page:   DefaultPage,
			Limit:  DefaultLimit,
		},
	}
}

var reservedParams = map[string]bool{
	ParamPage:   true,
	ParamSort:   true,
	ParamLimit:  true,
	ParamFields: true,
}

// operatorKey matches "field[op]" query keys.
var operatorKey = regexp.MustCompile(`^(.+)\[([a-z]+)\]$`)

// Filter turns every non-reserved parameter into a comparison. Keys with a
// gte/gt/lte/lt suffix become range comparisons; any other key, including a
// bracketed one with an unknown operator, is an equality on the literal key.
func (f *Features) Filter() *Features {
	keys := make([]string, 0, len(f.params))
	for key := range f.params {
		if !reservedParams[key] {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	for _, key := range keys {
		values := f.params[key]
		if len(values) == 0 {
			continue
		}
		raw := values[0]

		field, op := key, OpEq
		if m := operatorKey.FindStringSubmatch(key); m != nil {
			if parsed, ok := ParseOperator(m[2]); ok {
				field, op = m[1], parsed
			}
		}

		f.spec.Filter.Add(field, op, f.cast(field, raw))
	}

	return f
}

func (f *Features) cast(field, raw string) any {
	if f.caster == nil {
		return raw
	}
	if value, ok := f.caster.Cast(field, raw); ok {
		return value
	}
	return raw
}

// Sort applies the comma-separated sort parameter. Without one the store's
// natural order is kept.
func (f *Features) Sort() *Features {
	if raw := f.params.Get(ParamSort); raw != "" {
		f.spec.Sort = ParseSort(raw)
	}
	return f
}

// LimitFields applies the comma-separated fields parameter. Plain names
// form an include projection; when every name carries a leading "-" they
// form an exclude projection instead, which still drops the internal
// version key. In a mixed list the "-" names are dropped, since an
// include projection omits them anyway. Without fields the version key is
// excluded. The identifier is always returned.
func (f *Features) LimitFields() *Features {
	var include, exclude []string
	if raw := f.params.Get(ParamFields); raw != "" {
		for _, field := range strings.Split(raw, ",") {
			field = strings.TrimSpace(field)
			if name, ok := strings.CutPrefix(field, "-"); ok {
				if name = strings.TrimSpace(name); name != "" && name != IDField {
					exclude = append(exclude, name)
				}
				continue
			}
			if field != "" {
				include = append(include, field)
			}
		}
	}

	switch {
	case len(include) > 0:
		f.spec.Projection = Projection{Include: include}
	case len(exclude) > 0:
		if !slices.Contains(exclude, VersionKey) {
			exclude = append(exclude, VersionKey)
		}
		f.spec.Projection = Projection{Exclude: exclude}
	default:
		f.spec.Projection = Projection{Exclude: []string{VersionKey}}
	}
	return f
}

// Paginate computes skip and limit from the page and limit parameters.
// Pages past the end of the result simply come back empty. A skip that
// does not fit in an int saturates at math.MaxInt, which is past the end
// of any collection.
func (f *Features) Paginate() *Features {
	page := positiveInt(f.params.Get(ParamPage), DefaultPage)
	limit := positiveInt(f.params.Get(ParamLimit), DefaultLimit)

	f.spec.Page = page
	f.spec.Limit = limit
	if page-1 > math.MaxInt/limit {
		f.spec.Skip = math.MaxInt
	} else {
		f.spec.Skip = (page - 1) * limit
	}

	return f
}

// Spec returns the accumulated Spec.
func (f *Features) Spec() Spec {
	return f.spec
}

func positiveInt(raw string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
