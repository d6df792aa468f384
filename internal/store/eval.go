package store

import (
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/deppfellow/tourbook/internal/query"
)

// The helpers in this file evaluate query Specs against documents
// in Go. The memory store uses all of them; the SQL and Mongo backends only
// borrow projection and cloning.

// Type brackets in comparison order. Values of different brackets never
// satisfy a range comparison and sort by bracket.
const (
	rankNull = iota
	rankNumber
	rankString
	rankObject
	rankArray
	rankBool
	rankDate
	rankOther
)

func typeRank(v any) int {
	switch v := v.(type) {
	case nil:
		return rankNull
	case string:
		return rankString
	case bool:
		return rankBool
	case time.Time:
		return rankDate
	case map[string]any, Document:
		return rankObject
	case []any:
		return rankArray
	default:
		if _, ok := toFloat(v); ok {
			return rankNumber
		}
		if rv := reflect.ValueOf(v); rv.Kind() == reflect.Slice {
			return rankArray
		}
		return rankOther
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

// compareValues orders two values by bracket, then by value within the
// bracket.
func compareValues(a, b any) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}

	switch ra {
	case rankNull:
		return 0
	case rankNumber:
		fa, _ := toFloat(a)
		fb, _ := toFloat(b)
		return cmpOrdered(fa, fb)
	case rankString:
		return strings.Compare(a.(string), b.(string))
	case rankBool:
		ba, bb := a.(bool), b.(bool)
		switch {
		case ba == bb:
			return 0
		case !ba:
			return -1
		default:
			return 1
		}
	case rankDate:
		return a.(time.Time).Compare(b.(time.Time))
	case rankArray:
		la, lb := asSlice(a), asSlice(b)
		for i := 0; i < len(la) && i < len(lb); i++ {
			if c := compareValues(la[i], lb[i]); c != 0 {
				return c
			}
		}
		return cmpOrdered(len(la), len(lb))
	case rankObject:
		if reflect.DeepEqual(asMap(a), asMap(b)) {
			return 0
		}
		return cmpOrdered(len(asMap(a)), len(asMap(b)))
	}

	if reflect.DeepEqual(a, b) {
		return 0
	}
	return -1
}

func cmpOrdered[T int | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func asSlice(v any) []any {
	if s, ok := v.([]any); ok {
		return s
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return nil
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}

func asMap(v any) map[string]any {
	switch m := v.(type) {
	case map[string]any:
		return m
	case Document:
		return m
	}
	return nil
}

// lookup collects every value reachable through a dotted path. Arrays met
// on the way fan out over their elements. found is false when no element of
// the path exists.
func lookup(doc map[string]any, path string) (values []any, found bool) {
	var walk func(v any, segments []string)
	walk = func(v any, segments []string) {
		if len(segments) == 0 {
			values = append(values, v)
			found = true
			return
		}
		switch node := v.(type) {
		case map[string]any:
			if next, ok := node[segments[0]]; ok {
				walk(next, segments[1:])
			}
		case Document:
			if next, ok := node[segments[0]]; ok {
				walk(next, segments[1:])
			}
		case []any:
			for _, elem := range node {
				walk(elem, segments)
			}
		}
	}
	walk(doc, strings.Split(path, "."))
	return values, found
}

// matches reports whether doc satisfies every comparison in filter.
func matches(doc Document, filter query.Filter) bool {
	for field, cmps := range filter {
		values, found := lookup(doc, field)
		for _, cmp := range cmps {
			if !matchComparison(values, found, cmp) {
				return false
			}
		}
	}
	return true
}

func matchComparison(values []any, found bool, cmp query.Comparison) bool {
	switch cmp.Op {
	case query.OpEq:
		return matchEq(values, found, cmp.Value)
	case query.OpNe:
		return !matchEq(values, found, cmp.Value)
	case query.OpIn:
		for _, candidate := range asSlice(cmp.Value) {
			if matchEq(values, found, candidate) {
				return true
			}
		}
		return false
	case query.OpGt, query.OpGte, query.OpLt, query.OpLte:
		for _, v := range expand(values) {
			if typeRank(v) != typeRank(cmp.Value) || typeRank(v) == rankNull {
				continue
			}
			c := compareValues(v, cmp.Value)
			switch cmp.Op {
			case query.OpGt:
				if c > 0 {
					return true
				}
			case query.OpGte:
				if c >= 0 {
					return true
				}
			case query.OpLt:
				if c < 0 {
					return true
				}
			case query.OpLte:
				if c <= 0 {
					return true
				}
			}
		}
		return false
	}
	return false
}

func matchEq(values []any, found bool, want any) bool {
	if want == nil && !found {
		return true
	}
	for _, v := range values {
		if typeRank(v) == typeRank(want) && compareValues(v, want) == 0 {
			return true
		}
	}
	// Array fields also match when one of their elements equals want.
	for _, v := range values {
		if typeRank(v) != rankArray {
			continue
		}
		for _, elem := range asSlice(v) {
			if typeRank(elem) == typeRank(want) && compareValues(elem, want) == 0 {
				return true
			}
		}
	}
	return false
}

// expand flattens array values one level for range comparisons.
func expand(values []any) []any {
	out := make([]any, 0, len(values))
	for _, v := range values {
		if typeRank(v) == rankArray {
			out = append(out, asSlice(v)...)
			continue
		}
		out = append(out, v)
	}
	return out
}

// sortDocuments orders docs in place. The sort is stable so documents with
// equal keys keep their incoming order.
func sortDocuments(docs []Document, fields []query.SortField) {
	if len(fields) == 0 {
		return
	}
	sort.SliceStable(docs, func(i, j int) bool {
		for _, f := range fields {
			c := compareValues(sortKey(docs[i], f.Field), sortKey(docs[j], f.Field))
			if c == 0 {
				continue
			}
			if f.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

func sortKey(doc Document, field string) any {
	values, found := lookup(doc, field)
	if !found || len(values) == 0 {
		return nil
	}
	return values[0]
}

// project returns a copy of doc shaped by p.
func project(doc Document, p query.Projection) Document {
	if doc == nil {
		return nil
	}
	if len(p.Include) > 0 {
		out := Document{}
		if id, ok := doc[query.IDField]; ok {
			out[query.IDField] = id
		}
		for _, field := range p.Include {
			copyPath(out, doc, strings.Split(field, "."))
		}
		return out
	}

	out := cloneDocument(doc)
	for _, field := range p.Exclude {
		deletePath(out, strings.Split(field, "."))
	}
	return out
}

func copyPath(dst, src map[string]any, segments []string) {
	v, ok := src[segments[0]]
	if !ok {
		return
	}
	if len(segments) == 1 {
		dst[segments[0]] = cloneValue(v)
		return
	}
	child := asMap(v)
	if child == nil {
		return
	}
	next, _ := dst[segments[0]].(map[string]any)
	if next == nil {
		next = map[string]any{}
		dst[segments[0]] = next
	}
	copyPath(next, child, segments[1:])
}

func deletePath(m map[string]any, segments []string) {
	if len(segments) == 1 {
		delete(m, segments[0])
		return
	}
	if child := asMap(m[segments[0]]); child != nil {
		deletePath(child, segments[1:])
	}
}

func cloneDocument(doc Document) Document {
	if doc == nil {
		return nil
	}
	out := make(Document, len(doc))
	for k, v := range doc {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch v := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[k] = cloneValue(e)
		}
		return out
	case Document:
		return map[string]any(cloneDocument(v))
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		return append([]string(nil), v...)
	default:
		return v
	}
}

// applyUpdate writes u onto a copy of doc.
func applyUpdate(doc Document, u Update) Document {
	out := cloneDocument(doc)
	for _, key := range u.Unset {
		if key == query.IDField || key == query.VersionKey {
			continue
		}
		delete(out, key)
	}
	for key, v := range u.Set {
		if key == query.IDField || key == query.VersionKey {
			continue
		}
		out[key] = cloneValue(v)
	}
	return out
}
