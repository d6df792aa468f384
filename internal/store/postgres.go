package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/deppfellow/tourbook/internal/query"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps each collection in a table of the same name with the
// layout created by the embedded migrations:
//
//	id uuid primary key, seq bigserial, doc jsonb, created_at timestamptz
//
// The document body lives in doc without its identifier.
type PostgresStore struct {
	pool pgxQuerier
	ping func(ctx context.Context) error
	done func()
}

type pgxQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// NewPostgresStore wraps an open pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, ping: pool.Ping, done: pool.Close}
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// storedTimeLayout is fixed-width so JSONB string ordering matches time
// ordering.
const storedTimeLayout = "2006-01-02T15:04:05.000000Z"

func (s *PostgresStore) Driver() string { return DriverPostgres }

func (s *PostgresStore) Collection(name string) Collection {
	return &postgresCollection{
		name:  name,
		table: pgx.Identifier{name}.Sanitize(),
		db:    s.pool,
	}
}

func (s *PostgresStore) EnsureIndexes(ctx context.Context, collection string, indexes []Index) error {
	for _, idx := range indexes {
		stmt, err := createIndexSQL(collection, idx)
		if err != nil {
			return err
		}
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("creating index %s: %w", idx.Name(collection), err)
		}
	}
	return nil
}

func (s *PostgresStore) ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func (s *PostgresStore) Ping(ctx context.Context) error { return s.ping(ctx) }

func (s *PostgresStore) Close(context.Context) error {
	s.done()
	return nil
}

func createIndexSQL(collection string, idx Index) (string, error) {
	exprs := make([]string, 0, len(idx.Fields))
	for _, f := range idx.Fields {
		expr := "id"
		if f.Field != query.IDField {
			path, err := jsonPath(f.Field)
			if err != nil {
				return "", err
			}
			expr = "(" + path + ")"
		}
		if f.Desc {
			expr += " DESC"
		}
		exprs = append(exprs, expr)
	}

	kind := "INDEX"
	if idx.Unique {
		kind = "UNIQUE INDEX"
	}
	return fmt.Sprintf("CREATE %s IF NOT EXISTS %s ON %s (%s)",
		kind,
		pgx.Identifier{idx.Name(collection)}.Sanitize(),
		pgx.Identifier{collection}.Sanitize(),
		strings.Join(exprs, ", "),
	), nil
}

type postgresCollection struct {
	name  string
	table string
	db    pgxQuerier
}

func (c *postgresCollection) Name() string { return c.name }

const returning = "RETURNING id::text, doc"

func (c *postgresCollection) Find(ctx context.Context, spec query.Spec) ([]Document, error) {
	stmt, args, err := buildFind(c.table, spec)
	if err != nil {
		return nil, err
	}

	rows, err := c.db.Query(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := make([]Document, 0)
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		doc, err := decodeRow(id, raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, project(doc, spec.Projection))
	}
	return docs, rows.Err()
}

func (c *postgresCollection) FindOne(ctx context.Context, filter query.Filter, projection query.Projection) (Document, error) {
	where, err := whereClause(filter)
	if err != nil {
		return nil, err
	}

	stmt, args, err := psql.Select("id::text", "doc").From(c.table).Where(where).OrderBy("seq").Limit(1).ToSql()
	if err != nil {
		return nil, err
	}

	doc, err := c.scanOne(ctx, stmt, args)
	if err != nil || doc == nil {
		return nil, err
	}
	return project(doc, projection), nil
}

func (c *postgresCollection) FindByID(ctx context.Context, id string) (Document, error) {
	return c.FindOne(ctx, query.Eq(query.IDField, id), query.Projection{})
}

func (c *postgresCollection) Count(ctx context.Context, filter query.Filter) (int64, error) {
	where, err := whereClause(filter)
	if err != nil {
		return 0, err
	}
	stmt, args, err := psql.Select("count(*)").From(c.table).Where(where).ToSql()
	if err != nil {
		return 0, err
	}

	var n int64
	if err := c.db.QueryRow(ctx, stmt, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (c *postgresCollection) Create(ctx context.Context, doc Document) (Document, error) {
	body := Document{}
	for k, v := range doc {
		if k != query.IDField {
			body[k] = v
		}
	}
	body[query.VersionKey] = 0

	raw, err := encodeJSON(body)
	if err != nil {
		return nil, err
	}

	stmt, args, err := psql.Insert(c.table).
		Columns("id", "doc").
		Values(uuid.New().String(), sq.Expr("?::jsonb", raw)).
		Suffix(returning).
		ToSql()
	if err != nil {
		return nil, err
	}
	return c.scanOne(ctx, stmt, args)
}

func (c *postgresCollection) FindByIDAndUpdate(ctx context.Context, id string, update Update) (Document, error) {
	stmt, args, err := buildUpdate(c.table, id, update)
	if err != nil {
		return nil, err
	}
	return c.scanOne(ctx, stmt, args)
}

func (c *postgresCollection) FindByIDAndDelete(ctx context.Context, id string) (Document, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, &InvalidIDError{ID: id}
	}
	stmt, args, err := psql.Delete(c.table).Where("id = ?", id).Suffix(returning).ToSql()
	if err != nil {
		return nil, err
	}
	return c.scanOne(ctx, stmt, args)
}

func (c *postgresCollection) DeleteMany(ctx context.Context, filter query.Filter) (int64, error) {
	where, err := whereClause(filter)
	if err != nil {
		return 0, err
	}
	stmt, args, err := psql.Delete(c.table).Where(where).ToSql()
	if err != nil {
		return 0, err
	}
	tag, err := c.db.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (c *postgresCollection) scanOne(ctx context.Context, stmt string, args []any) (Document, error) {
	var id string
	var raw []byte
	if err := c.db.QueryRow(ctx, stmt, args...).Scan(&id, &raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return decodeRow(id, raw)
}

func decodeRow(id string, raw []byte) (Document, error) {
	doc := Document{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decoding document %s: %w", id, err)
	}
	doc[query.IDField] = id
	return doc, nil
}

func buildFind(table string, spec query.Spec) (string, []any, error) {
	where, err := whereClause(spec.Filter)
	if err != nil {
		return "", nil, err
	}

	b := psql.Select("id::text", "doc").From(table).Where(where)

	for _, f := range spec.Sort {
		expr := "id"
		if f.Field != query.IDField {
			path, err := jsonPath(f.Field)
			if err != nil {
				return "", nil, err
			}
			expr = path
		}
		if f.Desc {
			b = b.OrderBy(expr + " DESC NULLS LAST")
		} else {
			b = b.OrderBy(expr + " ASC NULLS FIRST")
		}
	}
	b = b.OrderBy("seq ASC")

	if spec.Limit > 0 {
		b = b.Limit(uint64(spec.Limit))
	}
	if spec.Skip > 0 {
		b = b.Offset(uint64(spec.Skip))
	}
	return b.ToSql()
}

func buildUpdate(table, id string, u Update) (string, []any, error) {
	if _, err := uuid.Parse(id); err != nil {
		return "", nil, &InvalidIDError{ID: id}
	}

	set := Document{}
	for k, v := range u.Set {
		if k != query.IDField && k != query.VersionKey {
			set[k] = v
		}
	}
	unset := []string{}
	for _, k := range u.Unset {
		if k != query.IDField && k != query.VersionKey {
			unset = append(unset, k)
		}
	}
	raw, err := encodeJSON(set)
	if err != nil {
		return "", nil, err
	}

	return psql.Update(table).
		Set("doc", sq.Expr(
			"jsonb_set((doc - ?::text[]) || ?::jsonb, '{__v}', to_jsonb(COALESCE((doc->>'__v')::int, 0) + 1))",
			unset, raw,
		)).
		Where("id = ?", id).
		Suffix(returning).
		ToSql()
}

// whereClause ANDs one condition per comparison, in field order.
func whereClause(filter query.Filter) (sq.And, error) {
	fields := make([]string, 0, len(filter))
	for field := range filter {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	where := sq.And{}
	for _, field := range fields {
		for _, cmp := range filter[field] {
			cond, err := condition(field, cmp)
			if err != nil {
				return nil, err
			}
			where = append(where, cond)
		}
	}
	return where, nil
}

func condition(field string, cmp query.Comparison) (sq.Sqlizer, error) {
	if field == query.IDField {
		return idCondition(cmp)
	}

	path, err := jsonPath(field)
	if err != nil {
		return nil, err
	}

	switch cmp.Op {
	case query.OpEq:
		return eqCondition(path, cmp.Value)
	case query.OpNe:
		if cmp.Value == nil {
			return sq.Expr(fmt.Sprintf("(%[1]s IS NOT NULL AND %[1]s <> 'null'::jsonb)", path)), nil
		}
		eq, err := eqCondition(path, cmp.Value)
		if err != nil {
			return nil, err
		}
		sql, args, err := eq.ToSql()
		if err != nil {
			return nil, err
		}
		return sq.Expr(fmt.Sprintf("(%s IS NULL OR NOT %s)", path, sql), args...), nil
	case query.OpIn:
		or := sq.Or{}
		for _, v := range asSlice(cmp.Value) {
			eq, err := eqCondition(path, v)
			if err != nil {
				return nil, err
			}
			or = append(or, eq)
		}
		if len(or) == 0 {
			return sq.Expr("FALSE"), nil
		}
		return or, nil
	case query.OpGt, query.OpGte, query.OpLt, query.OpLte:
		raw, err := encodeJSON(cmp.Value)
		if err != nil {
			return nil, err
		}
		return sq.Expr(
			fmt.Sprintf("(jsonb_typeof(%[1]s) = jsonb_typeof(?::jsonb) AND %[1]s %[2]s ?::jsonb)", path, sqlOperators[cmp.Op]),
			raw, raw,
		), nil
	}
	return nil, &InvalidFieldError{Field: field + "[" + string(cmp.Op) + "]"}
}

var sqlOperators = map[query.Operator]string{
	query.OpGt:  ">",
	query.OpGte: ">=",
	query.OpLt:  "<",
	query.OpLte: "<=",
}

func eqCondition(path string, value any) (sq.Sqlizer, error) {
	if value == nil {
		return sq.Expr(fmt.Sprintf("(%[1]s IS NULL OR %[1]s = 'null'::jsonb)", path)), nil
	}
	raw, err := encodeJSON(value)
	if err != nil {
		return nil, err
	}
	wrapped, err := encodeJSON([]any{value})
	if err != nil {
		return nil, err
	}
	return sq.Expr(
		fmt.Sprintf("(%[1]s = ?::jsonb OR (jsonb_typeof(%[1]s) = 'array' AND %[1]s @> ?::jsonb))", path),
		raw, wrapped,
	), nil
}

func idCondition(cmp query.Comparison) (sq.Sqlizer, error) {
	switch cmp.Op {
	case query.OpEq, query.OpNe:
		id, ok := cmp.Value.(string)
		if !ok {
			return nil, &InvalidIDError{ID: fmt.Sprint(cmp.Value)}
		}
		if _, err := uuid.Parse(id); err != nil {
			return nil, &InvalidIDError{ID: id}
		}
		if cmp.Op == query.OpNe {
			return sq.Expr("id <> ?", id), nil
		}
		return sq.Expr("id = ?", id), nil
	case query.OpIn:
		values := asSlice(cmp.Value)
		ids := make([]string, 0, len(values))
		for _, v := range values {
			id, _ := v.(string)
			if _, err := uuid.Parse(id); err != nil {
				return nil, &InvalidIDError{ID: id}
			}
			ids = append(ids, id)
		}
		return sq.Expr("id = ANY(?::uuid[])", ids), nil
	}
	return nil, &InvalidFieldError{Field: query.IDField + "[" + string(cmp.Op) + "]"}
}

var pathSegment = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// jsonPath renders a dotted field as a JSONB path expression. Segments are
// restricted to identifier characters so they can be inlined.
func jsonPath(field string) (string, error) {
	segments := strings.Split(field, ".")
	for _, s := range segments {
		if !pathSegment.MatchString(s) {
			return "", &InvalidFieldError{Field: field}
		}
	}
	return "doc #> '{" + strings.Join(segments, ",") + "}'", nil
}

// encodeJSON marshals v with dates in storedTimeLayout.
func encodeJSON(v any) (string, error) {
	b, err := json.Marshal(jsonValue(v))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func jsonValue(v any) any {
	switch v := v.(type) {
	case time.Time:
		return v.UTC().Format(storedTimeLayout)
	case Document:
		return jsonValue(map[string]any(v))
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[k] = jsonValue(e)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = jsonValue(e)
		}
		return out
	case []time.Time:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = jsonValue(e)
		}
		return out
	}
	return v
}
