package store

import (
	"context"
	"errors"
	"sort"

	"github.com/deppfellow/tourbook/internal/query"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoStore keeps each collection in a MongoDB collection of the same
// name. Identifiers are ObjectIDs exposed as hex strings.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongoStore wraps an already connected client.
func NewMongoStore(client *mongo.Client, database string) *MongoStore {
	return &MongoStore{
		client: client,
		db:     client.Database(database),
	}
}

func (s *MongoStore) Driver() string { return DriverMongo }

func (s *MongoStore) Collection(name string) Collection {
	return &mongoCollection{name: name, coll: s.db.Collection(name)}
}

func (s *MongoStore) EnsureIndexes(ctx context.Context, collection string, indexes []Index) error {
	if len(indexes) == 0 {
		return nil
	}

	models := make([]mongo.IndexModel, 0, len(indexes))
	for _, idx := range indexes {
		keys := bson.D{}
		for _, f := range idx.Fields {
			dir := 1
			if f.Desc {
				dir = -1
			}
			keys = append(keys, bson.E{Key: f.Field, Value: dir})
		}
		opts := options.Index().SetName(idx.Name(collection))
		if idx.Unique {
			opts.SetUnique(true)
		}
		models = append(models, mongo.IndexModel{Keys: keys, Options: opts})
	}

	_, err := s.db.Collection(collection).Indexes().CreateMany(ctx, models)
	return err
}

func (s *MongoStore) ValidID(id string) bool {
	return primitive.IsValidObjectID(id)
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

type mongoCollection struct {
	name string
	coll *mongo.Collection
}

func (c *mongoCollection) Name() string { return c.name }

func (c *mongoCollection) Find(ctx context.Context, spec query.Spec) ([]Document, error) {
	filter, err := mongoFilter(spec.Filter)
	if err != nil {
		return nil, err
	}

	opts := options.Find().SetSort(mongoSort(spec.Sort))
	if projection := mongoProjection(spec.Projection); projection != nil {
		opts.SetProjection(projection)
	}
	if spec.Skip > 0 {
		opts.SetSkip(int64(spec.Skip))
	}
	if spec.Limit > 0 {
		opts.SetLimit(int64(spec.Limit))
	}

	cursor, err := c.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var raw []bson.M
	if err := cursor.All(ctx, &raw); err != nil {
		return nil, err
	}

	docs := make([]Document, len(raw))
	for i, m := range raw {
		docs[i] = fromMongoDocument(m)
	}
	return docs, nil
}

func (c *mongoCollection) FindOne(ctx context.Context, filter query.Filter, projection query.Projection) (Document, error) {
	f, err := mongoFilter(filter)
	if err != nil {
		return nil, err
	}

	opts := options.FindOne()
	if p := mongoProjection(projection); p != nil {
		opts.SetProjection(p)
	}

	var raw bson.M
	if err := c.coll.FindOne(ctx, f, opts).Decode(&raw); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return fromMongoDocument(raw), nil
}

func (c *mongoCollection) FindByID(ctx context.Context, id string) (Document, error) {
	return c.FindOne(ctx, query.Eq(query.IDField, id), query.Projection{})
}

func (c *mongoCollection) Count(ctx context.Context, filter query.Filter) (int64, error) {
	f, err := mongoFilter(filter)
	if err != nil {
		return 0, err
	}
	return c.coll.CountDocuments(ctx, f)
}

func (c *mongoCollection) Create(ctx context.Context, doc Document) (Document, error) {
	insert := bson.M{}
	for k, v := range doc {
		if k == query.IDField {
			continue
		}
		insert[k] = toMongoValue(v)
	}
	insert[query.VersionKey] = 0

	res, err := c.coll.InsertOne(ctx, insert)
	if err != nil {
		return nil, err
	}

	created := cloneDocument(doc)
	if created == nil {
		created = Document{}
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		created[query.IDField] = oid.Hex()
	}
	created[query.VersionKey] = 0
	return created, nil
}

func (c *mongoCollection) FindByIDAndUpdate(ctx context.Context, id string, update Update) (Document, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, &InvalidIDError{ID: id}
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var raw bson.M
	err = c.coll.FindOneAndUpdate(ctx, bson.M{query.IDField: oid}, mongoUpdate(update), opts).Decode(&raw)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return fromMongoDocument(raw), nil
}

func (c *mongoCollection) FindByIDAndDelete(ctx context.Context, id string) (Document, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, &InvalidIDError{ID: id}
	}

	var raw bson.M
	if err := c.coll.FindOneAndDelete(ctx, bson.M{query.IDField: oid}).Decode(&raw); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return fromMongoDocument(raw), nil
}

func (c *mongoCollection) DeleteMany(ctx context.Context, filter query.Filter) (int64, error) {
	f, err := mongoFilter(filter)
	if err != nil {
		return 0, err
	}
	res, err := c.coll.DeleteMany(ctx, f)
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

var mongoOperators = map[query.Operator]string{
	query.OpEq:  "$eq",
	query.OpNe:  "$ne",
	query.OpGt:  "$gt",
	query.OpGte: "$gte",
	query.OpLt:  "$lt",
	query.OpLte: "$lte",
	query.OpIn:  "$in",
}

// mongoFilter translates filter into a query document. Several comparisons
// are joined under $and in field order.
func mongoFilter(filter query.Filter) (bson.M, error) {
	fields := make([]string, 0, len(filter))
	for field := range filter {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var clauses bson.A
	for _, field := range fields {
		for _, cmp := range filter[field] {
			op, ok := mongoOperators[cmp.Op]
			if !ok {
				return nil, &InvalidFieldError{Field: field + "[" + string(cmp.Op) + "]"}
			}
			value, err := mongoFilterValue(field, cmp)
			if err != nil {
				return nil, err
			}
			clauses = append(clauses, bson.M{field: bson.M{op: value}})
		}
	}

	switch len(clauses) {
	case 0:
		return bson.M{}, nil
	case 1:
		return clauses[0].(bson.M), nil
	}
	return bson.M{"$and": clauses}, nil
}

func mongoFilterValue(field string, cmp query.Comparison) (any, error) {
	if field != query.IDField {
		return toMongoValue(cmp.Value), nil
	}

	if cmp.Op == query.OpIn {
		ids := asSlice(cmp.Value)
		oids := make(bson.A, 0, len(ids))
		for _, v := range ids {
			oid, err := objectID(v)
			if err != nil {
				return nil, err
			}
			oids = append(oids, oid)
		}
		return oids, nil
	}
	return objectID(cmp.Value)
}

func objectID(v any) (primitive.ObjectID, error) {
	switch id := v.(type) {
	case primitive.ObjectID:
		return id, nil
	case string:
		oid, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			return primitive.NilObjectID, &InvalidIDError{ID: id}
		}
		return oid, nil
	}
	return primitive.NilObjectID, &InvalidIDError{}
}

func mongoSort(fields []query.SortField) bson.D {
	out := bson.D{}
	sortedByID := false
	for _, f := range fields {
		dir := 1
		if f.Desc {
			dir = -1
		}
		if f.Field == query.IDField {
			sortedByID = true
		}
		out = append(out, bson.E{Key: f.Field, Value: dir})
	}
	if !sortedByID {
		out = append(out, bson.E{Key: query.IDField, Value: 1})
	}
	return out
}

func mongoProjection(p query.Projection) bson.M {
	switch {
	case len(p.Include) > 0:
		out := bson.M{}
		for _, f := range p.Include {
			out[f] = 1
		}
		return out
	case len(p.Exclude) > 0:
		out := bson.M{}
		for _, f := range p.Exclude {
			out[f] = 0
		}
		return out
	}
	return nil
}

func mongoUpdate(u Update) bson.M {
	set := bson.M{}
	for k, v := range u.Set {
		if k == query.IDField || k == query.VersionKey {
			continue
		}
		set[k] = toMongoValue(v)
	}

	unset := bson.M{}
	for _, k := range u.Unset {
		if _, replaced := set[k]; replaced || k == query.IDField || k == query.VersionKey {
			continue
		}
		unset[k] = ""
	}

	out := bson.M{"$inc": bson.M{query.VersionKey: 1}}
	if len(set) > 0 {
		out["$set"] = set
	}
	if len(unset) > 0 {
		out["$unset"] = unset
	}
	return out
}

func toMongoValue(v any) any {
	switch v := v.(type) {
	case Document:
		return toMongoValue(map[string]any(v))
	case map[string]any:
		out := bson.M{}
		for k, e := range v {
			out[k] = toMongoValue(e)
		}
		return out
	case []any:
		out := make(bson.A, len(v))
		for i, e := range v {
			out[i] = toMongoValue(e)
		}
		return out
	}
	return v
}

func fromMongoDocument(m bson.M) Document {
	out, _ := fromMongoValue(m).(map[string]any)
	return Document(out)
}

func fromMongoValue(v any) any {
	switch v := v.(type) {
	case bson.M:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[k] = fromMongoValue(e)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(v))
		for _, e := range v {
			out[e.Key] = fromMongoValue(e.Value)
		}
		return out
	case bson.A:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = fromMongoValue(e)
		}
		return out
	case primitive.ObjectID:
		return v.Hex()
	case primitive.DateTime:
		return v.Time().UTC()
	case int32:
		return int64(v)
	}
	return v
}
