package resource

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/deppfellow/tourbook/internal/errs"
	"github.com/deppfellow/tourbook/internal/query"
	"github.com/deppfellow/tourbook/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type owner struct {
	ID       string `json:"_id,omitempty"`
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password,omitempty"`
	Active   *bool  `json:"active,omitempty"`
}

type widget struct {
	ID        string    `json:"_id,omitempty"`
	Name      string    `json:"name" validate:"required,min=3"`
	Price     float64   `json:"price" validate:"required"`
	Discount  *float64  `json:"discount,omitempty"`
	Days      int       `json:"days,omitempty"`
	Secret    bool      `json:"secret,omitempty"`
	Color     string    `json:"color,omitempty"`
	Owners    []string  `json:"owners,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type note struct {
	ID     string `json:"_id,omitempty"`
	Text   string `json:"text" validate:"required"`
	Widget string `json:"widget" validate:"required"`
	Owner  string `json:"owner,omitempty"`
}

type fixture struct {
	reg     *Registry
	widgets *Factory[widget]
	owners  *Factory[owner]
	notes   *Factory[note]
	events  []Event
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fx := &fixture{reg: NewRegistry(store.NewMemoryStore())}

	fx.owners = NewFactory(fx.reg, Descriptor[owner]{
		Collection: "owners",
		Singular:   "owner",
		Scope:      query.Filter{}.Add("active", query.OpNe, false),
		Hidden:     []string{"password", "active"},
	})

	fx.widgets = NewFactory(fx.reg, Descriptor[widget]{
		Collection: "widgets",
		Singular:   "widget",
		Indexes:    []store.Index{{Fields: []store.IndexField{{Field: "name"}}, Unique: true}},
		Scope:      query.Filter{}.Add("secret", query.OpNe, true),
		Hidden:     []string{"createdAt"},
		Virtuals: func(doc store.Document) {
			if d, ok := doc["days"].(float64); ok {
				doc["weeks"] = d / 7
			}
		},
		Refs: []string{"owners"},
		Populate: []Population{
			{Path: "owners", Collection: "owners", Select: query.Projection{Exclude: []string{query.VersionKey}}, Auto: true},
			{Path: "notes", Collection: "notes", ForeignField: "widget"},
		},
		Defaults: func(w *widget) {
			if w.Color == "" {
				w.Color = "blue"
			}
			if w.CreatedAt.IsZero() {
				w.CreatedAt = time.Now().UTC()
			}
		},
		Normalize: func(w *widget) { w.Name = strings.TrimSpace(w.Name) },
		Validators: []Validator[widget]{
			func(_ context.Context, w *widget, sc SaveContext) []errs.FieldError {
				if w.Discount != nil && *w.Discount >= w.Price {
					return []errs.FieldError{{Field: "discount", Error: "must be below price"}}
				}
				return nil
			},
		},
	})

	fx.notes = NewFactory(fx.reg, Descriptor[note]{
		Collection: "notes",
		Singular:   "note",
		Refs:       []string{"widget", "owner"},
		Populate: []Population{
			{Path: "owner", Collection: "owners", Select: query.Projection{Include: []string{"name"}}, Auto: true},
		},
	})

	fx.widgets.Subscribe(func(_ context.Context, ev Event) error {
		fx.events = append(fx.events, ev)
		return nil
	})

	require.NoError(t, fx.reg.EnsureIndexes(context.Background()))
	return fx
}

func body(t *testing.T, v any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

func (fx *fixture) createWidget(t *testing.T, v map[string]any) store.Document {
	t.Helper()
	doc, err := fx.widgets.Create(context.Background(), body(t, v))
	require.NoError(t, err)
	return doc
}

func resourceError(t *testing.T, err error, kind Kind) *Error {
	t.Helper()
	var re *Error
	require.True(t, errors.As(err, &re), "expected *resource.Error, got %v", err)
	assert.Equal(t, kind, re.Kind)
	return re
}

func TestFactory_CreateAppliesDefaultsAndHidesFields(t *testing.T) {
	fx := newFixture(t)

	env, err := fx.widgets.CreateOne(context.Background(), body(t, map[string]any{
		"name": "  Sprocket ", "price": 10, "days": 14,
	}))
	require.NoError(t, err)

	assert.Equal(t, "success", env.Status)
	assert.Nil(t, env.Results)
	doc := env.Data["widget"].(store.Document)
	assert.NotEmpty(t, doc.ID())
	assert.Equal(t, "Sprocket", doc["name"])
	assert.Equal(t, "blue", doc["color"])
	assert.Equal(t, 2.0, doc["weeks"])
	assert.EqualValues(t, 0, doc[query.VersionKey])
	assert.NotContains(t, doc, "createdAt")

	stored, err := fx.widgets.Collection().FindByID(context.Background(), doc.ID())
	require.NoError(t, err)
	assert.IsType(t, time.Time{}, stored["createdAt"])
	assert.NotContains(t, stored, "weeks")

	require.Len(t, fx.events, 1)
	assert.Equal(t, OpCreate, fx.events[0].Op)
	assert.Nil(t, fx.events[0].Before)
}

func TestFactory_CreateValidation(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	_, err := fx.widgets.Create(ctx, body(t, map[string]any{"name": "ab"}))
	re := resourceError(t, err, KindValidation)
	assert.ElementsMatch(t, []errs.FieldError{
		{Field: "name", Error: "must be at least 3 characters"},
		{Field: "price", Error: "is required"},
	}, re.Fields)

	_, err = fx.widgets.Create(ctx, body(t, map[string]any{"name": "Sprocket", "price": 10, "discount": 12}))
	re = resourceError(t, err, KindValidation)
	assert.Equal(t, []errs.FieldError{{Field: "discount", Error: "must be below price"}}, re.Fields)

	_, err = fx.widgets.Create(ctx, json.RawMessage(`{"name":"Sprocket","price":"ten"}`))
	re = resourceError(t, err, KindValidation)
	assert.Equal(t, []errs.FieldError{{Field: "price", Error: "must be a number"}}, re.Fields)

	_, err = fx.widgets.Create(ctx, json.RawMessage(`[1,2]`))
	resourceError(t, err, KindValidation)

	_, err = fx.widgets.Create(ctx, body(t, map[string]any{"name": "Sprocket", "price": 10, "owners": []string{"nope"}}))
	re = resourceError(t, err, KindValidation)
	assert.Equal(t, []errs.FieldError{{Field: "owners", Error: "is not a valid id"}}, re.Fields)

	n, err := fx.widgets.Collection().Count(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestFactory_CreateDuplicate(t *testing.T) {
	fx := newFixture(t)
	fx.createWidget(t, map[string]any{"name": "Sprocket", "price": 10})

	_, err := fx.widgets.Create(context.Background(), body(t, map[string]any{"name": "Sprocket", "price": 12}))
	re := resourceError(t, err, KindStore)
	assert.ErrorIs(t, re, store.ErrDuplicateKey)
}

func TestFactory_GetAllAppliesFeaturesAndScope(t *testing.T) {
	fx := newFixture(t)
	for i, name := range []string{"Alpha", "Bravo", "Charlie", "Delta"} {
		fx.createWidget(t, map[string]any{"name": name, "price": 100 * (i + 1), "secret": name == "Delta"})
	}

	params := url.Values{"sort": {"-price"}, "limit": {"2"}, "price[gte]": {"150"}}
	env, err := fx.widgets.GetAll(context.Background(), nil, params)
	require.NoError(t, err)

	require.NotNil(t, env.Results)
	assert.Equal(t, 2, *env.Results)
	docs := env.Data["widgets"].([]store.Document)
	assert.Equal(t, "Charlie", docs[0]["name"])
	assert.Equal(t, "Bravo", docs[1]["name"])

	env, err = fx.widgets.GetAll(context.Background(), query.Eq("name", "Alpha"), url.Values{"fields": {"name"}})
	require.NoError(t, err)
	docs = env.Data["widgets"].([]store.Document)
	require.Len(t, docs, 1)
	assert.Equal(t, store.Document{"_id": docs[0].ID(), "name": "Alpha"}, docs[0])

	env, err = fx.widgets.GetAll(context.Background(), nil, url.Values{"page": {"9"}})
	require.NoError(t, err)
	assert.Equal(t, 0, *env.Results)
	assert.Equal(t, []store.Document{}, env.Data["widgets"])
}

func TestFactory_GetOne(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	visible := fx.createWidget(t, map[string]any{"name": "Alpha", "price": 1})
	secret := fx.createWidget(t, map[string]any{"name": "Bravo", "price": 1, "secret": true})

	env, err := fx.widgets.GetOne(ctx, visible.ID())
	require.NoError(t, err)
	assert.Equal(t, "Alpha", env.Data["widget"].(store.Document)["name"])

	_, err = fx.widgets.GetOne(ctx, secret.ID())
	re := resourceError(t, err, KindNotFound)
	assert.Equal(t, "No widget found with that ID", re.Message())

	_, err = fx.widgets.GetOne(ctx, "5c88fa8cf4afda39709c2955")
	re = resourceError(t, err, KindStore)
	assert.ErrorIs(t, re, store.ErrInvalidID)
}

func TestFactory_UpdateMergesBody(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	created := fx.createWidget(t, map[string]any{"name": "Alpha", "price": 100, "discount": 50, "days": 7})

	var seen SaveContext
	fx.widgets.desc.Validators = append(fx.widgets.desc.Validators, func(_ context.Context, _ *widget, sc SaveContext) []errs.FieldError {
		seen = sc
		return nil
	})

	doc, err := fx.widgets.Update(ctx, created.ID(), json.RawMessage(`{"price":80,"discount":null}`))
	require.NoError(t, err)

	assert.Equal(t, 80.0, doc["price"])
	assert.Equal(t, "Alpha", doc["name"])
	assert.Equal(t, 1.0, doc["weeks"])
	assert.NotContains(t, doc, "discount")
	assert.EqualValues(t, 1, doc[query.VersionKey])

	assert.False(t, seen.IsNew)
	assert.True(t, seen.IsModified("price"))
	assert.False(t, seen.IsModified("name"))

	require.Len(t, fx.events, 2)
	ev := fx.events[1]
	assert.Equal(t, OpUpdate, ev.Op)
	assert.Equal(t, 100.0, ev.Before["price"])
	assert.Equal(t, 80.0, ev.After["price"])
}

func TestFactory_UpdateValidatesMergedState(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	created := fx.createWidget(t, map[string]any{"name": "Alpha", "price": 100})

	_, err := fx.widgets.Update(ctx, created.ID(), json.RawMessage(`{"discount":150}`))
	resourceError(t, err, KindValidation)

	_, err = fx.widgets.Update(ctx, created.ID(), json.RawMessage(`{"name":""}`))
	resourceError(t, err, KindValidation)

	doc, err := fx.widgets.Get(ctx, created.ID())
	require.NoError(t, err)
	assert.Equal(t, "Alpha", doc["name"])
	assert.EqualValues(t, 0, doc[query.VersionKey])
}

func TestFactory_UpdateAndDeleteRespectScope(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	secret := fx.createWidget(t, map[string]any{"name": "Alpha", "price": 100, "secret": true})

	_, err := fx.widgets.Update(ctx, secret.ID(), json.RawMessage(`{"price":1}`))
	resourceError(t, err, KindNotFound)

	err = fx.widgets.DeleteOne(ctx, secret.ID())
	resourceError(t, err, KindNotFound)
}

func TestFactory_Delete(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	created := fx.createWidget(t, map[string]any{"name": "Alpha", "price": 100})

	require.NoError(t, fx.widgets.DeleteOne(ctx, created.ID()))
	assert.True(t, IsNotFound(fx.widgets.DeleteOne(ctx, created.ID())))

	require.Len(t, fx.events, 2)
	assert.Equal(t, OpDelete, fx.events[1].Op)
	assert.Equal(t, created.ID(), fx.events[1].Before.ID())
	assert.Nil(t, fx.events[1].After)
}

func TestFactory_ObserverErrorsDoNotFailWrites(t *testing.T) {
	fx := newFixture(t)
	fx.widgets.Subscribe(func(context.Context, Event) error { return errors.New("boom") })

	_, err := fx.widgets.Create(context.Background(), body(t, map[string]any{"name": "Alpha", "price": 1}))
	assert.NoError(t, err)
}

func TestFactory_PopulatesRefsWithinTargetScope(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	inactive := false

	ann, err := fx.owners.Insert(ctx, &owner{Name: "Ann", Password: "secret"}, SaveOptions{})
	require.NoError(t, err)
	bob, err := fx.owners.Insert(ctx, &owner{Name: "Bob", Active: &inactive}, SaveOptions{})
	require.NoError(t, err)

	created := fx.createWidget(t, map[string]any{"name": "Alpha", "price": 1, "owners": []string{ann.ID(), bob.ID()}})
	assert.Equal(t, []any{ann.ID(), bob.ID()}, created["owners"], "create does not populate")

	doc, err := fx.widgets.Get(ctx, created.ID())
	require.NoError(t, err)

	owners := doc["owners"].([]any)
	require.Len(t, owners, 1)
	o := owners[0].(store.Document)
	assert.Equal(t, "Ann", o["name"])
	assert.NotContains(t, o, "password")
	assert.NotContains(t, o, query.VersionKey)
}

func TestFactory_PopulatesVirtualOnDemand(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	ann, err := fx.owners.Insert(ctx, &owner{Name: "Ann", Email: "ann@example.com"}, SaveOptions{})
	require.NoError(t, err)
	w := fx.createWidget(t, map[string]any{"name": "Alpha", "price": 1})
	other := fx.createWidget(t, map[string]any{"name": "Bravo", "price": 1})

	_, err = fx.notes.Create(ctx, body(t, map[string]any{"text": "great", "widget": w.ID(), "owner": ann.ID()}))
	require.NoError(t, err)
	_, err = fx.notes.Create(ctx, body(t, map[string]any{"text": "meh", "widget": other.ID()}))
	require.NoError(t, err)

	plain, err := fx.widgets.Get(ctx, w.ID())
	require.NoError(t, err)
	assert.NotContains(t, plain, "notes")

	doc, err := fx.widgets.Get(ctx, w.ID(), "notes")
	require.NoError(t, err)
	notes := doc["notes"].([]store.Document)
	require.Len(t, notes, 1)
	assert.Equal(t, "great", notes[0]["text"])
	assert.Equal(t, store.Document{"_id": ann.ID(), "name": "Ann"}, notes[0]["owner"])
}

func TestFactory_FindOneAndSave(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	ann, err := fx.owners.Insert(ctx, &owner{Name: "Ann", Email: "ann@example.com", Password: "secret"}, SaveOptions{})
	require.NoError(t, err)

	o, err := fx.owners.FindOne(ctx, query.Eq("email", "ann@example.com"))
	require.NoError(t, err)
	require.NotNil(t, o)
	assert.Equal(t, "secret", o.Password)

	o.Name = ""
	_, err = fx.owners.Save(ctx, o, SaveOptions{Modified: []string{"name"}})
	resourceError(t, err, KindValidation)

	saved, err := fx.owners.Save(ctx, o, SaveOptions{SkipValidation: true})
	require.NoError(t, err)
	assert.Equal(t, ann.ID(), saved.ID())
	assert.NotContains(t, saved, "password")

	missing, err := fx.owners.FindOne(ctx, query.Eq("email", "nobody@example.com"))
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRegistry_RejectsDuplicateCollections(t *testing.T) {
	reg := NewRegistry(store.NewMemoryStore())
	NewFactory(reg, Descriptor[note]{Collection: "notes", Singular: "note"})

	assert.Panics(t, func() {
		NewFactory(reg, Descriptor[note]{Collection: "notes", Singular: "note"})
	})
}
