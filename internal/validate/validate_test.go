package validate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dot-do/gateway/internal/schema"
	"github.com/dot-do/gateway/internal/validate"
)

func customerModel(t *testing.T) *schema.Model {
	t.Helper()

	s, err := schema.Parse(schema.Definition{Models: []schema.ModelDef{
		{Name: "Customer", Fields: []schema.FieldDef{
			{Name: "name", Expr: "string!"},
			{Name: "email", Expr: "email!"},
			{Name: "tier", Expr: `Free | Pro | Enterprise = "Free"`},
			{Name: "mrr", Expr: "number = 0"},
			{Name: "tags", Expr: "string[]"},
			{Name: "meta", Expr: "json"},
			{Name: "signedUpAt", Expr: "timestamp"},
		}},
		{Name: "Post", Fields: []schema.FieldDef{
			{Name: "title", Expr: "string!"},
			{Name: "author", Expr: "-> Customer"},
			{Name: "reviewers", Expr: "-> Customer[]"},
			{Name: "comments", Expr: "<- Comment.post[]"},
			{Name: "embedding", Expr: "vector[4]"},
		}},
		{Name: "Comment", Fields: []schema.FieldDef{
			{Name: "post", Expr: "-> Post"},
			{Name: "body", Expr: "text!"},
		}},
	}})
	require.NoError(t, err)
	m, ok := s.Model("Customer")
	require.True(t, ok)
	return m
}

func postModel(t *testing.T) *schema.Model {
	t.Helper()

	s, err := schema.Parse(schema.Definition{Models: []schema.ModelDef{
		{Name: "Post", Fields: []schema.FieldDef{
			{Name: "title", Expr: "string!"},
			{Name: "author", Expr: "-> Post"},
			{Name: "reviewers", Expr: "-> Post[]"},
			{Name: "comments", Expr: "<- Post.author[]"},
			{Name: "embedding", Expr: "vector[4]"},
		}},
	}})
	require.NoError(t, err)
	m, _ := s.Model("Post")
	return m
}

func TestBuildSchema(t *testing.T) {
	t.Parallel()

	doc := validate.BuildSchema(customerModel(t))
	props, ok := doc["properties"].(map[string]any)
	require.True(t, ok)

	name, _ := props["name"].(map[string]any)
	assert.Equal(t, "string", name["type"])

	email, _ := props["email"].(map[string]any)
	assert.Equal(t, "email", email["format"])

	tier, _ := props["tier"].(map[string]any)
	assert.Equal(t, []string{"Free", "Pro", "Enterprise"}, tier["enum"])
	assert.Equal(t, "Free", tier["default"])

	tags, _ := props["tags"].(map[string]any)
	assert.Equal(t, "array", tags["type"])

	meta, _ := props["meta"].(map[string]any)
	assert.Equal(t, "object", meta["type"])

	ts, _ := props["signedUpAt"].(map[string]any)
	assert.Equal(t, "date-time", ts["format"])

	// Required excludes the primary key and defaulted fields.
	assert.ElementsMatch(t, []string{"name", "email"}, doc["required"])
}

func TestBuildSchemaRelations(t *testing.T) {
	t.Parallel()

	doc := validate.BuildSchema(postModel(t))
	props, _ := doc["properties"].(map[string]any)

	author, _ := props["author"].(map[string]any)
	assert.Equal(t, "string", author["type"])

	reviewers, _ := props["reviewers"].(map[string]any)
	assert.Equal(t, "array", reviewers["type"])

	// Inverse relations are read-only and omitted entirely.
	assert.NotContains(t, props, "comments")

	embedding, _ := props["embedding"].(map[string]any)
	assert.Equal(t, "array", embedding["type"])
}

func TestValidate(t *testing.T) {
	t.Parallel()

	v := validate.New()
	m := customerModel(t)

	t.Run("valid create", func(t *testing.T) {
		t.Parallel()

		errs, err := v.Validate(m, map[string]any{
			"name":  "Acme Inc",
			"email": "billing@acme.co",
		}, false)
		require.NoError(t, err)
		assert.Empty(t, errs)
	})

	t.Run("missing required fields all reported", func(t *testing.T) {
		t.Parallel()

		errs, err := v.Validate(m, map[string]any{}, false)
		require.NoError(t, err)
		require.Len(t, errs, 2)
		fields := []string{errs[0].Field, errs[1].Field}
		assert.ElementsMatch(t, []string{"name", "email"}, fields)
	})

	t.Run("type violation", func(t *testing.T) {
		t.Parallel()

		errs, err := v.Validate(m, map[string]any{
			"name":  "Acme",
			"email": "a@b.co",
			"mrr":   "lots",
		}, false)
		require.NoError(t, err)
		require.NotEmpty(t, errs)
		assert.Equal(t, "mrr", errs[0].Field)
	})

	t.Run("enum violation", func(t *testing.T) {
		t.Parallel()

		errs, err := v.Validate(m, map[string]any{
			"name":  "Acme",
			"email": "a@b.co",
			"tier":  "Platinum",
		}, false)
		require.NoError(t, err)
		require.NotEmpty(t, errs)
		assert.Equal(t, "tier", errs[0].Field)
	})

	t.Run("partial update skips required", func(t *testing.T) {
		t.Parallel()

		errs, err := v.Validate(m, map[string]any{"mrr": float64(199)}, true)
		require.NoError(t, err)
		assert.Empty(t, errs)
	})

	t.Run("partial update still type checks", func(t *testing.T) {
		t.Parallel()

		errs, err := v.Validate(m, map[string]any{"mrr": "lots"}, true)
		require.NoError(t, err)
		require.NotEmpty(t, errs)
	})

	t.Run("meta prefixed keys ignored", func(t *testing.T) {
		t.Parallel()

		errs, err := v.Validate(m, map[string]any{
			"name":     "Acme",
			"email":    "a@b.co",
			"$version": float64(999),
			"_secret":  true,
		}, false)
		require.NoError(t, err)
		assert.Empty(t, errs)
	})
}
