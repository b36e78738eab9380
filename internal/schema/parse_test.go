package schema_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dot-do/gateway/internal/schema"
)

func TestParseField(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		expr  string
		check func(*testing.T, *schema.Field)
	}{
		"required string": {
			expr: "string!",
			check: func(t *testing.T, f *schema.Field) {
				assert.Equal(t, schema.TypeString, f.Type)
				assert.True(t, f.Required)
			},
		},
		"optional number": {
			expr: "number?",
			check: func(t *testing.T, f *schema.Field) {
				assert.Equal(t, schema.TypeNumber, f.Type)
				assert.False(t, f.Required)
			},
		},
		"int maps to number": {
			expr: "int",
			check: func(t *testing.T, f *schema.Field) {
				assert.Equal(t, schema.TypeNumber, f.Type)
			},
		},
		"bool maps to boolean": {
			expr: "bool",
			check: func(t *testing.T, f *schema.Field) {
				assert.Equal(t, schema.TypeBoolean, f.Type)
			},
		},
		"datetime maps to timestamp": {
			expr: "DateTime",
			check: func(t *testing.T, f *schema.Field) {
				assert.Equal(t, schema.TypeTimestamp, f.Type)
			},
		},
		"email format": {
			expr: "email!",
			check: func(t *testing.T, f *schema.Field) {
				assert.Equal(t, schema.TypeString, f.Type)
				assert.Equal(t, "email", f.Format)
				assert.True(t, f.Required)
			},
		},
		"unknown token falls back to string": {
			expr: "widget",
			check: func(t *testing.T, f *schema.Field) {
				assert.Equal(t, schema.TypeString, f.Type)
			},
		},
		"unique shorthand": {
			expr: "string##",
			check: func(t *testing.T, f *schema.Field) {
				assert.True(t, f.Unique)
				assert.True(t, f.Indexed)
			},
		},
		"index shorthand": {
			expr: "string#",
			check: func(t *testing.T, f *schema.Field) {
				assert.False(t, f.Unique)
				assert.True(t, f.Indexed)
			},
		},
		"word modifiers": {
			expr: "string #unique",
			check: func(t *testing.T, f *schema.Field) {
				assert.Equal(t, schema.TypeString, f.Type)
				assert.True(t, f.Unique)
				assert.True(t, f.Indexed)
			},
		},
		"index word modifier": {
			expr: "string #index",
			check: func(t *testing.T, f *schema.Field) {
				assert.False(t, f.Unique)
				assert.True(t, f.Indexed)
			},
		},
		"string array": {
			expr: "string[]",
			check: func(t *testing.T, f *schema.Field) {
				assert.Equal(t, schema.TypeString, f.Type)
				assert.True(t, f.Array)
			},
		},
		"pipe enum with default": {
			expr: `Free | Pro | Enterprise = "Free"`,
			check: func(t *testing.T, f *schema.Field) {
				assert.Equal(t, schema.TypeString, f.Type)
				assert.Equal(t, []string{"Free", "Pro", "Enterprise"}, f.Enum)
				assert.True(t, f.HasDefault)
				assert.Equal(t, "Free", f.Default)
				assert.False(t, f.Required)
			},
		},
		"enum function form": {
			expr: "enum(Lead, Qualified, Customer)",
			check: func(t *testing.T, f *schema.Field) {
				assert.Equal(t, []string{"Lead", "Qualified", "Customer"}, f.Enum)
			},
		},
		"decimal": {
			expr: "decimal(15,2)",
			check: func(t *testing.T, f *schema.Field) {
				assert.Equal(t, schema.TypeNumber, f.Type)
				assert.Equal(t, 15, f.Precision)
				assert.Equal(t, 2, f.Scale)
			},
		},
		"vector": {
			expr: "vector[1536]",
			check: func(t *testing.T, f *schema.Field) {
				assert.Equal(t, schema.TypeVector, f.Type)
				assert.Equal(t, 1536, f.Dimensions)
				assert.True(t, f.Indexed)
			},
		},
		"forward relation": {
			expr: "-> User",
			check: func(t *testing.T, f *schema.Field) {
				require.NotNil(t, f.Relation)
				assert.Equal(t, schema.RelationForward, f.Relation.Kind)
				assert.Equal(t, "User", f.Relation.Target)
				assert.False(t, f.Relation.Many)
				assert.True(t, f.Indexed)
			},
		},
		"inverse relation to many": {
			expr: "<- Post.author[]",
			check: func(t *testing.T, f *schema.Field) {
				require.NotNil(t, f.Relation)
				assert.Equal(t, schema.RelationInverse, f.Relation.Kind)
				assert.Equal(t, "Post", f.Relation.Target)
				assert.Equal(t, "author", f.Relation.InverseField)
				assert.True(t, f.Relation.Many)
				assert.False(t, f.Required)
			},
		},
		"forward relation many": {
			expr: "-> Tag[]",
			check: func(t *testing.T, f *schema.Field) {
				require.NotNil(t, f.Relation)
				assert.True(t, f.Relation.Many)
			},
		},
		"numeric default disables required": {
			expr: "number! = 0",
			check: func(t *testing.T, f *schema.Field) {
				assert.True(t, f.HasDefault)
				assert.Equal(t, float64(0), f.Default)
				assert.False(t, f.Required)
			},
		},
		"boolean default": {
			expr: "boolean = true",
			check: func(t *testing.T, f *schema.Field) {
				assert.Equal(t, true, f.Default)
			},
		},
		"null default": {
			expr: "string = null",
			check: func(t *testing.T, f *schema.Field) {
				assert.True(t, f.HasDefault)
				assert.Nil(t, f.Default)
			},
		},
	}

	for name, tc := range tcs {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			f, err := schema.ParseField("f", tc.expr)
			require.NoError(t, err)
			tc.check(t, f)
		})
	}
}

func TestParseModel(t *testing.T) {
	t.Parallel()

	t.Run("synthesises id primary key", func(t *testing.T) {
		t.Parallel()

		s, err := schema.Parse(schema.Definition{Models: []schema.ModelDef{
			{Name: "Customer", Fields: []schema.FieldDef{
				{Name: "name", Expr: "string!"},
			}},
		}})
		require.NoError(t, err)

		m, ok := s.Model("Customer")
		require.True(t, ok)
		assert.Equal(t, "id", m.PrimaryKey)

		id, ok := m.Field("id")
		require.True(t, ok)
		assert.Equal(t, schema.TypeCUID, id.Type)
		assert.True(t, id.Required)
		assert.True(t, id.Unique)
		assert.True(t, id.Indexed)
		assert.Equal(t, id, m.Fields[0])
	})

	t.Run("declared uuid primary key wins", func(t *testing.T) {
		t.Parallel()

		s, err := schema.Parse(schema.Definition{Models: []schema.ModelDef{
			{Name: "Device", Fields: []schema.FieldDef{
				{Name: "serial", Expr: "uuid!##"},
				{Name: "label", Expr: "string"},
			}},
		}})
		require.NoError(t, err)

		m, _ := s.Model("Device")
		assert.Equal(t, "serial", m.PrimaryKey)
		_, hasID := m.Field("id")
		assert.False(t, hasID)
	})

	t.Run("metadata keys are not fields", func(t *testing.T) {
		t.Parallel()

		s, err := schema.Parse(schema.Definition{Models: []schema.ModelDef{
			{Name: "Post", Fields: []schema.FieldDef{
				{Name: "$id", Expr: "sqid"},
				{Name: "$name", Expr: "title"},
				{Name: "title", Expr: "string!"},
			}},
		}})
		require.NoError(t, err)

		m, _ := s.Model("Post")
		assert.Equal(t, "sqid", m.IDStrategy)
		assert.Equal(t, "title", m.NameField)
		_, ok := m.Field("$id")
		assert.False(t, ok)
	})

	t.Run("rejects sql-like model names", func(t *testing.T) {
		t.Parallel()

		_, err := schema.ParseMap(map[string]map[string]string{
			"users; DROP TABLE users--": {"name": "string"},
		})
		require.ErrorIs(t, err, schema.ErrInvalidIdentifier)
	})

	t.Run("rejects leading digit field names", func(t *testing.T) {
		t.Parallel()

		_, err := schema.ParseMap(map[string]map[string]string{
			"User": {"1name": "string"},
		})
		require.ErrorIs(t, err, schema.ErrInvalidIdentifier)
	})

	t.Run("unresolved relation target fails", func(t *testing.T) {
		t.Parallel()

		_, err := schema.ParseMap(map[string]map[string]string{
			"Post": {"author": "-> Ghost"},
		})
		require.ErrorIs(t, err, schema.ErrUnresolvedRelation)
	})

	t.Run("self-referencing relation resolves", func(t *testing.T) {
		t.Parallel()

		s, err := schema.ParseMap(map[string]map[string]string{
			"Employee": {"manager": "-> Employee"},
		})
		require.NoError(t, err)
		m, _ := s.Model("Employee")
		f, ok := m.Field("manager")
		require.True(t, ok)
		assert.Equal(t, "Employee", f.Relation.Target)
	})

	t.Run("day schema parses with plural days", func(t *testing.T) {
		t.Parallel()

		s, err := schema.ParseMap(map[string]map[string]string{
			"Day": {"date": "date!"},
		})
		require.NoError(t, err)
		m, _ := s.Model("Day")
		assert.Equal(t, "days", m.Plural)
	})
}

func TestSchemaLookups(t *testing.T) {
	t.Parallel()

	s, err := schema.ParseMap(map[string]map[string]string{
		"Contact": {"name": "string!"},
	})
	require.NoError(t, err)

	m, ok := s.ModelByPlural("contacts")
	require.True(t, ok)
	assert.Equal(t, "Contact", m.Name)

	m, ok = s.ModelBySingular("contact")
	require.True(t, ok)
	assert.Equal(t, "Contact", m.Name)
}

func TestStringFields(t *testing.T) {
	t.Parallel()

	s, err := schema.Parse(schema.Definition{Models: []schema.ModelDef{
		{Name: "Note", Fields: []schema.FieldDef{
			{Name: "title", Expr: "string!"},
			{Name: "body", Expr: "text"},
			{Name: "pinned", Expr: "boolean"},
		}},
	}})
	require.NoError(t, err)

	m, _ := s.Model("Note")
	assert.Equal(t, []string{"title", "body"}, m.StringFields())
}
