package filter_test

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dot-do/gateway/internal/filter"
)

func parseRaw(t *testing.T, qs string) *filter.Query {
	t.Helper()

	values, err := url.ParseQuery(qs)
	require.NoError(t, err)
	q, err := filter.ParseQuery(values)
	require.NoError(t, err)
	return q
}

func TestParseQuery(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		qs   string
		want filter.Node
	}{
		"bare equality": {
			qs:   "category=tools",
			want: filter.And{filter.Leaf{Field: "category", Op: filter.OpEq, Value: "tools"}},
		},
		"bare comma becomes in": {
			qs:   "category=tools,misc",
			want: filter.And{filter.Leaf{Field: "category", Op: filter.OpIn, Value: []any{"tools", "misc"}}},
		},
		"numeric coercion": {
			qs:   "price=10",
			want: filter.And{filter.Leaf{Field: "price", Op: filter.OpEq, Value: float64(10)}},
		},
		"boolean coercion": {
			qs:   "active=true",
			want: filter.And{filter.Leaf{Field: "active", Op: filter.OpEq, Value: true}},
		},
		"null coercion": {
			qs:   "deletedAt=null",
			want: filter.And{filter.Leaf{Field: "deletedAt", Op: filter.OpEq, Value: nil}},
		},
		"symbolic gt in key": {
			qs:   "amount>10000",
			want: filter.And{filter.Leaf{Field: "amount", Op: filter.OpGt, Value: float64(10000)}},
		},
		"symbolic gte with value": {
			qs:   "amount>=100",
			want: filter.And{filter.Leaf{Field: "amount", Op: filter.OpGte, Value: float64(100)}},
		},
		"symbolic ne": {
			qs:   "status!=closed",
			want: filter.And{filter.Leaf{Field: "status", Op: filter.OpNe, Value: "closed"}},
		},
		"symbolic regex": {
			qs:   "name~alice",
			want: filter.And{filter.Leaf{Field: "name", Op: filter.OpRegex, Value: "alice"}},
		},
		"dot suffix gt": {
			qs:   "amount.gt=10000",
			want: filter.And{filter.Leaf{Field: "amount", Op: filter.OpGt, Value: float64(10000)}},
		},
		"dot suffix not aliases ne": {
			qs:   "status.not=closed",
			want: filter.And{filter.Leaf{Field: "status", Op: filter.OpNe, Value: "closed"}},
		},
		"bracket operator": {
			qs:   "price[$gt]=25",
			want: filter.And{filter.Leaf{Field: "price", Op: filter.OpGt, Value: float64(25)}},
		},
		"bracket in": {
			qs:   "category[$in]=tools,misc",
			want: filter.And{filter.Leaf{Field: "category", Op: filter.OpIn, Value: []any{"tools", "misc"}}},
		},
		"numeric in list": {
			qs:   "price.in=10,25,50",
			want: filter.And{filter.Leaf{Field: "price", Op: filter.OpIn, Value: []any{float64(10), float64(25), float64(50)}}},
		},
		"mixed in list stays strings": {
			qs:   "tag.in=1,alpha",
			want: filter.And{filter.Leaf{Field: "tag", Op: filter.OpIn, Value: []any{"1", "alpha"}}},
		},
		"contains becomes regex": {
			qs:   "name.contains=corp",
			want: filter.And{filter.Leaf{Field: "name", Op: filter.OpRegex, Value: "corp"}},
		},
		"starts anchors": {
			qs:   "name.starts=Ac",
			want: filter.And{filter.Leaf{Field: "name", Op: filter.OpRegex, Value: "^Ac"}},
		},
		"ends escapes and anchors": {
			qs:   "domain.ends=.io",
			want: filter.And{filter.Leaf{Field: "domain", Op: filter.OpRegex, Value: `\.io$`}},
		},
		"exists": {
			qs:   "email.exists=true",
			want: filter.And{filter.Leaf{Field: "email", Op: filter.OpExists, Value: true}},
		},
		"between expands to bounds": {
			qs: "price.between=10,50",
			want: filter.And{
				filter.Leaf{Field: "price", Op: filter.OpGte, Value: float64(10)},
				filter.Leaf{Field: "price", Op: filter.OpLte, Value: float64(50)},
			},
		},
		"reserved params skipped": {
			qs:   "limit=10&offset=5&page=2&debug=1&category=tools",
			want: filter.And{filter.Leaf{Field: "category", Op: filter.OpEq, Value: "tools"}},
		},
		"multiple params conjoin sorted": {
			qs: "price>20&category=tools",
			want: filter.And{
				filter.Leaf{Field: "category", Op: filter.OpEq, Value: "tools"},
				filter.Leaf{Field: "price", Op: filter.OpGt, Value: float64(20)},
			},
		},
	}

	for name, tc := range tcs {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			q := parseRaw(t, tc.qs)
			assert.Equal(t, tc.want, q.Filter)
		})
	}
}

func TestParseQueryProjectionAndSort(t *testing.T) {
	t.Parallel()

	q := parseRaw(t, "fields=name,email&exclude=notes&sort=name,-createdAt")
	assert.Equal(t, []string{"name", "email"}, q.Fields)
	assert.Equal(t, []string{"notes"}, q.Exclude)
	assert.Equal(t, filter.Sort{
		{Field: "name"},
		{Field: "createdAt", Desc: true},
	}, q.Sort)
	assert.Nil(t, q.Filter)
}

func TestCanonicalRoundTrip(t *testing.T) {
	t.Parallel()

	queries := []string{
		"category=tools",
		"category=tools,misc",
		"price>25&category=electronics",
		"price.between=10,50",
		"price.gte=10&price.lte=50",
		"name.contains=corp&active=true",
		"email.exists=false",
		"amount.gt=10000&status!=closed&tier.in=Free,Pro",
	}

	for _, qs := range queries {
		qs := qs
		t.Run(qs, func(t *testing.T) {
			t.Parallel()

			first := parseRaw(t, qs)
			canon, err := filter.Canonicalise(first.Filter)
			require.NoError(t, err)

			second := parseRaw(t, canon)
			assert.Equal(t, first.Filter, second.Filter)

			// Canonical form is a fixed point.
			canon2, err := filter.Canonicalise(second.Filter)
			require.NoError(t, err)
			assert.Equal(t, canon, canon2)
		})
	}
}

func TestCanonicaliseBetween(t *testing.T) {
	t.Parallel()

	q := parseRaw(t, "price.gte=10&price.lte=50")
	canon, err := filter.Canonicalise(q.Filter)
	require.NoError(t, err)
	assert.Equal(t, "price.between=10,50", canon)
}

func TestSortRoundTrip(t *testing.T) {
	t.Parallel()

	tcs := []string{"name.asc", "name.asc,price.desc", "createdAt.desc"}
	for _, s := range tcs {
		s := s
		t.Run(s, func(t *testing.T) {
			t.Parallel()

			parsed := filter.ParseSort(s)
			assert.Equal(t, s, parsed.Canonical())
			assert.Equal(t, parsed, filter.ParseSort(parsed.Canonical()))
		})
	}

	t.Run("dash form canonicalises", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, "name.asc,createdAt.desc", filter.ParseSort("name,-createdAt").Canonical())
	})
}

func TestParseMongo(t *testing.T) {
	t.Parallel()

	t.Run("logical composition", func(t *testing.T) {
		t.Parallel()

		node, err := filter.ParseMongo(map[string]any{
			"$and": []any{
				map[string]any{"$or": []any{
					map[string]any{"category": "tools"},
					map[string]any{"category": "electronics"},
				}},
				map[string]any{"price": map[string]any{"lt": float64(20)}},
			},
		})
		require.NoError(t, err)

		doc := map[string]any{"category": "tools", "price": float64(10)}
		ok, err := filter.Matches(doc, node)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("outer gt flips the match", func(t *testing.T) {
		t.Parallel()

		node, err := filter.ParseMongo(map[string]any{
			"$and": []any{
				map[string]any{"$or": []any{
					map[string]any{"category": "tools"},
					map[string]any{"category": "electronics"},
				}},
				map[string]any{"price": map[string]any{"gt": float64(20)}},
			},
		})
		require.NoError(t, err)

		doc := map[string]any{"category": "tools", "price": float64(10)}
		ok, err := filter.Matches(doc, node)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("dollar operators accepted", func(t *testing.T) {
		t.Parallel()

		node, err := filter.ParseMongo(map[string]any{
			"price": map[string]any{"$gte": float64(10), "$lte": float64(50)},
		})
		require.NoError(t, err)

		ok, err := filter.Matches(map[string]any{"price": float64(25)}, node)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("nor and not", func(t *testing.T) {
		t.Parallel()

		node, err := filter.ParseMongo(map[string]any{
			"$nor": []any{
				map[string]any{"status": "closed"},
				map[string]any{"status": "archived"},
			},
		})
		require.NoError(t, err)

		ok, err := filter.Matches(map[string]any{"status": "open"}, node)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = filter.Matches(map[string]any{"status": "closed"}, node)
		require.NoError(t, err)
		assert.False(t, ok)

		not, err := filter.ParseMongo(map[string]any{
			"$not": map[string]any{"status": "open"},
		})
		require.NoError(t, err)
		ok, err = filter.Matches(map[string]any{"status": "open"}, not)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("unknown operator errors", func(t *testing.T) {
		t.Parallel()

		_, err := filter.ParseMongo(map[string]any{
			"price": map[string]any{"$near": float64(1)},
		})
		require.ErrorIs(t, err, filter.ErrFilter)
	})
}

func TestMatches(t *testing.T) {
	t.Parallel()

	doc := map[string]any{
		"name":     "Acme Inc",
		"price":    float64(50),
		"category": "tools",
		"active":   true,
		"notes":    nil,
	}

	tcs := map[string]struct {
		node filter.Node
		want bool
	}{
		"eq string":         {filter.Leaf{Field: "category", Op: filter.OpEq, Value: "tools"}, true},
		"eq number coerced": {filter.Leaf{Field: "price", Op: filter.OpEq, Value: "50"}, true},
		"eq bool":           {filter.Leaf{Field: "active", Op: filter.OpEq, Value: true}, true},
		"ne":                {filter.Leaf{Field: "category", Op: filter.OpNe, Value: "misc"}, true},
		"gt true":           {filter.Leaf{Field: "price", Op: filter.OpGt, Value: float64(25)}, true},
		"gt false":          {filter.Leaf{Field: "price", Op: filter.OpGt, Value: float64(50)}, false},
		"gte boundary":      {filter.Leaf{Field: "price", Op: filter.OpGte, Value: float64(50)}, true},
		"lt":                {filter.Leaf{Field: "price", Op: filter.OpLt, Value: float64(100)}, true},
		"lexicographic gt":  {filter.Leaf{Field: "name", Op: filter.OpGt, Value: "Abc"}, true},
		"in member":         {filter.Leaf{Field: "category", Op: filter.OpIn, Value: []any{"tools", "misc"}}, true},
		"nin":               {filter.Leaf{Field: "category", Op: filter.OpNin, Value: []any{"misc"}}, true},
		"regex substring":   {filter.Leaf{Field: "name", Op: filter.OpRegex, Value: "acme"}, true},
		"regex anchored":    {filter.Leaf{Field: "name", Op: filter.OpRegex, Value: "^Acme"}, true},
		"regex no match":    {filter.Leaf{Field: "name", Op: filter.OpRegex, Value: "^Inc"}, false},
		"exists present":    {filter.Leaf{Field: "name", Op: filter.OpExists, Value: true}, true},
		"exists null field": {filter.Leaf{Field: "notes", Op: filter.OpExists, Value: true}, true},
		"exists missing":    {filter.Leaf{Field: "ghost", Op: filter.OpExists, Value: false}, true},
		"empty and":         {filter.And{}, true},
		"empty or":          {filter.Or{}, false},
		"nor":               {filter.Nor{filter.Leaf{Field: "category", Op: filter.OpEq, Value: "misc"}}, true},
		"not":               {filter.Not{Node: filter.Leaf{Field: "category", Op: filter.OpEq, Value: "tools"}}, false},
		"missing field gt":  {filter.Leaf{Field: "ghost", Op: filter.OpGt, Value: float64(1)}, false},
	}

	for name, tc := range tcs {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := filter.Matches(doc, tc.node)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	t.Run("nested and of or", func(t *testing.T) {
		t.Parallel()

		cheap := map[string]any{"category": "tools", "price": float64(10)}
		either := filter.Or{
			filter.Leaf{Field: "category", Op: filter.OpEq, Value: "tools"},
			filter.Leaf{Field: "category", Op: filter.OpEq, Value: "electronics"},
		}

		got, err := filter.Matches(cheap, filter.And{either, filter.Leaf{Field: "price", Op: filter.OpLt, Value: float64(20)}})
		require.NoError(t, err)
		assert.True(t, got)

		got, err = filter.Matches(cheap, filter.And{either, filter.Leaf{Field: "price", Op: filter.OpGt, Value: float64(20)}})
		require.NoError(t, err)
		assert.False(t, got)
	})

	t.Run("nil node matches everything", func(t *testing.T) {
		t.Parallel()

		ok, err := filter.Matches(doc, nil)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("unknown operator errors", func(t *testing.T) {
		t.Parallel()

		_, err := filter.Matches(doc, filter.Leaf{Field: "price", Op: "near", Value: float64(1)})
		require.ErrorIs(t, err, filter.ErrFilter)
	})
}
