package rest

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPaginationLinks(t *testing.T) {
	t.Parallel()

	t.Run("middle page has prev and next", func(t *testing.T) {
		t.Parallel()

		r := httptest.NewRequest("GET", "http://api.test/products?category=tools&limit=10&offset=10", nil)
		links := paginationLinks(r, 35, 10, 10)

		assert.Equal(t, "http://api.test/products?category=tools&limit=10&offset=10", links["self"])
		assert.Equal(t, "http://api.test/", links["home"])
		assert.Contains(t, links["first"], "offset=0")
		assert.Contains(t, links["prev"], "offset=0")
		assert.Contains(t, links["next"], "offset=20")
		assert.Contains(t, links["last"], "offset=30")

		// The other params survive verbatim.
		assert.Contains(t, links["next"], "category=tools")
	})

	t.Run("first page omits prev", func(t *testing.T) {
		t.Parallel()

		r := httptest.NewRequest("GET", "http://api.test/products?limit=10", nil)
		links := paginationLinks(r, 35, 10, 0)
		assert.NotContains(t, links, "prev")
		assert.Contains(t, links, "next")
	})

	t.Run("last page omits next", func(t *testing.T) {
		t.Parallel()

		r := httptest.NewRequest("GET", "http://api.test/products?limit=10&offset=30", nil)
		links := paginationLinks(r, 35, 10, 30)
		assert.Contains(t, links, "prev")
		assert.NotContains(t, links, "next")
	})
}

func TestBuildErrorLinks(t *testing.T) {
	t.Parallel()

	home := "http://api.test/"

	t.Run("not found", func(t *testing.T) {
		links := buildErrorLinks(CodeNotFound, home, "http://api.test/contacts")
		assert.Equal(t, home, links["home"])
		assert.Equal(t, "http://api.test/contacts", links["collection"])
		assert.Equal(t, "http://api.test/contacts/search", links["search"])
		assert.Equal(t, "http://api.test/contacts", links["create"])
	})

	t.Run("unauthorized", func(t *testing.T) {
		links := buildErrorLinks(CodeUnauthorized, home, "")
		assert.Contains(t, links, "login")
		assert.Contains(t, links, "register")
	})

	t.Run("conflict", func(t *testing.T) {
		links := buildErrorLinks(CodeConflict, home, "http://api.test/contacts")
		assert.Equal(t, "http://api.test/contacts", links["current"])
	})

	t.Run("default has home only", func(t *testing.T) {
		links := buildErrorLinks(CodeInternal, home, "http://api.test/contacts")
		assert.Equal(t, map[string]string{"home": home}, links)
	})
}
