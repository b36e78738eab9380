package rest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractTenantFromPath(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		path       string
		wantTenant string
		wantRest   string
	}{
		"sigil with path":      {"/~acme/contacts", "acme", "/contacts"},
		"bare sigil":           {"/~acme", "acme", "/"},
		"sigil deep path":      {"/~acme/contacts/c1/friends", "acme", "/contacts/c1/friends"},
		"no sigil":             {"/contacts", "", "/contacts"},
		"root":                 {"/", "", "/"},
		"empty slug unchanged": {"/~/contacts", "", "/~/contacts"},
	}

	for name, tc := range tests {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			tenant, rest := ExtractTenantFromPath(tc.path)
			assert.Equal(t, tc.wantTenant, tenant)
			assert.Equal(t, tc.wantRest, rest)
		})
	}
}

func TestExtractTenantFromHost(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		host       string
		baseDomain string
		want       string
	}{
		"tenant subdomain":          {"acme.example.com", "example.com", "acme"},
		"tenant subdomain port":     {"acme.example.com:8080", "example.com", "acme"},
		"system subdomain":          {"api.example.com", "example.com", ""},
		"system subdomain mixed":    {"WWW.example.com", "example.com", ""},
		"bare domain":               {"example.com", "example.com", ""},
		"nested subdomain":          {"a.b.example.com", "example.com", ""},
		"unrelated host":            {"other.io", "example.com", ""},
		"no base domain configured": {"acme.example.com", "", ""},
	}

	for name, tc := range tests {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, ExtractTenantFromHost(tc.host, tc.baseDomain))
		})
	}
}
