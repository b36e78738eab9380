package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dot-do/gateway/internal/config"
	"github.com/dot-do/gateway/internal/schema"
)

const sampleConfig = `
schema:
  Customer:
    name: string!
    email: email!
    tier: Free | Pro | Enterprise = "Free"
  Post:
    title: string!
    author: -> Customer

metaPrefix: "$"
idFormat: sqid
sqidSeed: 42
sqidMinLength: 10

typeNumbers:
  Customer: 1

rest:
  basePath: /api
  pageSize: 25

mcp:
  enabled: true
  prefix: "db."

auth:
  mode: optional
  trustSnippets: true

server:
  listen: ":9090"
  baseDomain: example.com

api:
  name: crm-gateway
  version: 1.2.0
`

func TestParse(t *testing.T) {
	cfg, err := config.Parse([]byte(sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "sqid", cfg.IDFormat)
	assert.Equal(t, int64(42), cfg.SqidSeed)
	assert.Equal(t, 10, cfg.SqidMinLen)
	assert.Equal(t, "/api", cfg.REST.BasePath)
	assert.Equal(t, 25, cfg.REST.PageSize)
	assert.Equal(t, 100, cfg.REST.MaxPageSize) // default
	assert.True(t, cfg.MCP.Enabled)
	assert.Equal(t, "db.", cfg.MCP.Prefix)
	assert.Equal(t, "optional", cfg.Auth.Mode)
	assert.True(t, cfg.Auth.TrustSnippets)
	assert.Equal(t, ":9090", cfg.Server.Listen)
	assert.Equal(t, "example.com", cfg.Server.BaseDomain)
	assert.Equal(t, "crm-gateway", cfg.API.Name)
	assert.Equal(t, "memory", cfg.Database) // default
	assert.Equal(t, map[string]int{"Customer": 1}, cfg.TypeNumbers)
}

func TestSchemaDefinitionPreservesOrder(t *testing.T) {
	cfg, err := config.Parse([]byte(sampleConfig))
	require.NoError(t, err)

	def, err := cfg.SchemaDefinition()
	require.NoError(t, err)
	require.Len(t, def.Models, 2)
	assert.Equal(t, "Customer", def.Models[0].Name)
	assert.Equal(t, "Post", def.Models[1].Name)

	fields := def.Models[0].Fields
	require.Len(t, fields, 3)
	assert.Equal(t, "name", fields[0].Name)
	assert.Equal(t, "string!", fields[0].Expr)
	assert.Equal(t, `Free | Pro | Enterprise = "Free"`, fields[2].Expr)

	// The definition parses end to end.
	s, err := schema.Parse(def)
	require.NoError(t, err)
	m, ok := s.Model("Post")
	require.True(t, ok)
	f, ok := m.Field("author")
	require.True(t, ok)
	require.NotNil(t, f.Relation)
	assert.Equal(t, "Customer", f.Relation.Target)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("GATEWAY_LISTEN", ":7777")
	t.Setenv("GATEWAY_AUTH_MODE", "required")
	t.Setenv("GATEWAY_LOG_LEVEL", "debug")

	cfg, err := config.Parse([]byte(sampleConfig))
	require.NoError(t, err)
	assert.Equal(t, ":7777", cfg.Server.Listen)
	assert.Equal(t, "required", cfg.Auth.Mode)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestValidate(t *testing.T) {
	tests := map[string]string{
		"missing schema":  "metaPrefix: '$'",
		"bad meta prefix": "schema:\n  A:\n    x: string\nmetaPrefix: '#'",
		"bad id format":   "schema:\n  A:\n    x: string\nidFormat: ulid",
		"bad auth mode":   "schema:\n  A:\n    x: string\nauth:\n  mode: maybe",
	}

	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := config.Parse([]byte(raw))
			assert.Error(t, err)
		})
	}
}
