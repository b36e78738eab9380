// Package config loads the gateway configuration from a YAML file with
// environment-variable overrides. The schema block preserves declaration
// order: implicit type numbers and primary-key detection depend on it.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/goccy/go-yaml"

	"github.com/dot-do/gateway/internal/schema"
)

// Config holds all configuration for the gateway.
type Config struct {
	Schema      yaml.MapSlice  `yaml:"schema"`
	Database    string         `yaml:"database"`
	MetaPrefix  string         `yaml:"metaPrefix"`
	IDFormat    string         `yaml:"idFormat"`
	SqidSeed    int64          `yaml:"sqidSeed"`
	SqidMinLen  int            `yaml:"sqidMinLength"`
	TypeNumbers map[string]int `yaml:"typeNumbers"`
	REST        RESTConfig     `yaml:"rest"`
	MCP         MCPConfig      `yaml:"mcp"`
	Auth        AuthConfig     `yaml:"auth"`
	Server      ServerConfig   `yaml:"server"`
	API         APIConfig      `yaml:"api"`
	Log         LogConfig      `yaml:"log"`
}

// RESTConfig holds the REST surface options.
type RESTConfig struct {
	BasePath    string `yaml:"basePath"`
	PageSize    int    `yaml:"pageSize"`
	MaxPageSize int    `yaml:"maxPageSize"`
}

// MCPConfig holds the MCP surface options.
type MCPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Prefix  string `yaml:"prefix"`
}

// AuthConfig holds the auth layer options.
type AuthConfig struct {
	Mode            string `yaml:"mode"` // none, optional, required
	TrustSnippets   bool   `yaml:"trustSnippets"`
	TrustUnverified bool   `yaml:"trustUnverified"`
	JWTSecret       string `yaml:"jwtSecret"`
}

// ServerConfig holds process-level options.
type ServerConfig struct {
	Listen     string `yaml:"listen"`
	BaseDomain string `yaml:"baseDomain"`
	CORS       string `yaml:"cors"`
}

// APIConfig identifies the API in every response envelope.
type APIConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Description string `yaml:"description"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// Load reads the YAML file at path and applies defaults and environment
// overrides. Precedence: environment variables > file > defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(data)
}

// Parse decodes raw YAML into a validated Config.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.UnmarshalWithOptions(data, cfg, yaml.UseOrderedMap()); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Database == "" {
		c.Database = "memory"
	}
	if c.MetaPrefix == "" {
		c.MetaPrefix = "$"
	}
	if c.IDFormat == "" {
		c.IDFormat = "cuid"
	}
	if c.SqidMinLen == 0 {
		c.SqidMinLen = 8
	}
	if c.REST.PageSize == 0 {
		c.REST.PageSize = 20
	}
	if c.REST.MaxPageSize == 0 {
		c.REST.MaxPageSize = 100
	}
	if c.Auth.Mode == "" {
		c.Auth.Mode = "none"
	}
	if c.Server.Listen == "" {
		c.Server.Listen = ":8080"
	}
	if c.Server.CORS == "" {
		c.Server.CORS = "*"
	}
	if c.API.Name == "" {
		c.API.Name = "gateway"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func (c *Config) applyEnv() {
	c.Server.Listen = envOr("GATEWAY_LISTEN", c.Server.Listen)
	c.Server.BaseDomain = envOr("GATEWAY_BASE_DOMAIN", c.Server.BaseDomain)
	c.Database = envOr("GATEWAY_DATABASE", c.Database)
	c.Log.Level = envOr("GATEWAY_LOG_LEVEL", c.Log.Level)
	c.Auth.Mode = envOr("GATEWAY_AUTH_MODE", c.Auth.Mode)
	c.Auth.JWTSecret = envOr("GATEWAY_JWT_SECRET", c.Auth.JWTSecret)
	if v := os.Getenv("GATEWAY_SQID_SEED"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.SqidSeed = n
		}
	}
}

// Validate checks option values. Schema content errors surface later, from
// the schema parser itself.
func (c *Config) Validate() error {
	if len(c.Schema) == 0 {
		return fmt.Errorf("config: schema must declare at least one model")
	}
	if c.MetaPrefix != "$" && c.MetaPrefix != "_" {
		return fmt.Errorf("config: metaPrefix must be %q or %q, got %q", "$", "_", c.MetaPrefix)
	}
	if c.IDFormat != "cuid" && c.IDFormat != "sqid" {
		return fmt.Errorf("config: idFormat must be \"cuid\" or \"sqid\", got %q", c.IDFormat)
	}
	if c.IDFormat == "sqid" && c.SqidMinLen < 1 {
		return fmt.Errorf("config: sqidMinLength must be >= 1")
	}
	switch c.Auth.Mode {
	case "none", "optional", "required":
	default:
		return fmt.Errorf("config: auth.mode must be none, optional or required, got %q", c.Auth.Mode)
	}
	return nil
}

// SchemaDefinition converts the ordered YAML schema block into the parser's
// input form.
func (c *Config) SchemaDefinition() (schema.Definition, error) {
	def := schema.Definition{Models: make([]schema.ModelDef, 0, len(c.Schema))}
	for _, modelItem := range c.Schema {
		name, ok := modelItem.Key.(string)
		if !ok {
			return def, fmt.Errorf("config: model name must be a string, got %T", modelItem.Key)
		}
		fields, ok := modelItem.Value.(yaml.MapSlice)
		if !ok {
			return def, fmt.Errorf("config: model %q must be a mapping of fields", name)
		}

		md := schema.ModelDef{Name: name, Fields: make([]schema.FieldDef, 0, len(fields))}
		for _, fieldItem := range fields {
			fname, ok := fieldItem.Key.(string)
			if !ok {
				return def, fmt.Errorf("config: field name in model %q must be a string", name)
			}
			expr, err := exprString(fieldItem.Value)
			if err != nil {
				return def, fmt.Errorf("config: field %s.%s: %w", name, fname, err)
			}
			md.Fields = append(md.Fields, schema.FieldDef{Name: fname, Expr: expr})
		}
		def.Models = append(def.Models, md)
	}
	return def, nil
}

func exprString(v any) (string, error) {
	switch e := v.(type) {
	case string:
		return e, nil
	case bool:
		return strconv.FormatBool(e), nil
	case int64:
		return strconv.FormatInt(e, 10), nil
	case uint64:
		return strconv.FormatUint(e, 10), nil
	case float64:
		return strconv.FormatFloat(e, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("expected a type expression string, got %T", v)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
