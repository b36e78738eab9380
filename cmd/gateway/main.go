// Command gateway serves a schema-driven REST and MCP API.
//
// A YAML config declares the data models in a compact DSL; the gateway
// parses them at startup and mounts the full CRUD, search, relation and
// verb surface for every model, plus a single MCP endpoint advertising the
// derived tool set.
//
// Optional environment variables:
//
//	GATEWAY_LISTEN       - listen address (default :8080)
//	GATEWAY_LOG_LEVEL    - debug, info, warn, error (default info)
//	GATEWAY_AUTH_MODE    - none, optional, required
//	GATEWAY_JWT_SECRET   - HMAC secret for bearer-token verification
//	GATEWAY_BASE_DOMAIN  - base domain for subdomain tenancy
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "gateway: %v\n", err)
		os.Exit(1)
	}
}
