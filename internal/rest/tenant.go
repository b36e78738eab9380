package rest

import (
	"net"
	"strings"
)

// Subdomains that never name a tenant.
var systemSubdomains = map[string]bool{
	"api": true, "www": true, "platform": true, "dashboard": true,
	"docs": true, "agents": true, "db": true, "ch": true, "code": true,
	"crm": true, "build": true, "launch": true, "grow": true, "scale": true,
}

// ExtractTenantFromPath strips a leading "/~slug" segment and returns the
// tenant with the remaining path. A bare "/~slug" normalises to "/". Paths
// without the sigil come back unchanged with an empty tenant.
func ExtractTenantFromPath(path string) (tenant, rest string) {
	if !strings.HasPrefix(path, "/~") {
		return "", path
	}
	trimmed := path[2:]
	slash := strings.IndexByte(trimmed, '/')
	if slash < 0 {
		return trimmed, "/"
	}
	tenant = trimmed[:slash]
	rest = trimmed[slash:]
	if tenant == "" {
		return "", path
	}
	return tenant, rest
}

// ExtractTenantFromHost resolves "{slug}.{baseDomain}" to slug unless the
// slug is a system subdomain. Ports are ignored; matching is
// case-insensitive. An empty baseDomain disables subdomain tenancy.
func ExtractTenantFromHost(host, baseDomain string) string {
	if baseDomain == "" {
		return ""
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(host)
	baseDomain = strings.ToLower(baseDomain)

	suffix := "." + baseDomain
	if !strings.HasSuffix(host, suffix) {
		return ""
	}
	slug := strings.TrimSuffix(host, suffix)
	if slug == "" || strings.Contains(slug, ".") || systemSubdomains[slug] {
		return ""
	}
	return slug
}
