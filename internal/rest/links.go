package rest

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// selfURL reconstructs the full request URL from the forwarded-aware scheme
// and host.
func selfURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	u := url.URL{Scheme: scheme, Host: r.Host, Path: r.URL.Path, RawQuery: r.URL.RawQuery}
	return u.String()
}

func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host
}

// paginationLinks builds self/home/first/prev/next/last for a list response.
// Each link carries the request's other query params verbatim with only
// offset replaced; prev and next are omitted when not applicable.
func paginationLinks(r *http.Request, total, limit, offset int) map[string]string {
	links := map[string]string{
		"self": selfURL(r),
		"home": baseURL(r) + "/",
	}
	if limit <= 0 {
		return links
	}

	pageURL := func(off int) string {
		q := r.URL.Query()
		q.Set("limit", strconv.Itoa(limit))
		q.Set("offset", strconv.Itoa(off))
		u := url.URL{Path: r.URL.Path, RawQuery: q.Encode()}
		return baseURL(r) + u.String()
	}

	links["first"] = pageURL(0)
	if offset > 0 {
		prev := offset - limit
		if prev < 0 {
			prev = 0
		}
		links["prev"] = pageURL(prev)
	}
	if offset+limit < total {
		links["next"] = pageURL(offset + limit)
	}
	last := 0
	if total > 0 {
		last = ((total - 1) / limit) * limit
	}
	links["last"] = pageURL(last)
	return links
}

// buildErrorLinks derives actionable links per error code. Pure: everything
// it needs arrives as arguments.
func buildErrorLinks(code, home, collection string) map[string]string {
	links := map[string]string{"home": home}
	switch code {
	case CodeNotFound:
		if collection != "" {
			links["collection"] = collection
			links["search"] = collection + "/search"
			links["create"] = collection
		}
	case CodeUnauthorized, CodeAuthRequired, CodeInvalidToken:
		links["login"] = home + "login"
		links["register"] = home + "register"
	case CodeConflict:
		if collection != "" {
			links["current"] = collection
		}
	}
	return links
}

// collectionURL is the absolute URL of a model's collection.
func collectionURL(r *http.Request, basePath, plural string) string {
	if plural == "" {
		return ""
	}
	return fmt.Sprintf("%s%s/%s", baseURL(r), basePath, plural)
}
