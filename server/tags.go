package server

import (
	"context"
	"net/http"
)

type contextKey string

const requestTagsKey contextKey = "request_tags"

// CacheResult represents the outcome of a cache lookup for one request.
type CacheResult string

const (
	CacheHit    CacheResult = "hit"
	CacheMiss   CacheResult = "miss"
	CacheBypass CacheResult = "bypass"
)

// RequestTags holds mutable request metadata the proxy layer can set so
// the logging middleware records the cache outcome alongside the request.
type RequestTags struct {
	CacheResult CacheResult
}

// InjectTags creates a new request with an empty RequestTags in context.
// Called by the middleware before handlers run.
func InjectTags(r *http.Request) *http.Request {
	tags := &RequestTags{CacheResult: CacheBypass}
	return r.WithContext(context.WithValue(r.Context(), requestTagsKey, tags))
}

// GetTags retrieves the request tags from context. Returns nil outside a
// tagged request.
func GetTags(r *http.Request) *RequestTags {
	if tags, ok := r.Context().Value(requestTagsKey).(*RequestTags); ok {
		return tags
	}
	return nil
}

// SetCacheResult marks whether cached content satisfied the request.
func SetCacheResult(r *http.Request, result CacheResult) {
	if tags := GetTags(r); tags != nil {
		tags.CacheResult = result
	}
}
