package server

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInjectAndGetTags(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/models/x", nil)
	require.Nil(t, GetTags(r))

	r = InjectTags(r)
	tags := GetTags(r)
	require.NotNil(t, tags)
	require.Equal(t, CacheBypass, tags.CacheResult)
}

func TestSetCacheResult(t *testing.T) {
	r := InjectTags(httptest.NewRequest("GET", "/api/models/x", nil))

	SetCacheResult(r, CacheHit)
	require.Equal(t, CacheHit, GetTags(r).CacheResult)

	SetCacheResult(r, CacheMiss)
	require.Equal(t, CacheMiss, GetTags(r).CacheResult)
}

func TestSetCacheResultWithoutTags(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/models/x", nil)

	// No tags injected: must be a no-op, not a panic.
	require.NotPanics(t, func() {
		SetCacheResult(r, CacheHit)
	})
}
