// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/kbindex/internal/cache"
	"github.com/pdiddy/kbindex/pkg/types"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() types.KnowledgeBaseConfig {
	return types.KnowledgeBaseConfig{
		HTTPConfig: types.HTTPConfig{
			Timeout:   2 * time.Second,
			UserAgent: "kbindex-test",
		},
		MaxSourceBytes: 64,
	}
}

func newFetcher(t *testing.T, ts *httptest.Server) (*Fetcher, *cache.FileCache) {
	t.Helper()
	c := cache.New(t.TempDir())
	return New(ts.Client(), c, testConfig(), discardLogger()), c
}

func TestFetch_CachesSuccess(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "kbindex-test", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte("page body"))
	}))
	defer ts.Close()

	f, c := newFetcher(t, ts)
	url := ts.URL + "/doc"

	first := f.Fetch(context.Background(), url)
	second := f.Fetch(context.Background(), url)

	assert.Equal(t, "page body", first)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "second fetch must be served from cache")

	cached, ok, err := c.Get(url)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "page body", cached)
}

func TestFetch_CacheHitSkipsNetwork(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer ts.Close()

	f, c := newFetcher(t, ts)
	url := ts.URL + "/doc"
	require.NoError(t, c.Put(url, "from cache"))

	assert.Equal(t, "from cache", f.Fetch(context.Background(), url))
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestFetch_FailuresAreNotCached(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "non-2xx status",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			},
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
		},
		{
			name: "oversized body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(strings.Repeat("x", 65)))
			},
		},
		{
			name: "whitespace body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte("  \n\t "))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				tt.handler(w, r)
			}))
			defer ts.Close()

			f, c := newFetcher(t, ts)
			url := ts.URL + "/doc"

			assert.Empty(t, f.Fetch(context.Background(), url))
			assert.Empty(t, f.Fetch(context.Background(), url))
			assert.Equal(t, int32(2), atomic.LoadInt32(&calls), "failures must be retried on every call")

			_, ok, err := c.Get(url)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestFetch_BodyAtCeilingIsAccepted(t *testing.T) {
	body := strings.Repeat("y", 64)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	defer ts.Close()

	f, _ := newFetcher(t, ts)
	assert.Equal(t, body, f.Fetch(context.Background(), ts.URL))
}

func TestFetch_Timeout(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer ts.Close()
	defer close(release)

	cfg := testConfig()
	cfg.Timeout = 50 * time.Millisecond
	f := New(ts.Client(), cache.New(t.TempDir()), cfg, discardLogger())

	assert.Empty(t, f.Fetch(context.Background(), ts.URL))
}

func TestFetch_UnreachableHost(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := ts.URL
	ts.Close()

	f := New(http.DefaultClient, cache.New(t.TempDir()), testConfig(), discardLogger())
	assert.Empty(t, f.Fetch(context.Background(), url))
}

func TestFetch_InvalidUTF8IsReplaced(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte{'o', 'k', 0xff, '!'})
	}))
	defer ts.Close()

	f, _ := newFetcher(t, ts)
	got := f.Fetch(context.Background(), ts.URL)

	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, "ok�!", got)
}

func TestDecodeLossy(t *testing.T) {
	assert.Equal(t, "héllo", DecodeLossy([]byte("héllo")))
	assert.Equal(t, "a�b", DecodeLossy([]byte{'a', 0xc3, 'b'}))
	assert.Equal(t, "", DecodeLossy(nil))
}
