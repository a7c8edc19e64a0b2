package web

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDecodesCharset(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "monitor-test", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html; charset=windows-1252")
		// "café" in windows-1252
		_, _ = w.Write([]byte{'c', 'a', 'f', 0xE9})
	}))
	defer server.Close()

	c := NewClient(Options{UserAgent: "monitor-test", HTTPClient: server.Client()})
	body, err := c.Get(context.Background(), server.URL+"/page")
	require.NoError(t, err)
	assert.Equal(t, "café", string(body))
}

func TestGetNonOKStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer server.Close()

	_, err := NewClient(Options{HTTPClient: server.Client()}).Get(context.Background(), server.URL)
	assert.ErrorContains(t, err, "410")
}

func TestGetRespectsRobots(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			_, _ = w.Write([]byte("User-agent: *\nDisallow: /private/\n"))
			return
		}
		_, _ = w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer server.Close()

	c := NewClient(Options{UserAgent: "monitor-test", RespectRobots: true, HTTPClient: server.Client()})

	_, err := c.Get(context.Background(), server.URL+"/private/story")
	assert.True(t, errors.Is(err, ErrDisallowed))

	body, err := c.Get(context.Background(), server.URL+"/news/1")
	require.NoError(t, err)
	assert.Contains(t, string(body), "ok")
}
