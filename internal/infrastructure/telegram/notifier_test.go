package telegram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsmonitor/internal/domain"
)

func TestNotifierSend(t *testing.T) {
	t.Parallel()

	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "42", r.PostForm.Get("chat_id"))
		got = r.PostForm.Get("text")
	}))
	defer server.Close()

	n := NewNotifier("TOKEN", "42").WithAPIBase(server.URL)
	err := n.Send(context.Background(), domain.Report{
		Index:   4,
		Article: domain.ArticleReference{URL: "https://news.example.com/4", Title: "Summit"},
		Verdict: domain.AnalysisVerdict{Status: domain.VerdictFlagged, Issues: []string{"teh"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "News #4 - Caution\nSummit\nhttps://news.example.com/4\n• teh", got)
}

func TestNotifierErrors(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	err := NewNotifier("TOKEN", "42").WithAPIBase(server.URL).Alert(context.Background(), "s", "b")
	assert.True(t, errors.Is(err, domain.ErrDelivery))

	err = NewNotifier("", "").Alert(context.Background(), "s", "b")
	assert.True(t, errors.Is(err, domain.ErrDelivery))
}
