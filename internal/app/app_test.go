package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsmonitor/internal/config"
	"newsmonitor/internal/domain"
)

const listingPage = `<html><body>
  <div class="news-item"><a href="/news/101">Council approves new budget framework</a></div>
  <div class="news-item"><a href="/news/102">Minister receives visiting ambassador</a></div>
</body></html>`

const storyPage = `<html><body><div class="story-content">
  <p>The council approved the new budget framework on Sunday after a lengthy session in the capital.</p>
  <p>Officials said the plan focuses on infrastructure, education and health care spending next year.</p>
</div></body></html>`

type telegramSink struct {
	mu       sync.Mutex
	messages []string
}

func (s *telegramSink) handler(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	s.mu.Lock()
	s.messages = append(s.messages, r.PostForm.Get("text"))
	s.mu.Unlock()
}

func (s *telegramSink) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.messages...)
}

func testConfig(t *testing.T, siteURL, analyzerURL, telegramURL string) config.Config {
	t.Helper()
	return config.Config{
		Logging:   config.LoggingConfig{Level: "error"},
		Database:  config.DatabaseConfig{Driver: "sqlite3", DSN: filepath.Join(t.TempDir(), "monitor.db")},
		Scheduler: config.SchedulerConfig{IntervalMinutes: 20},
		Pipeline:  config.PipelineConfig{CallTimeoutSeconds: 5},
		Extraction: config.ExtractionConfig{
			UserAgent:      "newsmonitor-test",
			MaxChars:       4000,
			TimeoutSeconds: 5,
		},
		Analyzer: config.AnalyzerConfig{
			Provider: config.ProviderService,
			Endpoint: analyzerURL,
			Model:    "grammar-v1",
		},
		Notifications: config.NotificationConfig{
			Channel:       config.ChannelTelegram,
			AlertChannel:  config.ChannelLog,
			SubjectPrefix: "Test",
			Telegram:      config.TelegramConfig{BotToken: "T", ChatID: "1", APIBase: telegramURL},
		},
		Sites: []config.SiteConfig{{Name: "test", Scanner: "html", URL: siteURL + "/latest", BaseURL: siteURL}},
	}
}

func TestApplicationRunOnceEndToEnd(t *testing.T) {
	t.Parallel()

	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if r.URL.Path == "/latest" {
			_, _ = w.Write([]byte(listingPage))
			return
		}
		_, _ = w.Write([]byte(storyPage))
	}))
	defer site.Close()

	analyzer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "flagged", "issues": []string{"teh -> the"}})
	}))
	defer analyzer.Close()

	sink := &telegramSink{}
	tg := httptest.NewServer(http.HandlerFunc(sink.handler))
	defer tg.Close()

	application, err := New(context.Background(), testConfig(t, site.URL, analyzer.URL, tg.URL), nil)
	require.NoError(t, err)
	defer application.Close()

	report, err := application.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Fetched)
	assert.Equal(t, 2, report.ProcessedOK)

	messages := sink.snapshot()
	require.Len(t, messages, 2)
	assert.True(t, strings.HasPrefix(messages[0], "News #1 - Caution"))
	assert.Contains(t, messages[1], site.URL+"/news/102")

	again, err := application.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, again.SkippedDuplicate)
	assert.Len(t, sink.snapshot(), 2)

	stats, recent, err := application.Status(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Len(t, recent, 2)
}

func TestApplicationSourceUnavailable(t *testing.T) {
	t.Parallel()

	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer site.Close()

	application, err := New(context.Background(), testConfig(t, site.URL, site.URL, site.URL), nil)
	require.NoError(t, err)
	defer application.Close()

	_, err = application.RunOnce(context.Background())
	assert.True(t, errors.Is(err, domain.ErrSourceUnavailable))
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, "https://news.example.com", "https://analyzer.example.com", "https://api.example.com")
	cfg.Scheduler.IntervalMinutes = 0

	_, err := New(context.Background(), cfg, nil)
	assert.True(t, errors.Is(err, domain.ErrInvalidConfig))
}
