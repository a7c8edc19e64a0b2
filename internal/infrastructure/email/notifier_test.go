package email

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"

	"newsmonitor/internal/config"
	"newsmonitor/internal/domain"
)

type recordingSender struct {
	sent []*mail.Msg
	err  error
}

func (r *recordingSender) DialAndSendWithContext(_ context.Context, messages ...*mail.Msg) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, messages...)
	return nil
}

func testNotifier(s *recordingSender) *Notifier {
	n := NewNotifier(config.EmailConfig{
		SMTPServer: "smtp.example.com",
		SMTPPort:   587,
		From:       "monitor@example.com",
		To:         "editor@example.com, desk@example.com",
	}, "News Grammar Check")
	n.dial = func() (sender, error) { return s, nil }
	return n
}

var checkedAt = time.Date(2025, 3, 9, 14, 5, 0, 0, time.UTC)

func TestSubjectAndBodyClean(t *testing.T) {
	t.Parallel()

	report := domain.Report{
		Index:     1,
		Article:   domain.ArticleReference{ID: "a", URL: "https://news.example.com/a", Title: "Budget approved"},
		Verdict:   domain.AnalysisVerdict{Status: domain.VerdictClean},
		CheckedAt: checkedAt,
	}

	assert.Equal(t, "News Grammar Check - News #1 - OK", Subject("News Grammar Check", report))

	body := Body(report)
	assert.Contains(t, body, "Title: Budget approved")
	assert.Contains(t, body, "Article Link: https://news.example.com/a")
	assert.Contains(t, body, "Status: OK")
	assert.NotContains(t, body, "Mistakes Found")
	assert.Contains(t, body, "Checked at: 2025-03-09 14:05:00")
}

func TestBodyFlaggedListsIssues(t *testing.T) {
	t.Parallel()

	report := domain.Report{
		Index:     3,
		Article:   domain.ArticleReference{URL: "https://news.example.com/c", Title: "Talks"},
		Verdict:   domain.AnalysisVerdict{Status: domain.VerdictFlagged, Issues: []string{"teh -> the", "missing comma"}},
		CheckedAt: checkedAt,
	}

	assert.Equal(t, "P - News #3 - Caution", Subject("P", report))
	body := Body(report)
	assert.Contains(t, body, "Status: Caution")
	assert.Contains(t, body, "Mistakes Found:\n- teh -> the\n- missing comma\n")
}

func TestNotifierSend(t *testing.T) {
	t.Parallel()

	s := &recordingSender{}
	n := testNotifier(s)

	err := n.Send(context.Background(), domain.Report{
		Index:     2,
		Article:   domain.ArticleReference{URL: "https://news.example.com/b", Title: "Weather"},
		Verdict:   domain.AnalysisVerdict{Status: domain.VerdictClean},
		CheckedAt: checkedAt,
	})
	require.NoError(t, err)
	require.Len(t, s.sent, 1)
	assert.Equal(t, []string{"News Grammar Check - News #2 - OK"}, s.sent[0].GetGenHeader(mail.HeaderSubject))
	assert.Len(t, s.sent[0].GetToString(), 2)
}

func TestNotifierDeliveryFailure(t *testing.T) {
	t.Parallel()

	n := testNotifier(&recordingSender{err: errors.New("connection refused")})
	err := n.Alert(context.Background(), "store failure", "disk full")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrDelivery))
}

func TestNotifierInvalidSender(t *testing.T) {
	t.Parallel()

	n := testNotifier(&recordingSender{})
	n.from = "not an address"
	err := n.Send(context.Background(), domain.Report{Index: 1})
	assert.True(t, errors.Is(err, domain.ErrDelivery))
}
