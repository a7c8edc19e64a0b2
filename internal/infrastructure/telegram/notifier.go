package telegram

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"newsmonitor/internal/domain"
	"newsmonitor/internal/ports"
)

const defaultAPIBase = "https://api.telegram.org"

// Notifier sends reports to a Telegram chat via bot API.
type Notifier struct {
	botToken string
	chatID   string
	apiBase  string
	client   *http.Client
}

var (
	_ ports.Notifier = (*Notifier)(nil)
	_ ports.Alerter  = (*Notifier)(nil)
)

// NewNotifier registers bot token and chat identifier.
func NewNotifier(botToken, chatID string) *Notifier {
	return &Notifier{
		botToken: botToken,
		chatID:   chatID,
		apiBase:  defaultAPIBase,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// WithAPIBase points the notifier at another Bot API host.
func (n *Notifier) WithAPIBase(base string) *Notifier {
	n.apiBase = strings.TrimRight(base, "/")
	return n
}

// Send posts a per-article report.
func (n *Notifier) Send(ctx context.Context, report domain.Report) error {
	return n.post(ctx, FormatReport(report))
}

// Alert posts an operator alert.
func (n *Notifier) Alert(ctx context.Context, subject, body string) error {
	return n.post(ctx, fmt.Sprintf("ALERT: %s\n\n%s", subject, body))
}

// FormatReport renders a compact chat message.
func FormatReport(report domain.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "News #%d - %s\n", report.Index, report.Label())
	fmt.Fprintf(&b, "%s\n%s", report.Article.Title, report.Article.URL)
	if report.Verdict.Status == domain.VerdictFlagged {
		for _, issue := range report.Verdict.Issues {
			fmt.Fprintf(&b, "\n• %s", issue)
		}
	}
	return b.String()
}

func (n *Notifier) post(ctx context.Context, text string) error {
	if n.botToken == "" || n.chatID == "" || n.client == nil {
		return fmt.Errorf("%w: telegram notifier misconfigured", domain.ErrDelivery)
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.apiBase, n.botToken)
	form := url.Values{}
	form.Set("chat_id", n.chatID)
	form.Set("text", text)
	form.Set("disable_web_page_preview", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%w: new request: %w", domain.ErrDelivery, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: do request: %w", domain.ErrDelivery, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: telegram error: %s", domain.ErrDelivery, resp.Status)
	}

	return nil
}
