package email

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wneessen/go-mail"

	"newsmonitor/internal/config"
	"newsmonitor/internal/domain"
	"newsmonitor/internal/ports"
)

const checkedAtLayout = "2006-01-02 15:04:05"

type sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// Notifier delivers article reports and operator alerts over SMTP.
type Notifier struct {
	from   string
	to     []string
	prefix string
	dial   func() (sender, error)
}

var (
	_ ports.Notifier = (*Notifier)(nil)
	_ ports.Alerter  = (*Notifier)(nil)
)

// NewNotifier builds an SMTP notifier. Port 465 uses implicit TLS, anything
// else requires STARTTLS.
func NewNotifier(cfg config.EmailConfig, subjectPrefix string) *Notifier {
	n := &Notifier{
		from:   cfg.From,
		to:     splitRecipients(cfg.To),
		prefix: subjectPrefix,
	}
	n.dial = func() (sender, error) {
		opts := []mail.Option{
			mail.WithPort(cfg.SMTPPort),
			mail.WithTimeout(30 * time.Second),
		}
		if cfg.Username != "" {
			opts = append(opts,
				mail.WithSMTPAuth(mail.SMTPAuthPlain),
				mail.WithUsername(cfg.Username),
				mail.WithPassword(cfg.Password),
			)
		}
		if cfg.SMTPPort == 465 {
			opts = append(opts, mail.WithSSL())
		} else {
			opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
		}
		return mail.NewClient(cfg.SMTPServer, opts...)
	}
	return n
}

// Send emails one article report.
func (n *Notifier) Send(ctx context.Context, report domain.Report) error {
	return n.deliver(ctx, Subject(n.prefix, report), Body(report))
}

// Alert emails an operator alert.
func (n *Notifier) Alert(ctx context.Context, subject, body string) error {
	return n.deliver(ctx, fmt.Sprintf("%s - ALERT - %s", n.prefix, subject), body)
}

func (n *Notifier) deliver(ctx context.Context, subject, body string) error {
	msg := mail.NewMsg()
	if err := msg.From(n.from); err != nil {
		return fmt.Errorf("%w: set sender: %w", domain.ErrDelivery, err)
	}
	if err := msg.To(n.to...); err != nil {
		return fmt.Errorf("%w: set recipients: %w", domain.ErrDelivery, err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	client, err := n.dial()
	if err != nil {
		return fmt.Errorf("%w: smtp client: %w", domain.ErrDelivery, err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("%w: send mail: %w", domain.ErrDelivery, err)
	}
	return nil
}

// Subject renders "<prefix> - News #<index> - <label>".
func Subject(prefix string, report domain.Report) string {
	return fmt.Sprintf("%s - News #%d - %s", prefix, report.Index, report.Label())
}

// Body renders the plain-text report.
func Body(report domain.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "News #%d\n", report.Index)
	fmt.Fprintf(&b, "Title: %s\n", report.Article.Title)
	fmt.Fprintf(&b, "Article Link: %s\n", report.Article.URL)
	fmt.Fprintf(&b, "Status: %s\n", report.Label())

	if report.Verdict.Status == domain.VerdictFlagged && len(report.Verdict.Issues) > 0 {
		b.WriteString("\nMistakes Found:\n")
		for _, issue := range report.Verdict.Issues {
			fmt.Fprintf(&b, "- %s\n", issue)
		}
	}

	fmt.Fprintf(&b, "\nChecked at: %s\n", report.CheckedAt.Format(checkedAtLayout))
	return b.String()
}

func splitRecipients(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
