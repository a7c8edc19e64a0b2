package config

import (
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"

	"newsmonitor/internal/domain"
)

// Analyzer providers.
const (
	ProviderOpenAI  = "openai"
	ProviderService = "service"
)

// Notification channels.
const (
	ChannelEmail    = "email"
	ChannelTelegram = "telegram"
	ChannelLog      = "log"
)

// Validate reports every configuration problem at once. A non-nil result
// matches domain.ErrInvalidConfig.
func (c Config) Validate() error {
	var problems []error
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Errorf(format, args...))
	}

	if len(c.Sites) == 0 {
		add("sites: at least one site is required")
	}
	for i, site := range c.Sites {
		if site.Scanner == "" {
			add("sites[%d]: scanner is required", i)
		}
		if !isHTTPURL(site.URL) {
			add("sites[%d]: url %q must be an absolute http(s) url", i, site.URL)
		}
		if site.BaseURL != "" && !isHTTPURL(site.BaseURL) {
			add("sites[%d]: baseUrl %q must be an absolute http(s) url", i, site.BaseURL)
		}
	}

	if c.Scheduler.CronExpression != "" {
		if _, err := cron.ParseStandard(c.Scheduler.CronExpression); err != nil {
			add("scheduler.cronExpression: %v", err)
		}
	} else if c.Scheduler.IntervalMinutes <= 0 {
		add("scheduler.intervalMinutes must be a positive integer, got %d", c.Scheduler.IntervalMinutes)
	}

	if c.Pipeline.CallTimeoutSeconds <= 0 {
		add("pipeline.callTimeoutSeconds must be positive")
	}
	if c.Pipeline.PacingSeconds < 0 {
		add("pipeline.pacingSeconds must not be negative")
	}

	switch c.Database.Driver {
	case "sqlite3", "postgres":
	default:
		add("database.driver %q is not supported (sqlite3, postgres)", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		add("database.dsn is required")
	}

	if strings.TrimSpace(c.Analyzer.Model) == "" {
		add("analyzer.model is required")
	}
	switch c.Analyzer.Provider {
	case ProviderOpenAI:
		if c.Analyzer.APIKey == "" {
			add("analyzer.apiKey is required for provider openai")
		}
		if !isHTTPURL(c.Analyzer.Endpoint) {
			add("analyzer.endpoint %q must be an absolute http(s) url", c.Analyzer.Endpoint)
		}
	case ProviderService:
		if !isHTTPURL(c.Analyzer.Endpoint) {
			add("analyzer.endpoint %q must be an absolute http(s) url", c.Analyzer.Endpoint)
		}
	default:
		add("analyzer.provider %q is not supported (openai, service)", c.Analyzer.Provider)
	}

	n := c.Notifications
	if err := validateChannel("notifications.channel", n.Channel, n, false); err != nil {
		problems = append(problems, err)
	}
	if err := validateChannel("notifications.alertChannel", n.AlertChannel, n, true); err != nil {
		problems = append(problems, err)
	}

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", domain.ErrInvalidConfig, errors.Join(problems...))
}

func validateChannel(field, channel string, n NotificationConfig, allowLog bool) error {
	switch channel {
	case ChannelEmail:
		var problems []error
		if n.Email.SMTPServer == "" || n.Email.SMTPPort <= 0 {
			problems = append(problems, fmt.Errorf("%s: smtp server and port are required", field))
		}
		if _, err := mail.ParseAddress(n.Email.From); err != nil {
			problems = append(problems, fmt.Errorf("%s: sender %q: %v", field, n.Email.From, err))
		}
		if _, err := mail.ParseAddressList(n.Email.To); err != nil {
			problems = append(problems, fmt.Errorf("%s: recipient %q: %v", field, n.Email.To, err))
		}
		return errors.Join(problems...)
	case ChannelTelegram:
		if n.Telegram.BotToken == "" || n.Telegram.ChatID == "" {
			return fmt.Errorf("%s: telegram bot token and chat id are required", field)
		}
		return nil
	case ChannelLog:
		if allowLog {
			return nil
		}
	}
	return fmt.Errorf("%s %q is not supported", field, channel)
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "****"
	}
	c.Analyzer.APIKey = mask(c.Analyzer.APIKey)
	c.Notifications.Email.Password = mask(c.Notifications.Email.Password)
	c.Notifications.Telegram.BotToken = mask(c.Notifications.Telegram.BotToken)
	if u, err := url.Parse(c.Database.DSN); err == nil && u.User != nil {
		u.User = url.User(u.User.Username())
		c.Database.DSN = u.String()
	}
	return c
}
