package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone = "UTC"
	configPathEnv   = "NEWS_MONITOR_CONFIG"

	targetURLEnv       = "TARGET_URL"
	databasePathEnv    = "DATABASE_PATH"
	databaseDriverEnv  = "DATABASE_DRIVER"
	openAIKeyEnv       = "OPENAI_API_KEY"
	openAIModelEnv     = "OPENAI_MODEL"
	intervalEnv        = "CHECK_INTERVAL_MINUTES"
	smtpServerEnv      = "SMTP_SERVER"
	smtpPortEnv        = "SMTP_PORT"
	emailUsernameEnv   = "EMAIL_USERNAME"
	emailPasswordEnv   = "EMAIL_PASSWORD"
	emailFromEnv       = "EMAIL_FROM"
	emailToEnv         = "EMAIL_TO"
	telegramTokenEnv   = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv  = "TELEGRAM_CHAT_ID"
	logLevelEnv        = "LOG_LEVEL"
	httpPortEnv        = "PORT"
	defaultPrompt      = "Check grammar and spelling mistakes of the news item. If there are no mistakes, reply: OK. If there are any mistakes, reply: Caution, and list all found mistakes."
	defaultSubjectLine = "News Grammar Check"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Database      DatabaseConfig     `yaml:"database"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Pipeline      PipelineConfig     `yaml:"pipeline"`
	Extraction    ExtractionConfig   `yaml:"extraction"`
	Analyzer      AnalyzerConfig     `yaml:"analyzer"`
	Notifications NotificationConfig `yaml:"notifications"`
	HTTP          HTTPConfig         `yaml:"http"`
	Sites         []SiteConfig       `yaml:"sites"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// DatabaseConfig describes the dedup store backend.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// SchedulerConfig defines when the pipeline should run.
type SchedulerConfig struct {
	IntervalMinutes int            `yaml:"intervalMinutes"`
	CronExpression  string         `yaml:"cronExpression"`
	Timezone        string         `yaml:"timezone"`
	location        *time.Location `yaml:"-"`
}

// Interval returns the poll interval as a duration.
func (s SchedulerConfig) Interval() time.Duration {
	return time.Duration(s.IntervalMinutes) * time.Minute
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// PipelineConfig bounds per-article work.
type PipelineConfig struct {
	CallTimeoutSeconds int `yaml:"callTimeoutSeconds"`
	PacingSeconds      int `yaml:"pacingSeconds"`
}

// CallTimeout bounds each external call made for an article.
func (p PipelineConfig) CallTimeout() time.Duration {
	return time.Duration(p.CallTimeoutSeconds) * time.Second
}

// Pacing is the minimum spacing between analyzed articles.
func (p PipelineConfig) Pacing() time.Duration {
	return time.Duration(p.PacingSeconds) * time.Second
}

// ExtractionConfig tunes page fetching and text extraction.
type ExtractionConfig struct {
	UserAgent      string `yaml:"userAgent"`
	MaxChars       int    `yaml:"maxChars"`
	TimeoutSeconds int    `yaml:"timeoutSeconds"`
	RespectRobots  bool   `yaml:"respectRobots"`
}

// Timeout is the HTTP client timeout for page fetches.
func (e ExtractionConfig) Timeout() time.Duration {
	return time.Duration(e.TimeoutSeconds) * time.Second
}

// AnalyzerConfig defines how to contact the grammar analysis service.
type AnalyzerConfig struct {
	Provider string `yaml:"provider"`
	Endpoint string `yaml:"endpoint"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"apiKey"`
	Prompt   string `yaml:"prompt"`
}

// NotificationConfig encapsulates outbound channels.
type NotificationConfig struct {
	Channel       string         `yaml:"channel"`
	AlertChannel  string         `yaml:"alertChannel"`
	SubjectPrefix string         `yaml:"subjectPrefix"`
	Email         EmailConfig    `yaml:"email"`
	Telegram      TelegramConfig `yaml:"telegram"`
}

// EmailConfig carries SMTP settings.
type EmailConfig struct {
	SMTPServer string `yaml:"smtpServer"`
	SMTPPort   int    `yaml:"smtpPort"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	From       string `yaml:"from"`
	To         string `yaml:"to"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
	APIBase  string `yaml:"apiBase"`
}

// HTTPConfig controls the health/status server.
type HTTPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// SiteConfig describes the listing page to monitor and its scanner strategy.
type SiteConfig struct {
	Name    string            `yaml:"name"`
	Scanner string            `yaml:"scanner"`
	URL     string            `yaml:"url"`
	BaseURL string            `yaml:"baseUrl"`
	Options map[string]string `yaml:"options"`
}

// Load reads YAML configuration (if present), .env files and environment overrides.
// An explicit path that cannot be read or parsed is an error.
func Load(path string) (Config, error) {
	if err := loadEnvFiles(); err != nil {
		return Config{}, err
	}

	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		var fileCfg Config
		if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
		cfg = mergeConfig(cfg, fileCfg)
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return Config{}, err
	}
	if err := cfg.bindTimezone(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func loadEnvFiles() error {
	for _, name := range []string{".env.local", ".env"} {
		if err := godotenv.Load(name); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load %s: %w", name, err)
		}
	}
	return nil
}

func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv(targetURLEnv); v != "" {
		if len(c.Sites) == 0 {
			c.Sites = defaultConfig().Sites
		}
		c.Sites[0].URL = v
	}

	if v := os.Getenv(databaseDriverEnv); v != "" {
		c.Database.Driver = v
	}
	if v := os.Getenv(databasePathEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(openAIKeyEnv); v != "" {
		c.Analyzer.APIKey = v
	}
	if v := os.Getenv(openAIModelEnv); v != "" {
		c.Analyzer.Model = v
	}

	if v := os.Getenv(intervalEnv); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", intervalEnv, err)
		}
		c.Scheduler.IntervalMinutes = n
	}

	if v := os.Getenv(smtpServerEnv); v != "" {
		c.Notifications.Email.SMTPServer = v
	}
	if v := os.Getenv(smtpPortEnv); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", smtpPortEnv, err)
		}
		c.Notifications.Email.SMTPPort = n
	}
	if v := os.Getenv(emailUsernameEnv); v != "" {
		c.Notifications.Email.Username = v
	}
	if v := os.Getenv(emailPasswordEnv); v != "" {
		c.Notifications.Email.Password = v
	}
	if v := os.Getenv(emailFromEnv); v != "" {
		c.Notifications.Email.From = v
	}
	if v := os.Getenv(emailToEnv); v != "" {
		c.Notifications.Email.To = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}
	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(httpPortEnv); v != "" {
		c.HTTP.Addr = ":" + v
	}

	return nil
}

func (c *Config) bindTimezone() error {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return fmt.Errorf("scheduler timezone %s: %w", tz, err)
	}
	c.Scheduler.location = loc
	return nil
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}
	if override.Logging.File != "" {
		base.Logging.File = override.Logging.File
	}

	if override.Database.Driver != "" {
		base.Database.Driver = override.Database.Driver
	}
	if override.Database.DSN != "" {
		base.Database.DSN = override.Database.DSN
	}

	if override.Scheduler.IntervalMinutes != 0 {
		base.Scheduler.IntervalMinutes = override.Scheduler.IntervalMinutes
	}
	if override.Scheduler.CronExpression != "" {
		base.Scheduler.CronExpression = override.Scheduler.CronExpression
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}

	if override.Pipeline.CallTimeoutSeconds != 0 {
		base.Pipeline.CallTimeoutSeconds = override.Pipeline.CallTimeoutSeconds
	}
	if override.Pipeline.PacingSeconds != 0 {
		base.Pipeline.PacingSeconds = override.Pipeline.PacingSeconds
	}

	if override.Extraction.UserAgent != "" {
		base.Extraction.UserAgent = override.Extraction.UserAgent
	}
	if override.Extraction.MaxChars != 0 {
		base.Extraction.MaxChars = override.Extraction.MaxChars
	}
	if override.Extraction.TimeoutSeconds != 0 {
		base.Extraction.TimeoutSeconds = override.Extraction.TimeoutSeconds
	}
	if override.Extraction.RespectRobots {
		base.Extraction.RespectRobots = true
	}

	if override.Analyzer.Provider != "" {
		base.Analyzer.Provider = override.Analyzer.Provider
	}
	if override.Analyzer.Endpoint != "" {
		base.Analyzer.Endpoint = override.Analyzer.Endpoint
	}
	if override.Analyzer.Model != "" {
		base.Analyzer.Model = override.Analyzer.Model
	}
	if override.Analyzer.APIKey != "" {
		base.Analyzer.APIKey = override.Analyzer.APIKey
	}
	if override.Analyzer.Prompt != "" {
		base.Analyzer.Prompt = override.Analyzer.Prompt
	}

	if override.Notifications.Channel != "" {
		base.Notifications.Channel = override.Notifications.Channel
	}
	if override.Notifications.AlertChannel != "" {
		base.Notifications.AlertChannel = override.Notifications.AlertChannel
	}
	if override.Notifications.SubjectPrefix != "" {
		base.Notifications.SubjectPrefix = override.Notifications.SubjectPrefix
	}
	if override.Notifications.Email.SMTPServer != "" {
		base.Notifications.Email.SMTPServer = override.Notifications.Email.SMTPServer
	}
	if override.Notifications.Email.SMTPPort != 0 {
		base.Notifications.Email.SMTPPort = override.Notifications.Email.SMTPPort
	}
	if override.Notifications.Email.Username != "" {
		base.Notifications.Email.Username = override.Notifications.Email.Username
	}
	if override.Notifications.Email.Password != "" {
		base.Notifications.Email.Password = override.Notifications.Email.Password
	}
	if override.Notifications.Email.From != "" {
		base.Notifications.Email.From = override.Notifications.Email.From
	}
	if override.Notifications.Email.To != "" {
		base.Notifications.Email.To = override.Notifications.Email.To
	}
	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}
	if override.Notifications.Telegram.APIBase != "" {
		base.Notifications.Telegram.APIBase = override.Notifications.Telegram.APIBase
	}

	if override.HTTP.Enabled {
		base.HTTP.Enabled = true
	}
	if override.HTTP.Addr != "" {
		base.HTTP.Addr = override.HTTP.Addr
	}

	if len(override.Sites) > 0 {
		base.Sites = override.Sites
	}

	return base
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Logging:   LoggingConfig{Level: "info", Format: "text"},
		Database:  DatabaseConfig{Driver: "sqlite3", DSN: "news_monitor.db"},
		Scheduler: SchedulerConfig{IntervalMinutes: 20, Timezone: defaultTimezone, location: tz},
		Pipeline:  PipelineConfig{CallTimeoutSeconds: 60, PacingSeconds: 2},
		Extraction: ExtractionConfig{
			UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			MaxChars:       4000,
			TimeoutSeconds: 30,
		},
		Analyzer: AnalyzerConfig{
			Provider: ProviderOpenAI,
			Endpoint: "https://api.openai.com/v1/chat/completions",
			Model:    "gpt-4o-mini",
			Prompt:   defaultPrompt,
		},
		Notifications: NotificationConfig{
			Channel:       ChannelEmail,
			AlertChannel:  ChannelEmail,
			SubjectPrefix: defaultSubjectLine,
			Email:         EmailConfig{SMTPServer: "smtp.gmail.com", SMTPPort: 587},
		},
		HTTP: HTTPConfig{Enabled: true, Addr: ":8080"},
		Sites: []SiteConfig{
			{
				Name:    "spa",
				Scanner: "html",
				URL:     "https://www.spa.gov.sa/en/news/latest-news",
				BaseURL: "https://www.spa.gov.sa",
			},
		},
	}
}
