package ports

import (
	"context"
	"time"

	"newsmonitor/internal/domain"
)

// ArticleSource pulls the current candidate articles from the news site.
type ArticleSource interface {
	FetchCandidates(ctx context.Context) ([]domain.ArticleReference, error)
}

// ContentExtractor turns an article reference into its plain-text body.
type ContentExtractor interface {
	Extract(ctx context.Context, ref domain.ArticleReference) (string, error)
}

// GrammarAnalyzer reviews article text for grammar and spelling issues.
type GrammarAnalyzer interface {
	Analyze(ctx context.Context, text string) (domain.AnalysisVerdict, error)
}

// Notifier delivers a per-article report to the configured recipient.
type Notifier interface {
	Send(ctx context.Context, report domain.Report) error
}

// Alerter escalates conditions that need an operator.
type Alerter interface {
	Alert(ctx context.Context, subject, body string) error
}

// DedupStore is the durable record of fully processed articles.
type DedupStore interface {
	IsProcessed(ctx context.Context, articleID string) (bool, error)
	MarkProcessed(ctx context.Context, record domain.ProcessedRecord) error
}

// Job is a unit of scheduled work; a non-nil error halts the scheduler.
type Job func(ctx context.Context, trigger time.Time) error

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job Job) error
	Stop(ctx context.Context) error
}
