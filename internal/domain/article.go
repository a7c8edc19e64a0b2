package domain

import (
	"fmt"
	"time"
)

// ArticleReference identifies a candidate article discovered on the listing page.
type ArticleReference struct {
	ID    string
	URL   string
	Title string
}

// VerdictStatus classifies the analyzer outcome.
type VerdictStatus string

const (
	VerdictClean          VerdictStatus = "clean"
	VerdictFlagged        VerdictStatus = "flagged"
	VerdictAnalysisFailed VerdictStatus = "analysis_failed"
)

// AnalysisVerdict is produced by the grammar analyzer for one article body.
type AnalysisVerdict struct {
	Status VerdictStatus
	Issues []string
}

// Summary folds the verdict into the audit fields kept with a processed record.
func (v AnalysisVerdict) Summary() VerdictSummary {
	return VerdictSummary{Status: v.Status, IssueCount: len(v.Issues)}
}

// Label is the status word used in notifications.
func (v AnalysisVerdict) Label() string {
	switch v.Status {
	case VerdictClean:
		return "OK"
	case VerdictFlagged:
		return "Caution"
	default:
		return "Error"
	}
}

// VerdictSummary is stored for audit only and never read back by the pipeline.
type VerdictSummary struct {
	Status     VerdictStatus
	IssueCount int
}

func (s VerdictSummary) String() string {
	if s.Status == VerdictFlagged {
		return fmt.Sprintf("%s:%d", s.Status, s.IssueCount)
	}
	return string(s.Status)
}

// ProcessedRecord is the persisted fact that an article went through the whole pipeline.
type ProcessedRecord struct {
	ArticleID   string
	URL         string
	Title       string
	ProcessedAt time.Time
	Summary     VerdictSummary
}

// Report is what the notifier delivers for a single article.
type Report struct {
	Index     int
	Article   ArticleReference
	Verdict   AnalysisVerdict
	CheckedAt time.Time
}

// Label mirrors the verdict label.
func (r Report) Label() string {
	return r.Verdict.Label()
}

// Stage names the pipeline step an article failed in.
type Stage string

const (
	StageExtract Stage = "extract"
	StageAnalyze Stage = "analyze"
	StageNotify  Stage = "notify"
)

// ArticleFailure describes an isolated per-article failure inside a run.
type ArticleFailure struct {
	ArticleID string
	URL       string
	Stage     Stage
	Error     string
}

// RunReport tallies one pipeline execution.
type RunReport struct {
	RunID            string
	StartedAt        time.Time
	FinishedAt       time.Time
	Fetched          int
	SkippedDuplicate int
	ProcessedOK      int
	Failed           int
	Failures         []ArticleFailure
}

// Duration reports how long the run took.
func (r RunReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
