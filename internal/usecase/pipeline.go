package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"newsmonitor/internal/domain"
	"newsmonitor/internal/ports"
)

const defaultCallTimeout = 60 * time.Second

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Source    ports.ArticleSource
	Store     ports.DedupStore
	Extractor ports.ContentExtractor
	Analyzer  ports.GrammarAnalyzer
	Notifier  ports.Notifier
	// Pacer spaces out articles that reach extraction; nil disables pacing.
	Pacer       *rate.Limiter
	CallTimeout time.Duration
	Clock       func() time.Time
	Logger      *slog.Logger
}

// Pipeline implements the fetch, dedup, extract, analyze, notify, commit workflow.
type Pipeline struct {
	source      ports.ArticleSource
	store       ports.DedupStore
	extractor   ports.ContentExtractor
	analyzer    ports.GrammarAnalyzer
	notifier    ports.Notifier
	pacer       *rate.Limiter
	callTimeout time.Duration
	now         func() time.Time
	logger      *slog.Logger
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	p := &Pipeline{
		source:      deps.Source,
		store:       deps.Store,
		extractor:   deps.Extractor,
		analyzer:    deps.Analyzer,
		notifier:    deps.Notifier,
		pacer:       deps.Pacer,
		callTimeout: deps.CallTimeout,
		now:         deps.Clock,
		logger:      deps.Logger,
	}
	if p.callTimeout <= 0 {
		p.callTimeout = defaultCallTimeout
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.logger == nil {
		p.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return p
}

// RunOnce performs one pass over the current candidates. Per-article failures
// are recorded in the report and never returned; the error is reserved for an
// unavailable source and for store failures.
func (p *Pipeline) RunOnce(ctx context.Context) (domain.RunReport, error) {
	report := domain.RunReport{RunID: uuid.NewString(), StartedAt: p.now()}
	logger := p.logger.With("run_id", report.RunID)

	refs, err := p.source.FetchCandidates(ctx)
	if err != nil {
		report.FinishedAt = p.now()
		if !errors.Is(err, domain.ErrSourceUnavailable) {
			err = fmt.Errorf("%w: %w", domain.ErrSourceUnavailable, err)
		}
		return report, err
	}
	report.Fetched = len(refs)
	logger.Info("run started", "candidates", len(refs))

	for i, ref := range refs {
		if err := ctx.Err(); err != nil {
			report.FinishedAt = p.now()
			return report, fmt.Errorf("run interrupted: %w", err)
		}

		processed, err := p.store.IsProcessed(ctx, ref.ID)
		if err != nil {
			report.FinishedAt = p.now()
			return report, storeFatal("lookup "+ref.ID, err)
		}
		if processed {
			report.SkippedDuplicate++
			continue
		}

		if p.pacer != nil {
			if err := p.pacer.Wait(ctx); err != nil {
				report.FinishedAt = p.now()
				return report, fmt.Errorf("run interrupted: %w", err)
			}
		}

		verdict, stage, err := p.process(ctx, i+1, ref)
		if err != nil {
			report.Failed++
			report.Failures = append(report.Failures, domain.ArticleFailure{
				ArticleID: ref.ID,
				URL:       ref.URL,
				Stage:     stage,
				Error:     err.Error(),
			})
			logger.Warn("article failed", "article_id", ref.ID, "stage", stage, "error", err)
			continue
		}

		err = p.store.MarkProcessed(ctx, domain.ProcessedRecord{
			ArticleID:   ref.ID,
			URL:         ref.URL,
			Title:       ref.Title,
			ProcessedAt: p.now(),
			Summary:     verdict.Summary(),
		})
		switch {
		case err == nil:
		case errors.Is(err, domain.ErrDuplicateRecord):
			logger.Debug("article already recorded", "article_id", ref.ID)
		default:
			report.FinishedAt = p.now()
			return report, storeFatal("mark "+ref.ID, err)
		}

		report.ProcessedOK++
		logger.Info("article processed", "article_id", ref.ID, "index", i+1, "status", verdict.Label(), "issues", len(verdict.Issues))
	}

	report.FinishedAt = p.now()
	logger.Info("run finished",
		"fetched", report.Fetched,
		"skipped", report.SkippedDuplicate,
		"processed", report.ProcessedOK,
		"failed", report.Failed,
	)
	return report, nil
}

func (p *Pipeline) process(ctx context.Context, index int, ref domain.ArticleReference) (domain.AnalysisVerdict, domain.Stage, error) {
	var text string
	err := p.call(ctx, func(callCtx context.Context) error {
		var err error
		text, err = p.extractor.Extract(callCtx, ref)
		return err
	})
	if err == nil && strings.TrimSpace(text) == "" {
		err = fmt.Errorf("%w: empty article text", domain.ErrExtraction)
	}
	if err != nil {
		return domain.AnalysisVerdict{}, domain.StageExtract, err
	}

	var verdict domain.AnalysisVerdict
	err = p.call(ctx, func(callCtx context.Context) error {
		var err error
		verdict, err = p.analyzer.Analyze(callCtx, text)
		return err
	})
	if err == nil && verdict.Status != domain.VerdictClean && verdict.Status != domain.VerdictFlagged {
		err = fmt.Errorf("%w: verdict status %q", domain.ErrAnalysisService, verdict.Status)
	}
	if err != nil {
		return domain.AnalysisVerdict{}, domain.StageAnalyze, err
	}

	err = p.call(ctx, func(callCtx context.Context) error {
		return p.notifier.Send(callCtx, domain.Report{
			Index:     index,
			Article:   ref,
			Verdict:   verdict,
			CheckedAt: p.now(),
		})
	})
	if err != nil {
		return domain.AnalysisVerdict{}, domain.StageNotify, err
	}

	return verdict, "", nil
}

func (p *Pipeline) call(ctx context.Context, fn func(context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()
	return fn(callCtx)
}

func storeFatal(op string, err error) error {
	if errors.Is(err, domain.ErrStoreFatal) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrStoreFatal, op, err)
}
