package usecase

import (
	"context"
	"errors"
	"sync"

	"newsmonitor/internal/domain"
)

type fakeSource struct {
	refs []domain.ArticleReference
	err  error
}

func (f *fakeSource) FetchCandidates(context.Context) ([]domain.ArticleReference, error) {
	return f.refs, f.err
}

type memStore struct {
	mu        sync.Mutex
	records   map[string]domain.ProcessedRecord
	lookupErr error
	markErr   error
	marks     int
}

func newMemStore() *memStore {
	return &memStore{records: map[string]domain.ProcessedRecord{}}
}

func (s *memStore) IsProcessed(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lookupErr != nil {
		return false, s.lookupErr
	}
	_, ok := s.records[id]
	return ok, nil
}

func (s *memStore) MarkProcessed(_ context.Context, rec domain.ProcessedRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marks++
	if s.markErr != nil {
		return s.markErr
	}
	if _, ok := s.records[rec.ArticleID]; ok {
		return domain.ErrDuplicateRecord
	}
	s.records[rec.ArticleID] = rec
	return nil
}

func (s *memStore) has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.records[id]
	return ok
}

type fakeExtractor struct {
	texts map[string]string
	fails map[string]error
	calls []string
	block bool
}

func (f *fakeExtractor) Extract(ctx context.Context, ref domain.ArticleReference) (string, error) {
	f.calls = append(f.calls, ref.ID)
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if err := f.fails[ref.ID]; err != nil {
		return "", err
	}
	return f.texts[ref.ID], nil
}

type fakeAnalyzer struct {
	verdicts map[string]domain.AnalysisVerdict
	err      error
}

func (f *fakeAnalyzer) Analyze(_ context.Context, text string) (domain.AnalysisVerdict, error) {
	if f.err != nil {
		return domain.AnalysisVerdict{}, f.err
	}
	if v, ok := f.verdicts[text]; ok {
		return v, nil
	}
	return domain.AnalysisVerdict{Status: domain.VerdictClean}, nil
}

type fakeNotifier struct {
	sent  []domain.Report
	fails map[string]error
}

func (f *fakeNotifier) Send(_ context.Context, report domain.Report) error {
	if err := f.fails[report.Article.ID]; err != nil {
		return err
	}
	f.sent = append(f.sent, report)
	return nil
}

type fakeAlerter struct {
	mu       sync.Mutex
	subjects []string
}

func (f *fakeAlerter) Alert(_ context.Context, subject, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subjects = append(f.subjects, subject)
	return nil
}

func (f *fakeAlerter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subjects)
}

type recorder struct {
	mu       sync.Mutex
	outcomes []string
}

func (r *recorder) ObserveRun(_ domain.RunReport, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

var errDiskIO = errors.New("disk I/O error")
