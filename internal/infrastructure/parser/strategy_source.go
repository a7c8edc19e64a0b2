package parser

import (
	"context"
	"fmt"
	"log/slog"

	"newsmonitor/internal/config"
	"newsmonitor/internal/domain"
	"newsmonitor/internal/ports"
	"newsmonitor/internal/scanner"
)

// StrategySource implements ArticleSource via registered scanner strategies.
type StrategySource struct {
	registry *scanner.Registry
	sites    []config.SiteConfig
	logger   *slog.Logger
}

var _ ports.ArticleSource = (*StrategySource)(nil)

// NewStrategySource wires scanner registry with config-defined sites.
func NewStrategySource(reg *scanner.Registry, sites []config.SiteConfig, log *slog.Logger) *StrategySource {
	return &StrategySource{
		registry: reg,
		sites:    sites,
		logger:   log,
	}
}

// FetchCandidates scans every configured site in order. Any site failure fails
// the whole fetch with domain.ErrSourceUnavailable.
func (s *StrategySource) FetchCandidates(ctx context.Context) ([]domain.ArticleReference, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("%w: scanner registry is not configured", domain.ErrSourceUnavailable)
	}

	s.debug("fetch candidates", "sites", len(s.sites))

	seen := map[string]struct{}{}
	var aggregated []domain.ArticleReference
	for _, site := range s.sites {
		s.debug("process site", "site", site.Name, "scanner", site.Scanner)
		strategy, err := s.registry.Resolve(site.Scanner)
		if err != nil {
			return nil, fmt.Errorf("%w: site %s: %w", domain.ErrSourceUnavailable, site.Name, err)
		}

		req := scanner.Request{
			SiteName: site.Name,
			URL:      site.URL,
			BaseURL:  site.BaseURL,
			Options:  site.Options,
		}

		results, err := strategy.Scan(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("%w: scan site %s: %w", domain.ErrSourceUnavailable, site.Name, err)
		}

		for _, ref := range results {
			if _, dup := seen[ref.ID]; dup {
				continue
			}
			seen[ref.ID] = struct{}{}
			aggregated = append(aggregated, ref)
		}
		s.debug("site produced articles", "site", site.Name, "count", len(results))
	}

	s.debug("strategy source done", "total_articles", len(aggregated))
	return aggregated, nil
}

func (s *StrategySource) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
