package parser

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"newsmonitor/internal/domain"
	"newsmonitor/internal/scanner"
)

const defaultMinTitleLength = 10

var defaultLinkSelectors = []string{
	`a[href*="/viewfullstory/"]`,
	`a[href*="/news/"]`,
	`.news-item a`,
	`.article-title a`,
	`.story-link`,
	`h3 a`,
	`h2 a`,
	`.title a`,
	`a[href*="story"]`,
	`a[href*="article"]`,
}

var fallbackKeywords = []string{"news", "story", "article", "viewfullstory"}

// Fetcher downloads a page body.
type Fetcher interface {
	Get(ctx context.Context, pageURL string) ([]byte, error)
}

// HTMLScanner collects article links from a news listing page.
//
// Options understood per site:
//   - selectors: comma-separated CSS selectors replacing the defaults
//   - linkKeyword: substring every accepted URL must contain
//   - minTitleLength: shortest accepted link text in characters
//   - idPattern: regexp whose first group extracts a site article id
//   - limit: maximum number of references returned
type HTMLScanner struct {
	fetcher Fetcher
	logger  *slog.Logger
}

// NewHTMLScanner wires the page fetcher.
func NewHTMLScanner(fetcher Fetcher, logger *slog.Logger) *HTMLScanner {
	return &HTMLScanner{fetcher: fetcher, logger: logger}
}

// Name identifies the strategy inside the registry.
func (s *HTMLScanner) Name() string {
	return "html"
}

// Scan downloads the listing page and returns unique references in page order.
func (s *HTMLScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.ArticleReference, error) {
	opts, err := parseOptions(req)
	if err != nil {
		return nil, err
	}

	body, err := s.fetcher.Get(ctx, req.URL)
	if err != nil {
		return nil, fmt.Errorf("fetch listing: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse listing: %w", err)
	}

	base := req.BaseURL
	if base == "" {
		base = req.URL
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid base url %s: %w", base, err)
	}

	refs := s.collect(doc, baseURL, opts)
	if len(refs) == 0 {
		s.debug("no links matched selectors, trying fallback", "site", req.SiteName)
		refs = s.collectFallback(doc, baseURL, opts)
	}

	if opts.limit > 0 && len(refs) > opts.limit {
		refs = refs[:opts.limit]
	}

	s.debug("listing scanned", "site", req.SiteName, "articles", len(refs))
	return refs, nil
}

type scanOptions struct {
	selectors      []string
	linkKeyword    string
	minTitleLength int
	idPattern      *regexp.Regexp
	limit          int
}

func parseOptions(req scanner.Request) (scanOptions, error) {
	opts := scanOptions{
		selectors:      defaultLinkSelectors,
		linkKeyword:    strings.ToLower(req.Option("linkKeyword", "")),
		minTitleLength: defaultMinTitleLength,
	}

	if raw := req.Option("selectors", ""); raw != "" {
		opts.selectors = nil
		for _, sel := range strings.Split(raw, ",") {
			if sel = strings.TrimSpace(sel); sel != "" {
				opts.selectors = append(opts.selectors, sel)
			}
		}
	}

	if raw := req.Option("minTitleLength", ""); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return opts, fmt.Errorf("site %s: minTitleLength: %w", req.SiteName, err)
		}
		opts.minTitleLength = n
	}

	if raw := req.Option("idPattern", ""); raw != "" {
		re, err := regexp.Compile(raw)
		if err != nil {
			return opts, fmt.Errorf("site %s: idPattern: %w", req.SiteName, err)
		}
		opts.idPattern = re
	}

	if raw := req.Option("limit", ""); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return opts, fmt.Errorf("site %s: limit: %w", req.SiteName, err)
		}
		opts.limit = n
	}

	return opts, nil
}

func (s *HTMLScanner) collect(doc *goquery.Document, base *url.URL, opts scanOptions) []domain.ArticleReference {
	seen := map[string]struct{}{}
	var refs []domain.ArticleReference

	for _, selector := range opts.selectors {
		doc.Find(selector).Each(func(_ int, link *goquery.Selection) {
			ref, ok := buildReference(link, base, opts, nil)
			if !ok {
				return
			}
			if _, dup := seen[ref.ID]; dup {
				return
			}
			seen[ref.ID] = struct{}{}
			refs = append(refs, ref)
		})
	}

	return refs
}

func (s *HTMLScanner) collectFallback(doc *goquery.Document, base *url.URL, opts scanOptions) []domain.ArticleReference {
	seen := map[string]struct{}{}
	var refs []domain.ArticleReference

	doc.Find("a[href]").Each(func(_ int, link *goquery.Selection) {
		ref, ok := buildReference(link, base, opts, fallbackKeywords)
		if !ok {
			return
		}
		if _, dup := seen[ref.ID]; dup {
			return
		}
		seen[ref.ID] = struct{}{}
		refs = append(refs, ref)
	})

	return refs
}

func buildReference(link *goquery.Selection, base *url.URL, opts scanOptions, anyKeyword []string) (domain.ArticleReference, bool) {
	href, ok := link.Attr("href")
	href = strings.TrimSpace(href)
	if !ok || href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return domain.ArticleReference{}, false
	}

	rel, err := url.Parse(href)
	if err != nil {
		return domain.ArticleReference{}, false
	}
	abs := base.ResolveReference(rel).String()
	lower := strings.ToLower(abs)

	if opts.linkKeyword != "" && !strings.Contains(lower, opts.linkKeyword) {
		return domain.ArticleReference{}, false
	}
	if len(anyKeyword) > 0 && !containsAny(lower, anyKeyword) {
		return domain.ArticleReference{}, false
	}

	title := strings.Join(strings.Fields(link.Text()), " ")
	if title == "" {
		title = strings.TrimSpace(link.AttrOr("title", ""))
	}
	if utf8.RuneCountInString(title) <= opts.minTitleLength {
		return domain.ArticleReference{}, false
	}

	ref, err := domain.NewArticleReference(abs, title, opts.idPattern)
	if err != nil {
		return domain.ArticleReference{}, false
	}
	return ref, true
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func (s *HTMLScanner) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
