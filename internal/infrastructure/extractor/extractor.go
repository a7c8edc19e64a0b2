package extractor

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"newsmonitor/internal/domain"
	"newsmonitor/internal/ports"
)

const (
	defaultMaxChars      = 4000
	minParagraphChars    = 20
	truncationMarker     = "..."
	minReadabilityLength = 80
)

var contentSelectors = []string{
	".story-content",
	".article-content",
	".news-content",
	".content-body",
	".story-body",
	".article-body",
	".news-body",
	".main-content",
	".post-content",
	"article .content",
	"#content",
	".text-content",
	".story-text",
}

var contentClassHints = []string{"content", "story", "article", "text", "body"}

var boilerplatePhrases = []string{
	"Skip to main content",
	"Cookie Policy",
	"Privacy Policy",
	"Terms of Service",
	"Subscribe to newsletter",
	"Follow us on",
	"Share this article",
}

// Fetcher downloads a page body.
type Fetcher interface {
	Get(ctx context.Context, pageURL string) ([]byte, error)
}

// Extractor pulls the main article text out of a news page.
type Extractor struct {
	fetcher  Fetcher
	maxChars int
	logger   *slog.Logger
}

var _ ports.ContentExtractor = (*Extractor)(nil)

// New builds an extractor; maxChars <= 0 uses 4000.
func New(fetcher Fetcher, maxChars int, logger *slog.Logger) *Extractor {
	if maxChars <= 0 {
		maxChars = defaultMaxChars
	}
	return &Extractor{fetcher: fetcher, maxChars: maxChars, logger: logger}
}

// Extract downloads the article and returns cleaned plain text. Failures and
// empty results are reported as domain.ErrExtraction.
func (e *Extractor) Extract(ctx context.Context, ref domain.ArticleReference) (string, error) {
	body, err := e.fetcher.Get(ctx, ref.URL)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", domain.ErrExtraction, ref.URL, err)
	}

	text, method := ExtractText(body, ref.URL)
	text = Clean(text, e.maxChars)
	if text == "" {
		return "", fmt.Errorf("%w: %s: no content found", domain.ErrExtraction, ref.URL)
	}

	if e.logger != nil {
		e.logger.Debug("content extracted", "article_id", ref.ID, "method", method, "chars", utf8.RuneCountInString(text))
	}
	return text, nil
}

// ExtractText runs readability and falls back to selector heuristics. The
// second return value names the method that produced the text.
func ExtractText(html []byte, pageURL string) (string, string) {
	if parsed, err := url.Parse(pageURL); err == nil {
		article, err := readability.FromReader(bytes.NewReader(html), parsed)
		if err == nil {
			text := strings.TrimSpace(article.TextContent)
			if utf8.RuneCountInString(text) >= minReadabilityLength {
				return text, "readability"
			}
		}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return "", "none"
	}
	doc.Find("script, style, nav, header, footer, aside, menu, form, noscript, iframe").Remove()

	for _, selector := range contentSelectors {
		if sel := doc.Find(selector).First(); sel.Length() > 0 {
			if text := strings.TrimSpace(sel.Text()); text != "" {
				return text, "selector:" + selector
			}
		}
	}

	var best string
	doc.Find("div[class]").Each(func(_ int, div *goquery.Selection) {
		class := strings.ToLower(div.AttrOr("class", ""))
		if !containsAny(class, contentClassHints) {
			return
		}
		if text := strings.TrimSpace(div.Text()); len(text) > len(best) {
			best = text
		}
	})
	if best != "" {
		return best, "content-div"
	}

	var paragraphs []string
	doc.Find("p").Each(func(_ int, p *goquery.Selection) {
		if text := strings.TrimSpace(p.Text()); utf8.RuneCountInString(text) > minParagraphChars {
			paragraphs = append(paragraphs, text)
		}
	})
	if len(paragraphs) > 0 {
		return strings.Join(paragraphs, " "), "paragraphs"
	}

	return strings.TrimSpace(doc.Find("body").Text()), "body"
}

// Clean collapses whitespace, strips boilerplate and caps the length in characters.
func Clean(text string, maxChars int) string {
	text = strings.Join(strings.Fields(text), " ")
	for _, phrase := range boilerplatePhrases {
		text = strings.ReplaceAll(text, phrase, "")
	}
	text = strings.Join(strings.Fields(text), " ")

	if maxChars > 0 && utf8.RuneCountInString(text) > maxChars {
		runes := []rune(text)
		text = string(runes[:maxChars]) + truncationMarker
	}
	return text
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
