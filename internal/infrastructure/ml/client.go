package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"newsmonitor/internal/domain"
	"newsmonitor/internal/ports"
)

// Client talks to a self-hosted grammar analysis service.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

var _ ports.GrammarAnalyzer = (*Client)(nil)

// NewClient creates a reusable HTTP client.
func NewClient(endpoint, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		http:     &http.Client{Timeout: timeout},
	}
}

type analyzeResponse struct {
	Status string   `json:"status"`
	Issues []string `json:"issues"`
}

// Analyze sends the text for review and maps the service status to a verdict.
func (c *Client) Analyze(ctx context.Context, text string) (domain.AnalysisVerdict, error) {
	var resp analyzeResponse
	if err := c.post(ctx, "/analyze", map[string]any{"text": text}, &resp); err != nil {
		return domain.AnalysisVerdict{}, fmt.Errorf("%w: %w", domain.ErrAnalysisService, err)
	}

	switch strings.ToLower(strings.TrimSpace(resp.Status)) {
	case "clean", "ok":
		return domain.AnalysisVerdict{Status: domain.VerdictClean}, nil
	case "flagged", "caution":
		issues := make([]string, 0, len(resp.Issues))
		for _, issue := range resp.Issues {
			if issue = strings.TrimSpace(issue); issue != "" {
				issues = append(issues, issue)
			}
		}
		if len(issues) == 0 {
			issues = []string{"analysis service flagged the text without details"}
		}
		return domain.AnalysisVerdict{Status: domain.VerdictFlagged, Issues: issues}, nil
	default:
		return domain.AnalysisVerdict{}, fmt.Errorf("%w: unknown status %q", domain.ErrAnalysisService, resp.Status)
	}
}

func (c *Client) post(ctx context.Context, path string, payload any, v any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		closeErr := resp.Body.Close()
		if closeErr != nil {
			return fmt.Errorf("unexpected status %s, close body: %v", resp.Status, closeErr)
		}
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		_ = resp.Body.Close()
		return fmt.Errorf("decode response: %w", err)
	}

	if err := resp.Body.Close(); err != nil {
		return fmt.Errorf("close response body: %w", err)
	}

	return nil
}
