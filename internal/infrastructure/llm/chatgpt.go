package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"newsmonitor/internal/config"
	"newsmonitor/internal/domain"
	"newsmonitor/internal/ports"
)

// ChatGPTClient implements ports.GrammarAnalyzer backed by OpenAI-compatible chat APIs.
type ChatGPTClient struct {
	endpoint   string
	model      string
	apiKey     string
	prompt     string
	httpClient *http.Client
}

var _ ports.GrammarAnalyzer = (*ChatGPTClient)(nil)

// NewChatGPTClient builds a client from configuration.
func NewChatGPTClient(cfg config.AnalyzerConfig, timeout time.Duration) *ChatGPTClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &ChatGPTClient{
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
		prompt:   cfg.Prompt,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Analyze asks the model to review text and parses its OK/Caution reply.
func (c *ChatGPTClient) Analyze(ctx context.Context, text string) (domain.AnalysisVerdict, error) {
	if c == nil {
		return domain.AnalysisVerdict{}, fmt.Errorf("%w: chatgpt client is nil", domain.ErrAnalysisService)
	}
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return domain.AnalysisVerdict{}, fmt.Errorf("%w: chatgpt client misconfigured", domain.ErrAnalysisService)
	}

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: safePrompt(c.prompt)},
			{Role: "user", Content: "Content to check: " + text},
		},
	})
	if err != nil {
		return domain.AnalysisVerdict{}, fmt.Errorf("%w: marshal chatgpt payload: %w", domain.ErrAnalysisService, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.AnalysisVerdict{}, fmt.Errorf("%w: new request: %w", domain.ErrAnalysisService, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.AnalysisVerdict{}, fmt.Errorf("%w: send request: %w", domain.ErrAnalysisService, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return domain.AnalysisVerdict{}, fmt.Errorf("%w: chatgpt error %s: %s", domain.ErrAnalysisService, resp.Status, strings.TrimSpace(string(payload)))
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return domain.AnalysisVerdict{}, fmt.Errorf("%w: decode response: %w", domain.ErrAnalysisService, err)
	}
	if len(decoded.Choices) == 0 {
		return domain.AnalysisVerdict{}, fmt.Errorf("%w: response has no choices", domain.ErrAnalysisService)
	}

	return ParseVerdict(decoded.Choices[0].Message.Content)
}

func safePrompt(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "Check grammar and spelling mistakes of the news item. If there are no mistakes, reply: OK. If there are any mistakes, reply: Caution, and list all found mistakes."
	}
	return prompt
}
