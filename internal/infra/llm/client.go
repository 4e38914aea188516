// Package llm calls a chat-completion style grading endpoint. The remote
// contract is opaque: any failure surfaces as an error whose text feeds
// the reliability layer's classifier.
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
)

// Config holds LLM provider settings.
type Config struct {
	Endpoint    string        `yaml:"endpoint"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	Timeout     time.Duration `yaml:"timeout"`
	Temperature float64       `yaml:"temperature"`
}

// GradeRequest is one answer to grade against the marking guide.
type GradeRequest struct {
	Question      string
	ModelAnswer   string
	StudentAnswer string
	MaxScore      int
	Criteria      []string
}

// GradeResult is the provider's raw grading output, pre-validation.
type GradeResult struct {
	Score          int                `json:"score"`
	Feedback       string             `json:"feedback"`
	CriteriaScores map[string]float64 `json:"criteria_scores,omitempty"`
}

// Client is an HTTP client for the grading endpoint.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient creates an LLM client. The HTTP client owns the call
// timeout; the circuit breaker wrapping these calls treats its own
// timeout field as advisory.
func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

const systemPrompt = `You are an exam grading assistant. Grade the student answer ` +
	`against the model answer and respond with JSON only: ` +
	`{"score": <0-100>, "feedback": "<short feedback>", "criteria_scores": {"<criterion>": <0-100>}}`

// GradeAnswer asks the LLM to grade one answer.
func (c *Client) GradeAnswer(ctx context.Context, req GradeRequest) (*GradeResult, error) {
	prompt := buildPrompt(req)

	body := map[string]any{
		"model":       c.cfg.Model,
		"temperature": c.cfg.Temperature,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": prompt},
		},
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.cfg.Endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("llm call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("rate limited (429), retry after: %s", resp.Header.Get("Retry-After"))
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("llm http %d: %s", resp.StatusCode, truncate(string(respBody), 200))
	}

	var completion struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(respBody, &completion); err != nil {
		return nil, fmt.Errorf("parse completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("llm returned no choices")
	}

	return parseGradeContent(completion.Choices[0].Message.Content)
}

func buildPrompt(req GradeRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\n", req.Question)
	fmt.Fprintf(&b, "Model answer: %s\n\n", req.ModelAnswer)
	fmt.Fprintf(&b, "Student answer: %s\n\n", req.StudentAnswer)
	b.WriteString("Score the answer from 0 to 100.\n")
	if len(req.Criteria) > 0 {
		fmt.Fprintf(&b, "Grading criteria: %s\n", strings.Join(req.Criteria, "; "))
	}
	return b.String()
}

// parseGradeContent extracts the JSON grade from the completion text.
// Models sometimes wrap JSON in prose or code fences, so scan for the
// outermost braces.
func parseGradeContent(content string) (*GradeResult, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("malformed grade response: no JSON object in %q", truncate(content, 100))
	}

	var result GradeResult
	if err := json.Unmarshal([]byte(content[start:end+1]), &result); err != nil {
		return nil, fmt.Errorf("parse grade response: %w", err)
	}
	return &result, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
