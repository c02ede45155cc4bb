package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// Terminal gateway errors. Callers branch on these: a timeout means the backend
// was unreachable or slow and synthetic fallback content is appropriate, a plain
// failure means the backend answered but never produced usable text.
var (
	ErrGenerationFailed  = errors.New("llm: generation failed")
	ErrGenerationTimeout = errors.New("llm: generation timed out")
	ErrEmptyResponse     = errors.New("llm: empty response")
)

const truncationMarker = "\n\n[Prompt truncated due to length]"

// sleep is a seam for tests to observe backoff waits without waiting.
var sleep = func(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// LLMClient talks to an OpenAI-compatible chat-completions endpoint.
type LLMClient struct {
	endpoint    string
	apiKey      string
	model       string
	temperature float64
	retryBudget int
	baseDelay   time.Duration
	softLimit   int
	hardLimit   int
	minInterval time.Duration
	httpClient  *http.Client
	logger      *slog.Logger

	mu       sync.Mutex
	lastCall time.Time
}

type LLMOptions struct {
	APIKey          string
	Model           string
	Temperature     float64
	Timeout         time.Duration
	RetryBudget     int
	BaseDelay       time.Duration
	SoftPromptLimit int
	HardPromptLimit int
	// MinInterval spaces out calls to respect upstream rate limits.
	MinInterval time.Duration
	Logger      *slog.Logger
}

func NewLLMClient(endpoint string, opts *LLMOptions) *LLMClient {
	if opts == nil {
		opts = &LLMOptions{}
	}
	c := &LLMClient{
		endpoint:    strings.TrimRight(endpoint, "/"),
		apiKey:      opts.APIKey,
		model:       opts.Model,
		temperature: opts.Temperature,
		retryBudget: opts.RetryBudget,
		baseDelay:   opts.BaseDelay,
		softLimit:   opts.SoftPromptLimit,
		hardLimit:   opts.HardPromptLimit,
		minInterval: opts.MinInterval,
		logger:      opts.Logger,
	}
	if c.model == "" {
		c.model = "protllm"
	}
	if c.temperature == 0 {
		c.temperature = 0.7
	}
	if c.retryBudget <= 0 {
		c.retryBudget = 3
	}
	if c.baseDelay <= 0 {
		c.baseDelay = 3 * time.Second
	}
	if c.softLimit <= 0 {
		c.softLimit = 10000
	}
	if c.hardLimit <= 0 {
		c.hardLimit = 15000
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	c.httpClient = &http.Client{Timeout: timeout}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = c.logger.With("component", "llm")
	return c
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
	Stream      bool          `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Generate sends one prompt and returns the completion text. Empty content,
// transport errors, non-2xx statuses and malformed bodies are retried with
// linear backoff; after the budget is spent the last failure decides between
// ErrGenerationTimeout and ErrGenerationFailed.
func (c *LLMClient) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	prompt = c.boundPrompt(prompt)
	if err := c.waitRate(ctx); err != nil {
		return "", c.classify(err)
	}

	var lastErr error
	for attempt := 0; attempt < c.retryBudget; attempt++ {
		content, err := c.call(ctx, prompt, maxTokens)
		if err == nil {
			if strings.TrimSpace(content) != "" {
				if attempt > 0 {
					c.logger.Info("generation succeeded after retry", "attempt", attempt+1)
				}
				return content, nil
			}
			err = ErrEmptyResponse
		}
		lastErr = err
		c.logger.Warn("generation attempt failed",
			"attempt", attempt+1,
			"of", c.retryBudget,
			"prompt_chars", len(prompt),
			"error", err)

		if attempt < c.retryBudget-1 {
			wait := time.Duration(attempt+1) * c.baseDelay
			c.logger.Info("backing off before retry", "wait", wait.String())
			if serr := sleep(ctx, wait); serr != nil {
				lastErr = serr
				break
			}
		}
	}
	return "", c.classify(lastErr)
}

func (c *LLMClient) classify(err error) error {
	if isTimeoutError(err) {
		return fmt.Errorf("%w: %v", ErrGenerationTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrGenerationFailed, err)
}

func isTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out")
}

func (c *LLMClient) call(ctx context.Context, prompt string, maxTokens int) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens:   maxTokens,
		Temperature: c.temperature,
		Stream:      false,
	})
	if err != nil {
		return "", fmt.Errorf("llm: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.endpoint+"/api/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("llm: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm: request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("llm: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("llm: status %d %s: %s",
			resp.StatusCode, http.StatusText(resp.StatusCode), snippet(string(data), 200))
	}

	var cr chatResponse
	if err := json.Unmarshal(data, &cr); err != nil {
		return "", fmt.Errorf("llm: malformed completion body: %w", err)
	}
	if len(cr.Choices) == 0 {
		return "", errors.New("llm: completion has no choices")
	}
	return cr.Choices[0].Message.Content, nil
}

// boundPrompt enforces the prompt size policy: warn past the soft limit, hard
// truncate with a visible marker past the hard limit. The cut backs up to a
// rune boundary so a multi-byte character is never split.
func (c *LLMClient) boundPrompt(prompt string) string {
	n := len(prompt)
	switch {
	case n > c.hardLimit:
		c.logger.Warn("prompt over hard limit, truncating",
			"prompt_chars", n, "hard_limit", c.hardLimit)
		cut := c.hardLimit
		for cut > 0 && !utf8.RuneStart(prompt[cut]) {
			cut--
		}
		return prompt[:cut] + truncationMarker
	case n > c.softLimit:
		c.logger.Warn("prompt over soft limit",
			"prompt_chars", n, "soft_limit", c.softLimit)
	}
	return prompt
}

// waitRate reserves the next call slot so concurrent callers stay minInterval
// apart.
func (c *LLMClient) waitRate(ctx context.Context) error {
	if c.minInterval <= 0 {
		return nil
	}
	c.mu.Lock()
	now := time.Now()
	var wait time.Duration
	if next := c.lastCall.Add(c.minInterval); now.Before(next) {
		wait = next.Sub(now)
	}
	c.lastCall = now.Add(wait)
	c.mu.Unlock()
	if wait > 0 {
		return sleep(ctx, wait)
	}
	return nil
}

func snippet(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
