package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// ImageClient talks to a generateContent-style image endpoint. It is optional:
// a nil or keyless client disables frame images without failing the storyboard.
type ImageClient struct {
	endpoint   string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

type ImageOptions struct {
	APIKey  string
	Model   string
	Timeout time.Duration
	Logger  *slog.Logger
}

func NewImageClient(endpoint string, opts *ImageOptions) *ImageClient {
	if opts == nil {
		opts = &ImageOptions{}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	model := opts.Model
	if model == "" {
		model = "gemini-2.0-flash-exp"
	}
	return &ImageClient{
		endpoint:   endpoint,
		apiKey:     opts.APIKey,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With("component", "image"),
	}
}

func (c *ImageClient) Enabled() bool {
	return c != nil && c.apiKey != ""
}

type generateContentResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				InlineData *struct {
					MimeType string `json:"mimeType"`
					Data     string `json:"data"`
				} `json:"inlineData"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// GenerateImage requests one image for a frame description. A well-formed reply
// without an image part returns ("", nil, nil): absence is not an error.
func (c *ImageClient) GenerateImage(ctx context.Context, prompt string) (string, []byte, error) {
	reqBody := map[string]interface{}{
		"contents": []interface{}{
			map[string]interface{}{
				"parts": []interface{}{
					map[string]interface{}{"text": prompt},
				},
			},
		},
		"generationConfig": map[string]interface{}{
			"responseModalities": []string{"TEXT", "IMAGE"},
		},
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", nil, fmt.Errorf("image: marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		c.endpoint, c.model, url.QueryEscape(c.apiKey))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", nil, fmt.Errorf("image: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", nil, fmt.Errorf("image: request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, fmt.Errorf("image: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", nil, fmt.Errorf("image: status %d %s: %s",
			resp.StatusCode, http.StatusText(resp.StatusCode), snippet(string(data), 200))
	}

	var gr generateContentResponse
	if err := json.Unmarshal(data, &gr); err != nil {
		return "", nil, fmt.Errorf("image: malformed response: %w", err)
	}
	for _, cand := range gr.Candidates {
		for _, part := range cand.Content.Parts {
			if part.InlineData == nil || part.InlineData.Data == "" {
				continue
			}
			raw, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
			if err != nil {
				return "", nil, fmt.Errorf("image: decode inline data: %w", err)
			}
			mime := part.InlineData.MimeType
			if mime == "" {
				mime = "image/png"
			}
			return mime, raw, nil
		}
	}
	c.logger.Info("reply carried no image part", "prompt_chars", len(prompt))
	return "", nil, nil
}

// DataURI encodes image bytes for direct embedding in frame records.
func DataURI(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}
