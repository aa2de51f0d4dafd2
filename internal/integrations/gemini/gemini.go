package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/finflow/budget-service/internal/config"
	"github.com/sirupsen/logrus"
)

// Client talks to the Gemini generative-language REST API. It implements
// ai.TextSource: the extraction pipeline only ever sees raw response text.
type Client struct {
	url    string
	apiKey string
	client *http.Client
	log    *logrus.Logger
}

// NewClient initializes a new Gemini client
func NewClient(cfg *config.Config, log *logrus.Logger) *Client {
	return &Client{
		url:    cfg.GeminiURL,
		apiKey: cfg.GeminiAPIKey,
		client: &http.Client{
			Timeout: 300 * time.Second, // Longer timeout for streaming
		},
		log: log,
	}
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Parts []part `json:"parts"`
	Role  string `json:"role"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopP            float64 `json:"top_p"`
	TopK            int     `json:"top_k"`
	MaxOutputTokens int     `json:"max_output_tokens"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generation_config"`
}

// buildRequest creates the generation payload for a prompt
func buildRequest(prompt string) generateRequest {
	return generateRequest{
		Contents: []content{
			{Parts: []part{{Text: prompt}}, Role: "user"},
		},
		GenerationConfig: generationConfig{
			Temperature:     0.4,
			TopP:            1,
			TopK:            32,
			MaxOutputTokens: 2048,
		},
	}
}

// post sends the generation request to the given API method and returns the
// open response body. The caller owns closing it.
func (c *Client) post(ctx context.Context, method, prompt string) (io.ReadCloser, error) {
	payload, err := json.Marshal(buildRequest(prompt))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s:%s?key=%s", c.url, method, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body))
	}

	return resp.Body, nil
}

// OpenStream starts a streaming generation and returns the live body.
func (c *Client) OpenStream(ctx context.Context, prompt string) (io.ReadCloser, error) {
	c.log.Debugf("Opening Gemini stream, prompt length %d", len(prompt))
	return c.post(ctx, "streamGenerateContent", prompt)
}

// FetchOnce runs a single blocking generation and returns the whole
// response body as text.
func (c *Client) FetchOnce(ctx context.Context, prompt string) (string, error) {
	body, err := c.post(ctx, "generateContent", prompt)
	if err != nil {
		return "", err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	c.log.Debugf("Gemini response: %d bytes", len(data))
	return string(data), nil
}
