package translation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hilthontt/murmur/internal/domain"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var ErrEmptyTranslation = errors.New("translation service returned neither text nor language")

type Config struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// Client calls the external translation service: POST {text} and read back
// {translated, detectedLang}. Either field may be missing; a reply carrying
// only the detected language is still returned.
type Client struct {
	url    string
	apiKey string
	http   *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("translation: url is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}

	return &Client{
		url:    cfg.URL,
		apiKey: cfg.APIKey,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}, nil
}

type translateRequest struct {
	Text string `json:"text"`
}

func (c *Client) Translate(ctx context.Context, text string) (*domain.Translation, error) {
	body, err := json.Marshal(translateRequest{Text: text})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build translation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("translation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("translation service responded %d", resp.StatusCode)
	}

	var out domain.Translation
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode translation: %w", err)
	}
	if out.Translated == "" && out.DetectedLang == "" {
		return nil, ErrEmptyTranslation
	}

	return &out, nil
}
