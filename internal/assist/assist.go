// Package assist wraps an external text-generation API used to draft
// client-facing messages (payment reminders, denial letters). When no API
// is configured the nop client returns empty drafts and callers fall back
// to their fixed templates.
package assist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"microlend/pkg/config"
	"microlend/pkg/errors"
)

// Client produces short message drafts from a prompt.
type Client interface {
	Draft(ctx context.Context, prompt string) (string, error)
	Enabled() bool
}

// New returns an HTTP-backed client, or the nop client when the API is not
// configured.
func New(cfg config.AssistConfig) Client {
	if cfg.APIURL == "" || cfg.APIKey == "" {
		return nopClient{}
	}
	return &httpClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type httpClient struct {
	cfg    config.AssistConfig
	client *http.Client
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type generateResponse struct {
	Text string `json:"text"`
}

func (c *httpClient) Enabled() bool { return true }

func (c *httpClient) Draft(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(generateRequest{Model: c.cfg.Model, Prompt: prompt})
	if err != nil {
		return "", errors.Wrap(err, "failed to encode assist request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL, bytes.NewReader(payload))
	if err != nil {
		return "", errors.Wrap(err, "failed to create assist request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "assist request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("assist api returned status %d: %s", resp.StatusCode, string(body))
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", errors.Wrap(err, "failed to decode assist response")
	}

	return out.Text, nil
}

type nopClient struct{}

func (nopClient) Enabled() bool { return false }

func (nopClient) Draft(ctx context.Context, prompt string) (string, error) {
	return "", nil
}
