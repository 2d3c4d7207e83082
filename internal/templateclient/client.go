// Package templateclient implements worker.TemplateRenderer as an HTTP call
// to the template service's /templates/render endpoint.
package templateclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ndidit/notifyhub/internal/dtos"
)

// ErrTemplateNotFound is returned when the template service answers 404 —
// there is no active template for the requested code/language. Callers
// must treat this as terminal, not retryable.
var ErrTemplateNotFound = errors.New("template not found")

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *Client) Render(ctx context.Context, code string, variables map[string]any, language string, version *int) (*dtos.TemplateRenderResponse, error) {
	reqBody, err := json.Marshal(dtos.TemplateRenderRequest{
		TemplateCode: code,
		Variables:    variables,
		Language:     language,
		Version:      version,
	})
	if err != nil {
		return nil, err
	}

	url := c.baseURL + "/templates/render"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrTemplateNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("template render rejected: %d", resp.StatusCode)
	}

	var envelope struct {
		Success bool                         `json:"success"`
		Data    dtos.TemplateRenderResponse  `json:"data"`
		Error   string                       `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, err
	}
	if !envelope.Success {
		return nil, fmt.Errorf("template render failed: %s", envelope.Error)
	}
	return &envelope.Data, nil
}
