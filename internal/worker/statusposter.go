package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ndidit/notifyhub/internal/dtos"
)

// HTTPStatusPoster posts terminal delivery status back to ingress's
// /{channel}/status endpoint using the worker's service token.
type HTTPStatusPoster struct {
	BaseURL      string
	Channel      string // "email" or "push"
	ServiceToken string
	HTTPClient   *http.Client
}

func NewHTTPStatusPoster(baseURL, channel, serviceToken string) *HTTPStatusPoster {
	return &HTTPStatusPoster{
		BaseURL:      baseURL,
		Channel:      channel,
		ServiceToken: serviceToken,
		HTTPClient:   &http.Client{Timeout: 5 * time.Second},
	}
}

func (p *HTTPStatusPoster) Post(ctx context.Context, update *dtos.NotificationStatusUpdate) error {
	body, err := json.Marshal(update)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/%s/status", p.BaseURL, p.Channel)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.ServiceToken)

	resp, err := p.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("status post rejected: %d", resp.StatusCode)
	}
	return nil
}
