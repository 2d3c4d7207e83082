// Package userclient is the HTTP client for the user directory, fronted by
// a 5-minute KV cache and protected by a circuit breaker.
package userclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/ndidit/notifyhub/internal/circuitbreaker"
	"github.com/ndidit/notifyhub/internal/dtos"
	"github.com/ndidit/notifyhub/internal/kv"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *circuitbreaker.Breaker
	cache      *kv.Store
	cacheTTL   time.Duration
	log        zerolog.Logger
}

func New(baseURL string, breaker *circuitbreaker.Breaker, cache *kv.Store, cacheTTL time.Duration, log zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		breaker:  breaker,
		cache:    cache,
		cacheTTL: cacheTTL,
		log:      log,
	}
}

// Get resolves a user's contact channels and preferences, consulting the
// cache first and falling back to the directory under circuit-breaker
// protection.
func (c *Client) Get(ctx context.Context, userID string) (*dtos.UserDirectoryData, error) {
	if cached, err := c.cache.GetCachedUser(ctx, userID); err == nil && cached != nil {
		return cached, nil
	}

	result, err := c.breaker.Execute(ctx, func(ctx context.Context) (any, error) {
		return c.fetchWithRetry(ctx, userID)
	})
	if err != nil {
		return nil, fmt.Errorf("user directory unavailable: %w", err)
	}

	data := result.(*dtos.UserDirectoryData)
	if cacheErr := c.cache.CacheUser(ctx, userID, data, c.cacheTTL); cacheErr != nil {
		c.log.Warn().Err(cacheErr).Str("user_id", userID).Msg("failed to cache user lookup")
	}
	return data, nil
}

func (c *Client) fetchWithRetry(ctx context.Context, userID string) (*dtos.UserDirectoryData, error) {
	url := fmt.Sprintf("%s/api/v1/users/%s", c.baseURL, userID)
	var body dtos.UserDirectoryResponse

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			return backoff.Permanent(fmt.Errorf("user not found: %s", userID))
		}
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return backoff.Permanent(fmt.Errorf("client error: %d", resp.StatusCode))
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("server error: %d", resp.StatusCode)
		}

		return json.NewDecoder(resp.Body).Decode(&body)
	}

	backOff := backoff.NewExponentialBackOff()
	backOff.MaxElapsedTime = 5 * time.Second

	if err := backoff.Retry(operation, backoff.WithContext(backOff, ctx)); err != nil {
		return nil, err
	}
	return &body.Data, nil
}
