// Package provider implements the HTTP clients for the availability
// publisher and the remote price-floor table.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"lessonbook/internal/availability"
	"lessonbook/internal/metrics"
	"lessonbook/internal/pricing"
)

// Client calls the scheduling backend. Responses are assumed to carry
// only genuinely open windows, already adjusted for existing bookings
// and buffers, in the viewer's reference timezone.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter

	redis    *redis.Client
	cacheTTL time.Duration
}

// NewClient constructs a client with baseURL and API key.
func NewClient(baseURL, apiKey string, ratePerSecond float64, burst int) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(ratePerSecond), burst),
	}
}

// UseRedisCache configures optional Redis caching for GET endpoints.
func (c *Client) UseRedisCache(redisClient *redis.Client, ttl time.Duration) {
	c.redis = redisClient
	c.cacheTTL = ttl
}

// wireDay is the availability payload as published by the backend.
type wireDay struct {
	Date     string                  `json:"date"`
	Blackout bool                    `json:"blackout"`
	Windows  []availability.TimeSpan `json:"windows"`
}

type availabilityResponse struct {
	Days []wireDay `json:"days"`
}

// FetchAvailability fetches published availability for an instructor
// over an inclusive date range (YYYY-MM-DD). Malformed windows abort
// the whole response rather than being guessed around.
func (c *Client) FetchAvailability(ctx context.Context, instructorID, from, to string) (map[string]availability.Day, error) {
	endpoint := fmt.Sprintf("%s/api/v1/instructors/%s/availability?from=%s&to=%s",
		c.baseURL, url.PathEscape(instructorID), url.QueryEscape(from), url.QueryEscape(to))
	cacheKey := fmt.Sprintf("availability:%s:%s:%s", instructorID, from, to)

	var resp availabilityResponse
	if !c.readCache(ctx, cacheKey, &resp) {
		if err := c.doGet(ctx, endpoint, &resp); err != nil {
			metrics.IncProviderFetch("error")
			return nil, fmt.Errorf("fetch availability: %w", err)
		}
		c.writeCache(ctx, cacheKey, resp)
	}

	days := make(map[string]availability.Day, len(resp.Days))
	for _, wd := range resp.Days {
		day, err := availability.BuildDay(wd.Date, wd.Windows, wd.Blackout)
		if err != nil {
			metrics.IncProviderFetch("malformed")
			return nil, err
		}
		days[wd.Date] = day
	}
	metrics.IncProviderFetch("ok")
	return days, nil
}

type floorResponse struct {
	FloorCents int64 `json:"floor_cents"`
	Found      bool  `json:"found"`
}

// Lookup implements pricing.FloorTable against the remote config
// endpoint.
func (c *Client) Lookup(ctx context.Context, modality string, durationMinutes int) (int64, error) {
	endpoint := fmt.Sprintf("%s/api/v1/price-floors?modality=%s&duration=%d",
		c.baseURL, url.QueryEscape(modality), durationMinutes)
	cacheKey := fmt.Sprintf("floor:%s:%d", modality, durationMinutes)

	var resp floorResponse
	if !c.readCache(ctx, cacheKey, &resp) {
		if err := c.doGet(ctx, endpoint, &resp); err != nil {
			return 0, fmt.Errorf("fetch price floor: %w", err)
		}
		c.writeCache(ctx, cacheKey, resp)
	}

	if !resp.Found {
		return 0, pricing.ErrFloorNotFound
	}
	return resp.FloorCents, nil
}

func (c *Client) readCache(ctx context.Context, key string, out any) bool {
	if c.redis == nil || c.cacheTTL <= 0 {
		return false
	}
	val, err := c.redis.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		return false
	}
	return true
}

func (c *Client) writeCache(ctx context.Context, key string, val any) {
	if c.redis == nil || c.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.cacheTTL).Err()
}

func (c *Client) doGet(ctx context.Context, endpoint string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return err
	}
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("http %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
