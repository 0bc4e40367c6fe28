package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/stitts-dev/f1-velocity/pkg/cache"
)

// Entity is the API-Sports collection an image is searched in
type Entity string

const (
	EntityDriver Entity = "drivers"
	EntityTeam   Entity = "teams"
)

// ImageStatus classifies the outcome of an image lookup
type ImageStatus string

const (
	StatusFound            ImageStatus = "found"
	StatusNotFound         ImageStatus = "not_found"
	StatusTransportFailure ImageStatus = "transport_failure"
	StatusMalformed        ImageStatus = "malformed"
)

// Terminal reports whether retrying could change the outcome
func (s ImageStatus) Terminal() bool {
	return s != StatusTransportFailure
}

// BreakerName is the circuit breaker the client runs under
const BreakerName = "apisports"

var ErrMissingAPIKey = errors.New("api-sports key not configured")

// ImageResult is the outcome of one image lookup. Err is set for
// transport failures and malformed responses.
type ImageResult struct {
	Status   ImageStatus `json:"status"`
	URL      string      `json:"url,omitempty"`
	Attempts int         `json:"-"`
	Cached   bool        `json:"-"`
	Err      error       `json:"-"`
}

// Breaker runs fn under a named circuit breaker
type Breaker interface {
	Execute(service string, fn func() (interface{}, error)) (interface{}, error)
}

type APISportsConfig struct {
	BaseURL           string
	APIKey            string
	Timeout           time.Duration
	RequestsPerSecond float64
	MaxRetries        int
	RetryBackoff      time.Duration
	CacheTTL          time.Duration
}

// APISportsClient looks up driver and team images on an API-Sports
// compatible endpoint
type APISportsClient struct {
	httpClient *http.Client
	cfg        APISportsConfig
	limiter    *rate.Limiter
	breaker    Breaker
	cache      cache.Provider
	logger     *logrus.Logger
}

type apiSportsResponse struct {
	Errors   json.RawMessage `json:"errors"`
	Response []struct {
		Name  string `json:"name"`
		Image string `json:"image"`
		Logo  string `json:"logo"`
	} `json:"response"`
}

// NewAPISportsClient builds a client. breaker and cache may be nil.
func NewAPISportsClient(cfg APISportsConfig, breaker Breaker, cacheProvider cache.Provider, logger *logrus.Logger) (*APISportsClient, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("api-sports base url not configured")
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	return &APISportsClient{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		breaker:    breaker,
		cache:      cacheProvider,
		logger:     logger,
	}, nil
}

// LookupImage returns the first image for name. Not-found and malformed
// outcomes are returned at once; transport failures are retried with
// exponential backoff until MaxRetries is exhausted.
func (c *APISportsClient) LookupImage(ctx context.Context, entity Entity, name string) ImageResult {
	log := c.logger.WithFields(logrus.Fields{
		"entity": entity,
		"name":   name,
	})

	key := cache.ImageKey(string(entity), name)
	if c.cache != nil {
		var cached ImageResult
		if err := c.cache.Get(ctx, key, &cached); err == nil {
			cached.Cached = true
			log.WithField("status", cached.Status).Debug("Image lookup served from cache")
			return cached
		}
	}

	var res ImageResult
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * c.cfg.RetryBackoff
			log.WithFields(logrus.Fields{
				"attempt": attempt,
				"backoff": backoff,
			}).WithError(res.Err).Warn("Retrying image lookup")
			select {
			case <-ctx.Done():
				return ImageResult{Status: StatusTransportFailure, Attempts: attempt, Err: ctx.Err()}
			case <-time.After(backoff):
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return ImageResult{Status: StatusTransportFailure, Attempts: attempt, Err: err}
		}

		res = c.executeOnce(ctx, entity, name)
		res.Attempts = attempt + 1
		if res.Status.Terminal() {
			break
		}
		if errors.Is(res.Err, gobreaker.ErrOpenState) || errors.Is(res.Err, gobreaker.ErrTooManyRequests) {
			break
		}
	}

	switch res.Status {
	case StatusFound, StatusNotFound:
		if c.cache != nil {
			if err := c.cache.Set(ctx, key, ImageResult{Status: res.Status, URL: res.URL}, c.cfg.CacheTTL); err != nil {
				log.WithError(err).Warn("Failed to cache image lookup")
			}
		}
		log.WithFields(logrus.Fields{"status": res.Status, "attempts": res.Attempts}).Debug("Image lookup finished")
	default:
		log.WithFields(logrus.Fields{"status": res.Status, "attempts": res.Attempts}).WithError(res.Err).Warn("Image lookup failed")
	}
	return res
}

// executeOnce performs one request under the breaker. Only transport
// failures count against the breaker.
func (c *APISportsClient) executeOnce(ctx context.Context, entity Entity, name string) ImageResult {
	if c.breaker == nil {
		return c.fetch(ctx, entity, name)
	}

	var res ImageResult
	_, err := c.breaker.Execute(BreakerName, func() (interface{}, error) {
		res = c.fetch(ctx, entity, name)
		if res.Status == StatusTransportFailure {
			return nil, res.Err
		}
		return nil, nil
	})
	if err != nil && res.Status == "" {
		return ImageResult{Status: StatusTransportFailure, Err: err}
	}
	return res
}

func (c *APISportsClient) fetch(ctx context.Context, entity Entity, name string) ImageResult {
	endpoint := fmt.Sprintf("%s/%s?%s", c.cfg.BaseURL, entity, url.Values{"search": {name}}.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return ImageResult{Status: StatusMalformed, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("x-apisports-key", c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ImageResult{Status: StatusTransportFailure, Err: err}
	}
	defer resp.Body.Close()

	if remaining := resp.Header.Get("x-ratelimit-requests-remaining"); remaining != "" {
		c.logger.WithField("remaining", remaining).Debug("API-Sports daily quota")
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return ImageResult{Status: StatusNotFound}
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return ImageResult{Status: StatusTransportFailure, Err: fmt.Errorf("API request failed with status %d", resp.StatusCode)}
	default:
		return ImageResult{Status: StatusMalformed, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return ImageResult{Status: StatusTransportFailure, Err: fmt.Errorf("read body: %w", err)}
	}
	return parseImageResponse(body, entity)
}

func parseImageResponse(body []byte, entity Entity) ImageResult {
	var payload apiSportsResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return ImageResult{Status: StatusMalformed, Err: fmt.Errorf("decode response: %w", err)}
	}
	if res, failed := classifyAPIErrors(payload.Errors); failed {
		return res
	}
	if payload.Response == nil {
		return ImageResult{Status: StatusMalformed, Err: errors.New("response field missing")}
	}
	if len(payload.Response) == 0 {
		return ImageResult{Status: StatusNotFound}
	}

	first := payload.Response[0]
	image := first.Image
	if image == "" && entity == EntityTeam {
		image = first.Logo
	}
	if image == "" {
		return ImageResult{Status: StatusNotFound}
	}
	return ImageResult{Status: StatusFound, URL: image}
}

// classifyAPIErrors maps the "errors" field to a failed result. API-Sports
// answers quota and key problems with HTTP 200, an empty response and
// errors keyed by kind; without errors the field is an empty array.
func classifyAPIErrors(raw json.RawMessage) (ImageResult, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return ImageResult{}, false
	}

	var keyed map[string]interface{}
	if err := json.Unmarshal(raw, &keyed); err != nil {
		var list []interface{}
		if err := json.Unmarshal(raw, &list); err != nil {
			return ImageResult{Status: StatusMalformed, Err: fmt.Errorf("decode errors: %w", err)}, true
		}
		if len(list) == 0 {
			return ImageResult{}, false
		}
		return ImageResult{Status: StatusMalformed, Err: fmt.Errorf("api error: %v", list)}, true
	}
	if len(keyed) == 0 {
		return ImageResult{}, false
	}

	keys := make([]string, 0, len(keyed))
	for k := range keyed {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	// quota and rate limits clear with time, anything else needs a fix on our side
	for _, k := range keys {
		switch strings.ToLower(k) {
		case "requests", "ratelimit":
			return ImageResult{Status: StatusTransportFailure, Err: fmt.Errorf("api %s limit: %v", k, keyed[k])}, true
		}
	}
	k := keys[0]
	return ImageResult{Status: StatusMalformed, Err: fmt.Errorf("api %s error: %v", k, keyed[k])}, true
}
