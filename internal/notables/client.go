package notables

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/sittingbulll/tokenwatch/internal/cache"
	"github.com/sittingbulll/tokenwatch/internal/circuitbreaker"
	"github.com/sittingbulll/tokenwatch/internal/metrics"
	"github.com/sittingbulll/tokenwatch/internal/ratelimit"
)

var (
	// ErrAuth means the session cookies were rejected and need to be
	// refreshed by a human login.
	ErrAuth = errors.New("social graph session invalid")

	// ErrRateLimited means the upstream throttled us.
	ErrRateLimited = errors.New("social graph rate limited")
)

const (
	defaultOrigin  = "https://www.protokols.io"
	userAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36"
	exportPageSize = 50
	memoTTL        = 10 * time.Minute
	memoSize       = 512
)

// Follower is one notable account following a creator.
type Follower struct {
	Username       string `json:"username"`
	DisplayName    string `json:"display_name"`
	FollowersCount int64  `json:"followers_count"`
}

// Result of a notable-follower lookup.
type Result struct {
	Total int        `json:"total"`
	Top   []Follower `json:"top"`
}

// Client queries the social graph API for notable followers. The API sorts
// followers by audience size and reports the overall count on every page,
// so the common lookup needs exactly one request.
type Client struct {
	baseURL string
	origin  string
	cookies map[string]string
	client  *http.Client
	limiter *ratelimit.Limiter
	breaker *circuitbreaker.Breaker
	memo    *cache.LRU[string, Result]
	logger  *slog.Logger
}

type Config struct {
	APIURL  string
	Cookies map[string]string
	Timeout time.Duration
	RPS     float64
	Burst   int
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	log := logger.With("component", "notables_client")
	return &Client{
		baseURL: cfg.APIURL,
		origin:  defaultOrigin,
		cookies: cfg.Cookies,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: ratelimit.New(cfg.RPS, cfg.Burst),
		breaker: circuitbreaker.New(circuitbreaker.Config{
			OnStateChange: func(from, to circuitbreaker.State) {
				log.Warn("circuit state changed", "from", from.String(), "to", to.String())
			},
		}),
		memo:   cache.New[string, Result](memoSize, memoTTL),
		logger: log,
	}
}

// TopFollowers returns the total notable-follower count for handle and its
// top n followers by audience size. One page request answers both.
func (c *Client) TopFollowers(ctx context.Context, handle string, n int) (Result, error) {
	memoKey := fmt.Sprintf("%s:%d", handle, n)
	if res, ok := c.memo.Get(memoKey); ok {
		return res, nil
	}

	page, err := c.fetchPage(ctx, handle, 0, n)
	if err != nil {
		return Result{}, err
	}

	res := Result{Total: page.overallCount, Top: page.followers}
	if len(res.Top) > n {
		res.Top = res.Top[:n]
	}
	c.memo.Set(memoKey, res)
	return res, nil
}

// ExportAll walks every page of notable followers until a short page
// signals exhaustion. Intended for offline export, not the hot path.
func (c *Client) ExportAll(ctx context.Context, handle string) ([]Follower, error) {
	var all []Follower
	cursor := 0
	for {
		page, err := c.fetchPage(ctx, handle, cursor, exportPageSize)
		if err != nil {
			return all, err
		}
		all = append(all, page.followers...)
		if len(page.followers) < exportPageSize {
			return all, nil
		}
		cursor += len(page.followers)
	}
}

type page struct {
	followers    []Follower
	overallCount int
}

type envelope struct {
	Result struct {
		Data struct {
			JSON struct {
				Data struct {
					Items []struct {
						TwitterProfile struct {
							Username       string `json:"username"`
							DisplayName    string `json:"displayName"`
							FollowersCount int64  `json:"followersCount"`
						} `json:"twitterProfile"`
					} `json:"items"`
					OverallCount int `json:"overallCount"`
				} `json:"data"`
			} `json:"json"`
		} `json:"data"`
	} `json:"result"`
}

func (c *Client) fetchPage(ctx context.Context, handle string, cursor, limit int) (*page, error) {
	if err := c.breaker.Allow(); err != nil {
		return nil, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	input, err := json.Marshal(map[string]any{
		"json": map[string]any{
			"limit":        limit,
			"followerType": "all",
			"username":     handle,
			"sortBy":       "followersCount",
			"sortOrder":    "desc",
			"cursor":       cursor,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("encode page input: %w", err)
	}

	reqURL := c.baseURL + "?input=" + url.QueryEscape(string(input))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	// The API fronts a browser app and rejects clients that do not look
	// like one.
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Origin", c.origin)
	req.Header.Set("Referer", c.origin+"/twitter/"+handle)
	for name, value := range c.cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.breaker.RecordFailure()
		metrics.NotablesRequests.WithLabelValues("network_error").Inc()
		return nil, fmt.Errorf("followers page request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		c.breaker.RecordFailure()
		metrics.NotablesRequests.WithLabelValues("auth").Inc()
		return nil, fmt.Errorf("followers page for %s: %w", handle, ErrAuth)
	case resp.StatusCode == http.StatusTooManyRequests:
		c.breaker.RecordFailure()
		metrics.NotablesRequests.WithLabelValues("throttled").Inc()
		return nil, fmt.Errorf("followers page for %s: %w", handle, ErrRateLimited)
	case resp.StatusCode != http.StatusOK:
		c.breaker.RecordFailure()
		metrics.NotablesRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("followers page for %s: http status %d", handle, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		c.breaker.RecordFailure()
		return nil, fmt.Errorf("read followers page: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		c.breaker.RecordFailure()
		return nil, fmt.Errorf("decode followers page: %w", err)
	}

	c.breaker.RecordSuccess()
	metrics.NotablesRequests.WithLabelValues("ok").Inc()

	data := env.Result.Data.JSON.Data
	p := &page{overallCount: data.OverallCount}
	for _, item := range data.Items {
		p.followers = append(p.followers, Follower{
			Username:       item.TwitterProfile.Username,
			DisplayName:    item.TwitterProfile.DisplayName,
			FollowersCount: item.TwitterProfile.FollowersCount,
		})
	}
	return p, nil
}
