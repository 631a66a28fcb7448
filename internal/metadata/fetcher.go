package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sittingbulll/tokenwatch/internal/domain/model"
	"github.com/sittingbulll/tokenwatch/internal/metrics"
	"github.com/sittingbulll/tokenwatch/internal/store"
)

const maxDocumentBytes = 1 << 20

// errResolved cancels the remaining gateway requests once one has answered.
var errResolved = errors.New("gateway resolved")

// Fetcher resolves content URIs to token metadata documents. Content is
// addressed by hash, so successful fetches are cached durably and served
// from cache forever after.
type Fetcher struct {
	gateways    []string
	arweaveBase string
	client      *http.Client
	cache       store.ContentCache
	logger      *slog.Logger
	maxRetries  int
	retryDelay  time.Duration
}

type FetcherConfig struct {
	IPFSGateways []string // base URLs ending in /ipfs/
	ArweaveBase  string
	Timeout      time.Duration
	MaxRetries   int
	RetryDelay   time.Duration
}

func NewFetcher(cfg FetcherConfig, cache store.ContentCache, logger *slog.Logger) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	return &Fetcher{
		gateways:    cfg.IPFSGateways,
		arweaveBase: cfg.ArweaveBase,
		client:      &http.Client{Timeout: cfg.Timeout},
		cache:       cache,
		logger:      logger.With("component", "metadata_fetcher"),
		maxRetries:  cfg.MaxRetries,
		retryDelay:  cfg.RetryDelay,
	}
}

// Fetch resolves uri and returns the token metadata it describes, with the
// mint address filled in. Returns nil without error when the document
// cannot be obtained or lacks the required fields; missing metadata is an
// expected condition, not a failure.
func (f *Fetcher) Fetch(ctx context.Context, mint, uri string) (*model.TokenMetadata, error) {
	key := cacheKey(uri)

	if doc, err := f.cache.Get(ctx, key); err == nil {
		metrics.GatewayCacheHits.Inc()
		return f.parse(mint, doc), nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("content cache get: %w", err)
	}
	metrics.GatewayCacheMisses.Inc()

	urls := f.candidateURLs(uri)
	if len(urls) == 0 {
		return nil, fmt.Errorf("no gateway candidates for uri %q", uri)
	}

	delay := f.retryDelay
	for attempt := 0; ; attempt++ {
		doc := f.fetchAny(ctx, urls)
		if doc != nil {
			if err := f.cache.Put(ctx, key, doc); err != nil {
				f.logger.Warn("content cache write failed", "key", key, "error", err)
			}
			return f.parse(mint, doc), nil
		}
		if attempt >= f.maxRetries {
			break
		}

		f.logger.Warn("all gateways failed, backing off",
			"uri", uri, "attempt", attempt+1, "delay", delay.String())
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	f.logger.Error("metadata unresolvable", "uri", uri, "attempts", f.maxRetries+1)
	return nil, nil
}

// fetchAny races all candidate URLs and returns the first valid document,
// or nil when every gateway fails.
func (f *Fetcher) fetchAny(ctx context.Context, urls []string) []byte {
	g, gctx := errgroup.WithContext(ctx)

	var mu sync.Mutex
	var winner []byte
	for _, url := range urls {
		g.Go(func() error {
			doc, err := f.get(gctx, url)
			if err != nil {
				metrics.GatewayRequests.WithLabelValues("error").Inc()
				f.logger.Debug("gateway fetch failed", "url", url, "error", err)
				return nil
			}
			metrics.GatewayRequests.WithLabelValues("ok").Inc()
			mu.Lock()
			if winner == nil {
				winner = doc
			}
			mu.Unlock()
			return errResolved
		})
	}
	_ = g.Wait()
	return winner
}

func (f *Fetcher) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway get: http status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("gateway returned non-JSON body")
	}
	return body, nil
}

func (f *Fetcher) parse(mint string, raw []byte) *model.TokenMetadata {
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		f.logger.Error("metadata document undecodable", "mint", mint, "error", err)
		return nil
	}

	meta := &model.TokenMetadata{
		Address:       mint,
		Name:          doc.Name,
		Symbol:        doc.Symbol,
		Description:   doc.Description,
		ImageURL:      doc.Image,
		TwitterHandle: doc.twitterHandle(),
	}
	if !meta.Usable() {
		f.logger.Warn("metadata document missing name or symbol", "mint", mint)
		return nil
	}
	return meta
}

// candidateURLs rewrites uri into the HTTPS URLs to try. An ipfs:// URI
// maps to every configured gateway; ar:// maps to the single archival
// base; anything else is used as-is.
func (f *Fetcher) candidateURLs(uri string) []string {
	switch {
	case strings.HasPrefix(uri, "ipfs://"):
		cid := strings.TrimPrefix(uri, "ipfs://")
		urls := make([]string, 0, len(f.gateways))
		for _, base := range f.gateways {
			urls = append(urls, base+cid)
		}
		return urls
	case strings.HasPrefix(uri, "ar://"):
		return []string{f.arweaveBase + strings.TrimPrefix(uri, "ar://")}
	case strings.HasPrefix(uri, "http://"), strings.HasPrefix(uri, "https://"):
		return []string{uri}
	default:
		return nil
	}
}

// cacheKey reduces uri to its content identifier so the same content
// reached through different gateways shares one cache entry.
func cacheKey(uri string) string {
	switch {
	case strings.HasPrefix(uri, "ipfs://"):
		return strings.TrimPrefix(uri, "ipfs://")
	case strings.HasPrefix(uri, "ar://"):
		return strings.TrimPrefix(uri, "ar://")
	default:
		return uri
	}
}
