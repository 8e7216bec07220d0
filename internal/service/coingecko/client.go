package coingecko

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	drepo "ModelArena/internal/domain/repository"
	"ModelArena/pkg/cache"
	xhttp "ModelArena/pkg/http"
	"ModelArena/pkg/logger"
)

// Client is a PriceFeed over the CoinGecko simple price endpoint. Prices are
// cached for cacheTTL; when the upstream fails the last good price is served.
type Client struct {
	logger     *logger.Logger
	http       *xhttp.Client
	cache      cache.Service
	baseURL    string
	apiKey     string
	coinID     string
	vsCurrency string
	cacheTTL   time.Duration

	mu    sync.RWMutex
	stale float64
}

var _ drepo.PriceFeed = (*Client)(nil)

// Option configures Client.
type Option func(*Client)

func WithBaseURL(u string) Option { return func(c *Client) { c.baseURL = u } }
func WithAPIKey(k string) Option  { return func(c *Client) { c.apiKey = k } }
func WithCoin(id, vs string) Option {
	return func(c *Client) {
		c.coinID = id
		c.vsCurrency = vs
	}
}
func WithCacheTTL(d time.Duration) Option { return func(c *Client) { c.cacheTTL = d } }

func New(lgr *logger.Logger, httpClient *xhttp.Client, priceCache cache.Service, opts ...Option) *Client {
	c := &Client{
		logger:     lgr,
		http:       httpClient,
		cache:      priceCache,
		baseURL:    "https://api.coingecko.com/api/v3",
		coinID:     "binancecoin",
		vsCurrency: "usd",
		cacheTTL:   12 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) cacheKey() string {
	return cache.Key("price", c.coinID, c.vsCurrency)
}

// Price returns the cached price when fresh, otherwise fetches it.
func (c *Client) Price(ctx context.Context) (float64, error) {
	var cached float64
	err := c.cache.Get(ctx, c.cacheKey(), &cached)
	if err == nil && cached > 0 {
		return cached, nil
	}
	if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
		c.logger.Warn("price cache read failed", logger.Error(err))
	}

	price, err := c.fetch(ctx)
	if err != nil {
		if stale := c.lastGood(); stale > 0 {
			c.logger.Warn("coingecko fetch failed, serving stale price",
				logger.Error(err),
				logger.Float64("price", stale))
			return stale, nil
		}
		return 0, fmt.Errorf("coingecko: %v: %w", err, drepo.ErrPriceUnavailable)
	}

	c.mu.Lock()
	c.stale = price
	c.mu.Unlock()
	if err := c.cache.Set(ctx, c.cacheKey(), price, c.cacheTTL); err != nil {
		c.logger.Warn("price cache write failed", logger.Error(err))
	}
	return price, nil
}

func (c *Client) lastGood() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stale
}

// simple/price responds with {"<coin>": {"<vs>": price}}.
type simplePrice map[string]map[string]float64

func (c *Client) fetch(ctx context.Context) (float64, error) {
	query := url.Values{
		"ids":           {c.coinID},
		"vs_currencies": {c.vsCurrency},
	}
	if c.apiKey != "" {
		query.Set("x_cg_demo_api_key", c.apiKey)
	}

	var out simplePrice
	if err := c.http.GetJSON(ctx, c.baseURL+"/simple/price", query, &out); err != nil {
		return 0, fmt.Errorf("simple price: %w", err)
	}

	price := out[c.coinID][c.vsCurrency]
	if price <= 0 {
		return 0, fmt.Errorf("simple price: no %s/%s quote in response", c.coinID, c.vsCurrency)
	}
	return price, nil
}
