package rates

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// DefaultBaseURL is the live rate provider.
const DefaultBaseURL = "https://open.er-api.com/v6"

// DefaultTTL is how long a fetched rate table stays fresh.
const DefaultTTL = 30 * time.Minute

var one = decimal.NewFromInt(1)

// Options configure a Client. Zero values take the defaults above.
type Options struct {
	BaseURL string
	TTL     time.Duration

	// OnFetch, if set, is called with the lookup outcome: "hit",
	// "fetch", or "fallback".
	OnFetch func(outcome string)
}

// Client is a caching rate source backed by the live provider.
type Client struct {
	http    *resty.Client
	baseURL string
	ttl     time.Duration
	onFetch func(string)

	mu        sync.RWMutex
	table     map[string]decimal.Decimal
	fetchedAt time.Time

	sf singleflight.Group
}

var _ Source = (*Client)(nil)

// New creates a Client with the given options.
func New(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	return &Client{
		http:    resty.New().SetTimeout(10 * time.Second),
		baseURL: strings.TrimSuffix(opts.BaseURL, "/"),
		ttl:     opts.TTL,
		onFetch: opts.OnFetch,
	}
}

// Rate returns the factor converting from into to, so that
// amount_in_to = amount_in_from * rate. Cross rates go through USD.
func (c *Client) Rate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	from = strings.ToUpper(from)
	to = strings.ToUpper(to)
	if from == to {
		return one, nil
	}

	table := c.usdTable(ctx)
	fromUSD, err := usdValue(table, from)
	if err != nil {
		return decimal.Zero, err
	}
	toUSD, err := usdValue(table, to)
	if err != nil {
		return decimal.Zero, err
	}
	return fromUSD.Div(toUSD), nil
}

// usdValue looks up the USD value of one unit of code, falling back to the
// static table for currencies the provider omitted.
func usdValue(table map[string]decimal.Decimal, code string) (decimal.Decimal, error) {
	if v, ok := table[code]; ok {
		return v, nil
	}
	if v, ok := fallbackUSD[code]; ok {
		return v, nil
	}
	return decimal.Zero, fmt.Errorf("%w: %s", ErrUnknownCurrency, code)
}

// usdTable returns the current rate table, fetching when stale. A failed
// fetch degrades to the fallback table without caching it, so the next
// call retries the provider.
func (c *Client) usdTable(ctx context.Context) map[string]decimal.Decimal {
	c.mu.RLock()
	if c.table != nil && time.Since(c.fetchedAt) < c.ttl {
		table := c.table
		c.mu.RUnlock()
		c.hook("hit")
		return table
	}
	c.mu.RUnlock()

	v, err, _ := c.sf.Do("usd", func() (interface{}, error) {
		table, err := c.fetch(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.table = table
		c.fetchedAt = time.Now()
		c.mu.Unlock()
		return table, nil
	})
	if err != nil {
		c.hook("fallback")
		return fallbackUSD
	}
	c.hook("fetch")
	return v.(map[string]decimal.Decimal)
}

// providerResponse mirrors the open.er-api.com payload.
type providerResponse struct {
	Result string             `json:"result"`
	Rates  map[string]float64 `json:"rates"`
}

func (c *Client) fetch(ctx context.Context) (map[string]decimal.Decimal, error) {
	var out providerResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get(c.baseURL + "/latest/USD")
	if err != nil {
		return nil, fmt.Errorf("rate provider request failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("rate provider returned status %d", resp.StatusCode())
	}
	if out.Result != "success" || len(out.Rates) == 0 {
		return nil, fmt.Errorf("rate provider returned result %q", out.Result)
	}

	// The provider reports units per USD; store the USD value of one unit.
	table := make(map[string]decimal.Decimal, len(out.Rates))
	for code, perUSD := range out.Rates {
		if perUSD <= 0 {
			continue
		}
		table[strings.ToUpper(code)] = one.Div(decimal.NewFromFloat(perUSD))
	}
	return table, nil
}

func (c *Client) hook(outcome string) {
	if c.onFetch != nil {
		c.onFetch(outcome)
	}
}
