package marketplace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	statsPath = "/getNumbersStats.php"
	buyPath   = "/getNum.php"
)

// ErrNoNumbers signals explicit stock exhaustion during an allocation
// attempt, as opposed to a transport or parse failure.
var ErrNoNumbers = errors.New("marketplace: no numbers left to allocate")

// Options parameterise the OnlineSim client.
type Options struct {
	BaseURL         string
	APIKey          string
	Service         string
	Country         int
	StatsTimeout    time.Duration
	PurchaseTimeout time.Duration
	UserAgent       string
}

// Client talks to the OnlineSim HTTP API.
type Client struct {
	opts    Options
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewClient constructs a marketplace client.
func NewClient(opts Options, logger zerolog.Logger) *Client {
	if opts.StatsTimeout <= 0 {
		opts.StatsTimeout = 15 * time.Second
	}
	if opts.PurchaseTimeout <= 0 {
		opts.PurchaseTimeout = 30 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://onlinesim.io/api"
	}

	return &Client{
		opts:    opts,
		logger:  logger.With().Str("component", "marketplace").Logger(),
		client:  &http.Client{},
		baseURL: baseURL,
	}
}

// FetchStats queries current stock for the configured service/country pair.
// A payload without the expected service entry yields an unavailable
// snapshot, not an error; transport and decode failures are returned to the
// caller, which decides whether they are fatal.
func (c *Client) FetchStats(ctx context.Context) (Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.StatsTimeout)
	defer cancel()

	body, err := c.get(ctx, statsPath, url.Values{
		"apikey":  {c.opts.APIKey},
		"country": {strconv.Itoa(c.opts.Country)},
		"service": {c.opts.Service},
	})
	if err != nil {
		return Snapshot{}, err
	}

	now := time.Now().UTC()

	var payload struct {
		Services map[string]json.RawMessage `json:"services"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		var probe any
		if json.Unmarshal(body, &probe) != nil {
			return Snapshot{}, fmt.Errorf("decode stats response: %w", err)
		}
		// valid JSON of an unexpected shape
		c.logger.Warn().Msg("stats response has no services mapping")
		return Snapshot{CheckedAt: now}, nil
	}

	raw, ok := payload.Services["service_"+c.opts.Service]
	if !ok {
		c.logger.Debug().Str("service", c.opts.Service).Msg("service not present in stats response")
		return Snapshot{CheckedAt: now}, nil
	}

	var stats struct {
		Count int             `json:"count"`
		Price json.RawMessage `json:"price"`
	}
	if err := json.Unmarshal(raw, &stats); err != nil {
		c.logger.Warn().Err(err).Str("service", c.opts.Service).Msg("malformed service entry in stats response")
		return Snapshot{CheckedAt: now}, nil
	}

	snap := Snapshot{
		Available: stats.Count > 0,
		Count:     stats.Count,
		Price:     parsePrice(stats.Price),
		CheckedAt: now,
	}

	c.logger.Info().
		Int("count", snap.Count).
		Bool("available", snap.Available).
		Str("service", c.opts.Service).
		Int("country", c.opts.Country).
		Msg("stock probed")
	return snap, nil
}

// BuyNumber allocates a single number. ErrNoNumbers indicates the remote
// sold out between the probe and the allocation.
func (c *Client) BuyNumber(ctx context.Context) (PurchaseRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.PurchaseTimeout)
	defer cancel()

	body, err := c.get(ctx, buyPath, url.Values{
		"apikey":  {c.opts.APIKey},
		"service": {c.opts.Service},
		"country": {strconv.Itoa(c.opts.Country)},
	})
	if err != nil {
		return PurchaseRecord{}, err
	}

	var payload struct {
		Response string          `json:"response"`
		TzID     json.Number     `json:"tzid"`
		Number   string          `json:"number"`
		Price    json.RawMessage `json:"price"`
		Msg      any             `json:"msg"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return PurchaseRecord{}, fmt.Errorf("decode purchase response: %w", err)
	}

	switch {
	case payload.TzID.String() != "" && payload.Number != "":
		rec := PurchaseRecord{
			TransactionID: payload.TzID.String(),
			Number:        payload.Number,
			Service:       c.opts.Service,
			Country:       c.opts.Country,
			Price:         parsePrice(payload.Price),
			PurchasedAt:   time.Now().UTC(),
		}
		c.logger.Info().
			Str("number", rec.Number).
			Str("tzid", rec.TransactionID).
			Msg("number purchased")
		return rec, nil
	case payload.Response == "NO_NUMBER":
		return PurchaseRecord{}, ErrNoNumbers
	case payload.Msg != nil:
		return PurchaseRecord{}, fmt.Errorf("marketplace rejected purchase: %v", payload.Msg)
	default:
		return PurchaseRecord{}, fmt.Errorf("unexpected purchase response: %s", strings.TrimSpace(string(body)))
	}
}

func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	endpoint := c.baseURL + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(c.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "simwatcher/1.0")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, parseHTTPError(resp.StatusCode, body)
	}
	return body, nil
}

func parseHTTPError(status int, payload []byte) error {
	var apiErr struct {
		Response string `json:"response"`
		Msg      string `json:"msg"`
	}
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		if apiErr.Msg != "" {
			return fmt.Errorf("marketplace api error (%d): %s", status, apiErr.Msg)
		}
		if apiErr.Response != "" {
			return fmt.Errorf("marketplace api error (%d): %s", status, apiErr.Response)
		}
	}
	if len(payload) > 0 {
		return fmt.Errorf("marketplace api error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("marketplace api error (%d)", status)
}

func parsePrice(raw json.RawMessage) *decimal.Decimal {
	if len(raw) == 0 {
		return nil
	}
	var price decimal.Decimal
	if err := json.Unmarshal(raw, &price); err != nil {
		// prices occasionally come back as "N/A"
		return nil
	}
	return &price
}

var _ StockProber = (*Client)(nil)
var _ NumberAllocator = (*Client)(nil)
