package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Feed delivers the latest completed snapshot for a symbol.
type Feed interface {
	Latest(ctx context.Context) (*Snapshot, error)
}

// IndicatorFeed polls an indicator service over HTTP. The service owns candle
// assembly and indicator computation; the feed only consumes the finished
// snapshot record.
type IndicatorFeed struct {
	baseURL    string
	symbol     string
	interval   string
	httpClient *http.Client
}

// NewIndicatorFeed creates a feed for one symbol/interval pair.
func NewIndicatorFeed(baseURL, symbol, interval string) *IndicatorFeed {
	return &IndicatorFeed{
		baseURL:    baseURL,
		symbol:     symbol,
		interval:   interval,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// Latest fetches the most recent completed snapshot.
func (f *IndicatorFeed) Latest(ctx context.Context) (*Snapshot, error) {
	endpoint := fmt.Sprintf("%s/snapshot?symbol=%s&interval=%s",
		f.baseURL, url.QueryEscape(f.symbol), url.QueryEscape(f.interval))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build snapshot request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("indicator service returned status %d: %s", resp.StatusCode, string(body))
	}

	var snap Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}

	if err := snap.Validate(); err != nil {
		return nil, fmt.Errorf("malformed snapshot: %w", err)
	}

	return &snap, nil
}
