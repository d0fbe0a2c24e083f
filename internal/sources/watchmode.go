package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/lueurxax/filmosphere/internal/httpx"
)

const watchmodeAPIKeyParam = "apiKey"

// WatchmodeConfig holds configuration for the Watchmode streaming provider.
type WatchmodeConfig struct {
	BaseURL    string
	APIKey     string
	Regions    string
	Timeout    time.Duration
	MaxRetries int
}

// WatchmodeClient wraps the Watchmode streaming API. Resolving streaming
// sources is a two-step lookup: external id to internal title id, then title
// id to sources.
type WatchmodeClient struct {
	http    *httpx.Client
	apiKey  string
	regions string
	logger  *zerolog.Logger
}

func NewWatchmodeClient(cfg WatchmodeConfig, logger *zerolog.Logger) *WatchmodeClient {
	return &WatchmodeClient{
		http: httpx.New(httpx.Config{
			BaseURL:    cfg.BaseURL,
			Timeout:    cfg.Timeout,
			MaxRetries: cfg.MaxRetries,
		}),
		apiKey:  cfg.APIKey,
		regions: cfg.Regions,
		logger:  logger,
	}
}

type titleSearchResponse struct {
	TitleResults []struct {
		ID int64 `json:"id"`
	} `json:"title_results"`
}

// LookupTitleID resolves the Watchmode title id for an IMDb id. A result set
// with no matches resolves to 0 without error.
func (c *WatchmodeClient) LookupTitleID(ctx context.Context, imdbID string) (int64, error) {
	params := url.Values{}
	params.Set("imdb_id", imdbID)
	params.Set(watchmodeAPIKeyParam, c.apiKey)

	body, err := c.http.GetJSON(ctx, "/search/", params, nil)
	if err != nil {
		return 0, fmt.Errorf("watchmode title search: %w", err)
	}

	var resp titleSearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("parse watchmode search response: %w", err)
	}

	if len(resp.TitleResults) == 0 {
		return 0, nil
	}

	return resp.TitleResults[0].ID, nil
}

// StreamingSources fetches the streaming source list for a Watchmode title id.
func (c *WatchmodeClient) StreamingSources(ctx context.Context, titleID int64) (json.RawMessage, error) {
	params := url.Values{}
	params.Set(watchmodeAPIKeyParam, c.apiKey)
	params.Set("regions", c.regions)

	body, err := c.http.GetJSON(ctx, fmt.Sprintf("/title/%d/sources/", titleID), params, nil)
	if err != nil {
		return nil, fmt.Errorf("watchmode sources: %w", err)
	}

	if !json.Valid(body) {
		return nil, fmt.Errorf("watchmode sources: %w", errInvalidJSON)
	}

	return json.RawMessage(body), nil
}
