// Package sources contains one adapter per external provider. Each adapter
// normalizes its provider's response shape into a small internal schema and
// isolates provider-specific error handling. Fatal-vs-warning policy lives in
// the aggregator, not here.
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

const searchLimit = 10

// IMDBConfig holds configuration for the IMDb metadata provider.
type IMDBConfig struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

// IMDBClient wraps the IMDbAPI.dev endpoints. Metadata is the primary source
// for aggregation; every other resource is secondary.
type IMDBClient struct {
	http   *httpx.Client
	logger *zerolog.Logger
}

func NewIMDBClient(cfg IMDBConfig, logger *zerolog.Logger) *IMDBClient {
	return &IMDBClient{
		http: httpx.New(httpx.Config{
			BaseURL:    cfg.BaseURL,
			Timeout:    cfg.Timeout,
			MaxRetries: cfg.MaxRetries,
		}),
		logger: logger,
	}
}

// SearchResult is one normalized entry from the title search endpoint.
type SearchResult struct {
	IMDBID string `json:"imdb_id"`
	Title  string `json:"title"`
	Year   int    `json:"year,omitempty"`
	Image  string `json:"image,omitempty"`
	Type   string `json:"type,omitempty"`
}

type searchResponse struct {
	Titles []struct {
		ID           string `json:"id"`
		PrimaryTitle string `json:"primaryTitle"` //nolint:tagliatelle // IMDbAPI uses camelCase
		StartYear    int    `json:"startYear"`    //nolint:tagliatelle // IMDbAPI uses camelCase
		Type         string `json:"type"`
		PrimaryImage struct {
			URL string `json:"url"`
		} `json:"primaryImage"` //nolint:tagliatelle // IMDbAPI uses camelCase
	} `json:"titles"`
}

// Search queries `/search/titles` and normalizes the result list. Transport
// and decode errors degrade to an empty result set: search absence is a
// normal business outcome for the public search endpoint.
func (c *IMDBClient) Search(ctx context.Context, query string) []SearchResult {
	params := url.Values{}
	params.Set("query", query)
	params.Set("limit", fmt.Sprintf("%d", searchLimit))

	body, err := c.http.GetJSON(ctx, "/search/titles", params, nil)
	if err != nil {
		c.logger.Warn().Err(err).Str("query", query).Msg("imdb search failed")

		return []SearchResult{}
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		c.logger.Warn().Err(err).Msg("imdb search decode failed")

		return []SearchResult{}
	}

	results := make([]SearchResult, 0, len(resp.Titles))

	for _, item := range resp.Titles {
		results = append(results, SearchResult{
			IMDBID: item.ID,
			Title:  item.PrimaryTitle,
			Year:   item.StartYear,
			Image:  item.PrimaryImage.URL,
			Type:   item.Type,
		})
	}

	return results
}

// Metadata fetches core title metadata. This is the load-bearing resource:
// without it the aggregation has nothing to show.
func (c *IMDBClient) Metadata(ctx context.Context, imdbID string) (json.RawMessage, error) {
	return c.getResource(ctx, "/titles/"+imdbID)
}

func (c *IMDBClient) Credits(ctx context.Context, imdbID string) (json.RawMessage, error) {
	return c.getResource(ctx, "/titles/"+imdbID+"/credits")
}

func (c *IMDBClient) Images(ctx context.Context, imdbID string) (json.RawMessage, error) {
	return c.getResource(ctx, "/titles/"+imdbID+"/images")
}

func (c *IMDBClient) Videos(ctx context.Context, imdbID string) (json.RawMessage, error) {
	return c.getResource(ctx, "/titles/"+imdbID+"/videos")
}

func (c *IMDBClient) ParentsGuide(ctx context.Context, imdbID string) (json.RawMessage, error) {
	return c.getResource(ctx, "/titles/"+imdbID+"/parentsGuide")
}

func (c *IMDBClient) Certificates(ctx context.Context, imdbID string) (json.RawMessage, error) {
	return c.getResource(ctx, "/titles/"+imdbID+"/certificates")
}

func (c *IMDBClient) ReleaseDates(ctx context.Context, imdbID string) (json.RawMessage, error) {
	return c.getResource(ctx, "/titles/"+imdbID+"/releaseDates")
}

func (c *IMDBClient) getResource(ctx context.Context, path string) (json.RawMessage, error) {
	body, err := c.http.GetJSON(ctx, path, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("imdb get %s: %w", path, err)
	}

	if !json.Valid(body) {
		return nil, fmt.Errorf("imdb get %s: %w", path, errInvalidJSON)
	}

	return json.RawMessage(body), nil
}
