package sources

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/lueurxax/filmosphere/internal/httpx"
)

const (
	kinoAPIKeyHeader  = "X-Api-Key"
	kinoAPIHostHeader = "X-Api-Host"
	kinoAPIHost       = "api.kinocheck.com"

	kinoTrailerLanguage = "en"
	kinoTrailerCategory = "Trailer"
)

var errInvalidJSON = errors.New("response is not valid json")

// KinoCheckConfig holds configuration for the KinoCheck trailer provider.
type KinoCheckConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
}

// KinoCheckClient wraps the KinoCheck trailer API. The provider returns 200
// with an embedded error object for unknown titles, so "no trailer" is
// detected from the body, not the status code.
type KinoCheckClient struct {
	http   *httpx.Client
	apiKey string
	logger *zerolog.Logger
}

func NewKinoCheckClient(cfg KinoCheckConfig, logger *zerolog.Logger) *KinoCheckClient {
	return &KinoCheckClient{
		http: httpx.New(httpx.Config{
			BaseURL:    cfg.BaseURL,
			Timeout:    cfg.Timeout,
			MaxRetries: cfg.MaxRetries,
		}),
		apiKey: cfg.APIKey,
		logger: logger,
	}
}

func (c *KinoCheckClient) headers() map[string]string {
	return map[string]string{
		kinoAPIKeyHeader:  c.apiKey,
		kinoAPIHostHeader: kinoAPIHost,
		"Accept":          "application/json",
	}
}

// Trailer returns trailer information for the given IMDb id, or nil when the
// provider has none. Transport failures surface as errors; the aggregator
// decides whether that is fatal.
func (c *KinoCheckClient) Trailer(ctx context.Context, imdbID string) (json.RawMessage, error) {
	params := url.Values{}
	params.Set("imdb_id", imdbID)
	params.Set("language", kinoTrailerLanguage)
	params.Set("categories", kinoTrailerCategory)

	body, err := c.http.GetJSON(ctx, "/movies", params, c.headers())
	if err != nil {
		return nil, err
	}

	if !json.Valid(body) {
		return nil, errInvalidJSON
	}

	if isKinoErrorBody(body) {
		return nil, nil
	}

	return json.RawMessage(body), nil
}

// LatestTrailers returns the provider's latest trailers feed. Failures
// degrade to an empty list.
func (c *KinoCheckClient) LatestTrailers(ctx context.Context) []json.RawMessage {
	return c.trailerList(ctx, "/trailers/latest", nil)
}

// TrendingTrailers returns the provider's trending trailers feed. Failures
// degrade to an empty list.
func (c *KinoCheckClient) TrendingTrailers(ctx context.Context) []json.RawMessage {
	return c.trailerList(ctx, "/trailers/trending", nil)
}

// TrailersByGenre returns trailers filtered by genre. Failures degrade to an
// empty list.
func (c *KinoCheckClient) TrailersByGenre(ctx context.Context, genre string) []json.RawMessage {
	params := url.Values{}
	params.Set("genres", genre)

	return c.trailerList(ctx, "/trailers", params)
}

func (c *KinoCheckClient) trailerList(ctx context.Context, path string, params url.Values) []json.RawMessage {
	body, err := c.http.GetJSON(ctx, path, params, c.headers())
	if err != nil {
		c.logger.Warn().Err(err).Str("path", path).Msg("kinocheck trailer list failed")

		return []json.RawMessage{}
	}

	// The feed endpoints wrap the list in a results key; some return a bare
	// array.
	var wrapper struct {
		Results []json.RawMessage `json:"results"`
	}

	if err := json.Unmarshal(body, &wrapper); err == nil && wrapper.Results != nil {
		return wrapper.Results
	}

	var list []json.RawMessage
	if err := json.Unmarshal(body, &list); err == nil {
		return list
	}

	return []json.RawMessage{}
}

// isKinoErrorBody reports whether a 200 response carries the provider's
// embedded error object ("not found", "invalid api key").
func isKinoErrorBody(body []byte) bool {
	var probe struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}

	if err := json.Unmarshal(body, &probe); err != nil {
		return false
	}

	if len(probe.Error) > 0 && string(probe.Error) != "null" {
		return true
	}

	msg := strings.ToLower(probe.Message)

	return strings.Contains(msg, "not found") || strings.Contains(msg, "invalid api key")
}
