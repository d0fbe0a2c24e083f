// Package film assembles one canonical record per IMDb id from several
// independent external providers.
//
// The defining design decision: only an invalid id or a primary metadata
// failure is fatal. Every secondary source failure degrades to a warning tag
// in the merged payload, since partial data beats no data.
package film

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/lueurxax/filmosphere/internal/observability"
	db "github.com/lueurxax/filmosphere/internal/storage"
)

var (
	// ErrInvalidID indicates the identifier does not match the provider's
	// id pattern. Equivalent to a 4xx: never retried.
	ErrInvalidID = errors.New("invalid imdb id")

	// ErrFilmNotFound indicates the primary metadata source has no data for
	// the id (or is unreachable; without metadata there is nothing to show).
	ErrFilmNotFound = errors.New("film not found")
)

var imdbIDPattern = regexp.MustCompile(`^tt\d+$`)

// Warning tags, one per secondary source.
const (
	warnCredits      = "credits_unavailable"
	warnImages       = "images_unavailable"
	warnVideos       = "videos_unavailable"
	warnParentsGuide = "parents_guide_unavailable"
	warnCertificates = "certificates_unavailable"
	warnReleaseDates = "release_dates_unavailable"
	warnTrailer      = "trailer_unavailable"
	warnStreaming    = "streaming_unavailable"
)

// IMDBSource is the primary metadata provider plus its secondary resources.
type IMDBSource interface {
	Metadata(ctx context.Context, imdbID string) (json.RawMessage, error)
	Credits(ctx context.Context, imdbID string) (json.RawMessage, error)
	Images(ctx context.Context, imdbID string) (json.RawMessage, error)
	Videos(ctx context.Context, imdbID string) (json.RawMessage, error)
	ParentsGuide(ctx context.Context, imdbID string) (json.RawMessage, error)
	Certificates(ctx context.Context, imdbID string) (json.RawMessage, error)
	ReleaseDates(ctx context.Context, imdbID string) (json.RawMessage, error)
}

// TrailerSource resolves a trailer document for an id, nil when none exists.
type TrailerSource interface {
	Trailer(ctx context.Context, imdbID string) (json.RawMessage, error)
}

// StreamingSource resolves streaming sources via a two-step lookup.
type StreamingSource interface {
	LookupTitleID(ctx context.Context, imdbID string) (int64, error)
	StreamingSources(ctx context.Context, titleID int64) (json.RawMessage, error)
}

// CacheStore is the persistence collaborator for merged payloads.
type CacheStore interface {
	GetFilm(ctx context.Context, imdbID string) (*db.Film, error)
	UpsertFilm(ctx context.Context, imdbID string, payload json.RawMessage) error
	IsFresh(ctx context.Context, imdbID string, ttl time.Duration) (bool, error)
}

// Payload is the merged aggregation result for one id.
type Payload struct {
	IMDBID       string          `json:"imdb_id"`
	Title        string          `json:"title,omitempty"`
	Metadata     json.RawMessage `json:"metadata"`
	Credits      json.RawMessage `json:"credits,omitempty"`
	Images       json.RawMessage `json:"images,omitempty"`
	Videos       json.RawMessage `json:"videos,omitempty"`
	ParentsGuide json.RawMessage `json:"parents_guide,omitempty"`
	Certificates json.RawMessage `json:"certificates,omitempty"`
	ReleaseDates json.RawMessage `json:"release_dates,omitempty"`
	Trailer      json.RawMessage `json:"trailer,omitempty"`
	Streaming    json.RawMessage `json:"streaming,omitempty"`
	Warnings     []string        `json:"warnings"`
}

// Aggregator orchestrates cache checks, source fan-out and the merge.
type Aggregator struct {
	imdb      IMDBSource
	trailers  TrailerSource
	streaming StreamingSource
	cache     CacheStore
	ttl       time.Duration
	logger    *zerolog.Logger
}

func NewAggregator(
	imdb IMDBSource,
	trailers TrailerSource,
	streaming StreamingSource,
	cache CacheStore,
	ttl time.Duration,
	logger *zerolog.Logger,
) *Aggregator {
	return &Aggregator{
		imdb:      imdb,
		trailers:  trailers,
		streaming: streaming,
		cache:     cache,
		ttl:       ttl,
		logger:    logger,
	}
}

// Fetch returns the merged payload for an id, serving from cache when fresh.
// On a miss it queries the primary source, fans out to every secondary
// source concurrently, merges, persists and returns.
func (a *Aggregator) Fetch(ctx context.Context, imdbID string) (json.RawMessage, error) {
	if !imdbIDPattern.MatchString(imdbID) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, imdbID)
	}

	if cached := a.freshCached(ctx, imdbID); cached != nil {
		observability.AggregationFetches.WithLabelValues("cache_hit").Inc()

		return cached, nil
	}

	started := time.Now()

	metadata, err := a.imdb.Metadata(ctx, imdbID)
	if err != nil {
		a.logger.Warn().Err(err).Str("imdb_id", imdbID).Msg("primary metadata fetch failed")
		observability.AggregationFetches.WithLabelValues("not_found").Inc()

		return nil, fmt.Errorf("%w: %s", ErrFilmNotFound, imdbID)
	}

	results := a.fetchSecondaries(ctx, imdbID)

	payload := a.merge(imdbID, metadata, results)

	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	if err := a.cache.UpsertFilm(ctx, imdbID, encoded); err != nil {
		return nil, fmt.Errorf("persist payload: %w", err)
	}

	observability.AggregationFetches.WithLabelValues("aggregated").Inc()
	observability.AggregationDuration.Observe(time.Since(started).Seconds())

	return encoded, nil
}

// freshCached returns the cached payload when the cache is fresh, nil
// otherwise. Cache read errors degrade to a miss.
func (a *Aggregator) freshCached(ctx context.Context, imdbID string) json.RawMessage {
	fresh, err := a.cache.IsFresh(ctx, imdbID, a.ttl)
	if err != nil {
		a.logger.Warn().Err(err).Str("imdb_id", imdbID).Msg("cache freshness check failed")

		return nil
	}

	if !fresh {
		return nil
	}

	film, err := a.cache.GetFilm(ctx, imdbID)
	if err != nil {
		if !errors.Is(err, db.ErrFilmNotCached) {
			a.logger.Warn().Err(err).Str("imdb_id", imdbID).Msg("cache read failed")
		}

		return nil
	}

	return film.Payload
}

// sourceResult is the tagged outcome of one secondary source call:
// data on success, the warning tag on failure.
type sourceResult struct {
	data json.RawMessage
	tag  string
	err  error
}

type secondaryCall struct {
	tag  string
	call func(ctx context.Context) (json.RawMessage, error)
}

// fetchSecondaries fans out to every secondary source concurrently and joins.
// Results come back in a fixed order so warnings stay deterministic.
func (a *Aggregator) fetchSecondaries(ctx context.Context, imdbID string) []sourceResult {
	calls := []secondaryCall{
		{warnCredits, func(ctx context.Context) (json.RawMessage, error) { return a.imdb.Credits(ctx, imdbID) }},
		{warnImages, func(ctx context.Context) (json.RawMessage, error) { return a.imdb.Images(ctx, imdbID) }},
		{warnVideos, func(ctx context.Context) (json.RawMessage, error) { return a.imdb.Videos(ctx, imdbID) }},
		{warnParentsGuide, func(ctx context.Context) (json.RawMessage, error) { return a.imdb.ParentsGuide(ctx, imdbID) }},
		{warnCertificates, func(ctx context.Context) (json.RawMessage, error) { return a.imdb.Certificates(ctx, imdbID) }},
		{warnReleaseDates, func(ctx context.Context) (json.RawMessage, error) { return a.imdb.ReleaseDates(ctx, imdbID) }},
		{warnTrailer, func(ctx context.Context) (json.RawMessage, error) { return a.trailers.Trailer(ctx, imdbID) }},
		{warnStreaming, a.fetchStreaming(imdbID)},
	}

	results := make([]sourceResult, len(calls))

	var wg sync.WaitGroup

	for i, sc := range calls {
		wg.Add(1)

		go func(i int, sc secondaryCall) {
			defer wg.Done()

			data, err := sc.call(ctx)
			results[i] = sourceResult{data: data, tag: sc.tag, err: err}
		}(i, sc)
	}

	wg.Wait()

	return results
}

// fetchStreaming composes the two-step streaming lookup into one secondary
// call. An unresolvable title id is absence, not failure.
func (a *Aggregator) fetchStreaming(imdbID string) func(ctx context.Context) (json.RawMessage, error) {
	return func(ctx context.Context) (json.RawMessage, error) {
		titleID, err := a.streaming.LookupTitleID(ctx, imdbID)
		if err != nil {
			return nil, err
		}

		if titleID == 0 {
			return nil, nil
		}

		return a.streaming.StreamingSources(ctx, titleID)
	}
}

func (a *Aggregator) merge(imdbID string, metadata json.RawMessage, results []sourceResult) *Payload {
	payload := &Payload{
		IMDBID:   imdbID,
		Title:    titleFromMetadata(metadata),
		Metadata: metadata,
		Warnings: []string{},
	}

	sections := []*json.RawMessage{
		&payload.Credits,
		&payload.Images,
		&payload.Videos,
		&payload.ParentsGuide,
		&payload.Certificates,
		&payload.ReleaseDates,
		&payload.Trailer,
		&payload.Streaming,
	}

	for i, res := range results {
		if res.err != nil {
			a.logger.Warn().Err(res.err).Str("imdb_id", imdbID).Str("source", res.tag).Msg("secondary source failed")
			observability.SourceFailures.WithLabelValues(res.tag).Inc()

			payload.Warnings = append(payload.Warnings, res.tag)

			continue
		}

		*sections[i] = res.data
	}

	return payload
}

func titleFromMetadata(metadata json.RawMessage) string {
	for _, path := range []string{"primaryTitle", "title"} {
		if v := gjson.GetBytes(metadata, path); v.Type == gjson.String && v.String() != "" {
			return v.String()
		}
	}

	return ""
}
