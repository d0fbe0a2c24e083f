package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/tidwall/gjson"
)

// ErrFilmNotCached is returned when no cache record exists for an id.
var ErrFilmNotCached = errors.New("film not cached")

// Film is one cached aggregation record, keyed by IMDb id.
type Film struct {
	IMDBID    string
	Title     string
	Year      *int
	PosterURL *string
	Payload   json.RawMessage
	CachedAt  *time.Time
}

// GetFilm returns the cached record for the given IMDb id.
func (db *DB) GetFilm(ctx context.Context, imdbID string) (*Film, error) {
	row := db.Pool.QueryRow(ctx, `
		SELECT imdb_id, title, year, poster_url, full_payload, cached_at
		FROM films
		WHERE imdb_id = $1
	`, imdbID)

	var (
		id      string
		title   string
		year    pgtype.Int4
		poster  pgtype.Text
		payload []byte
		cached  pgtype.Timestamptz
	)

	if err := row.Scan(&id, &title, &year, &poster, &payload, &cached); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrFilmNotCached
		}

		return nil, fmt.Errorf("get film: %w", err)
	}

	film := &Film{
		IMDBID:  id,
		Title:   title,
		Payload: payload,
	}

	if year.Valid {
		y := int(year.Int32)
		film.Year = &y
	}

	if poster.Valid {
		p := poster.String
		film.PosterURL = &p
	}

	if cached.Valid {
		t := cached.Time
		film.CachedAt = &t
	}

	return film, nil
}

// UpsertFilm stores the merged payload for an id, overwriting any previous
// record and stamping cached_at with the current time. Display fields are
// derived from the payload with a deterministic fallback chain.
func (db *DB) UpsertFilm(ctx context.Context, imdbID string, payload json.RawMessage) error {
	title, year, posterURL := deriveDisplayFields(payload)

	var yearVal pgtype.Int4
	if year != nil {
		yearVal = pgtype.Int4{Int32: int32(*year), Valid: true}
	}

	var posterVal pgtype.Text
	if posterURL != "" {
		posterVal = pgtype.Text{String: posterURL, Valid: true}
	}

	_, err := db.Pool.Exec(ctx, `
		INSERT INTO films (imdb_id, title, year, poster_url, full_payload, cached_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (imdb_id) DO UPDATE SET
			title = EXCLUDED.title,
			year = EXCLUDED.year,
			poster_url = EXCLUDED.poster_url,
			full_payload = EXCLUDED.full_payload,
			cached_at = EXCLUDED.cached_at
	`, imdbID, title, yearVal, posterVal, []byte(payload))
	if err != nil {
		return fmt.Errorf("upsert film: %w", err)
	}

	return nil
}

// IsFresh reports whether the cached record for an id is younger than the
// TTL. A missing record or a record without a cached_at stamp is stale.
func (db *DB) IsFresh(ctx context.Context, imdbID string, ttl time.Duration) (bool, error) {
	row := db.Pool.QueryRow(ctx, `
		SELECT cached_at FROM films WHERE imdb_id = $1
	`, imdbID)

	var cached pgtype.Timestamptz

	if err := row.Scan(&cached); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}

		return false, fmt.Errorf("check film freshness: %w", err)
	}

	if !cached.Valid {
		return false, nil
	}

	return time.Since(cached.Time) < ttl, nil
}

// deriveDisplayFields extracts title, year and poster URL from a merged
// payload. Each field tries an ordered list of candidate paths and takes the
// first present value; the function is total and never fails.
func deriveDisplayFields(payload []byte) (string, *int, string) {
	title := firstString(payload, "metadata.primaryTitle", "title")
	posterURL := firstString(payload, "metadata.poster_url", "metadata.primaryImage.url")

	var year *int

	for _, path := range []string{"metadata.startYear", "metadata.year"} {
		if v := gjson.GetBytes(payload, path); v.Exists() && v.Type == gjson.Number {
			y := int(v.Int())
			year = &y

			break
		}
	}

	return title, year, posterURL
}

func firstString(payload []byte, paths ...string) string {
	for _, path := range paths {
		if v := gjson.GetBytes(payload, path); v.Exists() && v.Type == gjson.String && v.String() != "" {
			return v.String()
		}
	}

	return ""
}
