package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// History bounds. The recommendation context is deliberately small: it is
// serialized into an LLM prompt.
const (
	historyWatchedLimit = 50
	historyRatingsLimit = 50
	historyReviewsLimit = 30
	historyMoodsLimit   = 30

	reviewExcerptMaxLen = 400
)

// RatingEntry is one recent rating in the history context.
type RatingEntry struct {
	IMDBID string  `json:"imdb_id"`
	Rating float32 `json:"rating"`
}

// ReviewEntry is one recent review excerpt in the history context.
type ReviewEntry struct {
	IMDBID string `json:"imdb_id"`
	Text   string `json:"text"`
}

// MoodEntry is one recent mood tracking entry in the history context.
type MoodEntry struct {
	IMDBID     string `json:"imdb_id"`
	MoodBefore string `json:"mood_before,omitempty"`
	MoodAfter  string `json:"mood_after,omitempty"`
}

// HistoryContext is the bounded view of a user's recent activity, serialized
// into the recommendation prompt.
type HistoryContext struct {
	UserID         string        `json:"user_id"`
	HasHistory     bool          `json:"has_history"`
	WatchedIMDBIDs []string      `json:"watched_imdb_ids"`
	RecentRatings  []RatingEntry `json:"recent_ratings"`
	RecentReviews  []ReviewEntry `json:"recent_reviews"`
	RecentMoods    []MoodEntry   `json:"recent_moods"`
}

// GetHistoryContext assembles the bounded history context for a user. The
// watched/rating/review/mood tables are owned by the CRUD layer; this is a
// read-only view.
func (db *DB) GetHistoryContext(ctx context.Context, userID string) (*HistoryContext, error) {
	watched, err := db.recentWatched(ctx, userID)
	if err != nil {
		return nil, err
	}

	ratings, err := db.recentRatings(ctx, userID)
	if err != nil {
		return nil, err
	}

	reviews, err := db.recentReviews(ctx, userID)
	if err != nil {
		return nil, err
	}

	moods, err := db.recentMoods(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &HistoryContext{
		UserID:         userID,
		HasHistory:     len(watched) > 0 || len(ratings) > 0 || len(reviews) > 0 || len(moods) > 0,
		WatchedIMDBIDs: watched,
		RecentRatings:  ratings,
		RecentReviews:  reviews,
		RecentMoods:    moods,
	}, nil
}

func (db *DB) recentWatched(ctx context.Context, userID string) ([]string, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT imdb_id FROM watched_films
		WHERE user_id = $1
		ORDER BY id DESC
		LIMIT $2
	`, userID, historyWatchedLimit)
	if err != nil {
		return nil, fmt.Errorf("get watched films: %w", err)
	}
	defer rows.Close()

	watched := make([]string, 0, historyWatchedLimit)

	for rows.Next() {
		var imdbID string
		if err := rows.Scan(&imdbID); err != nil {
			return nil, fmt.Errorf("scan watched film: %w", err)
		}

		watched = append(watched, imdbID)
	}

	return watched, rows.Err()
}

func (db *DB) recentRatings(ctx context.Context, userID string) ([]RatingEntry, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT imdb_id, overall_rating FROM ratings
		WHERE user_id = $1
		ORDER BY id DESC
		LIMIT $2
	`, userID, historyRatingsLimit)
	if err != nil {
		return nil, fmt.Errorf("get ratings: %w", err)
	}
	defer rows.Close()

	return scanRatings(rows)
}

func scanRatings(rows pgx.Rows) ([]RatingEntry, error) {
	ratings := make([]RatingEntry, 0, historyRatingsLimit)

	for rows.Next() {
		var (
			imdbID string
			rating pgtype.Float4
		)

		if err := rows.Scan(&imdbID, &rating); err != nil {
			return nil, fmt.Errorf("scan rating: %w", err)
		}

		ratings = append(ratings, RatingEntry{IMDBID: imdbID, Rating: rating.Float32})
	}

	return ratings, rows.Err()
}

func (db *DB) recentReviews(ctx context.Context, userID string) ([]ReviewEntry, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT imdb_id, content FROM reviews
		WHERE user_id = $1
		ORDER BY id DESC
		LIMIT $2
	`, userID, historyReviewsLimit)
	if err != nil {
		return nil, fmt.Errorf("get reviews: %w", err)
	}
	defer rows.Close()

	reviews := make([]ReviewEntry, 0, historyReviewsLimit)

	for rows.Next() {
		var (
			imdbID  string
			content pgtype.Text
		)

		if err := rows.Scan(&imdbID, &content); err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}

		reviews = append(reviews, ReviewEntry{
			IMDBID: imdbID,
			Text:   Truncate(content.String, reviewExcerptMaxLen),
		})
	}

	return reviews, rows.Err()
}

func (db *DB) recentMoods(ctx context.Context, userID string) ([]MoodEntry, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT imdb_id, mood_before, mood_after FROM moods
		WHERE user_id = $1
		ORDER BY id DESC
		LIMIT $2
	`, userID, historyMoodsLimit)
	if err != nil {
		return nil, fmt.Errorf("get moods: %w", err)
	}
	defer rows.Close()

	moods := make([]MoodEntry, 0, historyMoodsLimit)

	for rows.Next() {
		var (
			imdbID     string
			moodBefore pgtype.Text
			moodAfter  pgtype.Text
		)

		if err := rows.Scan(&imdbID, &moodBefore, &moodAfter); err != nil {
			return nil, fmt.Errorf("scan mood: %w", err)
		}

		moods = append(moods, MoodEntry{
			IMDBID:     imdbID,
			MoodBefore: moodBefore.String,
			MoodAfter:  moodAfter.String,
		})
	}

	return moods, rows.Err()
}
