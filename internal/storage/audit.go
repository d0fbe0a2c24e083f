package db

import (
	"context"
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// Maximum persisted lengths for audit text fields. Enforced here so every
// write path respects them regardless of input length.
const (
	auditTextMaxLen   = 5000
	auditReasonMaxLen = 300

	recoMessageMaxLen = 2000
	recoAnswerMaxLen  = 5000
	recoReasonMaxLen  = 500
)

// ModerationEvent is one audit record of a moderation verdict.
type ModerationEvent struct {
	UserID    string
	Direction string // "input" or "output"
	Text      string
	Allow     bool
	Flags     []string
	Reason    string
}

// RecommendationEvent is one audit record of a recommendation outcome.
type RecommendationEvent struct {
	UserID      string
	UserMessage string
	Blocked     bool
	AnswerText  string
	Items       json.RawMessage
	Flags       []string
	Reason      string
}

// InsertModerationEvent appends a moderation audit record.
func (db *DB) InsertModerationEvent(ctx context.Context, event ModerationEvent) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO moderation_log (id, user_id, direction, text, allow, flags, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
	`,
		uuid.New().String(),
		nullableText(event.UserID),
		event.Direction,
		Truncate(event.Text, auditTextMaxLen),
		event.Allow,
		event.Flags,
		Truncate(event.Reason, auditReasonMaxLen),
	)
	if err != nil {
		return fmt.Errorf("insert moderation event: %w", err)
	}

	return nil
}

// InsertRecommendationEvent appends a recommendation audit record.
func (db *DB) InsertRecommendationEvent(ctx context.Context, event RecommendationEvent) error {
	items := event.Items
	if items == nil {
		items = json.RawMessage("[]")
	}

	_, err := db.Pool.Exec(ctx, `
		INSERT INTO recommendation_log (id, user_id, user_message, blocked, answer_text, items, flags, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
	`,
		uuid.New().String(),
		event.UserID,
		Truncate(event.UserMessage, recoMessageMaxLen),
		event.Blocked,
		Truncate(event.AnswerText, recoAnswerMaxLen),
		[]byte(items),
		event.Flags,
		Truncate(event.Reason, recoReasonMaxLen),
	)
	if err != nil {
		return fmt.Errorf("insert recommendation event: %w", err)
	}

	return nil
}

func nullableText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

// Truncate bounds a string to max bytes without splitting a UTF-8 sequence.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}

	cut := s[:max]
	for len(cut) > 0 && !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}

	return cut
}
