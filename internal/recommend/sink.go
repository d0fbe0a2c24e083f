package recommend

import (
	"context"

	"github.com/rs/zerolog"

	db "github.com/lueurxax/filmosphere/internal/storage"
)

// AuditSink records moderation verdicts and recommendation outcomes. Writes
// are best-effort: implementations swallow failures so audit trouble never
// changes the caller's response.
type AuditSink interface {
	LogModeration(ctx context.Context, event db.ModerationEvent)
	LogRecommendation(ctx context.Context, event db.RecommendationEvent)
}

type storeSink struct {
	db     *db.DB
	logger *zerolog.Logger
}

func NewAuditSink(database *db.DB, logger *zerolog.Logger) AuditSink {
	return &storeSink{db: database, logger: logger}
}

func (s *storeSink) LogModeration(ctx context.Context, event db.ModerationEvent) {
	if err := s.db.InsertModerationEvent(ctx, event); err != nil {
		s.logger.Error().Err(err).Str("direction", event.Direction).Msg("failed to write moderation audit record")
	}
}

func (s *storeSink) LogRecommendation(ctx context.Context, event db.RecommendationEvent) {
	if err := s.db.InsertRecommendationEvent(ctx, event); err != nil {
		s.logger.Error().Err(err).Str("user_id", event.UserID).Msg("failed to write recommendation audit record")
	}
}
