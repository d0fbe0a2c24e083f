// Package recommend runs the recommendation pipeline: input moderation,
// history context, one LLM recommendation call, rendering and output
// moderation, with every verdict and outcome audited.
//
// The pipeline distinguishes two failure classes. A moderation block is a
// policy decision and comes back as a normal result with Blocked set; an LLM
// transport or parse failure is infrastructure trouble and comes back as an
// UpstreamError. Callers never have to string-match to tell them apart.
package recommend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/lueurxax/filmosphere/internal/jsonx"
	"github.com/lueurxax/filmosphere/internal/llm"
	"github.com/lueurxax/filmosphere/internal/moderation"
	"github.com/lueurxax/filmosphere/internal/observability"
	db "github.com/lueurxax/filmosphere/internal/storage"
)

const (
	recommendationTemperature = 0.7

	rawTextDiagnosticMaxLen = 2000
	auditReasonMaxLen       = 500

	flagLLMHTTPError  = "llm_http_error"
	flagParseError    = "recommendation_parse_error"
	directionInput    = "input"
	directionOutput   = "output"
	outcomeDemoMode   = "demo_mode"
	outcomeBlockedIn  = "blocked_input"
	outcomeBlockedOut = "blocked_output"
	outcomeUpstream   = "upstream_error"
	outcomeSuccess    = "success"
)

// ErrUpstream marks LLM transport and parse failures. Matched with errors.Is.
var ErrUpstream = errors.New("llm upstream failure")

// UpstreamError carries diagnostics for an LLM transport or parse failure.
// RawText holds the model's unparseable output, already truncated.
type UpstreamError struct {
	Message string
	RawText string
	Status  int
}

func (e *UpstreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
	}

	return e.Message
}

func (e *UpstreamError) Unwrap() error {
	return ErrUpstream
}

// Result is the outcome of one recommendation request. Blocked results are
// normal outcomes, not errors.
type Result struct {
	Blocked bool     `json:"blocked"`
	Message string   `json:"message,omitempty"`
	Items   []Item   `json:"items"`
	Flags   []string `json:"flags,omitempty"`
	Reason  string   `json:"reason,omitempty"`
}

// HistoryStore supplies the bounded user history for the prompt context.
type HistoryStore interface {
	GetHistoryContext(ctx context.Context, userID string) (*db.HistoryContext, error)
}

// Orchestrator wires the moderation classifier, the LLM client, the history
// store and the audit sink into the recommendation pipeline.
type Orchestrator struct {
	llm        llm.Client
	classifier *moderation.Classifier
	history    HistoryStore
	audit      AuditSink
	deadline   time.Duration
	logger     *zerolog.Logger
}

func NewOrchestrator(
	client llm.Client,
	classifier *moderation.Classifier,
	history HistoryStore,
	audit AuditSink,
	deadline time.Duration,
	logger *zerolog.Logger,
) *Orchestrator {
	return &Orchestrator{
		llm:        client,
		classifier: classifier,
		history:    history,
		audit:      audit,
		deadline:   deadline,
		logger:     logger,
	}
}

// Recommend runs the full pipeline for one user message. The message must
// already be validated (trimmed, non-blank, bounded) by the transport layer.
func (o *Orchestrator) Recommend(ctx context.Context, userID, message string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, o.deadline)
	defer cancel()

	if !o.llm.Configured() {
		return o.demoMode(ctx, userID, message), nil
	}

	if result := o.moderateInput(ctx, userID, message); result != nil {
		return result, nil
	}

	history := o.historyContext(ctx, userID)

	rawText, err := o.callRecommendation(ctx, history, message)
	if err != nil {
		return nil, o.upstreamFailure(ctx, userID, message, err)
	}

	items, err := parseItems(rawText)
	if err != nil {
		return nil, o.parseFailure(ctx, userID, message, rawText)
	}

	answer := Render(items)

	if result := o.moderateOutput(ctx, userID, message, answer); result != nil {
		return result, nil
	}

	return o.success(ctx, userID, message, answer, items), nil
}

func (o *Orchestrator) demoMode(ctx context.Context, userID, message string) *Result {
	o.audit.LogRecommendation(ctx, db.RecommendationEvent{
		UserID:      userID,
		UserMessage: message,
		Blocked:     false,
		AnswerText:  demoModeMessage,
		Flags:       []string{},
		Reason:      outcomeDemoMode,
	})
	observability.Recommendations.WithLabelValues(outcomeDemoMode).Inc()

	return &Result{Blocked: false, Message: demoModeMessage, Items: []Item{}}
}

// moderateInput returns a blocked result when input moderation rejects the
// message, nil when the pipeline should continue.
func (o *Orchestrator) moderateInput(ctx context.Context, userID, message string) *Result {
	verdict := o.classifier.Classify(ctx, message)

	o.audit.LogModeration(ctx, db.ModerationEvent{
		UserID:    userID,
		Direction: directionInput,
		Text:      message,
		Allow:     verdict.Allow,
		Flags:     verdict.Flags,
		Reason:    verdict.Reason,
	})

	if verdict.Allow {
		return nil
	}

	o.audit.LogRecommendation(ctx, db.RecommendationEvent{
		UserID:      userID,
		UserMessage: message,
		Blocked:     true,
		AnswerText:  "Request blocked (input moderation).",
		Flags:       verdict.Flags,
		Reason:      verdict.Reason,
	})
	observability.Recommendations.WithLabelValues(outcomeBlockedIn).Inc()

	return &Result{
		Blocked: true,
		Message: blockedInputMessage,
		Items:   []Item{},
		Flags:   verdict.Flags,
		Reason:  verdict.Reason,
	}
}

// historyContext loads the user's bounded history, degrading to an explicit
// cold-start context when the store is unavailable.
func (o *Orchestrator) historyContext(ctx context.Context, userID string) *db.HistoryContext {
	history, err := o.history.GetHistoryContext(ctx, userID)
	if err != nil {
		o.logger.Warn().Err(err).Str("user_id", userID).Msg("history context unavailable, falling back to cold start")

		return &db.HistoryContext{
			UserID:         userID,
			WatchedIMDBIDs: []string{},
			RecentRatings:  []db.RatingEntry{},
			RecentReviews:  []db.ReviewEntry{},
			RecentMoods:    []db.MoodEntry{},
		}
	}

	return history
}

func (o *Orchestrator) callRecommendation(ctx context.Context, history *db.HistoryContext, message string) (string, error) {
	contextJSON, err := json.Marshal(history)
	if err != nil {
		return "", fmt.Errorf("encode history context: %w", err)
	}

	userPrompt := fmt.Sprintf("USER_CONTEXT (JSON):\n%s\n\nUSER_MESSAGE:\n%s\n", contextJSON, message)

	started := time.Now()

	rawText, err := o.llm.Chat(ctx, systemPrompt, userPrompt, recommendationTemperature)

	observability.LLMRequestDuration.WithLabelValues("recommendation").Observe(time.Since(started).Seconds())

	return rawText, err
}

func (o *Orchestrator) upstreamFailure(ctx context.Context, userID, message string, err error) error {
	o.logger.Error().Err(err).Msg("recommendation llm call failed")

	status, _ := llm.HTTPStatus(err)

	o.audit.LogRecommendation(ctx, db.RecommendationEvent{
		UserID:      userID,
		UserMessage: message,
		Blocked:     true,
		AnswerText:  "LLM HTTP error",
		Flags:       []string{flagLLMHTTPError},
		Reason:      db.Truncate(err.Error(), auditReasonMaxLen),
	})
	observability.Recommendations.WithLabelValues(outcomeUpstream).Inc()

	return &UpstreamError{Message: "LLM request failed", Status: status}
}

func (o *Orchestrator) parseFailure(ctx context.Context, userID, message, rawText string) error {
	o.logger.Error().Int("len", len(rawText)).Msg("recommendation response is not the expected JSON")

	o.audit.LogRecommendation(ctx, db.RecommendationEvent{
		UserID:      userID,
		UserMessage: message,
		Blocked:     true,
		AnswerText:  "Recommendation JSON parse failed",
		Flags:       []string{flagParseError},
		Reason:      db.Truncate(rawText, auditReasonMaxLen),
	})
	observability.Recommendations.WithLabelValues(outcomeUpstream).Inc()

	return &UpstreamError{
		Message: "Recommendation JSON parse failed",
		RawText: db.Truncate(rawText, rawTextDiagnosticMaxLen),
	}
}

// moderateOutput returns a blocked result when the rendered answer fails
// moderation, nil when it may be shown.
func (o *Orchestrator) moderateOutput(ctx context.Context, userID, message, answer string) *Result {
	verdict := o.classifier.Classify(ctx, answer)

	o.audit.LogModeration(ctx, db.ModerationEvent{
		UserID:    userID,
		Direction: directionOutput,
		Text:      answer,
		Allow:     verdict.Allow,
		Flags:     verdict.Flags,
		Reason:    verdict.Reason,
	})

	if verdict.Allow {
		return nil
	}

	o.audit.LogRecommendation(ctx, db.RecommendationEvent{
		UserID:      userID,
		UserMessage: message,
		Blocked:     true,
		AnswerText:  "Answer blocked (output moderation).",
		Flags:       verdict.Flags,
		Reason:      verdict.Reason,
	})
	observability.Recommendations.WithLabelValues(outcomeBlockedOut).Inc()

	return &Result{
		Blocked: true,
		Message: blockedOutputMessage,
		Items:   []Item{},
		Flags:   verdict.Flags,
		Reason:  verdict.Reason,
	}
}

func (o *Orchestrator) success(ctx context.Context, userID, message, answer string, items []Item) *Result {
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		itemsJSON = json.RawMessage("[]")
	}

	o.audit.LogRecommendation(ctx, db.RecommendationEvent{
		UserID:      userID,
		UserMessage: message,
		Blocked:     false,
		AnswerText:  answer,
		Items:       itemsJSON,
		Flags:       []string{},
		Reason:      "ok",
	})
	observability.Recommendations.WithLabelValues(outcomeSuccess).Inc()

	return &Result{Blocked: false, Message: answer, Items: items}
}

// parseItems extracts the items list from the model's output. The object
// itself must parse and carry an items list; individual entries are read
// leniently so one malformed entry cannot sink the whole answer.
func parseItems(rawText string) ([]Item, error) {
	var rec struct {
		Items json.RawMessage `json:"items"`
	}

	if err := jsonx.UnmarshalObject(rawText, &rec); err != nil {
		return nil, err
	}

	if len(rec.Items) == 0 {
		return nil, errors.New("response has no items field")
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(rec.Items, &entries); err != nil {
		return nil, fmt.Errorf("items is not a list: %w", err)
	}

	items := make([]Item, 0, len(entries))

	for _, entry := range entries {
		item := Item{
			Title:  gjson.GetBytes(entry, "title").String(),
			Year:   int(gjson.GetBytes(entry, "year").Int()),
			Reason: gjson.GetBytes(entry, "reason").String(),
		}

		for _, tag := range gjson.GetBytes(entry, "tags").Array() {
			item.Tags = append(item.Tags, tag.String())
		}

		items = append(items, item)
	}

	return items, nil
}
