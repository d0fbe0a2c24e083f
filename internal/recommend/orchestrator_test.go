package recommend

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lueurxax/filmosphere/internal/moderation"
	db "github.com/lueurxax/filmosphere/internal/storage"
)

const (
	testUserID   = "user-1"
	testMessage  = "recommend me a heist movie"
	testDeadline = 30 * time.Second

	moderationAllow = `{"allow": true, "flags": [], "reason": ""}`
	moderationBlock = `{"allow": false, "flags": ["spoiler"], "reason": "Asks for the ending."}`

	recommendationOK = `{"items": [{"title": "Heat", "year": 1995, "reason": "A meticulous heist.", "tags": ["crime"]}]}`
)

// scriptedLLM plays back one canned response (or error) per Chat call, in
// order: input moderation, recommendation, output moderation.
type scriptedLLM struct {
	mu         sync.Mutex
	responses  []string
	errs       []error
	calls      int
	configured bool
}

func (s *scriptedLLM) Chat(_ context.Context, _, _ string, _ float32) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.calls
	s.calls++

	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}

	if err != nil {
		return "", err
	}

	if i >= len(s.responses) {
		return "", errors.New("unexpected extra llm call")
	}

	return s.responses[i], nil
}

func (s *scriptedLLM) Configured() bool {
	return s.configured
}

func (s *scriptedLLM) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.calls
}

// recordingSink captures audit events in memory.
type recordingSink struct {
	mu              sync.Mutex
	moderations     []db.ModerationEvent
	recommendations []db.RecommendationEvent
}

func (s *recordingSink) LogModeration(_ context.Context, event db.ModerationEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.moderations = append(s.moderations, event)
}

func (s *recordingSink) LogRecommendation(_ context.Context, event db.RecommendationEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.recommendations = append(s.recommendations, event)
}

type stubHistory struct {
	ctx *db.HistoryContext
	err error
}

func (s *stubHistory) GetHistoryContext(_ context.Context, userID string) (*db.HistoryContext, error) {
	if s.err != nil {
		return nil, s.err
	}

	if s.ctx != nil {
		return s.ctx, nil
	}

	return &db.HistoryContext{UserID: userID}, nil
}

func newTestOrchestrator(client *scriptedLLM, sink *recordingSink, history HistoryStore) *Orchestrator {
	l := zerolog.Nop()

	if history == nil {
		history = &stubHistory{}
	}

	return NewOrchestrator(client, moderation.NewClassifier(client, &l), history, sink, testDeadline, &l)
}

func TestRecommend_DemoMode(t *testing.T) {
	client := &scriptedLLM{configured: false}
	sink := &recordingSink{}
	o := newTestOrchestrator(client, sink, nil)

	result, err := o.Recommend(context.Background(), testUserID, testMessage)
	require.NoError(t, err)

	assert.False(t, result.Blocked)
	assert.Empty(t, result.Items)
	assert.Equal(t, demoModeMessage, result.Message)
	assert.Zero(t, client.callCount(), "demo mode must not call the model")

	require.Len(t, sink.recommendations, 1)
	assert.False(t, sink.recommendations[0].Blocked)
	assert.Equal(t, "demo_mode", sink.recommendations[0].Reason)
}

func TestRecommend_InputBlocked(t *testing.T) {
	client := &scriptedLLM{configured: true, responses: []string{moderationBlock}}
	sink := &recordingSink{}
	o := newTestOrchestrator(client, sink, nil)

	result, err := o.Recommend(context.Background(), testUserID, "tell me how the movie ends, who dies?")
	require.NoError(t, err)

	assert.True(t, result.Blocked)
	assert.Equal(t, []string{"spoiler"}, result.Flags)
	assert.Empty(t, result.Items)
	assert.Equal(t, blockedInputMessage, result.Message)
	assert.Equal(t, 1, client.callCount(), "a blocked input must never reach the recommendation model")

	require.Len(t, sink.moderations, 1)
	assert.Equal(t, "input", sink.moderations[0].Direction)
	assert.False(t, sink.moderations[0].Allow)

	require.Len(t, sink.recommendations, 1)
	assert.True(t, sink.recommendations[0].Blocked)
}

func TestRecommend_Success(t *testing.T) {
	client := &scriptedLLM{configured: true, responses: []string{moderationAllow, recommendationOK, moderationAllow}}
	sink := &recordingSink{}
	o := newTestOrchestrator(client, sink, nil)

	result, err := o.Recommend(context.Background(), testUserID, testMessage)
	require.NoError(t, err)

	assert.False(t, result.Blocked)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "Heat", result.Items[0].Title)
	assert.Equal(t, 1995, result.Items[0].Year)
	assert.Equal(t, []string{"crime"}, result.Items[0].Tags)
	assert.Equal(t, "- Heat (1995) — A meticulous heist.", result.Message)
	assert.Equal(t, 3, client.callCount())

	require.Len(t, sink.moderations, 2)
	assert.Equal(t, "input", sink.moderations[0].Direction)
	assert.Equal(t, "output", sink.moderations[1].Direction)

	require.Len(t, sink.recommendations, 1)
	assert.False(t, sink.recommendations[0].Blocked)
	assert.Equal(t, "ok", sink.recommendations[0].Reason)

	var loggedItems []Item
	require.NoError(t, json.Unmarshal(sink.recommendations[0].Items, &loggedItems))
	assert.Len(t, loggedItems, 1)
}

func TestRecommend_OutputBlocked(t *testing.T) {
	client := &scriptedLLM{configured: true, responses: []string{moderationAllow, recommendationOK, moderationBlock}}
	sink := &recordingSink{}
	o := newTestOrchestrator(client, sink, nil)

	result, err := o.Recommend(context.Background(), testUserID, testMessage)
	require.NoError(t, err)

	assert.True(t, result.Blocked)
	assert.Equal(t, blockedOutputMessage, result.Message)
	assert.Empty(t, result.Items, "a censored answer must not leak its items")
}

func TestRecommend_MalformedJSONIsUpstreamFailure(t *testing.T) {
	raw := "Sure! Here are some movies: 1. Inception"
	client := &scriptedLLM{configured: true, responses: []string{moderationAllow, raw}}
	sink := &recordingSink{}
	o := newTestOrchestrator(client, sink, nil)

	result, err := o.Recommend(context.Background(), testUserID, testMessage)
	require.Error(t, err)
	assert.Nil(t, result)
	require.ErrorIs(t, err, ErrUpstream, "a parse failure is infrastructure trouble, not a content block")

	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, raw, upstream.RawText, "raw text must be kept for diagnostics")

	require.Len(t, sink.recommendations, 1)
	assert.Equal(t, []string{"recommendation_parse_error"}, sink.recommendations[0].Flags)
}

func TestRecommend_ItemsMustBeAList(t *testing.T) {
	client := &scriptedLLM{configured: true, responses: []string{moderationAllow, `{"items": "Heat"}`}}
	o := newTestOrchestrator(client, &recordingSink{}, nil)

	_, err := o.Recommend(context.Background(), testUserID, testMessage)
	require.ErrorIs(t, err, ErrUpstream)
}

func TestRecommend_TransportErrorIsUpstreamFailure(t *testing.T) {
	apiErr := &openai.APIError{HTTPStatusCode: 503, Message: "overloaded"}
	client := &scriptedLLM{
		configured: true,
		responses:  []string{moderationAllow},
		errs:       []error{nil, apiErr},
	}
	sink := &recordingSink{}
	o := newTestOrchestrator(client, sink, nil)

	_, err := o.Recommend(context.Background(), testUserID, testMessage)
	require.ErrorIs(t, err, ErrUpstream)

	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, 503, upstream.Status)

	require.Len(t, sink.recommendations, 1)
	assert.Equal(t, []string{"llm_http_error"}, sink.recommendations[0].Flags)
}

func TestRecommend_HistoryFailureDegradesToColdStart(t *testing.T) {
	client := &scriptedLLM{configured: true, responses: []string{moderationAllow, recommendationOK, moderationAllow}}
	history := &stubHistory{err: errors.New("db down")}
	o := newTestOrchestrator(client, &recordingSink{}, history)

	result, err := o.Recommend(context.Background(), testUserID, testMessage)
	require.NoError(t, err, "history trouble must not sink the recommendation")
	assert.False(t, result.Blocked)
}

func TestRecommend_MalformedItemEntriesAreDropped(t *testing.T) {
	response := `{"items": [{"title": "Heat", "year": 1995, "reason": "a"}, 42, {"year": 2000}]}`
	client := &scriptedLLM{configured: true, responses: []string{moderationAllow, response, moderationAllow}}
	o := newTestOrchestrator(client, &recordingSink{}, nil)

	result, err := o.Recommend(context.Background(), testUserID, testMessage)
	require.NoError(t, err)

	assert.Equal(t, "- Heat (1995) — a", result.Message, "entries without titles render to nothing")
}
