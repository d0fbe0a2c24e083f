// Package moderation classifies free-text content with an LLM before and
// after recommendation generation. Any transport or parse failure yields a
// blocking verdict: the classifier fails closed, never open.
package moderation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/lueurxax/filmosphere/internal/jsonx"
	"github.com/lueurxax/filmosphere/internal/llm"
	"github.com/lueurxax/filmosphere/internal/observability"
	db "github.com/lueurxax/filmosphere/internal/storage"
)

const (
	reasonMaxLen = 300

	// Internal failure flags. The category vocabulary itself is open and
	// provider-defined; only failures are fixed here.
	FlagParseError = "moderation_parse_error"
	FlagHTTPError  = "moderation_http_error"
)

const systemPrompt = `You are a strict content moderation classifier for a movie app.
Classify the TEXT for:
- spoiler (reveals OR ASKS for plot twists/endings/deaths/ending)
- profanity
- hate / racism / discrimination
- harassment / bullying
- sexual / explicit content

Return ONLY valid JSON (no markdown, no extra text).
Schema: {"allow": boolean, "flags": string[], "reason": string}
Rules:
- If ANY exists, allow=false and include relevant flags.
- If none exists, allow=true and flags=[]
- reason must be short (max 1 sentence).
`

// Verdict is the outcome of classifying one piece of text.
type Verdict struct {
	Allow  bool     `json:"allow"`
	Flags  []string `json:"flags"`
	Reason string   `json:"reason"`
}

// Classifier wraps an LLM chat call with the fixed classification prompt.
type Classifier struct {
	llm    llm.Client
	logger *zerolog.Logger
}

func NewClassifier(client llm.Client, logger *zerolog.Logger) *Classifier {
	return &Classifier{llm: client, logger: logger}
}

// Classify returns a verdict for the given text. Classification runs at
// temperature 0. The only path to Allow=true is a successfully parsed,
// well-formed response with allow=true.
func (c *Classifier) Classify(ctx context.Context, text string) Verdict {
	userPrompt := fmt.Sprintf("TEXT:\n%s\n\nReturn JSON only.", text)

	content, err := c.llm.Chat(ctx, systemPrompt, userPrompt, 0)
	if err != nil {
		if status, ok := llm.HTTPStatus(err); ok {
			c.logger.Warn().Int("status", status).Msg("moderation llm rejected request")
			observability.ModerationVerdicts.WithLabelValues(FlagHTTPError).Inc()

			return Verdict{
				Allow:  false,
				Flags:  []string{FlagHTTPError},
				Reason: fmt.Sprintf("Moderation LLM failed (%d).", status),
			}
		}

		c.logger.Warn().Err(err).Msg("moderation llm transport failure")
		observability.ModerationVerdicts.WithLabelValues(FlagHTTPError).Inc()

		return Verdict{
			Allow:  false,
			Flags:  []string{FlagHTTPError},
			Reason: "Moderation LLM unreachable.",
		}
	}

	var raw struct {
		Allow  bool            `json:"allow"`
		Flags  json.RawMessage `json:"flags"`
		Reason string          `json:"reason"`
	}

	if err := jsonx.UnmarshalObject(content, &raw); err != nil {
		c.logger.Warn().Err(err).Msg("moderation response parse failed")
		observability.ModerationVerdicts.WithLabelValues(FlagParseError).Inc()

		return Verdict{
			Allow:  false,
			Flags:  []string{FlagParseError},
			Reason: "Moderation JSON parse failed.",
		}
	}

	verdict := Verdict{
		Allow:  raw.Allow,
		Flags:  normalizeFlags(raw.Flags),
		Reason: db.Truncate(raw.Reason, reasonMaxLen),
	}

	status := "allowed"
	if !verdict.Allow {
		status = "blocked"
	}

	observability.ModerationVerdicts.WithLabelValues(status).Inc()

	return verdict
}

// normalizeFlags stringifies, trims, lowercases and drops empty entries. A
// scalar value in place of a list is coerced to a single-element list rather
// than failing the whole verdict.
func normalizeFlags(raw json.RawMessage) []string {
	var entries []interface{}

	if err := json.Unmarshal(raw, &entries); err != nil {
		var scalar interface{}
		if err := json.Unmarshal(raw, &scalar); err != nil || scalar == nil {
			return []string{}
		}

		entries = []interface{}{scalar}
	}

	flags := make([]string, 0, len(entries))

	for _, f := range entries {
		s := strings.ToLower(strings.TrimSpace(fmt.Sprint(f)))
		if s == "" {
			continue
		}

		flags = append(flags, s)
	}

	return flags
}
