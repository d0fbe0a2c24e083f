// Package jsonx extracts JSON objects from LLM responses that may be wrapped
// in Markdown code fences or surrounded by prose.
package jsonx

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// ErrNoObject is returned when no JSON object could be extracted.
var ErrNoObject = errors.New("no json object in text")

var (
	fenceOpenRe  = regexp.MustCompile("^```[a-zA-Z]*\\s*")
	fenceCloseRe = regexp.MustCompile("\\s*```$")
	objectRe     = regexp.MustCompile(`(?s)\{.*\}`)
)

// StripCodeFences removes a Markdown code fence wrapper if present.
func StripCodeFences(text string) string {
	t := strings.TrimSpace(text)
	if !strings.HasPrefix(t, "```") {
		return t
	}

	t = fenceOpenRe.ReplaceAllString(t, "")
	t = fenceCloseRe.ReplaceAllString(t, "")

	return strings.TrimSpace(t)
}

// UnmarshalObject decodes the first JSON object found in text into target.
// It tries a direct parse first, then falls back to the outermost {...} block.
func UnmarshalObject(text string, target interface{}) error {
	t := StripCodeFences(text)
	if t == "" {
		return ErrNoObject
	}

	if json.Valid([]byte(t)) && strings.HasPrefix(t, "{") {
		return json.Unmarshal([]byte(t), target)
	}

	block := objectRe.FindString(t)
	if block == "" {
		return ErrNoObject
	}

	if err := json.Unmarshal([]byte(block), target); err != nil {
		return err
	}

	return nil
}
