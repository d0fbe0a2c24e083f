package jsonx

import (
	"errors"
	"testing"
)

type verdict struct {
	Allow  bool     `json:"allow"`
	Flags  []string `json:"flags"`
	Reason string   `json:"reason"`
}

func TestUnmarshalObject_Direct(t *testing.T) {
	var v verdict
	if err := UnmarshalObject(`{"allow": true, "flags": [], "reason": "clean"}`, &v); err != nil {
		t.Fatalf("UnmarshalObject() error = %v", err)
	}

	if !v.Allow || v.Reason != "clean" {
		t.Errorf("unexpected verdict: %+v", v)
	}
}

func TestUnmarshalObject_CodeFenced(t *testing.T) {
	text := "```json\n{\"allow\": false, \"flags\": [\"spoiler\"], \"reason\": \"asks for ending\"}\n```"

	var v verdict
	if err := UnmarshalObject(text, &v); err != nil {
		t.Fatalf("UnmarshalObject() error = %v", err)
	}

	if v.Allow {
		t.Error("expected allow=false")
	}

	if len(v.Flags) != 1 || v.Flags[0] != "spoiler" {
		t.Errorf("unexpected flags: %v", v.Flags)
	}
}

func TestUnmarshalObject_EmbeddedInProse(t *testing.T) {
	text := `Sure, here is the classification: {"allow": true, "flags": [], "reason": "ok"} Hope that helps!`

	var v verdict
	if err := UnmarshalObject(text, &v); err != nil {
		t.Fatalf("UnmarshalObject() error = %v", err)
	}

	if !v.Allow {
		t.Error("expected allow=true")
	}
}

func TestUnmarshalObject_NoObject(t *testing.T) {
	var v verdict

	err := UnmarshalObject("Sure! Here are some movies: 1. Inception", &v)
	if !errors.Is(err, ErrNoObject) {
		t.Fatalf("expected ErrNoObject, got %v", err)
	}
}

func TestUnmarshalObject_Empty(t *testing.T) {
	var v verdict

	if err := UnmarshalObject("", &v); !errors.Is(err, ErrNoObject) {
		t.Fatalf("expected ErrNoObject, got %v", err)
	}
}

func TestStripCodeFences(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"no fence", `{"a":1}`, `{"a":1}`},
		{"plain fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"whitespace", "  ```json\n{\"a\":1}\n```  ", `{"a":1}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := StripCodeFences(tc.input); got != tc.want {
				t.Errorf("StripCodeFences(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}
