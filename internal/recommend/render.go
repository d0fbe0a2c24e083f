package recommend

import (
	"fmt"
	"strings"
)

const emptyAnswerPlaceholder = "(Empty response)"

// Item is one recommended film in the model's answer.
type Item struct {
	Title  string   `json:"title"`
	Year   int      `json:"year,omitempty"`
	Reason string   `json:"reason,omitempty"`
	Tags   []string `json:"tags,omitempty"`
}

// Render turns the item list into a bullet answer. Items without a title are
// dropped; when nothing renders it returns a fixed placeholder. It never fails.
func Render(items []Item) string {
	lines := make([]string, 0, len(items))

	for _, it := range items {
		title := strings.TrimSpace(it.Title)
		if title == "" {
			continue
		}

		reason := strings.TrimSpace(it.Reason)

		var line string
		if it.Year != 0 {
			line = fmt.Sprintf("- %s (%d) — %s", title, it.Year, reason)
		} else {
			line = fmt.Sprintf("- %s — %s", title, reason)
		}

		lines = append(lines, strings.TrimRight(line, " —"))
	}

	answer := strings.TrimSpace(strings.Join(lines, "\n"))
	if answer == "" {
		return emptyAnswerPlaceholder
	}

	return answer
}
