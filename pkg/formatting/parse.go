// Package formatting extracts structured values and labels from
// free-form generative model output.
package formatting

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrParseFailed is returned when content cannot be parsed as JSON,
// either directly, from a markdown code fence, or from its outermost
// object or array span.
var ErrParseFailed = errors.New("failed to parse response")

var jsonBlockRegex = regexp.MustCompile(`(?s)` + "```" + `(?:json)?\s*\n?(.*?)\n?` + "```")

// Parse attempts to unmarshal content as JSON into T.
// If direct parsing fails, it extracts JSON from a markdown code fence,
// then from the outermost {...} or [...] span, and retries.
// Returns ErrParseFailed if every attempt fails.
func Parse[T any](content string) (T, error) {
	var result T
	content = strings.TrimSpace(content)

	if err := json.Unmarshal([]byte(content), &result); err == nil {
		return result, nil
	}

	matches := jsonBlockRegex.FindStringSubmatch(content)
	if len(matches) >= 2 {
		cleaned := strings.TrimSpace(matches[1])
		if err := json.Unmarshal([]byte(cleaned), &result); err == nil {
			return result, nil
		}
	}

	if span, ok := outerSpan(content); ok {
		if err := json.Unmarshal([]byte(span), &result); err == nil {
			return result, nil
		}
	}

	return result, fmt.Errorf("%w: %s", ErrParseFailed, content)
}

func outerSpan(content string) (string, bool) {
	for _, pair := range [][2]string{{"{", "}"}, {"[", "]"}} {
		start := strings.Index(content, pair[0])
		end := strings.LastIndex(content, pair[1])
		if start != -1 && end > start {
			return content[start : end+1], true
		}
	}
	return "", false
}

// Label reduces a short model answer to a bare label: surrounding
// whitespace, quotes, and backticks are removed.
func Label(content string) string {
	return strings.Trim(strings.TrimSpace(content), "`\"' \n\t")
}

// Emphasized extracts an account-style label from a free-text answer.
// When the answer contains markdown bold markers, the text between the last
// two markers is returned; otherwise the text after the last period.
// An empty extraction falls back to the trimmed answer.
func Emphasized(content string) string {
	content = strings.TrimSpace(content)

	var extracted string
	if strings.Contains(content, "**") {
		parts := strings.Split(content, "**")
		extracted = strings.TrimSpace(parts[len(parts)-2])
	} else {
		parts := strings.Split(content, ".")
		extracted = strings.TrimSpace(parts[len(parts)-1])
	}

	if extracted == "" {
		return content
	}
	return extracted
}
