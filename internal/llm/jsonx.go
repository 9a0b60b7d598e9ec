package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cvone/interview/internal/models"
)

var errNoJSON = errors.New("no JSON object or array found")

// StripFences removes markdown code fences around a model response
func StripFences(raw string) string {
	s := strings.TrimSpace(raw)
	start := strings.Index(s, "```")
	if start == -1 {
		return s
	}
	rest := s[start+3:]
	// drop the info string (```json)
	if nl := strings.IndexByte(rest, '\n'); nl != -1 {
		rest = rest[nl+1:]
	} else {
		rest = strings.TrimPrefix(rest, "json")
	}
	if end := strings.Index(rest, "```"); end != -1 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}

// ExtractJSON returns the first balanced JSON object or array in raw,
// after stripping code fences. String literals are honoured so braces
// inside values do not confuse the scan.
func ExtractJSON(raw string) (string, error) {
	s := StripFences(raw)

	start := strings.IndexAny(s, "{[")
	if start == -1 {
		return "", errNoJSON
	}

	var stack []byte
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return "", fmt.Errorf("unbalanced JSON near offset %d", i)
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return s[start : i+1], nil
			}
		}
	}
	return "", errors.New("unterminated JSON value")
}

// DecodeJSON unwraps raw model output and decodes it into out.
// Any failure wraps models.ErrValidation.
func DecodeJSON(raw string, out any) error {
	payload, err := ExtractJSON(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrValidation, err)
	}
	if err := json.Unmarshal([]byte(payload), out); err != nil {
		return fmt.Errorf("%w: %v", models.ErrValidation, err)
	}
	return nil
}
