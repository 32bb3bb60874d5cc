// Package llmjson recovers JSON payloads from model output that wraps them in
// prose or markdown code fences.
package llmjson

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrNoPayload is returned when no valid JSON value can be found
var ErrNoPayload = errors.New("no JSON payload found in model output")

// Kind restricts which JSON values Find accepts
type Kind int

const (
	Any Kind = iota
	Object
	Array
)

// StripFences removes markdown code fences (```json ... ```) and trims the result
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, "```") {
		return s
	}
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// Find returns the first valid JSON value of the requested kind embedded in s.
// The whole (fence-stripped) text is tried first, then every balanced
// {...} or [...] span in order of its opening bracket.
func Find(s string, kind Kind) (json.RawMessage, error) {
	cleaned := StripFences(s)
	if cleaned == "" {
		return nil, ErrNoPayload
	}
	if matchesKind(cleaned, kind) && json.Valid([]byte(cleaned)) {
		return json.RawMessage(cleaned), nil
	}

	for i := 0; i < len(cleaned); i++ {
		c := cleaned[i]
		if c != '{' && c != '[' {
			continue
		}
		if !matchesKind(cleaned[i:], kind) {
			continue
		}
		end := balancedEnd(cleaned, i)
		if end < 0 {
			continue
		}
		candidate := cleaned[i : end+1]
		if json.Valid([]byte(candidate)) {
			return json.RawMessage(candidate), nil
		}
	}
	return nil, ErrNoPayload
}

// Decode finds a JSON value of the given kind in s and unmarshals it into v
func Decode(s string, kind Kind, v any) error {
	raw, err := Find(s, kind)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

func matchesKind(s string, kind Kind) bool {
	if s == "" {
		return false
	}
	switch kind {
	case Object:
		return s[0] == '{'
	case Array:
		return s[0] == '['
	default:
		return s[0] == '{' || s[0] == '['
	}
}

// balancedEnd returns the index of the bracket closing the one at start, or -1.
// Brackets inside JSON strings are ignored.
func balancedEnd(s string, start int) int {
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
				return -1
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i
			}
		}
	}
	return -1
}
