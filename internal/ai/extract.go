package ai

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrNoJSON signals that a generation output contained no well-formed
// balanced-bracket JSON block. Callers always provide a fallback on this
// error instead of failing their stage.
var ErrNoJSON = errors.New("no balanced json block in generation output")

// ExtractJSON pulls the first balanced JSON object or array out of free-form
// model output, tolerating code fences and prose around the block.
func ExtractJSON(text string) (json.RawMessage, error) {
	cleaned := stripCodeFence(text)

	trimmed := strings.TrimSpace(cleaned)
	if json.Valid([]byte(trimmed)) && (strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[")) {
		return json.RawMessage(trimmed), nil
	}

	for _, pair := range [][2]byte{{'{', '}'}, {'[', ']'}} {
		if block, ok := extractBalanced(cleaned, pair[0], pair[1]); ok {
			if json.Valid([]byte(block)) {
				return json.RawMessage(block), nil
			}
		}
	}
	return nil, ErrNoJSON
}

func stripCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if newline := strings.IndexByte(trimmed, '\n'); newline >= 0 {
		trimmed = trimmed[newline+1:]
	}
	if closing := strings.LastIndex(trimmed, "```"); closing >= 0 {
		trimmed = trimmed[:closing]
	}
	return strings.TrimSpace(trimmed)
}

// extractBalanced scans for the first balanced open..close block outside of
// string literals.
func extractBalanced(text string, open, close byte) (string, bool) {
	start := strings.IndexByte(text, open)
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}
