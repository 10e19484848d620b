package policy

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Social posts collected from public search can still carry contact details.
// Mask them before the text is embedded in prompts or step payloads.
type piiRule struct {
	pattern *regexp.Regexp
	mask    func(string) string
}

var piiRules = []piiRule{
	{
		pattern: regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`),
		mask:    func(string) string { return "[email_redacted]" },
	},
	{
		pattern: regexp.MustCompile(`(?:\+?\d[\d()\-\s.]{7,}\d)`),
		mask:    func(string) string { return "[phone_redacted]" },
	},
	{
		pattern: regexp.MustCompile(`\b(?:\d[ -]*?){13,16}\b`),
		mask:    redactCard,
	},
}

func MaskPIIString(value string) string {
	for _, rule := range piiRules {
		value = rule.pattern.ReplaceAllStringFunc(value, rule.mask)
	}
	return value
}

// MaskPIIJSON masks every string value in an arbitrary JSON document. A
// payload that fails to parse is masked as plain text instead of dropped.
func MaskPIIJSON(payload json.RawMessage) json.RawMessage {
	if strings.TrimSpace(string(payload)) == "" {
		return append(json.RawMessage(nil), payload...)
	}

	var decoded any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return json.RawMessage(MaskPIIString(string(payload)))
	}

	encoded, err := json.Marshal(maskValue(decoded))
	if err != nil {
		return append(json.RawMessage(nil), payload...)
	}
	return encoded
}

func maskValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		for key, child := range typed {
			typed[key] = maskValue(child)
		}
		return typed
	case []any:
		for i, child := range typed {
			typed[i] = maskValue(child)
		}
		return typed
	case string:
		return MaskPIIString(typed)
	default:
		return value
	}
}

// redactCard keeps the last four digits when enough digits survive.
func redactCard(value string) string {
	var digits strings.Builder
	for _, char := range value {
		if char >= '0' && char <= '9' {
			digits.WriteRune(char)
		}
	}
	if digits.Len() < 8 {
		return "[card_redacted]"
	}
	all := digits.String()
	return "**** **** **** " + all[len(all)-4:]
}
