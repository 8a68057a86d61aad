package extract

import "strings"

// repairJSON salvages common defects in service responses: markdown
// code fences around the payload and arrays truncated mid-object when
// the response hit a length limit.
func repairJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	if start := strings.IndexAny(s, "[{"); start > 0 {
		s = s[start:]
	}

	if s == "" {
		return s
	}

	// Close whatever was left open by truncation. Strings are tracked
	// so brackets inside values don't count.
	var stack []byte
	inString := false
	escaped := false
	lastComplete := -1
	for i := 0; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '[' || c == '{':
			stack = append(stack, c)
		case c == ']' || c == '}':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
			if len(stack) == 1 && stack[0] == '[' {
				lastComplete = i
			}
		}
	}

	if len(stack) == 0 && !inString {
		return s
	}

	// Drop the truncated trailing element when the payload is an array
	// and at least one element closed cleanly.
	if len(s) > 0 && s[0] == '[' && lastComplete >= 0 {
		return s[:lastComplete+1] + "]"
	}

	if inString {
		s += `"`
	}
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == '[' {
			s += "]"
		} else {
			s += "}"
		}
	}
	return s
}
