package brain

import "strings"

// ExtractJSONObject returns the first balanced top-level JSON object in
// raw oracle output. Oracles routinely wrap answers in prose or markdown
// fences, so the parser scans rather than trusting the whole response.
// Returns false when no complete object is present.
func ExtractJSONObject(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", false
	}

	// Prefer the contents of a fenced block when one is present.
	if strings.HasPrefix(trimmed, "```") {
		end := strings.Index(trimmed[3:], "```")
		if end != -1 {
			content := trimmed[3 : 3+end]
			if idx := strings.Index(content, "\n"); idx != -1 {
				content = content[idx+1:]
			}
			if payload, ok := findJSONObject(strings.TrimSpace(content)); ok {
				return payload, true
			}
		}
	}

	return findJSONObject(trimmed)
}

// findJSONObject walks the input tracking brace depth, skipping braces
// inside JSON string literals and their escapes.
func findJSONObject(input string) (string, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(input); i++ {
		ch := input[i]
		if escaped {
			escaped = false
			continue
		}
		if ch == '\\' && inString {
			escaped = true
			continue
		}
		if ch == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		if ch == '{' {
			if depth == 0 {
				start = i
			}
			depth++
			continue
		}
		if ch == '}' {
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 && start >= 0 {
				return input[start : i+1], true
			}
		}
	}

	return "", false
}
