package aimapping

import "errors"

var (
	errNoJSON     = errors.New("no json value in model output")
	errUnbalanced = errors.New("unbalanced json value in model output")
)

// extractJSON returns the first balanced JSON object or array in text whose
// opening delimiter is one of open. Brackets inside string literals are
// ignored, so prose around the value and braces in comments do not confuse it.
func extractJSON(text string, open ...byte) (string, error) {
	start := -1
	for i := 0; i < len(text) && start < 0; i++ {
		for _, o := range open {
			if text[i] == o {
				start = i
				break
			}
		}
	}
	if start < 0 {
		return "", errNoJSON
	}

	var stack []byte
	inString, escaped := false, false
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
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != ch {
				return "", errUnbalanced
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return text[start : i+1], nil
			}
		}
	}
	return "", errUnbalanced
}
