package llm

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Pre-compiled patterns for JSON extraction from model responses.
var (
	// fencedBlockPattern matches markdown code fences with or without a
	// language tag.
	fencedBlockPattern = regexp.MustCompile("(?s)```[a-zA-Z0-9]*[ \\t]*\\n?(.*?)```")
	// objectPattern matches a brace-delimited object, tolerating one level
	// of nesting.
	objectPattern = regexp.MustCompile(`\{(?:[^{}]|\{[^{}]*\})*\}`)
)

// ExtractObject pulls a single JSON object out of free-form model output.
// Models wrap JSON in prose, code fences, or both; extraction is a
// best-effort cascade, first success wins:
//
//  1. parse the trimmed text directly
//  2. parse the interior of each fenced code block, in order
//  3. parse each brace-delimited candidate substring, in order
//  4. walk from the first '{' tracking brace depth and parse that span
//
// If every attempt fails, a MalformedOutputError carrying a leading excerpt
// of the input is returned. No attempt is retried with modification.
func ExtractObject(text string) (map[string]any, error) {
	if obj, ok := tryParse(strings.TrimSpace(text)); ok {
		return obj, nil
	}

	for _, match := range fencedBlockPattern.FindAllStringSubmatch(text, -1) {
		if obj, ok := tryParse(strings.TrimSpace(match[1])); ok {
			return obj, nil
		}
	}

	for _, candidate := range objectPattern.FindAllString(text, -1) {
		if obj, ok := tryParse(candidate); ok {
			return obj, nil
		}
	}

	if span := braceSpan(text); span != "" {
		if obj, ok := tryParse(span); ok {
			return obj, nil
		}
	}

	return nil, &MalformedOutputError{Snippet: snippet(text)}
}

func tryParse(s string) (map[string]any, bool) {
	if s == "" || s[0] != '{' {
		return nil, false
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return nil, false
	}
	return obj, true
}

// braceSpan returns the substring from the first '{' to its matching '}'
// found by tracking brace depth, or "" if the braces never balance. Braces
// inside JSON string values are skipped.
func braceSpan(text string) string {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case ch == '\\' && inString:
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == '{':
			depth++
		case ch == '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}
