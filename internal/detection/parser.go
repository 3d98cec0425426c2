package detection

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var errNoObject = errors.New("no JSON object found in response")

const defaultExplanation = "AI analysis completed"

// ParseError reports model output that does not contain a decodable JSON object.
type ParseError struct {
	Snippet string
	Cause   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse model response: %v (response starts %q)", e.Cause, e.Snippet)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// ValidationError reports a decoded object that carries no usable classification.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid analysis field %s: %s", e.Field, e.Reason)
}

// Parse extracts the first JSON object in raw and converts it into an
// analysis, filling defaults for the optional fields.
func Parse(raw string) (*FakeReviewAnalysis, error) {
	obj, err := extractObject(raw)
	if err != nil {
		return nil, &ParseError{Snippet: snippet(raw), Cause: err}
	}

	analysis := &FakeReviewAnalysis{
		Reasons:            []string{},
		Sentiment:          Neutral,
		Confidence:         0.5,
		LanguageConfidence: 0.5,
		Explanation:        defaultExplanation,
	}

	switch v := obj["classification"].(type) {
	case string:
		c := Classification(strings.ToLower(strings.TrimSpace(v)))
		if !c.Valid() {
			return nil, &ValidationError{Field: "classification", Reason: fmt.Sprintf("unknown value %q", v)}
		}
		analysis.Classification = c
	case nil:
		isFake, ok := obj["isFake"].(bool)
		if !ok {
			return nil, &ValidationError{Field: "classification", Reason: "missing, and no boolean isFake to derive it from"}
		}
		analysis.Classification = Genuine
		if isFake {
			analysis.Classification = Fake
		}
	default:
		return nil, &ValidationError{Field: "classification", Reason: fmt.Sprintf("expected string, got %T", v)}
	}
	analysis.IsFake = analysis.Classification.IsFake()

	if v, ok := number(obj["confidence"]); ok {
		analysis.Confidence = normalizeScore(v)
	}
	if v, ok := number(obj["languageConfidence"]); ok {
		analysis.LanguageConfidence = normalizeScore(v)
	}
	if v, ok := obj["sentiment"].(string); ok {
		analysis.Sentiment = NormalizeSentiment(v)
	}
	if v, ok := obj["explanation"].(string); ok && strings.TrimSpace(v) != "" {
		analysis.Explanation = v
	}
	if list, ok := obj["reasons"].([]any); ok {
		for _, item := range list {
			if s, ok := item.(string); ok && s != "" {
				analysis.Reasons = append(analysis.Reasons, s)
			}
		}
	}

	return analysis, nil
}

// extractObject tries every '{' in order and returns the first balanced
// span that decodes as a JSON object.
func extractObject(raw string) (map[string]any, error) {
	lastErr := errNoObject
	for start := strings.IndexByte(raw, '{'); start >= 0; {
		end := matchBrace(raw, start)
		if end < 0 {
			break
		}
		var obj map[string]any
		err := json.Unmarshal([]byte(raw[start:end+1]), &obj)
		if err == nil {
			return obj, nil
		}
		lastErr = err

		next := strings.IndexByte(raw[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return nil, lastErr
}

// matchBrace returns the index of the '}' closing the '{' at start, or -1.
// Braces inside JSON strings are ignored.
func matchBrace(s string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
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
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

// normalizeScore accepts 0-1 or 0-100 scores and clamps to [0,1].
func normalizeScore(v float64) float64 {
	if v > 1 && v <= 100 {
		v /= 100
	}
	return clamp01(v)
}

func snippet(raw string) string {
	const max = 80
	raw = strings.TrimSpace(raw)
	if len(raw) > max {
		return raw[:max]
	}
	return raw
}
