package vision

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"optic/internal/services"
)

// decodeStrategy extracts one candidate JSON document from response text. A
// strategy returning ok=false contributes nothing; later strategies see the
// original text, never a prior strategy's output.
type decodeStrategy struct {
	name    string
	extract func(string) (string, bool)
}

// The chain order matters: fence-stripping first because it is the most
// common wrapper from local models, the raw text second, and the balanced
// span scan last because it is the most permissive.
var decodeStrategies = []decodeStrategy{
	{name: "strip_fences", extract: stripFences},
	{name: "raw", extract: func(text string) (string, bool) {
		trimmed := strings.TrimSpace(text)
		return trimmed, trimmed != ""
	}},
	{name: "balanced_span", extract: balancedSpan},
}

// DecodeVerdict runs the response text through the strategy chain and returns
// the first candidate that parses into a structurally valid verdict. When
// every strategy fails, the returned error is tagged ErrResponseDecode and
// the caller keeps the raw text as evidence.
func DecodeVerdict(text string) (*Verdict, error) {
	if strings.TrimSpace(text) == "" {
		return nil, services.Wrap(services.ErrResponseDecode, "vision", "decode", "empty response", nil)
	}

	var lastErr error
	for _, strategy := range decodeStrategies {
		candidate, ok := strategy.extract(text)
		if !ok {
			continue
		}
		verdict, err := parseVerdict(candidate)
		if err == nil {
			return verdict, nil
		}
		lastErr = fmt.Errorf("%s: %w", strategy.name, err)
	}
	return nil, services.Wrap(services.ErrResponseDecode, "vision", "decode", "all strategies failed", lastErr)
}

// parseVerdict unmarshals one candidate and enforces the structural floor: a
// top-level object whose nicotine_detection section carries an explicit
// detected flag. A bare {} must not pass, because it would be
// indistinguishable from a genuine "nothing detected" verdict.
func parseVerdict(candidate string) (*Verdict, error) {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" || candidate[0] != '{' {
		return nil, errors.New("candidate is not a JSON object")
	}
	verdict := &Verdict{}
	if err := json.Unmarshal([]byte(candidate), verdict); err != nil {
		return nil, err
	}
	if verdict.NicotineDetection.Detected == nil {
		return nil, errors.New("document lacks nicotine_detection.detected")
	}
	return verdict, nil
}

// stripFences removes a surrounding markdown code fence, tolerating a
// language tag after the opening backticks.
func stripFences(text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return "", false
	}
	body := strings.TrimLeft(trimmed[3:], " \t")
	if newline := strings.IndexByte(body, '\n'); newline >= 0 && !strings.ContainsAny(body[:newline], "{}") {
		// The first fence line is a language tag like "json".
		body = body[newline+1:]
	}
	if end := strings.LastIndex(body, "```"); end >= 0 {
		body = body[:end]
	}
	body = strings.TrimSpace(body)
	return body, body != ""
}

// balancedSpan scans for the first balanced top-level {...} span, honoring
// string literals and escapes so braces inside values do not end the span
// early.
func balancedSpan(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
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
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}
