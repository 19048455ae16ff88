package model

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jonwraymond/invokeops/resilience"
)

// DecodeJSON decodes a model response into T. Markdown code fences around
// the JSON are tolerated. Failures wrap ErrMalformed and stay retryable.
func DecodeJSON[T any](raw string) (T, error) {
	var v T
	body := StripFences(raw)
	if body == "" {
		return v, resilience.ErrEmptyResult
	}
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		return v, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return v, nil
}

// StripFences removes a surrounding ``` or ```json fence and whitespace.
func StripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// Drop the info string (e.g. "json").
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
