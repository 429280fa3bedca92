package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidIntentSchema is returned by ValidateIntents when a parsed element
// is missing the required "action" key.
var ErrInvalidIntentSchema = errors.New("invalid intent schema")

// fencedBlockRe matches a markdown code fence with an optional language tag
// and captures the inner content.
var fencedBlockRe = regexp.MustCompile("(?s)```(?:[a-zA-Z0-9]+)?\\s*(.*?)\\s*```")

// ExtractIntents salvages a JSON intent list from raw model output. Models
// routinely wrap the array in a code fence or surround it with prose, so the
// extraction runs a fixed sequence of strategies:
//
//  1. trim whitespace
//  2. if a fenced code block is present, take its inner content
//  3. try a direct JSON parse: an array is returned as-is, a bare object is
//     coerced into a one-element list, anything else yields no intents
//  4. on parse failure, retry on the substring between the first '[' and the
//     last ']' inclusive
//
// If every strategy fails the result is empty; callers interpret that as
// "no actionable intent".
func ExtractIntents(raw string) []Intent {
	s := strings.TrimSpace(raw)

	if m := fencedBlockRe.FindStringSubmatch(s); m != nil {
		s = strings.TrimSpace(m[1])
	}

	if intents, ok := tryParseIntents(s); ok {
		return intents
	}

	first := strings.Index(s, "[")
	last := strings.LastIndex(s, "]")
	if first != -1 && last > first {
		if intents, ok := tryParseIntents(s[first : last+1]); ok {
			return intents
		}
	}

	return nil
}

// tryParseIntents attempts a strict JSON parse of s as either an intent array
// or a single intent object.
func tryParseIntents(s string) ([]Intent, bool) {
	var list []Intent
	if err := json.Unmarshal([]byte(s), &list); err == nil {
		return list, true
	}

	var single Intent
	if err := json.Unmarshal([]byte(s), &single); err == nil {
		return []Intent{single}, true
	}

	return nil, false
}

// ValidateIntents checks the minimal schema contract: every parsed element
// must carry a non-empty string "action" field.
func ValidateIntents(intents []Intent) error {
	for idx, it := range intents {
		act, ok := it["action"].(string)
		if !ok || act == "" {
			return fmt.Errorf("%w: element %d has no 'action' key", ErrInvalidIntentSchema, idx)
		}
	}
	return nil
}
