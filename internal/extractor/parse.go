package extractor

import (
	"encoding/json"
	"fmt"
	"strings"

	"playlist-cards-go/internal/types"
)

// StripFences removes a surrounding Markdown code fence, if present.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, "```json"):
		s = strings.TrimSpace(s[len("```json"):])
	case strings.HasPrefix(s, "```"):
		s = strings.TrimSpace(s[len("```"):])
	}
	if strings.HasSuffix(s, "```") {
		s = strings.TrimSpace(s[:len(s)-len("```")])
	}
	return s
}

// ParsePayload validates generated text. It returns the number of card entries
// that were dropped for not being objects with non-empty front and back.
// When no card survives, the payload still carries the category and the error
// is ErrNoValidCards.
func ParsePayload(text string) (types.ContentPayload, int, error) {
	clean := StripFences(text)
	if clean == "" {
		return types.ContentPayload{}, 0, fmt.Errorf("%w: empty after removing fences", ErrInvalidPayload)
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal([]byte(clean), &doc); err != nil {
		return types.ContentPayload{}, 0, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	if doc == nil {
		return types.ContentPayload{}, 0, fmt.Errorf("%w: not an object", ErrInvalidPayload)
	}

	var category string
	rawCategory, ok := doc["category"]
	if !ok || json.Unmarshal(rawCategory, &category) != nil {
		return types.ContentPayload{}, 0, fmt.Errorf("%w: category must be a string", ErrInvalidPayload)
	}

	rawCards, ok := doc["flashcards"]
	if !ok {
		rawCards, ok = doc["cards"]
	}
	var entries []json.RawMessage
	if !ok || json.Unmarshal(rawCards, &entries) != nil || entries == nil {
		return types.ContentPayload{}, 0, fmt.Errorf("%w: flashcards must be a list", ErrInvalidPayload)
	}

	payload := types.ContentPayload{Category: category, Cards: make([]types.Card, 0, len(entries))}
	for _, raw := range entries {
		if card, ok := validCard(raw); ok {
			payload.Cards = append(payload.Cards, card)
		}
	}
	dropped := len(entries) - len(payload.Cards)
	if len(payload.Cards) == 0 {
		return payload, dropped, ErrNoValidCards
	}
	return payload, dropped, nil
}

func validCard(raw json.RawMessage) (types.Card, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return types.Card{}, false
	}
	for _, key := range []string{"front", "back"} {
		var s string
		if json.Unmarshal(fields[key], &s) != nil || strings.TrimSpace(s) == "" {
			return types.Card{}, false
		}
	}
	var card types.Card
	if err := json.Unmarshal(raw, &card); err != nil {
		return types.Card{}, false
	}
	return card, true
}
