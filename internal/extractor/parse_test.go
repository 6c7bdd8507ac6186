package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, StripFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, StripFences("```\n{\"a\":1}```"))
	assert.Equal(t, `{"a":1}`, StripFences("  {\"a\":1}  "))
	assert.Equal(t, "", StripFences("```json\n```"))
}

func TestParsePayloadDropsInvalidCards(t *testing.T) {
	text := `{"category": "Bio", "flashcards": [
		{"front": "Q1", "back": "A1", "hint": "keep me"},
		"not an object",
		{"front": "Q2"},
		{"front": "  ", "back": "A3"},
		{"front": 5, "back": "A4"},
		{"front": "Q5", "back": "A5"}
	]}`
	payload, dropped, err := ParsePayload(text)
	require.NoError(t, err)
	assert.Equal(t, 4, dropped)
	require.Len(t, payload.Cards, 2)
	assert.Equal(t, "Q1", payload.Cards[0].Front)
	assert.JSONEq(t, `"keep me"`, string(payload.Cards[0].Extra["hint"]))
	assert.Equal(t, "Q5", payload.Cards[1].Front)
}

func TestParsePayloadCardsAlias(t *testing.T) {
	payload, _, err := ParsePayload(`{"category": "X", "cards": [{"front": "f", "back": "b"}]}`)
	require.NoError(t, err)
	assert.Len(t, payload.Cards, 1)
}

func TestParsePayloadSchemaErrors(t *testing.T) {
	for _, text := range []string{
		``,
		`[1, 2]`,
		`null`,
		`{"flashcards": []}`,
		`{"category": 3, "flashcards": []}`,
		`{"category": "x"}`,
		`{"category": "x", "flashcards": {"front": "f"}}`,
		`{"category": "x", "flashcards": null}`,
	} {
		_, _, err := ParsePayload(text)
		assert.ErrorIs(t, err, ErrInvalidPayload, text)
	}
}

func TestParsePayloadEmptyList(t *testing.T) {
	payload, dropped, err := ParsePayload(`{"category": "Empty", "flashcards": []}`)
	assert.ErrorIs(t, err, ErrNoValidCards)
	assert.Equal(t, 0, dropped)
	assert.Equal(t, "Empty", payload.Category)
}
