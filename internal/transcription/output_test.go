package transcription

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseOutput(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		text string
		ok   bool
	}{
		{"plain string", `"  hi  "`, "hi", true},
		{"transcription key", `{"transcription":"a","text":"b"}`, "a", true},
		{"text key", `{"text":"b"}`, "b", true},
		{"empty transcription falls to text", `{"transcription":"","text":"b"}`, "b", true},
		{"segments", `{"segments":[{"text":" one "},{"text":""},{"text":"two"}]}`, "one two", true},
		{"null", `null`, "", true},
		{"empty text", `{"text":""}`, "", true},
		{"unknown object", `{"foo":1}`, "", false},
		{"list", `["a","b"]`, "", false},
		{"number", `42`, "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			text, ok := ParseOutput(json.RawMessage(tc.raw))
			assert.Equal(t, tc.text, text)
			assert.Equal(t, tc.ok, ok)
		})
	}
}

func TestStitch(t *testing.T) {
	assert.Equal(t, "hello world", Stitch([]string{"hello", "", "world"}))
	assert.Equal(t, "", Stitch([]string{"", "  "}))
	assert.Equal(t, "a b", Stitch([]string{" a ", "b\n"}))
}
