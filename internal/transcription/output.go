package transcription

import (
	"bytes"
	"encoding/json"
	"strings"
)

// ParseOutput extracts transcript text from a prediction output. Recognized
// shapes are a plain string, an object with "transcription" or "text", and an
// object with a "segments" list. ok is false for any other shape.
func ParseOutput(raw json.RawMessage) (text string, ok bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return "", true
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s), true
	}

	var obj struct {
		Transcription *string `json:"transcription"`
		Text          *string `json:"text"`
		Segments      []struct {
			Text string `json:"text"`
		} `json:"segments"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return "", false
	}
	if obj.Transcription != nil && strings.TrimSpace(*obj.Transcription) != "" {
		return strings.TrimSpace(*obj.Transcription), true
	}
	if obj.Text != nil && strings.TrimSpace(*obj.Text) != "" {
		return strings.TrimSpace(*obj.Text), true
	}
	if obj.Segments != nil {
		parts := make([]string, 0, len(obj.Segments))
		for _, seg := range obj.Segments {
			parts = append(parts, seg.Text)
		}
		return Stitch(parts), true
	}
	if obj.Transcription != nil || obj.Text != nil {
		return "", true
	}
	return "", false
}

// Stitch joins the non-empty pieces with single spaces.
func Stitch(pieces []string) string {
	kept := make([]string, 0, len(pieces))
	for _, p := range pieces {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}
