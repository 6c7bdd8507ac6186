package types

import (
	"bytes"
	"encoding/json"
)

// WorkItem is one playlist video. Only its ID is ever persisted (in the ledger).
type WorkItem struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	SourceURL string `json:"source_url"`
}

// WatchURL builds the canonical YouTube watch URL for a video id.
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}

// Card is one flashcard. Fields other than front/back are kept verbatim so the
// archive round-trips whatever the generator emitted.
type Card struct {
	Front string                     `json:"front"`
	Back  string                     `json:"back"`
	Extra map[string]json.RawMessage `json:"-"`
}

func (c Card) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(c.Extra)+2)
	for k, v := range c.Extra {
		out[k] = v
	}
	front, err := marshalNoEscape(c.Front)
	if err != nil {
		return nil, err
	}
	back, err := marshalNoEscape(c.Back)
	if err != nil {
		return nil, err
	}
	out["front"] = front
	out["back"] = back
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(out); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func (c *Card) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*c = Card{}
	if v, ok := raw["front"]; ok {
		if err := json.Unmarshal(v, &c.Front); err != nil {
			return err
		}
		delete(raw, "front")
	}
	if v, ok := raw["back"]; ok {
		if err := json.Unmarshal(v, &c.Back); err != nil {
			return err
		}
		delete(raw, "back")
	}
	if len(raw) > 0 {
		c.Extra = raw
	}
	return nil
}

func marshalNoEscape(s string) (json.RawMessage, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// ContentPayload is the validated generator output for one WorkItem.
type ContentPayload struct {
	Category string `json:"category"`
	Cards    []Card `json:"flashcards"`
}

// TranscriptSegment is a time-bounded slice of an oversized audio asset.
type TranscriptSegment struct {
	Index   int    `json:"index"`
	StartMS int64  `json:"start_ms"`
	EndMS   int64  `json:"end_ms"`
	Text    string `json:"text,omitempty"`
}

// DurationMS returns the segment length in milliseconds.
func (s TranscriptSegment) DurationMS() int64 {
	return s.EndMS - s.StartMS
}
