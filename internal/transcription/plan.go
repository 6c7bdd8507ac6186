package transcription

import (
	"time"

	"playlist-cards-go/internal/types"
)

// PlanSegments splits an audio duration into at least two segments of roughly
// target length. Every segment after the first starts overlap earlier than its
// nominal boundary so words cut at the edge are heard twice.
func PlanSegments(duration, target, overlap time.Duration) []types.TranscriptSegment {
	total := duration.Milliseconds()
	step := target.Milliseconds()
	if total <= 0 || step <= 0 {
		return nil
	}

	n := (total + step - 1) / step
	if n < 2 {
		n = 2
	}
	chunk := (total + n - 1) / n

	segments := make([]types.TranscriptSegment, 0, n)
	for i := int64(0); i < n; i++ {
		start := i * chunk
		if i > 0 {
			start -= overlap.Milliseconds()
		}
		start = max(0, start)
		end := min(total, (i+1)*chunk)
		if end <= start {
			continue
		}
		segments = append(segments, types.TranscriptSegment{Index: int(i), StartMS: start, EndMS: end})
	}
	return segments
}
