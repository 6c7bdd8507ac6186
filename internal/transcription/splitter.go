package transcription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"playlist-cards-go/internal/command"
	"playlist-cards-go/internal/types"
)

// Splitter measures audio and cuts segments out of it.
type Splitter interface {
	Duration(ctx context.Context, path string) (time.Duration, error)
	Export(ctx context.Context, src string, seg types.TranscriptSegment, dest string) error
}

// FFmpeg implements Splitter with ffprobe and ffmpeg.
type FFmpeg struct {
	Runner      command.Runner
	FFmpegPath  string
	FFprobePath string
	Bitrate     string
}

func NewFFmpeg(runner command.Runner, ffmpegPath, ffprobePath string) *FFmpeg {
	return &FFmpeg{Runner: runner, FFmpegPath: ffmpegPath, FFprobePath: ffprobePath, Bitrate: "128k"}
}

type probeResult struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Duration fails for anything ffprobe cannot decode.
func (f *FFmpeg) Duration(ctx context.Context, path string) (time.Duration, error) {
	out, err := f.Runner.Run(ctx, binary(f.FFprobePath, "ffprobe"),
		"-v", "error", "-hide_banner", "-show_format", "-of", "json", "--", path)
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}

	var res probeResult
	if err := json.Unmarshal(out, &res); err != nil {
		return 0, fmt.Errorf("ffprobe parse: %w", err)
	}
	secs, err := strconv.ParseFloat(strings.TrimSpace(res.Format.Duration), 64)
	if err != nil {
		return 0, fmt.Errorf("ffprobe duration %q: %w", res.Format.Duration, err)
	}
	if secs <= 0 {
		return 0, errors.New("ffprobe: audio has no duration")
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// Export writes one segment as mp3.
func (f *FFmpeg) Export(ctx context.Context, src string, seg types.TranscriptSegment, dest string) error {
	bitrate := f.Bitrate
	if bitrate == "" {
		bitrate = "128k"
	}
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-ss", seconds(seg.StartMS),
		"-t", seconds(seg.DurationMS()),
		"-i", src,
		"-vn",
		"-c:a", "libmp3lame",
		"-b:a", bitrate,
		dest,
	}
	if _, err := f.Runner.Run(ctx, binary(f.FFmpegPath, "ffmpeg"), args...); err != nil {
		return fmt.Errorf("ffmpeg export segment %d: %w", seg.Index+1, err)
	}
	info, err := os.Stat(dest)
	if err != nil {
		return fmt.Errorf("ffmpeg export segment %d: %w", seg.Index+1, err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("ffmpeg export segment %d: empty output", seg.Index+1)
	}
	return nil
}

func seconds(ms int64) string {
	return strconv.FormatFloat(float64(ms)/1000, 'f', 3, 64)
}

func binary(configured, fallback string) string {
	if b := strings.TrimSpace(configured); b != "" {
		return b
	}
	return fallback
}
