// Package transcription turns an audio file into text using hosted Whisper
// models, splitting files that exceed the upload limit.
package transcription

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"playlist-cards-go/internal/tier"
	"playlist-cards-go/internal/types"
)

// ErrNoTranscript means no usable text could be produced for the file.
var ErrNoTranscript = errors.New("no transcript")

const chunkDirName = "audio_chunks"

// Options controls when and how audio is split.
type Options struct {
	MaxChunkBytes int64
	TargetChunk   time.Duration
	Overlap       time.Duration
}

func DefaultOptions() Options {
	return Options{
		MaxChunkBytes: 20 * 1024 * 1024,
		TargetChunk:   15 * time.Minute,
		Overlap:       5 * time.Second,
	}
}

// Transcriber runs each audio segment through an ordered list of model strategies.
type Transcriber struct {
	chain    *tier.Chain[string, string]
	tiers    int
	splitter Splitter
	opts     Options
	log      *logrus.Entry
}

func NewTranscriber(log *logrus.Entry, splitter Splitter, opts Options, strategies ...tier.Strategy[string, string]) *Transcriber {
	def := DefaultOptions()
	if opts.MaxChunkBytes <= 0 {
		opts.MaxChunkBytes = def.MaxChunkBytes
	}
	if opts.TargetChunk <= 0 {
		opts.TargetChunk = def.TargetChunk
	}
	if opts.Overlap < 0 {
		opts.Overlap = 0
	}
	log = log.WithField("component", "transcription")
	isEmpty := func(s string) bool { return s == "" }
	return &Transcriber{
		chain:    tier.NewChain(log, isEmpty, strategies...),
		tiers:    len(strategies),
		splitter: splitter,
		opts:     opts,
		log:      log,
	}
}

// Transcribe returns the full transcript, or an error wrapping ErrNoTranscript.
func (t *Transcriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	if t.tiers == 0 {
		return "", fmt.Errorf("%w: transcription is not configured", ErrNoTranscript)
	}
	info, err := os.Stat(audioPath)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNoTranscript, err)
	}

	entry := t.log.WithFields(logrus.Fields{"audio": filepath.Base(audioPath), "size_mb": mb(info.Size())})
	if info.Size() <= t.opts.MaxChunkBytes {
		entry.Info("transcribing audio directly")
		text, _, err := t.chain.Run(ctx, audioPath)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrNoTranscript, err)
		}
		return text, nil
	}

	entry.Info("audio exceeds upload limit, splitting")
	return t.transcribeChunked(ctx, audioPath)
}

func (t *Transcriber) transcribeChunked(ctx context.Context, audioPath string) (string, error) {
	duration, err := t.splitter.Duration(ctx, audioPath)
	if err != nil {
		return "", fmt.Errorf("%w: could not decode audio: %w", ErrNoTranscript, err)
	}

	segments := PlanSegments(duration, t.opts.TargetChunk, t.opts.Overlap)
	t.log.WithFields(logrus.Fields{
		"duration": duration.Round(time.Second).String(),
		"segments": len(segments),
	}).Info("split plan ready")

	dir := filepath.Join(filepath.Dir(audioPath), chunkDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: %w", ErrNoTranscript, err)
	}
	defer t.removeChunkDir(dir)

	texts := make([]string, 0, len(segments))
	for _, seg := range segments {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("%w: %w", ErrNoTranscript, err)
		}
		seg.Text = t.transcribeSegment(ctx, audioPath, dir, seg, len(segments))
		texts = append(texts, seg.Text)
	}

	transcript := Stitch(texts)
	if transcript == "" {
		return "", fmt.Errorf("%w: every segment failed", ErrNoTranscript)
	}
	return transcript, nil
}

func (t *Transcriber) transcribeSegment(ctx context.Context, src, dir string, seg types.TranscriptSegment, total int) string {
	dest := filepath.Join(dir, fmt.Sprintf("chunk_%03d.mp3", seg.Index+1))
	entry := t.log.WithFields(logrus.Fields{
		"chunk":    fmt.Sprintf("%d/%d", seg.Index+1, total),
		"start_ms": seg.StartMS,
		"end_ms":   seg.EndMS,
	})
	defer t.removeChunk(dest)

	if err := t.splitter.Export(ctx, src, seg, dest); err != nil {
		entry.WithError(err).Error("failed to export chunk, skipping")
		return ""
	}
	if info, err := os.Stat(dest); err == nil && float64(info.Size()) > 1.1*float64(t.opts.MaxChunkBytes) {
		entry.WithField("size_mb", mb(info.Size())).Warn("chunk still exceeds upload limit")
	}

	text, model, err := t.chain.Run(ctx, dest)
	if err != nil {
		entry.WithError(err).Warn("chunk transcription failed, transcript will be incomplete")
		return ""
	}
	entry.WithField("model", model).Debug("chunk transcribed")
	return text
}

func (t *Transcriber) removeChunk(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		t.log.WithError(err).WithField("path", path).Error("failed to remove chunk")
	}
}

func (t *Transcriber) removeChunkDir(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			t.log.WithError(err).WithField("path", dir).Error("failed to inspect chunk directory")
		}
		return
	}
	if len(entries) > 0 {
		t.log.WithField("path", dir).Warn("chunk directory not empty after processing")
		return
	}
	if err := os.Remove(dir); err != nil {
		t.log.WithError(err).WithField("path", dir).Error("failed to remove chunk directory")
	}
}

func mb(n int64) string {
	return fmt.Sprintf("%.2f", float64(n)/(1024*1024))
}
