package transcription

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"playlist-cards-go/internal/tier"
)

// Predictor is the part of the Replicate client a model strategy needs.
type Predictor interface {
	UploadFile(ctx context.Context, path string) (File, error)
	Run(ctx context.Context, model string, input map[string]any) (json.RawMessage, error)
	DeleteFile(ctx context.Context, id string) error
}

// InputFunc builds the model-specific prediction input for an uploaded file URL.
type InputFunc func(audioURL string) map[string]any

// FastWhisperInput matches incredibly-fast-whisper.
func FastWhisperInput(audioURL string) map[string]any {
	return map[string]any{
		"task":          "transcribe",
		"audio":         audioURL,
		"language":      "None",
		"timestamp":     "chunk",
		"batch_size":    64,
		"diarise_audio": false,
	}
}

// WhisperXInput matches whisperx.
func WhisperXInput(audioURL string) map[string]any {
	return map[string]any{
		"audio_file":  audioURL,
		"debug":       false,
		"batch_size":  64,
		"diarization": false,
	}
}

// ModelStrategy transcribes one audio file with one hosted model.
type ModelStrategy struct {
	model string
	input InputFunc
	api   Predictor
	log   *logrus.Entry
}

var _ tier.Strategy[string, string] = (*ModelStrategy)(nil)

func NewModelStrategy(api Predictor, model string, input InputFunc, log *logrus.Entry) *ModelStrategy {
	return &ModelStrategy{model: model, input: input, api: api, log: log}
}

func (s *ModelStrategy) Name() string { return s.model }

func (s *ModelStrategy) Attempt(ctx context.Context, path string) (string, error) {
	f, err := s.api.UploadFile(ctx, path)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := s.api.DeleteFile(context.WithoutCancel(ctx), f.ID); err != nil {
			s.log.WithError(err).WithField("file", f.ID).Debug("could not delete uploaded file")
		}
	}()

	out, err := s.api.Run(ctx, s.model, s.input(f.URLs.Get))
	if err != nil {
		return "", err
	}
	text, ok := ParseOutput(out)
	if !ok {
		return "", tier.Fail(tier.Invalid, fmt.Errorf("unrecognized output: %s", snippet(out)))
	}
	return text, nil
}
