// Package extractor turns a transcript into a validated flashcard payload
// using hosted generative models.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"playlist-cards-go/internal/tier"
	"playlist-cards-go/internal/types"
)

var (
	ErrNotConfigured   = errors.New("generation is not configured")
	ErrEmptyTranscript = errors.New("transcript is empty")
	ErrNoSystemPrompt  = errors.New("system prompt unavailable")
	ErrInvalidPayload  = errors.New("invalid generated payload")
	ErrNoValidCards    = errors.New("no valid flashcards")
)

type modelStrategy struct {
	streamer Streamer
	model    string
}

func (s modelStrategy) Name() string { return s.model }

// Attempt accumulates the whole stream. Partial output is discarded on error.
func (s modelStrategy) Attempt(ctx context.Context, req Request) (string, error) {
	var b strings.Builder
	if err := s.streamer.Stream(ctx, s.model, req, func(chunk string) { b.WriteString(chunk) }); err != nil {
		return "", fmt.Errorf("%s: %w", Classify(err), err)
	}
	return b.String(), nil
}

// Generator tries each model in order with the identical request.
type Generator struct {
	chain      *tier.Chain[Request, string]
	tiers      int
	promptPath string
	log        *logrus.Entry
}

func NewGenerator(log *logrus.Entry, streamer Streamer, promptPath string, models ...string) *Generator {
	log = log.WithField("component", "generator")
	strategies := make([]tier.Strategy[Request, string], 0, len(models))
	for _, m := range models {
		if m = strings.TrimSpace(m); m != "" {
			strategies = append(strategies, modelStrategy{streamer: streamer, model: m})
		}
	}
	return &Generator{
		// Only errors advance to the next model; an empty reply is rejected by parsing.
		chain:      tier.NewChain[Request, string](log, nil, strategies...),
		tiers:      len(strategies),
		promptPath: promptPath,
		log:        log,
	}
}

// BuildPrompt renders the user turn sent to every model.
func BuildPrompt(title, transcript string) string {
	return fmt.Sprintf("Video Title: %s\n\nVideo Transcript: %s", title, transcript)
}

// Generate returns a payload with at least one valid card. On ErrNoValidCards
// the returned payload still carries the category the model chose.
func (g *Generator) Generate(ctx context.Context, transcript, title string) (types.ContentPayload, error) {
	if strings.TrimSpace(transcript) == "" {
		return types.ContentPayload{}, ErrEmptyTranscript
	}
	if g.tiers == 0 {
		return types.ContentPayload{}, ErrNotConfigured
	}
	system, err := os.ReadFile(g.promptPath)
	if err != nil {
		return types.ContentPayload{}, fmt.Errorf("%w: %w", ErrNoSystemPrompt, err)
	}

	req := Request{System: string(system), User: BuildPrompt(title, transcript)}
	text, model, err := g.chain.Run(ctx, req)
	if err != nil {
		return types.ContentPayload{}, fmt.Errorf("generate: %w", err)
	}

	entry := g.log.WithField("model", model)
	payload, dropped, err := ParsePayload(text)
	if dropped > 0 {
		entry.WithField("dropped", dropped).Warn("removed invalid flashcard entries")
	}
	if err != nil {
		entry.WithError(err).WithField("response", truncate(text, 500)).Error("generated payload rejected")
		return payload, err
	}
	entry.WithFields(logrus.Fields{"category": payload.Category, "cards": len(payload.Cards)}).Info("flashcards generated")
	return payload, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
