// Package processor moves one playlist video through download, transcription,
// generation and delivery.
package processor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"playlist-cards-go/internal/anki"
	"playlist-cards-go/internal/category"
	"playlist-cards-go/internal/extractor"
	"playlist-cards-go/internal/types"
)

// State is how far an item got. Abandoned is terminal; Committed means the id
// may be recorded in the ledger. Outcome.Reached never holds either of them.
type State int

const (
	Fetched State = iota
	Downloaded
	Transcribed
	Generated
	Archived
	Delivered
	Committed
	Abandoned
)

var stateNames = [...]string{"fetched", "downloaded", "transcribed", "generated", "archived", "delivered", "committed", "abandoned"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// ErrArchiveRequired abandons an item whose cards could not be archived when
// archiving is mandatory.
var ErrArchiveRequired = errors.New("archive write failed and archiving is required")

type Downloader interface {
	Download(ctx context.Context, url string) (string, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

type Generator interface {
	Generate(ctx context.Context, transcript, title string) (types.ContentPayload, error)
}

type Archive interface {
	Append(label string, cards []types.Card) bool
}

type Sink interface {
	Deliver(ctx context.Context, cards []types.Card, deck, sourceTitle, rawCategory string) anki.Result
}

// Outcome is the per-item record handed to the run summary.
type Outcome struct {
	Item       types.WorkItem `json:"item"`
	State      State          `json:"state"`
	Reached    State          `json:"reached"`
	Category   string         `json:"category,omitempty"`
	Cards      int            `json:"cards"`
	Archived   bool           `json:"archived"`
	Delivered  bool           `json:"delivered"`
	Anki       anki.Result    `json:"anki"`
	DurationMs int64          `json:"duration_ms"`
	Error      string         `json:"error,omitempty"`
}

func (o Outcome) Committed() bool { return o.State == Committed }

type Options struct {
	DefaultDeck    string
	RequireArchive bool
}

// Processor runs the per-item state machine. A nil sink means Anki was not
// reachable at run start and delivery is skipped.
type Processor struct {
	download   Downloader
	transcribe Transcriber
	generate   Generator
	archive    Archive
	sink       Sink
	opts       Options
	log        *logrus.Entry
}

func New(log *logrus.Entry, d Downloader, t Transcriber, g Generator, a Archive, sink Sink, opts Options) *Processor {
	return &Processor{
		download:   d,
		transcribe: t,
		generate:   g,
		archive:    a,
		sink:       sink,
		opts:       opts,
		log:        log.WithField("component", "processor"),
	}
}

// Process never panics and never returns an error; failures end in Abandoned.
func (p *Processor) Process(ctx context.Context, item types.WorkItem) (out Outcome) {
	start := time.Now()
	out = Outcome{Item: item, State: Fetched, Reached: Fetched}
	log := p.log.WithFields(logrus.Fields{"video_id": item.ID, "title": item.Title})

	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("unexpected failure while processing video")
			out.State = Abandoned
			out.Error = fmt.Sprintf("panic: %v", r)
		}
		out.DurationMs = time.Since(start).Milliseconds()
	}()

	abandon := func(stage string, err error) Outcome {
		log.WithError(err).WithField("stage", stage).Error("video abandoned")
		out.State = Abandoned
		out.Error = fmt.Sprintf("%s: %v", stage, err)
		return out
	}
	advance := func(s State) {
		out.State, out.Reached = s, s
	}
	// Reached keeps the last working stage; only State records the commit.
	commit := func() {
		out.State = Committed
	}

	log.Info("processing video")
	audio, err := p.download.Download(ctx, item.SourceURL)
	if err != nil {
		return abandon("download", err)
	}
	defer p.removeAudio(audio, log)
	advance(Downloaded)

	transcript, err := p.transcribe.Transcribe(ctx, audio)
	if err != nil {
		return abandon("transcribe", err)
	}
	advance(Transcribed)

	payload, err := p.generate.Generate(ctx, transcript, item.Title)
	switch {
	case errors.Is(err, extractor.ErrNoValidCards):
		log.WithField("category", payload.Category).Warn("model returned no usable cards, nothing to archive")
		out.Category = payload.Category
		advance(Generated)
		commit()
		return out
	case err != nil:
		return abandon("generate", err)
	}
	advance(Generated)
	out.Category = payload.Category
	out.Cards = len(payload.Cards)

	out.Archived = p.archive.Append(payload.Category, payload.Cards)
	if !out.Archived && p.opts.RequireArchive {
		return abandon("archive", ErrArchiveRequired)
	}
	advance(Archived)

	if p.sink != nil {
		deck := category.DeckName(payload.Category, p.opts.DefaultDeck)
		out.Anki = p.sink.Deliver(ctx, payload.Cards, deck, item.Title, payload.Category)
		out.Delivered = true
		advance(Delivered)
	} else {
		log.Debug("anki unavailable, skipping delivery")
	}

	commit()
	log.WithFields(logrus.Fields{
		"category": out.Category,
		"cards":    out.Cards,
		"archived": out.Archived,
	}).Info("video committed")
	return out
}

func (p *Processor) removeAudio(path string, log *logrus.Entry) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WithError(err).WithField("audio", path).Warn("could not remove audio file")
	}
}
