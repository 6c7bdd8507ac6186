package anki

import (
	"bytes"
	"context"
	"encoding/json"
	"slices"
	"strings"

	"github.com/sirupsen/logrus"

	"playlist-cards-go/internal/category"
	"playlist-cards-go/internal/types"
)

// Note is an addNotes request entry.
type Note struct {
	DeckName  string            `json:"deckName"`
	ModelName string            `json:"modelName"`
	Fields    map[string]string `json:"fields"`
	Options   NoteOptions       `json:"options"`
	Tags      []string          `json:"tags"`
}

type NoteOptions struct {
	AllowDuplicate        bool                  `json:"allowDuplicate"`
	DuplicateScope        string                `json:"duplicateScope"`
	DuplicateScopeOptions DuplicateScopeOptions `json:"duplicateScopeOptions"`
}

type DuplicateScopeOptions struct {
	DeckName string `json:"deckName"`
}

// Result counts per-note delivery outcomes.
type Result struct {
	Added      int
	Duplicates int
	Failed     int
}

func (r *Result) Add(o Result) {
	r.Added += o.Added
	r.Duplicates += o.Duplicates
	r.Failed += o.Failed
}

// API is the subset of AnkiConnect the sink drives.
type API interface {
	CreateDeck(ctx context.Context, deck string) error
	ModelNames(ctx context.Context) ([]string, error)
	ModelFieldNames(ctx context.Context, model string) ([]string, error)
	AddNotes(ctx context.Context, notes []Note) ([]json.RawMessage, error)
	CanAddNotes(ctx context.Context, notes []Note) ([]bool, error)
}

// Settings names the note type and fields cards are mapped onto.
type Settings struct {
	DefaultDeck      string
	NoteType         string
	FieldFront       string
	FieldBack        string
	FieldSource      string
	TagsFromCategory bool
}

// Sink delivers cards as notes. Every outcome is reported in the Result; the
// sink never returns an error.
type Sink struct {
	api      API
	settings Settings
	log      *logrus.Entry
}

func NewSink(api API, settings Settings, log *logrus.Entry) *Sink {
	return &Sink{api: api, settings: settings, log: log.WithField("component", "anki")}
}

func (s *Sink) Deliver(ctx context.Context, cards []types.Card, deck, sourceTitle, rawCategory string) Result {
	if len(cards) == 0 {
		return Result{}
	}
	if deck == "" {
		deck = s.settings.DefaultDeck
	}
	entry := s.log.WithField("deck", deck)
	allFailed := Result{Failed: len(cards)}

	if err := s.api.CreateDeck(ctx, deck); err != nil {
		entry.WithError(err).Error("could not create or verify deck")
		return allFailed
	}
	models, err := s.api.ModelNames(ctx)
	if err != nil {
		entry.WithError(err).Error("could not list note types")
		return allFailed
	}
	if !slices.Contains(models, s.settings.NoteType) {
		entry.WithField("note_type", s.settings.NoteType).Error("note type not found in Anki")
		return allFailed
	}
	fields, err := s.api.ModelFieldNames(ctx, s.settings.NoteType)
	if err != nil {
		entry.WithError(err).Error("could not list note type fields")
		return allFailed
	}
	if missing := s.missingFields(fields); len(missing) > 0 {
		entry.WithFields(logrus.Fields{"note_type": s.settings.NoteType, "missing": missing}).Error("note type lacks required fields")
		return allFailed
	}

	var res Result
	tags := s.tags(rawCategory)
	notes := make([]Note, 0, len(cards))
	for i, c := range cards {
		note, ok := s.note(c, deck, sourceTitle, tags)
		if !ok {
			entry.WithField("index", i).Warn("skipping card with empty front or back")
			res.Failed++
			continue
		}
		notes = append(notes, note)
	}
	if len(notes) == 0 {
		return res
	}

	results, err := s.api.AddNotes(ctx, notes)
	switch {
	case err != nil:
		entry.WithError(err).Error("addNotes failed")
		res.Failed += len(notes)
	case len(results) != len(notes):
		entry.WithFields(logrus.Fields{"sent": len(notes), "results": len(results)}).Warn("addNotes result count mismatch, counting all as failed")
		res.Failed += len(notes)
	default:
		for i, raw := range results {
			res.Add(s.classify(ctx, notes[i], raw, entry.WithField("note", i+1)))
		}
	}

	summary := entry.WithFields(logrus.Fields{"added": res.Added, "duplicates": res.Duplicates, "failed": res.Failed})
	if res.Added > 0 {
		summary.Info("anki delivery complete")
	} else {
		summary.Warn("anki delivery complete")
	}
	return res
}

func (s *Sink) classify(ctx context.Context, note Note, raw json.RawMessage, entry *logrus.Entry) Result {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		can, err := s.api.CanAddNotes(ctx, []Note{note})
		if err == nil && len(can) == 1 && !can[0] {
			return Result{Duplicates: 1}
		}
		entry.WithError(err).Warn("note rejected and duplicate check inconclusive")
		return Result{Failed: 1}
	}
	var id json.Number
	if err := json.Unmarshal(raw, &id); err == nil {
		return Result{Added: 1}
	}
	entry.WithField("result", string(raw)).Warn("unexpected addNotes result")
	return Result{Failed: 1}
}

func (s *Sink) note(c types.Card, deck, sourceTitle string, tags []string) (Note, bool) {
	front, back := strings.TrimSpace(c.Front), strings.TrimSpace(c.Back)
	if front == "" || back == "" {
		return Note{}, false
	}
	fields := map[string]string{
		s.settings.FieldFront: front,
		s.settings.FieldBack:  back,
	}
	if s.settings.FieldSource != "" {
		source := "Source: Unknown"
		if sourceTitle != "" {
			source = "Source: " + sourceTitle
		}
		fields[s.settings.FieldSource] = source
	}
	return Note{
		DeckName:  deck,
		ModelName: s.settings.NoteType,
		Fields:    fields,
		Options: NoteOptions{
			AllowDuplicate:        false,
			DuplicateScope:        "deck",
			DuplicateScopeOptions: DuplicateScopeOptions{DeckName: deck},
		},
		Tags: tags,
	}, true
}

func (s *Sink) tags(rawCategory string) []string {
	tags := []string{}
	if !s.settings.TagsFromCategory || strings.TrimSpace(rawCategory) == "" {
		return tags
	}
	if tag := category.Tag(rawCategory); tag != "" {
		tags = append(tags, tag)
	}
	return tags
}

func (s *Sink) missingFields(have []string) []string {
	var missing []string
	for _, want := range []string{s.settings.FieldFront, s.settings.FieldBack, s.settings.FieldSource} {
		if want != "" && !slices.Contains(have, want) {
			missing = append(missing, want)
		}
	}
	return missing
}
