// Package aggregator folds per-item outcomes into the end-of-run summary.
package aggregator

import (
	"sort"

	"github.com/sirupsen/logrus"

	"playlist-cards-go/internal/anki"
	"playlist-cards-go/internal/processor"
)

type Summary struct {
	Listed      int            `json:"listed"`
	AlreadySeen int            `json:"already_seen"`
	Attempted   int            `json:"attempted"`
	Committed   int            `json:"committed"`
	Abandoned   int            `json:"abandoned"`
	CardsSaved  int            `json:"cards_saved"`
	Categories  map[string]int `json:"categories"`
	AbandonedAt map[string]int `json:"abandoned_at"`
	Anki        anki.Result    `json:"anki"`
	Interrupted bool           `json:"interrupted"`
	DurationMs  int64          `json:"duration_ms"`
}

// Aggregate counts outcomes. Abandoned items are bucketed by the last state
// they reached; cards only count when they were archived.
func Aggregate(outcomes []processor.Outcome) Summary {
	s := Summary{Categories: map[string]int{}, AbandonedAt: map[string]int{}}
	for _, o := range outcomes {
		s.Attempted++
		if !o.Committed() {
			s.Abandoned++
			s.AbandonedAt[o.Reached.String()]++
			continue
		}
		s.Committed++
		if o.Category != "" {
			s.Categories[o.Category]++
		}
		if o.Archived {
			s.CardsSaved += o.Cards
		}
		s.Anki.Add(o.Anki)
	}
	return s
}

// CategoryNames lists the categories that received a committed item, sorted.
func (s Summary) CategoryNames() []string {
	names := make([]string, 0, len(s.Categories))
	for name := range s.Categories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s Summary) Fields() logrus.Fields {
	return logrus.Fields{
		"listed":          s.Listed,
		"already_seen":    s.AlreadySeen,
		"attempted":       s.Attempted,
		"committed":       s.Committed,
		"abandoned":       s.Abandoned,
		"cards_saved":     s.CardsSaved,
		"categories":      s.CategoryNames(),
		"anki_added":      s.Anki.Added,
		"anki_duplicates": s.Anki.Duplicates,
		"anki_failed":     s.Anki.Failed,
		"interrupted":     s.Interrupted,
		"duration_ms":     s.DurationMs,
	}
}
