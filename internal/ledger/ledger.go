// Package ledger persists the set of playlist item ids that have been fully
// processed, so later runs only pick up new items.
package ledger

import (
	"encoding/json"
	"errors"
	"os"
	"sort"

	"github.com/sirupsen/logrus"

	"playlist-cards-go/internal/storage"
)

// Ledger is the file-backed seen set. It is not safe for concurrent writers;
// the run lock guarantees a single writer.
type Ledger struct {
	path string
	log  *logrus.Entry
}

func New(path string, log *logrus.Entry) *Ledger {
	return &Ledger{path: path, log: log.WithField("component", "ledger")}
}

func (l *Ledger) Path() string { return l.path }

// Load never fails: a missing, unreadable or corrupt ledger yields an empty set.
func (l *Ledger) Load() map[string]struct{} {
	seen := make(map[string]struct{})

	data, err := os.ReadFile(l.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		l.log.WithField("path", l.path).Info("no state file, starting fresh")
		return seen
	case err != nil:
		l.log.WithError(err).WithField("path", l.path).Error("could not read state file, starting fresh")
		return seen
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		l.log.WithError(err).WithField("path", l.path).Warn("state file is corrupt, starting fresh")
		return seen
	}
	for _, id := range ids {
		seen[id] = struct{}{}
	}
	l.log.WithField("count", len(seen)).Info("loaded processed items")
	return seen
}

// Save overwrites the ledger with the full set, sorted for stable diffs.
func (l *Ledger) Save(seen map[string]struct{}) bool {
	if err := storage.WriteJSON(l.path, Sorted(seen)); err != nil {
		l.log.WithError(err).WithField("path", l.path).Error("failed to save state")
		return false
	}
	l.log.WithField("count", len(seen)).Info("saved processed items")
	return true
}

// Sorted returns the ids in ascending order, never nil.
func Sorted(seen map[string]struct{}) []string {
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
