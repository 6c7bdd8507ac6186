// Package archive keeps an append-only JSON file of cards per category.
package archive

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"playlist-cards-go/internal/category"
	"playlist-cards-go/internal/storage"
	"playlist-cards-go/internal/types"
)

const ext = ".json"

// Store writes <dir>/<sanitized category>.json files.
type Store struct {
	dir      string
	reserved map[string]struct{}
	log      *logrus.Entry
}

// NewStore returns a store rooted at dir. Files named in reserved share the
// directory but are never treated as categories.
func NewStore(dir string, log *logrus.Entry, reserved ...string) *Store {
	r := make(map[string]struct{}, len(reserved))
	for _, name := range reserved {
		r[filepath.Base(name)] = struct{}{}
	}
	return &Store{dir: dir, reserved: r, log: log.WithField("component", "archive")}
}

// reservedSuffix moves a category off a file name that belongs to something else.
const reservedSuffix = "_category"

// Path is the file backing a category label. A label that sanitizes to a
// reserved file name is suffixed so it never overwrites that file.
func (s *Store) Path(label string) string {
	name := category.Sanitize(label)
	for s.isReserved(name + ext) {
		name += reservedSuffix
	}
	return filepath.Join(s.dir, name+ext)
}

func (s *Store) isReserved(file string) bool {
	for r := range s.reserved {
		if strings.EqualFold(r, file) {
			return true
		}
	}
	return false
}

// Append adds cards after the existing entries and rewrites the file. Existing
// entries are kept byte-for-byte, whatever their shape.
func (s *Store) Append(label string, cards []types.Card) bool {
	path := s.Path(label)
	entry := s.log.WithField("path", path)

	existing := s.loadRaw(path)
	before := len(existing)
	for _, c := range cards {
		raw, err := c.MarshalJSON()
		if err != nil {
			entry.WithError(err).Error("could not encode card")
			return false
		}
		existing = append(existing, raw)
	}

	if err := storage.WriteJSON(path, existing); err != nil {
		entry.WithError(err).Error("failed to save cards")
		return false
	}
	entry.WithFields(logrus.Fields{"total": len(existing), "new": len(existing) - before}).Info("saved cards")
	return true
}

// Load decodes the cards stored for a category, skipping entries that are not
// card objects.
func (s *Store) Load(label string) ([]types.Card, error) {
	path := s.Path(label)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	cards := make([]types.Card, 0, len(raws))
	for _, raw := range raws {
		var c types.Card
		if err := json.Unmarshal(raw, &c); err != nil {
			continue
		}
		cards = append(cards, c)
	}
	return cards, nil
}

// Categories lists the sanitized names of all stored categories.
func (s *Store) Categories() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.dir, err)
	}

	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ext) || strings.HasPrefix(name, ".") {
			continue
		}
		if s.isReserved(name) {
			continue
		}
		names = append(names, strings.TrimSuffix(name, ext))
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) loadRaw(path string) []json.RawMessage {
	entry := s.log.WithField("path", path)

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		entry.WithError(err).Error("could not read card file, starting with empty list")
		return nil
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		entry.WithError(err).Warn("card file is not a JSON list, ignoring previous content")
		return nil
	}
	return raws
}
