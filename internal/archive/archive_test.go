package archive

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"playlist-cards-go/internal/types"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	log, _ := test.NewNullLogger()
	return NewStore(t.TempDir(), logrus.NewEntry(log), "playlist_state.json")
}

func fronts(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var items []map[string]any
	require.NoError(t, json.Unmarshal(data, &items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it["front"].(string))
	}
	return out
}

func TestAppendPreservesOrder(t *testing.T) {
	s := newStore(t)

	require.True(t, s.Append("Tech / Gadgets!!", []types.Card{{Front: "A", Back: "a"}}))
	require.True(t, s.Append("Tech / Gadgets!!", []types.Card{{Front: "X", Back: "x"}, {Front: "Y", Back: "y"}}))

	path := s.Path("Tech / Gadgets!!")
	assert.Equal(t, "Tech_Gadgets.json", filepath.Base(path))
	assert.Equal(t, []string{"A", "X", "Y"}, fronts(t, path))
}

func TestAppendNeverDeduplicates(t *testing.T) {
	s := newStore(t)
	card := []types.Card{{Front: "same", Back: "same"}}
	require.True(t, s.Append("c", card))
	require.True(t, s.Append("c", card))
	assert.Equal(t, []string{"same", "same"}, fronts(t, s.Path("c")))
}

func TestAppendKeepsExtraFieldsAndUnicode(t *testing.T) {
	s := newStore(t)
	card := types.Card{Front: "Qué?", Back: "<b>sí</b>", Extra: map[string]json.RawMessage{"hint": json.RawMessage(`"h"`)}}
	require.True(t, s.Append("lang", []types.Card{card}))

	data, err := os.ReadFile(s.Path("lang"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"Qué?"`)
	assert.Contains(t, string(data), `"<b>sí</b>"`)
	assert.Contains(t, string(data), `"hint": "h"`)
}

func TestAppendReplacesNonListFile(t *testing.T) {
	s := newStore(t)
	require.NoError(t, os.WriteFile(s.Path("broken"), []byte(`{"category":"x"}`), 0o644))

	require.True(t, s.Append("broken", []types.Card{{Front: "new", Back: "b"}}))
	assert.Equal(t, []string{"new"}, fronts(t, s.Path("broken")))
}

func TestAppendFailsOnUnwritableDir(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	log, _ := test.NewNullLogger()
	s := NewStore(blocker, logrus.NewEntry(log))
	assert.False(t, s.Append("c", []types.Card{{Front: "f", Back: "b"}}))
}

func TestCategoriesAndLoad(t *testing.T) {
	s := newStore(t)
	require.True(t, s.Append("Zoology", []types.Card{{Front: "z", Back: "z"}}))
	require.True(t, s.Append("Art", []types.Card{{Front: "a", Back: "a"}}))
	require.NoError(t, os.WriteFile(filepath.Join(s.dir, "playlist_state.json"), []byte(`[]`), 0o644))

	names, err := s.Categories()
	require.NoError(t, err)
	assert.Equal(t, []string{"Art", "Zoology"}, names)

	cards, err := s.Load("Art")
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, "a", cards[0].Front)

	missing, err := s.Load("Nothing")
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestAppendNeverTouchesReservedFile(t *testing.T) {
	s := newStore(t)
	ledgerPath := filepath.Join(s.dir, "playlist_state.json")
	require.NoError(t, os.WriteFile(ledgerPath, []byte(`["old"]`), 0o644))

	require.True(t, s.Append("playlist state", []types.Card{{Front: "Q", Back: "A"}}))

	data, err := os.ReadFile(ledgerPath)
	require.NoError(t, err)
	assert.JSONEq(t, `["old"]`, string(data))

	path := s.Path("playlist state")
	assert.Equal(t, "playlist_state_category.json", filepath.Base(path))
	assert.Equal(t, []string{"Q"}, fronts(t, path))

	names, err := s.Categories()
	require.NoError(t, err)
	assert.Contains(t, names, "playlist_state_category")
}
