package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadWithEnv("", envMap(nil))
	require.NoError(t, err)

	assert.Equal(t, "Generated", cfg.DataDir)
	assert.Equal(t, filepath.Join("Generated", "playlist_state.json"), cfg.StateFile())
	assert.Equal(t, int64(20*1024*1024), cfg.MaxChunkBytes())
	assert.Equal(t, 15, cfg.Replicate.ChunkMinutes)
	assert.Equal(t, 5, cfg.Replicate.OverlapSeconds)
	assert.Equal(t, "Basic", cfg.Anki.NoteType)
	assert.True(t, cfg.Anki.TagsFromCategory)
	assert.False(t, cfg.Pipeline.RequireArchive)
	assert.Zero(t, cfg.RunTimeout())
	assert.NotEmpty(t, cfg.Tools.WorkDir)
}

func TestLoadFileThenEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cards.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
data_dir = "from-file"

[youtube]
playlist_id = "PL-file"

[anki]
note_type = "Cloze"
tags_from_category = false

[pipeline]
timeout_minutes = 90
`), 0o644))

	cfg, err := LoadWithEnv(path, envMap(map[string]string{
		"YOUTUBE_PLAYLIST_ID": "PL-env",
		"ANKI_FIELD_SOURCE":   " Source ",
		"REQUIRE_ARCHIVE":     "true",
	}))
	require.NoError(t, err)

	assert.Equal(t, "from-file", cfg.DataDir)
	assert.Equal(t, "PL-env", cfg.YouTube.PlaylistID)
	assert.Equal(t, "Cloze", cfg.Anki.NoteType)
	assert.False(t, cfg.Anki.TagsFromCategory)
	assert.Equal(t, "Source", cfg.Anki.FieldSource)
	assert.True(t, cfg.Pipeline.RequireArchive)
	assert.Equal(t, 90*time.Minute, cfg.RunTimeout())
	// untouched sections keep defaults
	assert.Equal(t, "Front", cfg.Anki.FieldFront)
}

func TestLoadRejectsBadEnvValues(t *testing.T) {
	_, err := LoadWithEnv("", envMap(map[string]string{
		"ANKI_TAGS_FROM_CATEGORY": "maybe",
		"MAX_CHUNK_SIZE_MB":       "twenty",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ANKI_TAGS_FROM_CATEGORY")
	assert.Contains(t, err.Error(), "MAX_CHUNK_SIZE_MB")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := LoadWithEnv(filepath.Join(t.TempDir(), "nope.toml"), envMap(nil))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	err := cfg.Validate()
	require.Error(t, err)
	for _, key := range []string{"YOUTUBE_API_KEY", "YOUTUBE_PLAYLIST_ID", "REPLICATE_API_TOKEN", "GEMINI_API_KEY"} {
		assert.Contains(t, err.Error(), key)
	}

	cfg.YouTube = YouTube{APIKey: "k", PlaylistID: "p"}
	cfg.Replicate.APIToken = "r"
	cfg.Gemini.APIKey = "g"
	assert.NoError(t, cfg.Validate())
}
