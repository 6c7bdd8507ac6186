package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	stateFileName = "playlist_state.json"
	logFileName   = "youtube_flashcard_script.log"
	lockFileName  = ".cards.lock"
)

// YouTube holds the playlist source settings.
type YouTube struct {
	APIKey     string `toml:"api_key"`
	PlaylistID string `toml:"playlist_id"`
}

// Replicate holds the transcription service and chunking settings.
type Replicate struct {
	APIToken       string `toml:"api_token"`
	BaseURL        string `toml:"base_url"`
	PrimaryModel   string `toml:"primary_model"`
	FallbackModel  string `toml:"fallback_model"`
	MaxChunkMB     int    `toml:"max_chunk_mb"`
	ChunkMinutes   int    `toml:"chunk_minutes"`
	OverlapSeconds int    `toml:"overlap_seconds"`
	PollSeconds    int    `toml:"poll_seconds"`
	MaxWaitMinutes int    `toml:"max_wait_minutes"`
}

// Gemini holds the generative model settings.
type Gemini struct {
	APIKey           string `toml:"api_key"`
	PrimaryModel     string `toml:"primary_model"`
	FallbackModel    string `toml:"fallback_model"`
	SystemPromptPath string `toml:"system_prompt_path"`
}

// Anki holds the AnkiConnect delivery settings.
type Anki struct {
	URL              string `toml:"url"`
	DefaultDeck      string `toml:"default_deck"`
	NoteType         string `toml:"note_type"`
	FieldFront       string `toml:"field_front"`
	FieldBack        string `toml:"field_back"`
	FieldSource      string `toml:"field_source"`
	TagsFromCategory bool   `toml:"tags_from_category"`
	TimeoutSeconds   int    `toml:"timeout_seconds"`
}

// Tools points at the external binaries the pipeline shells out to.
type Tools struct {
	YtdlpPath   string `toml:"ytdlp_path"`
	FFmpegPath  string `toml:"ffmpeg_path"`
	FFprobePath string `toml:"ffprobe_path"`
	CookiesFile string `toml:"cookies_file"`
	WorkDir     string `toml:"work_dir"`
}

// Pipeline holds run-level policy.
type Pipeline struct {
	RequireArchive bool `toml:"require_archive"`
	TimeoutMinutes int  `toml:"timeout_minutes"`
}

// Logging holds log output settings.
type Logging struct {
	Level       string `toml:"level"`
	Environment string `toml:"environment"`
	ToFile      bool   `toml:"to_file"`
}

// Config is built once at startup and passed by value to every component.
type Config struct {
	DataDir   string    `toml:"data_dir"`
	YouTube   YouTube   `toml:"youtube"`
	Replicate Replicate `toml:"replicate"`
	Gemini    Gemini    `toml:"gemini"`
	Anki      Anki      `toml:"anki"`
	Tools     Tools     `toml:"tools"`
	Pipeline  Pipeline  `toml:"pipeline"`
	Logging   Logging   `toml:"logging"`
}

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// Load builds the configuration from defaults, an optional TOML file and the
// process environment, in that order of precedence (environment wins).
func Load(path string) (Config, error) {
	return LoadWithEnv(path, os.LookupEnv)
}

// LoadWithEnv is Load with an injectable environment lookup.
func LoadWithEnv(path string, lookup LookupFunc) (Config, error) {
	cfg := Default()
	if path = strings.TrimSpace(path); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if lookup != nil {
		if err := applyEnv(&cfg, lookup); err != nil {
			return Config{}, err
		}
	}
	cfg.normalize()
	return cfg, nil
}

// Validate reports missing credentials that make a run impossible.
func (c Config) Validate() error {
	var errs []error
	if c.YouTube.APIKey == "" {
		errs = append(errs, errors.New("YOUTUBE_API_KEY not set"))
	}
	if c.YouTube.PlaylistID == "" {
		errs = append(errs, errors.New("YOUTUBE_PLAYLIST_ID not set"))
	}
	if c.Replicate.APIToken == "" {
		errs = append(errs, errors.New("REPLICATE_API_TOKEN not set"))
	}
	if c.Gemini.APIKey == "" {
		errs = append(errs, errors.New("GEMINI_API_KEY not set"))
	}
	if c.Replicate.MaxChunkMB <= 0 {
		errs = append(errs, fmt.Errorf("replicate.max_chunk_mb must be positive, got %d", c.Replicate.MaxChunkMB))
	}
	if c.Replicate.ChunkMinutes <= 0 {
		errs = append(errs, fmt.Errorf("replicate.chunk_minutes must be positive, got %d", c.Replicate.ChunkMinutes))
	}
	return errors.Join(errs...)
}

func (c Config) StateFile() string { return filepath.Join(c.DataDir, stateFileName) }
func (c Config) LogFile() string   { return filepath.Join(c.DataDir, logFileName) }
func (c Config) LockFile() string  { return filepath.Join(c.DataDir, lockFileName) }

// MaxChunkBytes is the size above which audio is split before transcription.
func (c Config) MaxChunkBytes() int64 {
	return int64(c.Replicate.MaxChunkMB) * 1024 * 1024
}

// RunTimeout is zero when no process-level timeout is configured.
func (c Config) RunTimeout() time.Duration {
	return time.Duration(c.Pipeline.TimeoutMinutes) * time.Minute
}

func (c *Config) normalize() {
	c.DataDir = strings.TrimSpace(c.DataDir)
	if c.DataDir == "" {
		c.DataDir = defaultDataDir
	}
	c.Replicate.BaseURL = strings.TrimRight(strings.TrimSpace(c.Replicate.BaseURL), "/")
	c.Anki.URL = strings.TrimSpace(c.Anki.URL)
	c.Anki.FieldSource = strings.TrimSpace(c.Anki.FieldSource)
	if c.Tools.WorkDir == "" {
		c.Tools.WorkDir = filepath.Join(os.TempDir(), "ytaudio_flashcards")
	}
}

func applyEnv(c *Config, lookup LookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	var errs []error
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}

	str("DATA_DIR", &c.DataDir)
	str("YOUTUBE_API_KEY", &c.YouTube.APIKey)
	str("YOUTUBE_PLAYLIST_ID", &c.YouTube.PlaylistID)

	str("REPLICATE_API_TOKEN", &c.Replicate.APIToken)
	str("REPLICATE_BASE_URL", &c.Replicate.BaseURL)
	str("PRIMARY_WHISPER_MODEL", &c.Replicate.PrimaryModel)
	str("FALLBACK_WHISPER_MODEL", &c.Replicate.FallbackModel)
	integer("MAX_CHUNK_SIZE_MB", &c.Replicate.MaxChunkMB)

	str("GEMINI_API_KEY", &c.Gemini.APIKey)
	str("PRIMARY_GEMINI_MODEL", &c.Gemini.PrimaryModel)
	str("FALLBACK_GEMINI_MODEL", &c.Gemini.FallbackModel)
	str("SYSTEM_PROMPT_PATH", &c.Gemini.SystemPromptPath)

	str("ANKI_CONNECT_URL", &c.Anki.URL)
	str("ANKI_DEFAULT_DECK_NAME", &c.Anki.DefaultDeck)
	str("ANKI_NOTE_TYPE", &c.Anki.NoteType)
	str("ANKI_FIELD_FRONT", &c.Anki.FieldFront)
	str("ANKI_FIELD_BACK", &c.Anki.FieldBack)
	str("ANKI_FIELD_SOURCE", &c.Anki.FieldSource)
	boolean("ANKI_TAGS_FROM_CATEGORY", &c.Anki.TagsFromCategory)

	str("YTDLP_PATH", &c.Tools.YtdlpPath)
	str("FFMPEG_PATH", &c.Tools.FFmpegPath)
	str("FFPROBE_PATH", &c.Tools.FFprobePath)
	str("COOKIES_FILE", &c.Tools.CookiesFile)
	str("AUDIO_WORK_DIR", &c.Tools.WorkDir)

	boolean("REQUIRE_ARCHIVE", &c.Pipeline.RequireArchive)
	integer("RUN_TIMEOUT", &c.Pipeline.TimeoutMinutes)

	str("LOG_LEVEL", &c.Logging.Level)
	str("ENVIRONMENT", &c.Logging.Environment)
	boolean("LOG_TO_FILE", &c.Logging.ToFile)

	return errors.Join(errs...)
}
