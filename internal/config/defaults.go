package config

const (
	defaultDataDir = "Generated"

	DefaultPrimaryWhisperModel  = "vaibhavs10/incredibly-fast-whisper:3ab86df6c8f54c11309d4d1f930ac292bad43ace52d10c80d87eb258b3c9f79c"
	DefaultFallbackWhisperModel = "victor-upmeet/whisperx:84d2ad2d6194fe98a17d2b60bef1c7f910c46b2f6fd38996ca457afd9c8abfcb"
	DefaultPrimaryGeminiModel   = "gemini-2.5-pro-exp-03-25"
	DefaultFallbackGeminiModel  = "gemini-2.0-flash"
)

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DataDir: defaultDataDir,
		Replicate: Replicate{
			BaseURL:        "https://api.replicate.com",
			PrimaryModel:   DefaultPrimaryWhisperModel,
			FallbackModel:  DefaultFallbackWhisperModel,
			MaxChunkMB:     20,
			ChunkMinutes:   15,
			OverlapSeconds: 5,
			PollSeconds:    2,
			MaxWaitMinutes: 30,
		},
		Gemini: Gemini{
			PrimaryModel:     DefaultPrimaryGeminiModel,
			FallbackModel:    DefaultFallbackGeminiModel,
			SystemPromptPath: "system_prompt.txt",
		},
		Anki: Anki{
			URL:              "http://127.0.0.1:8765",
			DefaultDeck:      "Generated::YouTube Flashcards",
			NoteType:         "Basic",
			FieldFront:       "Front",
			FieldBack:        "Back",
			TagsFromCategory: true,
			TimeoutSeconds:   10,
		},
		Tools: Tools{
			YtdlpPath:   "yt-dlp",
			FFmpegPath:  "ffmpeg",
			FFprobePath: "ffprobe",
			CookiesFile: "cookies.txt",
		},
		Logging: Logging{
			Level:       "info",
			Environment: "local",
			ToFile:      true,
		},
	}
}
