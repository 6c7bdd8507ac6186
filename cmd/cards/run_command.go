package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"playlist-cards-go/internal/anki"
	"playlist-cards-go/internal/archive"
	"playlist-cards-go/internal/command"
	"playlist-cards-go/internal/config"
	"playlist-cards-go/internal/download"
	"playlist-cards-go/internal/extractor"
	"playlist-cards-go/internal/ledger"
	"playlist-cards-go/internal/logger"
	"playlist-cards-go/internal/pipeline"
	"playlist-cards-go/internal/playlist"
	"playlist-cards-go/internal/processor"
	"playlist-cards-go/internal/runlock"
	"playlist-cards-go/internal/transcription"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Process videos added to the playlist since the last run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, ctx)
		},
	}
}

func runPipeline(cmd *cobra.Command, cc *commandContext) error {
	cfg, err := cc.ensureConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	lock, err := runlock.Acquire(cfg.LockFile())
	if err != nil {
		return err
	}
	defer lock.Release()

	base := newLogger(cfg)
	defer base.Close()
	log := base.WithRun("")
	cli := log.Component("cli")
	cli.WithField("playlist", cfg.YouTube.PlaylistID).Info("starting flashcard run")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if timeout := cfg.RunTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	lister, err := playlist.NewLister(ctx, cfg.YouTube.APIKey, log.Entry)
	if err != nil {
		return err
	}
	gemini, err := extractor.NewGemini(ctx, cfg.Gemini.APIKey)
	if err != nil {
		return err
	}
	defer gemini.Close()

	runner := command.New()
	downloader := download.New(runner, download.Options{
		YtdlpPath:   cfg.Tools.YtdlpPath,
		CookiesFile: cfg.Tools.CookiesFile,
		WorkDir:     cfg.Tools.WorkDir,
	}, log.Entry)

	replicate := transcription.NewClient(cfg.Replicate.APIToken, log.Entry,
		transcription.WithBaseURL(cfg.Replicate.BaseURL),
		transcription.WithPolling(
			time.Duration(cfg.Replicate.PollSeconds)*time.Second,
			time.Duration(cfg.Replicate.MaxWaitMinutes)*time.Minute,
		),
	)
	transcriber := transcription.NewTranscriber(log.Entry,
		transcription.NewFFmpeg(runner, cfg.Tools.FFmpegPath, cfg.Tools.FFprobePath),
		transcription.Options{
			MaxChunkBytes: cfg.MaxChunkBytes(),
			TargetChunk:   time.Duration(cfg.Replicate.ChunkMinutes) * time.Minute,
			Overlap:       time.Duration(cfg.Replicate.OverlapSeconds) * time.Second,
		},
		transcription.NewModelStrategy(replicate, cfg.Replicate.PrimaryModel, transcription.FastWhisperInput, log.Entry),
		transcription.NewModelStrategy(replicate, cfg.Replicate.FallbackModel, transcription.WhisperXInput, log.Entry),
	)

	generator := extractor.NewGenerator(log.Entry, gemini, cfg.Gemini.SystemPromptPath,
		cfg.Gemini.PrimaryModel, cfg.Gemini.FallbackModel)
	store := archive.NewStore(cfg.DataDir, log.Entry, filepath.Base(cfg.StateFile()))

	proc := processor.New(log.Entry, downloader, transcriber, generator, store, ankiSink(ctx, cfg, log), processor.Options{
		DefaultDeck:    cfg.Anki.DefaultDeck,
		RequireArchive: cfg.Pipeline.RequireArchive,
	})
	p := pipeline.New(log.Entry, ledger.New(cfg.StateFile(), log.Entry), lister, proc, cfg.YouTube.PlaylistID)

	summary, err := p.Run(ctx)
	if err != nil {
		if errors.Is(err, pipeline.ErrNoWork) {
			cli.WithError(err).Error("nothing to do")
		}
		return err
	}
	if summary.Interrupted {
		cli.WithError(context.Cause(ctx)).Warn("run stopped early")
	}
	return nil
}

// ankiSink probes AnkiConnect once. A nil sink disables delivery for the run.
func ankiSink(ctx context.Context, cfg config.Config, log *logger.Logger) processor.Sink {
	entry := log.Component("anki")
	if cfg.Anki.URL == "" {
		entry.Info("no AnkiConnect URL configured, cards will only be archived")
		return nil
	}
	client := anki.NewClient(cfg.Anki.URL, time.Duration(cfg.Anki.TimeoutSeconds)*time.Second, log.Entry)
	version, err := client.Version(ctx)
	if err != nil {
		entry.WithError(err).WithField("url", cfg.Anki.URL).Warn("AnkiConnect unavailable, cards will only be archived")
		return nil
	}
	entry.WithField("version", version).Info("connected to AnkiConnect")

	return anki.NewSink(client, anki.Settings{
		DefaultDeck:      cfg.Anki.DefaultDeck,
		NoteType:         cfg.Anki.NoteType,
		FieldFront:       cfg.Anki.FieldFront,
		FieldBack:        cfg.Anki.FieldBack,
		FieldSource:      cfg.Anki.FieldSource,
		TagsFromCategory: cfg.Anki.TagsFromCategory,
	}, log.Entry)
}
