// Package download fetches a video's audio track as mp3 with yt-dlp.
package download

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"playlist-cards-go/internal/command"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// ErrNoAudio means yt-dlp exited cleanly but left no usable mp3 behind.
var ErrNoAudio = errors.New("no audio file produced")

// formats yt-dlp sometimes leaves behind when post-processing fails.
var alternates = []string{".webm", ".m4a", ".ogg", ".opus"}

type Options struct {
	YtdlpPath   string
	CookiesFile string
	WorkDir     string
}

// Downloader shells out to yt-dlp. It is safe for sequential use only.
type Downloader struct {
	runner command.Runner
	opts   Options
	log    *logrus.Entry
	now    func() time.Time
}

func New(runner command.Runner, opts Options, log *logrus.Entry) *Downloader {
	if opts.YtdlpPath == "" {
		opts.YtdlpPath = "yt-dlp"
	}
	if opts.WorkDir == "" {
		opts.WorkDir = os.TempDir()
	}
	return &Downloader{runner: runner, opts: opts, log: log.WithField("component", "download"), now: time.Now}
}

// Download writes the audio for url into the work directory and returns the
// mp3 path. The caller owns the file and must remove it.
func (d *Downloader) Download(ctx context.Context, url string) (string, error) {
	if err := os.MkdirAll(d.opts.WorkDir, 0o755); err != nil {
		return "", fmt.Errorf("create work dir: %w", err)
	}

	base := filepath.Join(d.opts.WorkDir, fmt.Sprintf("ytaudio_%d_%s", d.now().Unix(), uuid.NewString()[:8]))
	final := base + ".mp3"
	log := d.log.WithFields(logrus.Fields{"url": url, "output": final})

	args := []string{
		"--format", "bestaudio/best",
		"--extract-audio",
		"--audio-format", "mp3",
		"--audio-quality", "128K",
		"--no-playlist",
		"--no-progress",
		"--user-agent", userAgent,
		"--output", base + ".%(ext)s",
	}
	if cookies := d.opts.CookiesFile; cookies != "" {
		if _, err := os.Stat(cookies); err == nil {
			args = append(args, "--cookies", cookies)
		} else {
			log.WithField("cookies", cookies).Warn("cookies file not found, downloading without it")
		}
	}
	args = append(args, "--", url)

	log.Info("downloading audio")
	start := time.Now()
	if _, err := d.runner.Run(ctx, d.opts.YtdlpPath, args...); err != nil {
		d.cleanup(base, log)
		return "", fmt.Errorf("yt-dlp %s: %w", url, err)
	}

	info, err := os.Stat(final)
	if err != nil || info.Size() == 0 {
		for _, ext := range alternates {
			if _, altErr := os.Stat(base + ext); altErr == nil {
				log.WithField("found", base+ext).Warn("audio left in original format, mp3 conversion failed")
			}
		}
		d.cleanup(base, log)
		return "", fmt.Errorf("%w: %s", ErrNoAudio, final)
	}

	log.WithFields(logrus.Fields{
		"bytes":       info.Size(),
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("audio downloaded")
	return final, nil
}

// cleanup removes every file sharing the download's base name, including
// partial and unconverted ones.
func (d *Downloader) cleanup(base string, log *logrus.Entry) {
	matches, err := filepath.Glob(base + ".*")
	if err != nil {
		return
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.WithError(err).WithField("file", m).Warn("could not remove leftover download")
		}
	}
}
