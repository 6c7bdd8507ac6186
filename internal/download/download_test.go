package download

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"playlist-cards-go/internal/command"
)

func quietLog() *logrus.Entry {
	log, _ := test.NewNullLogger()
	return logrus.NewEntry(log)
}

// outputBase pulls the "--output" template out of the yt-dlp arguments.
func outputBase(t *testing.T, args []string) string {
	t.Helper()
	i := slices.Index(args, "--output")
	require.GreaterOrEqual(t, i, 0)
	return strings.TrimSuffix(args[i+1], ".%(ext)s")
}

func TestDownloadProducesMP3(t *testing.T) {
	dir := t.TempDir()
	cookies := filepath.Join(dir, "cookies.txt")
	require.NoError(t, os.WriteFile(cookies, []byte("# cookies"), 0o600))

	var gotArgs []string
	runner := command.Func(func(_ context.Context, name string, args ...string) ([]byte, error) {
		assert.Equal(t, "yt-dlp", name)
		gotArgs = args
		return nil, os.WriteFile(outputBase(t, args)+".mp3", []byte("ID3audio"), 0o644)
	})

	d := New(runner, Options{CookiesFile: cookies, WorkDir: filepath.Join(dir, "work")}, quietLog())
	path, err := d.Download(context.Background(), "https://www.youtube.com/watch?v=abc")
	require.NoError(t, err)

	assert.FileExists(t, path)
	assert.True(t, strings.HasPrefix(filepath.Base(path), "ytaudio_"))
	assert.Contains(t, gotArgs, "--no-playlist")
	assert.Contains(t, gotArgs, "bestaudio/best")
	assert.Contains(t, gotArgs, cookies)
	assert.Equal(t, "https://www.youtube.com/watch?v=abc", gotArgs[len(gotArgs)-1])
}

func TestDownloadSkipsMissingCookies(t *testing.T) {
	dir := t.TempDir()
	var gotArgs []string
	runner := command.Func(func(_ context.Context, _ string, args ...string) ([]byte, error) {
		gotArgs = args
		return nil, os.WriteFile(outputBase(t, args)+".mp3", []byte("x"), 0o644)
	})

	d := New(runner, Options{CookiesFile: filepath.Join(dir, "absent.txt"), WorkDir: dir}, quietLog())
	_, err := d.Download(context.Background(), "https://www.youtube.com/watch?v=abc")
	require.NoError(t, err)
	assert.NotContains(t, gotArgs, "--cookies")
}

func TestDownloadFailureRemovesPartials(t *testing.T) {
	dir := t.TempDir()
	runner := command.Func(func(_ context.Context, _ string, args ...string) ([]byte, error) {
		base := outputBase(t, args)
		require.NoError(t, os.WriteFile(base+".mp3.part", []byte("half"), 0o644))
		return nil, &command.Error{Name: "yt-dlp", Stderr: "HTTP Error 403", Err: errors.New("exit status 1")}
	})

	d := New(runner, Options{WorkDir: dir}, quietLog())
	_, err := d.Download(context.Background(), "https://www.youtube.com/watch?v=abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDownloadWithoutMP3(t *testing.T) {
	dir := t.TempDir()
	runner := command.Func(func(_ context.Context, _ string, args ...string) ([]byte, error) {
		return nil, os.WriteFile(outputBase(t, args)+".webm", []byte("opus"), 0o644)
	})

	d := New(runner, Options{WorkDir: dir}, quietLog())
	_, err := d.Download(context.Background(), "https://www.youtube.com/watch?v=abc")
	assert.ErrorIs(t, err, ErrNoAudio)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDownloadEmptyMP3(t *testing.T) {
	dir := t.TempDir()
	runner := command.Func(func(_ context.Context, _ string, args ...string) ([]byte, error) {
		return nil, os.WriteFile(outputBase(t, args)+".mp3", nil, 0o644)
	})

	d := New(runner, Options{WorkDir: dir}, quietLog())
	_, err := d.Download(context.Background(), "https://www.youtube.com/watch?v=abc")
	assert.ErrorIs(t, err, ErrNoAudio)
}
