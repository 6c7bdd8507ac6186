package transcription

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"playlist-cards-go/internal/tier"
	"playlist-cards-go/internal/types"
)

type fakeSplitter struct {
	duration   time.Duration
	durErr     error
	failExport map[int]bool
	exported   []types.TranscriptSegment
}

func (f *fakeSplitter) Duration(context.Context, string) (time.Duration, error) {
	return f.duration, f.durErr
}

func (f *fakeSplitter) Export(_ context.Context, _ string, seg types.TranscriptSegment, dest string) error {
	f.exported = append(f.exported, seg)
	if f.failExport[seg.Index] {
		return errors.New("encoder exploded")
	}
	return os.WriteFile(dest, []byte("chunk"), 0o644)
}

func strategy(name string, fn func(path string) (string, error)) tier.Strategy[string, string] {
	return tier.StrategyFunc[string, string]{Label: name, Fn: func(_ context.Context, path string) (string, error) {
		return fn(path)
	}}
}

func smallOpts() Options {
	return Options{MaxChunkBytes: 10, TargetChunk: 15 * time.Minute, Overlap: 5 * time.Second}
}

func TestTranscribeSmallFileDirect(t *testing.T) {
	audio := writeAudio(t, 5)
	var got []string
	primary := strategy("primary", func(path string) (string, error) {
		got = append(got, path)
		return "short talk", nil
	})

	tr := NewTranscriber(quietLog(), &fakeSplitter{}, smallOpts(), primary)
	text, err := tr.Transcribe(context.Background(), audio)
	require.NoError(t, err)
	assert.Equal(t, "short talk", text)
	assert.Equal(t, []string{audio}, got)
}

func TestTranscribeSmallFileFallsBack(t *testing.T) {
	audio := writeAudio(t, 5)
	primary := strategy("primary", func(string) (string, error) { return "", errors.New("413") })
	fallback := strategy("fallback", func(string) (string, error) { return "from fallback", nil })

	text, err := NewTranscriber(quietLog(), &fakeSplitter{}, smallOpts(), primary, fallback).
		Transcribe(context.Background(), audio)
	require.NoError(t, err)
	assert.Equal(t, "from fallback", text)
}

func TestTranscribeChunkedStitchesAndCleansUp(t *testing.T) {
	audio := writeAudio(t, 50)
	chunkDir := filepath.Join(filepath.Dir(audio), chunkDirName)
	split := &fakeSplitter{duration: 40 * time.Minute}

	replies := map[string]string{"chunk_001.mp3": "hello", "chunk_002.mp3": "", "chunk_003.mp3": "world"}
	primary := strategy("primary", func(path string) (string, error) {
		_, err := os.Stat(path)
		require.NoError(t, err, "chunk must exist while it is transcribed")
		return replies[filepath.Base(path)], nil
	})
	fallback := strategy("fallback", func(string) (string, error) { return "", nil })

	text, err := NewTranscriber(quietLog(), split, smallOpts(), primary, fallback).Transcribe(context.Background(), audio)
	require.NoError(t, err)
	assert.Equal(t, "hello world", text)

	require.Len(t, split.exported, 3)
	assert.Equal(t, int64(795_000), split.exported[1].StartMS)
	assert.NoDirExists(t, chunkDir)
}

func TestTranscribeChunkedSkipsFailedExport(t *testing.T) {
	audio := writeAudio(t, 50)
	split := &fakeSplitter{duration: 20 * time.Minute, failExport: map[int]bool{0: true}}
	var seen []string
	primary := strategy("primary", func(path string) (string, error) {
		seen = append(seen, filepath.Base(path))
		return "second half", nil
	})

	text, err := NewTranscriber(quietLog(), split, smallOpts(), primary).Transcribe(context.Background(), audio)
	require.NoError(t, err)
	assert.Equal(t, "second half", text)
	assert.Equal(t, []string{"chunk_002.mp3"}, seen)
}

func TestTranscribeChunkedAllFail(t *testing.T) {
	audio := writeAudio(t, 50)
	split := &fakeSplitter{duration: 20 * time.Minute}
	primary := strategy("primary", func(string) (string, error) { return "", errors.New("down") })

	_, err := NewTranscriber(quietLog(), split, smallOpts(), primary).Transcribe(context.Background(), audio)
	assert.ErrorIs(t, err, ErrNoTranscript)
	assert.NoDirExists(t, filepath.Join(filepath.Dir(audio), chunkDirName))
}

func TestTranscribeUndecodableAudio(t *testing.T) {
	audio := writeAudio(t, 50)
	split := &fakeSplitter{durErr: errors.New("moov atom not found")}
	primary := strategy("primary", func(string) (string, error) { return "never", nil })

	_, err := NewTranscriber(quietLog(), split, smallOpts(), primary).Transcribe(context.Background(), audio)
	assert.ErrorIs(t, err, ErrNoTranscript)
	assert.Empty(t, split.exported)
}

func TestTranscribeMissingFileOrModels(t *testing.T) {
	primary := strategy("primary", func(string) (string, error) { return "never", nil })
	_, err := NewTranscriber(quietLog(), &fakeSplitter{}, smallOpts(), primary).
		Transcribe(context.Background(), filepath.Join(t.TempDir(), "missing.mp3"))
	assert.ErrorIs(t, err, ErrNoTranscript)

	_, err = NewTranscriber(quietLog(), &fakeSplitter{}, smallOpts()).Transcribe(context.Background(), writeAudio(t, 1))
	assert.ErrorIs(t, err, ErrNoTranscript)
}

func TestTranscribeLeavesForeignFilesInChunkDir(t *testing.T) {
	audio := writeAudio(t, 50)
	chunkDir := filepath.Join(filepath.Dir(audio), chunkDirName)
	require.NoError(t, os.MkdirAll(chunkDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(chunkDir, "stray.txt"), nil, 0o644))

	primary := strategy("primary", func(string) (string, error) { return "x", nil })
	_, err := NewTranscriber(quietLog(), &fakeSplitter{duration: time.Minute}, smallOpts(), primary).
		Transcribe(context.Background(), audio)
	require.NoError(t, err)
	assert.DirExists(t, chunkDir)
	assert.FileExists(t, filepath.Join(chunkDir, "stray.txt"))
}
