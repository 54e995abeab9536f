package player

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justchokingaround/vodhub/internal/config"
)

const stream = "https://v.test/index.m3u8"

func TestBuildArgs(t *testing.T) {
	opts := PlayOptions{
		StartTime: 90 * time.Second,
		Title:     "霸王别姬 - 正片",
		Referer:   "https://cms.test/",
		ExtraArgs: []string{"--fs"},
	}

	t.Run("mpv", func(t *testing.T) {
		args := BuildArgs("mpv", stream, opts)
		assert.Equal(t, []string{
			"--no-ytdl",
			"--start=90",
			"--force-media-title=霸王别姬 - 正片",
			"--referrer=https://cms.test/",
			"--fs",
			stream,
		}, args)
	})

	t.Run("vlc", func(t *testing.T) {
		args := BuildArgs("vlc", stream, opts)
		assert.Contains(t, args, "--start-time=90")
		assert.Contains(t, args, "--http-referrer=https://cms.test/")
		assert.Equal(t, stream, args[len(args)-1])
	})

	t.Run("mpv headers", func(t *testing.T) {
		args := BuildArgs("mpv", stream, PlayOptions{Headers: map[string]string{"Origin": "https://cms.test", "Referer": "x"}})
		assert.Equal(t, []string{"--no-ytdl", "--http-header-fields=Origin: https://cms.test", stream}, args)
	})

	t.Run("no start offset", func(t *testing.T) {
		args := BuildArgs("mpv", stream, PlayOptions{})
		assert.Equal(t, []string{"--no-ytdl", stream}, args)
	})
}

func TestFind(t *testing.T) {
	installed := map[string]string{"vlc": "/usr/bin/vlc", "vlc.exe": "/usr/bin/vlc"}
	lookup := func(name string) (string, error) {
		if p, ok := installed[name]; ok {
			return p, nil
		}
		return "", errors.New("not found")
	}

	t.Run("autodetect", func(t *testing.T) {
		l := NewLauncher(&config.PlayerConfig{}, nil)
		l.lookup = lookup
		path, err := l.Find()
		require.NoError(t, err)
		assert.Equal(t, "/usr/bin/vlc", path)
		assert.Equal(t, "vlc", playerName(path))
	})

	t.Run("configured binary missing", func(t *testing.T) {
		l := NewLauncher(&config.PlayerConfig{Binary: "mpv"}, nil)
		l.lookup = lookup
		_, err := l.Find()
		assert.Error(t, err)
	})

	t.Run("nothing installed", func(t *testing.T) {
		l := NewLauncher(&config.PlayerConfig{}, nil)
		l.lookup = func(string) (string, error) { return "", errors.New("not found") }
		_, err := l.Find()
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
