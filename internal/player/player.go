// Package player hands resolved m3u8 streams to an external video player.
package player

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/justchokingaround/vodhub/internal/config"
)

// ErrNotFound means no supported player binary is installed
var ErrNotFound = errors.New("no supported player found (install mpv, vlc or iina)")

// PlayOptions contains options for starting playback
type PlayOptions struct {
	StartTime time.Duration
	Title     string
	Referer   string
	UserAgent string
	Headers   map[string]string
	ExtraArgs []string
}

// Launcher runs one of the supported players as a child process
type Launcher struct {
	binary string
	args   []string
	lookup func(string) (string, error)
	logger *slog.Logger
}

// NewLauncher creates a Launcher from the player config
func NewLauncher(cfg *config.PlayerConfig, logger *slog.Logger) *Launcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Launcher{
		binary: strings.TrimSpace(cfg.Binary),
		args:   cfg.Args,
		lookup: exec.LookPath,
		logger: logger,
	}
}

// Find returns the path of the configured player or the first supported one
// on PATH
func (l *Launcher) Find() (string, error) {
	if l.binary != "" {
		path, err := l.lookup(l.binary)
		if err != nil {
			return "", fmt.Errorf("%s not found in PATH: %w", l.binary, err)
		}
		return path, nil
	}

	candidates := []string{"mpv", "vlc"}
	switch runtime.GOOS {
	case "darwin":
		candidates = []string{"iina", "mpv", "vlc"}
	case "windows":
		candidates = []string{"mpv.exe", "vlc.exe"}
	}
	for _, c := range candidates {
		if path, err := l.lookup(c); err == nil {
			return path, nil
		}
	}
	return "", ErrNotFound
}

// Play starts the player on streamURL and waits for it to exit
func (l *Launcher) Play(ctx context.Context, streamURL string, opts PlayOptions) error {
	path, err := l.Find()
	if err != nil {
		return err
	}

	opts.ExtraArgs = append(append([]string{}, l.args...), opts.ExtraArgs...)
	args := BuildArgs(playerName(path), streamURL, opts)

	l.logger.Info("starting player", "player", path, "title", opts.Title, "start", opts.StartTime)
	l.logger.Debug("player arguments", "args", args)

	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("player exited: %w", err)
	}
	return nil
}

func playerName(path string) string {
	name := strings.ToLower(filepath.Base(path))
	return strings.TrimSuffix(name, ".exe")
}

// BuildArgs builds the command line for the named player. The URL is always last.
func BuildArgs(name, streamURL string, opts PlayOptions) []string {
	var args []string

	switch name {
	case "vlc":
		if opts.StartTime > 0 {
			args = append(args, fmt.Sprintf("--start-time=%d", int(opts.StartTime.Seconds())))
		}
		if opts.Title != "" {
			args = append(args, "--meta-title="+opts.Title)
		}
		if opts.Referer != "" {
			args = append(args, "--http-referrer="+opts.Referer)
		}
		if opts.UserAgent != "" {
			args = append(args, "--http-user-agent="+opts.UserAgent)
		}
	case "iina":
		args = append(args, "--no-stdin")
		if opts.StartTime > 0 {
			args = append(args, fmt.Sprintf("--mpv-start=%.0f", opts.StartTime.Seconds()))
		}
		if opts.Title != "" {
			args = append(args, "--mpv-force-media-title="+opts.Title)
		}
	default:
		args = append(args, "--no-ytdl")
		if opts.StartTime > 0 {
			args = append(args, fmt.Sprintf("--start=%.0f", opts.StartTime.Seconds()))
		}
		if opts.Title != "" {
			args = append(args, "--force-media-title="+opts.Title)
		}
		if opts.Referer != "" {
			args = append(args, "--referrer="+opts.Referer)
		}
		if opts.UserAgent != "" {
			args = append(args, "--user-agent="+opts.UserAgent)
		}
		var headers []string
		for key, value := range opts.Headers {
			if key != "User-Agent" && key != "Referer" {
				headers = append(headers, key+": "+value)
			}
		}
		if len(headers) > 0 {
			args = append(args, "--http-header-fields="+strings.Join(headers, ","))
		}
	}

	args = append(args, opts.ExtraArgs...)
	return append(args, streamURL)
}
