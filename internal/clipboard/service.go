// Package clipboard copies stream URLs to the system clipboard.
package clipboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/atotto/clipboard"
)

// ErrNoTool means neither the system clipboard nor a fallback command worked
var ErrNoTool = errors.New("no clipboard tool available")

// Service writes text to the clipboard, falling back to an external command
// when the system clipboard cannot be reached
type Service struct {
	command string
	primary func(string) error
	lookup  func(string) (string, error)
	logger  *slog.Logger
}

// NewService creates a Service. command overrides the platform fallback tool
// and may be empty.
func NewService(command string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		command: strings.TrimSpace(command),
		primary: clipboard.WriteAll,
		lookup:  exec.LookPath,
		logger:  logger,
	}
}

// Copy puts text on the clipboard
func (s *Service) Copy(ctx context.Context, text string) error {
	err := s.primary(text)
	if err == nil {
		s.logger.Debug("copied to clipboard", "length", len(text))
		return nil
	}
	s.logger.Warn("system clipboard unavailable, trying fallback", "error", err)

	parts := s.fallback()
	if len(parts) == 0 {
		return fmt.Errorf("%w: %v", ErrNoTool, err)
	}

	cmd := exec.CommandContext(ctx, parts[0], parts[1:]...)
	cmd.Stdin = strings.NewReader(text)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("clipboard command %q failed: %w", parts[0], err)
	}
	s.logger.Debug("copied to clipboard", "command", parts[0], "length", len(text))
	return nil
}

func (s *Service) fallback() []string {
	if s.command != "" {
		return parseCommand(s.command)
	}

	var candidates [][]string
	switch runtime.GOOS {
	case "darwin":
		candidates = [][]string{{"pbcopy"}}
	case "windows":
		candidates = [][]string{{"clip.exe"}}
	case "linux":
		if isWSL() {
			candidates = [][]string{{"clip.exe"}}
			break
		}
		candidates = [][]string{
			{"wl-copy"},
			{"xclip", "-selection", "clipboard"},
			{"xsel", "--clipboard", "--input"},
		}
	}

	for _, c := range candidates {
		if _, err := s.lookup(c[0]); err == nil {
			return c
		}
	}
	return nil
}

// parseCommand splits a command line on spaces, keeping quoted runs together
func parseCommand(command string) []string {
	var parts []string
	var current strings.Builder
	var quote rune

	flush := func() {
		if current.Len() > 0 {
			parts = append(parts, current.String())
			current.Reset()
		}
	}

	for _, r := range command {
		switch {
		case quote == 0 && (r == '\'' || r == '"'):
			quote = r
		case r == quote:
			quote = 0
		case r == ' ' && quote == 0:
			flush()
		default:
			current.WriteRune(r)
		}
	}
	flush()

	return parts
}

func isWSL() bool {
	data, err := os.ReadFile("/proc/version")
	if err != nil {
		return false
	}
	v := strings.ToLower(string(data))
	return strings.Contains(v, "microsoft") || strings.Contains(v, "wsl")
}
