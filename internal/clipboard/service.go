// Package clipboard copies text to the system clipboard, falling back to
// platform clipboard tools when the native clipboard is unavailable.
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

// ErrNoClipboard is returned when neither the native clipboard nor a tool works
var ErrNoClipboard = errors.New("no clipboard available")

// Service writes to the clipboard
type Service struct {
	command string // optional user-configured fallback command
	logger  *slog.Logger

	// swapped by tests
	writeAll func(string) error
	lookPath func(string) (string, error)
	run      func(ctx context.Context, parts []string, input string) error
}

// NewService creates a clipboard service. command, when set, is tried
// before the built-in tools.
func NewService(command string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		command:  command,
		logger:   logger,
		writeAll: clipboard.WriteAll,
		lookPath: exec.LookPath,
		run:      runCommand,
	}
}

// Write copies text to the clipboard
func (s *Service) Write(ctx context.Context, text string) error {
	err := s.writeAll(text)
	if err == nil {
		s.logger.Debug("copied to clipboard", "text_length", len(text))
		return nil
	}
	s.logger.Debug("native clipboard unavailable, trying tools", "error", err)

	for _, parts := range s.candidates() {
		if err := s.run(ctx, parts, text); err != nil {
			s.logger.Debug("clipboard command failed", "command", parts[0], "error", err)
			continue
		}
		s.logger.Debug("copied to clipboard", "command", parts[0], "text_length", len(text))
		return nil
	}
	return fmt.Errorf("%w: %v", ErrNoClipboard, err)
}

// candidates lists the fallback commands to try, in order
func (s *Service) candidates() [][]string {
	var out [][]string
	if parts := parseCommand(s.command); len(parts) > 0 {
		out = append(out, parts)
	}

	var tools [][]string
	switch runtime.GOOS {
	case "darwin":
		tools = [][]string{{"pbcopy"}}
	case "windows":
		tools = [][]string{{"clip.exe"}}
	default:
		if isWSL() {
			tools = append(tools, []string{"clip.exe"})
		}
		tools = append(tools,
			[]string{"wl-copy"},
			[]string{"xclip", "-selection", "clipboard"},
			[]string{"xsel", "--clipboard", "--input"},
		)
	}
	for _, tool := range tools {
		if _, err := s.lookPath(tool[0]); err == nil {
			out = append(out, tool)
		}
	}
	return out
}

func runCommand(ctx context.Context, parts []string, input string) error {
	cmd := exec.CommandContext(ctx, parts[0], parts[1:]...)
	cmd.Stdin = strings.NewReader(input)
	return cmd.Run()
}

// parseCommand splits a command string into executable parts, respecting quotes
func parseCommand(command string) []string {
	var parts []string
	var current strings.Builder
	var inQuotes bool
	var quoteChar rune

	for _, char := range command {
		switch {
		case char == '\'' || char == '"':
			if !inQuotes {
				inQuotes = true
				quoteChar = char
			} else if char == quoteChar {
				inQuotes = false
			} else {
				current.WriteRune(char)
			}
		case char == ' ' && !inQuotes:
			if current.Len() > 0 {
				parts = append(parts, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(char)
		}
	}

	if current.Len() > 0 {
		parts = append(parts, current.String())
	}
	return parts
}

// isWSL reports whether we run under Windows Subsystem for Linux
func isWSL() bool {
	data, err := os.ReadFile("/proc/version")
	if err != nil {
		return false
	}
	version := strings.ToLower(string(data))
	return strings.Contains(version, "microsoft") || strings.Contains(version, "wsl")
}
