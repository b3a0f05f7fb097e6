package playback

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/mattn/go-shellwords"

	"github.com/example/go-readaloud/internal/audio"
)

const fileToken = "{file}"

// DefaultPlayerCommand returns the stock WAV player of the host OS.
func DefaultPlayerCommand() string {
	switch runtime.GOOS {
	case "darwin":
		return "afplay {file}"
	case "windows":
		return `powershell -NoProfile -NonInteractive -Command "(New-Object Media.SoundPlayer '{file}').PlaySync()"`
	default:
		return "aplay -q {file}"
	}
}

// commandPlayer plays each clip by running an external player on the clip
// file and waiting for it to exit.
type commandPlayer struct {
	argv []string
	log  *slog.Logger
}

func newCommandPlayer(command string, log *slog.Logger) (Device, error) {
	if strings.TrimSpace(command) == "" {
		command = DefaultPlayerCommand()
	}
	argv, err := shellwords.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse player command %q: %w", command, err)
	}
	if len(argv) == 0 {
		return nil, errors.New("player command is empty")
	}
	if _, err := exec.LookPath(argv[0]); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}
	return &commandPlayer{argv: argv, log: log}, nil
}

func (c *commandPlayer) args(path string) []string {
	args := make([]string, 0, len(c.argv))
	substituted := false
	for _, a := range c.argv[1:] {
		if strings.Contains(a, fileToken) {
			a = strings.ReplaceAll(a, fileToken, path)
			substituted = true
		}
		args = append(args, a)
	}
	if !substituted {
		args = append(args, path)
	}
	return args
}

func (c *commandPlayer) Play(clip *audio.Clip) error {
	path := clip.Path
	if path == "" {
		tmp, err := writeTempClip(clip)
		if err != nil {
			return err
		}
		defer os.Remove(tmp)
		path = tmp
	}

	// #nosec G204 -- The player command is operator configuration.
	cmd := exec.Command(c.argv[0], c.args(path)...)
	cmd.Stdout = io.Discard
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return fmt.Errorf("%w: %s: %w: %s", ErrDeviceUnavailable, c.argv[0], err, msg)
		}
		return fmt.Errorf("%w: %s: %w", ErrDeviceUnavailable, c.argv[0], err)
	}
	return nil
}

func (c *commandPlayer) Close() error { return nil }

func writeTempClip(clip *audio.Clip) (string, error) {
	data, err := audio.EncodeWAV(clip.Samples, clip.Format)
	if err != nil {
		return "", err
	}
	f, err := os.CreateTemp("", "readaloud-*.wav")
	if err != nil {
		return "", err
	}
	name := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(name)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(name)
		return "", err
	}
	return filepath.Clean(name), nil
}
