package synth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-shellwords"
)

const stderrTailBytes = 2048

// ExecEngine runs a synthesis executable once per segment with the argument
// contract
//
//	<command...> --output <dest> --lang <lang> --voice <voice> --text <text>
//
// and interprets its exit status.
type ExecEngine struct {
	argv       []string
	timeout    time.Duration
	hideWindow bool
	log        *slog.Logger
}

// Option configures an ExecEngine.
type Option func(*ExecEngine)

// WithTimeout bounds each engine run. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(e *ExecEngine) { e.timeout = d }
}

// WithHiddenWindow suppresses the console window the engine would otherwise
// open on Windows. It has no effect elsewhere.
func WithHiddenWindow(hide bool) Option {
	return func(e *ExecEngine) { e.hideWindow = hide }
}

// WithLogger sets the logger used for per-run diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(e *ExecEngine) { e.log = l }
}

// NewExecEngine parses command with shell quoting rules. The first word is
// the executable (resolved via PATH unless absolute); any further words are
// passed before the contract flags.
func NewExecEngine(command string, opts ...Option) (*ExecEngine, error) {
	argv, err := ParseCommand(command)
	if err != nil {
		return nil, err
	}
	e := &ExecEngine{
		argv:       argv,
		hideWindow: true,
		log:        slog.Default(),
	}
	for _, fn := range opts {
		fn(e)
	}
	e.log = e.log.With(slog.String("component", "synth"))
	return e, nil
}

// ParseCommand splits an engine command line into argv.
func ParseCommand(command string) ([]string, error) {
	argv, err := shellwords.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse engine command %q: %w", command, err)
	}
	if len(argv) == 0 {
		return nil, errors.New("engine command is empty")
	}
	return argv, nil
}

// Executable returns the engine program name as configured.
func (e *ExecEngine) Executable() string { return e.argv[0] }

// Args returns the full argument list (without the executable) for one run.
func (e *ExecEngine) Args(text string, voice Voice, dest string) []string {
	args := append([]string{}, e.argv[1:]...)
	return append(args,
		"--output", dest,
		"--lang", voice.Lang,
		"--voice", voice.Name,
		"--text", text,
	)
}

// Synthesize runs the engine for text and waits for it to exit. Any stale
// file at dest is removed first, so a zero exit that writes nothing is
// detected instead of replaying old audio.
func (e *ExecEngine) Synthesize(ctx context.Context, text string, voice Voice, dest string) error {
	if err := os.Remove(dest); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: clear %s: %w", ErrFailed, dest, err)
	}

	runCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	// #nosec G204 -- The engine command is operator configuration, not request input.
	cmd := exec.CommandContext(runCtx, e.argv[0], e.Args(text, voice, dest)...)
	stderr := &tailBuffer{limit: stderrTailBytes}
	cmd.Stdout = io.Discard
	cmd.Stderr = stderr
	if e.hideWindow {
		hideConsole(cmd)
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: start %s: %w", ErrUnavailable, e.argv[0], err)
	}
	waitErr := cmd.Wait()
	elapsed := time.Since(start)

	if waitErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("synthesis interrupted: %w", ctxErr)
		}
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s timed out after %s", ErrFailed, e.argv[0], e.timeout)
		}
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return fmt.Errorf("%w: %s exited with status %d%s",
				ErrFailed, e.argv[0], exitErr.ExitCode(), stderr.suffix())
		}
		return fmt.Errorf("%w: %s: %w", ErrFailed, e.argv[0], waitErr)
	}

	info, err := os.Stat(dest)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("%w: %s exited 0 but wrote no file at %s%s", ErrFailed, e.argv[0], dest, stderr.suffix())
	case err != nil:
		return fmt.Errorf("%w: stat %s: %w", ErrFailed, dest, err)
	case info.Size() == 0:
		return fmt.Errorf("%w: %s exited 0 but %s is empty%s", ErrFailed, e.argv[0], dest, stderr.suffix())
	}

	e.log.Debug("engine run complete",
		slog.Int("text_len", len(text)),
		slog.String("lang", voice.Lang),
		slog.String("voice", voice.Name),
		slog.Int64("duration_ms", elapsed.Milliseconds()),
		slog.Int64("bytes", info.Size()),
	)
	return nil
}

// Probe resolves the executable of command the way Synthesize would.
func Probe(command string) (string, error) {
	argv, err := ParseCommand(command)
	if err != nil {
		return "", err
	}
	path, err := exec.LookPath(argv[0])
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return path, nil
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.TrimSpace(string(t.buf))
}

func (t *tailBuffer) suffix() string {
	if s := t.String(); s != "" {
		return ": " + s
	}
	return ""
}
