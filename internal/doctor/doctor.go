// Package doctor provides environment preflight checks for readaloud.
package doctor

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// PassMark and FailMark are the prefix symbols printed for each check result.
const (
	PassMark = "✓"
	FailMark = "✗"
)

// ResolveFunc returns the resolved location of an executable or an error if
// it cannot be found.
type ResolveFunc func() (string, error)

// Config holds injectable dependencies for each doctor check.
type Config struct {
	// Engine resolves the speech engine executable.
	Engine ResolveFunc
	// Device is the configured playback device name.
	Device string
	// DeviceErr is the result of validating Device.
	DeviceErr error
	// Player resolves the external player; nil skips the check, which is
	// the case for every device but "command".
	Player ResolveFunc
	// WorkDir must be creatable and writable.
	WorkDir string
	// Smoke, when set, synthesizes and decodes one short segment.
	Smoke func() error
}

// Result collects the outcome of all checks.
type Result struct {
	failures []string
}

// Failed returns true if any check failed.
func (r *Result) Failed() bool { return len(r.failures) > 0 }

// Failures returns the list of failure messages.
func (r *Result) Failures() []string { return append([]string(nil), r.failures...) }

// AddFailure appends an external failure message to the result.
func (r *Result) AddFailure(msg string) { r.failures = append(r.failures, msg) }

func (r *Result) fail(msg string) { r.failures = append(r.failures, msg) }

// Run executes all configured checks and writes human-readable output to w.
// Each check line is prefixed with PassMark or FailMark.
func Run(cfg Config, w io.Writer) Result {
	var res Result

	// ---- speech engine ----------------------------------------------------
	if cfg.Engine == nil {
		res.fail("speech engine: no resolver configured")
		fmt.Fprintf(w, "%s speech engine: not configured\n", FailMark)
	} else if path, err := cfg.Engine(); err != nil {
		res.fail(fmt.Sprintf("speech engine: %v", err))
		fmt.Fprintf(w, "%s speech engine: not found (%v)\n", FailMark, err)
	} else {
		fmt.Fprintf(w, "%s speech engine: %s\n", PassMark, path)
	}

	// ---- playback device --------------------------------------------------
	if cfg.DeviceErr != nil {
		res.fail(fmt.Sprintf("playback device: %v", cfg.DeviceErr))
		fmt.Fprintf(w, "%s playback device: %v\n", FailMark, cfg.DeviceErr)
	} else {
		fmt.Fprintf(w, "%s playback device: %s\n", PassMark, cfg.Device)
	}

	if cfg.Player != nil {
		if path, err := cfg.Player(); err != nil {
			res.fail(fmt.Sprintf("player command: %v", err))
			fmt.Fprintf(w, "%s player command: not found (%v)\n", FailMark, err)
		} else {
			fmt.Fprintf(w, "%s player command: %s\n", PassMark, path)
		}
	}

	// ---- work dir ---------------------------------------------------------
	if err := checkWritable(cfg.WorkDir); err != nil {
		res.fail(fmt.Sprintf("work dir %q: %v", cfg.WorkDir, err))
		fmt.Fprintf(w, "%s work dir %s: %v\n", FailMark, cfg.WorkDir, err)
	} else {
		fmt.Fprintf(w, "%s work dir: %s\n", PassMark, cfg.WorkDir)
	}

	// ---- smoke test -------------------------------------------------------
	if cfg.Smoke != nil {
		if err := cfg.Smoke(); err != nil {
			res.fail(fmt.Sprintf("smoke test: %v", err))
			fmt.Fprintf(w, "%s smoke test: %v\n", FailMark, err)
		} else {
			fmt.Fprintf(w, "%s smoke test: synthesized and decoded\n", PassMark)
		}
	}

	return res
}

// checkWritable creates dir if needed and writes a probe file into it.
func checkWritable(dir string) error {
	if dir == "" {
		return fmt.Errorf("not set")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(filepath.Clean(name))
}
