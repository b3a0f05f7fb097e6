// Package testutil provides shared skip helpers and WAV fixtures for tests.
//
// Each Require helper calls t.Skip with a clear human-readable reason when
// the named prerequisite is absent, so integration tests remain runnable in
// partial environments without failing noisily.
//
// Typical usage:
//
//	func TestMyIntegration(t *testing.T) {
//	    cmd := testutil.RequireEngine(t)
//	    ...
//	}
package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/example/go-readaloud/internal/audio"
	"github.com/example/go-readaloud/internal/synth"
)

// EngineEnv names the environment variable that points integration tests at
// a real speech engine command.
const EngineEnv = "READALOUD_ENGINE_COMMAND"

// RequireEngine skips the test unless the speech engine named by
// READALOUD_ENGINE_COMMAND (default "speech") resolves on PATH. It returns
// the engine command.
func RequireEngine(tb testing.TB) string {
	tb.Helper()

	command := os.Getenv(EngineEnv)
	if command == "" {
		command = synth.DefaultCommand
	}

	argv, err := synth.ParseCommand(command)
	if err != nil {
		tb.Skipf("speech engine command %q unusable: %v", command, err)
		return command
	}

	if _, err := exec.LookPath(argv[0]); err != nil {
		tb.Skipf("speech engine not available (%q not in PATH); set %s to override", argv[0], EngineEnv)
	}
	return command
}

// WriteWAVFixture encodes samples as a 16-bit WAV in dir and returns its path.
func WriteWAVFixture(tb testing.TB, dir, name string, samples []float32, f audio.Format) string {
	tb.Helper()

	data, err := audio.EncodeWAV(samples, f)
	if err != nil {
		tb.Fatalf("encode fixture %s: %v", name, err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		tb.Fatalf("write fixture %s: %v", name, err)
	}
	return path
}

// Tone returns n frames of a quiet square wave in f, so fixtures are not
// pure silence.
func Tone(n int, f audio.Format) []float32 {
	out := make([]float32, n*f.Channels)
	for i := range out {
		if (i/f.Channels/20)%2 == 0 {
			out[i] = 0.25
		} else {
			out[i] = -0.25
		}
	}
	return out
}
