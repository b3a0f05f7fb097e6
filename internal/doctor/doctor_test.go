package doctor_test

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/example/go-readaloud/internal/doctor"
)

var errBinaryNotFound = errors.New("executable file not found in $PATH")

func passingConfig(t *testing.T) doctor.Config {
	t.Helper()
	return doctor.Config{
		Engine:  func() (string, error) { return "/usr/local/bin/speech", nil },
		Device:  "speaker",
		WorkDir: filepath.Join(t.TempDir(), "work"),
	}
}

func hasFailureContaining(failures []string, substr string) bool {
	for _, f := range failures {
		if strings.Contains(f, substr) {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// all-pass scenario
// ---------------------------------------------------------------------------

func TestRun_AllChecksPass(t *testing.T) {
	cfg := passingConfig(t)

	var out strings.Builder
	result := doctor.Run(cfg, &out)

	if result.Failed() {
		t.Errorf("expected all checks to pass; failures: %v", result.Failures())
	}

	for _, want := range []string{"speech engine: /usr/local/bin/speech", "playback device: speaker", "work dir"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
	if strings.Contains(out.String(), doctor.FailMark) {
		t.Errorf("output has a failure mark:\n%s", out.String())
	}
	if _, err := os.Stat(cfg.WorkDir); err != nil {
		t.Errorf("work dir not created: %v", err)
	}
}

// ---------------------------------------------------------------------------
// engine
// ---------------------------------------------------------------------------

func TestRun_EngineMissingFails(t *testing.T) {
	cfg := passingConfig(t)
	cfg.Engine = func() (string, error) { return "", errBinaryNotFound }

	var out strings.Builder
	result := doctor.Run(cfg, &out)

	if !result.Failed() {
		t.Fatal("expected failure when the engine is not found")
	}
	if !hasFailureContaining(result.Failures(), "speech engine") {
		t.Errorf("expected failure mentioning speech engine, got: %v", result.Failures())
	}
	if !strings.Contains(out.String(), doctor.FailMark+" speech engine") {
		t.Errorf("output should mark the engine check failed:\n%s", out.String())
	}
}

func TestRun_NoEngineResolverFails(t *testing.T) {
	cfg := passingConfig(t)
	cfg.Engine = nil

	result := doctor.Run(cfg, &strings.Builder{})
	if !hasFailureContaining(result.Failures(), "speech engine") {
		t.Errorf("expected engine failure, got: %v", result.Failures())
	}
}

// ---------------------------------------------------------------------------
// device and player
// ---------------------------------------------------------------------------

func TestRun_InvalidDeviceFails(t *testing.T) {
	cfg := passingConfig(t)
	cfg.Device = "tape"
	cfg.DeviceErr = errors.New(`invalid playback device "tape"`)

	result := doctor.Run(cfg, &strings.Builder{})
	if !hasFailureContaining(result.Failures(), "playback device") {
		t.Errorf("expected device failure, got: %v", result.Failures())
	}
}

func TestRun_PlayerChecked(t *testing.T) {
	cfg := passingConfig(t)
	cfg.Device = "command"
	cfg.Player = func() (string, error) { return "", errBinaryNotFound }

	var out strings.Builder
	result := doctor.Run(cfg, &out)
	if !hasFailureContaining(result.Failures(), "player command") {
		t.Errorf("expected player failure, got: %v", result.Failures())
	}

	cfg.Player = func() (string, error) { return "/usr/bin/aplay", nil }
	out.Reset()
	result = doctor.Run(cfg, &out)
	if result.Failed() {
		t.Errorf("unexpected failures: %v", result.Failures())
	}
	if !strings.Contains(out.String(), "player command: /usr/bin/aplay") {
		t.Errorf("output should list the player:\n%s", out.String())
	}
}

func TestRun_PlayerSkippedWhenNil(t *testing.T) {
	var out strings.Builder
	doctor.Run(passingConfig(t), &out)
	if strings.Contains(out.String(), "player command") {
		t.Errorf("player check should be skipped:\n%s", out.String())
	}
}

// ---------------------------------------------------------------------------
// work dir
// ---------------------------------------------------------------------------

func TestRun_WorkDirEmptyFails(t *testing.T) {
	cfg := passingConfig(t)
	cfg.WorkDir = ""

	result := doctor.Run(cfg, &strings.Builder{})
	if !hasFailureContaining(result.Failures(), "work dir") {
		t.Errorf("expected work dir failure, got: %v", result.Failures())
	}
}

func TestRun_WorkDirIsAFileFails(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("path semantics differ on windows")
	}
	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg := passingConfig(t)
	cfg.WorkDir = filepath.Join(file, "sub")

	result := doctor.Run(cfg, &strings.Builder{})
	if !hasFailureContaining(result.Failures(), "work dir") {
		t.Errorf("expected work dir failure, got: %v", result.Failures())
	}
}

// ---------------------------------------------------------------------------
// smoke test
// ---------------------------------------------------------------------------

func TestRun_SmokeTest(t *testing.T) {
	cfg := passingConfig(t)
	cfg.Smoke = func() error { return nil }

	var out strings.Builder
	if result := doctor.Run(cfg, &out); result.Failed() {
		t.Fatalf("unexpected failures: %v", result.Failures())
	}
	if !strings.Contains(out.String(), "smoke test") {
		t.Errorf("output should report the smoke test:\n%s", out.String())
	}

	cfg.Smoke = func() error { return errors.New("synthesis failed: exit status 1") }
	if result := doctor.Run(cfg, &strings.Builder{}); !hasFailureContaining(result.Failures(), "smoke test") {
		t.Errorf("expected smoke failure, got: %v", result.Failures())
	}
}

func TestResult_AddFailure(t *testing.T) {
	var r doctor.Result
	if r.Failed() {
		t.Fatal("zero Result should not be failed")
	}
	r.AddFailure("external check")
	if !r.Failed() || r.Failures()[0] != "external check" {
		t.Errorf("Failures() = %v", r.Failures())
	}
}
