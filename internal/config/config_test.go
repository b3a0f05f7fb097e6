package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

// fakeBinder wraps a pflag.FlagSet to satisfy the flagBinder interface.
type fakeBinder struct {
	fs *pflag.FlagSet
}

func (f *fakeBinder) Flags() *pflag.FlagSet { return f.fs }

// newFlagBinder creates a FlagSet with all config flags registered at their
// defaults and parses args into it.
func newFlagBinder(t *testing.T, defaults Config, args ...string) *fakeBinder {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs, defaults)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return &fakeBinder{fs: fs}
}

// chdirTemp runs the test in an empty directory so a readaloud.yaml in the
// package directory can never leak into Load.
func chdirTemp(t *testing.T) {
	t.Helper()
	t.Chdir(t.TempDir())
}

// --- DefaultConfig ---

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Engine.Command != "speech" {
		t.Errorf("Engine.Command = %q; want %q", cfg.Engine.Command, "speech")
	}
	if cfg.Engine.Lang != "ja-JP" {
		t.Errorf("Engine.Lang = %q; want %q", cfg.Engine.Lang, "ja-JP")
	}
	if cfg.Engine.Voice != "ja-JP-Wavenet-C" {
		t.Errorf("Engine.Voice = %q; want %q", cfg.Engine.Voice, "ja-JP-Wavenet-C")
	}
	if !cfg.Engine.HideWindow {
		t.Error("Engine.HideWindow = false; want true")
	}
	if cfg.Segment.StopWords != "。、？！…,.?!" {
		t.Errorf("Segment.StopWords = %q", cfg.Segment.StopWords)
	}
	if !cfg.Segment.SkipBlank {
		t.Error("Segment.SkipBlank = false; want true")
	}
	if cfg.Playback.Device != "speaker" {
		t.Errorf("Playback.Device = %q; want speaker", cfg.Playback.Device)
	}
	if !strings.Contains(cfg.Playback.PlayerCommand, "{file}") {
		t.Errorf("Playback.PlayerCommand = %q; want {file} placeholder", cfg.Playback.PlayerCommand)
	}
	if cfg.Playback.SampleRate != 24000 || cfg.Playback.Channels != 1 {
		t.Errorf("Playback format = %d/%d; want 24000/1", cfg.Playback.SampleRate, cfg.Playback.Channels)
	}
	if cfg.Pipeline.Lookahead != 0 {
		t.Errorf("Pipeline.Lookahead = %d; want 0", cfg.Pipeline.Lookahead)
	}
	if cfg.Server.ListenAddr != "127.0.0.1:7878" {
		t.Errorf("Server.ListenAddr = %q", cfg.Server.ListenAddr)
	}
	if cfg.Server.MaxTextBytes != 16384 {
		t.Errorf("Server.MaxTextBytes = %d; want 16384", cfg.Server.MaxTextBytes)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q; want info", cfg.LogLevel)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() = %v", err)
	}
}

func TestNormalizeDevice(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"", "speaker", false},
		{"speaker", "speaker", false},
		{" Command ", "command", false},
		{"WAV", "wav", false},
		{"discard", "discard", false},
		{"none", "discard", false},
		{"null", "discard", false},
		{"tape", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeDevice(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NormalizeDevice(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("NormalizeDevice(%q) = %q; want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRegisterFlags(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs, DefaultConfig())

	for name := range flagKeys {
		if fs.Lookup(name) == nil {
			t.Errorf("flag --%s not registered", name)
		}
	}

	fs.VisitAll(func(f *pflag.Flag) {
		if _, ok := flagKeys[f.Name]; !ok {
			t.Errorf("flag --%s has no config key", f.Name)
		}
	})
}

func TestLoad_Defaults(t *testing.T) {
	chdirTemp(t)
	defaults := DefaultConfig()

	cfg, err := Load(LoadOptions{
		Cmd:      newFlagBinder(t, defaults),
		Defaults: defaults,
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg != defaults {
		t.Errorf("Load() = %+v; want defaults %+v", cfg, defaults)
	}
}

func TestLoad_FlagOverride(t *testing.T) {
	chdirTemp(t)
	defaults := DefaultConfig()

	cfg, err := Load(LoadOptions{
		Cmd: newFlagBinder(t, defaults,
			"--engine-command=python synth.py",
			"--playback-device=wav",
			"--pipeline-lookahead=2",
			"--segment-skip-blank=false",
			"--log-level=debug",
		),
		Defaults: defaults,
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Engine.Command != "python synth.py" {
		t.Errorf("Engine.Command = %q", cfg.Engine.Command)
	}
	if cfg.Playback.Device != "wav" {
		t.Errorf("Playback.Device = %q; want wav", cfg.Playback.Device)
	}
	if cfg.Pipeline.Lookahead != 2 {
		t.Errorf("Pipeline.Lookahead = %d; want 2", cfg.Pipeline.Lookahead)
	}
	if cfg.Segment.SkipBlank {
		t.Error("Segment.SkipBlank = true; want false")
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q; want debug", cfg.LogLevel)
	}
}

func TestLoad_ShortAliases(t *testing.T) {
	chdirTemp(t)
	defaults := DefaultConfig()

	cfg, err := Load(LoadOptions{
		Cmd:      newFlagBinder(t, defaults, "--voice=en-US-Wavenet-D", "--lang=en-US", "--device=discard"),
		Defaults: defaults,
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Engine.Voice != "en-US-Wavenet-D" {
		t.Errorf("Engine.Voice = %q", cfg.Engine.Voice)
	}
	if cfg.Engine.Lang != "en-US" {
		t.Errorf("Engine.Lang = %q", cfg.Engine.Lang)
	}
	if cfg.Playback.Device != "discard" {
		t.Errorf("Playback.Device = %q; want discard", cfg.Playback.Device)
	}
}

func TestLoad_LongFormNotMaskedByUnsetAlias(t *testing.T) {
	chdirTemp(t)
	defaults := DefaultConfig()

	cfg, err := Load(LoadOptions{
		Cmd:      newFlagBinder(t, defaults, "--playback-device=command"),
		Defaults: defaults,
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Playback.Device != "command" {
		t.Errorf("Playback.Device = %q; want command", cfg.Playback.Device)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	chdirTemp(t)
	t.Setenv("READALOUD_LOG_LEVEL", "warn")
	t.Setenv("READALOUD_ENGINE_COMMAND", "/opt/speech/bin/speech")
	t.Setenv("READALOUD_PIPELINE_KEEP_CLIPS", "true")

	cfg, err := Load(LoadOptions{Defaults: DefaultConfig()})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q; want warn", cfg.LogLevel)
	}
	if cfg.Engine.Command != "/opt/speech/bin/speech" {
		t.Errorf("Engine.Command = %q", cfg.Engine.Command)
	}
	if !cfg.Pipeline.KeepClips {
		t.Error("Pipeline.KeepClips = false; want true")
	}
}

func TestLoad_FlagBeatsEnv(t *testing.T) {
	chdirTemp(t)
	t.Setenv("READALOUD_ENGINE_VOICE", "from-env")
	defaults := DefaultConfig()

	cfg, err := Load(LoadOptions{
		Cmd:      newFlagBinder(t, defaults, "--engine-voice=from-flag"),
		Defaults: defaults,
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Engine.Voice != "from-flag" {
		t.Errorf("Engine.Voice = %q; want from-flag", cfg.Engine.Voice)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	chdirTemp(t)
	cfgFile := filepath.Join(t.TempDir(), "readaloud.yaml")

	content := `
log_level: error
engine:
  command: say-it
  voice: en-GB-Standard-B
playback:
  device: command
  player_command: "ffplay -nodisp -autoexit {file}"
pipeline:
  lookahead: 1
`
	if err := os.WriteFile(cfgFile, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	defaults := DefaultConfig()
	cfg, err := Load(LoadOptions{
		Cmd:        newFlagBinder(t, defaults),
		ConfigFile: cfgFile,
		Defaults:   defaults,
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.LogLevel != "error" {
		t.Errorf("LogLevel = %q; want error", cfg.LogLevel)
	}
	if cfg.Engine.Command != "say-it" {
		t.Errorf("Engine.Command = %q; want say-it", cfg.Engine.Command)
	}
	if cfg.Engine.Voice != "en-GB-Standard-B" {
		t.Errorf("Engine.Voice = %q", cfg.Engine.Voice)
	}
	if cfg.Engine.Lang != "ja-JP" {
		t.Errorf("Engine.Lang = %q; want default ja-JP", cfg.Engine.Lang)
	}
	if cfg.Playback.Device != "command" {
		t.Errorf("Playback.Device = %q; want command", cfg.Playback.Device)
	}
	if cfg.Playback.PlayerCommand != "ffplay -nodisp -autoexit {file}" {
		t.Errorf("Playback.PlayerCommand = %q", cfg.Playback.PlayerCommand)
	}
	if cfg.Pipeline.Lookahead != 1 {
		t.Errorf("Pipeline.Lookahead = %d; want 1", cfg.Pipeline.Lookahead)
	}
}

func TestLoad_ConfigFileInWorkingDir(t *testing.T) {
	chdirTemp(t)
	if err := os.WriteFile("readaloud.yaml", []byte("log_level: warn\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(LoadOptions{Defaults: DefaultConfig()})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q; want warn", cfg.LogLevel)
	}
}

func TestLoad_InvalidConfigFile(t *testing.T) {
	cfgFile := filepath.Join(t.TempDir(), "readaloud.yaml")
	if err := os.WriteFile(cfgFile, []byte(":\t:bad yaml:::"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, err := Load(LoadOptions{ConfigFile: cfgFile, Defaults: DefaultConfig()})
	if err == nil {
		t.Error("Load() = nil; want error for invalid config file")
	}
}

func TestLoad_MissingExplicitConfigFile(t *testing.T) {
	_, err := Load(LoadOptions{
		ConfigFile: filepath.Join(t.TempDir(), "missing.yaml"),
		Defaults:   DefaultConfig(),
	})
	if err == nil {
		t.Error("Load() = nil; want error for missing explicit config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"empty command", func(c *Config) { c.Engine.Command = "  " }, "engine.command"},
		{"negative timeout", func(c *Config) { c.Engine.TimeoutSeconds = -1 }, "timeout_seconds"},
		{"no stop words", func(c *Config) { c.Segment.StopWords = "" }, "stop_words"},
		{"unknown device", func(c *Config) { c.Playback.Device = "tape" }, "invalid playback device"},
		{"zero rate", func(c *Config) { c.Playback.SampleRate = 0 }, "sample rate"},
		{"three channels", func(c *Config) { c.Playback.Channels = 3 }, "channel"},
		{"negative buffer", func(c *Config) { c.Playback.BufferMS = -5 }, "buffer_ms"},
		{"negative lookahead", func(c *Config) { c.Pipeline.Lookahead = -1 }, "lookahead"},
		{"zero max text", func(c *Config) { c.Server.MaxTextBytes = 0 }, "max_text_bytes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v; want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() = %v; want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfigVoiceAndFormat(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Engine.Lang = "en-US"
	cfg.Engine.Voice = "en-US-Wavenet-D"
	cfg.Playback.SampleRate = 48000
	cfg.Playback.Channels = 2

	if v := cfg.Voice(); v.Lang != "en-US" || v.Name != "en-US-Wavenet-D" {
		t.Errorf("Voice() = %+v", v)
	}
	if f := cfg.Format(); f.SampleRate != 48000 || f.Channels != 2 {
		t.Errorf("Format() = %+v", f)
	}
}

func TestLoad_NilCmd(t *testing.T) {
	chdirTemp(t)
	defaults := DefaultConfig()

	cfg, err := Load(LoadOptions{Defaults: defaults})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Engine.Command != defaults.Engine.Command {
		t.Errorf("Engine.Command = %q; want %q", cfg.Engine.Command, defaults.Engine.Command)
	}
}
