package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/example/go-readaloud/internal/audio"
	"github.com/example/go-readaloud/internal/playback"
	"github.com/example/go-readaloud/internal/synth"
	"github.com/example/go-readaloud/internal/text"
)

type Config struct {
	Engine    EngineConfig    `mapstructure:"engine"`
	Segment   SegmentConfig   `mapstructure:"segment"`
	Playback  PlaybackConfig  `mapstructure:"playback"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Server    ServerConfig    `mapstructure:"server"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	LogLevel  string          `mapstructure:"log_level"`
}

type EngineConfig struct {
	Command        string `mapstructure:"command"`
	Lang           string `mapstructure:"lang"`
	Voice          string `mapstructure:"voice"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	HideWindow     bool   `mapstructure:"hide_window"`
}

type SegmentConfig struct {
	StopWords string `mapstructure:"stop_words"`
	SkipBlank bool   `mapstructure:"skip_blank"`
}

type PlaybackConfig struct {
	Device        string `mapstructure:"device"`
	PlayerCommand string `mapstructure:"player_command"`
	SampleRate    int    `mapstructure:"sample_rate"`
	Channels      int    `mapstructure:"channels"`
	BufferMS      int    `mapstructure:"buffer_ms"`
	OutPath       string `mapstructure:"out_path"`
}

type PipelineConfig struct {
	WorkDir   string `mapstructure:"work_dir"`
	KeepClips bool   `mapstructure:"keep_clips"`
	Lookahead int    `mapstructure:"lookahead"`
}

type ServerConfig struct {
	ListenAddr      string `mapstructure:"listen_addr"`
	MaxTextBytes    int    `mapstructure:"max_text_bytes"`
	RequestTimeout  int    `mapstructure:"request_timeout_seconds"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout_seconds"`
}

type TelemetryConfig struct {
	TraceStdout bool `mapstructure:"trace_stdout"`
}

type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

func DefaultConfig() Config {
	return Config{
		Engine: EngineConfig{
			Command:    synth.DefaultCommand,
			Lang:       synth.DefaultLang,
			Voice:      synth.DefaultVoice,
			HideWindow: true,
		},
		Segment: SegmentConfig{
			StopWords: text.DefaultStopWords,
			SkipBlank: true,
		},
		Playback: PlaybackConfig{
			Device:        playback.DeviceSpeaker,
			PlayerCommand: playback.DefaultPlayerCommand(),
			SampleRate:    audio.DefaultSampleRate,
			Channels:      audio.DefaultChannels,
			BufferMS:      100,
			OutPath:       "readaloud.wav",
		},
		Pipeline: PipelineConfig{
			WorkDir: filepath.Join(os.TempDir(), "readaloud"),
		},
		Server: ServerConfig{
			ListenAddr:      "127.0.0.1:7878",
			MaxTextBytes:    16384,
			RequestTimeout:  300,
			ShutdownTimeout: 10,
		},
		LogLevel: "info",
	}
}

// flagKeys maps every command-line flag to its config key.
var flagKeys = map[string]string{
	"engine-command":                  "engine.command",
	"engine-lang":                     "engine.lang",
	"lang":                            "engine.lang",
	"engine-voice":                    "engine.voice",
	"voice":                           "engine.voice",
	"engine-timeout-seconds":          "engine.timeout_seconds",
	"engine-hide-window":              "engine.hide_window",
	"segment-stop-words":              "segment.stop_words",
	"segment-skip-blank":              "segment.skip_blank",
	"playback-device":                 "playback.device",
	"device":                          "playback.device",
	"playback-player-command":         "playback.player_command",
	"playback-sample-rate":            "playback.sample_rate",
	"playback-channels":               "playback.channels",
	"playback-buffer-ms":              "playback.buffer_ms",
	"playback-out-path":               "playback.out_path",
	"pipeline-work-dir":               "pipeline.work_dir",
	"pipeline-keep-clips":             "pipeline.keep_clips",
	"pipeline-lookahead":              "pipeline.lookahead",
	"server-listen-addr":              "server.listen_addr",
	"server-max-text-bytes":           "server.max_text_bytes",
	"server-request-timeout-seconds":  "server.request_timeout_seconds",
	"server-shutdown-timeout-seconds": "server.shutdown_timeout_seconds",
	"telemetry-trace-stdout":          "telemetry.trace_stdout",
	"log-level":                       "log_level",
}

func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.String("engine-command", defaults.Engine.Command, "Speech engine command (shell quoting allowed)")
	fs.String("engine-lang", defaults.Engine.Lang, "Language code passed to the engine")
	fs.String("lang", defaults.Engine.Lang, "Language code (alias for --engine-lang)")
	fs.String("engine-voice", defaults.Engine.Voice, "Voice identifier passed to the engine")
	fs.String("voice", defaults.Engine.Voice, "Voice identifier (alias for --engine-voice)")
	fs.Int("engine-timeout-seconds", defaults.Engine.TimeoutSeconds, "Per-segment engine timeout (0 = none)")
	fs.Bool("engine-hide-window", defaults.Engine.HideWindow, "Hide the engine console window on Windows")
	fs.String("segment-stop-words", defaults.Segment.StopWords, "Characters that end a segment")
	fs.Bool("segment-skip-blank", defaults.Segment.SkipBlank, "Skip whitespace-only segments")
	fs.String("playback-device", defaults.Playback.Device, "Output device (speaker|command|wav|discard)")
	fs.String("device", defaults.Playback.Device, "Output device (alias for --playback-device)")
	fs.String("playback-player-command", defaults.Playback.PlayerCommand, "External player for the command device; {file} is the clip path")
	fs.Int("playback-sample-rate", defaults.Playback.SampleRate, "Output sample rate in Hz")
	fs.Int("playback-channels", defaults.Playback.Channels, "Output channel count (1 or 2)")
	fs.Int("playback-buffer-ms", defaults.Playback.BufferMS, "Speaker buffer length in milliseconds")
	fs.String("playback-out-path", defaults.Playback.OutPath, "Output file for the wav device (- for stdout)")
	fs.String("pipeline-work-dir", defaults.Pipeline.WorkDir, "Directory for synthesized clips")
	fs.Bool("pipeline-keep-clips", defaults.Pipeline.KeepClips, "Keep synthesized clips after each call")
	fs.Int("pipeline-lookahead", defaults.Pipeline.Lookahead, "Segments synthesized ahead of playback (0 = sequential)")
	fs.String("server-listen-addr", defaults.Server.ListenAddr, "HTTP listen address")
	fs.Int("server-max-text-bytes", defaults.Server.MaxTextBytes, "Maximum request text size in bytes")
	fs.Int("server-request-timeout-seconds", defaults.Server.RequestTimeout, "Per-request read-aloud deadline in seconds")
	fs.Int("server-shutdown-timeout-seconds", defaults.Server.ShutdownTimeout, "Graceful shutdown timeout in seconds")
	fs.Bool("telemetry-trace-stdout", defaults.Telemetry.TraceStdout, "Print OpenTelemetry spans to stdout")
	fs.String("log-level", defaults.LogLevel, "Log level (debug|info|warn|error)")
}

func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)
	if opts.Cmd != nil {
		if err := bindFlags(v, opts.Cmd.Flags()); err != nil {
			return Config{}, err
		}
	}

	v.SetEnvPrefix("READALOUD")
	replacer := strings.NewReplacer("-", "_", ".", "_", "__", "_")
	v.SetEnvKeyReplacer(replacer)
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("readaloud")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	return cfg, nil
}

// bindFlags binds each registered flag to its config key. Short aliases are
// bound last and only when set explicitly, so they override their long form
// without masking it.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	var errs []error
	bind := func(aliases bool) func(*pflag.Flag) {
		return func(f *pflag.Flag) {
			key, ok := flagKeys[f.Name]
			if !ok || isAlias(f.Name) != aliases {
				return
			}
			if aliases && !f.Changed {
				return
			}
			if err := v.BindPFlag(key, f); err != nil {
				errs = append(errs, fmt.Errorf("bind flag --%s: %w", f.Name, err))
			}
		}
	}
	fs.VisitAll(bind(false))
	fs.VisitAll(bind(true))
	return errors.Join(errs...)
}

func isAlias(name string) bool {
	switch name {
	case "lang", "voice", "device":
		return true
	}
	return false
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("engine.command", c.Engine.Command)
	v.SetDefault("engine.lang", c.Engine.Lang)
	v.SetDefault("engine.voice", c.Engine.Voice)
	v.SetDefault("engine.timeout_seconds", c.Engine.TimeoutSeconds)
	v.SetDefault("engine.hide_window", c.Engine.HideWindow)
	v.SetDefault("segment.stop_words", c.Segment.StopWords)
	v.SetDefault("segment.skip_blank", c.Segment.SkipBlank)
	v.SetDefault("playback.device", c.Playback.Device)
	v.SetDefault("playback.player_command", c.Playback.PlayerCommand)
	v.SetDefault("playback.sample_rate", c.Playback.SampleRate)
	v.SetDefault("playback.channels", c.Playback.Channels)
	v.SetDefault("playback.buffer_ms", c.Playback.BufferMS)
	v.SetDefault("playback.out_path", c.Playback.OutPath)
	v.SetDefault("pipeline.work_dir", c.Pipeline.WorkDir)
	v.SetDefault("pipeline.keep_clips", c.Pipeline.KeepClips)
	v.SetDefault("pipeline.lookahead", c.Pipeline.Lookahead)
	v.SetDefault("server.listen_addr", c.Server.ListenAddr)
	v.SetDefault("server.max_text_bytes", c.Server.MaxTextBytes)
	v.SetDefault("server.request_timeout_seconds", c.Server.RequestTimeout)
	v.SetDefault("server.shutdown_timeout_seconds", c.Server.ShutdownTimeout)
	v.SetDefault("telemetry.trace_stdout", c.Telemetry.TraceStdout)
	v.SetDefault("log_level", c.LogLevel)
}

// Validate reports the first setting that cannot work.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Engine.Command) == "" {
		return errors.New("engine.command must not be empty")
	}
	if c.Engine.TimeoutSeconds < 0 {
		return fmt.Errorf("engine.timeout_seconds must be >= 0, got %d", c.Engine.TimeoutSeconds)
	}
	if c.Segment.StopWords == "" {
		return errors.New("segment.stop_words must not be empty")
	}
	if _, err := NormalizeDevice(c.Playback.Device); err != nil {
		return err
	}
	if err := c.Format().Validate(); err != nil {
		return fmt.Errorf("playback: %w", err)
	}
	if c.Playback.BufferMS < 0 {
		return fmt.Errorf("playback.buffer_ms must be >= 0, got %d", c.Playback.BufferMS)
	}
	if c.Pipeline.Lookahead < 0 {
		return fmt.Errorf("pipeline.lookahead must be >= 0, got %d", c.Pipeline.Lookahead)
	}
	if c.Server.MaxTextBytes < 1 {
		return fmt.Errorf("server.max_text_bytes must be positive, got %d", c.Server.MaxTextBytes)
	}
	return nil
}

// Format returns the configured output format.
func (c Config) Format() audio.Format {
	return audio.Format{SampleRate: c.Playback.SampleRate, Channels: c.Playback.Channels}
}

// Voice returns the configured engine voice.
func (c Config) Voice() synth.Voice {
	return synth.Voice{Lang: c.Engine.Lang, Name: c.Engine.Voice}
}
