package main

import (
	"io"
	"log/slog"
	"time"

	"github.com/example/go-readaloud/internal/config"
	"github.com/example/go-readaloud/internal/pipeline"
	"github.com/example/go-readaloud/internal/playback"
	"github.com/example/go-readaloud/internal/synth"
	"github.com/example/go-readaloud/internal/text"
)

// newEngine builds the speech engine for cfg. Tests replace it.
var newEngine = func(cfg config.Config) (synth.Engine, error) {
	return synth.NewExecEngine(cfg.Engine.Command,
		synth.WithTimeout(time.Duration(cfg.Engine.TimeoutSeconds)*time.Second),
		synth.WithHiddenWindow(cfg.Engine.HideWindow),
		synth.WithLogger(slog.Default()),
	)
}

// sinkOpener opens a fresh playback sink on device for every call.
func sinkOpener(cfg config.Config, device string, stdout io.Writer) pipeline.SinkOpener {
	opts := playback.Options{
		Format:        cfg.Format(),
		Buffer:        time.Duration(cfg.Playback.BufferMS) * time.Millisecond,
		PlayerCommand: cfg.Playback.PlayerCommand,
		OutPath:       cfg.Playback.OutPath,
		Stdout:        stdout,
		Logger:        slog.Default(),
	}
	return func() (pipeline.Player, error) {
		sink, err := playback.Open(device, opts)
		if err != nil {
			return nil, err
		}
		return sink, nil
	}
}

// buildPipeline wires engine, sink and segmenter settings from cfg. An empty
// device falls back to cfg.Playback.Device.
func buildPipeline(cfg config.Config, device string, stdout io.Writer, extra ...pipeline.Option) (*pipeline.Pipeline, error) {
	if device == "" {
		device = cfg.Playback.Device
	}
	device, err := config.NormalizeDevice(device)
	if err != nil {
		return nil, err
	}

	engine, err := newEngine(cfg)
	if err != nil {
		return nil, err
	}

	opts := []pipeline.Option{
		pipeline.WithVoice(cfg.Voice()),
		pipeline.WithStopWords(text.NewStopWordSet(cfg.Segment.StopWords)),
		pipeline.WithSkipBlank(cfg.Segment.SkipBlank),
		pipeline.WithWorkDir(cfg.Pipeline.WorkDir),
		pipeline.WithKeepClips(cfg.Pipeline.KeepClips),
		pipeline.WithLookahead(cfg.Pipeline.Lookahead),
		pipeline.WithLogger(slog.Default()),
	}
	opts = append(opts, extra...)

	return pipeline.New(engine, sinkOpener(cfg, device, stdout), opts...), nil
}
