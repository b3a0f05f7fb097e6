package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/example/go-readaloud/internal/audio"
	"github.com/example/go-readaloud/internal/config"
	"github.com/example/go-readaloud/internal/doctor"
	"github.com/example/go-readaloud/internal/playback"
	"github.com/example/go-readaloud/internal/synth"
	"github.com/mattn/go-shellwords"
	"github.com/spf13/cobra"
)

// smokeText is short enough for any engine and ends in a stop word.
const smokeText = "テスト。"

func newDoctorCmd() *cobra.Command {
	var smoke bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the speech engine, output device and work directory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			device, deviceErr := config.NormalizeDevice(cfg.Playback.Device)

			dcfg := doctor.Config{
				Engine: func() (string, error) {
					return synth.Probe(cfg.Engine.Command)
				},
				Device:    device,
				DeviceErr: deviceErr,
				WorkDir:   cfg.Pipeline.WorkDir,
			}
			if device == playback.DeviceCommand {
				dcfg.Player = func() (string, error) {
					return resolvePlayer(cfg.Playback.PlayerCommand)
				}
			}
			if smoke {
				dcfg.Smoke = func() error {
					return smokeTest(cmd.Context(), cfg)
				}
			}

			result := doctor.Run(dcfg, out)
			if result.Failed() {
				for _, f := range result.Failures() {
					fmt.Fprintf(cmd.ErrOrStderr(), "FAIL: %s\n", f)
				}

				return errors.New("doctor checks failed")
			}

			_, _ = fmt.Fprintln(out, "doctor checks passed")

			return nil
		},
	}

	cmd.Flags().BoolVar(&smoke, "smoke", false, "Also synthesize and decode one short segment")

	return cmd
}

// resolvePlayer finds the executable of an external player command.
func resolvePlayer(command string) (string, error) {
	argv, err := shellwords.Parse(command)
	if err != nil {
		return "", fmt.Errorf("parse player command: %w", err)
	}
	if len(argv) == 0 {
		return "", errors.New("player command is empty")
	}
	return exec.LookPath(argv[0])
}

// smokeTest runs the engine once and checks its output decodes.
func smokeTest(ctx context.Context, cfg config.Config) error {
	engine, err := newEngine(cfg)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.Pipeline.WorkDir, 0o755); err != nil {
		return err
	}
	dir, err := os.MkdirTemp(cfg.Pipeline.WorkDir, "doctor-")
	if err != nil {
		return err
	}
	defer func() { _ = os.RemoveAll(dir) }()

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	dest := filepath.Join(dir, "smoke.wav")
	if err := engine.Synthesize(ctx, smokeText, cfg.Voice(), dest); err != nil {
		return err
	}
	clip, err := audio.DecodeFile(dest)
	if err != nil {
		return err
	}
	if clip.Frames() == 0 {
		return fmt.Errorf("%w: engine produced no audio frames", audio.ErrDecode)
	}
	return nil
}
