package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/example/go-readaloud/internal/config"
	"github.com/example/go-readaloud/internal/pipeline"
	"github.com/example/go-readaloud/internal/playback"
	"github.com/spf13/cobra"
)

func newSpeakCmd() *cobra.Command {
	var progress bool

	cmd := &cobra.Command{
		Use:   "speak [text...]",
		Short: "Read text aloud on the configured device",
		Long: "Split text at sentence delimiters, synthesize each segment with the speech\n" +
			"engine and play the segments in order. Without arguments the text is read\n" +
			"from stdin.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			input, err := readSpeakText(strings.Join(args, " "), cmd.InOrStdin())
			if err != nil {
				return err
			}

			var extra []pipeline.Option
			if progress {
				extra = append(extra, pipeline.WithObserver(progressObserver(cmd.ErrOrStderr())))
			}
			return runSpeak(cmd, cfg, "", input, extra...)
		},
	}

	cmd.Flags().BoolVar(&progress, "progress", false, "Print each segment to stderr as it starts playing")

	return cmd
}

// runSpeak reads input aloud on device (cfg.Playback.Device when empty)
// and reports the summary. Ctrl-C stops the call after the segment that is
// playing.
func runSpeak(cmd *cobra.Command, cfg config.Config, device string, input string, extra ...pipeline.Option) error {
	p, err := buildPipeline(cfg, device, cmd.OutOrStdout(), extra...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sum, err := p.Run(ctx, input, cfg.Voice())
	if err != nil {
		return mapSpeakError(err)
	}

	_, err = fmt.Fprintln(statusWriter(cmd, cfg, device), sum.String())
	return err
}

// statusWriter keeps status text off stdout while audio is streamed there.
func statusWriter(cmd *cobra.Command, cfg config.Config, device string) io.Writer {
	if device == "" {
		device = cfg.Playback.Device
	}
	if device == playback.DeviceWAV && cfg.Playback.OutPath == "-" {
		return cmd.ErrOrStderr()
	}
	return cmd.OutOrStdout()
}

func progressObserver(w io.Writer) pipeline.Observer {
	return func(ev pipeline.Event) {
		switch ev.Stage {
		case pipeline.StagePlaying:
			_, _ = fmt.Fprintf(w, "[%d/%d] %s\n", ev.Index+1, ev.Total, strings.TrimSpace(ev.Text))
		case pipeline.StageFailed:
			if ev.Index >= 0 {
				_, _ = fmt.Fprintf(w, "[%d/%d] failed: %v\n", ev.Index+1, ev.Total, ev.Err)
			}
		}
	}
}

func readSpeakText(text string, stdin io.Reader) (string, error) {
	if strings.TrimSpace(text) != "" {
		return text, nil
	}

	b, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	input := strings.TrimSpace(string(b))
	if input == "" {
		return "", errors.New("either pass text as arguments or pipe text on stdin")
	}
	return input, nil
}

func mapSpeakError(err error) error {
	switch pipeline.Kind(err) {
	case pipeline.KindSynthesisUnavailable:
		return fmt.Errorf("speak failed: speech engine not found; set --engine-command or READALOUD_ENGINE_COMMAND: %w", err)
	case pipeline.KindSynthesisFailed:
		return fmt.Errorf("speak failed: speech engine returned an error; check its output above: %w", err)
	case pipeline.KindAudioDecodeFailed:
		return fmt.Errorf("speak failed: engine output is not a playable WAV file: %w", err)
	case pipeline.KindPlaybackDeviceUnavailable:
		return fmt.Errorf("speak failed: output device unavailable; try --device command or --device wav: %w", err)
	case pipeline.KindCanceled:
		return fmt.Errorf("speak interrupted: %w", err)
	}
	return err
}
