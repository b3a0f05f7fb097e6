package main

import (
	"fmt"
	"strings"

	"github.com/example/go-readaloud/internal/playback"
	"github.com/spf13/cobra"
)

func newRenderCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "render [text...]",
		Short: "Write the spoken text to one WAV file instead of playing it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}
			if out != "" {
				cfg.Playback.OutPath = out
			}
			if strings.TrimSpace(cfg.Playback.OutPath) == "" {
				return fmt.Errorf("--out is required for render")
			}

			input, err := readSpeakText(strings.Join(args, " "), cmd.InOrStdin())
			if err != nil {
				return err
			}

			if err := runSpeak(cmd, cfg, playback.DeviceWAV, input); err != nil {
				return err
			}
			if cfg.Playback.OutPath != "-" {
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", cfg.Playback.OutPath)
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "Output WAV path (- for stdout); defaults to --playback-out-path")

	return cmd
}
