package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/example/go-readaloud/internal/bench"
	"github.com/example/go-readaloud/internal/playback"
	"github.com/spf13/cobra"
)

func newBenchCmd() *cobra.Command {
	var (
		runs         int
		format       string
		rtfThreshold float64
		device       string
	)

	cmd := &cobra.Command{
		Use:   "bench [text...]",
		Short: "Benchmark synthesis latency and realtime factor",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			if runs < 1 {
				return errors.New("--runs must be at least 1")
			}
			if format != "table" && format != "json" {
				return errors.New("--format must be 'table' or 'json'")
			}

			input, err := readSpeakText(strings.Join(args, " "), cmd.InOrStdin())
			if err != nil {
				return err
			}

			p, err := buildPipeline(cfg, device, cmd.OutOrStdout())
			if err != nil {
				return err
			}

			var results []bench.RunResult
			for i := range runs {
				sum, err := p.Run(cmd.Context(), input, cfg.Voice())
				if err != nil {
					return mapSpeakError(err)
				}
				slog.Debug("bench run complete",
					slog.Int("run", i+1),
					slog.String("call_id", sum.CallID),
					slog.Int("segments", sum.Played),
				)
				results = append(results, bench.FromSummary(i, sum)...)
			}
			if len(results) == 0 {
				return errors.New("bench: text produced no segments to synthesize")
			}

			stats := bench.Summarize(results)

			out := cmd.OutOrStdout()
			switch format {
			case "json":
				bench.FormatJSON(results, stats, out)
			default:
				bench.FormatTable(results, stats, out)
			}

			if err := bench.CheckRTFThreshold(stats.MeanRTF, rtfThreshold); err != nil {
				return fmt.Errorf("bench: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&runs, "runs", 3, "Number of times the text is synthesized")
	cmd.Flags().StringVar(&format, "format", "table", "Output format: table or json")
	cmd.Flags().Float64Var(&rtfThreshold, "rtf-threshold", 0, "Fail when the overall RTF exceeds this value (0 = off)")
	cmd.Flags().StringVar(&device, "bench-device", playback.DeviceDiscard, "Device the clips are played on while benchmarking")

	return cmd
}
