// Package bench provides benchmarking primitives for the readaloud bench
// command.
package bench

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/example/go-readaloud/internal/pipeline"
)

// ---------------------------------------------------------------------------
// Run result and stats
// ---------------------------------------------------------------------------

// RunResult holds the timing of one synthesized segment.
type RunResult struct {
	Run       int
	Segment   int
	Bytes     int
	Cold      bool // true for the first segment of the first run (cold start)
	Synthesis time.Duration
	Audio     time.Duration
	RTF       float64
}

// FromSummary turns the per-segment stats of one pipeline call into results.
func FromSummary(run int, sum pipeline.Summary) []RunResult {
	out := make([]RunResult, 0, len(sum.Stats))
	for i, st := range sum.Stats {
		out = append(out, RunResult{
			Run:       run,
			Segment:   st.Index,
			Bytes:     st.Bytes,
			Cold:      run == 0 && i == 0,
			Synthesis: st.Synthesis,
			Audio:     st.Audio,
			RTF:       CalcRTF(st.Synthesis, st.Audio),
		})
	}
	return out
}

// Stats holds aggregate timing statistics across all runs.
type Stats struct {
	Min     time.Duration
	Max     time.Duration
	Mean    time.Duration
	MeanRTF float64
}

// ComputeStats calculates min, max and mean over a slice of durations.
// The slice must be non-empty.
func ComputeStats(durations []time.Duration) Stats {
	if len(durations) == 0 {
		return Stats{}
	}
	mn, mx := durations[0], durations[0]
	var sum time.Duration
	for _, d := range durations {
		if d < mn {
			mn = d
		}
		if d > mx {
			mx = d
		}
		sum += d
	}
	return Stats{
		Min:  mn,
		Max:  mx,
		Mean: sum / time.Duration(len(durations)),
	}
}

// Summarize computes synthesis latency stats and the overall RTF (total
// synthesis time over total audio time) of runs.
func Summarize(runs []RunResult) Stats {
	durations := make([]time.Duration, len(runs))
	var synth, audio time.Duration
	for i, r := range runs {
		durations[i] = r.Synthesis
		synth += r.Synthesis
		audio += r.Audio
	}
	s := ComputeStats(durations)
	s.MeanRTF = CalcRTF(synth, audio)
	return s
}

// ---------------------------------------------------------------------------
// RTF helpers
// ---------------------------------------------------------------------------

// CalcRTF returns synthesis_duration / audio_duration.
// Returns 0 if audioDur is zero to avoid division by zero.
func CalcRTF(synthDur, audioDur time.Duration) float64 {
	if audioDur <= 0 {
		return 0
	}
	return float64(synthDur) / float64(audioDur)
}

// ---------------------------------------------------------------------------
// RTF threshold gate
// ---------------------------------------------------------------------------

// CheckRTFThreshold returns an error if meanRTF > threshold.
// A threshold of 0 disables the gate.
func CheckRTFThreshold(meanRTF, threshold float64) error {
	if threshold <= 0 {
		return nil
	}
	if meanRTF > threshold {
		return fmt.Errorf("mean RTF %.3f exceeds threshold %.3f", meanRTF, threshold)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Output formatters
// ---------------------------------------------------------------------------

// FormatTable writes a human-readable ASCII table of bench results to w.
func FormatTable(runs []RunResult, stats Stats, w io.Writer) {
	sb := &strings.Builder{}

	fmt.Fprintf(sb, "%-4s  %-4s  %-5s  %6s  %10s  %10s  %8s\n", "Run", "Seg", "Cold", "Bytes", "Synth(ms)", "Audio(ms)", "RTF")
	fmt.Fprintln(sb, strings.Repeat("-", 60))

	for _, r := range runs {
		cold := ""
		if r.Cold {
			cold = "yes"
		}
		fmt.Fprintf(sb, "%-4d  %-4d  %-5s  %6d  %10.1f  %10.1f  %8.3f\n",
			r.Run+1,
			r.Segment+1,
			cold,
			r.Bytes,
			float64(r.Synthesis.Milliseconds()),
			float64(r.Audio.Milliseconds()),
			r.RTF,
		)
	}

	fmt.Fprintln(sb, strings.Repeat("-", 60))
	fmt.Fprintf(sb, "%-26s  %10.1f  (min)\n", "", float64(stats.Min.Milliseconds()))
	fmt.Fprintf(sb, "%-26s  %10.1f  (mean)\n", "", float64(stats.Mean.Milliseconds()))
	fmt.Fprintf(sb, "%-26s  %10.1f  (max)\n", "", float64(stats.Max.Milliseconds()))
	fmt.Fprintf(sb, "%-26s  %10s  %10s  %8.3f  (overall)\n", "", "", "", stats.MeanRTF)

	fmt.Fprint(w, sb.String())
}

// jsonReport is the top-level JSON structure emitted by FormatJSON.
type jsonReport struct {
	Runs  []jsonRun `json:"runs"`
	Stats jsonStats `json:"stats"`
}

type jsonRun struct {
	Run         int     `json:"run"`
	Segment     int     `json:"segment"`
	Bytes       int     `json:"bytes"`
	Cold        bool    `json:"cold"`
	SynthesisMS float64 `json:"synthesis_ms"`
	AudioMS     float64 `json:"audio_ms"`
	RTF         float64 `json:"rtf"`
}

type jsonStats struct {
	MinMS   float64 `json:"min_ms"`
	MeanMS  float64 `json:"mean_ms"`
	MaxMS   float64 `json:"max_ms"`
	MeanRTF float64 `json:"rtf"`
}

// FormatJSON writes a JSON report of bench results to w.
func FormatJSON(runs []RunResult, stats Stats, w io.Writer) {
	jr := jsonReport{
		Runs: make([]jsonRun, len(runs)),
		Stats: jsonStats{
			MinMS:   float64(stats.Min.Milliseconds()),
			MeanMS:  float64(stats.Mean.Milliseconds()),
			MaxMS:   float64(stats.Max.Milliseconds()),
			MeanRTF: stats.MeanRTF,
		},
	}
	for i, r := range runs {
		jr.Runs[i] = jsonRun{
			Run:         r.Run,
			Segment:     r.Segment,
			Bytes:       r.Bytes,
			Cold:        r.Cold,
			SynthesisMS: float64(r.Synthesis.Milliseconds()),
			AudioMS:     float64(r.Audio.Milliseconds()),
			RTF:         r.RTF,
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(jr)
}
