package pipeline

import (
	"fmt"
	"time"
)

// SegmentStat records the timings of one spoken segment.
type SegmentStat struct {
	Index     int           `json:"index"`
	Bytes     int           `json:"bytes"`
	Synthesis time.Duration `json:"synthesis_ns"`
	Audio     time.Duration `json:"audio_ns"`
	Playback  time.Duration `json:"playback_ns"`
}

// Summary describes a finished call. On failure it holds what happened up to
// the failing segment.
type Summary struct {
	CallID   string        `json:"call_id"`
	Segments int           `json:"segments"`
	Played   int           `json:"played"`
	Skipped  int           `json:"skipped"`
	Elapsed  time.Duration `json:"elapsed_ns"`
	Stats    []SegmentStat `json:"stats,omitempty"`
}

// String is the one-line status reported back to the caller.
func (s Summary) String() string {
	msg := fmt.Sprintf("played %d/%d segments", s.Played, s.Segments)
	if s.Skipped > 0 {
		msg += fmt.Sprintf(" (%d skipped)", s.Skipped)
	}
	return msg + fmt.Sprintf(" in %s", s.Elapsed.Round(time.Millisecond))
}

// AudioDuration is the total length of the audio that was played.
func (s Summary) AudioDuration() time.Duration {
	var d time.Duration
	for _, st := range s.Stats {
		d += st.Audio
	}
	return d
}
