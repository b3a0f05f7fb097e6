package audio

import (
	"fmt"
	"time"
)

// Default output format. It matches what most neural engines emit, so clips
// usually reach the device without resampling.
const (
	DefaultSampleRate = 24000
	DefaultChannels   = 1
	bitDepth          = 16
)

// Format describes interleaved PCM audio.
type Format struct {
	SampleRate int
	Channels   int
}

// DefaultFormat returns 24 kHz mono.
func DefaultFormat() Format {
	return Format{SampleRate: DefaultSampleRate, Channels: DefaultChannels}
}

// Validate reports whether f can be played or encoded.
func (f Format) Validate() error {
	if f.SampleRate < 1 {
		return fmt.Errorf("invalid sample rate: %d", f.SampleRate)
	}
	if f.Channels < 1 || f.Channels > 2 {
		return fmt.Errorf("invalid channel count %d (want 1 or 2)", f.Channels)
	}
	return nil
}

func (f Format) String() string {
	return fmt.Sprintf("%d Hz/%dch", f.SampleRate, f.Channels)
}

// Clip is one decoded segment of speech. Samples are interleaved float32
// values in [-1, 1].
type Clip struct {
	Path    string
	Format  Format
	Samples []float32
}

// Frames returns the number of sample frames (samples per channel).
func (c *Clip) Frames() int {
	if c == nil || c.Format.Channels < 1 {
		return 0
	}
	return len(c.Samples) / c.Format.Channels
}

// Duration returns the playback length of the clip.
func (c *Clip) Duration() time.Duration {
	if c == nil || c.Format.SampleRate < 1 {
		return 0
	}
	return time.Duration(int64(c.Frames()) * int64(time.Second) / int64(c.Format.SampleRate))
}
