package pipeline

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/example/go-readaloud/internal/audio"
	"github.com/example/go-readaloud/internal/playback"
	"github.com/example/go-readaloud/internal/synth"
)

// Error kinds reported by Kind. They are stable strings used in logs, the
// HTTP error body and CLI exit messages.
const (
	KindSynthesisUnavailable      = "synthesis_unavailable"
	KindSynthesisFailed           = "synthesis_failed"
	KindAudioDecodeFailed         = "audio_decode_failed"
	KindPlaybackDeviceUnavailable = "playback_device_unavailable"
	KindCanceled                  = "canceled"
	KindInternal                  = "internal"
)

// SegmentError is the first failure of a call, annotated with the segment it
// happened on. Index is zero-based; messages print it one-based.
type SegmentError struct {
	Index  int
	Text   string
	Stage  Stage
	Played int
	Err    error
}

func (e *SegmentError) Error() string {
	return fmt.Sprintf("segment %d %q: %s: %v (%d played)",
		e.Index+1, preview(e.Text, 40), e.Stage, e.Err, e.Played)
}

func (e *SegmentError) Unwrap() error { return e.Err }

// Kind classifies err into one of the Kind* constants. Cancellation wins
// over the layer error it interrupted.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	case errors.Is(err, synth.ErrUnavailable):
		return KindSynthesisUnavailable
	case errors.Is(err, synth.ErrFailed):
		return KindSynthesisFailed
	case errors.Is(err, audio.ErrDecode):
		return KindAudioDecodeFailed
	case errors.Is(err, playback.ErrDeviceUnavailable):
		return KindPlaybackDeviceUnavailable
	default:
		return KindInternal
	}
}

func preview(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i] + "…"
		}
		n++
	}
	return s
}
