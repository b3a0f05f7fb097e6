package playback

import (
	"bytes"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/example/go-readaloud/internal/audio"
)

const drainPollInterval = 10 * time.Millisecond

// oto allows one context per process, so the context outlives any single
// speaker: it is created by the first open, suspended on close and resumed on
// the next open.
var (
	otoMu     sync.Mutex
	otoCtx    *oto.Context
	otoFormat audio.Format
)

type speaker struct {
	ctx    *oto.Context
	format audio.Format
	log    *slog.Logger
}

func openSpeaker(format audio.Format, buffer time.Duration, log *slog.Logger) (Device, error) {
	otoMu.Lock()
	defer otoMu.Unlock()

	if otoCtx == nil {
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   format.SampleRate,
			ChannelCount: format.Channels,
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   buffer,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: open audio output: %w", ErrDeviceUnavailable, err)
		}
		<-ready
		otoCtx, otoFormat = ctx, format
	} else if err := otoCtx.Resume(); err != nil {
		return nil, fmt.Errorf("%w: resume audio output: %w", ErrDeviceUnavailable, err)
	}

	if otoFormat != format {
		log.Warn("audio output already open with a different format; clips will be converted to it",
			slog.String("requested", format.String()),
			slog.String("active", otoFormat.String()),
		)
	}

	return &speaker{ctx: otoCtx, format: otoFormat, log: log}, nil
}

func (s *speaker) Play(clip *audio.Clip) error {
	c := audio.ConvertClip(clip, s.format)
	if len(c.Samples) == 0 {
		return nil
	}

	p := s.ctx.NewPlayer(bytes.NewReader(audio.PCM16(c.Samples)))
	defer p.Close()

	p.Play()
	for p.IsPlaying() {
		if err := s.ctx.Err(); err != nil {
			return fmt.Errorf("%w: audio output failed mid-stream: %w", ErrDeviceUnavailable, err)
		}
		time.Sleep(drainPollInterval)
	}
	if err := p.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}

	s.log.Debug("clip drained", slog.Int64("audio_ms", c.Duration().Milliseconds()))
	return nil
}

func (s *speaker) Close() error {
	otoMu.Lock()
	defer otoMu.Unlock()
	return s.ctx.Suspend()
}
