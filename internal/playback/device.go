// Package playback owns the output device for one read-aloud call and plays
// decoded clips on it strictly one after another.
package playback

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/example/go-readaloud/internal/audio"
)

// ErrDeviceUnavailable is returned when the output device cannot be opened
// or fails while a clip is playing.
var ErrDeviceUnavailable = errors.New("playback device unavailable")

// Device names accepted by OpenDevice.
const (
	DeviceSpeaker = "speaker"
	DeviceCommand = "command"
	DeviceWAV     = "wav"
	DeviceDiscard = "discard"
)

// Device renders clips. Play returns once the clip has been fully rendered.
// Close releases the underlying output.
type Device interface {
	Play(clip *audio.Clip) error
	Close() error
}

// Options configures OpenDevice.
type Options struct {
	// Format is the format clips are converted to before they reach the
	// speaker or the wav writer.
	Format audio.Format
	// Buffer is the speaker's output buffer length.
	Buffer time.Duration
	// PlayerCommand is the external player for the command device. The
	// token {file} is replaced by the clip path; without it the path is
	// appended.
	PlayerCommand string
	// OutPath is the wav device's destination; "-" streams to Stdout.
	OutPath string
	Stdout  io.Writer
	Logger  *slog.Logger
}

// OpenDevice opens the named device.
func OpenDevice(kind string, opts Options) (Device, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Format == (audio.Format{}) {
		opts.Format = audio.DefaultFormat()
	}
	if err := opts.Format.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}
	log := opts.Logger.With(slog.String("component", "playback"), slog.String("device", kind))

	switch kind {
	case DeviceSpeaker:
		return openSpeaker(opts.Format, opts.Buffer, log)
	case DeviceCommand:
		return newCommandPlayer(opts.PlayerCommand, log)
	case DeviceWAV:
		out := opts.Stdout
		if out == nil {
			out = os.Stdout
		}
		return newWAVWriter(opts.OutPath, out, opts.Format)
	case DeviceDiscard:
		return Discard{}, nil
	default:
		return nil, fmt.Errorf("unknown playback device %q", kind)
	}
}

// Open opens the named device and wraps it in a Sink.
func Open(kind string, opts Options) (*Sink, error) {
	dev, err := OpenDevice(kind, opts)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return NewSink(dev, logger), nil
}

// Discard accepts every clip and plays nothing. It is used to time
// synthesis without an audio device.
type Discard struct{}

func (Discard) Play(*audio.Clip) error { return nil }
func (Discard) Close() error           { return nil }
