package playback

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/example/go-readaloud/internal/audio"
)

// ErrSinkClosed is returned by Play after Close.
var ErrSinkClosed = errors.New("playback sink closed")

type job struct {
	clip   *audio.Clip
	result chan error
}

// Sink is one open device plus the FIFO queue feeding it. A single goroutine
// drains the queue, so clips never overlap and always play in the order they
// were handed in.
type Sink struct {
	dev Device
	log *slog.Logger

	mu     sync.Mutex
	closed bool
	queue  chan job
	done   chan struct{}

	closeOnce sync.Once
	closeErr  error
}

// NewSink takes ownership of dev and starts the queue.
func NewSink(dev Device, log *slog.Logger) *Sink {
	s := &Sink{
		dev:   dev,
		log:   log,
		queue: make(chan job, 1),
		done:  make(chan struct{}),
	}
	go s.loop()
	return s
}

func (s *Sink) loop() {
	defer close(s.done)
	for j := range s.queue {
		j.result <- s.dev.Play(j.clip)
	}
}

// Play appends clip to the queue and blocks until it has finished playing.
// It is never interrupted part way through a clip.
func (s *Sink) Play(clip *audio.Clip) error {
	if clip == nil {
		return errors.New("playback: nil clip")
	}

	result := make(chan error, 1)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSinkClosed
	}
	s.queue <- job{clip: clip, result: result}
	s.mu.Unlock()

	err := <-result
	if err != nil && !errors.Is(err, ErrDeviceUnavailable) {
		err = fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}
	return err
}

// Close waits for queued clips, then releases the device. It is safe to call
// more than once; later calls return the first result.
func (s *Sink) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.queue)
		s.mu.Unlock()

		<-s.done
		if err := s.dev.Close(); err != nil {
			s.closeErr = fmt.Errorf("%w: close: %w", ErrDeviceUnavailable, err)
			s.log.Warn("playback device close failed", slog.String("error", err.Error()))
		}
	})
	return s.closeErr
}
