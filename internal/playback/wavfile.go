package playback

import (
	"fmt"
	"io"
	"os"

	"github.com/example/go-readaloud/internal/audio"
)

// wavWriter "plays" clips into a single WAV file. With OutPath "-" the audio
// is streamed to stdout as it arrives, behind a header with unknown length;
// otherwise the samples are collected and the file is written on Close.
type wavWriter struct {
	path    string
	out     io.Writer
	format  audio.Format
	samples []float32
	header  bool
}

func newWAVWriter(path string, stdout io.Writer, format audio.Format) (Device, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: wav device needs an output path", ErrDeviceUnavailable)
	}
	return &wavWriter{path: path, out: stdout, format: format}, nil
}

func (w *wavWriter) streaming() bool { return w.path == "-" }

func (w *wavWriter) Play(clip *audio.Clip) error {
	c := audio.ConvertClip(clip, w.format)
	if !w.streaming() {
		w.samples = append(w.samples, c.Samples...)
		return nil
	}

	if !w.header {
		if _, err := audio.WriteWAVHeaderStreaming(w.out, w.format); err != nil {
			return fmt.Errorf("%w: write header: %w", ErrDeviceUnavailable, err)
		}
		w.header = true
	}
	if _, err := audio.WritePCM16Samples(w.out, c.Samples); err != nil {
		return fmt.Errorf("%w: write samples: %w", ErrDeviceUnavailable, err)
	}
	return nil
}

func (w *wavWriter) Close() error {
	if w.streaming() {
		return nil
	}
	data, err := audio.EncodeWAV(w.samples, w.format)
	if err != nil {
		return err
	}
	return os.WriteFile(w.path, data, 0o644)
}
