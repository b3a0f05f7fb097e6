// Package synth drives the external speech-synthesis engine that turns one
// text segment into a WAV file.
package synth

import (
	"context"
	"errors"
)

// Default voice configuration: Japanese WaveNet voice C.
const (
	DefaultLang    = "ja-JP"
	DefaultVoice   = "ja-JP-Wavenet-C"
	DefaultCommand = "speech"
)

var (
	// ErrUnavailable means the engine could not be launched at all
	// (missing executable, permission denied).
	ErrUnavailable = errors.New("synthesis engine unavailable")
	// ErrFailed means the engine ran but exited non-zero or left no audio
	// behind.
	ErrFailed = errors.New("synthesis failed")
)

// Voice selects the language and voice the engine speaks with.
type Voice struct {
	Lang string `json:"lang"`
	Name string `json:"voice"`
}

// DefaultVoiceConfig returns the ja-JP WaveNet voice.
func DefaultVoiceConfig() Voice {
	return Voice{Lang: DefaultLang, Name: DefaultVoice}
}

// Engine renders text into a playable WAV file at dest, overwriting
// whatever is there.
type Engine interface {
	Synthesize(ctx context.Context, text string, voice Voice, dest string) error
}

// EngineFunc adapts a function to Engine.
type EngineFunc func(ctx context.Context, text string, voice Voice, dest string) error

func (f EngineFunc) Synthesize(ctx context.Context, text string, voice Voice, dest string) error {
	return f(ctx, text, voice, dest)
}
