package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"github.com/cwbudde/wav"
)

// ErrDecode is returned when clip bytes are not valid, complete PCM WAV audio.
var ErrDecode = errors.New("audio decode failed")

// ErrFormatMismatch is returned (wrapped together with ErrDecode) when a WAV
// parses but uses a layout the player cannot handle.
var ErrFormatMismatch = errors.New("WAV format mismatch")

const streamingChunkSize = 0xFFFFFFFF

// DecodeFile reads and decodes the WAV clip at path.
func DecodeFile(path string) (*Clip, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrDecode, path, err)
	}
	clip, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	clip.Path = path
	return clip, nil
}

// Decode parses WAV bytes into a clip. Mono and stereo PCM at any sample
// rate are accepted. A data chunk that claims more bytes than the input holds
// is reported as truncated rather than silently shortened.
func Decode(data []byte) (*Clip, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty WAV input", ErrDecode)
	}
	if err := checkChunks(data); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: invalid WAV file", ErrDecode)
	}

	if dec.NumChans != 1 && dec.NumChans != 2 {
		return nil, fmt.Errorf("%w: %w: channels %d, want 1 or 2", ErrDecode, ErrFormatMismatch, dec.NumChans)
	}
	switch dec.BitDepth {
	case 8, 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: %w: bit depth %d", ErrDecode, ErrFormatMismatch, dec.BitDepth)
	}
	if dec.SampleRate == 0 {
		return nil, fmt.Errorf("%w: %w: sample rate 0", ErrDecode, ErrFormatMismatch)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: reading PCM data: %w", ErrDecode, err)
	}

	return &Clip{
		Format: Format{
			SampleRate: int(dec.SampleRate),
			Channels:   int(dec.NumChans),
		},
		Samples: buf.Data,
	}, nil
}

// checkChunks walks the RIFF chunk list and verifies that a fmt chunk and a
// data chunk exist and that the data chunk fits inside data.
func checkChunks(data []byte) error {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return errors.New("not a RIFF/WAVE file")
	}

	var (
		sawFmt     bool
		blockAlign uint32
	)
	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := binary.LittleEndian.Uint32(data[pos+4 : pos+8])
		body := pos + 8

		switch id {
		case "fmt ":
			if size < 16 || body+16 > len(data) {
				return errors.New("fmt chunk too short")
			}
			sawFmt = true
			blockAlign = uint32(binary.LittleEndian.Uint16(data[body+12 : body+14]))
		case "data":
			if !sawFmt {
				return errors.New("data chunk precedes fmt chunk")
			}
			if size == streamingChunkSize {
				return nil
			}
			remaining := uint64(len(data) - body)
			if uint64(size) > remaining {
				return fmt.Errorf("truncated data chunk: header declares %d bytes, %d present", size, remaining)
			}
			if blockAlign > 0 && size%blockAlign != 0 {
				return fmt.Errorf("data chunk size %d is not a multiple of block size %d", size, blockAlign)
			}
			return nil
		}

		next := uint64(body) + uint64(size)
		if size%2 != 0 {
			next++ // RIFF pad byte
		}
		if next > uint64(len(data)) {
			return fmt.Errorf("truncated %q chunk", id)
		}
		pos = int(next)
	}

	if !sawFmt {
		return errors.New("fmt chunk not found")
	}
	return errors.New("data chunk not found")
}
