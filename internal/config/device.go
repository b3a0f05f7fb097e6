package config

import (
	"fmt"
	"strings"

	"github.com/example/go-readaloud/internal/playback"
)

// NormalizeDevice lower-cases and checks a playback device name. An empty
// name selects the speaker.
func NormalizeDevice(raw string) (string, error) {
	device := strings.ToLower(strings.TrimSpace(raw))
	if device == "" {
		device = playback.DeviceSpeaker
	}
	switch device {
	case playback.DeviceSpeaker, playback.DeviceCommand, playback.DeviceWAV, playback.DeviceDiscard:
		return device, nil
	case "null", "none":
		return playback.DeviceDiscard, nil
	default:
		return "", fmt.Errorf(
			"invalid playback device %q (expected %s|%s|%s|%s)",
			raw,
			playback.DeviceSpeaker,
			playback.DeviceCommand,
			playback.DeviceWAV,
			playback.DeviceDiscard,
		)
	}
}
