package audio

import (
	"github.com/gen2brain/malgo"
)

const (
	// DefaultSampleRate is 16kHz, the native sample rate for Whisper.
	DefaultSampleRate = 16_000
	// DefaultChannels is mono.
	DefaultChannels = 1
	// PCMFile is the raw recording written into the capture directory.
	PCMFile = "capture.pcm"
	// levelWindow is ~50ms of samples at 16kHz.
	levelWindow = 800
)

// DeviceConfig selects the capture format.
type DeviceConfig struct {
	Format          malgo.FormatType
	CaptureChannels int
	SampleRate      int
}

// DefaultDeviceConfig is 16kHz mono S16LE.
func DefaultDeviceConfig() DeviceConfig {
	return DeviceConfig{
		Format:          malgo.FormatS16,
		CaptureChannels: DefaultChannels,
		SampleRate:      DefaultSampleRate,
	}
}
