package audio

import "strings"

// NoDevice marks an invalid or unassigned input device.
const NoDevice = -1

// Frame is one block of interleaved signed 16-bit samples. Frames are
// copied at the driver boundary; the queue that holds a frame owns it.
type Frame []int16

type DeviceInfo struct {
	ID                int
	Name              string
	MaxInputChannels  int
	DefaultSampleRate int
}

// loopbackKeywords identify devices that capture system output
// ("stereo mix" on Windows, monitor sources on PulseAudio).
var loopbackKeywords = []string{
	"stereo mix", "立体声混音", "loopback", "monitor", "what u hear",
}

func IsLoopback(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range loopbackKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Preferred host APIs, best first. Platforms that expose none of these
// fall back to their default silently.
var preferredHostAPIs = []string{"wasapi", "directsound", "mme"}

type StreamConfig struct {
	DeviceID   int
	SampleRate int
	Channels   int
	BlockSize  int    // frames per callback
	HostAPI    string // "" = platform default
}

// Callback runs on the audio driver's thread and must not block.
// data is valid only for the duration of the call.
type Callback func(data []float32, frames int)

// Backend abstracts the platform audio layer so the capture logic can
// be exercised against a fake in tests.
type Backend interface {
	Devices() ([]DeviceInfo, error)
	DefaultDeviceID() int
	HostAPIs() []string
	// ValidateSettings reports whether the device can open a stream
	// with the given settings. sampleRate or channels of 0 means
	// "any".
	ValidateSettings(deviceID, sampleRate, channels int) error
	OpenStream(cfg StreamConfig, cb Callback) (Stream, error)
	Close()
}

type Stream interface {
	Close()
}
