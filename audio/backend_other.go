//go:build !linux

package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"runtime"
	"sync"

	"github.com/gen2brain/malgo"
)

type malgoBackend struct {
	ctx *malgo.AllocatedContext

	mu  sync.Mutex
	ids []malgo.DeviceID // index-aligned with the last Devices() result
	def int
}

func NewBackend() (Backend, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("malgo context: %w", err)
	}
	return &malgoBackend{ctx: ctx, def: NoDevice}, nil
}

func (m *malgoBackend) Devices() ([]DeviceInfo, error) {
	infos, err := m.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("malgo devices: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids = m.ids[:0]
	m.def = NoDevice

	var result []DeviceInfo
	for i, d := range infos {
		m.ids = append(m.ids, d.ID)
		if d.IsDefault != 0 {
			m.def = i
		}
		result = append(result, DeviceInfo{
			ID:               i,
			Name:             d.Name(),
			MaxInputChannels: 2, // capture enumeration only lists input-capable devices
		})
	}
	return result, nil
}

func (m *malgoBackend) DefaultDeviceID() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.def
}

func (m *malgoBackend) HostAPIs() []string {
	switch runtime.GOOS {
	case "windows":
		return []string{"wasapi", "directsound", "mme"}
	case "darwin":
		return []string{"coreaudio"}
	default:
		return nil
	}
}

func (m *malgoBackend) deviceID(idx int) (malgo.DeviceID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if idx < 0 || idx >= len(m.ids) {
		return malgo.DeviceID{}, fmt.Errorf("unknown device index %d", idx)
	}
	return m.ids[idx], nil
}

func (m *malgoBackend) deviceConfig(deviceID, sampleRate, channels int) (malgo.DeviceConfig, error) {
	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatF32
	if channels > 0 {
		cfg.Capture.Channels = uint32(channels)
	}
	if sampleRate > 0 {
		cfg.SampleRate = uint32(sampleRate)
	}
	id, err := m.deviceID(deviceID)
	if err != nil {
		return cfg, err
	}
	cfg.Capture.DeviceID = id.Pointer()
	return cfg, nil
}

// ValidateSettings opens and immediately releases a device; miniaudio
// has no separate probe call.
func (m *malgoBackend) ValidateSettings(deviceID, sampleRate, channels int) error {
	cfg, err := m.deviceConfig(deviceID, sampleRate, channels)
	if err != nil {
		return err
	}
	dev, err := malgo.InitDevice(m.ctx.Context, cfg, malgo.DeviceCallbacks{})
	if err != nil {
		return fmt.Errorf("device validation: %w", err)
	}
	dev.Uninit()
	return nil
}

func (m *malgoBackend) OpenStream(cfg StreamConfig, cb Callback) (Stream, error) {
	devCfg, err := m.deviceConfig(cfg.DeviceID, cfg.SampleRate, cfg.Channels)
	if err != nil {
		return nil, err
	}
	if cfg.BlockSize > 0 {
		devCfg.PeriodSizeInFrames = uint32(cfg.BlockSize)
	}

	channels := cfg.Channels
	if channels <= 0 {
		channels = 1
	}

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, frameCount uint32) {
			n := int(frameCount) * channels
			if n*4 > len(input) {
				n = len(input) / 4
			}
			samples := make([]float32, n)
			for i := 0; i < n; i++ {
				bits := binary.LittleEndian.Uint32(input[i*4:])
				samples[i] = math.Float32frombits(bits)
			}
			cb(samples, int(frameCount))
		},
	}

	dev, err := malgo.InitDevice(m.ctx.Context, devCfg, callbacks)
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}
	if err := dev.Start(); err != nil {
		dev.Uninit()
		return nil, fmt.Errorf("start stream: %w", err)
	}
	return &malgoStream{device: dev}, nil
}

func (m *malgoBackend) Close() {
	m.ctx.Uninit()
	m.ctx.Free()
}

type malgoStream struct {
	device *malgo.Device
}

func (s *malgoStream) Close() {
	s.device.Stop()
	s.device.Uninit()
}
