//go:build linux

package audio

import (
	"fmt"
	"sync"

	"github.com/jfreymuth/pulse"
)

type pulseBackend struct {
	client *pulse.Client

	mu      sync.Mutex
	sources []*pulse.Source // index-aligned with the last Devices() result
	def     int
}

func NewBackend() (Backend, error) {
	c, err := pulse.NewClient()
	if err != nil {
		return nil, fmt.Errorf("pulse: %w", err)
	}
	return &pulseBackend{client: c, def: NoDevice}, nil
}

// Devices lists PulseAudio sources. Monitor sources show up here too,
// which is what makes system-audio (loopback) capture selectable.
func (p *pulseBackend) Devices() ([]DeviceInfo, error) {
	sources, err := p.client.ListSources()
	if err != nil {
		return nil, fmt.Errorf("pulse list sources: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.sources = sources
	p.def = NoDevice

	if def, err := p.client.DefaultSource(); err == nil && def != nil {
		for i, s := range sources {
			if s.ID() == def.ID() {
				p.def = i
				break
			}
		}
	}

	var result []DeviceInfo
	for i, s := range sources {
		result = append(result, DeviceInfo{
			ID:               i,
			Name:             s.Name(),
			MaxInputChannels: 2,
		})
	}
	return result, nil
}

func (p *pulseBackend) DefaultDeviceID() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.def
}

func (p *pulseBackend) HostAPIs() []string {
	return []string{"pulseaudio"}
}

// ValidateSettings always succeeds: the PulseAudio server resamples
// and remixes to whatever the stream asks for.
func (p *pulseBackend) ValidateSettings(deviceID, sampleRate, channels int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if deviceID < 0 || deviceID >= len(p.sources) {
		return fmt.Errorf("unknown device index %d", deviceID)
	}
	return nil
}

func (p *pulseBackend) source(idx int) *pulse.Source {
	p.mu.Lock()
	defer p.mu.Unlock()
	if idx < 0 || idx >= len(p.sources) {
		return nil
	}
	return p.sources[idx]
}

func (p *pulseBackend) OpenStream(cfg StreamConfig, cb Callback) (Stream, error) {
	channels := cfg.Channels
	if channels <= 0 {
		channels = 1
	}

	writer := pulse.Float32Writer(func(buf []float32) (int, error) {
		if len(buf) > 0 {
			cb(buf, len(buf)/channels)
		}
		return len(buf), nil
	})

	opts := []pulse.RecordOption{
		pulse.RecordLatency(0.1),
	}
	if channels == 1 {
		opts = append(opts, pulse.RecordMono)
	} else {
		opts = append(opts, pulse.RecordStereo)
	}
	if cfg.SampleRate > 0 {
		opts = append(opts, pulse.RecordSampleRate(cfg.SampleRate))
	}
	if src := p.source(cfg.DeviceID); src != nil {
		opts = append(opts, pulse.RecordSource(src))
	}

	stream, err := p.client.NewRecord(writer, opts...)
	if err != nil {
		return nil, fmt.Errorf("pulse record: %w", err)
	}

	ps := &pulseStream{
		stream: stream,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go func() {
		defer close(ps.done)
		stream.Start()
		<-ps.stop
		stream.Stop()
		stream.Close()
	}()
	return ps, nil
}

func (p *pulseBackend) Close() {
	p.client.Close()
}

type pulseStream struct {
	stream *pulse.RecordStream
	once   sync.Once
	stop   chan struct{}
	done   chan struct{}
}

func (s *pulseStream) Close() {
	s.once.Do(func() { close(s.stop) })
	<-s.done
}
