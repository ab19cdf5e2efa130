package audio

import (
	"fmt"
	"sync"
)

// FakeBackend is a scriptable Backend for tests. Device lists, per
// device validation results, and stream open failures are all
// configurable; opened streams expose Feed to push synthetic samples
// through the registered callback.
type FakeBackend struct {
	mu sync.Mutex

	devices   []DeviceInfo
	defaultID int
	hostAPIs  []string

	invalid    map[int]bool  // ValidateSettings fails outright for these ids
	validRates map[int][]int // non-nil restricts accepted sample rates

	openErrs int // fail this many OpenStream calls before succeeding
	opened   []*FakeStream

	validateCalls int
}

func NewFakeBackend(devices ...DeviceInfo) *FakeBackend {
	return &FakeBackend{
		devices:    devices,
		defaultID:  NoDevice,
		invalid:    map[int]bool{},
		validRates: map[int][]int{},
	}
}

func (f *FakeBackend) SetDefault(id int)         { f.mu.Lock(); f.defaultID = id; f.mu.Unlock() }
func (f *FakeBackend) SetHostAPIs(apis []string) { f.mu.Lock(); f.hostAPIs = apis; f.mu.Unlock() }
func (f *FakeBackend) SetInvalid(id int)         { f.mu.Lock(); f.invalid[id] = true; f.mu.Unlock() }
func (f *FakeBackend) SetOpenErrs(n int)         { f.mu.Lock(); f.openErrs = n; f.mu.Unlock() }

func (f *FakeBackend) SetValidRates(id int, rates ...int) {
	f.mu.Lock()
	f.validRates[id] = rates
	f.mu.Unlock()
}

func (f *FakeBackend) SetDevices(devices ...DeviceInfo) {
	f.mu.Lock()
	f.devices = devices
	f.mu.Unlock()
}

func (f *FakeBackend) Devices() ([]DeviceInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]DeviceInfo, len(f.devices))
	copy(out, f.devices)
	return out, nil
}

func (f *FakeBackend) DefaultDeviceID() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.defaultID
}

func (f *FakeBackend) HostAPIs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hostAPIs
}

func (f *FakeBackend) ValidateSettings(deviceID, sampleRate, channels int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.validateCalls++
	if f.invalid[deviceID] {
		return fmt.Errorf("device %d rejected", deviceID)
	}
	rates, restricted := f.validRates[deviceID]
	if sampleRate != 0 && restricted {
		for _, r := range rates {
			if r == sampleRate {
				return nil
			}
		}
		return fmt.Errorf("device %d rejects rate %d", deviceID, sampleRate)
	}
	return nil
}

func (f *FakeBackend) OpenStream(cfg StreamConfig, cb Callback) (Stream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErrs > 0 {
		f.openErrs--
		return nil, fmt.Errorf("open failed for device %d", cfg.DeviceID)
	}
	s := &FakeStream{cfg: cfg, cb: cb}
	f.opened = append(f.opened, s)
	return s, nil
}

func (f *FakeBackend) Close() {}

// LastStream returns the most recently opened stream, or nil.
func (f *FakeBackend) LastStream() *FakeStream {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.opened) == 0 {
		return nil
	}
	return f.opened[len(f.opened)-1]
}

func (f *FakeBackend) OpenCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.opened)
}

type FakeStream struct {
	cfg StreamConfig

	mu     sync.Mutex
	cb     Callback
	closed bool
}

// Feed pushes samples through the capture callback, like a driver
// delivering a buffer.
func (s *FakeStream) Feed(data []float32) {
	s.mu.Lock()
	cb := s.cb
	closed := s.closed
	s.mu.Unlock()
	if closed || cb == nil {
		return
	}
	frames := len(data)
	if s.cfg.Channels > 1 {
		frames = len(data) / s.cfg.Channels
	}
	cb(data, frames)
}

func (s *FakeStream) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func (s *FakeStream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
