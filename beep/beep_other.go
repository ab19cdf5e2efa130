//go:build !linux

package beep

import (
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
)

var (
	malgoCtx *malgo.AllocatedContext
	device   *malgo.Device
	playMu   sync.Mutex

	// Playback state, read atomically from the driver callback.
	playSamples atomic.Pointer[[]int16]
	playPos     atomic.Uint32
)

func initSound() {
	var err error
	malgoCtx, err = malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return
	}
	if err := initDevice(); err != nil {
		malgoCtx.Uninit()
		malgoCtx = nil
	}
}

func initDevice() error {
	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.Playback.Format = malgo.FormatS16
	config.Playback.Channels = 1
	config.SampleRate = sampleRate

	var err error
	device, err = malgo.InitDevice(malgoCtx.Context, config, malgo.DeviceCallbacks{
		Data: dataCallback,
	})
	return err
}

func dataCallback(pOutput, _ []byte, frameCount uint32) {
	for i := range pOutput {
		pOutput[i] = 0
	}
	samples := playSamples.Load()
	if samples == nil {
		return
	}
	pos := playPos.Load()
	total := uint32(len(*samples))
	if pos >= total {
		playSamples.Store(nil)
		return
	}

	n := frameCount
	if n > total-pos {
		n = total - pos
	}
	for i := uint32(0); i < n; i++ {
		s := (*samples)[pos+i]
		pOutput[i*2] = byte(s)
		pOutput[i*2+1] = byte(s >> 8)
	}
	playPos.Store(pos + n)
}

func playCue(c cue) {
	if malgoCtx == nil {
		return
	}

	playMu.Lock()
	defer playMu.Unlock()
	if device == nil {
		return
	}

	// Stop first for a clean position; no-op when idle.
	device.Stop()

	samples := synth(c)
	playPos.Store(0)
	playSamples.Store(&samples)

	if err := device.Start(); err != nil {
		// Recreate the device, which handles sleep/wake invalidation.
		device.Uninit()
		if err := initDevice(); err != nil {
			playSamples.Store(nil)
			return
		}
		if err := device.Start(); err != nil {
			playSamples.Store(nil)
		}
	}
}
