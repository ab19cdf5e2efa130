// Package encoder writes captured PCM audio to FLAC. Frames are stored
// verbatim (no prediction), which keeps encoding cheap enough to run on
// the capture path.
package encoder

import (
	"fmt"
	"io"
	"sync"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"
)

const bitsPerSample = 16

// Flac encodes interleaved int16 PCM blocks into a FLAC stream.
type Flac struct {
	mu         sync.Mutex
	enc        *flac.Encoder
	sampleRate int
	channels   int
	samples    uint64
}

func NewFlac(w io.Writer, sampleRate, channels int) (*Flac, error) {
	if channels != 1 && channels != 2 {
		return nil, fmt.Errorf("flac: unsupported channel count %d", channels)
	}
	info := &meta.StreamInfo{
		BlockSizeMin:  16,
		BlockSizeMax:  65535,
		SampleRate:    uint32(sampleRate),
		NChannels:     uint8(channels),
		BitsPerSample: bitsPerSample,
	}
	enc, err := flac.NewEncoder(w, info)
	if err != nil {
		return nil, fmt.Errorf("creating flac encoder: %w", err)
	}
	return &Flac{enc: enc, sampleRate: sampleRate, channels: channels}, nil
}

// Write encodes one block of interleaved samples. The block length must
// be a multiple of the channel count.
func (e *Flac) Write(block []int16) error {
	if len(block) == 0 {
		return nil
	}
	if len(block)%e.channels != 0 {
		return fmt.Errorf("flac: block of %d samples is not %d-channel interleaved", len(block), e.channels)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	perChannel := len(block) / e.channels
	subframes := make([]*frame.Subframe, e.channels)
	for ch := range subframes {
		samples := make([]int32, perChannel)
		for i := range samples {
			samples[i] = int32(block[i*e.channels+ch])
		}
		subframes[ch] = &frame.Subframe{
			SubHeader: frame.SubHeader{Pred: frame.PredVerbatim},
			Samples:   samples,
			NSamples:  perChannel,
		}
	}

	channels := frame.ChannelsMono
	if e.channels == 2 {
		channels = frame.ChannelsLR
	}
	f := &frame.Frame{
		Header: frame.Header{
			BlockSize:     uint16(perChannel),
			SampleRate:    uint32(e.sampleRate),
			Channels:      channels,
			BitsPerSample: bitsPerSample,
		},
		Subframes: subframes,
	}
	if err := e.enc.WriteFrame(f); err != nil {
		return fmt.Errorf("writing flac frame: %w", err)
	}
	e.samples += uint64(perChannel)
	return nil
}

// Samples reports the per-channel sample count written so far.
func (e *Flac) Samples() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.samples
}

// Close finalizes the stream. The underlying writer is not closed.
func (e *Flac) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enc.Close()
}
