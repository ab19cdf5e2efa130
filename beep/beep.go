// Package beep plays short audio cues for session lifecycle events:
// session started, session ended, connection lost.
package beep

import (
	"math"
	"sync"
)

var disabled bool

// Disable turns all cues into no-ops, e.g. for -mute.
func Disable() { disabled = true }

const sampleRate = 44100

// cue describes one tone with an exponential decay envelope. double
// plays the tone twice with a short gap.
type cue struct {
	freq     float64
	duration float64
	volume   float64
	decay    float64
	double   bool
}

var (
	startCue = cue{freq: 1100, duration: 0.05, volume: 0.5, decay: 50}
	endCue   = cue{freq: 850, duration: 0.07, volume: 0.5, decay: 40}
	lostCue  = cue{freq: 350, duration: 0.08, volume: 0.6, decay: 30, double: true}
)

const doubleGap = 0.05

var soundOnce sync.Once

// synth renders a cue as mono int16 samples.
func synth(c cue) []int16 {
	tone := synthTone(c)
	if !c.double {
		return tone
	}
	gap := make([]int16, int(sampleRate*doubleGap))
	out := make([]int16, 0, len(tone)*2+len(gap))
	out = append(out, tone...)
	out = append(out, gap...)
	out = append(out, tone...)
	return out
}

func synthTone(c cue) []int16 {
	n := int(sampleRate * c.duration)
	samples := make([]int16, n)
	for i := range samples {
		t := float64(i) / sampleRate
		envelope := math.Exp(-t * c.decay)
		samples[i] = int16(math.Sin(2*math.Pi*c.freq*t) * 32767 * c.volume * envelope)
	}
	return samples
}

// Init prepares the playback device so the first cue is not delayed.
func Init() {
	if disabled {
		return
	}
	soundOnce.Do(initSound)
}

func SessionStart() { play(startCue) }
func SessionEnd()   { play(endCue) }

// ConnectionLost is the cue for a dropped service connection.
func ConnectionLost() { play(lostCue) }

func play(c cue) {
	if disabled {
		return
	}
	soundOnce.Do(initSound)
	playCue(c)
}
