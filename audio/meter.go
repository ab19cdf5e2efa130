package audio

import (
	"math"
	"sync"
	"time"
)

const (
	meterFrameMs  = 20
	meterDebounce = 3 // consecutive active frames to confirm voice

	// RMS as a fraction of full scale. Ambient room noise on consumer
	// mics sits well below 0.01.
	speechRMS = 0.015
)

// Meter tracks the signal level of captured audio and derives a cheap
// speech/silence classification from it. Update is safe to call from
// the capture path.
type Meter struct {
	sampleRate int
	frameLen   int

	mu            sync.Mutex
	buf           Frame
	level         float64
	voiceDetected bool
	lastVoiceTime time.Time
	activeRun     int
	totalFrames   int
	activeFrames  int
	tickTotal     int
	tickActive    int

	now func() time.Time
}

func NewMeter(sampleRate int) *Meter {
	return &Meter{
		sampleRate: sampleRate,
		frameLen:   sampleRate * meterFrameMs / 1000,
		now:        time.Now,
	}
}

// Update consumes one captured frame. Samples are buffered into fixed
// 20ms analysis frames, so arbitrary block sizes are fine.
func (m *Meter) Update(frame Frame) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.buf = append(m.buf, frame...)
	for len(m.buf) >= m.frameLen {
		chunk := m.buf[:m.frameLen]
		m.buf = m.buf[m.frameLen:]

		var sum float64
		for _, s := range chunk {
			v := float64(s) / 32768
			sum += v * v
		}
		rms := math.Sqrt(sum / float64(len(chunk)))
		m.level = rms

		m.totalFrames++
		if rms >= speechRMS {
			m.activeFrames++
			m.activeRun++
			if m.voiceDetected {
				m.lastVoiceTime = m.now()
			} else if m.activeRun >= meterDebounce {
				m.voiceDetected = true
				m.lastVoiceTime = m.now()
			}
		} else {
			m.activeRun = 0
		}
	}
}

// Level is the RMS of the most recent analysis frame, 0..1.
func (m *Meter) Level() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.level
}

func (m *Meter) VoiceDetected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.voiceDetected
}

func (m *Meter) LastVoiceTime() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastVoiceTime
}

const speechTickRatio = 0.10 // share of active frames for a tick to count as speech

// HasSpeechTick reports whether the audio since the previous call
// contained speech, for feeding a SilenceMonitor.
func (m *Meter) HasSpeechTick() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.totalFrames - m.tickTotal
	a := m.activeFrames - m.tickActive
	m.tickTotal, m.tickActive = m.totalFrames, m.activeFrames
	if t == 0 {
		return false
	}
	return float64(a)/float64(t) >= speechTickRatio
}

func (m *Meter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buf = m.buf[:0]
	m.level = 0
	m.voiceDetected = false
	m.lastVoiceTime = time.Time{}
	m.activeRun = 0
}
