package beep

import "testing"

func TestSynthLengthAndEnvelope(t *testing.T) {
	s := synth(startCue)
	want := int(sampleRate * startCue.duration)
	if len(s) != want {
		t.Fatalf("synth produced %d samples, want %d", len(s), want)
	}

	// The decay envelope makes the tail quieter than the head.
	var head, tail int32
	for _, v := range s[:100] {
		if v < 0 {
			v = -v
		}
		if int32(v) > head {
			head = int32(v)
		}
	}
	for _, v := range s[len(s)-100:] {
		if v < 0 {
			v = -v
		}
		if int32(v) > tail {
			tail = int32(v)
		}
	}
	if tail >= head {
		t.Errorf("envelope did not decay: head %d, tail %d", head, tail)
	}
}

func TestSynthDoubleHasGap(t *testing.T) {
	s := synth(lostCue)
	tone := int(sampleRate * lostCue.duration)
	gap := int(sampleRate * doubleGap)
	if len(s) != tone*2+gap {
		t.Fatalf("double cue length %d, want %d", len(s), tone*2+gap)
	}
	for i := tone; i < tone+gap; i++ {
		if s[i] != 0 {
			t.Fatalf("gap sample %d is %d, want silence", i, s[i])
		}
	}
}

func TestDisableSuppressesPlayback(t *testing.T) {
	Disable()
	defer func() { disabled = false }()

	// Must not touch the audio device once disabled.
	SessionStart()
	SessionEnd()
	ConnectionLost()
}
