package translator

import (
	"errors"
	"sync"
	"testing"
	"time"

	"livesub/config"
	"livesub/recognizer"
)

type realtimeRecorder struct {
	mu    sync.Mutex
	pairs [][2]string
}

func (r *realtimeRecorder) update(original, translated string) {
	r.mu.Lock()
	r.pairs = append(r.pairs, [2]string{original, translated})
	r.mu.Unlock()
}

func (r *realtimeRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pairs)
}

func transcriptionEvent(id int64, known bool, text string) recognizer.Event {
	return recognizer.Event{
		Transcription: &recognizer.TranscriptionResult{
			SentenceID:    id,
			SentenceKnown: known,
			Text:          text,
		},
		Translations: []recognizer.TranslationResult{
			{SentenceID: id, Lang: "zh", Text: "译:" + text},
		},
	}
}

func TestSettleSuppressesEarlyPartials(t *testing.T) {
	cfg := config.Default()
	cfg.SettleThreshold = 2

	rt := &realtimeRecorder{}
	b := NewBridge(cfg, rt.update)

	b.OnEvent(transcriptionEvent(1, true, "h"))
	b.OnEvent(transcriptionEvent(1, true, "he"))
	if rt.count() != 0 {
		t.Fatalf("first %d partials reached the surface, want suppression", rt.count())
	}
	b.OnEvent(transcriptionEvent(1, true, "hello"))
	if rt.count() != 1 {
		t.Errorf("got %d realtime updates, want 1 after settle", rt.count())
	}

	// A new sentence starts its own settle counter.
	b.OnEvent(transcriptionEvent(2, true, "w"))
	if rt.count() != 1 {
		t.Errorf("new sentence bypassed its settle counter")
	}
}

func TestUnknownSentencePassesThroughImmediately(t *testing.T) {
	cfg := config.Default()
	cfg.SettleThreshold = 5

	rt := &realtimeRecorder{}
	b := NewBridge(cfg, rt.update)
	fixed := time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return fixed }

	b.OnEvent(transcriptionEvent(0, false, "untagged"))
	if rt.count() != 1 {
		t.Fatalf("got %d realtime updates, want 1 without settle", rt.count())
	}

	select {
	case r := <-b.Results():
		if r.SentenceID != fixed.UnixMilli() {
			t.Errorf("sentence id %d, want timestamp fallback %d", r.SentenceID, fixed.UnixMilli())
		}
	default:
		t.Fatal("no result queued")
	}
}

func TestEveryEventIsQueued(t *testing.T) {
	cfg := config.Default()
	cfg.SettleThreshold = 10

	b := NewBridge(cfg, func(string, string) {})
	b.OnEvent(transcriptionEvent(1, true, "a"))
	b.OnEvent(transcriptionEvent(1, true, "ab"))

	originals, translations := b.AllTexts()
	if len(originals) != 2 || len(translations) != 2 {
		t.Errorf("queued %d/%d results, want 2/2 regardless of settle", len(originals), len(translations))
	}
}

func TestEmptyEventIgnored(t *testing.T) {
	b := NewBridge(config.Default(), nil)
	b.OnEvent(recognizer.Event{
		Transcription: &recognizer.TranscriptionResult{Text: "   "},
	})

	originals, _ := b.AllTexts()
	if len(originals) != 0 {
		t.Errorf("blank event queued: %v", originals)
	}
}

func TestNetworkErrorShortCircuits(t *testing.T) {
	b := NewBridge(config.Default(), nil)

	var networkMsgs, otherMsgs []string
	b.SetNetworkErrorCallback(func(m string) { networkMsgs = append(networkMsgs, m) })
	b.SetErrorCallback(func(m string) { otherMsgs = append(otherMsgs, m) })

	b.OnError(errors.New("WebSocket closed unexpectedly"))
	if len(networkMsgs) != 1 || len(otherMsgs) != 0 {
		t.Errorf("network error routed as network=%d other=%d, want 1/0", len(networkMsgs), len(otherMsgs))
	}

	b.OnError(errors.New("invalid api key"))
	if len(networkMsgs) != 1 || len(otherMsgs) != 1 {
		t.Errorf("service error routed as network=%d other=%d, want 1/1", len(networkMsgs), len(otherMsgs))
	}
}

func TestIsNetworkErrorKeywords(t *testing.T) {
	cases := map[string]bool{
		"read tcp: connection reset by peer":    true,
		"request Timeout exceeded":              true,
		"Cannot write to closing transport":     true,
		"quota exceeded for model":              false,
		"invalid parameter: sample_rate":        false,
		"recognizer: task failed: NetworkDown:": true,
	}
	for msg, want := range cases {
		if got := IsNetworkError(msg); got != want {
			t.Errorf("IsNetworkError(%q) = %v, want %v", msg, got, want)
		}
	}
}
