// Package translator is the three-layer translation pipeline: Bridge
// receives recognizer callbacks, Manager owns the audio buffer and the
// recognizer session, and Unit ties capture, translation, results, and
// the subtitle surface together.
package translator

import (
	"strings"
	"sync"
	"time"

	"livesub/config"
	"livesub/log"
	"livesub/recognizer"
)

const resultQueueSize = 1024

// Result is one recognized sentence pairing. SentenceID is the
// service-assigned id, or a timestamp stand-in when the service
// omitted one.
type Result struct {
	SentenceID int64
	Original   string
	Translated string
}

// networkKeywords classify an error message as a connection failure.
// Matching is case insensitive.
var networkKeywords = []string{
	"websocket", "connection", "network", "timeout",
	"clientconnectionreseterror", "cannot write to closing transport",
}

// IsNetworkError reports whether the message looks like a connection
// failure rather than a service-level error.
func IsNetworkError(message string) bool {
	lower := strings.ToLower(message)
	for _, kw := range networkKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Bridge adapts recognizer callbacks into the result queue and the
// realtime subtitle callback. Partial results for a sentence are
// suppressed until the sentence has produced more than the settle
// threshold of updates, which keeps the subtitle from flickering on
// unstable early hypotheses.
type Bridge struct {
	cfg *config.Config

	results chan Result

	mu      sync.Mutex
	settled map[int64]int

	onRealtime     func(original, translated string)
	onError        func(message string)
	onNetworkError func(message string)

	now func() time.Time
}

func NewBridge(cfg *config.Config, onRealtime func(original, translated string)) *Bridge {
	return &Bridge{
		cfg:        cfg,
		results:    make(chan Result, resultQueueSize),
		settled:    map[int64]int{},
		onRealtime: onRealtime,
		now:        time.Now,
	}
}

// Results exposes the sentence queue for the consumer.
func (b *Bridge) Results() <-chan Result { return b.results }

// SetErrorCallback registers the handler for non-network errors.
func (b *Bridge) SetErrorCallback(fn func(message string)) {
	b.mu.Lock()
	b.onError = fn
	b.mu.Unlock()
}

// SetNetworkErrorCallback registers the handler that short-circuits
// connection failures. When set, a network-classified error goes only
// there.
func (b *Bridge) SetNetworkErrorCallback(fn func(message string)) {
	b.mu.Lock()
	b.onNetworkError = fn
	b.mu.Unlock()
}

// OnEvent runs on the recognizer's read goroutine.
func (b *Bridge) OnEvent(ev recognizer.Event) {
	var original, translated string
	var sentenceID int64
	var sentenceKnown bool

	if t := ev.Transcription; t != nil {
		original = t.Text
		sentenceID = t.SentenceID
		sentenceKnown = t.SentenceKnown
	}
	if tr, ok := ev.Translation(b.cfg.TargetLang); ok {
		translated = tr.Text
	}

	hasText := strings.TrimSpace(original) != "" || strings.TrimSpace(translated) != ""
	if !hasText {
		return
	}

	if b.onRealtime != nil {
		if sentenceKnown {
			b.mu.Lock()
			b.settled[sentenceID]++
			settled := b.settled[sentenceID] > b.cfg.SettleThreshold
			b.mu.Unlock()
			if settled {
				b.onRealtime(original, translated)
			}
		} else {
			b.onRealtime(original, translated)
		}
	}

	if !sentenceKnown {
		sentenceID = b.now().UnixMilli()
	}
	select {
	case b.results <- Result{SentenceID: sentenceID, Original: original, Translated: translated}:
	default:
		log.Warn("result queue full, sentence dropped")
	}
}

// OnError classifies and routes one recognizer error. Network errors
// go to the network callback exclusively when one is registered.
func (b *Bridge) OnError(err error) {
	message := err.Error()

	b.mu.Lock()
	onNetwork := b.onNetworkError
	onError := b.onError
	b.mu.Unlock()

	if IsNetworkError(message) && onNetwork != nil {
		onNetwork(message)
		return
	}
	if onError != nil {
		onError(message)
		return
	}
	log.Errorf("recognizer error with no handler: %s", message)
}

// AllTexts drains the queue and returns the accumulated originals and
// translations, index aligned.
func (b *Bridge) AllTexts() (originals, translations []string) {
	for {
		select {
		case r := <-b.results:
			originals = append(originals, r.Original)
			translations = append(translations, r.Translated)
		default:
			return originals, translations
		}
	}
}

func (b *Bridge) Close() {
	log.Info("translation callback closed")
}
