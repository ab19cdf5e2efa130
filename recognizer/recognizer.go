// Package recognizer streams audio to a cloud speech translation
// service and delivers incremental transcription and translation
// results through a callback handler.
package recognizer

import "context"

// TranscriptionResult is the source-language text of one result event.
// SentenceKnown is false when the service omitted the sentence id.
type TranscriptionResult struct {
	SentenceID    int64
	SentenceKnown bool
	Text          string
	SentenceEnd   bool
	BeginTime     int64 // ms from session start
	EndTime       int64
}

// TranslationResult is one target-language rendering of the current
// sentence.
type TranslationResult struct {
	SentenceID  int64
	Lang        string
	Text        string
	SentenceEnd bool
}

type Usage struct {
	Duration int64 // billed audio seconds
}

// Event is one result callback from the service. Transcription may be
// nil when the event carries only translations, and vice versa.
type Event struct {
	RequestID     string
	Transcription *TranscriptionResult
	Translations  []TranslationResult
	Usage         *Usage
}

// Translation returns the rendering for lang, if present.
func (e Event) Translation(lang string) (TranslationResult, bool) {
	for _, t := range e.Translations {
		if t.Lang == lang {
			return t, true
		}
	}
	return TranslationResult{}, false
}

// Handler receives results and errors from a running session. Both
// methods are called from the client's read goroutine.
type Handler interface {
	OnEvent(Event)
	OnError(err error)
}

// Client is one streaming recognition session. Start connects and
// returns once the service accepts the task; SendFrame delivers one
// PCM block. An empty frame is a liveness probe: it exercises the
// connection without extending the audio stream.
type Client interface {
	Start(ctx context.Context, h Handler) error
	SendFrame(frame []byte) error
	Stop() error
}
