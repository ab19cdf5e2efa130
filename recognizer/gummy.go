package recognizer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"livesub/config"
	"livesub/log"
)

const (
	taskStartTimeout = 10 * time.Second
	taskStopTimeout  = 3 * time.Second
)

// GummyClient implements Client against the DashScope websocket
// inference protocol (gummy realtime translation models). One client
// is one task: after Stop it cannot be restarted.
type GummyClient struct {
	cfg *config.Config

	mu      sync.Mutex
	conn    *websocket.Conn
	taskID  string
	stopped bool

	handler   Handler
	started   chan struct{}
	startOnce sync.Once
	finished  chan struct{}
	wg        sync.WaitGroup
}

func NewGummyClient(cfg *config.Config) *GummyClient {
	return &GummyClient{
		cfg:      cfg,
		started:  make(chan struct{}),
		finished: make(chan struct{}),
	}
}

type wireHeader struct {
	Action       string            `json:"action,omitempty"`
	TaskID       string            `json:"task_id"`
	Streaming    string            `json:"streaming,omitempty"`
	Event        string            `json:"event,omitempty"`
	ErrorCode    string            `json:"error_code,omitempty"`
	ErrorMessage string            `json:"error_message,omitempty"`
	Attributes   map[string]string `json:"attributes,omitempty"`
}

type wireMessage struct {
	Header  wireHeader      `json:"header"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type runTaskPayload struct {
	TaskGroup  string         `json:"task_group"`
	Task       string         `json:"task"`
	Function   string         `json:"function"`
	Model      string         `json:"model"`
	Input      struct{}       `json:"input"`
	Parameters taskParameters `json:"parameters"`
}

type taskParameters struct {
	Format                     string   `json:"format"`
	SampleRate                 int      `json:"sample_rate"`
	SourceLanguage             string   `json:"source_language,omitempty"`
	TranscriptionEnabled       bool     `json:"transcription_enabled"`
	TranslationEnabled         bool     `json:"translation_enabled"`
	TranslationTargetLanguages []string `json:"translation_target_languages,omitempty"`
}

type resultPayload struct {
	Output struct {
		Transcription *wireTranscription `json:"transcription"`
		Translations  []wireTranslation  `json:"translations"`
	} `json:"output"`
	Usage *struct {
		Duration int64 `json:"duration"`
	} `json:"usage"`
}

type wireTranscription struct {
	SentenceID  *int64 `json:"sentence_id"`
	BeginTime   int64  `json:"begin_time"`
	EndTime     int64  `json:"end_time"`
	Text        string `json:"text"`
	SentenceEnd bool   `json:"sentence_end"`
}

type wireTranslation struct {
	SentenceID  *int64 `json:"sentence_id"`
	Lang        string `json:"lang"`
	Text        string `json:"text"`
	SentenceEnd bool   `json:"sentence_end"`
}

// Start dials the inference endpoint, issues run-task, and blocks
// until the service acknowledges with task-started.
func (c *GummyClient) Start(ctx context.Context, h Handler) error {
	c.mu.Lock()
	if c.conn != nil || c.stopped {
		c.mu.Unlock()
		return errors.New("recognizer: session already used")
	}
	c.handler = h
	c.taskID = strings.ReplaceAll(uuid.NewString(), "-", "")
	c.mu.Unlock()

	headers := http.Header{}
	headers.Set("Authorization", "bearer "+c.cfg.APIKey)
	headers.Set("X-DashScope-DataInspection", "enable")

	conn, _, err := websocket.Dial(ctx, c.cfg.Endpoint, &websocket.DialOptions{
		HTTPHeader: headers,
	})
	if err != nil {
		return fmt.Errorf("recognizer: dial: %w", err)
	}
	conn.SetReadLimit(1 << 22)

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	if err := c.writeJSON(ctx, c.runTaskMessage()); err != nil {
		conn.Close(websocket.StatusInternalError, "run-task failed")
		return fmt.Errorf("recognizer: run-task: %w", err)
	}

	c.wg.Add(1)
	go c.readLoop()

	select {
	case <-c.started:
		log.Infof("recognizer task %s started", c.taskID)
		return nil
	case <-c.finished:
		conn.Close(websocket.StatusNormalClosure, "task rejected")
		return errors.New("recognizer: task rejected before start")
	case <-time.After(taskStartTimeout):
		conn.Close(websocket.StatusInternalError, "task-started timeout")
		return errors.New("recognizer: timed out waiting for task-started")
	case <-ctx.Done():
		conn.Close(websocket.StatusNormalClosure, "canceled")
		return ctx.Err()
	}
}

func (c *GummyClient) runTaskMessage() wireMessage {
	payload := runTaskPayload{
		TaskGroup: "audio",
		Task:      "asr",
		Function:  "recognition",
		Model:     c.cfg.Model,
		Parameters: taskParameters{
			Format:                     "pcm",
			SampleRate:                 c.cfg.SampleRate,
			SourceLanguage:             c.cfg.SourceLang,
			TranscriptionEnabled:       true,
			TranslationEnabled:         true,
			TranslationTargetLanguages: []string{c.cfg.TargetLang},
		},
	}
	raw, _ := json.Marshal(payload)
	return wireMessage{
		Header: wireHeader{
			Action:    "run-task",
			TaskID:    c.taskID,
			Streaming: "duplex",
		},
		Payload: raw,
	}
}

func (c *GummyClient) writeJSON(ctx context.Context, msg wireMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return errors.New("recognizer: not connected")
	}
	return conn.Write(ctx, websocket.MessageText, data)
}

// SendFrame writes one binary PCM block. A zero-length frame is sent
// as an empty binary message, which probes connection health without
// contributing audio.
func (c *GummyClient) SendFrame(frame []byte) error {
	c.mu.Lock()
	conn := c.conn
	stopped := c.stopped
	c.mu.Unlock()
	if stopped || conn == nil {
		return errors.New("recognizer: session is closed")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageBinary, frame); err != nil {
		return fmt.Errorf("recognizer: send frame: %w", err)
	}
	return nil
}

// Stop issues finish-task, waits briefly for the service to flush
// pending results, and closes the connection. Stopping twice is a
// no-op.
func (c *GummyClient) Stop() error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	conn := c.conn
	taskID := c.taskID
	c.mu.Unlock()

	if conn == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), taskStopTimeout)
	defer cancel()
	finish := wireMessage{
		Header: wireHeader{Action: "finish-task", TaskID: taskID, Streaming: "duplex"},
	}
	if err := c.writeJSON(ctx, finish); err == nil {
		select {
		case <-c.finished:
		case <-ctx.Done():
			log.Warn("recognizer did not confirm finish-task in time")
		}
	}

	conn.Close(websocket.StatusNormalClosure, "session closed")
	c.wg.Wait()
	return nil
}

func (c *GummyClient) readLoop() {
	defer c.wg.Done()
	for {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			return
		}

		_, data, err := conn.Read(context.Background())
		if err != nil {
			c.mu.Lock()
			stopped := c.stopped
			c.mu.Unlock()
			if !stopped {
				c.handler.OnError(fmt.Errorf("recognizer: read: %w", err))
			}
			return
		}
		if done := c.handleMessage(data); done {
			return
		}
	}
}

// handleMessage dispatches one server frame. Returns true when the
// task reached a terminal state.
func (c *GummyClient) handleMessage(data []byte) bool {
	var msg wireMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Warnf("recognizer: unparseable server frame: %v", err)
		return false
	}

	switch msg.Header.Event {
	case "task-started":
		// Servers are not trusted to send this exactly once.
		c.startOnce.Do(func() { close(c.started) })
		return false
	case "result-generated":
		if ev, ok := parseResult(msg); ok {
			c.handler.OnEvent(ev)
		}
		return false
	case "task-finished":
		close(c.finished)
		return true
	case "task-failed":
		c.handler.OnError(fmt.Errorf("recognizer: task failed: %s: %s",
			msg.Header.ErrorCode, msg.Header.ErrorMessage))
		close(c.finished)
		return true
	default:
		return false
	}
}

func parseResult(msg wireMessage) (Event, bool) {
	var payload resultPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return Event{}, false
	}

	ev := Event{RequestID: msg.Header.TaskID}
	if t := payload.Output.Transcription; t != nil {
		tr := &TranscriptionResult{
			Text:        t.Text,
			SentenceEnd: t.SentenceEnd,
			BeginTime:   t.BeginTime,
			EndTime:     t.EndTime,
		}
		if t.SentenceID != nil {
			tr.SentenceID = *t.SentenceID
			tr.SentenceKnown = true
		}
		ev.Transcription = tr
	}
	for _, t := range payload.Output.Translations {
		out := TranslationResult{
			Lang:        t.Lang,
			Text:        t.Text,
			SentenceEnd: t.SentenceEnd,
		}
		if t.SentenceID != nil {
			out.SentenceID = *t.SentenceID
		}
		ev.Translations = append(ev.Translations, out)
	}
	if payload.Usage != nil {
		ev.Usage = &Usage{Duration: payload.Usage.Duration}
	}

	if ev.Transcription == nil && len(ev.Translations) == 0 {
		return Event{}, false
	}
	return ev, true
}
