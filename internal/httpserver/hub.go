package httpserver

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"hotseat/internal/domain"
)

const (
	eventState      = "session:state"
	eventPartial    = "session:partial"
	eventTranscript = "session:transcript"
	eventCounters   = "session:counters"
	eventError      = "session:error"
)

// EventHub implements ports.EventSink by fanning events out to websocket
// subscribers. A session with no subscribers still accepts events; they are
// simply not delivered anywhere.
type EventHub struct {
	log zerolog.Logger

	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	closed bool
}

type subscriber struct {
	send chan []byte
}

func NewEventHub(log zerolog.Logger) *EventHub {
	return &EventHub{log: log, subs: make(map[*subscriber]struct{})}
}

type envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// StateChanged emits session lifecycle updates.
func (h *EventHub) StateChanged(state domain.TurnState, reason domain.StateReason) {
	h.broadcast(eventState, map[string]string{
		"state":   string(state),
		"reason":  string(reason),
		"message": stateReasonMessage(reason),
	})
}

// PartialTranscript emits the live draft of the answer being spoken.
func (h *EventHub) PartialTranscript(text string) {
	h.broadcast(eventPartial, map[string]string{"text": text})
}

// TranscriptChanged emits the full conversation after every mutation.
func (h *EventHub) TranscriptChanged(messages []domain.TurnMessage) {
	h.broadcast(eventTranscript, map[string]any{"messages": messages})
}

// CountersChanged emits updated session counters.
func (h *EventHub) CountersChanged(counters domain.SessionCounters, status domain.InterviewStatus) {
	h.broadcast(eventCounters, map[string]any{
		"counters": counters,
		"status":   string(status),
	})
}

// SessionError emits backend errors to subscribers.
func (h *EventHub) SessionError(code domain.ErrorCode, detail string) {
	h.broadcast(eventError, map[string]string{
		"code":    string(code),
		"message": errorMessage(code, detail),
		"detail":  detail,
	})
}

func (h *EventHub) broadcast(kind string, payload any) {
	data, err := json.Marshal(envelope{Type: kind, Payload: payload})
	if err != nil {
		h.log.Error().Err(err).Str("event", kind).Msg("failed to encode event")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		select {
		case sub.send <- data:
		default:
			h.log.Warn().Str("event", kind).Msg("dropping event for slow subscriber")
		}
	}
}

// Serve pumps hub events to one websocket connection until the client goes
// away or the hub is closed.
func (h *EventHub) Serve(conn *websocket.Conn) {
	sub := &subscriber{send: make(chan []byte, 32)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.subs, sub)
		h.mu.Unlock()
		_ = conn.Close()
	}()

	// Drain client frames so close handshakes are noticed.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case data, ok := <-sub.send:
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-gone:
			return
		}
	}
}

// Close disconnects all subscribers. Events broadcast afterwards are dropped.
func (h *EventHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for sub := range h.subs {
		close(sub.send)
	}
	h.subs = make(map[*subscriber]struct{})
}

func stateReasonMessage(reason domain.StateReason) string {
	switch reason {
	case domain.ReasonSessionCreated:
		return "Session ready"
	case domain.ReasonListeningStarted:
		return "Listening"
	case domain.ReasonListeningRestarted:
		return "Listening; capture restarted"
	case domain.ReasonListeningStopped:
		return "Stopped listening"
	case domain.ReasonNothingToSubmit:
		return "Nothing captured"
	case domain.ReasonTurnSubmitted:
		return "Answer submitted. Evaluating..."
	case domain.ReasonTurnScored:
		return "Response scored"
	case domain.ReasonSubmissionFailed:
		return "Submission failed"
	case domain.ReasonSpeakingStarted:
		return "Interviewer is speaking"
	case domain.ReasonSpeakingFinished:
		return "Interviewer finished speaking"
	case domain.ReasonAudioMuted:
		return "Audio muted; playback stopped"
	case domain.ReasonRecognitionFailed:
		return "Speech recognition failed"
	case domain.ReasonInterviewEnded:
		return "Interview ended"
	default:
		return ""
	}
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodeRecognition:
		return "Speech recognition issue"
	case domain.ErrorCodeSynthesis:
		return "Speech playback issue"
	case domain.ErrorCodeSubmission:
		return "Could not submit your answer"
	case domain.ErrorCodeProfile:
		return "Resume profile issue"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}
