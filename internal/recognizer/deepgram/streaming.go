// Package deepgram streams microphone audio to the Deepgram listen API and
// emits transcript fragments.
package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"hotseat/internal/domain"
	"hotseat/internal/ports"
)

// Config controls Deepgram websocket settings.
type Config struct {
	APIKey      string
	APIBaseURL  string
	Model       string
	Language    string
	SmartFormat bool
}

// StreamConfig describes the PCM stream sent over the websocket.
type StreamConfig struct {
	Encoding       string
	SampleRate     int
	Channels       int
	InterimResults bool

	// ChunkSize is the microphone read size in bytes per websocket frame.
	ChunkSize int
}

// Recognizer implements ports.Recognizer. Each Start opens a fresh capture
// session and a fresh websocket; the two are torn down together.
type Recognizer struct {
	cfg     Config
	stream  StreamConfig
	capture ports.AudioCapture
	audio   ports.AudioConfig
	log     zerolog.Logger
}

func NewRecognizer(cfg Config, stream StreamConfig, capture ports.AudioCapture, audio ports.AudioConfig, log zerolog.Logger) *Recognizer {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "https://api.deepgram.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "nova-2"
	}
	if stream.ChunkSize <= 0 {
		stream.ChunkSize = 3200
	}
	return &Recognizer{cfg: cfg, stream: stream, capture: capture, audio: audio, log: log}
}

func (r *Recognizer) Start(ctx context.Context) (ports.RecognitionSession, error) {
	if strings.TrimSpace(r.cfg.APIKey) == "" {
		return nil, errors.New("DEEPGRAM_API_KEY is not configured")
	}

	wsURL, err := buildListenURL(r.cfg, r.stream)
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+r.cfg.APIKey)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Deepgram websocket: %w", err)
	}

	mic, err := r.capture.Start(ctx, r.audio)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to start capture: %w", err)
	}

	session := &recognitionSession{
		conn:      conn,
		mic:       mic,
		chunkSize: r.stream.ChunkSize,
		events:    make(chan domain.RecognizerEvent, 64),
		done:      make(chan struct{}),
		log:       r.log,
	}

	session.wg.Add(2)
	go session.readLoop()
	go session.pumpLoop()
	go func() {
		session.wg.Wait()
		if !session.stopped.Load() {
			if err := session.waitErr(); err != nil {
				session.events <- domain.RecognizerEvent{Kind: domain.RecognizerEventError, Err: err.Error()}
			}
			session.events <- domain.RecognizerEvent{Kind: domain.RecognizerEventEnded}
		}
		close(session.events)
		close(session.done)
		_ = conn.Close()
		_ = mic.Stop()
	}()

	go func() {
		<-ctx.Done()
		_ = session.Stop()
	}()

	r.log.Debug().Str("model", r.cfg.Model).Msg("recognition session started")
	return session, nil
}

type recognitionSession struct {
	conn *websocket.Conn
	mic  ports.AudioSession

	chunkSize int
	events    chan domain.RecognizerEvent
	done      chan struct{}

	wg      sync.WaitGroup
	stopped atomic.Bool

	errMu sync.Mutex
	err   error

	stopOnce sync.Once

	log zerolog.Logger
}

func (s *recognitionSession) Events() <-chan domain.RecognizerEvent {
	return s.events
}

// Stop tears the session down without emitting terminal events; callers that
// stop a session have already detached from it.
func (s *recognitionSession) Stop() error {
	s.stopOnce.Do(func() {
		s.stopped.Store(true)
		_ = s.mic.Stop()
		_ = s.conn.Close()
	})
	<-s.done
	return s.waitErr()
}

func (s *recognitionSession) waitErr() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *recognitionSession) setErr(err error) {
	if err == nil {
		return
	}
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) {
		return
	}

	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

// pumpLoop is the sole websocket writer.
func (s *recognitionSession) pumpLoop() {
	defer s.wg.Done()

	buf := make([]byte, s.chunkSize)
	for {
		n, err := s.mic.Read(buf)
		if n > 0 {
			if werr := s.conn.WriteMessage(websocket.BinaryMessage, buf[:n]); werr != nil {
				if !s.stopped.Load() {
					s.setErr(fmt.Errorf("failed to send audio: %w", werr))
				}
				return
			}
		}
		if err != nil {
			if !s.stopped.Load() && !errors.Is(err, io.EOF) {
				s.setErr(fmt.Errorf("capture read: %w", err))
			}
			_ = s.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`))
			return
		}
	}
}

func (s *recognitionSession) readLoop() {
	defer s.wg.Done()
	// Unblocks the pump when the websocket dies first.
	defer func() { _ = s.mic.Stop() }()

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			if !s.stopped.Load() {
				s.setErr(err)
			}
			return
		}

		var response deepgramResponse
		if err := json.Unmarshal(payload, &response); err != nil {
			continue
		}

		if strings.EqualFold(response.Type, "Error") {
			message := strings.TrimSpace(response.Message)
			if message == "" {
				message = "deepgram returned an unknown error"
			}
			s.setErr(errors.New(message))
			return
		}

		transcript := extractTranscript(response)
		if transcript == "" {
			continue
		}

		s.emit(domain.RecognizerEvent{
			Kind:  domain.RecognizerEventFragment,
			Text:  transcript,
			Final: response.IsFinal || response.SpeechFinal,
		})
	}
}

// emit drops fragments when the consumer lags; terminal events are delivered
// unconditionally after both loops exit.
func (s *recognitionSession) emit(event domain.RecognizerEvent) {
	select {
	case s.events <- event:
	default:
		s.log.Warn().Msg("dropping transcript fragment, consumer is behind")
	}
}

type deepgramResponse struct {
	Type        string `json:"type"`
	Message     string `json:"message"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`

	Channel struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`

	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string `json:"transcript"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

func extractTranscript(response deepgramResponse) string {
	if len(response.Channel.Alternatives) > 0 {
		if text := strings.TrimSpace(response.Channel.Alternatives[0].Transcript); text != "" {
			return text
		}
	}
	if len(response.Results.Channels) > 0 && len(response.Results.Channels[0].Alternatives) > 0 {
		return strings.TrimSpace(response.Results.Channels[0].Alternatives[0].Transcript)
	}
	return ""
}

func buildListenURL(cfg Config, stream StreamConfig) (string, error) {
	base := cfg.APIBaseURL
	if base == "" {
		base = "https://api.deepgram.com/v1"
	}
	base = strings.TrimSpace(base)

	if strings.HasPrefix(base, "https://") {
		base = "wss://" + strings.TrimPrefix(base, "https://")
	} else if strings.HasPrefix(base, "http://") {
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	base = strings.TrimRight(base, "/")

	listenURL, err := url.Parse(base + "/listen")
	if err != nil {
		return "", fmt.Errorf("invalid Deepgram API base URL: %w", err)
	}

	if stream.Encoding == "" {
		stream.Encoding = "linear16"
	}
	if stream.SampleRate <= 0 {
		stream.SampleRate = 16000
	}
	if stream.Channels <= 0 {
		stream.Channels = 1
	}

	query := listenURL.Query()
	query.Set("model", cfg.Model)
	query.Set("encoding", stream.Encoding)
	query.Set("sample_rate", fmt.Sprintf("%d", stream.SampleRate))
	query.Set("channels", fmt.Sprintf("%d", stream.Channels))
	query.Set("interim_results", fmt.Sprintf("%t", stream.InterimResults))
	query.Set("smart_format", fmt.Sprintf("%t", cfg.SmartFormat))
	if cfg.Language != "" {
		query.Set("language", cfg.Language)
	}
	listenURL.RawQuery = query.Encode()
	return listenURL.String(), nil
}
