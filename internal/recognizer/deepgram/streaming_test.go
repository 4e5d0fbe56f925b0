package deepgram

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"hotseat/internal/domain"
	"hotseat/internal/ports"
)

func TestNewRecognizerDefaults(t *testing.T) {
	t.Parallel()

	r := NewRecognizer(Config{}, StreamConfig{}, nil, ports.AudioConfig{}, zerolog.Nop())
	if r.cfg.APIBaseURL != "https://api.deepgram.com/v1" {
		t.Fatalf("unexpected base url: %q", r.cfg.APIBaseURL)
	}
	if r.cfg.Model != "nova-2" {
		t.Fatalf("unexpected model: %q", r.cfg.Model)
	}
	if r.stream.ChunkSize != 3200 {
		t.Fatalf("unexpected chunk size: %d", r.stream.ChunkSize)
	}
}

func TestStartRequiresAPIKey(t *testing.T) {
	t.Parallel()

	r := NewRecognizer(Config{APIKey: "  "}, StreamConfig{}, nil, ports.AudioConfig{}, zerolog.Nop())
	_, err := r.Start(context.Background())
	if err == nil {
		t.Fatalf("expected missing key error")
	}
}

func TestBuildListenURLDefaults(t *testing.T) {
	t.Parallel()

	url, err := buildListenURL(Config{APIBaseURL: "https://api.deepgram.com/v1", Model: "nova-2"}, StreamConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(url, "wss://api.deepgram.com/v1/listen") {
		t.Fatalf("unexpected ws url: %s", url)
	}
	if !strings.Contains(url, "encoding=linear16") {
		t.Fatalf("expected default encoding in url: %s", url)
	}
	if !strings.Contains(url, "sample_rate=16000") {
		t.Fatalf("expected default sample_rate in url: %s", url)
	}
	if !strings.Contains(url, "channels=1") {
		t.Fatalf("expected default channels in url: %s", url)
	}
}

func TestBuildListenURLWithLanguageAndSmartFormat(t *testing.T) {
	t.Parallel()

	url, err := buildListenURL(
		Config{APIBaseURL: "http://localhost:8080/v1", Model: "m", Language: "en-US", SmartFormat: true},
		StreamConfig{Encoding: "linear16", SampleRate: 8000, Channels: 2, InterimResults: true},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(url, "ws://localhost:8080/v1/listen") {
		t.Fatalf("unexpected ws url: %s", url)
	}
	if !strings.Contains(url, "language=en-US") {
		t.Fatalf("expected language in url: %s", url)
	}
	if !strings.Contains(url, "smart_format=true") {
		t.Fatalf("expected smart_format in url: %s", url)
	}
	if !strings.Contains(url, "interim_results=true") {
		t.Fatalf("expected interim_results in url: %s", url)
	}
}

func TestBuildListenURLInvalidBase(t *testing.T) {
	t.Parallel()

	_, err := buildListenURL(Config{APIBaseURL: ":// bad"}, StreamConfig{})
	if err == nil {
		t.Fatalf("expected invalid base url error")
	}
}

func TestExtractTranscript(t *testing.T) {
	t.Parallel()

	r1 := deepgramResponse{}
	r1.Channel.Alternatives = append(r1.Channel.Alternatives, struct {
		Transcript string "json:\"transcript\""
	}{Transcript: " channel "})
	if got := extractTranscript(r1); got != "channel" {
		t.Fatalf("unexpected transcript from channel: %q", got)
	}

	r2 := deepgramResponse{}
	r2.Results.Channels = append(r2.Results.Channels, struct {
		Alternatives []struct {
			Transcript string "json:\"transcript\""
		} "json:\"alternatives\""
	}{
		Alternatives: []struct {
			Transcript string "json:\"transcript\""
		}{{Transcript: "results"}},
	})
	if got := extractTranscript(r2); got != "results" {
		t.Fatalf("unexpected transcript from results: %q", got)
	}

	if got := extractTranscript(deepgramResponse{}); got != "" {
		t.Fatalf("expected empty transcript, got %q", got)
	}
}

func TestSetErrIgnoresCloseErrors(t *testing.T) {
	t.Parallel()

	s := &recognitionSession{}
	s.setErr(&websocket.CloseError{Code: websocket.CloseNormalClosure, Text: "closed"})
	if s.waitErr() != nil {
		t.Fatalf("expected close error to be ignored")
	}

	s.setErr(errors.New("boom"))
	if s.waitErr() == nil || s.waitErr().Error() != "boom" {
		t.Fatalf("expected non-close error to be captured")
	}
}

func TestSetErrFirstWins(t *testing.T) {
	t.Parallel()

	s := &recognitionSession{}
	s.setErr(errors.New("first"))
	s.setErr(errors.New("second"))
	if s.waitErr() == nil || s.waitErr().Error() != "first" {
		t.Fatalf("expected first error to win")
	}
}

type fakeMic struct {
	session *fakeMicSession
}

func (f *fakeMic) Start(ctx context.Context, cfg ports.AudioConfig) (ports.AudioSession, error) {
	return f.session, nil
}

type fakeMicSession struct {
	mu      sync.Mutex
	data    []byte
	stopped chan struct{}
	once    sync.Once
}

func newFakeMicSession(data []byte) *fakeMicSession {
	return &fakeMicSession{data: data, stopped: make(chan struct{})}
}

func (s *fakeMicSession) Read(p []byte) (int, error) {
	s.mu.Lock()
	if len(s.data) > 0 {
		n := copy(p, s.data)
		s.data = s.data[n:]
		s.mu.Unlock()
		return n, nil
	}
	s.mu.Unlock()

	<-s.stopped
	return 0, io.EOF
}

func (s *fakeMicSession) Stop() error {
	s.once.Do(func() { close(s.stopped) })
	return nil
}

func (s *fakeMicSession) Close() error { return s.Stop() }

func TestSessionEmitsFragmentsAndEnded(t *testing.T) {
	t.Parallel()

	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Token test-key" {
			t.Errorf("missing token header, got %q", got)
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		// Wait for the first audio frame before answering.
		if _, _, err := conn.ReadMessage(); err != nil {
			t.Errorf("expected audio frame: %v", err)
			return
		}

		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"channel":{"alternatives":[{"transcript":"hel"}]},"is_final":false}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"channel":{"alternatives":[{"transcript":"hello"}]},"is_final":true}`))
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"))
	}))
	defer server.Close()

	mic := &fakeMic{session: newFakeMicSession([]byte("pcm0"))}
	recognizer := NewRecognizer(
		Config{APIKey: "test-key", APIBaseURL: server.URL},
		StreamConfig{InterimResults: true},
		mic,
		ports.AudioConfig{},
		zerolog.Nop(),
	)

	session, err := recognizer.Start(context.Background())
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer session.Stop()

	var got []domain.RecognizerEvent
	timeout := time.After(5 * time.Second)
	for {
		select {
		case event, ok := <-session.Events():
			if !ok {
				if len(got) != 3 {
					t.Fatalf("unexpected events: %+v", got)
				}
				if got[0].Kind != domain.RecognizerEventFragment || got[0].Text != "hel" || got[0].Final {
					t.Fatalf("unexpected interim event: %+v", got[0])
				}
				if got[1].Kind != domain.RecognizerEventFragment || got[1].Text != "hello" || !got[1].Final {
					t.Fatalf("unexpected final event: %+v", got[1])
				}
				if got[2].Kind != domain.RecognizerEventEnded {
					t.Fatalf("expected ended event, got %+v", got[2])
				}
				return
			}
			got = append(got, event)
		case <-timeout:
			t.Fatalf("timed out waiting for events, got %+v", got)
		}
	}
}

func TestSessionSurfacesProviderError(t *testing.T) {
	t.Parallel()

	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"Error","message":"bad model"}`))
	}))
	defer server.Close()

	mic := &fakeMic{session: newFakeMicSession([]byte("pcm0"))}
	recognizer := NewRecognizer(
		Config{APIKey: "test-key", APIBaseURL: server.URL},
		StreamConfig{},
		mic,
		ports.AudioConfig{},
		zerolog.Nop(),
	)

	session, err := recognizer.Start(context.Background())
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer session.Stop()

	var got []domain.RecognizerEvent
	timeout := time.After(5 * time.Second)
	for {
		select {
		case event, ok := <-session.Events():
			if !ok {
				if len(got) != 2 {
					t.Fatalf("unexpected events: %+v", got)
				}
				if got[0].Kind != domain.RecognizerEventError || !strings.Contains(got[0].Err, "bad model") {
					t.Fatalf("unexpected error event: %+v", got[0])
				}
				if got[1].Kind != domain.RecognizerEventEnded {
					t.Fatalf("expected ended event, got %+v", got[1])
				}
				return
			}
			got = append(got, event)
		case <-timeout:
			t.Fatalf("timed out waiting for events, got %+v", got)
		}
	}
}

func TestSessionStopSuppressesTerminalEvents(t *testing.T) {
	t.Parallel()

	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	mic := &fakeMic{session: newFakeMicSession([]byte("pcm0"))}
	recognizer := NewRecognizer(
		Config{APIKey: "test-key", APIBaseURL: server.URL},
		StreamConfig{},
		mic,
		ports.AudioConfig{},
		zerolog.Nop(),
	)

	session, err := recognizer.Start(context.Background())
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := session.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}

	for event := range session.Events() {
		if event.Kind == domain.RecognizerEventEnded || event.Kind == domain.RecognizerEventError {
			t.Fatalf("terminal event after manual stop: %+v", event)
		}
	}
}
