// Package deepgram renders interviewer speech through the Deepgram speak API
// and plays it on the host output.
package deepgram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"hotseat/internal/ports"
)

// ErrCancelled is delivered on Done when playback was cut short by Cancel.
var ErrCancelled = errors.New("synthesis cancelled")

// Config controls the Deepgram speak endpoint.
type Config struct {
	APIKey     string
	APIBaseURL string
	Voice      string
	SampleRate int
}

// Synthesizer implements ports.Synthesizer. Audio is streamed straight from
// the HTTP response into a playback session, so speech starts before the
// full utterance has downloaded.
type Synthesizer struct {
	cfg      Config
	playback ports.AudioPlayback
	client   *http.Client
	log      zerolog.Logger
}

func NewSynthesizer(cfg Config, playback ports.AudioPlayback, log zerolog.Logger) *Synthesizer {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "https://api.deepgram.com/v1"
	}
	if cfg.Voice == "" {
		cfg.Voice = "aura-asteria-en"
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 24000
	}
	return &Synthesizer{cfg: cfg, playback: playback, client: &http.Client{}, log: log}
}

// Speak starts one utterance. Rate and Pitch are not supported by the speak
// API and are ignored; Volume is applied at the playback layer.
func (s *Synthesizer) Speak(ctx context.Context, req ports.SpeakRequest) (ports.Utterance, error) {
	if strings.TrimSpace(s.cfg.APIKey) == "" {
		return nil, errors.New("DEEPGRAM_API_KEY is not configured")
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, errors.New("nothing to speak")
	}

	speakURL, err := buildSpeakURL(s.cfg)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, fmt.Errorf("failed to encode speak request: %w", err)
	}

	reqCtx, abort := context.WithCancel(ctx)
	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodPost, speakURL, bytes.NewReader(payload))
	if err != nil {
		abort()
		return nil, fmt.Errorf("failed to build speak request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Token "+s.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		abort()
		return nil, fmt.Errorf("speak request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		_ = resp.Body.Close()
		abort()
		return nil, fmt.Errorf("speak request rejected with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	player, err := s.playback.Start(reqCtx, ports.PlaybackConfig{
		SampleRate: s.cfg.SampleRate,
		Channels:   1,
		Volume:     req.Volume,
	})
	if err != nil {
		_ = resp.Body.Close()
		abort()
		return nil, fmt.Errorf("failed to start playback: %w", err)
	}

	u := &utterance{
		body:   resp.Body,
		player: player,
		abort:  abort,
		done:   make(chan error, 1),
	}
	go u.run()

	s.log.Debug().Int("chars", len(text)).Str("voice", s.cfg.Voice).Msg("synthesis started")
	return u, nil
}

type utterance struct {
	body   io.ReadCloser
	player ports.PlaybackSession
	abort  context.CancelFunc

	done       chan error
	cancelled  atomic.Bool
	cancelOnce sync.Once
}

func (u *utterance) Done() <-chan error {
	return u.done
}

// Cancel aborts the download and kills playback without draining.
func (u *utterance) Cancel() {
	u.cancelOnce.Do(func() {
		u.cancelled.Store(true)
		u.abort()
		_ = u.player.Stop()
	})
}

func (u *utterance) run() {
	_, copyErr := io.Copy(u.player, u.body)
	_ = u.body.Close()

	var result error
	if copyErr != nil {
		_ = u.player.Stop()
		result = fmt.Errorf("playback interrupted: %w", copyErr)
	} else {
		result = u.player.Close()
	}

	if u.cancelled.Load() {
		result = ErrCancelled
	}
	u.abort()
	u.done <- result
}

func buildSpeakURL(cfg Config) (string, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")
	speakURL, err := url.Parse(base + "/speak")
	if err != nil {
		return "", fmt.Errorf("invalid Deepgram API base URL: %w", err)
	}

	query := speakURL.Query()
	query.Set("model", cfg.Voice)
	query.Set("encoding", "linear16")
	query.Set("container", "none")
	query.Set("sample_rate", strconv.Itoa(cfg.SampleRate))
	speakURL.RawQuery = query.Encode()
	return speakURL.String(), nil
}
