// Package bootstrap wires the runtime dependency graph.
package bootstrap

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"hotseat/internal/audio"
	"hotseat/internal/config"
	"hotseat/internal/domain"
	"hotseat/internal/httpserver"
	"hotseat/internal/interview"
	"hotseat/internal/observability/metrics"
	"hotseat/internal/ports"
	"hotseat/internal/profile"
	stt "hotseat/internal/recognizer/deepgram"
	tts "hotseat/internal/synth/deepgram"
	"hotseat/internal/usecase"
)

// OpeningQuestion is the interviewer's first prompt in every session.
const OpeningQuestion = "Thanks for joining. To get us started, tell me a bit about yourself and what you have been working on recently."

// Services is the assembled runtime graph.
type Services struct {
	Server *httpserver.Server
	Config config.Config
}

// Build wires all backend dependencies for the current runtime.
func Build(cfg config.Config, log zerolog.Logger) (Services, error) {
	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector())
	m := metrics.New(promReg)

	audioCfg := ports.AudioConfig{
		SampleRate:  cfg.Audio.SampleRate,
		Channels:    cfg.Audio.Channels,
		InputFormat: cfg.Audio.InputFormat,
		InputDevice: cfg.Audio.InputDevice,
	}

	recognizer := stt.NewRecognizer(
		stt.Config{
			APIKey:      cfg.Deepgram.APIKey,
			APIBaseURL:  cfg.Deepgram.APIBaseURL,
			Model:       cfg.Deepgram.Model,
			Language:    cfg.Deepgram.Language,
			SmartFormat: cfg.Deepgram.SmartFormat,
		},
		stt.StreamConfig{
			Encoding:       "linear16",
			SampleRate:     cfg.Audio.SampleRate,
			Channels:       cfg.Audio.Channels,
			InterimResults: true,
			ChunkSize:      cfg.Audio.ChunkSize,
		},
		audio.NewFFMPEGCapture(cfg.Audio.RecorderCommand),
		audioCfg,
		log.With().Str("component", "recognizer").Logger(),
	)

	synth := tts.NewSynthesizer(
		tts.Config{
			APIKey:     cfg.Deepgram.APIKey,
			APIBaseURL: cfg.Deepgram.APIBaseURL,
			Voice:      cfg.Deepgram.Voice,
			SampleRate: cfg.Deepgram.SpeakSampleRate,
		},
		audio.NewFFPlayPlayback(cfg.Audio.PlayerCommand),
		log.With().Str("component", "synth").Logger(),
	)

	client := interview.NewClient(interview.Config{
		BaseURL:    cfg.Interview.BaseURL,
		APIKey:     cfg.Interview.APIKey,
		Timeout:    cfg.Interview.Timeout,
		MaxRetries: uint64(cfg.Interview.MaxRetries),
		RetryBase:  cfg.Interview.RetryBase,
	}, log.With().Str("component", "interview").Logger())

	factory := func(id string, prof domain.Profile, sink ports.EventSink) (*usecase.TurnController, error) {
		return usecase.NewTurnController(
			recognizer,
			synth,
			client,
			sink,
			m,
			log.With().Str("sessionId", id).Logger(),
			usecase.Config{
				SilenceWindow: cfg.Session.SilenceWindow,
				SpeakVolume:   cfg.Audio.Volume,
			},
			usecase.Seed{
				SessionID:      id,
				Profile:        prof,
				InitialMessage: OpeningQuestion,
				InitialStatus:  domain.StatusInProgress,
			},
		)
	}

	var metricsHandler http.Handler = promhttp.HandlerFor(promReg, promhttp.HandlerOpts{Registry: promReg})
	server := httpserver.NewServer(
		factory,
		profile.NewFileStore(cfg.Session.ProfilePath),
		m,
		metricsHandler,
		log.With().Str("component", "http").Logger(),
	)

	return Services{Server: server, Config: cfg}, nil
}
