// Package config resolves runtime configuration from environment variables.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config stores runtime configuration for the interview server.
type Config struct {
	Server    ServerConfig
	Deepgram  DeepgramConfig
	Audio     AudioConfig
	Interview InterviewConfig
	Session   SessionConfig
	Log       LogConfig
}

type ServerConfig struct {
	ListenAddr      string
	ShutdownTimeout time.Duration
}

type DeepgramConfig struct {
	APIKey      string
	APIBaseURL  string
	Model       string
	Language    string
	SmartFormat bool

	Voice           string
	SpeakSampleRate int
}

type AudioConfig struct {
	RecorderCommand string
	PlayerCommand   string
	InputFormat     string
	InputDevice     string
	SampleRate      int
	Channels        int
	ChunkSize       int
	Volume          float64
}

type InterviewConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
	RetryBase  time.Duration
}

type SessionConfig struct {
	SilenceWindow time.Duration
	ProfilePath   string
}

type LogConfig struct {
	Level  string
	Format string
}

// Load resolves configuration from environment variables and sensible defaults.
func Load() (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			ListenAddr:      envOrDefault("HOTSEAT_LISTEN_ADDR", ":8080"),
			ShutdownTimeout: time.Duration(envOrDefaultInt("HOTSEAT_SHUTDOWN_TIMEOUT_MS", 10000)) * time.Millisecond,
		},
		Deepgram: DeepgramConfig{
			APIKey:          strings.TrimSpace(os.Getenv("DEEPGRAM_API_KEY")),
			APIBaseURL:      envOrDefault("DEEPGRAM_API_BASE", "https://api.deepgram.com/v1"),
			Model:           envOrDefault("DEEPGRAM_MODEL", "nova-2"),
			Language:        strings.TrimSpace(os.Getenv("DEEPGRAM_LANGUAGE")),
			SmartFormat:     envOrDefaultBool("DEEPGRAM_SMART_FORMAT", true),
			Voice:           envOrDefault("DEEPGRAM_VOICE", "aura-asteria-en"),
			SpeakSampleRate: envOrDefaultInt("DEEPGRAM_SPEAK_SAMPLE_RATE", 24000),
		},
		Audio: AudioConfig{
			RecorderCommand: envOrDefault("HOTSEAT_FFMPEG_COMMAND", "ffmpeg"),
			PlayerCommand:   envOrDefault("HOTSEAT_FFPLAY_COMMAND", "ffplay"),
			InputFormat:     envOrDefault("HOTSEAT_AUDIO_INPUT_FORMAT", "pulse"),
			InputDevice:     envOrDefault("HOTSEAT_AUDIO_INPUT_DEVICE", "default"),
			SampleRate:      envOrDefaultInt("HOTSEAT_SAMPLE_RATE", 16000),
			Channels:        envOrDefaultInt("HOTSEAT_CHANNELS", 1),
			ChunkSize:       envOrDefaultInt("HOTSEAT_AUDIO_CHUNK_SIZE", 3200),
			Volume:          envOrDefaultFloat("HOTSEAT_PLAYBACK_VOLUME", 1.0),
		},
		Interview: InterviewConfig{
			BaseURL:    envOrDefault("HOTSEAT_INTERVIEW_API_BASE", "http://localhost:9090"),
			APIKey:     strings.TrimSpace(os.Getenv("HOTSEAT_INTERVIEW_API_KEY")),
			Timeout:    time.Duration(envOrDefaultInt("HOTSEAT_INTERVIEW_TIMEOUT_MS", 30000)) * time.Millisecond,
			MaxRetries: envOrDefaultInt("HOTSEAT_INTERVIEW_MAX_RETRIES", 2),
			RetryBase:  time.Duration(envOrDefaultInt("HOTSEAT_INTERVIEW_RETRY_BASE_MS", 250)) * time.Millisecond,
		},
		Session: SessionConfig{
			SilenceWindow: time.Duration(envOrDefaultInt("HOTSEAT_SILENCE_WINDOW_MS", 2000)) * time.Millisecond,
			ProfilePath:   strings.TrimSpace(os.Getenv("HOTSEAT_PROFILE_PATH")),
		},
		Log: LogConfig{
			Level:  envOrDefault("HOTSEAT_LOG_LEVEL", "info"),
			Format: envOrDefault("HOTSEAT_LOG_FORMAT", "json"),
		},
	}

	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = 1
	}
	if cfg.Audio.ChunkSize < 256 {
		cfg.Audio.ChunkSize = 3200
	}
	if cfg.Session.SilenceWindow <= 0 {
		cfg.Session.SilenceWindow = 2 * time.Second
	}
	if cfg.Interview.Timeout <= 0 {
		cfg.Interview.Timeout = 30 * time.Second
	}
	if cfg.Interview.MaxRetries < 0 {
		cfg.Interview.MaxRetries = 0
	}
	if cfg.Session.ProfilePath == "" {
		return Config{}, errors.New("HOTSEAT_PROFILE_PATH is not configured")
	}

	return cfg, nil
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultFloat(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultBool(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
