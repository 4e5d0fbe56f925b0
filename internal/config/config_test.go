package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func setProfile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "resume.json")
	if err := os.WriteFile(path, []byte(`{"skills":["go"]}`), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	t.Setenv("HOTSEAT_PROFILE_PATH", path)
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := setProfile(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Server.ListenAddr != ":8080" {
		t.Fatalf("unexpected listen addr: %q", cfg.Server.ListenAddr)
	}
	if cfg.Deepgram.APIBaseURL != "https://api.deepgram.com/v1" || cfg.Deepgram.Model != "nova-2" {
		t.Fatalf("unexpected deepgram defaults: %+v", cfg.Deepgram)
	}
	if cfg.Deepgram.Voice != "aura-asteria-en" || cfg.Deepgram.SpeakSampleRate != 24000 {
		t.Fatalf("unexpected voice defaults: %+v", cfg.Deepgram)
	}
	if cfg.Session.SilenceWindow != 2*time.Second {
		t.Fatalf("unexpected silence window: %s", cfg.Session.SilenceWindow)
	}
	if cfg.Session.ProfilePath != path {
		t.Fatalf("unexpected profile path: %q", cfg.Session.ProfilePath)
	}
	if cfg.Interview.Timeout != 30*time.Second || cfg.Interview.MaxRetries != 2 {
		t.Fatalf("unexpected interview defaults: %+v", cfg.Interview)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "json" {
		t.Fatalf("unexpected log defaults: %+v", cfg.Log)
	}
}

func TestLoadRespectsOverrides(t *testing.T) {
	setProfile(t)
	t.Setenv("HOTSEAT_LISTEN_ADDR", "127.0.0.1:9999")
	t.Setenv("DEEPGRAM_API_KEY", "test-key")
	t.Setenv("DEEPGRAM_API_BASE", "https://example.com/v1")
	t.Setenv("DEEPGRAM_MODEL", "nova-3")
	t.Setenv("DEEPGRAM_LANGUAGE", "en")
	t.Setenv("DEEPGRAM_SMART_FORMAT", "false")
	t.Setenv("DEEPGRAM_VOICE", "aura-orion-en")
	t.Setenv("HOTSEAT_FFMPEG_COMMAND", "my-ffmpeg")
	t.Setenv("HOTSEAT_FFPLAY_COMMAND", "my-ffplay")
	t.Setenv("HOTSEAT_AUDIO_INPUT_FORMAT", "alsa")
	t.Setenv("HOTSEAT_AUDIO_INPUT_DEVICE", "mic0")
	t.Setenv("HOTSEAT_SAMPLE_RATE", "22050")
	t.Setenv("HOTSEAT_CHANNELS", "2")
	t.Setenv("HOTSEAT_AUDIO_CHUNK_SIZE", "512")
	t.Setenv("HOTSEAT_PLAYBACK_VOLUME", "0.5")
	t.Setenv("HOTSEAT_INTERVIEW_API_BASE", "https://interviews.example.com")
	t.Setenv("HOTSEAT_INTERVIEW_API_KEY", "svc-key")
	t.Setenv("HOTSEAT_INTERVIEW_TIMEOUT_MS", "5000")
	t.Setenv("HOTSEAT_INTERVIEW_MAX_RETRIES", "4")
	t.Setenv("HOTSEAT_SILENCE_WINDOW_MS", "1500")
	t.Setenv("HOTSEAT_LOG_LEVEL", "debug")
	t.Setenv("HOTSEAT_LOG_FORMAT", "console")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Server.ListenAddr != "127.0.0.1:9999" {
		t.Fatalf("unexpected listen addr: %q", cfg.Server.ListenAddr)
	}
	if cfg.Deepgram.APIKey != "test-key" || cfg.Deepgram.Model != "nova-3" || cfg.Deepgram.SmartFormat {
		t.Fatalf("unexpected deepgram config: %+v", cfg.Deepgram)
	}
	if cfg.Deepgram.Voice != "aura-orion-en" {
		t.Fatalf("unexpected voice: %q", cfg.Deepgram.Voice)
	}
	if cfg.Audio.RecorderCommand != "my-ffmpeg" || cfg.Audio.PlayerCommand != "my-ffplay" {
		t.Fatalf("unexpected audio commands: %+v", cfg.Audio)
	}
	if cfg.Audio.SampleRate != 22050 || cfg.Audio.Channels != 2 || cfg.Audio.ChunkSize != 512 {
		t.Fatalf("unexpected audio numbers: %+v", cfg.Audio)
	}
	if cfg.Audio.Volume != 0.5 {
		t.Fatalf("unexpected volume: %f", cfg.Audio.Volume)
	}
	if cfg.Interview.BaseURL != "https://interviews.example.com" || cfg.Interview.APIKey != "svc-key" {
		t.Fatalf("unexpected interview config: %+v", cfg.Interview)
	}
	if cfg.Interview.Timeout != 5*time.Second || cfg.Interview.MaxRetries != 4 {
		t.Fatalf("unexpected interview timing: %+v", cfg.Interview)
	}
	if cfg.Session.SilenceWindow != 1500*time.Millisecond {
		t.Fatalf("unexpected silence window: %s", cfg.Session.SilenceWindow)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "console" {
		t.Fatalf("unexpected log config: %+v", cfg.Log)
	}
}

func TestLoadInvalidNumericValuesFallback(t *testing.T) {
	setProfile(t)
	t.Setenv("HOTSEAT_SAMPLE_RATE", "bad")
	t.Setenv("HOTSEAT_CHANNELS", "-1")
	t.Setenv("HOTSEAT_AUDIO_CHUNK_SIZE", "5")
	t.Setenv("HOTSEAT_SILENCE_WINDOW_MS", "-20")
	t.Setenv("HOTSEAT_PLAYBACK_VOLUME", "loud")
	t.Setenv("DEEPGRAM_SMART_FORMAT", "not-bool")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Audio.SampleRate != 16000 || cfg.Audio.Channels != 1 || cfg.Audio.ChunkSize != 3200 {
		t.Fatalf("expected audio fallbacks, got %+v", cfg.Audio)
	}
	if cfg.Audio.Volume != 1.0 {
		t.Fatalf("expected default volume, got %f", cfg.Audio.Volume)
	}
	if cfg.Session.SilenceWindow != 2*time.Second {
		t.Fatalf("expected default silence window, got %s", cfg.Session.SilenceWindow)
	}
	if !cfg.Deepgram.SmartFormat {
		t.Fatalf("expected default smart format true")
	}
}

func TestLoadRequiresProfilePath(t *testing.T) {
	t.Setenv("HOTSEAT_PROFILE_PATH", "")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "HOTSEAT_PROFILE_PATH") {
		t.Fatalf("expected profile path error, got %v", err)
	}
}
