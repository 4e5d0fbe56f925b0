package audio

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"hotseat/internal/ports"
)

func TestFFMPEGCaptureStartReadAndStop(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "capture.sh", "#!/usr/bin/env bash\nprintf 'hello'\nsleep 2\n")
	capture := NewFFMPEGCapture(script)

	session, err := capture.Start(context.Background(), ports.AudioConfig{})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	buf := make([]byte, 8)
	n, readErr := session.Read(buf)
	if n <= 0 {
		t.Fatalf("expected audio bytes, got n=%d err=%v", n, readErr)
	}
	if !strings.Contains(string(buf[:n]), "hello") {
		t.Fatalf("unexpected bytes: %q", string(buf[:n]))
	}

	if err := session.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
}

func TestFFMPEGCaptureStartEarlyExit(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "fail.sh", "#!/usr/bin/env bash\necho 'boom' 1>&2\nexit 1\n")
	capture := NewFFMPEGCapture(script)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := capture.Start(ctx, ports.AudioConfig{})
	if err == nil {
		t.Fatalf("expected early exit error")
	}
	if !strings.Contains(err.Error(), "exited before startup") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestFFPlayPlaybackWritesAndDrains(t *testing.T) {
	t.Parallel()

	out := filepath.Join(t.TempDir(), "sink.pcm")
	script := writeScript(t, "play.sh", "#!/usr/bin/env bash\ncat > "+out+"\n")
	playback := NewFFPlayPlayback(script)

	session, err := playback.Start(context.Background(), ports.PlaybackConfig{Volume: 0.5})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if _, err := session.Write([]byte("pcm-bytes")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := session.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("sink not written: %v", err)
	}
	if string(data) != "pcm-bytes" {
		t.Fatalf("unexpected sink contents: %q", string(data))
	}
}

func TestFFPlayPlaybackStopKillsImmediately(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "hang.sh", "#!/usr/bin/env bash\ncat > /dev/null\nsleep 30\n")
	playback := NewFFPlayPlayback(script)

	session, err := playback.Start(context.Background(), ports.PlaybackConfig{})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- session.Stop() }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("stop failed: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("stop did not return promptly")
	}
}

func TestNormalizeStopErrExitErrorIsIgnored(t *testing.T) {
	t.Parallel()

	err := exec.Command("bash", "-lc", "exit 1").Run()
	if err == nil {
		t.Fatalf("expected command to fail")
	}
	if got := normalizeStopErr(err); got != nil {
		t.Fatalf("expected nil for exit error, got %v", got)
	}
}

func writeScript(t *testing.T, name string, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0o700); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}
	return path
}
