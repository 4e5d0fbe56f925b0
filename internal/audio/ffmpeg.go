// Package audio shells out to ffmpeg/ffplay for microphone capture and
// speaker playback.
package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"hotseat/internal/ports"
)

const startupGrace = 250 * time.Millisecond

// FFMPEGCapture streams microphone PCM audio using ffmpeg.
type FFMPEGCapture struct {
	command string
}

func NewFFMPEGCapture(command string) *FFMPEGCapture {
	if command == "" {
		command = "ffmpeg"
	}
	return &FFMPEGCapture{command: command}
}

func (c *FFMPEGCapture) Start(ctx context.Context, cfg ports.AudioConfig) (ports.AudioSession, error) {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.InputFormat == "" {
		cfg.InputFormat = "pulse"
	}
	if cfg.InputDevice == "" {
		cfg.InputDevice = "default"
	}

	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", cfg.InputFormat,
		"-i", cfg.InputDevice,
		"-ac", strconv.Itoa(cfg.Channels),
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-f", "s16le",
		"-",
	}

	proc, err := startProcess(ctx, c.command, args, false)
	if err != nil {
		return nil, fmt.Errorf("failed to start capture: %w", err)
	}
	return &captureSession{proc: proc}, nil
}

type captureSession struct {
	proc *process
}

func (s *captureSession) Read(p []byte) (int, error) { return s.proc.stdout.Read(p) }
func (s *captureSession) Close() error               { return s.proc.stop() }
func (s *captureSession) Stop() error                { return s.proc.stop() }

// FFPlayPlayback plays PCM audio through ffplay.
type FFPlayPlayback struct {
	command string
}

func NewFFPlayPlayback(command string) *FFPlayPlayback {
	if command == "" {
		command = "ffplay"
	}
	return &FFPlayPlayback{command: command}
}

func (p *FFPlayPlayback) Start(ctx context.Context, cfg ports.PlaybackConfig) (ports.PlaybackSession, error) {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 48000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	volume := 100
	if cfg.Volume > 0 && cfg.Volume <= 1 {
		volume = int(cfg.Volume * 100)
	}

	args := []string{
		"-hide_banner",
		"-loglevel", "warning",
		"-autoexit",
		"-nodisp",
		"-volume", strconv.Itoa(volume),
		"-f", "s16le",
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-ac", strconv.Itoa(cfg.Channels),
		"-i", "-",
	}

	proc, err := startProcess(ctx, p.command, args, true)
	if err != nil {
		return nil, fmt.Errorf("failed to start playback: %w", err)
	}
	return &playbackSession{proc: proc}, nil
}

type playbackSession struct {
	proc *process
}

func (s *playbackSession) Write(p []byte) (int, error) { return s.proc.stdin.Write(p) }

// Close signals end of input and waits for the player to drain.
func (s *playbackSession) Close() error {
	_ = s.proc.stdin.Close()
	return s.proc.waitDrained(10 * time.Second)
}

// Stop kills playback immediately without draining.
func (s *playbackSession) Stop() error { return s.proc.stop() }

// process wraps a piped child process shared by both audio directions.
type process struct {
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr *bytes.Buffer

	handle  *os.Process
	waitErr <-chan error

	stopOnce sync.Once
	stopErr  error
}

func startProcess(ctx context.Context, command string, args []string, withStdin bool) (*process, error) {
	cmd := exec.CommandContext(ctx, command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	proc := &process{stderr: &stderr}

	var err error
	if withStdin {
		proc.stdin, err = cmd.StdinPipe()
		if err != nil {
			return nil, fmt.Errorf("stdin pipe: %w", err)
		}
	}
	proc.stdout, err = cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, err
	}
	proc.handle = cmd.Process

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()
	proc.waitErr = waitErr

	// Give the process a moment to fail fast on bad devices/arguments.
	select {
	case err := <-waitErr:
		if err != nil {
			return nil, fmt.Errorf("%s exited before startup: %w: %s", command, err, trimmed(stderr.String()))
		}
		return nil, fmt.Errorf("%s exited before startup", command)
	case <-time.After(startupGrace):
	}

	return proc, nil
}

func (p *process) waitDrained(timeout time.Duration) error {
	select {
	case err, ok := <-p.waitErr:
		if ok {
			return normalizeStopErr(err)
		}
		return nil
	case <-time.After(timeout):
		return p.stop()
	}
}

func (p *process) stop() error {
	p.stopOnce.Do(func() {
		if p.handle != nil {
			_ = p.handle.Signal(os.Interrupt)
		}

		select {
		case err, ok := <-p.waitErr:
			if ok {
				p.stopErr = normalizeStopErr(err)
			}
		case <-time.After(1200 * time.Millisecond):
			if p.handle != nil {
				_ = p.handle.Kill()
			}
			err, ok := <-p.waitErr
			if ok {
				p.stopErr = normalizeStopErr(err)
			}
		}

		if closeErr := p.stdout.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
			if p.stopErr == nil {
				p.stopErr = closeErr
			}
		}

		if p.stopErr != nil && p.stderr != nil && p.stderr.Len() > 0 {
			p.stopErr = fmt.Errorf("%w: %s", p.stopErr, trimmed(p.stderr.String()))
		}
	})

	return p.stopErr
}

func normalizeStopErr(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}

func trimmed(input string) string {
	if input == "" {
		return input
	}
	return string(bytes.TrimSpace([]byte(input)))
}
