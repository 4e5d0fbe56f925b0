package ports

import (
	"context"
	"io"

	"hotseat/internal/domain"
)

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// AudioSession is a live capture session.
type AudioSession interface {
	io.ReadCloser
	Stop() error
}

// AudioCapture creates microphone capture sessions.
type AudioCapture interface {
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// PlaybackConfig describes how synthesized audio should be played.
type PlaybackConfig struct {
	SampleRate int
	Channels   int
	Volume     float64
}

// PlaybackSession consumes PCM bytes and plays them on the host output.
type PlaybackSession interface {
	io.WriteCloser
	Stop() error
}

// AudioPlayback creates speaker playback sessions.
type AudioPlayback interface {
	Start(ctx context.Context, cfg PlaybackConfig) (PlaybackSession, error)
}

// RecognitionSession is one continuous speech-to-text capture. Events are
// delivered in recognizer-emission order and the channel is closed after an
// ended or error event.
type RecognitionSession interface {
	Events() <-chan domain.RecognizerEvent
	Stop() error
}

// Recognizer starts continuous recognition sessions.
type Recognizer interface {
	Start(ctx context.Context) (RecognitionSession, error)
}

// SpeakRequest carries one utterance for the synthesizer. Rate and Pitch are
// hints; adapters that cannot honor them play at their native prosody.
type SpeakRequest struct {
	Text   string
	Rate   float64
	Pitch  float64
	Volume float64
}

// Utterance is one in-flight synthesis. Done yields exactly one value: nil
// on natural completion, an error otherwise. Cancel stops playback
// immediately and is safe to call more than once.
type Utterance interface {
	Done() <-chan error
	Cancel()
}

// Synthesizer renders speech output.
type Synthesizer interface {
	Speak(ctx context.Context, req SpeakRequest) (Utterance, error)
}

// EvaluationRequest is one exchange with the interview service. History
// excludes any pending placeholder.
type EvaluationRequest struct {
	SessionID     string
	Profile       domain.Profile
	CandidateText string
	History       []domain.TurnMessage
}

// EvaluationResult is the scored reply for one submitted turn.
type EvaluationResult struct {
	Message        string
	Feedback       string
	Score          float64
	Status         domain.InterviewStatus
	LowScoreStreak int
}

// InterviewService scores a submitted turn and returns the next prompt.
type InterviewService interface {
	Evaluate(ctx context.Context, req EvaluationRequest) (EvaluationResult, error)
}

// ProfileStore loads the candidate's resume record at session start.
type ProfileStore interface {
	Load(ctx context.Context) (domain.Profile, error)
}

// EventSink emits backend state/events to the UI.
type EventSink interface {
	StateChanged(state domain.TurnState, reason domain.StateReason)
	PartialTranscript(text string)
	TranscriptChanged(messages []domain.TurnMessage)
	CountersChanged(counters domain.SessionCounters, status domain.InterviewStatus)
	SessionError(code domain.ErrorCode, detail string)
}
