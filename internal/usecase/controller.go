package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"hotseat/internal/domain"
	"hotseat/internal/observability/metrics"
	"hotseat/internal/ports"
)

var (
	ErrInterviewCompleted  = errors.New("interview is already completed")
	ErrSpeaking            = errors.New("cannot listen while audio output is active")
	ErrNotListening        = errors.New("voice input is not active")
	ErrSubmissionInFlight  = errors.New("a submission is already in flight")
	ErrEmptySubmission     = errors.New("nothing to submit")
	ErrControllerClosed    = errors.New("turn controller is closed")
	errUnknownInitialState = errors.New("invalid initial interview status")
)

// Config controls turn behavior for a session.
type Config struct {
	SilenceWindow  time.Duration
	SpeakRate      float64
	SpeakPitch     float64
	SpeakVolume    float64
	ClosingMessage string
}

// DefaultClosingMessage is appended when the candidate ends the interview
// explicitly.
const DefaultClosingMessage = "Thank you for your time. This concludes the interview; your results are ready above."

// Seed carries caller-supplied session bootstrap data.
type Seed struct {
	SessionID      string
	Profile        domain.Profile
	InitialMessage string
	InitialStatus  domain.InterviewStatus
}

// TurnController converts the recognizer's event stream into discrete,
// auto-submitted conversational turns and coordinates the speaking channel
// so the system never listens while it talks.
//
// All state is owned by a single event loop: recognizer fragments, endpoint
// timer fires, synthesis completions, submission results and user commands
// are delivered to it serially, so handlers never run concurrently with each
// other.
type TurnController struct {
	recognizer ports.Recognizer
	synth      ports.Synthesizer
	service    ports.InterviewService
	events     ports.EventSink
	metrics    *metrics.Metrics
	log        zerolog.Logger
	cfg        Config

	ctx    context.Context
	cancel context.CancelFunc

	commands chan command
	inbox    chan any
	done     chan struct{}

	// Everything below is loop-owned.
	sessionID string
	profile   domain.Profile

	state        domain.TurnState
	status       domain.InterviewStatus
	counters     domain.SessionCounters
	audioEnabled bool
	speaking     bool

	pending    *PendingResponse
	endpointer *Endpointer
	transcript *Transcript

	recSession   ports.RecognitionSession
	manualStop   bool
	isSubmitting bool

	synthGen            uint64
	utterance           ports.Utterance
	completeAfterSpeech bool
}

type command struct {
	fn    func() error
	reply chan error
}

type fragmentEvent struct {
	from  ports.RecognitionSession
	text  string
	final bool
}

type recognizerErrorEvent struct {
	from   ports.RecognitionSession
	detail string
}

type recognizerEndedEvent struct {
	from ports.RecognitionSession
}

type endOfTurnEvent struct {
	text string
}

type synthesisDoneEvent struct {
	gen uint64
	err error
}

type submissionDoneEvent struct {
	result  ports.EvaluationResult
	err     error
	elapsed time.Duration
}

// NewTurnController builds a controller for one interview session and starts
// its event loop. Close releases it.
func NewTurnController(
	recognizer ports.Recognizer,
	synth ports.Synthesizer,
	service ports.InterviewService,
	events ports.EventSink,
	m *metrics.Metrics,
	log zerolog.Logger,
	cfg Config,
	seed Seed,
) (*TurnController, error) {
	status := seed.InitialStatus
	if status == "" {
		status = domain.StatusInProgress
	}
	if !status.Valid() {
		return nil, errUnknownInitialState
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &TurnController{
		recognizer:   recognizer,
		synth:        synth,
		service:      service,
		events:       events,
		metrics:      m,
		log:          log,
		cfg:          cfg,
		ctx:          ctx,
		cancel:       cancel,
		commands:     make(chan command),
		inbox:        make(chan any, 64),
		done:         make(chan struct{}),
		sessionID:    seed.SessionID,
		profile:      seed.Profile,
		state:        domain.TurnStateIdle,
		status:       status,
		audioEnabled: true,
		pending:      NewPendingResponse(),
		transcript:   NewTranscript(),
	}
	if seed.InitialMessage != "" {
		c.transcript.Append(domain.TurnMessage{
			Role:    domain.RoleInterviewer,
			Content: seed.InitialMessage,
		})
	}
	c.endpointer = NewEndpointer(cfg.SilenceWindow, c.pending.Snapshot, func(text string) {
		c.post(endOfTurnEvent{text: text})
	})

	go c.run()
	return c, nil
}

// StartVoice begins continuous voice capture for the next turn.
func (c *TurnController) StartVoice() error {
	return c.do(func() error {
		switch {
		case c.state == domain.TurnStateCompleted:
			return ErrInterviewCompleted
		case c.speaking:
			return ErrSpeaking
		case c.state == domain.TurnStateListening:
			return nil
		case c.isSubmitting:
			return ErrSubmissionInFlight
		}
		return c.startListening(domain.ReasonListeningStarted)
	})
}

// StopVoice ends voice capture. A non-empty draft is submitted; an empty one
// returns the session to idle.
func (c *TurnController) StopVoice() error {
	return c.do(func() error {
		if c.isSubmitting {
			// Converges with a silence fire that already won the race.
			return nil
		}
		if c.state != domain.TurnStateListening {
			return ErrNotListening
		}

		c.stopRecognition()
		c.endpointer.Disarm()

		text := c.pending.Snapshot()
		if text == "" {
			c.pending.Clear()
			c.setState(domain.TurnStateIdle, domain.ReasonNothingToSubmit)
			return nil
		}
		c.beginSubmission(text)
		return nil
	})
}

// SubmitText submits a manually typed answer, bypassing voice capture.
func (c *TurnController) SubmitText(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptySubmission
	}
	return c.do(func() error {
		switch {
		case c.state == domain.TurnStateCompleted:
			return ErrInterviewCompleted
		case c.speaking:
			return ErrSpeaking
		case c.isSubmitting:
			return ErrSubmissionInFlight
		}
		if c.state == domain.TurnStateListening {
			c.stopRecognition()
			c.endpointer.Disarm()
		}
		c.beginSubmission(text)
		return nil
	})
}

// ToggleAudio flips speech output on or off. Muting while speaking cancels
// the in-flight synthesis immediately.
func (c *TurnController) ToggleAudio() (bool, error) {
	var enabled bool
	err := c.do(func() error {
		c.audioEnabled = !c.audioEnabled
		enabled = c.audioEnabled
		if !c.audioEnabled && c.speaking {
			c.cancelSynthesis()
			c.finishSpeaking(domain.ReasonAudioMuted)
		}
		return nil
	})
	return enabled, err
}

// EndInterview terminates the session: cancels recognition and synthesis,
// appends the closing message and freezes the counters. Idempotent.
func (c *TurnController) EndInterview() error {
	return c.do(func() error {
		if c.state == domain.TurnStateCompleted {
			return nil
		}
		c.stopRecognition()
		c.endpointer.Disarm()
		c.pending.Clear()
		c.cancelSynthesis()
		c.speaking = false
		c.completeAfterSpeech = false

		c.transcript.DropPending()
		closing := c.cfg.ClosingMessage
		if closing == "" {
			closing = DefaultClosingMessage
		}
		c.transcript.Append(domain.TurnMessage{
			Role:    domain.RoleInterviewer,
			Content: closing,
		})
		c.status = c.status.Advance(domain.StatusCompleted)

		c.events.TranscriptChanged(c.transcript.Messages())
		c.events.CountersChanged(c.counters, c.status)
		c.setState(domain.TurnStateCompleted, domain.ReasonInterviewEnded)
		return nil
	})
}

// Snapshot returns a consistent view of the session.
func (c *TurnController) Snapshot() (domain.SessionView, error) {
	var view domain.SessionView
	err := c.do(func() error {
		view = domain.SessionView{
			SessionID: c.sessionID,
			State:     c.state,
			Voice: domain.VoiceState{
				Listening:    c.state == domain.TurnStateListening,
				Speaking:     c.speaking,
				AudioEnabled: c.audioEnabled,
			},
			Status:     c.status,
			Counters:   c.counters,
			Transcript: c.transcript.Messages(),
		}
		return nil
	})
	return view, err
}

// Close stops the event loop and releases capture and synthesis resources.
func (c *TurnController) Close() {
	c.cancel()
	<-c.done
}

func (c *TurnController) do(fn func() error) error {
	cmd := command{fn: fn, reply: make(chan error, 1)}
	select {
	case c.commands <- cmd:
	case <-c.ctx.Done():
		return ErrControllerClosed
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-c.done:
		return ErrControllerClosed
	}
}

func (c *TurnController) post(ev any) {
	select {
	case c.inbox <- ev:
	case <-c.ctx.Done():
	}
}

func (c *TurnController) run() {
	defer close(c.done)
	for {
		select {
		case cmd := <-c.commands:
			cmd.reply <- cmd.fn()
		case ev := <-c.inbox:
			c.handle(ev)
		case <-c.ctx.Done():
			c.stopRecognition()
			c.endpointer.Disarm()
			c.cancelSynthesis()
			return
		}
	}
}

func (c *TurnController) handle(ev any) {
	switch ev := ev.(type) {
	case fragmentEvent:
		c.handleFragment(ev)
	case recognizerErrorEvent:
		c.handleRecognizerError(ev)
	case recognizerEndedEvent:
		c.handleRecognizerEnded(ev)
	case endOfTurnEvent:
		c.handleEndOfTurn(ev)
	case synthesisDoneEvent:
		c.handleSynthesisDone(ev)
	case submissionDoneEvent:
		c.handleSubmissionDone(ev)
	}
}

func (c *TurnController) startListening(reason domain.StateReason) error {
	c.pending.Clear()
	session, err := c.recognizer.Start(c.ctx)
	if err != nil {
		c.events.SessionError(domain.ErrorCodeRecognition, err.Error())
		return err
	}
	c.recSession = session
	c.manualStop = false
	go c.forward(session)
	c.setState(domain.TurnStateListening, reason)
	return nil
}

// forward pumps one recognition session's events into the loop inbox,
// preserving emission order. Each event is tagged with its session so events
// from a superseded session are recognized as stale.
func (c *TurnController) forward(session ports.RecognitionSession) {
	for ev := range session.Events() {
		switch ev.Kind {
		case domain.RecognizerEventFragment:
			c.post(fragmentEvent{from: session, text: ev.Text, final: ev.Final})
		case domain.RecognizerEventError:
			c.post(recognizerErrorEvent{from: session, detail: ev.Err})
		case domain.RecognizerEventEnded:
			c.post(recognizerEndedEvent{from: session})
		}
	}
}

func (c *TurnController) handleFragment(ev fragmentEvent) {
	if ev.from != c.recSession || c.state != domain.TurnStateListening {
		return
	}
	if ev.final {
		c.pending.AppendFinal(ev.text)
		c.metrics.FragmentsFinal.Inc()
	} else {
		c.pending.SetInterim(ev.text)
		c.metrics.FragmentsPartial.Inc()
	}
	c.events.PartialTranscript(c.pending.Snapshot())
	// Any fragment, final or interim, is evidence the speaker is still
	// producing audio.
	c.endpointer.Arm()
}

func (c *TurnController) handleRecognizerError(ev recognizerErrorEvent) {
	if ev.from != c.recSession {
		return
	}
	c.log.Warn().Str("detail", ev.detail).Msg("recognition error")
	c.events.SessionError(domain.ErrorCodeRecognition, ev.detail)
	if c.state == domain.TurnStateListening {
		c.stopRecognition()
		c.endpointer.Disarm()
		c.setState(domain.TurnStateIdle, domain.ReasonRecognitionFailed)
	}
}

func (c *TurnController) handleRecognizerEnded(ev recognizerEndedEvent) {
	if ev.from != c.recSession || c.state != domain.TurnStateListening || c.manualStop {
		return
	}
	// Capture is expected to be continuous for the whole listening phase, so
	// a spontaneous end is a transient condition, not a turn boundary.
	c.recSession = nil
	session, err := c.recognizer.Start(c.ctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("recognizer restart failed")
		c.events.SessionError(domain.ErrorCodeRecognition, err.Error())
		c.endpointer.Disarm()
		c.setState(domain.TurnStateIdle, domain.ReasonRecognitionFailed)
		return
	}
	c.metrics.RecognizerRestarts.Inc()
	c.recSession = session
	go c.forward(session)
	c.setState(domain.TurnStateListening, domain.ReasonListeningRestarted)
}

func (c *TurnController) handleEndOfTurn(ev endOfTurnEvent) {
	if c.state != domain.TurnStateListening || c.isSubmitting {
		return
	}
	c.stopRecognition()
	c.beginSubmission(ev.text)
}

func (c *TurnController) beginSubmission(text string) {
	c.isSubmitting = true
	c.pending.Clear()

	history := c.transcript.History()
	c.transcript.Append(domain.TurnMessage{Role: domain.RoleCandidate, Content: text})
	c.transcript.AppendPending()
	c.events.TranscriptChanged(c.transcript.Messages())
	c.setState(domain.TurnStateSubmitting, domain.ReasonTurnSubmitted)

	c.metrics.TurnsSubmitted.Inc()
	req := ports.EvaluationRequest{
		SessionID:     c.sessionID,
		Profile:       c.profile,
		CandidateText: text,
		History:       history,
	}
	go func() {
		started := time.Now()
		result, err := c.service.Evaluate(c.ctx, req)
		c.post(submissionDoneEvent{result: result, err: err, elapsed: time.Since(started)})
	}()
}

func (c *TurnController) handleSubmissionDone(ev submissionDoneEvent) {
	c.isSubmitting = false
	c.metrics.SubmissionSeconds.Observe(ev.elapsed.Seconds())

	if c.state == domain.TurnStateCompleted {
		// The interview ended while the exchange was in flight; counters are
		// terminal and the placeholder is already gone.
		return
	}

	if ev.err != nil {
		c.log.Warn().Err(ev.err).Msg("submission failed")
		c.metrics.TurnsFailed.Inc()
		c.transcript.FailPending()
		c.events.TranscriptChanged(c.transcript.Messages())
		// The drafted answer is intentionally not restored; the user
		// re-triggers the turn.
		c.events.SessionError(domain.ErrorCodeSubmission, ev.err.Error())
		c.setState(domain.TurnStateIdle, domain.ReasonSubmissionFailed)
		return
	}

	res := ev.result
	c.transcript.ResolvePending(res.Message, res.Feedback, res.Score)
	c.counters.QuestionsAsked++
	c.counters.LowScoreStreak = res.LowScoreStreak
	c.counters.RecordScore(res.Score)
	if res.Status.Valid() {
		c.status = c.status.Advance(res.Status)
	}
	c.events.TranscriptChanged(c.transcript.Messages())
	c.events.CountersChanged(c.counters, c.status)

	completed := c.status == domain.StatusCompleted
	if c.audioEnabled {
		c.completeAfterSpeech = completed
		c.speak(res.Message)
		return
	}
	if completed {
		c.setState(domain.TurnStateCompleted, domain.ReasonInterviewEnded)
	} else {
		c.setState(domain.TurnStateIdle, domain.ReasonTurnScored)
	}
}

func (c *TurnController) speak(text string) {
	c.synthGen++
	gen := c.synthGen
	utterance, err := c.synth.Speak(c.ctx, ports.SpeakRequest{
		Text:   text,
		Rate:   c.cfg.SpeakRate,
		Pitch:  c.cfg.SpeakPitch,
		Volume: c.cfg.SpeakVolume,
	})
	if err != nil {
		c.log.Warn().Err(err).Msg("synthesis failed to start")
		c.events.SessionError(domain.ErrorCodeSynthesis, err.Error())
		c.finishSpeaking(domain.ReasonTurnScored)
		return
	}
	c.utterance = utterance
	c.speaking = true
	c.setState(domain.TurnStateSpeaking, domain.ReasonSpeakingStarted)
	go func() {
		err := <-utterance.Done()
		c.post(synthesisDoneEvent{gen: gen, err: err})
	}()
}

func (c *TurnController) handleSynthesisDone(ev synthesisDoneEvent) {
	if ev.gen != c.synthGen {
		// Cancelled before delivery; intentionally discarded.
		return
	}
	c.utterance = nil
	c.speaking = false
	if ev.err != nil {
		c.events.SessionError(domain.ErrorCodeSynthesis, ev.err.Error())
	}
	c.finishSpeaking(domain.ReasonSpeakingFinished)
}

// finishSpeaking settles the post-speech state: Completed when the resolved
// turn closed the interview, Idle otherwise.
func (c *TurnController) finishSpeaking(reason domain.StateReason) {
	c.speaking = false
	if c.completeAfterSpeech {
		c.completeAfterSpeech = false
		c.setState(domain.TurnStateCompleted, domain.ReasonInterviewEnded)
		return
	}
	if c.state == domain.TurnStateCompleted {
		return
	}
	c.setState(domain.TurnStateIdle, reason)
}

func (c *TurnController) cancelSynthesis() {
	c.synthGen++
	if c.utterance != nil {
		c.utterance.Cancel()
		c.utterance = nil
		c.metrics.SynthesisCancelled.Inc()
	}
	c.speaking = false
}

func (c *TurnController) stopRecognition() {
	c.manualStop = true
	if c.recSession != nil {
		_ = c.recSession.Stop()
		c.recSession = nil
	}
}

func (c *TurnController) setState(state domain.TurnState, reason domain.StateReason) {
	c.state = state
	c.log.Debug().Str("state", string(state)).Str("reason", string(reason)).Msg("state changed")
	c.events.StateChanged(state, reason)
}
