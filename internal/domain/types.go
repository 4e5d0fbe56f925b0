package domain

// TurnState models the voice turn lifecycle for one interview session.
type TurnState string

const (
	TurnStateIdle       TurnState = "idle"
	TurnStateListening  TurnState = "listening"
	TurnStateSubmitting TurnState = "submitting"
	TurnStateSpeaking   TurnState = "speaking"
	TurnStateCompleted  TurnState = "completed"
)

// StateReason provides a structured reason for state transitions.
type StateReason string

const (
	ReasonSessionCreated     StateReason = "session_created"
	ReasonListeningStarted   StateReason = "listening_started"
	ReasonListeningRestarted StateReason = "listening_restarted"
	ReasonListeningStopped   StateReason = "listening_stopped"
	ReasonNothingToSubmit    StateReason = "nothing_to_submit"
	ReasonTurnSubmitted      StateReason = "turn_submitted"
	ReasonTurnScored         StateReason = "turn_scored"
	ReasonSubmissionFailed   StateReason = "submission_failed"
	ReasonSpeakingStarted    StateReason = "speaking_started"
	ReasonSpeakingFinished   StateReason = "speaking_finished"
	ReasonAudioMuted         StateReason = "audio_muted"
	ReasonRecognitionFailed  StateReason = "recognition_failed"
	ReasonInterviewEnded     StateReason = "interview_ended"
)

// ErrorCode identifies user-visible backend errors.
type ErrorCode string

const (
	ErrorCodeStartup     ErrorCode = "startup"
	ErrorCodeRecognition ErrorCode = "recognition"
	ErrorCodeSynthesis   ErrorCode = "synthesis"
	ErrorCodeSubmission  ErrorCode = "submission"
	ErrorCodeProfile     ErrorCode = "profile"
)

// Role identifies who produced a transcript message.
type Role string

const (
	RoleInterviewer Role = "interviewer"
	RoleCandidate   Role = "candidate"
)

// InterviewStatus is the session-level progress marker. Transitions are
// forward-only: not_started -> in_progress -> completed.
type InterviewStatus string

const (
	StatusNotStarted InterviewStatus = "not_started"
	StatusInProgress InterviewStatus = "in_progress"
	StatusCompleted  InterviewStatus = "completed"
)

func (s InterviewStatus) rank() int {
	switch s {
	case StatusNotStarted:
		return 0
	case StatusInProgress:
		return 1
	case StatusCompleted:
		return 2
	default:
		return -1
	}
}

// Valid reports whether the status is one of the known values.
func (s InterviewStatus) Valid() bool {
	return s.rank() >= 0
}

// Advance returns the later of the two statuses. A service response can
// never move the session backwards.
func (s InterviewStatus) Advance(next InterviewStatus) InterviewStatus {
	if next.rank() > s.rank() {
		return next
	}
	return s
}

// TurnMessage is one immutable exchange unit in the conversation transcript.
// A pending interviewer message is a placeholder awaiting the scored reply
// and is always the last element of the transcript.
type TurnMessage struct {
	Role     Role     `json:"role"`
	Content  string   `json:"content"`
	Feedback string   `json:"feedback,omitempty"`
	Score    *float64 `json:"score,omitempty"`
	Pending  bool     `json:"pending,omitempty"`
	Failed   bool     `json:"failed,omitempty"`
}

// VoiceState mirrors the capture/output status exposed to the UI.
// Listening and Speaking are never true at the same time.
type VoiceState struct {
	Listening    bool `json:"listening"`
	Speaking     bool `json:"speaking"`
	AudioEnabled bool `json:"audioEnabled"`
}

// SessionCounters track scoring progress across turns. They are mutated only
// by a successful submission and are frozen once the interview completes.
type SessionCounters struct {
	QuestionsAsked int      `json:"questionsAsked"`
	LowScoreStreak int      `json:"lowScoreStreak"`
	RunningScore   *float64 `json:"runningScore,omitempty"`
}

// RecordScore folds a new turn score into the running average:
// absent -> score, otherwise (running + score) / 2.
func (c *SessionCounters) RecordScore(score float64) {
	if c.RunningScore == nil {
		c.RunningScore = &score
		return
	}
	avg := (*c.RunningScore + score) / 2
	c.RunningScore = &avg
}

// RecognizerEventKind discriminates recognizer stream events.
type RecognizerEventKind string

const (
	RecognizerEventFragment RecognizerEventKind = "fragment"
	RecognizerEventError    RecognizerEventKind = "error"
	RecognizerEventEnded    RecognizerEventKind = "ended"
)

// RecognizerEvent is one event from a streaming recognition session.
// For fragment events Text carries the transcript and Final marks a
// recognizer-confirmed segment; interim text is replaceable.
type RecognizerEvent struct {
	Kind  RecognizerEventKind `json:"kind"`
	Text  string              `json:"text,omitempty"`
	Final bool                `json:"final,omitempty"`
	Err   string              `json:"err,omitempty"`
}

// ExperienceItem is one entry of the candidate's work history.
type ExperienceItem struct {
	Role     string `json:"role"`
	Company  string `json:"company"`
	Duration string `json:"duration,omitempty"`
}

// ProjectItem is one entry of the candidate's project list.
type ProjectItem struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Profile is the resume record loaded read-only at session start.
type Profile struct {
	Name       string           `json:"name,omitempty"`
	Skills     []string         `json:"skills"`
	Experience []ExperienceItem `json:"experience"`
	Projects   []ProjectItem    `json:"projects"`
}

// SessionView is a point-in-time snapshot of one interview session.
type SessionView struct {
	SessionID  string          `json:"sessionId"`
	State      TurnState       `json:"state"`
	Voice      VoiceState      `json:"voice"`
	Status     InterviewStatus `json:"status"`
	Counters   SessionCounters `json:"counters"`
	Transcript []TurnMessage   `json:"transcript"`
}
