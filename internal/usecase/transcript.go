package usecase

import (
	"sync"

	"hotseat/internal/domain"
)

// Transcript is the ordered conversation log for one session. At most one
// pending interviewer placeholder exists at a time and it is always the last
// element; it is replaced in place once the scored reply resolves.
type Transcript struct {
	mu       sync.Mutex
	messages []domain.TurnMessage
}

func NewTranscript(seed ...domain.TurnMessage) *Transcript {
	t := &Transcript{}
	t.messages = append(t.messages, seed...)
	return t
}

// Append adds a resolved message to the end of the transcript.
func (t *Transcript) Append(msg domain.TurnMessage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = append(t.messages, msg)
}

// AppendPending adds the interviewer placeholder for an in-flight turn.
func (t *Transcript) AppendPending() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = append(t.messages, domain.TurnMessage{
		Role:    domain.RoleInterviewer,
		Pending: true,
	})
}

// ResolvePending replaces the trailing placeholder with the scored reply.
// Returns false if no placeholder is present.
func (t *Transcript) ResolvePending(content, feedback string, score float64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	last := len(t.messages) - 1
	if last < 0 || !t.messages[last].Pending {
		return false
	}
	t.messages[last] = domain.TurnMessage{
		Role:     domain.RoleInterviewer,
		Content:  content,
		Feedback: feedback,
		Score:    &score,
	}
	return true
}

// FailPending marks the trailing placeholder as failed, keeping it visible
// so the UI can surface the error in place.
func (t *Transcript) FailPending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	last := len(t.messages) - 1
	if last < 0 || !t.messages[last].Pending {
		return false
	}
	t.messages[last].Pending = false
	t.messages[last].Failed = true
	return true
}

// DropPending removes the trailing placeholder, if any.
func (t *Transcript) DropPending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	last := len(t.messages) - 1
	if last < 0 || !t.messages[last].Pending {
		return false
	}
	t.messages = t.messages[:last]
	return true
}

// Messages returns a copy of the full transcript, placeholder included.
func (t *Transcript) Messages() []domain.TurnMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]domain.TurnMessage, len(t.messages))
	copy(out, t.messages)
	return out
}

// History returns a copy of the transcript excluding any pending
// placeholder, in the shape the interview service expects.
func (t *Transcript) History() []domain.TurnMessage {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]domain.TurnMessage, 0, len(t.messages))
	for _, m := range t.messages {
		if m.Pending {
			continue
		}
		out = append(out, m)
	}
	return out
}
