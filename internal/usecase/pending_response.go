package usecase

import (
	"strings"
	"sync"
)

// PendingResponse buffers the candidate's not-yet-submitted answer. Final
// fragments accumulate space-joined in emission order; the interim fragment
// is best-effort live text and is replaced wholesale on every update. The
// interim text is discarded the moment it is promoted into the finalized
// buffer or the buffer is submitted.
type PendingResponse struct {
	mu        sync.Mutex
	finalized []string
	interim   string
}

func NewPendingResponse() *PendingResponse {
	return &PendingResponse{}
}

// AppendFinal promotes a recognizer-confirmed fragment into the finalized
// buffer and clears any interim text.
func (p *PendingResponse) AppendFinal(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.interim = ""
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	p.finalized = append(p.finalized, text)
}

// SetInterim replaces the live fragment. Interim results are cumulative
// within an utterance per the recognizer's own semantics, so no local
// concatenation happens here.
func (p *PendingResponse) SetInterim(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.interim = strings.TrimSpace(text)
}

// Snapshot returns the trimmed concatenation of finalized and interim text.
func (p *PendingResponse) Snapshot() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	joined := strings.Join(p.finalized, " ")
	if p.interim == "" {
		return strings.TrimSpace(joined)
	}
	return strings.TrimSpace(joined + " " + p.interim)
}

// Clear resets both buffers. Called at listening start and on submission.
func (p *PendingResponse) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.finalized = nil
	p.interim = ""
}
