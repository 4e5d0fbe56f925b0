// Package interview talks to the remote interview evaluation service.
package interview

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"hotseat/internal/domain"
	"hotseat/internal/ports"
)

// Config controls the evaluation client.
type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries uint64
	RetryBase  time.Duration
}

// Client implements ports.InterviewService over HTTP. Transport failures and
// 5xx responses are retried with exponential backoff up to MaxRetries; 4xx
// responses are treated as permanent.
type Client struct {
	httpClient *http.Client
	cfg        Config
	log        zerolog.Logger
}

func NewClient(cfg Config, log zerolog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 250 * time.Millisecond
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
		log:        log,
	}
}

type turnPayload struct {
	Role     string   `json:"role"`
	Content  string   `json:"content"`
	Feedback string   `json:"feedback,omitempty"`
	Score    *float64 `json:"score,omitempty"`
}

type evaluateRequest struct {
	ProfileData         domain.Profile `json:"profileData"`
	SessionID           string         `json:"sessionId"`
	CandidateText       string         `json:"candidateText"`
	ConversationHistory []turnPayload  `json:"conversationHistory"`
}

type evaluateResponse struct {
	Message         string  `json:"message"`
	Feedback        string  `json:"feedback"`
	Score           float64 `json:"score"`
	InterviewStatus string  `json:"interviewStatus"`
	LowScoreStreak  int     `json:"lowScoreStreak"`
	Error           string  `json:"error,omitempty"`
}

// Evaluate scores one submitted turn and returns the next interviewer
// prompt.
func (c *Client) Evaluate(ctx context.Context, req ports.EvaluationRequest) (ports.EvaluationResult, error) {
	body, err := json.Marshal(buildRequest(req))
	if err != nil {
		return ports.EvaluationResult{}, fmt.Errorf("failed to encode evaluation request: %w", err)
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/evaluate"
	backoff := retry.WithMaxRetries(c.cfg.MaxRetries, retry.NewExponential(c.cfg.RetryBase))

	var result ports.EvaluationResult
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		res, attemptErr := c.attempt(ctx, endpoint, body)
		if attemptErr != nil {
			return attemptErr
		}
		result = res
		return nil
	})
	if err != nil {
		return ports.EvaluationResult{}, err
	}
	return result, nil
}

func (c *Client) attempt(ctx context.Context, endpoint string, body []byte) (ports.EvaluationResult, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return ports.EvaluationResult{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.log.Warn().Err(err).Msg("evaluation request failed")
		return ports.EvaluationResult{}, retry.RetryableError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("interview service error: status=%d body=%s", resp.StatusCode, serviceError(payload, resp.StatusCode))
		c.log.Warn().Int("status", resp.StatusCode).Msg("evaluation attempt failed, retrying")
		return ports.EvaluationResult{}, retry.RetryableError(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return ports.EvaluationResult{}, fmt.Errorf("interview service rejected turn: %s", serviceError(payload, resp.StatusCode))
	}

	var decoded evaluateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return ports.EvaluationResult{}, fmt.Errorf("malformed evaluation response: %w", err)
	}
	return parseResponse(decoded)
}

func buildRequest(req ports.EvaluationRequest) evaluateRequest {
	history := make([]turnPayload, 0, len(req.History))
	for _, m := range req.History {
		history = append(history, turnPayload{
			Role:     string(m.Role),
			Content:  m.Content,
			Feedback: m.Feedback,
			Score:    m.Score,
		})
	}
	return evaluateRequest{
		ProfileData:         req.Profile,
		SessionID:           req.SessionID,
		CandidateText:       req.CandidateText,
		ConversationHistory: history,
	}
}

func parseResponse(decoded evaluateResponse) (ports.EvaluationResult, error) {
	if decoded.Error != "" {
		return ports.EvaluationResult{}, fmt.Errorf("interview service rejected turn: %s", decoded.Error)
	}
	if strings.TrimSpace(decoded.Message) == "" {
		return ports.EvaluationResult{}, fmt.Errorf("malformed evaluation response: empty message")
	}
	if decoded.Score < 0 || decoded.Score > 10 {
		return ports.EvaluationResult{}, fmt.Errorf("malformed evaluation response: score %v out of range", decoded.Score)
	}
	status := domain.InterviewStatus(decoded.InterviewStatus)
	if decoded.InterviewStatus != "" && !status.Valid() {
		return ports.EvaluationResult{}, fmt.Errorf("malformed evaluation response: unknown status %q", decoded.InterviewStatus)
	}
	if decoded.LowScoreStreak < 0 {
		decoded.LowScoreStreak = 0
	}
	return ports.EvaluationResult{
		Message:        decoded.Message,
		Feedback:       decoded.Feedback,
		Score:          decoded.Score,
		Status:         status,
		LowScoreStreak: decoded.LowScoreStreak,
	}, nil
}

func serviceError(payload []byte, status int) string {
	var parsed struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(payload, &parsed); err == nil && parsed.Error != "" {
		return parsed.Error
	}
	return fmt.Sprintf("http %d", status)
}
