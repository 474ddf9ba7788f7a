// Package platform talks to the analysis platform API, the service that
// actually runs project, actor and deployment analyses. The assistant
// invokes it only after the user has confirmed a mutating request.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ilumina.app/assistant/core/config"
	"ilumina.app/assistant/internal/model"
)

// ErrPlanLimit reports that the submission's plan has exhausted its
// analysis quota. Surfaced to the user verbatim as an upgrade prompt,
// never as a generic failure.
var ErrPlanLimit = errors.New("plan limit reached")

// Runner dispatches confirmed actions to the analysis platform.
type Runner interface {
	Run(ctx context.Context, req RunRequest) (*RunResult, error)
}

// RunRequest describes one confirmed action.
type RunRequest struct {
	SubmissionID string           `json:"submission_id"`
	Section      model.Section    `json:"section"`
	Step         model.Step       `json:"step"`
	Action       model.ActionKind `json:"action"`
	// Instruction carries the user's own words so the platform can scope
	// the run (e.g. which actor to remove from a summary).
	Instruction string `json:"instruction"`
}

// RunResult is the platform's acknowledgment of a dispatched run.
type RunResult struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
}

type client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a Runner talking to the configured platform API.
func NewClient(cfg config.PlatformConfig) Runner {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *client) Run(ctx context.Context, runReq RunRequest) (*RunResult, error) {
	body, err := json.Marshal(runReq)
	if err != nil {
		return nil, fmt.Errorf("marshaling run request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/analyze", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating run request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling analysis platform: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusPaymentRequired || resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrPlanLimit
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("analysis platform returned %d: %s", resp.StatusCode, string(payload))
	}

	var result RunResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding run response: %w", err)
	}

	return &result, nil
}
