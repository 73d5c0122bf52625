package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	apperr "websearch/internal/errors"
)

// HTTPSolver delegates CAPTCHA challenges to an external solving service.
// The service accepts a JSON challenge and returns a response token.
type HTTPSolver struct {
	client   *http.Client
	endpoint string
	apiKey   string
}

// NewHTTPSolver creates a solver against endpoint. Solving is slow by
// nature, so the client timeout is generous.
func NewHTTPSolver(endpoint, apiKey string) *HTTPSolver {
	return &HTTPSolver{
		client:   &http.Client{Timeout: 120 * time.Second},
		endpoint: endpoint,
		apiKey:   apiKey,
	}
}

type solveRequest struct {
	Type    string `json:"type"`
	SiteKey string `json:"siteKey"`
	PageURL string `json:"pageUrl"`
}

type solveResponse struct {
	Token string `json:"token"`
	Error string `json:"error,omitempty"`
}

// Solve submits the challenge and returns the response token.
func (s *HTTPSolver) Solve(ctx context.Context, ch Challenge) (string, error) {
	body, err := json.Marshal(solveRequest{Type: ch.Type, SiteKey: ch.SiteKey, PageURL: ch.PageURL})
	if err != nil {
		return "", apperr.Wrap(apperr.KindInternal, "encode challenge", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", apperr.Wrap(apperr.KindInvalidInput, "build solver request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", apperr.Wrap(apperr.KindNetwork, "solver request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", apperr.Newf(apperr.KindHTTPStatus, "solver returned %d", resp.StatusCode).
			WithDetail("status", fmt.Sprintf("%d", resp.StatusCode))
	}

	var out solveResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return "", apperr.Wrap(apperr.KindParse, "decode solver response", err)
	}
	if out.Error != "" {
		return "", apperr.Newf(apperr.KindCaptchaBlocked, "solver failed: %s", out.Error)
	}
	if out.Token == "" {
		return "", apperr.New(apperr.KindCaptchaBlocked, "solver returned an empty token")
	}
	return out.Token, nil
}
