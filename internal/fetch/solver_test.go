package fetch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperr "websearch/internal/errors"
)

func TestHTTPSolverSolve(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req solveRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "recaptcha", req.Type)
		assert.Equal(t, "site-key-1", req.SiteKey)

		_ = json.NewEncoder(w).Encode(solveResponse{Token: "tok-123"})
	}))
	defer srv.Close()

	solver := NewHTTPSolver(srv.URL, "secret")
	token, err := solver.Solve(context.Background(), Challenge{
		Type: "recaptcha", SiteKey: "site-key-1", PageURL: "https://example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "tok-123", token)
}

func TestHTTPSolverErrors(t *testing.T) {
	t.Run("service error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(solveResponse{Error: "unsolvable"})
		}))
		defer srv.Close()

		_, err := NewHTTPSolver(srv.URL, "").Solve(context.Background(), Challenge{Type: "hcaptcha"})
		assert.True(t, apperr.IsKind(err, apperr.KindCaptchaBlocked))
	})

	t.Run("empty token", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(solveResponse{})
		}))
		defer srv.Close()

		_, err := NewHTTPSolver(srv.URL, "").Solve(context.Background(), Challenge{Type: "hcaptcha"})
		assert.True(t, apperr.IsKind(err, apperr.KindCaptchaBlocked))
	})

	t.Run("http failure", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		_, err := NewHTTPSolver(srv.URL, "").Solve(context.Background(), Challenge{Type: "turnstile"})
		assert.True(t, apperr.IsKind(err, apperr.KindHTTPStatus))
	})
}
