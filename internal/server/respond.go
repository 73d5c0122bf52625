package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	apperr "websearch/internal/errors"
)

// errorBody is the stable JSON error envelope.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind    apperr.Kind       `json:"kind"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// statusFor maps error kinds onto HTTP status codes. Upstream failures are
// gateway errors; caller mistakes are 4xx.
func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindInvalidInput, apperr.KindUnsupportedScheme:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindLockConflict:
		return http.StatusConflict
	case apperr.KindRateLimited:
		return http.StatusTooManyRequests
	case apperr.KindNetwork, apperr.KindTimeout, apperr.KindHTTPStatus,
		apperr.KindParse, apperr.KindCaptchaBlocked:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON writes a success payload.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Default().Warn("write response failed", slog.String("error", err.Error()))
	}
}

// writeError writes the error envelope for err.
func writeError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	detail := errorDetail{Kind: kind, Message: err.Error()}

	var e *apperr.Error
	if apperr.AsError(err, &e) {
		detail.Message = e.Message
		detail.Details = e.Details
	}
	writeJSON(w, statusFor(kind), errorBody{Error: detail})
}

// decodeBody parses a JSON request body into dst.
func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperr.Wrap(apperr.KindInvalidInput, "invalid request body", err)
	}
	return nil
}
