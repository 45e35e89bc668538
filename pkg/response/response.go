// Package response renders the JSON envelope shared by every endpoint:
// {success, message?, data?, errors?}.
package response

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-orangelink-go/pkg/apperr"
)

const maxBodyBytes = 1 << 20

type Envelope struct {
	Success bool                `json:"success"`
	Message string              `json:"message,omitempty"`
	Data    any                 `json:"data,omitempty"`
	Errors  []apperr.FieldError `json:"errors,omitempty"`
}

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, Envelope{Success: true, Data: data})
}

func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, Envelope{Success: true, Data: data})
}

func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Status maps an error kind onto an HTTP status code.
func Status(kind apperr.Kind) int {
	switch kind {
	case apperr.BadRequest:
		return http.StatusBadRequest
	case apperr.Validation:
		return http.StatusUnprocessableEntity
	case apperr.Unauthorized:
		return http.StatusUnauthorized
	case apperr.Forbidden:
		return http.StatusForbidden
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.Conflict:
		return http.StatusConflict
	case apperr.TooManyRequests:
		return http.StatusTooManyRequests
	case apperr.Transient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error writes err as a failure envelope. Unclassified errors are logged and
// reported with a generic message.
func Error(w http.ResponseWriter, logger *zap.SugaredLogger, err error) {
	e, ok := apperr.As(err)
	if !ok || e.Kind == apperr.Internal || e.Kind == apperr.Config {
		logger.Errorw("request failed", "err", err)
		JSON(w, http.StatusInternalServerError, Envelope{Success: false, Message: "Internal server error"})
		return
	}
	if e.Kind == apperr.Transient {
		logger.Warnw("storage unavailable", "err", err)
	}
	JSON(w, Status(e.Kind), Envelope{Success: false, Message: e.Message, Errors: e.Fields})
}

// Decode reads a JSON request body into dst. An empty body leaves dst untouched.
func Decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return apperr.Wrap(apperr.BadRequest, "Invalid JSON body", err)
	}
	return nil
}
