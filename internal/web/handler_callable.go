package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/tidwall/gjson"

	"github.com/vbonduro/mealsize/internal/auth"
	"github.com/vbonduro/mealsize/internal/domain"
	"github.com/vbonduro/mealsize/internal/service"
)

const maxRequestSize = 1 << 20 // 1 MB

// Callable error statuses, as understood by the Firebase client SDKs.
const (
	statusUnauthenticated = "UNAUTHENTICATED"
	statusInvalidArgument = "INVALID_ARGUMENT"
	statusInternal        = "INTERNAL"
)

type callableResult struct {
	Level domain.Level `json:"level"`
}

type callableError struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// handleAnalyzeMealImage implements the callable protocol: the request body is
// {"data": <payload>}, a success is {"result": {...}} and a failure is
// {"error": {"status": ..., "message": ...}}.
func (s *Server) handleAnalyzeMealImage(w http.ResponseWriter, r *http.Request) {
	caller := s.resolveCaller(r)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestSize))
	if err != nil {
		if authErr := s.service.Authorize(caller); authErr != nil {
			s.writeError(w, http.StatusUnauthorized, statusUnauthenticated, authErr.Error())
			return
		}
		s.writeError(w, http.StatusBadRequest, statusInvalidArgument, "failed to read request body")
		return
	}

	level, err := s.service.Classify(r.Context(), service.Request{
		Payload: envelopeData(body),
		Caller:  caller,
	})
	switch {
	case errors.Is(err, service.ErrUnauthenticated):
		s.writeError(w, http.StatusUnauthorized, statusUnauthenticated, err.Error())
		return
	case errors.Is(err, service.ErrInvalidArgument):
		s.writeError(w, http.StatusBadRequest, statusInvalidArgument, err.Error())
		return
	case err != nil:
		s.logger.Error("classify failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, statusInternal, "internal error")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]callableResult{"result": {Level: level}})
}

// envelopeData returns the raw "data" member of a callable request body, or
// nil when the body is not a JSON envelope. Validation is left to the
// service so that the authentication check runs first.
func envelopeData(body []byte) json.RawMessage {
	if !gjson.ValidBytes(body) {
		return nil
	}
	data := gjson.GetBytes(body, "data")
	if !data.Exists() {
		return nil
	}
	return json.RawMessage(data.Raw)
}

// resolveCaller verifies the bearer token, if any. Missing or invalid tokens
// yield a nil caller; the service decides whether that is acceptable.
func (s *Server) resolveCaller(r *http.Request) *auth.Caller {
	token := auth.BearerToken(r.Header.Get("Authorization"))
	if token == "" || s.verifier == nil {
		return nil
	}
	caller, err := s.verifier.Verify(r.Context(), token)
	if err != nil {
		s.logger.Warn("rejected id token", "error", err)
		return nil
	}
	return caller
}

func (s *Server) writeError(w http.ResponseWriter, code int, status, message string) {
	s.writeJSON(w, code, map[string]callableError{"error": {Status: status, Message: message}})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("write response failed", "error", err)
	}
}
