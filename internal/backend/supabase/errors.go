package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"todo/internal/service"
)

// apiError is the union of the PostgREST and GoTrue error bodies.
type apiError struct {
	Message          string `json:"message"`
	Msg              string `json:"msg"`
	ErrorDescription string `json:"error_description"`
	Err              string `json:"error"`
	Code             any    `json:"code"`
	Details          string `json:"details"`
	Hint             string `json:"hint"`
}

func (e apiError) text() string {
	for _, s := range []string{e.Message, e.Msg, e.ErrorDescription, e.Err} {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

// decodeError turns a non-2xx response into a *service.Error. Bodies the
// store wrote itself keep their message; anything else is a transport error.
func decodeError(status int, body []byte) *service.Error {
	var e apiError
	if err := json.Unmarshal(body, &e); err != nil || e.text() == "" {
		return service.Transport(fmt.Errorf("unexpected response: %d %s", status, http.StatusText(status)))
	}
	return service.Remote(kindForStatus(status, e), e.text())
}

func kindForStatus(status int, e apiError) service.ErrorKind {
	// PostgREST reports row-level security and JWT problems with these codes.
	if code, ok := e.Code.(string); ok {
		switch code {
		case "PGRST301", "PGRST302", "42501":
			return service.KindAuth
		case "23505":
			return service.KindConflict
		case "23502", "23514", "22P02":
			return service.KindValidation
		}
	}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return service.KindAuth
	case status == http.StatusNotFound:
		return service.KindNotFound
	case status == http.StatusConflict:
		return service.KindConflict
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return service.KindValidation
	default:
		return service.KindRemote
	}
}

// wrapError classifies errors from the HTTP client itself.
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	var e *service.Error
	if errors.As(err, &e) {
		return e
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return service.Transport(context.DeadlineExceeded)
	}
	return service.Transport(err)
}
