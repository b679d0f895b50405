package server

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/matzehuels/fractalglass/pkg/errors"
	"github.com/matzehuels/fractalglass/pkg/session"
	"github.com/matzehuels/fractalglass/pkg/settings"
)

type errorBody struct {
	Error struct {
		Code    errors.Code `json:"code"`
		Message string      `json:"message"`
	} `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// writeError answers with {"error": {"code", "message"}} and the status
// derived from the error code.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	err = classify(err)
	status := statusFor(err)
	if status >= 500 {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	}
	var body errorBody
	body.Error.Code = errors.GetCode(err)
	if body.Error.Code == "" {
		body.Error.Code = errors.ErrCodeInternal
	}
	body.Error.Message = errors.UserMessage(err)
	writeJSON(w, status, body)
}

// classify gives uncoded errors from lower layers their code.
func classify(err error) error {
	if errors.GetCode(err) != "" {
		return err
	}
	var (
		unknown *settings.UnknownFieldError
		typ     *settings.TypeError
		rng     *settings.RangeError
		parse   *settings.ParseError
	)
	switch {
	case stderrors.Is(err, session.ErrNotFound), stderrors.Is(err, session.ErrExpired):
		return errors.Wrap(errors.ErrCodeSessionNotFound, err, "session")
	case stderrors.As(err, &unknown), stderrors.As(err, &typ), stderrors.As(err, &rng),
		stderrors.As(err, &parse):
		return errors.Wrap(errors.ErrCodeInvalidSetting, err, "settings")
	}
	return err
}

func statusFor(err error) int {
	switch errors.GetCode(err) {
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidSetting, errors.ErrCodeInvalidFormat,
		errors.ErrCodeInvalidImage, errors.ErrCodeInvalidName:
		return http.StatusBadRequest
	case errors.ErrCodeTooLarge:
		return http.StatusRequestEntityTooLarge
	case errors.ErrCodeNoImage:
		return http.StatusConflict
	case errors.ErrCodeNotFound, errors.ErrCodeSessionNotFound, errors.ErrCodePresetNotFound:
		return http.StatusNotFound
	case errors.ErrCodeUnsupported:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}
