package authapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/abdihakim148/beekeeper/cmd/fault"
)

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error apiError `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: apiError{Code: code, Message: msg}})
}

// writeFault renders err with the status and caller-safe message of its kind.
// Unexpected errors are logged with the route and surfaced as internal_error.
func writeFault(w http.ResponseWriter, log *slog.Logger, route string, err error) {
	if !fault.Expected(err) {
		log.Error("http.request.fail", "route", route, "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	writeError(w, fault.Status(err), fault.KindName(err), fault.Message(err))
}

// writeDecodeError reports a body that failed to decode. Typed fields that reject their
// value (ids, scopes) surface as conversion errors; everything else is invalid_json.
func writeDecodeError(w http.ResponseWriter, log *slog.Logger, route string, err error) {
	var ce fault.ConversionError
	if errors.As(err, &ce) {
		writeFault(w, log, route, ce)
		return
	}
	writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	defer func() { _ = r.Body.Close() }()

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("extra data after JSON object")
	}
	return nil
}

// decodePatch reads a JSON object of arbitrary fields.
func decodePatch(w http.ResponseWriter, r *http.Request, maxBytes int64) (map[string]any, error) {
	if r.Body == nil {
		return nil, errors.New("empty body")
	}
	defer func() { _ = r.Body.Close() }()

	var fields map[string]any
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBytes))
	if err := dec.Decode(&fields); err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, errors.New("patch must be a JSON object")
	}
	return fields, nil
}
