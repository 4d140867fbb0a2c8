package web

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/apperr"
)

// WriteJSON serializes v with the given status. Encoding failures are
// ignored: headers are already out.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// WriteError translates any error into the uniform envelope. This is the
// single place the taxonomy becomes HTTP.
func WriteError(w http.ResponseWriter, logger *slog.Logger, err error) {
	ae := apperr.From(err)
	if ae.Kind == apperr.Internal {
		logger.Error("request failed", slog.Any("error", err))
	}
	WriteJSON(w, ae.HTTPStatus(), ae.ToEnvelope())
}

// DecodeJSON parses a request body, rejecting unknown or malformed input
// with a 422-mapped schema validation error.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperr.Wrap(apperr.ValidationRejected, "schema_validation",
			"invalid request body", err)
	}
	return nil
}
