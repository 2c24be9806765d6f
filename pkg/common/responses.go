package common

import (
	"encoding/json"
	"io"
	"net/http"

	pkgerrors "graphstore/pkg/errors"
)

// maxBodyBytes bounds request bodies decoded by ParseJSONBody.
const maxBodyBytes = 1 << 20

// RespondSuccess writes {"success": true, ...fields}.
func RespondSuccess(w http.ResponseWriter, status int, fields map[string]interface{}) {
	body := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		body[k] = v
	}
	body["success"] = true
	RespondJSON(w, status, body)
}

// RespondJSON sends a JSON response as-is.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(data)
}

// ParseJSONBody decodes a single JSON document from the request body.
// Unknown fields are rejected; the result is a VALIDATION error on failure.
func ParseJSONBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(v); err != nil {
		if err == io.EOF {
			return pkgerrors.NewValidationError("request body is empty").WithCode(pkgerrors.CodeInvalidRequest)
		}
		return pkgerrors.NewValidationError("invalid request body: " + err.Error()).
			WithCode(pkgerrors.CodeInvalidRequest).
			WithCause(err)
	}
	if decoder.More() {
		return pkgerrors.NewValidationError("request body must contain a single JSON object").
			WithCode(pkgerrors.CodeInvalidRequest)
	}
	return nil
}
