package handlers

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	pkgerrors "graphstore/pkg/errors"
)

// pathParam returns the decoded value of a route parameter. chi matches on
// the escaped path when one is present, so ids containing "/" arrive as
// "%2F" and are unescaped here.
func pathParam(r *http.Request, name string) (string, error) {
	raw := chi.URLParam(r, name)
	value, err := url.PathUnescape(raw)
	if err != nil {
		return "", pkgerrors.NewValidationError(fmt.Sprintf("invalid path parameter %s %q", name, raw)).
			WithCode(pkgerrors.CodeInvalidRequest)
	}
	return value, nil
}
