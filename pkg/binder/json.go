package binder

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
)

// maxJSONBody caps JSON bodies at 1 MB; the API has no large payloads.
const maxJSONBody = 1 << 20

// JSON decodes an application/json body into v. Requests with another
// content type are not applicable. Unknown fields are rejected so typos in
// client payloads fail loudly instead of binding to nothing.
func JSON() func(r *http.Request, v any) error {
	return func(r *http.Request, v any) error {
		contentType := r.Header.Get("Content-Type")
		if contentType == "" {
			return ErrBinderNotApplicable
		}

		mediaType, _, err := mime.ParseMediaType(contentType)
		if err != nil || mediaType != "application/json" {
			return ErrBinderNotApplicable
		}

		if r.Body == nil {
			return ErrBinderNotApplicable
		}

		dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxJSONBody))
		dec.DisallowUnknownFields()
		if err := dec.Decode(v); err != nil {
			return errors.Join(ErrParseJSON, err)
		}
		return nil
	}
}
