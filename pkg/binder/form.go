package binder

import (
	"errors"
	"mime"
	"net/http"
	"strings"
)

// maxFormMemory caps in-memory multipart parsing at 10 MB.
const maxFormMemory = 10 << 20

// Form binds urlencoded and multipart form bodies into `form:"name"` tagged
// fields. Requests without a form content type are not applicable.
//
//	type CheckoutRequest struct {
//		AccountID uuid.UUID `form:"accountId"`
//		PlanID    string    `form:"planId"`
//		ReturnURL string    `form:"returnUrl"`
//	}
func Form() func(r *http.Request, v any) error {
	return func(r *http.Request, v any) error {
		contentType := r.Header.Get("Content-Type")
		if contentType == "" {
			return ErrBinderNotApplicable
		}

		mediaType, _, err := mime.ParseMediaType(contentType)
		if err != nil {
			return ErrBinderNotApplicable
		}

		switch {
		case mediaType == "application/x-www-form-urlencoded":
			if err := r.ParseForm(); err != nil {
				return errors.Join(ErrParseForm, err)
			}
		case strings.HasPrefix(mediaType, "multipart/"):
			if err := r.ParseMultipartForm(maxFormMemory); err != nil {
				return errors.Join(ErrParseForm, err)
			}
		default:
			return ErrBinderNotApplicable
		}

		if err := bindValues(v, "form", func(name string) ([]string, bool) {
			vals, ok := r.PostForm[name]
			return vals, ok
		}); err != nil {
			return errors.Join(ErrParseForm, err)
		}
		return nil
	}
}
