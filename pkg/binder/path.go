package binder

import (
	"errors"
	"net/http"
)

// Path binds router path parameters into `path:"name"` tagged fields using
// the supplied extractor, typically chi.URLParam.
//
//	r.Post("/{id}/regenerate", handler.Wrap(regenerate,
//		handler.WithBinders[handler.Context](binder.Path(chi.URLParam)),
//	))
func Path(extractor func(r *http.Request, name string) string) func(r *http.Request, v any) error {
	if extractor == nil {
		panic("binder.Path: extractor is required")
	}

	return func(r *http.Request, v any) error {
		if err := bindValues(v, "path", func(name string) ([]string, bool) {
			val := extractor(r, name)
			if val == "" {
				return nil, false
			}
			return []string{val}, true
		}); err != nil {
			return errors.Join(ErrParsePath, err)
		}
		return nil
	}
}
