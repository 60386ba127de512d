package binder

import (
	"errors"
	"net/http"
)

// Query binds URL query parameters into `query:"name"` tagged fields.
// A request without a query string is not applicable.
func Query() func(r *http.Request, v any) error {
	return func(r *http.Request, v any) error {
		if r.URL == nil || r.URL.RawQuery == "" {
			return ErrBinderNotApplicable
		}

		query := r.URL.Query()
		if err := bindValues(v, "query", func(name string) ([]string, bool) {
			vals, ok := query[name]
			return vals, ok
		}); err != nil {
			return errors.Join(ErrParseQuery, err)
		}
		return nil
	}
}
