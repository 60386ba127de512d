package handler

import "net/http"

type errorResponse struct {
	err error
}

// Render writes nothing and reports the error so Wrap routes it to the
// configured error handler.
func (e errorResponse) Render(http.ResponseWriter, *http.Request) error {
	return e.err
}

// Error returns a Response that defers rendering to the wrap's error
// handler, so failures are logged and rendered through one path.
func Error(err error) Response {
	return errorResponse{err: err}
}
