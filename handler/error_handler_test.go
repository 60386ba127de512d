package handler_test

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/taskmate/handler"
)

func TestNewErrorHandler(t *testing.T) {
	t.Parallel()

	t.Run("renders json envelope and logs", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := slog.New(slog.NewJSONHandler(&buf, nil))
		eh := handler.NewErrorHandler(log)

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/billing/checkout", nil)

		eh(handler.NewContext(w, r), handler.ErrBadGateway)

		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.JSONEq(t, `{"error":{"code":"bad_gateway","message":"Bad Gateway"}}`, w.Body.String())

		logged := buf.String()
		assert.Contains(t, logged, "request failed")
		assert.Contains(t, logged, "/billing/checkout")
		assert.Contains(t, logged, `"status_code":502`)
		assert.Contains(t, logged, `"level":"ERROR"`)
	})

	t.Run("client errors log at warn", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := slog.New(slog.NewJSONHandler(&buf, nil))
		eh := handler.NewErrorHandler(log)

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/billing/plans", nil)

		eh(handler.NewContext(w, r), handler.ErrUnauthorized)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, buf.String(), `"level":"WARN"`)
	})

	t.Run("validation errors render 422", func(t *testing.T) {
		t.Parallel()

		eh := handler.NewErrorHandler(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))

		ve := handler.NewValidationError()
		ve.Add("returnUrl", "is required")

		w := httptest.NewRecorder()
		eh(handler.NewContext(w, httptest.NewRequest(http.MethodPost, "/", nil)), ve)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Contains(t, w.Body.String(), `"returnUrl":["is required"]`)
	})
}
