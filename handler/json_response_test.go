package handler_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/taskmate/handler"
)

func render(t *testing.T, resp handler.Response) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	require.NoError(t, resp.Render(w, httptest.NewRequest(http.MethodGet, "/", nil)))
	return w
}

func TestJSON(t *testing.T) {
	t.Parallel()

	t.Run("data envelope", func(t *testing.T) {
		t.Parallel()

		w := render(t, handler.JSON(map[string]int{"count": 3}))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
		assert.JSONEq(t, `{"data":{"count":3}}`, w.Body.String())
	})

	t.Run("custom status and meta", func(t *testing.T) {
		t.Parallel()

		w := render(t, handler.JSON("ok",
			handler.WithStatus(http.StatusAccepted),
			handler.WithMeta(map[string]any{"page": 1}),
		))

		assert.Equal(t, http.StatusAccepted, w.Code)
		assert.JSONEq(t, `{"data":"ok","meta":{"page":1}}`, w.Body.String())
	})

	t.Run("error value produces error envelope", func(t *testing.T) {
		t.Parallel()

		w := render(t, handler.JSON(handler.ErrNotFound))

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.JSONEq(t, `{"error":{"code":"not_found","message":"Not Found"}}`, w.Body.String())
	})
}

func TestJSONError(t *testing.T) {
	t.Parallel()

	t.Run("http error", func(t *testing.T) {
		t.Parallel()

		w := render(t, handler.JSONError(handler.ErrPaymentRequired))

		assert.Equal(t, http.StatusPaymentRequired, w.Code)
		assert.JSONEq(t, `{"error":{"code":"payment_required","message":"Payment Required"}}`, w.Body.String())
	})

	t.Run("validation error carries details", func(t *testing.T) {
		t.Parallel()

		ve := handler.NewValidationError()
		ve.Add("planId", "is required")

		w := render(t, handler.JSONError(ve))

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Contains(t, w.Body.String(), `"code":"validation_error"`)
		assert.Contains(t, w.Body.String(), `"planId":["is required"]`)
	})

	t.Run("plain error defaults to 500", func(t *testing.T) {
		t.Parallel()

		w := render(t, handler.JSONError(assert.AnError))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, w.Body.String(), `"code":"internal_error"`)
	})
}

func TestRedirect(t *testing.T) {
	t.Parallel()

	t.Run("see other by default", func(t *testing.T) {
		t.Parallel()

		w := render(t, handler.Redirect("https://checkout.example.com/s/abc"))

		assert.Equal(t, http.StatusSeeOther, w.Code)
		assert.Equal(t, "https://checkout.example.com/s/abc", w.Header().Get("Location"))
	})

	t.Run("explicit code", func(t *testing.T) {
		t.Parallel()

		w := render(t, handler.RedirectWithCode("/plans", http.StatusTemporaryRedirect))

		assert.Equal(t, http.StatusTemporaryRedirect, w.Code)
		assert.Equal(t, "/plans", w.Header().Get("Location"))
	})
}
