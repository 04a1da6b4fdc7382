package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/airweave-core/airweave-core/internal/errkind"
)

func TestHTTPResponseErrorMapsKindsToStatus(t *testing.T) {
	cases := []struct {
		kind errkind.Kind
		want int
	}{
		{errkind.NotFound, http.StatusNotFound},
		{errkind.Validation, http.StatusUnprocessableEntity},
		{errkind.Permission, http.StatusForbidden},
		{errkind.Conflict, http.StatusConflict},
		{errkind.ProviderError, http.StatusBadGateway},
		{errkind.RateLimit, http.StatusTooManyRequests},
	}

	for _, c := range cases {
		rec := httptest.NewRecorder()
		httpResponseError(rec, errkind.New(c.kind, "test_code", "test message"))
		if rec.Code != c.want {
			t.Errorf("kind %v: status = %d, want %d", c.kind, rec.Code, c.want)
		}
	}
}

func TestHTTPResponseErrorFallsBackToInternalServerError(t *testing.T) {
	rec := httptest.NewRecorder()
	httpResponseError(rec, errUnwrapped{})
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500 for a plain error", rec.Code)
	}
}

type errUnwrapped struct{}

func (errUnwrapped) Error() string { return "boom" }
