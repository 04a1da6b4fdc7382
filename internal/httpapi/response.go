package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/airweave-core/airweave-core/internal/errkind"
)

type responseMessage struct {
	Message string `json:"message"`
}

func httpResponse(w http.ResponseWriter, msg string, code int) {
	v, _ := json.Marshal(responseMessage{Message: msg})
	httpResponseJSONByte(w, v, code)
}

func httpResponseJSON(w http.ResponseWriter, msg any, code int) {
	v, _ := json.Marshal(msg)
	httpResponseJSONByte(w, v, code)
}

func httpResponseJSONByte(w http.ResponseWriter, msg []byte, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(msg)
}

// httpResponseError maps an error to an HTTP status per spec.md §7's
// class table, unwrapping an *errkind.Error when present and otherwise
// falling back to 500.
func httpResponseError(w http.ResponseWriter, err error) {
	var kerr *errkind.Error
	if !errors.As(err, &kerr) {
		httpResponse(w, err.Error(), http.StatusInternalServerError)
		return
	}

	code := http.StatusInternalServerError
	switch kerr.Kind {
	case errkind.NotFound:
		code = http.StatusNotFound
	case errkind.Validation:
		code = http.StatusUnprocessableEntity
	case errkind.Permission:
		code = http.StatusForbidden
	case errkind.Conflict:
		code = http.StatusConflict
	case errkind.ProviderError:
		code = http.StatusBadGateway
	case errkind.TokenRefresh:
		code = http.StatusBadGateway
	case errkind.RateLimit:
		code = http.StatusTooManyRequests
	case errkind.Cancelled:
		code = http.StatusConflict
	}

	if kerr.Kind == errkind.Validation && len(kerr.Fields) > 0 {
		httpResponseJSON(w, map[string]any{
			"message": kerr.Message,
			"code":    kerr.Code,
			"fields":  kerr.Fields,
		}, code)
		return
	}

	httpResponseJSON(w, map[string]any{
		"message": kerr.Message,
		"code":    kerr.Code,
	}, code)
}
