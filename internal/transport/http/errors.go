package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"assessment-service/internal/domain"
	"github.com/go-chi/chi/v5/middleware"
)

var errForbidden = errors.New("submission belongs to another student")

type errorBody struct {
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
}

func statusFor(err error) int {
	if errors.Is(err, errForbidden) {
		return http.StatusForbidden
	}
	switch domain.KindOf(err) {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// publicError returns what a caller may see. Internal failures are reported generically.
func publicError(err error) errorBody {
	if errors.Is(err, errForbidden) {
		return errorBody{Message: err.Error(), Kind: "forbidden"}
	}
	kind := domain.KindOf(err)
	if kind == domain.KindInternal {
		return errorBody{Message: "internal server error", Kind: kind.String()}
	}
	return errorBody{Message: err.Error(), Kind: kind.String()}
}

func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"err", err,
		)
	}
	writeJSON(w, status, publicError(err))
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
