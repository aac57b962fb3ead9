package route

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"meetroom/src-server/model"
)

type errorRespBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Warn("can't write response", "error", err)
	}
}

// writeError maps the engine's typed errors onto status codes.
func writeError(w http.ResponseWriter, err error) {
	var (
		validationErr *model.ValidationError
		conflictErr   *model.ConflictError
		permissionErr *model.PermissionError
		externalErr   *model.ExternalResourceError
	)
	switch {
	case errors.As(err, &validationErr):
		writeJSON(w, http.StatusBadRequest, errorRespBody{Error: err.Error()})
	case errors.As(err, &conflictErr):
		writeJSON(w, http.StatusConflict, errorRespBody{Error: err.Error()})
	case errors.As(err, &permissionErr):
		writeJSON(w, http.StatusForbidden, errorRespBody{Error: err.Error()})
	case errors.Is(err, model.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorRespBody{Error: err.Error()})
	case errors.As(err, &externalErr):
		writeJSON(w, http.StatusBadGateway, errorRespBody{Error: err.Error()})
	default:
		slog.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorRespBody{Error: "internal error"})
	}
}
