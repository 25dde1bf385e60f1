package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"mediastore/internal/media"
	"mediastore/internal/storage"

	"github.com/go-playground/validator/v10"
)

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// respondError maps domain errors onto HTTP statuses. Unknown errors are
// logged and answered with a generic 500 so internals never leak.
func respondError(logger *slog.Logger, w http.ResponseWriter, r *http.Request, err error) {
	var validationErrs validator.ValidationErrors

	switch {
	case errors.Is(err, media.ErrPictureNotFound), errors.Is(err, storage.ErrNotFound):
		respondJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})

	case errors.Is(err, media.ErrBinaryTooLarge):
		respondJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: err.Error()})

	case errors.Is(err, media.ErrImageTooLarge),
		errors.Is(err, media.ErrUnsupportedFormat),
		errors.Is(err, media.ErrEmptyBinary):
		respondJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})

	case errors.Is(err, storage.ErrUniqueViolation), errors.Is(err, storage.ErrCheckViolation):
		respondJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})

	case errors.As(err, &validationErrs):
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: validationErrs.Error()})

	default:
		logger.Error("internal error", "err", err, "path", r.URL.Path)
		respondJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}
