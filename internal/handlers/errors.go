package handlers

import (
	"errors"
	"net/http"

	"github.com/foodmap/apiserver/internal/services"
	"github.com/foodmap/apiserver/internal/store"
)

// writeServiceError maps known service sentinels to statuses and hides
// everything else behind a generic 500 message.
func writeServiceError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, services.ErrLoginIncorrect):
		writeError(w, http.StatusBadRequest, services.ErrLoginIncorrect.Error())
	case errors.Is(err, services.ErrAccountInactive):
		writeError(w, http.StatusForbidden, services.ErrAccountInactive.Error())
	case errors.Is(err, services.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, services.ErrInvalidToken.Error())
	case errors.Is(err, services.ErrTokenExpired):
		writeError(w, http.StatusUnauthorized, services.ErrTokenExpired.Error())
	case errors.Is(err, services.ErrPasswordMismatch):
		writeError(w, http.StatusBadRequest, services.ErrPasswordMismatch.Error())
	case errors.Is(err, services.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, services.ErrUnsupportedMedia):
		writeError(w, http.StatusBadRequest, services.ErrUnsupportedMedia.Error())
	default:
		writeError(w, http.StatusInternalServerError, fallback)
	}
}
