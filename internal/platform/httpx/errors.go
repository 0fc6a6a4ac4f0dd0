package httpx

import (
	"errors"
	"net/http"

	"github.com/meridian-pos/meridian/internal/shared"
)

// RespondError maps engine errors to HTTP responses using RFC7807.
// Validation and shortfall failures carry their message through because they
// are actionable for the caller; configuration failures are masked.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrInsufficientStock),
		errors.Is(err, shared.ErrInsufficientRemainingQuantity):
		Problem(w, http.StatusConflict, "Insufficient Stock", err.Error())
	case errors.Is(err, shared.ErrConfigNotFound):
		Problem(w, http.StatusInternalServerError, "Internal Error", shared.UserSafeMessage(err))
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
