package httpx

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/edunirix/portal/internal/shared"
)

// ErrMalformed marks a request body that could not be decoded.
var ErrMalformed = errors.New("malformed request body")

// RespondError maps domain errors to JSON error responses.
func RespondError(w http.ResponseWriter, err error) {
	var verrs validator.ValidationErrors
	switch {
	case errors.Is(err, ErrMalformed):
		Message(w, http.StatusBadRequest, "Invalid request body")
	case errors.As(err, &verrs):
		Message(w, http.StatusBadRequest, validationMessage(verrs))
	case errors.Is(err, shared.ErrInvalidCredentials):
		Message(w, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, shared.ErrInactiveAccount):
		Message(w, http.StatusForbidden, "Account is disabled. Contact your administrator.")
	case errors.Is(err, shared.ErrInvalidToken):
		Message(w, http.StatusUnauthorized, "Session expired. Please sign in again.")
	case errors.Is(err, shared.ErrNotFound):
		Message(w, http.StatusNotFound, "Not found")
	default:
		Message(w, http.StatusInternalServerError, "Something went wrong. Please try again later.")
	}
}

func validationMessage(verrs validator.ValidationErrors) string {
	if len(verrs) == 0 {
		return "Invalid request"
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return fe.Field() + " must be a valid email address"
	case "min":
		return fe.Field() + " must be at least " + fe.Param() + " characters"
	case "nefield":
		return fe.Field() + " must differ from " + fe.Param()
	default:
		return fe.Field() + " is invalid"
	}
}
