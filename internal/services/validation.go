package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/bankledger/backend/internal/models"
)

// ErrorResponse represents error response structure
type ErrorResponse struct {
	Error   string            `json:"error"`             // Error message
	Details map[string]string `json:"details,omitempty"` // Validation details
}

// ValidationHelper provides shared validation functionality
type ValidationHelper struct {
	validator *validator.Validate
}

// NewValidationHelper creates a new validation helper
func NewValidationHelper() *ValidationHelper {
	return &ValidationHelper{
		validator: validator.New(),
	}
}

// ValidateStruct validates a struct and returns validation errors
func (vh *ValidationHelper) ValidateStruct(s any) error {
	return vh.validator.Struct(s)
}

// SendErrorResponse sends a JSON error response
func SendErrorResponse(w http.ResponseWriter, message string, statusCode int, validationErr error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errorResp := ErrorResponse{Error: message}
	if validationErr != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(validationErr, &validationErrs) {
			errorResp.Details = make(map[string]string)
			for _, err := range validationErrs {
				errorResp.Details[err.Field()] = fmt.Sprintf("Field Validation Failed on '%s' tag", err.Tag())
			}
		}
	}

	json.NewEncoder(w).Encode(errorResp)
}

// SendDomainError maps the service error taxonomy to HTTP statuses.
// Anything outside the taxonomy is a store failure and is reported
// without internal detail.
func SendDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrAccountNotFound):
		SendErrorResponse(w, "Account not found", http.StatusNotFound, nil)
	case errors.Is(err, models.ErrRecipientNotFound):
		SendErrorResponse(w, "Recipient account not found", http.StatusNotFound, nil)
	case errors.Is(err, models.ErrAccountInactive):
		SendErrorResponse(w, "Account is deactivated", http.StatusBadRequest, nil)
	case errors.Is(err, models.ErrDuplicateName):
		SendErrorResponse(w, "Account name already exists", http.StatusConflict, nil)
	case errors.Is(err, models.ErrDuplicateNumber):
		SendErrorResponse(w, "Could not allocate a unique account number", http.StatusConflict, nil)
	case errors.Is(err, models.ErrInsufficientFunds):
		SendErrorResponse(w, "Insufficient balance", http.StatusBadRequest, nil)
	case errors.Is(err, models.ErrSameAccount):
		SendErrorResponse(w, "Cannot transfer to same account", http.StatusBadRequest, nil)
	case errors.Is(err, models.ErrInvalidAmount):
		SendErrorResponse(w, "Amount must be a positive number greater than zero", http.StatusBadRequest, nil)
	case errors.Is(err, models.ErrInvalidRange):
		SendErrorResponse(w, "Invalid date range", http.StatusBadRequest, nil)
	case errors.Is(err, models.ErrLockTimeout):
		SendErrorResponse(w, "Account is busy, try again", http.StatusServiceUnavailable, nil)
	default:
		SendErrorResponse(w, "An internal error occurred", http.StatusInternalServerError, nil)
	}
}

// UserIDFromContext reads the authenticated user ID placed in the
// request context by the auth middleware.
func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	raw, ok := ctx.Value("userID").(string)
	if !ok || raw == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
