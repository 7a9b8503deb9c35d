package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	budgetdomain "github.com/odontia/odontia/internal/budget/domain"
	conversiondomain "github.com/odontia/odontia/internal/conversion/domain"
	financingdomain "github.com/odontia/odontia/internal/financing/domain"
	invoicedomain "github.com/odontia/odontia/internal/invoice/domain"
	issuerdomain "github.com/odontia/odontia/internal/issuer/domain"
	liquidationdomain "github.com/odontia/odontia/internal/liquidation/domain"
	transferdomain "github.com/odontia/odontia/internal/transfer/domain"
	walletdomain "github.com/odontia/odontia/internal/wallet/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrForbidden      = errors.New("forbidden")
	ErrInternal       = errors.New("internal_error")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: "invalid value",
				},
			},
		}
	}

	switch {
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: err.Error(),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, issuerdomain.ErrUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, budgetdomain.ErrInvalidPatient),
		errors.Is(err, budgetdomain.ErrInvalidName),
		errors.Is(err, budgetdomain.ErrInvalidPrice),
		errors.Is(err, budgetdomain.ErrInvalidQuantity),
		errors.Is(err, budgetdomain.ErrInvalidStatus),
		errors.Is(err, walletdomain.ErrInvalidPatient),
		errors.Is(err, walletdomain.ErrInvalidAmount),
		errors.Is(err, walletdomain.ErrInvalidMethod),
		errors.Is(err, walletdomain.ErrInvalidType),
		errors.Is(err, walletdomain.ErrInvalidPageToken),
		errors.Is(err, financingdomain.ErrInvalidPatient),
		errors.Is(err, financingdomain.ErrInvalidAmount),
		errors.Is(err, financingdomain.ErrInvalidDownPayment),
		errors.Is(err, financingdomain.ErrInvalidInstallments),
		errors.Is(err, transferdomain.ErrInvalidPatient),
		errors.Is(err, transferdomain.ErrInvalidAmount),
		errors.Is(err, transferdomain.ErrInvalidDoctor),
		errors.Is(err, transferdomain.ErrInvalidSource),
		errors.Is(err, liquidationdomain.ErrInvalidAppointment):
		return true
	default:
		return false
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, budgetdomain.ErrInvalidTransition),
		errors.Is(err, budgetdomain.ErrNotAcceptable),
		errors.Is(err, conversiondomain.ErrNotAcceptable),
		errors.Is(err, transferdomain.ErrInsufficientBalance),
		errors.Is(err, liquidationdomain.ErrAlreadyPaid):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, budgetdomain.ErrNotFound),
		errors.Is(err, walletdomain.ErrPatientMissing),
		errors.Is(err, financingdomain.ErrNotFound),
		errors.Is(err, invoicedomain.ErrNotFound),
		errors.Is(err, conversiondomain.ErrNotFound),
		errors.Is(err, transferdomain.ErrPatientMissing),
		errors.Is(err, liquidationdomain.ErrNotFound),
		errors.Is(err, liquidationdomain.ErrDoctorNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	if errors.Is(err, ErrInvalidRequest) {
		return "invalid_request"
	}
	return err.Error()
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}
