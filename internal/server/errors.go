package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	billingaccountdomain "github.com/railzwaylabs/stripesync/internal/billingaccount/domain"
	customerdomain "github.com/railzwaylabs/stripesync/internal/customer/domain"
	paymentdomain "github.com/railzwaylabs/stripesync/internal/payment/domain"
	pricedomain "github.com/railzwaylabs/stripesync/internal/price/domain"
	productdomain "github.com/railzwaylabs/stripesync/internal/product/domain"
	subscriptiondomain "github.com/railzwaylabs/stripesync/internal/subscription/domain"
	userdomain "github.com/railzwaylabs/stripesync/internal/user/domain"
	"go.uber.org/zap"
)

const (
	errorTypeValidation     = "validation_error"
	errorTypeAuthentication = "authentication_error"
	errorTypePermission     = "permission_error"
	errorTypeNotFound       = "not_found_error"
	errorTypeConflict       = "conflict_error"
	errorTypeUnprocessable  = "unprocessable_error"
	errorTypeAPI            = "api_error"
	errorTypeUnavailable    = "unavailable_error"
)

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInvalidRequest = errors.New("invalid_request")
)

// APIError is the body of every error response.
type APIError struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

type fieldError struct {
	err   error
	field string
}

func (e *fieldError) Error() string { return e.err.Error() }
func (e *fieldError) Unwrap() error { return e.err }

func invalidRequestError() error {
	return ErrInvalidRequest
}

func invalidFieldError(field string) error {
	return &fieldError{err: ErrInvalidRequest, field: field}
}

type errorMapping struct {
	status int
	typ    string
	field  string
}

var errorMappings = []struct {
	err error
	errorMapping
}{
	{ErrUnauthorized, errorMapping{http.StatusUnauthorized, errorTypeAuthentication, ""}},
	{ErrInvalidRequest, errorMapping{http.StatusBadRequest, errorTypeValidation, ""}},

	{billingaccountdomain.ErrUnknownOwnerType, errorMapping{http.StatusBadRequest, errorTypeValidation, "owner_type"}},
	{billingaccountdomain.ErrOwnerNotFound, errorMapping{http.StatusBadRequest, errorTypeValidation, "owner_id"}},
	{billingaccountdomain.ErrInvalidOwner, errorMapping{http.StatusBadRequest, errorTypeValidation, "owner_id"}},
	{billingaccountdomain.ErrUnresolvableBillingAccount, errorMapping{http.StatusBadRequest, errorTypeValidation, ""}},
	{billingaccountdomain.ErrNotBillingManager, errorMapping{http.StatusForbidden, errorTypePermission, ""}},

	{customerdomain.ErrUserCreationDisabled, errorMapping{http.StatusUnprocessableEntity, errorTypeUnprocessable, ""}},
	{customerdomain.ErrConflictingCustomerMapping, errorMapping{http.StatusConflict, errorTypeConflict, ""}},
	{customerdomain.ErrMissingEmail, errorMapping{http.StatusUnprocessableEntity, errorTypeUnprocessable, "email"}},
	{customerdomain.ErrInvalidLimit, errorMapping{http.StatusBadRequest, errorTypeValidation, "limit"}},
	{userdomain.ErrUserNotFound, errorMapping{http.StatusNotFound, errorTypeNotFound, ""}},

	{subscriptiondomain.ErrInvalidLimit, errorMapping{http.StatusBadRequest, errorTypeValidation, "limit"}},
	{subscriptiondomain.ErrInvalidStatus, errorMapping{http.StatusBadRequest, errorTypeValidation, "status"}},
	{pricedomain.ErrInvalidLimit, errorMapping{http.StatusBadRequest, errorTypeValidation, "limit"}},
	{productdomain.ErrInvalidLimit, errorMapping{http.StatusBadRequest, errorTypeValidation, "limit"}},

	{paymentdomain.ErrInvalidPriceID, errorMapping{http.StatusBadRequest, errorTypeValidation, "price_id"}},
	{paymentdomain.ErrInvalidSignature, errorMapping{http.StatusBadRequest, errorTypeValidation, ""}},
	{paymentdomain.ErrInvalidPayload, errorMapping{http.StatusBadRequest, errorTypeValidation, ""}},
	{paymentdomain.ErrInvalidEvent, errorMapping{http.StatusBadRequest, errorTypeValidation, ""}},
	{paymentdomain.ErrInvalidConfig, errorMapping{http.StatusServiceUnavailable, errorTypeUnavailable, ""}},
}

// AbortWithError writes the error envelope for err and stops the chain.
// Unmapped errors are logged and reported as a generic api_error.
func AbortWithError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(errorStatus(c, err))
}

func errorStatus(c *gin.Context, err error) (int, ErrorResponse) {
	var perr *paymentdomain.ProviderError
	if errors.As(err, &perr) {
		return http.StatusBadRequest, ErrorResponse{Error: APIError{
			Type:    errorTypeValidation,
			Code:    providerCode(perr),
			Message: perr.Error(),
		}}
	}

	for _, m := range errorMappings {
		if !errors.Is(err, m.err) {
			continue
		}
		apiErr := APIError{
			Type:    m.typ,
			Code:    m.err.Error(),
			Message: err.Error(),
			Field:   m.field,
		}
		var ferr *fieldError
		if errors.As(err, &ferr) {
			apiErr.Field = ferr.field
		}
		return m.status, ErrorResponse{Error: apiErr}
	}

	loggerFromContext(c).Error("request failed", zap.Error(err))
	return http.StatusInternalServerError, ErrorResponse{Error: APIError{
		Type:    errorTypeAPI,
		Code:    "internal_error",
		Message: "internal server error",
	}}
}

func providerCode(err *paymentdomain.ProviderError) string {
	if err.Code != "" {
		return err.Code
	}
	return "provider_error"
}
