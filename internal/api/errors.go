package api

import (
	"errors"
	"net/http"
)

// AppError is an error that maps directly to an HTTP response.
// Detail is serialized as {"detail": "..."} for client compatibility.
type AppError struct {
	Code   int    `json:"-"`
	Detail string `json:"detail"`
}

func (e *AppError) Error() string {
	return e.Detail
}

var (
	ErrBadRequest         = &AppError{Code: http.StatusBadRequest, Detail: "bad request"}
	ErrUnauthorized       = &AppError{Code: http.StatusUnauthorized, Detail: "Could not validate credentials"}
	ErrInvalidCredentials = &AppError{Code: http.StatusUnauthorized, Detail: "Incorrect email or password"}
	ErrEmailAlreadyExists = &AppError{Code: http.StatusBadRequest, Detail: "Email already registered"}
	ErrQuotaExceeded      = &AppError{Code: http.StatusTooManyRequests, Detail: "Monthly free tier limit reached. Upgrade to premium for unlimited usage"}
	ErrFeatureRestricted  = &AppError{Code: http.StatusForbidden, Detail: "Free tier is limited to 3 questions per quiz"}
	ErrUpstreamTimeout    = &AppError{Code: http.StatusGatewayTimeout, Detail: "AI service timed out"}
	ErrNotConfigured      = &AppError{Code: http.StatusInternalServerError, Detail: "AI service is not configured"}
	ErrInternalServer     = &AppError{Code: http.StatusInternalServerError, Detail: "internal server error"}
)

func NewBadRequestError(detail string) *AppError {
	return &AppError{Code: http.StatusBadRequest, Detail: detail}
}

func NewValidationError(detail string) *AppError {
	return &AppError{Code: http.StatusBadRequest, Detail: detail}
}

func NewUpstreamError(detail string) *AppError {
	return &AppError{Code: http.StatusInternalServerError, Detail: detail}
}

// HandleError writes err as a JSON error response. Non-AppError values are
// masked as a generic 500 so internal messages never leak to clients.
func HandleError(w http.ResponseWriter, err error) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		JSONDetail(w, appErr.Code, appErr.Detail)
		return
	}
	JSONDetail(w, http.StatusInternalServerError, "internal server error")
}
