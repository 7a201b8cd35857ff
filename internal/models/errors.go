package models

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Error codes surfaced to clients.
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeEmptyContent       = "EMPTY_CONTENT"
	CodeConflict           = "CONFLICT"
	CodeForbidden          = "FORBIDDEN"
	CodePendingApproval    = "PENDING_APPROVAL"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeAlreadySignedIn    = "ALREADY_AUTHENTICATED"
	CodeNotFound           = "NOT_FOUND"
	CodeCollaborator       = "COLLABORATOR_ERROR"
	CodeInternal           = "INTERNAL_ERROR"
)

// ErrorResponse represents a standardized API error response
type ErrorResponse struct {
	Error    string `json:"error"`
	Code     string `json:"code,omitempty"`
	Redirect string `json:"redirect,omitempty"`
	Details  string `json:"details,omitempty"`
}

// AppError represents a custom application error
type AppError struct {
	Code     string
	Message  string
	Redirect string
	Err      error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewNotFoundError reports a missing resource without echoing its identifier.
func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
	}
}

func NewValidationError(message string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
	}
}

// NewEmptyContentError is returned when a post or comment has nothing to publish.
func NewEmptyContentError(message string) *AppError {
	return &AppError{
		Code:    CodeEmptyContent,
		Message: message,
	}
}

func NewConflictError(message string) *AppError {
	return &AppError{
		Code:    CodeConflict,
		Message: message,
	}
}

func NewForbiddenError(message string) *AppError {
	return &AppError{
		Code:    CodeForbidden,
		Message: message,
	}
}

// NewPendingApprovalError is returned to authenticated accounts still awaiting moderation.
func NewPendingApprovalError() *AppError {
	return &AppError{
		Code:     CodePendingApproval,
		Message:  "Account is awaiting administrator approval",
		Redirect: "/pending",
	}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Code:     CodeUnauthorized,
		Message:  message,
		Redirect: "/login",
	}
}

func NewInvalidCredentialsError() *AppError {
	return &AppError{
		Code:    CodeInvalidCredentials,
		Message: "Invalid username or password",
	}
}

// NewAlreadySignedInError is returned when a session holder opens register or login.
func NewAlreadySignedInError() *AppError {
	return &AppError{
		Code:     CodeAlreadySignedIn,
		Message:  "Already signed in",
		Redirect: "/feed",
	}
}

// NewCollaboratorError wraps a failure of an outbound dependency.
func NewCollaboratorError(err error) *AppError {
	return &AppError{
		Code:    CodeCollaborator,
		Message: "Upstream service failed",
		Err:     err,
	}
}

func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: "Internal server error",
		Err:     err,
	}
}

// IsCode reports whether err is an AppError carrying code.
func IsCode(err error, code string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// StatusCode maps an error to the HTTP status it is reported with.
func StatusCode(err error) int {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return fiber.StatusInternalServerError
	}
	switch appErr.Code {
	case CodeValidation, CodeEmptyContent:
		return fiber.StatusBadRequest
	case CodeConflict, CodeAlreadySignedIn:
		return fiber.StatusConflict
	case CodeForbidden, CodePendingApproval:
		return fiber.StatusForbidden
	case CodeUnauthorized, CodeInvalidCredentials:
		return fiber.StatusUnauthorized
	case CodeNotFound:
		return fiber.StatusNotFound
	case CodeCollaborator:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// RespondWithError creates a standardized error response
func RespondWithError(c *fiber.Ctx, status int, err error) error {
	var response ErrorResponse

	var appErr *AppError
	if errors.As(err, &appErr) {
		response = ErrorResponse{
			Error:    appErr.Message,
			Code:     appErr.Code,
			Redirect: appErr.Redirect,
		}
		if appErr.Err != nil && status < fiber.StatusInternalServerError {
			response.Details = appErr.Err.Error()
		}
	} else {
		response = ErrorResponse{
			Error: "Internal server error",
			Code:  CodeInternal,
		}
	}

	return c.Status(status).JSON(response)
}

// RespondWithAppError writes err using the status derived from its code.
func RespondWithAppError(c *fiber.Ctx, err error) error {
	return RespondWithError(c, StatusCode(err), err)
}
