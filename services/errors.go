package services

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
)

// APIError is a domain error with a fixed outward severity. Field is set for
// validation errors scoped to a single input field.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"error"`
}

func (e *APIError) Error() string { return e.Message }

var (
	ErrEmailAlreadyRegistered = &APIError{Status: 400, Code: "EmailAlreadyRegistered", Field: "email", Message: "email is already registered"}
	ErrEmailAlreadyVerified   = &APIError{Status: 400, Code: "EmailAlreadyVerified", Field: "email", Message: "email is already verified"}
	ErrEmailNotFound          = &APIError{Status: 404, Code: "EmailNotFound", Field: "email", Message: "no pending verification for this email"}
	ErrEmailNotVerified       = &APIError{Status: 400, Code: "EmailNotVerified", Field: "email", Message: "email has not passed OTP verification"}
	ErrOTPVerificationFailed  = &APIError{Status: 400, Code: "OTPVerificationFailed", Field: "otp", Message: "OTP verification failed"}
	ErrUsernameTaken          = &APIError{Status: 400, Code: "UsernameTaken", Field: "username", Message: "username is already taken"}
	ErrNoActiveAccount        = &APIError{Status: 401, Code: "NoActiveAccount", Message: "no active account found with the given credentials"}
	ErrWrongPassword          = &APIError{Status: 400, Code: "WrongPassword", Field: "password", Message: "password does not match"}

	ErrInvalidRequest       = &APIError{Status: 400, Code: "InvalidRequest", Message: "invalid request"}
	ErrCreatorCannotApply   = &APIError{Status: 400, Code: "InvalidRequest", Message: "the competition creator cannot apply"}
	ErrAlreadyApplied       = &APIError{Status: 409, Code: "AlreadyApplied", Message: "already applied to this competition"}
	ErrAlreadyBeParticipant = &APIError{Status: 409, Code: "AlreadyBeParticipant", Message: "already participating in this competition"}
	ErrNotApplied           = &APIError{Status: 404, Code: "NotApplied", Message: "application not found"}
	ErrAccessIDTaken        = &APIError{Status: 400, Code: "AccessIDTaken", Field: "access_id", Message: "access id is already in use for this competition"}
	ErrAccessIDRequired     = &APIError{Status: 400, Code: "InvalidRequest", Field: "access_id", Message: "access id is required"}
	ErrAccessPWRequired     = &APIError{Status: 400, Code: "InvalidRequest", Field: "access_password", Message: "access password is required"}
	ErrAccessPWMismatch     = &APIError{Status: 400, Code: "InvalidRequest", Field: "access_password", Message: "access password does not match"}
	ErrParticipantNotFound  = &APIError{Status: 400, Code: "InvalidRequest", Field: "access_id", Message: "no participant with this access id"}

	ErrCompetitionNotFound   = &APIError{Status: 404, Code: "NotFound", Message: "competition not found"}
	ErrUsernameNotFound      = &APIError{Status: 400, Code: "InvalidRequest", Field: "username", Message: "no account with this username"}
	ErrAlreadyManager        = &APIError{Status: 400, Code: "InvalidRequest", Field: "username", Message: "account is already invited as a manager"}
	ErrManagementNotFound    = &APIError{Status: 404, Code: "NotFound", Message: "management not found"}
	ErrCompetitionProtected  = &APIError{Status: 409, Code: "CompetitionProtected", Message: "competition still has participants or teams"}
	ErrInvalidStatus         = &APIError{Status: 400, Code: "InvalidRequest", Field: "status", Message: "invalid competition status"}
	ErrDisplayedNameRequired = &APIError{Status: 400, Code: "InvalidRequest", Field: "displayed_name", Message: "displayed name is required"}
)

// Respond writes a domain error with its designated status, or a generic 500
// for anything unexpected. Raw storage errors never leak to clients.
func Respond(c *fiber.Ctx, err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return c.Status(apiErr.Status).JSON(apiErr)
	}
	log.Printf("ERROR %s %s: %v", c.Method(), c.Path(), err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
}
