package auth

import (
	"fmt"
	"net/http"
)

// Code identifies the failure class of an authentication attempt.
type Code string

const (
	CodeValidation               Code = "validation_error"
	CodeInvalidRequestBody       Code = "invalid_request_body"
	CodeInvalidCredentials       Code = "invalid_credentials"
	CodeProviderDisabled         Code = "provider_disabled"
	CodeEmailNotVerified         Code = "email_not_verified"
	CodeMissingEmailAttribute    Code = "missing_email_attribute"
	CodeSAMLAuthenticationFailed Code = "saml_authentication_failed"
	CodeAccountNotFound          Code = "account_not_found"
	CodeInvitationNotFound       Code = "invitation_not_found"
	CodeOnboardingCompleted      Code = "onboarding_already_completed"
	CodeInvalidToken             Code = "invalid_token"
)

// Error is a terminal authentication failure. Status is the HTTP status the
// caller should see; Message is safe to surface. No failure in this package
// is retried.
type Error struct {
	Code    Code
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// ErrValidation reports missing or malformed request input.
func ErrValidation(message string) *Error {
	return &Error{Code: CodeValidation, Status: http.StatusBadRequest, Message: message}
}

// ErrInvalidRequestBody reports a request body that could not be parsed.
func ErrInvalidRequestBody(err error) *Error {
	return &Error{Code: CodeInvalidRequestBody, Status: http.StatusBadRequest, Message: "Invalid request body.", Err: err}
}

// ErrInvalidCredentials is returned for both an unknown username and a wrong
// password, with no distinction between the two.
func ErrInvalidCredentials() *Error {
	return &Error{Code: CodeInvalidCredentials, Status: http.StatusUnauthorized, Message: "Invalid username or password."}
}

// ErrProviderDisabled reports a login attempt against a provider that is not
// configured.
func ErrProviderDisabled(provider string) *Error {
	return &Error{Code: CodeProviderDisabled, Status: http.StatusForbidden, Message: fmt.Sprintf("Provider %s is not enabled.", provider)}
}

// ErrEmailNotVerified reports that the external provider could not vouch for
// the identity's email address.
func ErrEmailNotVerified(email string) *Error {
	return &Error{Code: CodeEmailNotVerified, Status: http.StatusUnauthorized, Message: fmt.Sprintf("Email %s is not verified.", email)}
}

// ErrMissingEmailAttribute reports an assertion without the configured email
// attribute.
func ErrMissingEmailAttribute() *Error {
	return &Error{
		Code:    CodeMissingEmailAttribute,
		Status:  http.StatusUnauthorized,
		Message: "User email attribute not found. Please review the mapping in the SAML settings.",
	}
}

// ErrSAMLAuthenticationFailed carries the SAML engine's failure reason.
func ErrSAMLAuthenticationFailed(reason string, err error) *Error {
	return &Error{Code: CodeSAMLAuthenticationFailed, Status: http.StatusUnauthorized, Message: reason, Err: err}
}

// ErrAccountNotFound reports an externally authenticated identity with no
// matching local account.
func ErrAccountNotFound() *Error {
	return &Error{Code: CodeAccountNotFound, Status: http.StatusBadRequest, Message: "Invalid authentication request."}
}

// ErrInvitationNotFound reports an invitation-acceptance attempt whose token
// and email do not resolve to a pending invitation.
func ErrInvitationNotFound() *Error {
	return &Error{Code: CodeInvitationNotFound, Status: http.StatusForbidden, Message: "Invitation not found."}
}

// ErrOnboardingCompleted reports a bootstrap signup after accounts already
// exist.
func ErrOnboardingCompleted() *Error {
	return &Error{Code: CodeOnboardingCompleted, Status: http.StatusForbidden, Message: "Onboarding already completed."}
}

// ErrInvalidToken reports an undecodable or tampered session token.
func ErrInvalidToken(err error) *Error {
	return &Error{Code: CodeInvalidToken, Status: http.StatusUnauthorized, Message: "Invalid token.", Err: err}
}
