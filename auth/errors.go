package auth

import "net/http"

// Error is an authentication failure with the HTTP status and error type
// it is reported with.
type Error struct {
	Type    string
	Status  int
	Message string
}

func (e *Error) Error() string { return e.Message }

var (
	ErrWrongCredentials   = &Error{Type: "WRONG_CREDENTIALS", Status: http.StatusUnauthorized, Message: "wrong credentials"}
	ErrMissingCredentials = &Error{Type: "MISSING_CREDENTIALS", Status: http.StatusBadRequest, Message: "missing credentials"}
	ErrTokenCreation      = &Error{Type: "TOKEN_CREATION", Status: http.StatusInternalServerError, Message: "token creation"}
	ErrInvalidToken       = &Error{Type: "INVALID_TOKEN", Status: http.StatusBadRequest, Message: "invalid token"}
	ErrInvalidSignature   = &Error{Type: "INVALID_SIGNATURE", Status: http.StatusUnauthorized, Message: "invalid signature"}
	ErrInvalidClaims      = &Error{Type: "INVALID_CLAIMS", Status: http.StatusUnauthorized, Message: "invalid claims"}
	ErrExpiredSignature   = &Error{Type: "EXPIRED_SIGNATURE", Status: http.StatusUnauthorized, Message: "expired signature"}
)
