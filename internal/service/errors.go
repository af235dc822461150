package service

import "fmt"

type Kind int

const (
	KindBadRequest Kind = iota + 1
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindServer
)

func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "bad_request"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindServer:
		return "server_error"
	}
	return "unknown"
}

// Error is a failure the API layer can show to the client. Message is the
// client-facing text; Err, when set, is the underlying cause and is only
// logged.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

const (
	MsgAllFieldsRequired   = "All fields are required"
	MsgPasswordsMismatch   = "Passwords do not match"
	MsgEmailRegistered     = "Email already registered"
	MsgInvalidRole         = "Invalid role"
	MsgCredentialsRequired = "Email and password required"
	MsgEmailRequired       = "Email is required"
	MsgUserNotFound        = "User not found"
	MsgInvalidCredentials  = "Invalid credentials"
	MsgCurrentPasswordBad  = "Current password is incorrect"
	MsgInvalidResetToken   = "Invalid or expired token"
	MsgResetTokenExpired   = "Token has expired"
	MsgEmailNotSent        = "Email could not be sent."
	MsgServerError         = "Server error"
	MsgNoToken             = "Not authorized, no token"
	MsgTokenFailed         = "Not authorized, token failed"
	MsgForbidden           = "You do not have permission"
)

func badRequest(msg string) *Error { return &Error{Kind: KindBadRequest, Message: msg} }

func unauthenticated(msg string) *Error { return &Error{Kind: KindUnauthenticated, Message: msg} }

func notFound(msg string) *Error { return &Error{Kind: KindNotFound, Message: msg} }

func internal(msg string, err error) *Error {
	return &Error{Kind: KindServer, Message: msg, Err: err}
}
