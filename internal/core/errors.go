package core

// Code is a machine-readable error code shared between server and clients.
// The set is closed; transports must not invent codes outside it.
type Code string

const (
	// Auth codes are fatal to the connection attempt.
	CodeAuthRequired Code = "AUTH_REQUIRED"
	CodeInvalidToken Code = "INVALID_TOKEN"
	CodeTokenExpired Code = "TOKEN_EXPIRED"
	CodeUserNotFound Code = "USER_NOT_FOUND"
	CodeUserInactive Code = "USER_INACTIVE"

	// Authorization codes are fatal only to the offending action.
	CodeForbidden  Code = "FORBIDDEN"
	CodeNotMember  Code = "NOT_MEMBER"
	CodeInvalidOrg Code = "INVALID_ORG"

	// Validation.
	CodeInvalidPayload Code = "INVALID_PAYLOAD"

	// Resource codes.
	CodeChannelNotFound Code = "CHANNEL_NOT_FOUND"
	CodeChannelDisabled Code = "CHANNEL_DISABLED"
	CodeMessageNotFound Code = "MESSAGE_NOT_FOUND"
	CodeNotFound        Code = "NOT_FOUND"

	// Transient/infrastructure failures.
	CodeServerError Code = "SERVER_ERROR"
)

// Error wraps a code and human-readable message.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// NewError builds a domain error with the given code.
func NewError(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}
