package conversation

import "errors"

var (
	// ErrNotFound means the public token does not resolve to a conversation.
	ErrNotFound = errors.New("conversation not found")
	// ErrValidation wraps malformed input; nothing has been written when it is returned.
	ErrValidation = errors.New("invalid input")
)
