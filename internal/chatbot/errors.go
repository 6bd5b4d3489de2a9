package chatbot

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyMessage rejects a send whose text is blank
	ErrEmptyMessage = errors.New("message is empty")
	// ErrEmptySessionID rejects a load without a session id
	ErrEmptySessionID = errors.New("session id is empty")
	// ErrBusy rejects an operation while another exchange is outstanding
	ErrBusy = errors.New("another request is in progress")
	// ErrStale reports a result dropped because the conversation was reset
	// while the request was in flight
	ErrStale = errors.New("conversation changed while the request was in flight")
)

// SendError reports a failed exchange. The user message stays in the
// session; no assistant message was added.
type SendError struct {
	UserMessageID string
	Err           error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("failed to send message %s: %v", e.UserMessageID, e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// LoadError reports a failed history reload. The session is unchanged.
type LoadError struct {
	SessionID string
	Err       error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load conversation %s: %v", e.SessionID, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
