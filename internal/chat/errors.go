package chat

import "errors"

var (
	ErrBusy         = errors.New("an exchange is already in flight")
	ErrEmptyInput   = errors.New("message is empty")
	ErrStreamClosed = errors.New("chat stream ended without completion marker")
)

// StreamError is a failure reported by the assistant inside the stream, as
// opposed to a transport failure.
type StreamError struct {
	Text string
}

func (e *StreamError) Error() string {
	if e.Text == "" {
		return "assistant reported an error"
	}
	return "assistant reported an error: " + e.Text
}
