package chat

import (
	"context"

	"kitsune-client/internal/model"
)

// Request is what an exchange sends: the session and the whole log so far,
// ending with the new user message.
type Request struct {
	SessionID model.SessionToken
	Messages  []model.ChatMessage
}

// Transport opens one streamed exchange with the assistant.
type Transport interface {
	Open(ctx context.Context, req Request) (Stream, error)
}

// Stream yields increments in arrival order. Recv returns io.EOF once the
// stream completed normally; any other error is a transport failure.
type Stream interface {
	Recv() (model.ChatChunk, error)
	Close() error
}
