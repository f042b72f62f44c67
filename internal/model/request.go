package model

// ChatRequest is the body of a chat exchange sent to the backend. ID is the
// session token so the backend can find session-scoped history and tools.
type ChatRequest struct {
	ID       string        `json:"id"`
	Messages []ChatMessage `json:"messages"`
}

// SendRequest is accepted by the loopback API.
type SendRequest struct {
	Message string `json:"message"`
}

type ActiveTabRequest struct {
	Name string `json:"name" binding:"required"`
}

// WSMessage is a command sent by the renderer over the socket: "send" with
// Message, "select" with Name, or "ping".
type WSMessage struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Name    string `json:"name,omitempty"`
}
