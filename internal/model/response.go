package model

// ViewerResponse is returned by the backend for the viewer base address.
type ViewerResponse struct {
	URL string `json:"url"`
}

type SessionResponse struct {
	SessionID string `json:"session_id"`
	Degraded  bool   `json:"degraded"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// WSFrame is pushed to the renderer over the socket. Type is "state",
// "chat", "pong" or "error".
type WSFrame struct {
	Type  string `json:"type"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}
