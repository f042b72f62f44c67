package model

import (
	"encoding/json"
	"strings"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Part types produced by the controller itself. Any other type coming off
// the stream is kept as-is.
const (
	PartText      = "text"
	PartReasoning = "reasoning"
)

// Part is one element of a message. Data holds the raw increment for part
// types the client does not interpret.
type Part struct {
	Type string          `json:"type"`
	Text string          `json:"text,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

type ChatMessage struct {
	ID    string `json:"id"`
	Role  Role   `json:"role"`
	Parts []Part `json:"parts"`
}

// Text joins the text parts; other part types are not rendered.
func (m ChatMessage) Text() string {
	var b strings.Builder
	for _, p := range m.Parts {
		if p.Type == PartText {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

func (m ChatMessage) Clone() ChatMessage {
	out := m
	if m.Parts != nil {
		out.Parts = make([]Part, len(m.Parts))
		for i, p := range m.Parts {
			out.Parts[i] = p
			if p.Data != nil {
				out.Parts[i].Data = append(json.RawMessage(nil), p.Data...)
			}
		}
	}
	return out
}

func CloneMessages(messages []ChatMessage) []ChatMessage {
	out := make([]ChatMessage, len(messages))
	for i, m := range messages {
		out[i] = m.Clone()
	}
	return out
}

type ChatStatus string

const (
	StatusIdle      ChatStatus = "idle"
	StatusSubmitted ChatStatus = "submitted"
	StatusStreaming ChatStatus = "streaming"
	StatusError     ChatStatus = "error"
)

// InFlight reports whether an exchange is open.
func (s ChatStatus) InFlight() bool {
	return s == StatusSubmitted || s == StatusStreaming
}

// Increment kinds of the chat stream.
const (
	ChunkStart          = "start"
	ChunkFinish         = "finish"
	ChunkStartStep      = "start-step"
	ChunkFinishStep     = "finish-step"
	ChunkTextStart      = "text-start"
	ChunkTextDelta      = "text-delta"
	ChunkTextEnd        = "text-end"
	ChunkReasoningStart = "reasoning-start"
	ChunkReasoningDelta = "reasoning-delta"
	ChunkReasoningEnd   = "reasoning-end"
	ChunkError          = "error"
)

// ChatChunk is one streamed increment. Raw keeps the original payload.
type ChatChunk struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	MessageID string          `json:"messageId,omitempty"`
	Delta     string          `json:"delta,omitempty"`
	Text      string          `json:"text,omitempty"`
	ErrorText string          `json:"errorText,omitempty"`
	Raw       json.RawMessage `json:"-"`
}

// DeltaText returns the increment text; both "delta" and "text" carry it
// depending on the server version.
func (c ChatChunk) DeltaText() string {
	if c.Delta != "" {
		return c.Delta
	}
	return c.Text
}

// IsLifecycle reports kinds that frame a message without adding content.
func (c ChatChunk) IsLifecycle() bool {
	switch c.Type {
	case ChunkStart, ChunkFinish, ChunkStartStep, ChunkFinishStep,
		ChunkTextStart, ChunkTextEnd, ChunkReasoningStart, ChunkReasoningEnd:
		return true
	}
	return false
}
