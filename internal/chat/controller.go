package chat

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"kitsune-client/internal/broadcast"
	"kitsune-client/internal/model"
	"kitsune-client/pkg/logger"

	"github.com/google/uuid"
)

// Snapshot is what observers receive after every change.
type Snapshot struct {
	Messages []model.ChatMessage `json:"messages"`
	Status   model.ChatStatus    `json:"status"`
	Error    string              `json:"error,omitempty"`
	Version  uint64              `json:"version"`

	// presentation flags
	Pending bool `json:"pending"`
	Empty   bool `json:"empty"`
	CanSend bool `json:"can_send"`
}

// Metrics receives exchange activity.
type Metrics interface {
	ExchangeFinished(status model.ChatStatus, elapsed time.Duration)
	IncrementApplied(kind string)
}

type noMetrics struct{}

func (noMetrics) ExchangeFinished(model.ChatStatus, time.Duration) {}
func (noMetrics) IncrementApplied(string)                          {}

// Controller owns the message log and the exchange status. At most one
// exchange is in flight.
type Controller struct {
	transport Transport
	session   model.SessionToken
	metrics   Metrics

	mu       sync.Mutex
	messages []model.ChatMessage
	status   model.ChatStatus
	err      error
	version  uint64
	current  int    // index of the streaming assistant message, -1 if none
	nextID   string // id announced by the stream before any content
	done     chan struct{}

	bus *broadcast.Broadcaster[Snapshot]
}

// sameStatus lets observers skip content updates but never a status change.
func sameStatus(pending, next Snapshot) bool {
	return pending.Status == next.Status
}

func NewController(transport Transport, session model.SessionToken) *Controller {
	return &Controller{
		transport: transport,
		session:   session,
		metrics:   noMetrics{},
		status:    model.StatusIdle,
		current:   -1,
		bus:       broadcast.NewMerging(sameStatus),
	}
}

// WithMetrics sets where exchange activity is recorded. Call before Send.
func (c *Controller) WithMetrics(m Metrics) *Controller {
	if m != nil {
		c.metrics = m
	}
	return c
}

// Send appends text as a user message and starts an exchange. Empty input
// and sends while an exchange is in flight are rejected without any change.
// The exchange outlives ctx's cancellation; only its values are kept.
func (c *Controller) Send(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyInput
	}

	c.mu.Lock()
	if c.status.InFlight() {
		c.mu.Unlock()
		return ErrBusy
	}

	c.messages = append(c.messages, model.ChatMessage{
		ID:    uuid.NewString(),
		Role:  model.RoleUser,
		Parts: []model.Part{{Type: model.PartText, Text: text}},
	})
	c.status = model.StatusSubmitted
	c.err = nil
	c.current = -1
	c.nextID = ""
	done := make(chan struct{})
	c.done = done
	req := Request{SessionID: c.session, Messages: model.CloneMessages(c.messages)}
	c.publishLocked()
	c.mu.Unlock()

	go c.exchange(context.WithoutCancel(ctx), req, done)
	return nil
}

func (c *Controller) exchange(ctx context.Context, req Request, done chan struct{}) {
	defer close(done)

	start := time.Now()
	final := model.StatusError
	defer func() {
		c.metrics.ExchangeFinished(final, time.Since(start))
	}()

	log := logger.WithField("session", c.session)
	stream, err := c.transport.Open(ctx, req)
	if err != nil {
		c.fail(err)
		return
	}
	defer stream.Close()

	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			c.finish()
			final = model.StatusIdle
			log.Debug("chat exchange completed")
			return
		}
		if err != nil {
			c.fail(err)
			return
		}
		if chunk.Type == model.ChunkError {
			c.fail(&StreamError{Text: chunk.ErrorText})
			return
		}
		c.apply(chunk)
		c.metrics.IncrementApplied(chunk.Type)
	}
}

// apply folds one increment into the log. The assistant message is created
// by the first increment that carries content; lifecycle increments before it
// only move the status to streaming and may announce the message id.
func (c *Controller) apply(chunk model.ChatChunk) {
	c.mu.Lock()
	defer c.mu.Unlock()

	changed := false
	if c.status != model.StatusStreaming {
		c.status = model.StatusStreaming
		changed = true
	}

	if chunk.IsLifecycle() {
		if c.current < 0 && c.nextID == "" && chunk.MessageID != "" {
			c.nextID = chunk.MessageID
		}
		if changed {
			c.publishLocked()
		}
		return
	}

	if c.current < 0 {
		id := c.nextID
		if id == "" {
			id = chunk.MessageID
		}
		if id == "" {
			id = uuid.NewString()
		}
		c.messages = append(c.messages, model.ChatMessage{ID: id, Role: model.RoleAssistant})
		c.current = len(c.messages) - 1
	}

	msg := &c.messages[c.current]
	switch chunk.Type {
	case model.ChunkTextDelta:
		appendDelta(msg, model.PartText, chunk.DeltaText())
	case model.ChunkReasoningDelta:
		appendDelta(msg, model.PartReasoning, chunk.DeltaText())
	default:
		msg.Parts = append(msg.Parts, model.Part{Type: chunk.Type, Data: rawOf(chunk)})
	}
	c.publishLocked()
}

// appendDelta extends the trailing part of kind, or starts a new one.
func appendDelta(msg *model.ChatMessage, kind, delta string) {
	if n := len(msg.Parts); n > 0 && msg.Parts[n-1].Type == kind {
		msg.Parts[n-1].Text += delta
		return
	}
	msg.Parts = append(msg.Parts, model.Part{Type: kind, Text: delta})
}

func rawOf(chunk model.ChatChunk) json.RawMessage {
	if len(chunk.Raw) > 0 {
		return append(json.RawMessage(nil), chunk.Raw...)
	}
	data, err := json.Marshal(chunk)
	if err != nil {
		return nil
	}
	return data
}

func (c *Controller) finish() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.status = model.StatusIdle
	c.current = -1
	c.publishLocked()
}

func (c *Controller) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	logger.WithField("session", c.session).Warnf("chat exchange failed: %v", err)
	c.status = model.StatusError
	c.err = err
	c.current = -1
	c.publishLocked()
}

func (c *Controller) publishLocked() {
	c.version++
	c.bus.Publish(c.snapshotLocked())
}

func (c *Controller) snapshotLocked() Snapshot {
	s := Snapshot{
		Messages: model.CloneMessages(c.messages),
		Status:   c.status,
		Version:  c.version,
		Pending:  c.status.InFlight(),
		Empty:    len(c.messages) == 0,
		CanSend:  !c.status.InFlight(),
	}
	if c.err != nil {
		s.Error = c.err.Error()
	}
	return s
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) Messages() []model.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return model.CloneMessages(c.messages)
}

func (c *Controller) Status() model.ChatStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Err returns the failure of the last exchange, nil unless status is error.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Controller) Subscribe(fn func(Snapshot)) func() {
	return c.bus.Subscribe(fn)
}

// Wait blocks until no exchange is in flight or ctx is done.
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()

	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
