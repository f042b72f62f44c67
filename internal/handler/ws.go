package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"kitsune-client/internal/chat"
	"kitsune-client/internal/model"
	"kitsune-client/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	// the API only listens on loopback and CORS already gates browsers
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Socket carries both read models and the renderer's commands over one
// websocket. The connection starts with the current state and chat frames.
func (h *Handler) Socket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warnf("websocket upgrade failed: %v", err)
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	states := make(chan model.RegistryState)
	chats := make(chan chat.Snapshot)
	unsubState := h.registry.Subscribe(forward(ctx, states))
	defer unsubState()
	unsubChat := h.chat.Subscribe(forward(ctx, chats))
	defer unsubChat()

	replies := make(chan model.WSFrame, 8)
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		defer cancel()
		for {
			var msg model.WSMessage
			if err := conn.ReadJSON(&msg); err != nil {
				logger.Debugf("websocket read ended: %v", err)
				return
			}
			reply, ok := h.command(ctx, msg)
			if !ok {
				continue
			}
			select {
			case replies <- reply:
			case <-ctx.Done():
				return
			}
		}
	}()

	h.writeLoop(ctx, conn, states, chats, replies)
	cancel()
	conn.Close()
	<-readDone
}

func (h *Handler) writeLoop(
	ctx context.Context,
	conn *websocket.Conn,
	states <-chan model.RegistryState,
	chats <-chan chat.Snapshot,
	replies <-chan model.WSFrame,
) {
	write := func(f model.WSFrame) bool {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(f); err != nil {
			logger.Debugf("websocket write failed: %v", err)
			return false
		}
		return true
	}

	state := h.registry.State()
	snap := h.chat.Snapshot()
	if !write(model.WSFrame{Type: "state", Data: h.notebookView(state)}) ||
		!write(model.WSFrame{Type: "chat", Data: snap}) {
		return
	}
	seenState, seenChat := state.Version, snap.Version

	ticker := time.NewTicker(KeepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case s := <-states:
			if s.Version <= seenState {
				continue
			}
			seenState = s.Version
			if !write(model.WSFrame{Type: "state", Data: h.notebookView(s)}) {
				return
			}
		case s := <-chats:
			if s.Version <= seenChat {
				continue
			}
			seenChat = s.Version
			if !write(model.WSFrame{Type: "chat", Data: s}) {
				return
			}
		case f := <-replies:
			if !write(f) {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// command runs one renderer command. Successful sends and selections need
// no reply; their effect arrives as the next chat or state frame.
func (h *Handler) command(ctx context.Context, msg model.WSMessage) (model.WSFrame, bool) {
	switch msg.Type {
	case "ping":
		return model.WSFrame{Type: "pong"}, true
	case "send":
		err := h.chat.Send(ctx, msg.Message)
		if err == nil {
			return model.WSFrame{}, false
		}
		if !errors.Is(err, chat.ErrBusy) && !errors.Is(err, chat.ErrEmptyInput) {
			logger.Warnf("websocket send failed: %v", err)
		}
		return model.WSFrame{Type: "error", Error: err.Error()}, true
	case "select":
		if msg.Name == "" {
			return model.WSFrame{Type: "error", Error: "name is required"}, true
		}
		if !h.registry.SetActiveTab(msg.Name) {
			return model.WSFrame{Type: "error", Error: "no notebook named " + msg.Name}, true
		}
		return model.WSFrame{}, false
	default:
		return model.WSFrame{Type: "error", Error: "unknown message type " + msg.Type}, true
	}
}
