package handler

import (
	"context"
	"net/http"

	"kitsune-client/internal/chat"
	"kitsune-client/internal/model"

	"github.com/gin-gonic/gin"
)

type Identity interface {
	Get() model.SessionToken
	Degraded() bool
}

type Registry interface {
	State() model.RegistryState
	SetActiveTab(name string) bool
	Subscribe(fn func(model.RegistryState)) func()
}

type Chat interface {
	Send(ctx context.Context, text string) error
	Snapshot() chat.Snapshot
	Subscribe(fn func(chat.Snapshot)) func()
}

// Handler serves the session read model to a local renderer.
type Handler struct {
	identity Identity
	registry Registry
	chat     Chat
	suffix   string
}

func New(identity Identity, registry Registry, chat Chat, fileSuffix string) *Handler {
	return &Handler{
		identity: identity,
		registry: registry,
		chat:     chat,
		suffix:   fileSuffix,
	}
}

func (h *Handler) Register(r gin.IRouter) {
	api := r.Group("/api")
	{
		api.GET("/session", h.GetSession)
		api.GET("/ws", h.Socket)

		notebooks := api.Group("/notebooks")
		{
			notebooks.GET("", h.GetNotebooks)
			notebooks.PUT("/active", h.SetActiveTab)
			notebooks.GET("/events", h.NotebookEvents)
		}

		chats := api.Group("/chat")
		{
			chats.GET("", h.GetChat)
			chats.POST("", h.SendMessage)
			chats.GET("/events", h.ChatEvents)
		}
	}
}

func (h *Handler) GetSession(c *gin.Context) {
	c.JSON(http.StatusOK, model.SessionResponse{
		SessionID: h.identity.Get().String(),
		Degraded:  h.identity.Degraded(),
	})
}
