package handler

import (
	"errors"
	"net/http"

	"kitsune-client/internal/chat"
	"kitsune-client/internal/model"

	"github.com/gin-gonic/gin"
)

func (h *Handler) GetChat(c *gin.Context) {
	c.JSON(http.StatusOK, h.chat.Snapshot())
}

// SendMessage starts an exchange; the reply arrives on the chat event
// stream.
func (h *Handler) SendMessage(c *gin.Context) {
	var req model.SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: err.Error()})
		return
	}

	err := h.chat.Send(c.Request.Context(), req.Message)
	switch {
	case errors.Is(err, chat.ErrEmptyInput):
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: err.Error()})
		return
	case errors.Is(err, chat.ErrBusy):
		c.JSON(http.StatusConflict, model.ErrorResponse{Error: err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, h.chat.Snapshot())
}

func (h *Handler) ChatEvents(c *gin.Context) {
	streamUpdates(c, "chat",
		h.chat.Subscribe,
		h.chat.Snapshot,
		func(s chat.Snapshot) uint64 { return s.Version },
		func(s chat.Snapshot) any { return s },
	)
}
