package handler

import (
	"net/http"

	"kitsune-client/internal/model"
	"kitsune-client/internal/view"
	"kitsune-client/pkg/logger"

	"github.com/gin-gonic/gin"
)

// NotebookView is the registry state together with what the viewer shows.
type NotebookView struct {
	State        model.RegistryState `json:"state"`
	Presentation view.Presentation   `json:"presentation"`
}

func (h *Handler) notebookView(state model.RegistryState) NotebookView {
	return NotebookView{State: state, Presentation: view.Compose(state, h.suffix)}
}

func (h *Handler) GetNotebooks(c *gin.Context) {
	c.JSON(http.StatusOK, h.notebookView(h.registry.State()))
}

func (h *Handler) SetActiveTab(c *gin.Context) {
	var req model.ActiveTabRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: err.Error()})
		return
	}

	if !h.registry.SetActiveTab(req.Name) {
		c.JSON(http.StatusNotFound, model.ErrorResponse{Error: "no notebook named " + req.Name})
		return
	}
	logger.Debugf("active tab set to %q", req.Name)
	c.JSON(http.StatusOK, h.notebookView(h.registry.State()))
}

func (h *Handler) NotebookEvents(c *gin.Context) {
	streamUpdates(c, "state",
		h.registry.Subscribe,
		h.registry.State,
		func(s model.RegistryState) uint64 { return s.Version },
		func(s model.RegistryState) any { return h.notebookView(s) },
	)
}
