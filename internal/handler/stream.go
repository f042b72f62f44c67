package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"kitsune-client/internal/utils"
	"kitsune-client/pkg/logger"

	"github.com/gin-gonic/gin"
)

// KeepAlive is how often an idle event stream gets a comment line.
var KeepAlive = 15 * time.Second

// streamUpdates writes the current value and then every newer one as SSE
// events until the client goes away. Values a slow client skips are the ones
// the subscription itself merges.
func streamUpdates[T any](
	c *gin.Context,
	event string,
	subscribe func(func(T)) func(),
	current func() T,
	version func(T) uint64,
	render func(T) any,
) {
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	updates := make(chan T)
	unsubscribe := subscribe(forward(ctx, updates))
	defer unsubscribe()

	w := utils.NewSSEWriter(c.Writer)
	c.Status(http.StatusOK)

	send := func(v T) bool {
		data, err := json.Marshal(render(v))
		if err != nil {
			logger.Errorf("failed to marshal %s event: %v", event, err)
			return true
		}
		if err := w.Write(event, string(data)); err != nil {
			logger.Debugf("%s stream closed: %v", event, err)
			return false
		}
		return true
	}

	last := current()
	if !send(last) {
		return
	}
	seen := version(last)

	ticker := time.NewTicker(KeepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case v := <-updates:
			if version(v) <= seen {
				continue
			}
			seen = version(v)
			if !send(v) {
				return
			}
		case <-ticker.C:
			if err := w.Comment("keep-alive"); err != nil {
				return
			}
		}
	}
}

// forward hands each value to out, waiting until it is taken or ctx ends.
// Blocking here only holds back this observer's own mailbox.
func forward[T any](ctx context.Context, out chan<- T) func(T) {
	return func(v T) {
		select {
		case out <- v:
		case <-ctx.Done():
		}
	}
}
