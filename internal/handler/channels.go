package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/GoPolymarket/apilogs/internal/channel"
	"github.com/GoPolymarket/apilogs/internal/model"
	"github.com/GoPolymarket/apilogs/internal/pkg/apperrors"
	"github.com/GoPolymarket/apilogs/internal/sink"
	"github.com/gin-gonic/gin"
)

// recentReader is implemented by sinks that keep what they emitted.
type recentReader interface {
	Recent(ctx context.Context, limit int) ([]sink.Entry, error)
}

type ChannelHandler struct {
	manager *channel.Manager
}

func NewChannelHandler(manager *channel.Manager) *ChannelHandler {
	return &ChannelHandler{manager: manager}
}

type channelView struct {
	Name      string `json:"name"`
	Redactors int    `json:"redactors"`
	Readable  bool   `json:"readable"`
	Streaming bool   `json:"streaming"`
}

func (h *ChannelHandler) List(c *gin.Context) {
	names := h.manager.Channels()
	out := make([]channelView, 0, len(names))
	for _, name := range names {
		ch, ok := h.manager.Get(name)
		if !ok {
			continue
		}
		_, readable := ch.Sink.(recentReader)
		_, streaming := ch.Sink.(http.Handler)
		out = append(out, channelView{
			Name:      name,
			Redactors: ch.Pipeline.Len(),
			Readable:  readable,
			Streaming: streaming,
		})
	}
	c.JSON(http.StatusOK, out)
}

// Recent lists the latest entries of a channel whose sink retains them.
func (h *ChannelHandler) Recent(c *gin.Context) {
	ch, ok := h.lookup(c)
	if !ok {
		return
	}
	reader, ok := ch.Sink.(recentReader)
	if !ok {
		c.Error(apperrors.NewInvalidRequest("channel " + ch.Name + " does not retain entries"))
		return
	}
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}
	entries, err := reader.Recent(c.Request.Context(), limit)
	if err != nil {
		c.Error(apperrors.New(apperrors.ErrInternal, "read channel failed", err))
		return
	}
	c.JSON(http.StatusOK, entries)
}

// Tail upgrades to a websocket stream for channels with a streaming sink.
func (h *ChannelHandler) Tail(c *gin.Context) {
	ch, ok := h.lookup(c)
	if !ok {
		return
	}
	stream, ok := ch.Sink.(http.Handler)
	if !ok {
		c.Error(apperrors.NewInvalidRequest("channel " + ch.Name + " cannot be tailed"))
		return
	}
	stream.ServeHTTP(c.Writer, c.Request)
}

// Preview shows what a channel would emit for the posted record.
func (h *ChannelHandler) Preview(c *gin.Context) {
	var rec model.LogRecord
	if err := c.ShouldBindJSON(&rec); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}
	out, err := h.manager.Preview(c.Param("name"), &rec)
	if errors.Is(err, channel.ErrUnknownChannel) {
		c.Error(apperrors.NewNotFound(err.Error()))
		return
	}
	if err != nil {
		c.Error(apperrors.New(apperrors.ErrInternal, "preview failed", err))
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *ChannelHandler) lookup(c *gin.Context) (*channel.Channel, bool) {
	ch, ok := h.manager.Get(c.Param("name"))
	if !ok {
		c.Error(apperrors.NewNotFound("unknown channel " + c.Param("name")))
	}
	return ch, ok
}
