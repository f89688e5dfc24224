package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/GoPolymarket/apilogs/internal/model"
	"github.com/GoPolymarket/apilogs/internal/pkg/apperrors"
	"github.com/GoPolymarket/apilogs/internal/repository"
	"github.com/gin-gonic/gin"
)

// CallReader is the read side of the call summary store.
type CallReader interface {
	ListCallSummaries(ctx context.Context, f model.CallFilter) ([]*model.CallSummary, error)
	GetCallSummary(ctx context.Context, correlationID string) (*model.CallSummary, error)
}

type CallHandler struct {
	store CallReader
}

func NewCallHandler(store CallReader) *CallHandler {
	return &CallHandler{store: store}
}

type callView struct {
	*model.CallSummary
	DurationMs *int64 `json:"duration_ms,omitempty"`
}

func toCallView(s *model.CallSummary) callView {
	return callView{CallSummary: s, DurationMs: s.DurationMs()}
}

func (h *CallHandler) List(c *gin.Context) {
	filter := model.CallFilter{
		Path:   c.Query("path"),
		Method: c.Query("method"),
		Limit:  100,
	}
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			filter.Limit = parsed
		}
	}
	if raw := c.Query("is_error"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			c.Error(apperrors.NewInvalidRequest("is_error must be a boolean"))
			return
		}
		filter.IsError = &v
	}
	var err error
	if filter.From, err = timeQuery(c, "from"); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}
	if filter.To, err = timeQuery(c, "to"); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}

	summaries, err := h.store.ListCallSummaries(c.Request.Context(), filter)
	if err != nil {
		c.Error(apperrors.New(apperrors.ErrInternal, "list calls failed", err))
		return
	}
	out := make([]callView, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, toCallView(s))
	}
	c.JSON(http.StatusOK, out)
}

// Get returns one call with the entities it touched.
func (h *CallHandler) Get(c *gin.Context) {
	summary, err := h.store.GetCallSummary(c.Request.Context(), c.Param("id"))
	if errors.Is(err, repository.ErrNotFound) {
		c.Error(apperrors.NewNotFound("call not found"))
		return
	}
	if err != nil {
		c.Error(apperrors.New(apperrors.ErrInternal, "get call failed", err))
		return
	}
	c.JSON(http.StatusOK, toCallView(summary))
}

func timeQuery(c *gin.Context, key string) (*time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	t, err := parseTime(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return &t, nil
}

func parseTime(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if unix, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("invalid time format")
}
