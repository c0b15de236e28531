package v1

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/tier-router/internal/gateway"
	"github.com/nulzo/tier-router/internal/server/validator"
	"github.com/nulzo/tier-router/pkg/api"
	"go.uber.org/zap"
)

const (
	TierHeader  = "X-Routing-Tier"
	ModelHeader = "X-Routing-Model"

	sseDone = "data: [DONE]\n\n"
)

type ChatHandler struct {
	service gateway.Service
	logger  *zap.Logger
}

func NewChatHandler(service gateway.Service, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		service: service,
		logger:  logger.Named("chat"),
	}
}

// CreateCompletion serves both response modes of POST /v1/chat/completions.
func (h *ChatHandler) CreateCompletion(c *gin.Context) {
	var req api.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(api.ValidationError(validator.ParseValidationError(err)))
		return
	}

	if req.Stream {
		h.handleStream(c, &req)
		return
	}

	resp, decision, err := h.service.Chat(c.Request.Context(), &req)
	if err != nil {
		_ = c.Error(asAPIError(err))
		return
	}

	c.Header(TierHeader, decision.Tier.String())
	c.Header(ModelHeader, decision.Model)
	c.JSON(http.StatusOK, resp)
}

func (h *ChatHandler) handleStream(c *gin.Context, req *api.ChatRequest) {
	session, err := h.service.StreamChat(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(asAPIError(err))
		return
	}
	defer session.Close()

	// the tier is known once the first event arrives, and it has to go out
	// with the headers
	first, ok := <-session.Events()

	header := c.Writer.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	header.Set(TierHeader, session.Tier().String())

	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()
	c.Writer.Flush()

	if !ok {
		h.logEnd(session)
		return
	}

	pending := &first
	c.Stream(func(w io.Writer) bool {
		var ev gateway.Event
		if pending != nil {
			ev, pending = *pending, nil
		} else {
			next, open := <-session.Events()
			if !open {
				// timed out or cancelled: nothing more is written
				return false
			}
			ev = next
		}
		return h.writeEvent(w, ev)
	})

	h.logEnd(session)
}

// writeEvent reports whether the stream should continue.
func (h *ChatHandler) writeEvent(w io.Writer, ev gateway.Event) bool {
	switch {
	case ev.Done:
		_, _ = io.WriteString(w, sseDone)
		return false

	case ev.Err != nil:
		data, _ := json.Marshal(asAPIError(ev.Err).Response())
		_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
		return false

	case ev.Chunk != nil:
		data, err := json.Marshal(ev.Chunk)
		if err != nil {
			h.logger.Error("Failed to encode chunk", zap.Error(err))
			return false
		}
		_, err = fmt.Fprintf(w, "data: %s\n\n", data)
		return err == nil
	}
	return true
}

func (h *ChatHandler) logEnd(s *gateway.Session) {
	state := s.State()
	if state == gateway.StateCompleted {
		return
	}
	h.logger.Debug("Stream ended early",
		zap.String("session", s.ID()),
		zap.String("state", state.String()),
		zap.Error(s.Err()),
	)
}

// asAPIError keeps typed errors as they are and treats anything else as a
// provider failure.
func asAPIError(err error) *api.Error {
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return api.ProviderError("The upstream provider failed to complete the request", err)
}
