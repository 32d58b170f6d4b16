package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"competitive-intel-agent/internal/intel/dto"
	"competitive-intel-agent/internal/intel/service"
	"competitive-intel-agent/internal/intel/store"
	"competitive-intel-agent/pkg/logger"
)

// ChatHandler handles HTTP requests for grounded company Q&A.
type ChatHandler struct {
	chat   *service.ChatService
	logger *logger.Logger
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(chat *service.ChatService, logger *logger.Logger) *ChatHandler {
	return &ChatHandler{chat: chat, logger: logger}
}

// RegisterRoutes registers the chat routes to the Echo group.
func (h *ChatHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/chat/:companyId", h.Chat)
}

// Chat answers a question about the company from its indexed corpus and
// reports the sources the answer drew from.
func (h *ChatHandler) Chat(c echo.Context) error {
	var req dto.ChatRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request payload"})
	}

	resp, err := h.chat.Answer(c.Request().Context(), c.Param("companyId"), req.Query)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyQuestion):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		case errors.Is(err, store.ErrNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "Company not found"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
		}
	}

	return c.JSON(http.StatusOK, resp)
}
