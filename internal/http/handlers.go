package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/portfolio-rag/internal/chat"
)

// handleRoot reports that the API is up.
func (s *Server) handleRoot(c echo.Context) error {
	return c.JSON(http.StatusOK, RootResponse{
		Message: "Portfolio RAG Chatbot API",
		Status:  "running",
	})
}

// handleChat answers a question from the indexed documents.
func (s *Server) handleChat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid chat request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	answer, err := s.service.Ask(c.Request().Context(), req.Message)
	switch {
	case errors.Is(err, chat.ErrEmptyMessage):
		return echo.NewHTTPError(http.StatusBadRequest, "Message cannot be empty")
	case errors.Is(err, chat.ErrStoreNotInitialized):
		return echo.NewHTTPError(http.StatusInternalServerError, chat.ErrStoreNotInitialized.Error()).SetInternal(err)
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, "Error processing request: "+err.Error()).SetInternal(err)
	}

	return c.JSON(http.StatusOK, ChatResponse{
		Answer:  answer.Answer,
		Sources: answer.Sources,
	})
}

// handleHealth reports store and LLM readiness. It always responds 200.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, s.service.Health(c.Request().Context()))
}
