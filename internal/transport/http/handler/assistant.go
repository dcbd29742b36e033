package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Yerassyl-hub/backofadilai/internal/ai"
	appsvc "github.com/Yerassyl-hub/backofadilai/internal/app"
	"github.com/Yerassyl-hub/backofadilai/internal/transport/http/response"
)

// llmModelHeader echoes which cascade candidate actually answered.
const llmModelHeader = "X-LLM-Model"

type AssistantHandler struct {
	assistant *appsvc.AssistantService
}

type AskRequest struct {
	TenantID    string   `json:"tenant_id" binding:"required"`
	Query       string   `json:"query" binding:"required"`
	Model       string   `json:"model"`
	Temperature *float64 `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role" binding:"required,oneof=system user assistant"`
	Content string `json:"content" binding:"required"`
}

type ChatRequest struct {
	TenantID    string        `json:"tenant_id" binding:"required"`
	Messages    []chatMessage `json:"messages"`
	Question    string        `json:"question"`
	RawText     string        `json:"raw_text"`
	Model       string        `json:"model"`
	Temperature *float64      `json:"temperature"`
}

func NewAssistantHandler(assistant *appsvc.AssistantService) *AssistantHandler {
	return &AssistantHandler{assistant: assistant}
}

func (h *AssistantHandler) Ask(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	result, err := h.assistant.Ask(c.Request.Context(), appsvc.AskInput{
		TenantID:    req.TenantID,
		Query:       req.Query,
		Model:       req.Model,
		Temperature: req.Temperature,
	})
	if err != nil {
		writeAssistantError(c, err)
		return
	}

	c.Header(llmModelHeader, result.Model)
	response.OK(c, result)
}

func (h *AssistantHandler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	if len(req.Messages) == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "messages cannot be empty")
		return
	}

	messages := make([]ai.ChatMessage, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = ai.ChatMessage{Role: m.Role, Content: m.Content}
	}

	result, err := h.assistant.Chat(c.Request.Context(), appsvc.ChatInput{
		TenantID:    req.TenantID,
		Messages:    messages,
		Question:    req.Question,
		RawText:     req.RawText,
		Model:       req.Model,
		Temperature: req.Temperature,
	})
	if err != nil {
		writeAssistantError(c, err)
		return
	}

	c.Header(llmModelHeader, result.Model)
	response.OK(c, result)
}

func writeAssistantError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, appsvc.ErrInvalidInput), errors.Is(err, ai.ErrInvalidInput):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, ai.ErrService), errors.Is(err, ai.ErrConfiguration):
		response.Error(c, http.StatusBadGateway, response.CodeUpstreamLLM, "upstream LLM error: "+err.Error())
	default:
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "assistant request failed")
	}
}
