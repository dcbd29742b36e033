package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Yerassyl-hub/backofadilai/internal/ai"
	appsvc "github.com/Yerassyl-hub/backofadilai/internal/app"
	"github.com/Yerassyl-hub/backofadilai/internal/transport/http/response"
)

type AnalyzeHandler struct {
	ragService *appsvc.RAGService
}

type AnalyzeRequest struct {
	TenantID   string `json:"tenant_id" binding:"required"`
	DocumentID string `json:"document_id"`
	Query      string `json:"query" binding:"required"`
	Text       string `json:"text"`
	TopK       int    `json:"top_k"`
}

func NewAnalyzeHandler(ragService *appsvc.RAGService) *AnalyzeHandler {
	return &AnalyzeHandler{ragService: ragService}
}

// AnalyzeContract runs retrieval over the referenced document (or the
// inline text) and returns a structured contract analysis.
func (h *AnalyzeHandler) AnalyzeContract(c *gin.Context) {
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	result, err := h.ragService.Analyze(c.Request.Context(), appsvc.AnalyzeInput{
		TenantID:   req.TenantID,
		DocumentID: req.DocumentID,
		Query:      req.Query,
		Text:       req.Text,
		TopK:       req.TopK,
	})
	if err != nil {
		switch {
		case errors.Is(err, appsvc.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, appsvc.ErrDocumentNotFound):
			response.Error(c, http.StatusNotFound, response.CodeDocumentNotFound, err.Error())
		case errors.Is(err, ai.ErrService), errors.Is(err, ai.ErrConfiguration):
			response.Error(c, http.StatusBadGateway, response.CodeUpstreamLLM, "upstream LLM error: "+err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "analyze failed")
		}
		return
	}

	response.OK(c, result)
}
