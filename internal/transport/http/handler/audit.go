package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Yerassyl-hub/backofadilai/internal/model"
	"github.com/Yerassyl-hub/backofadilai/internal/transport/http/response"
)

// CallLister reads persisted LLM call audit records.
type CallLister interface {
	ListByTenant(tenantID string, limit int) ([]model.LLMCall, error)
}

type AuditHandler struct {
	calls CallLister
}

func NewAuditHandler(calls CallLister) *AuditHandler {
	return &AuditHandler{calls: calls}
}

// List returns a tenant's recent LLM calls, newest first. The repository
// clamps the limit.
func (h *AuditHandler) List(c *gin.Context) {
	tenantID := strings.TrimSpace(c.Query("tenant_id"))
	if tenantID == "" {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "tenant_id is required")
		return
	}

	limit := 0
	if s := c.Query("limit"); s != "" {
		parsed, err := strconv.Atoi(s)
		if err != nil {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	calls, err := h.calls.ListByTenant(tenantID, limit)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list llm calls failed")
		return
	}
	response.OK(c, calls)
}
