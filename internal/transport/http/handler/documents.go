package handler

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	appsvc "github.com/Yerassyl-hub/backofadilai/internal/app"
	"github.com/Yerassyl-hub/backofadilai/internal/pkg/extract"
	"github.com/Yerassyl-hub/backofadilai/internal/transport/http/response"
)

const maxUploadSize = 10 << 20 // 10 MB

type DocumentHandler struct {
	ragService *appsvc.RAGService
}

func NewDocumentHandler(ragService *appsvc.RAGService) *DocumentHandler {
	return &DocumentHandler{ragService: ragService}
}

// Upload accepts a multipart form with "file" (pdf, docx or plain text)
// and "tenant_id", extracts text and ingests the document.
func (h *DocumentHandler) Upload(c *gin.Context) {
	tenantID := strings.TrimSpace(c.PostForm("tenant_id"))
	if tenantID == "" {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "tenant_id is required")
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "missing file")
		return
	}
	if file.Size > maxUploadSize {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "file too large (max 10MB)")
		return
	}

	f, err := file.Open()
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "failed to read file")
		return
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "failed to read file")
		return
	}

	text, err := extract.Text(file.Filename, content)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "failed to extract text: "+err.Error())
		return
	}
	if strings.TrimSpace(text) == "" {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "empty text after extraction")
		return
	}

	result, err := h.ragService.Ingest(c.Request.Context(), appsvc.IngestInput{
		TenantID: tenantID,
		Filename: file.Filename,
		Text:     text,
	})
	if err != nil {
		switch {
		case errors.Is(err, appsvc.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "ingest failed: "+err.Error())
		}
		return
	}

	response.OK(c, result)
}

func (h *DocumentHandler) List(c *gin.Context) {
	tenantID := strings.TrimSpace(c.Query("tenant_id"))
	if tenantID == "" {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "tenant_id is required")
		return
	}

	docs, err := h.ragService.ListDocuments(tenantID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list documents failed")
		return
	}
	response.OK(c, docs)
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	tenantID := strings.TrimSpace(c.Query("tenant_id"))
	docID := c.Param("id")
	if tenantID == "" || docID == "" {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "tenant_id and document id are required")
		return
	}

	if err := h.ragService.DeleteDocument(tenantID, docID); err != nil {
		switch {
		case errors.Is(err, appsvc.ErrDocumentNotFound):
			response.Error(c, http.StatusNotFound, response.CodeDocumentNotFound, err.Error())
		case errors.Is(err, appsvc.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "delete document failed")
		}
		return
	}
	response.OK(c, gin.H{"deleted_document_id": docID})
}
