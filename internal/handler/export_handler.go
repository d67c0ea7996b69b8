package handler

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/qr-attend-api/internal/service"
	"github.com/noah-isme/qr-attend-api/pkg/response"
)

// ExportHandler serves attendance snapshot downloads.
type ExportHandler struct {
	exports *service.ExportService
}

// NewExportHandler creates a new handler.
func NewExportHandler(exports *service.ExportService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// Download godoc
// @Summary Export attendance snapshot
// @Description Download the session's attendance records in the requested format
// @Tags Exports
// @Produce json
// @Param id path string true "Session ID"
// @Param format query string false "tabular (default), structured, or pdf"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /sessions/{id}/export [get]
// @Security BearerAuth
func (h *ExportHandler) Download(c *gin.Context) {
	format := service.ExportFormat(c.DefaultQuery("format", string(service.ExportFormatTabular)))

	result, err := h.exports.Export(c.Request.Context(), c.Param("id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	c.Data(200, result.ContentType, result.Bytes)
}
