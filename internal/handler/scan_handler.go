package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/qr-attend-api/internal/dto"
	"github.com/noah-isme/qr-attend-api/internal/service"
	appErrors "github.com/noah-isme/qr-attend-api/pkg/errors"
	"github.com/noah-isme/qr-attend-api/pkg/response"
)

// ScanHandler wires HTTP endpoints to the scan processor.
type ScanHandler struct {
	scans *service.ScanService
}

// NewScanHandler creates a new handler.
func NewScanHandler(scans *service.ScanService) *ScanHandler {
	return &ScanHandler{scans: scans}
}

func deviceID(c *gin.Context) (string, error) {
	id := c.GetHeader("X-Device-ID")
	if id == "" {
		return "", appErrors.Clone(appErrors.ErrValidation, "X-Device-ID header required")
	}
	return id, nil
}

// Bind godoc
// @Summary Bind device to session
// @Description Bind the scanning device to the session encoded in a QR payload
// @Tags Scans
// @Accept json
// @Produce json
// @Param X-Device-ID header string true "Device identifier"
// @Param payload body dto.BindRequest true "Session QR payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 410 {object} response.Envelope
// @Router /scan/bind [post]
func (h *ScanHandler) Bind(c *gin.Context) {
	device, err := deviceID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.BindRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid bind payload"))
		return
	}

	res, err := h.scans.Bind(c.Request.Context(), device, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// Scan godoc
// @Summary Record attendance scan
// @Description Process an identity QR scan against the device's bound session
// @Tags Scans
// @Accept json
// @Produce json
// @Param X-Device-ID header string true "Device identifier"
// @Param payload body dto.ScanRequest true "Identity QR payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /scan [post]
func (h *ScanHandler) Scan(c *gin.Context) {
	device, err := deviceID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid scan payload"))
		return
	}

	record, err := h.scans.Scan(c.Request.Context(), device, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	res := dto.NewRecordResponse(record)
	response.Created(c, res)
}

// Reset godoc
// @Summary Reset device binding
// @Description Clear the device's session binding
// @Tags Scans
// @Produce json
// @Param X-Device-ID header string true "Device identifier"
// @Success 204 {object} response.Envelope
// @Router /scan/binding [delete]
func (h *ScanHandler) Reset(c *gin.Context) {
	device, err := deviceID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.scans.Reset(c.Request.Context(), device); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
