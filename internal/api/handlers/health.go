package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	WorkerID string
	Version  string
	devices  Devices
}

func NewHealthHandler(workerID, version string, devices Devices) *HealthHandler {
	return &HealthHandler{WorkerID: workerID, Version: version, devices: devices}
}

type HealthResponse struct {
	Status   string `json:"status" example:"healthy"`
	WorkerID string `json:"worker_id" example:"sentinel-1"`
	Devices  int    `json:"devices" example:"3"`
	Running  int    `json:"running" example:"3"`
}

type WorkerInfoResponse struct {
	WorkerID     string   `json:"worker_id" example:"sentinel-1"`
	Status       string   `json:"status" example:"running"`
	Version      string   `json:"version" example:"1.0.0"`
	Capabilities []string `json:"capabilities"`
}

// @Summary Health check
// @Description Healthy when every configured device loop is running
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /health [get]
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	total, running := h.devices.Len(), h.devices.Running()
	resp := HealthResponse{
		Status:   "healthy",
		WorkerID: h.WorkerID,
		Devices:  total,
		Running:  running,
	}
	if running < total {
		resp.Status = "degraded"
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// @Summary Worker information
// @Description Get basic worker information and capabilities
// @Tags health
// @Produce json
// @Success 200 {object} WorkerInfoResponse
// @Router / [get]
func (h *HealthHandler) WorkerInfo(c *gin.Context) {
	c.JSON(http.StatusOK, WorkerInfoResponse{
		WorkerID: h.WorkerID,
		Status:   "running",
		Version:  h.Version,
		Capabilities: []string{
			"motion_detection",
			"segment_recording",
			"live_image",
			"mjpeg_streaming",
		},
	})
}
