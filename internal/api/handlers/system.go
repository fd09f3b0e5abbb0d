package handlers

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
)

// SystemHandler handles system-related endpoints
type SystemHandler struct {
	WorkerID  string
	devices   Devices
	startedAt time.Time
}

func NewSystemHandler(workerID string, devices Devices) *SystemHandler {
	return &SystemHandler{WorkerID: workerID, devices: devices, startedAt: time.Now()}
}

type SystemStatsResponse struct {
	WorkerID        string  `json:"worker_id" example:"sentinel-1"`
	UptimeSeconds   float64 `json:"uptime_seconds" example:"3600"`
	MemoryMB        uint64  `json:"memory_mb" example:"42"`
	CPUCores        int     `json:"cpu_cores" example:"8"`
	Goroutines      int     `json:"goroutines" example:"24"`
	GoVersion       string  `json:"go_version" example:"go1.24.0"`
	Devices         int     `json:"devices" example:"3"`
	Running         int     `json:"running" example:"3"`
	Recording       int     `json:"recording" example:"1"`
	FramesProcessed int64   `json:"frames_processed" example:"123456"`
	Segments        int64   `json:"segments" example:"12"`
	Timestamp       int64   `json:"timestamp" example:"1700000000"`
}

// @Summary Get system stats
// @Description Process statistics and totals across all devices
// @Tags system
// @Produce json
// @Success 200 {object} SystemStatsResponse
// @Router /system/stats [get]
func (h *SystemHandler) GetStats(c *gin.Context) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	resp := SystemStatsResponse{
		WorkerID:      h.WorkerID,
		UptimeSeconds: time.Since(h.startedAt).Seconds(),
		MemoryMB:      m.Alloc / 1024 / 1024,
		CPUCores:      runtime.NumCPU(),
		Goroutines:    runtime.NumGoroutine(),
		GoVersion:     runtime.Version(),
		Devices:       h.devices.Len(),
		Running:       h.devices.Running(),
		Timestamp:     time.Now().Unix(),
	}
	for _, st := range h.devices.Statuses() {
		if st.Recording {
			resp.Recording++
		}
		resp.FramesProcessed += st.FramesProcessed
		resp.Segments += st.Segments
	}
	c.JSON(http.StatusOK, resp)
}
