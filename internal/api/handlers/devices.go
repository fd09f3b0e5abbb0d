package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"sentinel-worker-go/internal/logging"
	"sentinel-worker-go/internal/models"
	"sentinel-worker-go/internal/services/publisher/mjpeg"
	"sentinel-worker-go/internal/services/snapshot"
	"sentinel-worker-go/internal/services/supervisor"
)

// Devices is the read side of the supervisor
type Devices interface {
	Len() int
	Snapshot(index int) ([]byte, error)
	Store(index int) (*snapshot.Store, error)
	Status(index int) (models.DeviceStatus, error)
	Statuses() []models.DeviceStatus
	Running() int
}

// Segments lists recorded segments; nil when the catalog is disabled
type Segments interface {
	List(ctx context.Context, deviceIndex, limit int) ([]models.Segment, error)
}

type DeviceHandler struct {
	devices   Devices
	segments  Segments
	keepalive time.Duration
}

func NewDeviceHandler(devices Devices, segments Segments) *DeviceHandler {
	return &DeviceHandler{devices: devices, segments: segments, keepalive: mjpeg.DefaultKeepalive}
}

type DevicesResponse struct {
	Devices []models.DeviceStatus `json:"devices"`
	Count   int                   `json:"count" example:"3"`
}

type SegmentsResponse struct {
	DeviceIndex int              `json:"device_index" example:"0"`
	Segments    []models.Segment `json:"segments"`
}

// LiveImage returns the latest JPEG of a device
// @Summary Live image
// @Description Latest annotated JPEG of a device. While the camera is down this is the placeholder image.
// @Tags devices
// @Produce jpeg
// @Produce json
// @Param deviceId query int true "Device index (position in the device file)"
// @Success 200 {file} binary
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /live_image [get]
func (h *DeviceHandler) LiveImage(c *gin.Context) {
	raw, ok := c.GetQuery("deviceId")
	if !ok {
		abortWithError(c, http.StatusBadRequest, "deviceId is required")
		return
	}
	index, err := strconv.Atoi(raw)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("deviceId %q is not a valid index", raw))
		return
	}
	h.writeSnapshot(c, index)
}

// Snapshot is the path-parameter form of LiveImage
// @Summary Device snapshot
// @Tags devices
// @Produce jpeg
// @Produce json
// @Param index path int true "Device index"
// @Success 200 {file} binary
// @Failure 404 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /devices/{index}/snapshot [get]
func (h *DeviceHandler) Snapshot(c *gin.Context) {
	index, ok := h.index(c)
	if !ok {
		return
	}
	h.writeSnapshot(c, index)
}

func (h *DeviceHandler) writeSnapshot(c *gin.Context, index int) {
	logging.SetDevice(c, index)
	data, err := h.devices.Snapshot(index)
	switch {
	case errors.Is(err, supervisor.ErrDeviceNotFound):
		abortWithError(c, http.StatusNotFound, fmt.Sprintf("deviceId %d out of range", index))
		return
	case errors.Is(err, supervisor.ErrNoSnapshot):
		c.Header("Retry-After", "1")
		abortWithError(c, http.StatusServiceUnavailable, "no snapshot available yet")
		return
	case err != nil:
		logging.Error(c).Err(err).Msg("Failed to read snapshot")
		abortWithError(c, http.StatusInternalServerError, err.Error())
		return
	}

	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	c.Data(http.StatusOK, "image/jpeg", data)
}

// ListDevices returns the status of every device
// @Summary List devices
// @Tags devices
// @Produce json
// @Success 200 {object} DevicesResponse
// @Router /devices [get]
func (h *DeviceHandler) ListDevices(c *gin.Context) {
	statuses := h.devices.Statuses()
	c.JSON(http.StatusOK, DevicesResponse{Devices: statuses, Count: len(statuses)})
}

// GetDevice returns one device's status
// @Summary Device status
// @Tags devices
// @Produce json
// @Param index path int true "Device index"
// @Success 200 {object} models.DeviceStatus
// @Failure 404 {object} ErrorResponse
// @Router /devices/{index} [get]
func (h *DeviceHandler) GetDevice(c *gin.Context) {
	index, ok := h.index(c)
	if !ok {
		return
	}
	st, err := h.devices.Status(index)
	if err != nil {
		abortWithError(c, http.StatusNotFound, fmt.Sprintf("deviceId %d out of range", index))
		return
	}
	c.JSON(http.StatusOK, st)
}

// Stream serves the live view as MJPEG
// @Summary MJPEG stream
// @Tags devices
// @Produce multipart/x-mixed-replace
// @Param index path int true "Device index"
// @Success 200 {file} binary
// @Failure 404 {object} ErrorResponse
// @Router /devices/{index}/stream [get]
func (h *DeviceHandler) Stream(c *gin.Context) {
	index, ok := h.index(c)
	if !ok {
		return
	}
	store, err := h.devices.Store(index)
	if err != nil {
		abortWithError(c, http.StatusNotFound, fmt.Sprintf("deviceId %d out of range", index))
		return
	}
	logging.Debug(c).Msg("MJPEG client connected")
	mjpeg.Stream(c.Writer, c.Request, store, h.keepalive)
	logging.Debug(c).Msg("MJPEG client disconnected")
}

// ListSegments returns the newest recorded segments of a device
// @Summary Recorded segments
// @Tags devices
// @Produce json
// @Param index path int true "Device index"
// @Param limit query int false "Maximum number of segments" default(50)
// @Success 200 {object} SegmentsResponse
// @Failure 404 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /devices/{index}/segments [get]
func (h *DeviceHandler) ListSegments(c *gin.Context) {
	index, ok := h.index(c)
	if !ok {
		return
	}
	if index < 0 || index >= h.devices.Len() {
		abortWithError(c, http.StatusNotFound, fmt.Sprintf("deviceId %d out of range", index))
		return
	}
	if h.segments == nil {
		abortWithError(c, http.StatusServiceUnavailable, "segment catalog is disabled")
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		abortWithError(c, http.StatusBadRequest, "limit must be a positive integer")
		return
	}

	segments, err := h.segments.List(c.Request.Context(), index, limit)
	if err != nil {
		logging.Error(c).Err(err).Msg("Failed to list segments")
		abortWithError(c, http.StatusInternalServerError, "failed to list segments")
		return
	}
	c.JSON(http.StatusOK, SegmentsResponse{DeviceIndex: index, Segments: segments})
}

func (h *DeviceHandler) index(c *gin.Context) (int, bool) {
	raw := c.Param("index")
	index, err := strconv.Atoi(raw)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("device index %q is not valid", raw))
		return 0, false
	}
	logging.SetDevice(c, index)
	return index, true
}
