package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentinel-worker-go/internal/models"
	"sentinel-worker-go/internal/services/snapshot"
	"sentinel-worker-go/internal/services/supervisor"
)

type fakeDevices struct {
	stores  []*snapshot.Store
	running int
}

func newFakeDevices(n int) *fakeDevices {
	d := &fakeDevices{running: n}
	for i := 0; i < n; i++ {
		d.stores = append(d.stores, snapshot.NewStore())
	}
	return d
}

func (d *fakeDevices) Len() int { return len(d.stores) }

func (d *fakeDevices) Snapshot(index int) ([]byte, error) {
	if index < 0 || index >= len(d.stores) {
		return nil, supervisor.ErrDeviceNotFound
	}
	data := d.stores[index].Read()
	if len(data) == 0 {
		return nil, supervisor.ErrNoSnapshot
	}
	return data, nil
}

func (d *fakeDevices) Store(index int) (*snapshot.Store, error) {
	if index < 0 || index >= len(d.stores) {
		return nil, supervisor.ErrDeviceNotFound
	}
	return d.stores[index], nil
}

func (d *fakeDevices) Status(index int) (models.DeviceStatus, error) {
	if index < 0 || index >= len(d.stores) {
		return models.DeviceStatus{}, supervisor.ErrDeviceNotFound
	}
	return models.DeviceStatus{Index: index, Name: "cam", Running: true, Motion: "idle"}, nil
}

func (d *fakeDevices) Statuses() []models.DeviceStatus {
	out := make([]models.DeviceStatus, 0, len(d.stores))
	for i := range d.stores {
		st, _ := d.Status(i)
		out = append(out, st)
	}
	return out
}

func (d *fakeDevices) Running() int { return d.running }

type fakeSegments struct {
	segments []models.Segment
	err      error
	limit    int
}

func (s *fakeSegments) List(_ context.Context, deviceIndex, limit int) ([]models.Segment, error) {
	s.limit = limit
	if s.err != nil {
		return nil, s.err
	}
	var out []models.Segment
	for _, seg := range s.segments {
		if seg.DeviceIndex == deviceIndex {
			out = append(out, seg)
		}
	}
	return out, nil
}

func router(devices Devices, segments Segments) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewDeviceHandler(devices, segments)
	health := NewHealthHandler("w1", "1.2.3", devices)
	r.GET("/", health.WorkerInfo)
	r.GET("/health", health.HealthCheck)
	r.GET("/live_image", h.LiveImage)
	r.GET("/devices", h.ListDevices)
	r.GET("/devices/:index", h.GetDevice)
	r.GET("/devices/:index/snapshot", h.Snapshot)
	r.GET("/devices/:index/segments", h.ListSegments)
	return r
}

func get(t *testing.T, r http.Handler, url string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, url, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestLiveImageServesLatestJPEG(t *testing.T) {
	devices := newFakeDevices(3)
	devices.stores[1].Update([]byte("jpeg-bytes"))

	rec := get(t, router(devices, nil), "/live_image?deviceId=1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, "jpeg-bytes", rec.Body.String())
}

func TestLiveImageOutOfRange(t *testing.T) {
	r := router(newFakeDevices(3), nil)
	for _, id := range []string{"7", "3", "-1"} {
		rec := get(t, r, "/live_image?deviceId="+id)
		assert.Equal(t, http.StatusNotFound, rec.Code, id)
		assert.Equal(t, ErrorResponse{Result: "error", Reason: "deviceId " + id + " out of range"}, decodeError(t, rec), id)
	}
}

func TestLiveImageBeforeFirstSnapshot(t *testing.T) {
	rec := get(t, router(newFakeDevices(1), nil), "/live_image?deviceId=0")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "no snapshot available yet", decodeError(t, rec).Reason)
}

func TestLiveImageBadDeviceID(t *testing.T) {
	r := router(newFakeDevices(1), nil)
	for _, url := range []string{"/live_image", "/live_image?deviceId=abc", "/live_image?deviceId=1.5"} {
		rec := get(t, r, url)
		assert.Equal(t, http.StatusBadRequest, rec.Code, url)
		assert.Equal(t, "error", decodeError(t, rec).Result, url)
	}
}

func TestSnapshotByPath(t *testing.T) {
	devices := newFakeDevices(2)
	devices.stores[0].Update([]byte("zero"))
	r := router(devices, nil)

	rec := get(t, r, "/devices/0/snapshot")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "zero", rec.Body.String())

	rec = get(t, r, "/devices/5/snapshot")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = get(t, r, "/devices/-1/snapshot")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "deviceId -1 out of range", decodeError(t, rec).Reason)
}

func TestListAndGetDevices(t *testing.T) {
	r := router(newFakeDevices(2), nil)

	rec := get(t, r, "/devices")
	require.Equal(t, http.StatusOK, rec.Code)
	var list DevicesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 2, list.Count)
	assert.Equal(t, 1, list.Devices[1].Index)

	rec = get(t, r, "/devices/1")
	require.Equal(t, http.StatusOK, rec.Code)
	var st models.DeviceStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, 1, st.Index)

	assert.Equal(t, http.StatusNotFound, get(t, r, "/devices/9").Code)
	assert.Equal(t, http.StatusNotFound, get(t, r, "/devices/-1").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, r, "/devices/x").Code)
}

func TestListSegments(t *testing.T) {
	segments := &fakeSegments{segments: []models.Segment{
		{ID: "a", DeviceIndex: 0},
		{ID: "b", DeviceIndex: 1},
	}}
	r := router(newFakeDevices(2), segments)

	rec := get(t, r, "/devices/1/segments?limit=10")
	require.Equal(t, http.StatusOK, rec.Code)
	var body SegmentsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Segments, 1)
	assert.Equal(t, "b", body.Segments[0].ID)
	assert.Equal(t, 10, segments.limit)

	assert.Equal(t, http.StatusBadRequest, get(t, r, "/devices/1/segments?limit=0").Code)
	assert.Equal(t, http.StatusNotFound, get(t, r, "/devices/2/segments").Code)
	assert.Equal(t, http.StatusNotFound, get(t, r, "/devices/-1/segments").Code)

	segments.err = errors.New("disk gone")
	assert.Equal(t, http.StatusInternalServerError, get(t, r, "/devices/0/segments").Code)
}

func TestListSegmentsWithoutCatalog(t *testing.T) {
	rec := get(t, router(newFakeDevices(1), nil), "/devices/0/segments")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealth(t *testing.T) {
	devices := newFakeDevices(2)
	r := router(devices, nil)

	rec := get(t, r, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	var body HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "w1", body.WorkerID)

	devices.running = 1
	rec = get(t, r, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, 1, body.Running)
}

func TestWorkerInfo(t *testing.T) {
	rec := get(t, router(newFakeDevices(1), nil), "/")
	require.Equal(t, http.StatusOK, rec.Code)
	var body WorkerInfoResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "1.2.3", body.Version)
	assert.Contains(t, body.Capabilities, "live_image")
}

func TestSystemStats(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/system/stats", NewSystemHandler("w1", newFakeDevices(3)).GetStats)

	rec := get(t, r, "/system/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	var body SystemStatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "w1", body.WorkerID)
	assert.Equal(t, 3, body.Devices)
	assert.Equal(t, 3, body.Running)
	assert.Positive(t, body.Goroutines)
}
