package logging

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type ctxKey string

const (
	ctxRequestID ctxKey = "request_id"
	ctxStartTime ctxKey = "start_time"
	ctxDeviceID  ctxKey = "device_index"
)

func withGinContext(c *gin.Context, e *zerolog.Event) *zerolog.Event {
	if c == nil {
		return e
	}
	if v, ok := c.Get(string(ctxRequestID)); ok {
		if s, ok2 := v.(string); ok2 && s != "" {
			e.Str("request_id", s)
		}
	}
	if v, ok := c.Get(string(ctxDeviceID)); ok {
		if i, ok2 := v.(int); ok2 {
			e.Int("device_index", i)
		}
	}
	if v, ok := c.Get(string(ctxStartTime)); ok {
		if t, ok2 := v.(time.Time); ok2 {
			e.Dur("duration", time.Since(t))
		}
	}
	return e
}

// SetDevice tags the request with the device it addresses
func SetDevice(c *gin.Context, index int) { c.Set(string(ctxDeviceID), index) }

func Info(c *gin.Context) *zerolog.Event  { return withGinContext(c, log.Info()) }
func Debug(c *gin.Context) *zerolog.Event { return withGinContext(c, log.Debug()) }
func Warn(c *gin.Context) *zerolog.Event  { return withGinContext(c, log.Warn()) }
func Error(c *gin.Context) *zerolog.Event { return withGinContext(c, log.Error()) }
