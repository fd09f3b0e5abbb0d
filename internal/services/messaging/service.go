package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"sentinel-worker-go/internal/config"
	"sentinel-worker-go/internal/logging"
	"sentinel-worker-go/internal/models"
)

const (
	EncodingJSON  = "json"
	EncodingProto = "proto"
)

// Publisher is the part of *nats.Conn the service needs
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Service publishes device events to NATS. A Service built with NATS
// disabled accepts every call and sends nothing.
type Service struct {
	conn     *nats.Conn
	pub      Publisher
	prefix   string
	workerID string
	encoding string
	logger   zerolog.Logger
	limiter  *logging.Limiter
}

func NewService(cfg *config.Config, logger zerolog.Logger) (*Service, error) {
	if !cfg.NatsEnabled {
		logger.Info().Msg("NATS disabled, device events are not published")
		return NewWithPublisher(nil, cfg, logger), nil
	}

	opts := []nats.Option{
		nats.Name("sentinel-worker-" + cfg.WorkerID),
		nats.Timeout(cfg.NatsConnectTimeout),
		nats.ReconnectWait(cfg.NatsReconnectWait),
		nats.MaxReconnects(cfg.NatsMaxReconnects),
		nats.DrainTimeout(cfg.NatsDrainTimeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	conn, err := nats.Connect(cfg.NatsURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NatsURL, err)
	}

	logger.Info().Str("url", cfg.NatsURL).Str("encoding", cfg.NatsEncoding).Msg("NATS connection established")

	s := NewWithPublisher(conn, cfg, logger)
	s.conn = conn
	return s, nil
}

// NewWithPublisher builds a service over any publisher; nil disables publishing
func NewWithPublisher(pub Publisher, cfg *config.Config, logger zerolog.Logger) *Service {
	encoding := cfg.NatsEncoding
	if encoding != EncodingProto {
		encoding = EncodingJSON
	}
	return &Service{
		pub:      pub,
		prefix:   cfg.NatsSubjectPrefix,
		workerID: cfg.WorkerID,
		encoding: encoding,
		logger:   logger,
		limiter:  logging.NewLimiter(time.Minute),
	}
}

func (s *Service) Enabled() bool { return s.pub != nil }

// Subject returns <prefix>.<worker>.device.<index>.<kind>
func (s *Service) Subject(deviceIndex int, kind string) string {
	return fmt.Sprintf("%s.%s.device.%d.%s", s.prefix, s.workerID, deviceIndex, kind)
}

// Publish encodes data with the configured encoding and sends it
func (s *Service) Publish(subject string, data interface{}) error {
	if s.pub == nil {
		return nil
	}
	payload, err := s.encode(data)
	if err != nil {
		return err
	}
	return s.pub.Publish(subject, payload)
}

// encode marshals to JSON, and for proto re-encodes the JSON object as a
// google.protobuf.Struct so subscribers can decode without generated types.
func (s *Service) encode(data interface{}) ([]byte, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	if s.encoding == EncodingJSON {
		return payload, nil
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, fmt.Errorf("event is not a JSON object: %w", err)
	}
	st, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to build proto struct: %w", err)
	}
	return proto.Marshal(st)
}

type segmentEvent struct {
	Event    string         `json:"event"`
	WorkerID string         `json:"worker_id"`
	Segment  models.Segment `json:"segment"`
}

type motionEvent struct {
	Event    string             `json:"event"`
	WorkerID string             `json:"worker_id"`
	Motion   models.MotionEvent `json:"motion"`
}

func (s *Service) SegmentOpened(seg models.Segment) { s.publishSegment("opened", seg) }
func (s *Service) SegmentClosed(seg models.Segment) { s.publishSegment("closed", seg) }

func (s *Service) publishSegment(event string, seg models.Segment) {
	s.publishEvent(s.Subject(seg.DeviceIndex, "segment"), segmentEvent{
		Event:    event,
		WorkerID: s.workerID,
		Segment:  seg,
	})
}

func (s *Service) MotionChanged(e models.MotionEvent) {
	s.publishEvent(s.Subject(e.DeviceIndex, "motion"), motionEvent{
		Event:    e.State.String(),
		WorkerID: s.workerID,
		Motion:   e,
	})
}

// publishEvent runs on the device loop, so failures are only logged
func (s *Service) publishEvent(subject string, v interface{}) {
	if err := s.Publish(subject, v); err != nil {
		if ok, suppressed := s.limiter.Allow(subject); ok {
			s.logger.Warn().Err(err).Str("subject", subject).Int("suppressed", suppressed).Msg("Failed to publish event")
		}
	}
}

func (s *Service) IsConnected() bool {
	return s.conn != nil && s.conn.IsConnected()
}

// Shutdown drains the connection, falling back to an immediate close
func (s *Service) Shutdown(ctx context.Context) error {
	if s.conn == nil {
		return nil
	}
	if err := s.conn.Drain(); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to drain NATS connection gracefully, closing immediately")
		s.conn.Close()
		return nil
	}

	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for !s.conn.IsClosed() {
		select {
		case <-ctx.Done():
			s.conn.Close()
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}
