package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/benmeehan/geo-attendance/internal/constants"
	"github.com/benmeehan/geo-attendance/internal/metrics_collectors"
	mqtt_middleware "github.com/benmeehan/geo-attendance/internal/middlewares/mqtt"
	"github.com/benmeehan/geo-attendance/internal/models"
	"github.com/benmeehan/geo-attendance/internal/state_managers"
	"github.com/rs/zerolog"
)

// HeartbeatService manages periodic node status messages.
type HeartbeatService struct {
	PubTopic       string
	Interval       time.Duration
	NodeID         string
	QOS            int
	MqttMiddleware mqtt_middleware.MQTTMiddleware
	Verifier       VerifierStatsProvider
	Sessions       state_managers.SessionStore
	Metrics        *metrics_collectors.MetricsRegistry // optional
	Logger         zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewHeartbeatService initializes a new HeartbeatService.
func NewHeartbeatService(pubTopic string, interval time.Duration, qos int, nodeID string,
	mqttMiddleware mqtt_middleware.MQTTMiddleware, verifier VerifierStatsProvider, sessions state_managers.SessionStore,
	metrics *metrics_collectors.MetricsRegistry, logger zerolog.Logger) *HeartbeatService {
	if interval <= 0 {
		interval = constants.DefaultHeartbeatInterval
	}
	return &HeartbeatService{
		PubTopic:       pubTopic,
		Interval:       interval,
		NodeID:         nodeID,
		QOS:            qos,
		MqttMiddleware: mqttMiddleware,
		Verifier:       verifier,
		Sessions:       sessions,
		Metrics:        metrics,
		Logger:         logger,
	}
}

// Start launches the heartbeat loop in a separate goroutine.
func (h *HeartbeatService) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.ctx != nil {
		h.Logger.Warn().Msg("HeartbeatService is already running")
		return errors.New("heartbeat service is already running")
	}

	h.ctx, h.cancel = context.WithCancel(context.Background())

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.runHeartbeatLoop(h.ctx)
	}()

	h.Logger.Info().Str("topic", h.PubTopic).Msg("HeartbeatService started successfully")
	return nil
}

// Stop gracefully stops the heartbeat service.
func (h *HeartbeatService) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.ctx == nil {
		h.Logger.Warn().Msg("HeartbeatService is not running")
		return errors.New("heartbeat service is not running")
	}

	h.cancel()
	h.wg.Wait()

	h.ctx = nil
	h.cancel = nil

	h.Logger.Info().Msg("HeartbeatService stopped successfully")
	return nil
}

// runHeartbeatLoop sends heartbeat messages at the configured interval.
func (h *HeartbeatService) runHeartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(h.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := h.PublishHeartbeat(ctx); err != nil {
				h.Logger.Error().Err(err).Msg("Failed to publish heartbeat message")
			} else {
				h.Logger.Debug().Msg("Heartbeat published successfully")
			}

		case <-ctx.Done():
			h.Logger.Info().Msg("HeartbeatService stopping gracefully")
			return
		}
	}
}

// BuildHeartbeat assembles the current node status.
func (h *HeartbeatService) BuildHeartbeat(ctx context.Context) models.Heartbeat {
	heartbeat := models.Heartbeat{
		NodeID:    h.NodeID,
		Timestamp: time.Now(),
		Status:    constants.StatusAlive,
	}
	if h.Sessions != nil {
		heartbeat.ActiveSessions = h.Sessions.Count()
	}
	if h.Verifier != nil {
		heartbeat.Verifier = h.Verifier.Stats()
	}
	if h.Metrics != nil {
		heartbeat.Metrics = h.Metrics.CollectAll(ctx)
	}
	return heartbeat
}

// PublishHeartbeat publishes one heartbeat immediately.
func (h *HeartbeatService) PublishHeartbeat(ctx context.Context) error {
	return publishJSON(h.MqttMiddleware, h.PubTopic, h.QOS, h.BuildHeartbeat(ctx))
}
