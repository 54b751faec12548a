package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benmeehan/geo-attendance/internal/constants"
	mqtt_middleware "github.com/benmeehan/geo-attendance/internal/middlewares/mqtt"
	"github.com/benmeehan/geo-attendance/internal/models"
	"github.com/benmeehan/geo-attendance/internal/state_managers"
	"github.com/benmeehan/geo-attendance/internal/verifier"
	"github.com/benmeehan/geo-attendance/pkg/integrity"
	"github.com/benmeehan/geo-attendance/pkg/location"
	"github.com/benmeehan/geo-attendance/pkg/qrpayload"
	"github.com/benmeehan/geo-attendance/pkg/s3"
	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SessionServiceConfig holds the tunables of a SessionService.
type SessionServiceConfig struct {
	Topic                  string
	QOS                    int
	DefaultToleranceMeters int
	QRCodeSize             int
	Bucket                 string
	AcquisitionTimeout     time.Duration
}

// SessionService opens attendance sessions on request. It fixes the anchor
// location, signs the descriptor with the integrity hasher, stores it and
// answers with the QR payload to display.
type SessionService struct {
	config SessionServiceConfig

	// Dependencies
	mqttMiddleware mqtt_middleware.MQTTMiddleware
	provider       location.Provider // nil when the node has no location source
	hasher         integrity.Hasher
	store          state_managers.SessionStore
	codec          *qrpayload.Codec
	objectStorage  s3.ObjectStorageClient // nil disables QR image uploads
	logger         zerolog.Logger

	now   func() time.Time
	newID func() string

	// Internal state management
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewSessionService creates a new SessionService.
func NewSessionService(config SessionServiceConfig, mqttMiddleware mqtt_middleware.MQTTMiddleware, provider location.Provider,
	hasher integrity.Hasher, store state_managers.SessionStore, codec *qrpayload.Codec, objectStorage s3.ObjectStorageClient,
	logger zerolog.Logger) *SessionService {
	if config.DefaultToleranceMeters == 0 {
		config.DefaultToleranceMeters = constants.DefaultToleranceMeters
	}
	if config.QRCodeSize == 0 {
		config.QRCodeSize = constants.DefaultQRCodeSize
	}
	if config.AcquisitionTimeout == 0 {
		config.AcquisitionTimeout = constants.DefaultAcquisitionTimeout
	}
	return &SessionService{
		config:         config,
		mqttMiddleware: mqttMiddleware,
		provider:       provider,
		hasher:         hasher,
		store:          store,
		codec:          codec,
		objectStorage:  objectStorage,
		logger:         logger,
		now:            time.Now,
		newID:          uuid.NewString,
	}
}

func (s *SessionService) requestTopic() string {
	return s.config.Topic + "/create"
}

func (s *SessionService) listTopic() string {
	return s.config.Topic + "/list"
}

// Start subscribes to session creation requests.
func (s *SessionService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.logger.Warn().Msg("SessionService is already running")
		return errors.New("session service is already running")
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	if err := s.mqttMiddleware.Subscribe(s.requestTopic(), byte(s.config.QOS), s.HandleCreateRequest); err != nil {
		s.cancel()
		s.logger.Error().Err(err).Str("topic", s.requestTopic()).Msg("Failed to subscribe to MQTT topic")
		return err
	}
	if err := s.mqttMiddleware.Subscribe(s.listTopic(), byte(s.config.QOS), s.HandleListRequest); err != nil {
		if uerr := s.mqttMiddleware.Unsubscribe(s.requestTopic()); uerr != nil {
			s.logger.Warn().Err(uerr).Str("topic", s.requestTopic()).Msg("Failed to unsubscribe after partial start")
		}
		s.cancel()
		s.logger.Error().Err(err).Str("topic", s.listTopic()).Msg("Failed to subscribe to MQTT topic")
		return err
	}

	s.running = true
	s.logger.Info().Str("topic", s.requestTopic()).Msg("SessionService started successfully")
	return nil
}

// Stop unsubscribes and waits for in-flight requests.
func (s *SessionService) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		s.logger.Warn().Msg("SessionService is not running")
		return errors.New("session service is not running")
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	err := s.mqttMiddleware.Unsubscribe(s.requestTopic(), s.listTopic())
	s.wg.Wait()
	if err != nil {
		s.logger.Error().Err(err).Str("topic", s.requestTopic()).Msg("Failed to unsubscribe from MQTT topics")
		return err
	}

	s.logger.Info().Msg("SessionService stopped successfully")
	return nil
}

// HandleCreateRequest processes a CreateSessionRequest and publishes the response.
func (s *SessionService) HandleCreateRequest(_ MQTT.Client, msg MQTT.Message) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		s.logger.Warn().Msg("Received session request but service is stopping, ignoring")
		return
	}
	s.wg.Add(1)
	ctx := s.ctx
	s.mu.Unlock()
	defer s.wg.Done()

	var req models.CreateSessionRequest
	if err := json.Unmarshal(msg.Payload(), &req); err != nil {
		s.logger.Error().Err(err).Str("topic", msg.Topic()).Msg("Failed to parse session request")
		return
	}
	if req.RequestID == "" {
		s.logger.Error().Str("topic", msg.Topic()).Msg("Session request without request_id, dropping")
		return
	}

	resp := s.CreateSession(ctx, req)
	topic := responseTopic(s.config.Topic, req.RequestID)
	if err := publishJSON(s.mqttMiddleware, topic, s.config.QOS, resp); err != nil {
		s.logger.Error().Err(err).Str("topic", topic).Msg("Failed to publish session response")
	}
}

// CreateSession opens a session for req. Failures are reported in the
// response's Error field.
func (s *SessionService) CreateSession(ctx context.Context, req models.CreateSessionRequest) models.CreateSessionResponse {
	resp := models.CreateSessionResponse{RequestID: req.RequestID}

	anchor, err := s.resolveAnchor(ctx, req.Anchor)
	if err != nil {
		resp.Error = err.Error()
		var acqErr *location.AcquisitionError
		if errors.As(err, &acqErr) {
			resp.Guidance = acqErr.Guidance()
		}
		s.logger.Error().Err(err).Str("request_id", req.RequestID).Msg("Failed to resolve session anchor")
		return resp
	}

	tolerance := req.ToleranceMeters
	if tolerance == 0 {
		tolerance = s.config.DefaultToleranceMeters
	}

	session := models.SessionDescriptor{
		SessionID:       s.newID(),
		Course:          req.Course,
		LecturerID:      req.LecturerID,
		Anchor:          anchor,
		ToleranceMeters: verifier.ClampTolerance(tolerance),
		CreatedAt:       s.now(),
	}
	if s.hasher != nil {
		session.IntegrityHash = s.hasher.Hash(session.Anchor, session.SessionID)
	}

	payload, err := s.codec.Encode(qrpayload.FromSession(session))
	if err != nil {
		resp.Error = err.Error()
		s.logger.Error().Err(err).Str("session_id", session.SessionID).Msg("Failed to encode QR payload")
		return resp
	}

	if err := s.store.Save(session); err != nil {
		resp.Error = err.Error()
		s.logger.Error().Err(err).Str("session_id", session.SessionID).Msg("Failed to save session")
		return resp
	}

	resp.Session = &session
	resp.QRPayload = payload
	resp.QRCodeURL = s.uploadQRCode(ctx, session.SessionID, payload)

	s.logger.Info().
		Str("session_id", session.SessionID).
		Str("course", session.Course).
		Int("tolerance_m", session.ToleranceMeters).
		Bool("fallback_anchor", session.Anchor.IsFallback).
		Msg("Session created")
	return resp
}

// HandleListRequest answers a ListSessionsRequest with the open sessions.
func (s *SessionService) HandleListRequest(_ MQTT.Client, msg MQTT.Message) {
	var req models.ListSessionsRequest
	if err := json.Unmarshal(msg.Payload(), &req); err != nil || req.RequestID == "" {
		s.logger.Error().Err(err).Str("topic", msg.Topic()).Msg("Invalid session list request, dropping")
		return
	}

	resp := s.ListSessions(req)
	topic := responseTopic(s.config.Topic, req.RequestID)
	if err := publishJSON(s.mqttMiddleware, topic, s.config.QOS, resp); err != nil {
		s.logger.Error().Err(err).Str("topic", topic).Msg("Failed to publish session list")
	}
}

// ListSessions returns the stored sessions ordered by creation time.
func (s *SessionService) ListSessions(req models.ListSessionsRequest) models.ListSessionsResponse {
	return models.ListSessionsResponse{RequestID: req.RequestID, Sessions: s.store.List()}
}

// resolveAnchor validates a client-supplied anchor or acquires one from the provider.
func (s *SessionService) resolveAnchor(ctx context.Context, supplied *location.Reading) (location.Reading, error) {
	if supplied != nil {
		anchor := *supplied
		if !anchor.ValidCoordinates() {
			return location.Reading{}, errors.New("anchor coordinates are invalid")
		}
		if !anchor.HasTimestamp() {
			anchor.CapturedAt = s.now()
		}
		return anchor, nil
	}

	if s.provider == nil {
		return location.Reading{}, &location.AcquisitionError{Kind: location.ErrUnsupported}
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.AcquisitionTimeout)
	defer cancel()

	anchor, err := s.provider.GetLocation(ctx)
	if err != nil {
		return location.Reading{}, location.ClassifyError(err)
	}
	if !anchor.ValidCoordinates() {
		return location.Reading{}, &location.AcquisitionError{Kind: location.ErrPositionUnavailable}
	}
	return anchor, nil
}

// uploadQRCode renders and uploads the QR image. Failures are logged and
// leave the URL empty; the session stays usable through the payload string.
func (s *SessionService) uploadQRCode(ctx context.Context, sessionID, payload string) string {
	if s.objectStorage == nil {
		return ""
	}

	png, err := qrpayload.RenderPNG(payload, s.config.QRCodeSize)
	if err != nil {
		s.logger.Warn().Err(err).Str("session_id", sessionID).Msg("Failed to render QR code")
		return ""
	}

	objectName := fmt.Sprintf("sessions/%s.png", sessionID)
	url, err := s.objectStorage.UploadBytes(ctx, s.config.Bucket, objectName, png, "image/png")
	if err != nil {
		s.logger.Warn().Err(err).Str("session_id", sessionID).Msg("Failed to upload QR code")
		return ""
	}
	return url
}
