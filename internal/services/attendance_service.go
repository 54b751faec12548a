package services

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/benmeehan/geo-attendance/internal/constants"
	mqtt_middleware "github.com/benmeehan/geo-attendance/internal/middlewares/mqtt"
	"github.com/benmeehan/geo-attendance/internal/models"
	"github.com/benmeehan/geo-attendance/internal/state_managers"
	"github.com/benmeehan/geo-attendance/internal/utils"
	"github.com/benmeehan/geo-attendance/internal/verifier"
	"github.com/benmeehan/geo-attendance/pkg/qrpayload"
	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AttendanceServiceConfig holds the tunables of an AttendanceService.
type AttendanceServiceConfig struct {
	Topic         string
	QOS           int
	Workers       int
	MaxSessionAge time.Duration
}

// AttendanceService evaluates attendance claims received over MQTT and
// records the accepted ones.
type AttendanceService struct {
	config AttendanceServiceConfig

	// Dependencies
	mqttMiddleware mqtt_middleware.MQTTMiddleware
	evaluator      ClaimEvaluator
	store          state_managers.SessionStore
	ledger         state_managers.AttendanceLedger
	codec          *qrpayload.Codec
	logger         zerolog.Logger

	now   func() time.Time
	newID func() string

	// Internal state management
	pool    *utils.WorkerPool
	mu      sync.Mutex
	running bool
}

// NewAttendanceService creates a new AttendanceService.
func NewAttendanceService(config AttendanceServiceConfig, mqttMiddleware mqtt_middleware.MQTTMiddleware, evaluator ClaimEvaluator,
	store state_managers.SessionStore, ledger state_managers.AttendanceLedger, codec *qrpayload.Codec, logger zerolog.Logger) *AttendanceService {
	if config.Workers <= 0 {
		config.Workers = constants.DefaultAttendanceWorkers
	}
	if config.MaxSessionAge <= 0 {
		config.MaxSessionAge = constants.DefaultMaxSessionAge
	}
	return &AttendanceService{
		config:         config,
		mqttMiddleware: mqttMiddleware,
		evaluator:      evaluator,
		store:          store,
		ledger:         ledger,
		codec:          codec,
		logger:         logger,
		now:            time.Now,
		newID:          uuid.NewString,
	}
}

func (a *AttendanceService) requestTopic() string {
	return a.config.Topic + "/submit"
}

func (a *AttendanceService) listTopic() string {
	return a.config.Topic + "/list"
}

// Start launches the worker pool and subscribes to claim submissions.
func (a *AttendanceService) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.running {
		a.logger.Warn().Msg("AttendanceService is already running")
		return errors.New("attendance service is already running")
	}

	a.pool = utils.NewWorkerPool(a.config.Workers)
	if err := a.mqttMiddleware.Subscribe(a.requestTopic(), byte(a.config.QOS), a.HandleClaim); err != nil {
		a.pool.Shutdown()
		a.pool = nil
		a.logger.Error().Err(err).Str("topic", a.requestTopic()).Msg("Failed to subscribe to MQTT topic")
		return err
	}
	if err := a.mqttMiddleware.Subscribe(a.listTopic(), byte(a.config.QOS), a.HandleListRequest); err != nil {
		if uerr := a.mqttMiddleware.Unsubscribe(a.requestTopic()); uerr != nil {
			a.logger.Warn().Err(uerr).Str("topic", a.requestTopic()).Msg("Failed to unsubscribe after partial start")
		}
		a.pool.Shutdown()
		a.pool = nil
		a.logger.Error().Err(err).Str("topic", a.listTopic()).Msg("Failed to subscribe to MQTT topic")
		return err
	}

	a.running = true
	a.logger.Info().Str("topic", a.requestTopic()).Int("workers", a.config.Workers).Msg("AttendanceService started successfully")
	return nil
}

// Stop unsubscribes and drains queued claims.
func (a *AttendanceService) Stop() error {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		a.logger.Warn().Msg("AttendanceService is not running")
		return errors.New("attendance service is not running")
	}
	a.running = false
	pool := a.pool
	a.mu.Unlock()

	err := a.mqttMiddleware.Unsubscribe(a.requestTopic(), a.listTopic())
	pool.Shutdown()
	if err != nil {
		a.logger.Error().Err(err).Str("topic", a.requestTopic()).Msg("Failed to unsubscribe from MQTT topics")
		return err
	}

	a.logger.Info().Msg("AttendanceService stopped successfully")
	return nil
}

// HandleClaim queues an incoming claim on the worker pool.
func (a *AttendanceService) HandleClaim(_ MQTT.Client, msg MQTT.Message) {
	a.mu.Lock()
	pool := a.pool
	running := a.running
	a.mu.Unlock()

	if !running {
		a.logger.Warn().Msg("Received claim but service is stopping, ignoring")
		return
	}

	payload := msg.Payload()
	topic := msg.Topic()
	if err := pool.Submit(func() { a.processMessage(topic, payload) }); err != nil {
		a.logger.Warn().Err(err).Str("topic", topic).Msg("Dropping claim")
	}
}

func (a *AttendanceService) processMessage(topic string, payload []byte) {
	var req models.ClaimRequest
	var resp models.ClaimResponse
	if err := json.Unmarshal(payload, &req); err != nil {
		a.logger.Error().Err(err).Str("topic", topic).Msg("Failed to parse claim request")
		req.RequestID = recoverRequestID(payload)
		if req.RequestID == "" {
			return
		}
		resp = rejected(models.ClaimResponse{RequestID: req.RequestID}, models.VerificationResult{Reason: constants.ReasonMissingFields}, 0)
		resp.Error = "malformed claim request"
	} else if req.RequestID == "" {
		a.logger.Error().Str("topic", topic).Msg("Claim request without request_id, dropping")
		return
	} else {
		resp = a.ProcessClaim(req)
	}

	respTopic := responseTopic(a.config.Topic, req.RequestID)
	if err := publishJSON(a.mqttMiddleware, respTopic, a.config.QOS, resp); err != nil {
		a.logger.Error().Err(err).Str("topic", respTopic).Msg("Failed to publish claim response")
	}
}

// ProcessClaim decides one claim and records it when accepted.
func (a *AttendanceService) ProcessClaim(req models.ClaimRequest) models.ClaimResponse {
	now := a.now()
	resp := models.ClaimResponse{RequestID: req.RequestID}

	if req.StudentID == "" || req.QRPayload == "" {
		return rejected(resp, models.VerificationResult{Reason: constants.ReasonMissingFields}, 0)
	}

	payload, err := a.codec.Decode(req.QRPayload)
	if err != nil {
		a.logger.Warn().Err(err).Str("student_id", req.StudentID).Msg("Rejecting claim with unreadable session code")
		return rejected(resp, models.VerificationResult{Reason: constants.ReasonMissingFields}, 0)
	}
	resp.SessionID = payload.SessionID

	stored, err := a.store.Get(payload.SessionID)
	if err != nil {
		resp.Status = constants.ClaimStatusError
		resp.Error = err.Error()
		a.logger.Warn().Err(err).Str("session_id", payload.SessionID).Msg("Claim for unknown session")
		return resp
	}

	// The scanned anchor and hash are evaluated so that altered codes fail the
	// integrity check. Tolerance is not covered by the hash, so it comes from
	// the store together with the creation time.
	session := payload.Descriptor()
	session.CreatedAt = stored.CreatedAt
	session.Course = stored.Course
	session.ToleranceMeters = stored.ToleranceMeters

	if verifier.SessionExpired(&stored, now, a.config.MaxSessionAge) {
		return rejected(resp, models.VerificationResult{Reason: constants.ReasonSessionExpired}, session.ToleranceMeters)
	}

	result, err := a.evaluator.EvaluateClaim(&session, req.StudentID, req.Reading, now)
	if err != nil {
		a.logger.Warn().Err(err).Str("session_id", session.SessionID).Str("student_id", req.StudentID).Msg("Malformed claim")
	}
	tolerance := verifier.ClampTolerance(session.ToleranceMeters)
	if !result.Accepted {
		return rejected(resp, result, tolerance)
	}

	resp.Accepted = true
	resp.Reason = result.Reason
	resp.DistanceMeters = result.DistanceMeters
	resp.Message = result.Message(tolerance)

	record := models.AttendanceRecord{
		ID:        a.newID(),
		StudentID: req.StudentID,
		SessionID: session.SessionID,
		Course:    session.Course,
		Timestamp: now,
		Location:  *req.Reading,
		Validated: true,
	}
	switch err := a.ledger.Append(record); {
	case err == nil:
		resp.Status = constants.ClaimStatusRecorded
		resp.RecordID = record.ID
	case errors.Is(err, state_managers.ErrAlreadyRecorded):
		resp.Status = constants.ClaimStatusAlreadyRecorded
	default:
		resp.Status = constants.ClaimStatusError
		resp.Error = err.Error()
	}
	return resp
}

// HandleListRequest answers a ListAttendanceRequest with the ledger contents.
func (a *AttendanceService) HandleListRequest(_ MQTT.Client, msg MQTT.Message) {
	var req models.ListAttendanceRequest
	if err := json.Unmarshal(msg.Payload(), &req); err != nil || req.RequestID == "" {
		a.logger.Error().Err(err).Str("topic", msg.Topic()).Msg("Invalid attendance list request, dropping")
		return
	}

	resp := a.ListAttendance(req)
	topic := responseTopic(a.config.Topic, req.RequestID)
	if err := publishJSON(a.mqttMiddleware, topic, a.config.QOS, resp); err != nil {
		a.logger.Error().Err(err).Str("topic", topic).Msg("Failed to publish attendance list")
	}
}

// ListAttendance returns the recorded attendance, optionally for one session.
func (a *AttendanceService) ListAttendance(req models.ListAttendanceRequest) models.ListAttendanceResponse {
	resp := models.ListAttendanceResponse{RequestID: req.RequestID, Records: []models.AttendanceRecord{}}

	var records []models.AttendanceRecord
	var err error
	if req.SessionID != "" {
		records, err = a.ledger.ListBySession(req.SessionID)
	} else {
		records, err = a.ledger.List()
	}
	if err != nil {
		resp.Error = err.Error()
		a.logger.Error().Err(err).Msg("Failed to list attendance")
		return resp
	}
	if records != nil {
		resp.Records = records
	}
	return resp
}

func rejected(resp models.ClaimResponse, result models.VerificationResult, tolerance int) models.ClaimResponse {
	resp.Status = constants.ClaimStatusRejected
	resp.Accepted = false
	resp.Reason = result.Reason
	resp.DistanceMeters = result.DistanceMeters
	resp.Message = result.Message(tolerance)
	return resp
}
