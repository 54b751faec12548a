package service_registry

import (
	"errors"
	"fmt"

	"github.com/benmeehan/geo-attendance/internal/constants"
	"github.com/benmeehan/geo-attendance/internal/metrics_collectors"
	mqtt_middleware "github.com/benmeehan/geo-attendance/internal/middlewares/mqtt"
	"github.com/benmeehan/geo-attendance/internal/registry"
	"github.com/benmeehan/geo-attendance/internal/services"
	"github.com/benmeehan/geo-attendance/internal/state_managers"
	"github.com/benmeehan/geo-attendance/internal/utils"
	"github.com/benmeehan/geo-attendance/internal/verifier"
	"github.com/benmeehan/geo-attendance/pkg/integrity"
	"github.com/benmeehan/geo-attendance/pkg/location"
	"github.com/benmeehan/geo-attendance/pkg/mqtt"
	"github.com/benmeehan/geo-attendance/pkg/qrpayload"
	"github.com/benmeehan/geo-attendance/pkg/s3"
	"github.com/rs/zerolog"
)

// Dependencies are the shared components handed to services.
type Dependencies struct {
	NodeID        string
	Middleware    mqtt_middleware.MQTTMiddleware
	Provider      location.Provider // optional
	Hasher        integrity.Hasher
	Verifier      *verifier.LocationVerifier
	Sessions      state_managers.SessionStore
	Ledger        state_managers.AttendanceLedger
	Codec         *qrpayload.Codec
	ObjectStorage s3.ObjectStorageClient              // optional
	Metrics       *metrics_collectors.MetricsRegistry // optional
}

// ServiceRegistry manages the lifecycle of various services in the system.
type ServiceRegistry struct {
	services    map[string]registry.Service // Stores registered services
	serviceKeys []string                    // Maintains order of service registration
	mqttClient  mqtt.MQTTClient
	Logger      zerolog.Logger
}

// NewServiceRegistry initializes a new service registry with dependencies.
func NewServiceRegistry(mqttClient mqtt.MQTTClient, logger zerolog.Logger) *ServiceRegistry {
	return &ServiceRegistry{
		services:   make(map[string]registry.Service),
		mqttClient: mqttClient,
		Logger:     logger,
	}
}

// RegisterService adds a new service to the registry.
func (sr *ServiceRegistry) RegisterService(name string, svc registry.Service) {
	if _, exists := sr.services[name]; exists {
		sr.Logger.Warn().Msgf("Service %s is already registered", name)
		return
	}
	sr.services[name] = svc
	sr.serviceKeys = append(sr.serviceKeys, name)
	sr.Logger.Info().Msgf("Registered service: %s", name)
}

// ServiceNames returns the registered service names in start order.
func (sr *ServiceRegistry) ServiceNames() []string {
	return append([]string(nil), sr.serviceKeys...)
}

// StartServices initiates all registered services in order.
// If a service fails to start, it stops already started services.
func (sr *ServiceRegistry) StartServices() error {
	startedServices := []string{}

	for _, name := range sr.serviceKeys {
		svc := sr.services[name]
		sr.Logger.Info().Msgf("Starting service: %s", name)
		if err := svc.Start(); err != nil {
			sr.Logger.Error().Err(err).Msgf("Failed to start service: %s", name)

			// Stop already started services before returning
			sr.Logger.Warn().Msg("Stopping already started services due to startup failure...")
			for i := len(startedServices) - 1; i >= 0; i-- {
				_ = sr.services[startedServices[i]].Stop()
			}
			return fmt.Errorf("failed to start %s: %w", name, err)
		}
		startedServices = append(startedServices, name)
	}

	return nil
}

// StopServices stops all services in reverse order.
func (sr *ServiceRegistry) StopServices() error {
	var stopErrors []error
	for i := len(sr.serviceKeys) - 1; i >= 0; i-- {
		name := sr.serviceKeys[i]
		if err := sr.services[name].Stop(); err != nil {
			stopErrors = append(stopErrors, fmt.Errorf("failed to stop %s: %w", name, err))
		}
	}
	if len(stopErrors) > 0 {
		for _, e := range stopErrors {
			sr.Logger.Error().Err(e).Msg("Service stop failure")
		}
		return errors.Join(stopErrors...)
	}
	return nil
}

// RegisterServices initializes and registers enabled services based on configuration.
func (sr *ServiceRegistry) RegisterServices(config *utils.Config, deps Dependencies) error {
	if deps.Middleware == nil {
		return errors.New("service registry requires an MQTT middleware")
	}

	// Ordered service definitions with inline constructors
	servicesInOrder := []struct {
		name        string
		enabled     bool
		constructor func() (registry.Service, error)
	}{
		{
			name:    constants.SessionServiceName,
			enabled: config.Services.Sessions.Enabled,
			constructor: func() (registry.Service, error) {
				return services.NewSessionService(
					services.SessionServiceConfig{
						Topic:                  config.Services.Sessions.Topic,
						QOS:                    config.Services.Sessions.QOS,
						DefaultToleranceMeters: config.Verification.DefaultToleranceMeters,
						QRCodeSize:             config.Services.Sessions.QRCodeSize,
						Bucket:                 config.ObjectStorage.Bucket,
						AcquisitionTimeout:     config.Location.AcquisitionTimeout,
					},
					deps.Middleware,
					deps.Provider,
					deps.Hasher,
					deps.Sessions,
					deps.Codec,
					deps.ObjectStorage,
					sr.Logger.With().Str("service", constants.SessionServiceName).Logger(),
				), nil
			},
		},
		{
			name:    constants.AttendanceServiceName,
			enabled: config.Services.Attendance.Enabled,
			constructor: func() (registry.Service, error) {
				if deps.Verifier == nil {
					return nil, errors.New("attendance service requires a verifier")
				}
				return services.NewAttendanceService(
					services.AttendanceServiceConfig{
						Topic:         config.Services.Attendance.Topic,
						QOS:           config.Services.Attendance.QOS,
						Workers:       config.Services.Attendance.Workers,
						MaxSessionAge: config.Verification.MaxSessionAge,
					},
					deps.Middleware,
					deps.Verifier,
					deps.Sessions,
					deps.Ledger,
					deps.Codec,
					sr.Logger.With().Str("service", constants.AttendanceServiceName).Logger(),
				), nil
			},
		},
		{
			name:    constants.HeartbeatServiceName,
			enabled: config.Services.Heartbeat.Enabled,
			constructor: func() (registry.Service, error) {
				var stats services.VerifierStatsProvider
				if deps.Verifier != nil {
					stats = deps.Verifier
				}
				return services.NewHeartbeatService(
					config.Services.Heartbeat.Topic,
					config.Services.Heartbeat.Interval,
					config.Services.Heartbeat.QOS,
					deps.NodeID,
					deps.Middleware,
					stats,
					deps.Sessions,
					deps.Metrics,
					sr.Logger.With().Str("service", constants.HeartbeatServiceName).Logger(),
				), nil
			},
		},
		{
			name:    constants.SessionExpiryServiceName,
			enabled: config.Services.SessionExpiry.Enabled,
			constructor: func() (registry.Service, error) {
				var forgetter services.HistoryForgetter
				if deps.Verifier != nil {
					forgetter = deps.Verifier
				}
				return services.NewSessionExpiryService(
					config.Services.SessionExpiry.Interval,
					config.Verification.MaxSessionAge,
					deps.Sessions,
					forgetter,
					sr.Logger.With().Str("service", constants.SessionExpiryServiceName).Logger(),
				), nil
			},
		},
	}

	// Register services in the predefined order
	registeredServices := []string{}
	for _, svc := range servicesInOrder {
		if svc.enabled {
			serviceInstance, err := svc.constructor()
			if err != nil {
				sr.Logger.Error().Err(err).Msgf("Failed to create %s service", svc.name)
				return err
			}
			sr.RegisterService(svc.name, serviceInstance)
			registeredServices = append(registeredServices, svc.name)
		}
	}

	sr.Logger.Info().Msgf("Registered services in order: %v", registeredServices)
	return nil
}
