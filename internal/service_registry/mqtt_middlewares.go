package service_registry

import (
	"fmt"

	"github.com/benmeehan/geo-attendance/internal/constants"
	mqtt_middleware "github.com/benmeehan/geo-attendance/internal/middlewares/mqtt"
	"github.com/benmeehan/geo-attendance/internal/utils"
	"github.com/benmeehan/geo-attendance/pkg/encryption"
)

// InitializeMiddlewares sets up the middleware chain based on configuration.
// signer may be nil when signing is disabled.
func (sr *ServiceRegistry) InitializeMiddlewares(config *utils.Config, signer encryption.SignerInterface) (mqtt_middleware.MQTTMiddleware, error) {
	var middlewares []mqtt_middleware.MQTTMiddleware

	// Ordered middleware definitions
	middlewaresInOrder := []struct {
		name        string
		enabled     bool
		constructor func() (mqtt_middleware.MQTTMiddleware, error)
	}{
		{
			name:    constants.SIGNING_MIDDLEWARE,
			enabled: config.Middlewares.Signing.Enabled,
			constructor: func() (mqtt_middleware.MQTTMiddleware, error) {
				signing := mqtt_middleware.NewSigningMiddleware(signer, sr.Logger)
				if err := signing.Init(nil); err != nil {
					return nil, fmt.Errorf("failed to initialize signing middleware: %w", err)
				}
				return signing, nil
			},
		},
	}

	// Initialize middlewares in order
	for _, mw := range middlewaresInOrder {
		if mw.enabled {
			middlewareInstance, err := mw.constructor()
			if err != nil {
				sr.Logger.Error().Err(err).Msgf("Failed to initialize %s middleware", mw.name)
				return nil, fmt.Errorf("failed to initialize %s middleware: %w", mw.name, err)
			}
			middlewares = append(middlewares, middlewareInstance)
			sr.Logger.Info().Str("middleware", mw.name).Msg("Middleware initialized")
		} else {
			sr.Logger.Debug().Str("middleware", mw.name).Msg("Middleware is disabled, skipping")
		}
	}

	// Create and return chained MQTT client
	chainedClient := mqtt_middleware.NewChainedMQTTClient(sr.mqttClient, middlewares)
	sr.Logger.Info().Int("middleware_count", len(middlewares)).Msg("Middleware chain initialized")
	return chainedClient, nil
}
