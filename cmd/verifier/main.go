package main

import (
	"bytes"
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benmeehan/geo-attendance/internal/constants"
	"github.com/benmeehan/geo-attendance/internal/metrics_collectors"
	"github.com/benmeehan/geo-attendance/internal/service_registry"
	"github.com/benmeehan/geo-attendance/internal/state_managers"
	"github.com/benmeehan/geo-attendance/internal/utils"
	"github.com/benmeehan/geo-attendance/internal/verifier"
	"github.com/benmeehan/geo-attendance/pkg/encryption"
	"github.com/benmeehan/geo-attendance/pkg/file"
	"github.com/benmeehan/geo-attendance/pkg/identity"
	"github.com/benmeehan/geo-attendance/pkg/integrity"
	"github.com/benmeehan/geo-attendance/pkg/location"
	"github.com/benmeehan/geo-attendance/pkg/mqtt"
	"github.com/benmeehan/geo-attendance/pkg/qrpayload"
	"github.com/benmeehan/geo-attendance/pkg/s3"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the configuration file")
	flag.Parse()

	// Set up structured logging with JSON output
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	// Initialize file operations handler
	fileClient := file.NewFileService()

	// Load configuration from file
	config, err := utils.LoadConfig(*configPath, fileClient)
	if err != nil {
		logger.Fatal().Err(err).Str("config", *configPath).Msg("Failed to load configuration")
	}

	level, err := zerolog.ParseLevel(config.Node.LogLevel)
	if err != nil {
		logger.Warn().Err(err).Str("level", config.Node.LogLevel).Msg("Unknown log level, using info")
		level = zerolog.InfoLevel
	}
	logger = logger.Level(level)

	// Generate a unique MQTT Client ID by appending a UUID
	config.MQTT.ClientID = config.MQTT.ClientID + "-" + uuid.New().String()
	if config.Node.ID == "" && config.Node.IdentityFile != "" {
		nodeID, err := identity.NewNodeInfo(config.Node.IdentityFile, fileClient).EnsureNodeID()
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to load node identity")
		}
		config.Node.ID = nodeID
	}
	if config.Node.ID == "" {
		config.Node.ID = config.MQTT.ClientID
	}
	logger.Info().Str("client_id", config.MQTT.ClientID).Str("node_id", config.Node.ID).Msg("Starting verifier node")

	keys := loadKeys(config, fileClient, logger)

	hasher, err := integrity.New(config.Verification.Integrity.Mode, config.Verification.Integrity.LegacySecret, keys.Integrity)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create integrity hasher")
	}

	codec := qrpayload.NewCodec(nil)
	if config.Services.Sessions.EncryptPayload {
		cipher, err := encryption.NewEncryptionManager(keys.Payload)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to create payload cipher")
		}
		codec = qrpayload.NewCodec(cipher)
	}

	locationVerifier := verifier.New(verifier.Options{
		MaxReadingAge:     config.Verification.MaxReadingAge,
		MaxAccuracyMeters: config.Verification.MaxAccuracyMeters,
		HistoryCapacity:   config.Verification.HistoryCapacity,
		Movement: verifier.MovementPolicy{
			Window:            config.Verification.Movement.Window,
			MaxDistanceMeters: config.Verification.Movement.MaxDistanceMeters,
			MinInterval:       config.Verification.Movement.MinInterval,
		},
		KeyByStudent: config.Verification.KeyHistoryByStudent,
	}, hasher, logger.With().Str("component", "verifier").Logger())

	provider := buildProvider(config, logger)
	if provider != nil {
		defer provider.Close()
	}

	// Initialize the shared MQTT connection
	mqttClient := mqtt.NewMqttService(fileClient)
	err = mqttClient.Initialize(mqtt.ConnectionOptions{
		Broker:         config.MQTT.Broker,
		ClientID:       config.MQTT.ClientID,
		CACertPath:     config.MQTT.CACertificate,
		Username:       config.MQTT.Username,
		Password:       readSecret(config.MQTT.PasswordFile, fileClient, logger),
		ConnectTimeout: config.MQTT.Timeout,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize MQTT connection")
	}

	// Create a new service registry to manage services
	serviceRegistry := service_registry.NewServiceRegistry(mqttClient, logger)

	var signer encryption.SignerInterface
	if config.Middlewares.Signing.Enabled {
		s, err := encryption.NewSigner(keys.Signing)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to create payload signer")
		}
		signer = s
	}

	middleware, err := serviceRegistry.InitializeMiddlewares(config, signer)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize MQTT middlewares")
	}

	deps := service_registry.Dependencies{
		NodeID:     config.Node.ID,
		Middleware: middleware,
		Provider:   provider,
		Hasher:     hasher,
		Verifier:   locationVerifier,
		Sessions:   state_managers.NewMemorySessionStore(),
		Ledger:     state_managers.NewFileAttendanceLedger(config.Storage.AttendanceFile, fileClient, logger),
		Codec:      codec,
		Metrics:    metrics_collectors.NewDefaultRegistry(logger),
	}
	if storage := connectObjectStorage(config, fileClient, logger); storage != nil {
		deps.ObjectStorage = storage
	}

	// Register all services based on the configuration
	if err := serviceRegistry.RegisterServices(config, deps); err != nil {
		logger.Fatal().Err(err).Msg("Failed to register services")
	}

	// Start all registered services in the registry
	if err := serviceRegistry.StartServices(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start services")
	}
	logger.Info().Msg("All services started successfully")

	// Handle graceful shutdown
	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)
	<-stopCh

	logger.Info().Msg("Shutting down gracefully...")
	if err := serviceRegistry.StopServices(); err != nil {
		logger.Error().Err(err).Msg("Some services failed to stop")
	}
	mqttClient.Disconnect(250)
}

// loadKeys derives the node keys from the master secret, when configured.
func loadKeys(config *utils.Config, fileClient file.FileOperations, logger zerolog.Logger) encryption.Keys {
	if config.Security.MasterSecretFile == "" {
		return encryption.Keys{}
	}

	master, err := fileClient.ReadFileRaw(config.Security.MasterSecretFile)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to read master secret")
	}

	keys, err := encryption.DeriveKeys(bytes.TrimSpace(master))
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to derive keys")
	}
	return keys
}

// buildProvider returns the configured location provider, or nil when the
// node has neither a location source nor a fallback.
func buildProvider(config *utils.Config, logger zerolog.Logger) location.Provider {
	var primary location.Provider
	switch config.Location.Provider {
	case constants.ProviderSensor:
		primary = location.NewDeviceSensorProvider(config.Location.GPSDevicePort, config.Location.GPSDeviceBaudRate, config.Location.GPSReadTimeout)
	case constants.ProviderGoogle:
		provider, err := location.NewGoogleGeolocationProvider(config.Location.MapsAPIKey, config.Location.ModemIndex)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to create Google Geolocation provider")
		}
		primary = provider
	}

	fallback := config.Location.Fallback
	if !fallback.Enabled {
		return primary
	}

	logger.Warn().
		Float64("latitude", fallback.Latitude).
		Float64("longitude", fallback.Longitude).
		Msg("Fallback location enabled; sessions may be anchored to a fixed point")
	return location.NewFallbackProvider(primary, &location.Reading{
		Latitude:       fallback.Latitude,
		Longitude:      fallback.Longitude,
		AccuracyMeters: fallback.AccuracyMeters,
	}, time.Now)
}

func connectObjectStorage(config *utils.Config, fileClient file.FileOperations, logger zerolog.Logger) s3.ObjectStorageClient {
	if !config.ObjectStorage.Enabled {
		return nil
	}

	storage := s3.NewObjectStorage(config.ObjectStorage.Region, config.ObjectStorage.PresignedExpiry)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := storage.Connect(ctx,
		config.ObjectStorage.Endpoint,
		config.ObjectStorage.AccessKeyID,
		readSecret(config.ObjectStorage.SecretKeyFile, fileClient, logger),
		config.ObjectStorage.UseSSL,
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to object storage")
	}
	return storage
}

func readSecret(path string, fileClient file.FileOperations, logger zerolog.Logger) string {
	if path == "" {
		return ""
	}
	data, err := fileClient.ReadFileRaw(path)
	if err != nil {
		logger.Fatal().Err(err).Str("file", path).Msg("Failed to read secret file")
	}
	return string(bytes.TrimSpace(data))
}
