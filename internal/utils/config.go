package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/benmeehan/geo-attendance/internal/constants"
	"github.com/benmeehan/geo-attendance/pkg/file"
	"github.com/benmeehan/geo-attendance/pkg/integrity"
)

// Config represents the structure of the configuration file.
type Config struct {
	Node struct {
		ID           string `yaml:"id"`            // Node identifier reported in heartbeats; overrides the identity file
		IdentityFile string `yaml:"identity_file"` // Path to the persisted node identity
		LogLevel     string `yaml:"log_level"`     // zerolog level name
	} `yaml:"node"`

	MQTT struct {
		Broker        string        `yaml:"broker"`         // MQTT broker address
		ClientID      string        `yaml:"client_id"`      // MQTT client ID prefix
		CACertificate string        `yaml:"ca_certificate"` // Path to the CA certificate (optional)
		Username      string        `yaml:"username"`       // Broker username (optional)
		PasswordFile  string        `yaml:"password_file"`  // Path to the broker password
		Timeout       time.Duration `yaml:"timeout"`        // Connect timeout
	} `yaml:"mqtt"`

	Verification struct {
		DefaultToleranceMeters int           `yaml:"default_tolerance_meters"` // Tolerance for sessions that do not set one
		MaxReadingAge          time.Duration `yaml:"max_reading_age"`          // Freshness gate
		MaxAccuracyMeters      float64       `yaml:"max_accuracy_meters"`      // Accuracy gate
		MaxSessionAge          time.Duration `yaml:"max_session_age"`          // Session lifetime
		HistoryCapacity        int           `yaml:"history_capacity"`         // Attempts kept per history key
		KeyHistoryByStudent    bool          `yaml:"key_history_by_student"`   // Track movement per student instead of per session

		Movement struct {
			Window            int           `yaml:"window"`              // Attempts inspected
			MaxDistanceMeters float64       `yaml:"max_distance_meters"` // Displacement threshold
			MinInterval       time.Duration `yaml:"min_interval"`        // Elapsed-time threshold
		} `yaml:"movement"`

		Integrity struct {
			Mode         string `yaml:"mode"`          // "legacy" or "hmac"
			LegacySecret string `yaml:"legacy_secret"` // Shared secret for legacy checksums
		} `yaml:"integrity"`
	} `yaml:"verification"`

	Location struct {
		Provider           string        `yaml:"provider"`            // "none", "sensor" or "google"
		GPSDevicePort      string        `yaml:"gps_device_port"`     // UNIX Port where the GPS sensor is mounted
		GPSDeviceBaudRate  int           `yaml:"gps_baud_rate"`       // The Baud rate for GPS sensor
		GPSReadTimeout     time.Duration `yaml:"gps_read_timeout"`    // Serial read timeout
		MapsAPIKey         string        `yaml:"maps_api_key"`        // Google maps API Key
		ModemIndex         int           `yaml:"modem_index"`         // mmcli modem index for cell scans
		AcquisitionTimeout time.Duration `yaml:"acquisition_timeout"` // Bound on one location request

		Fallback struct {
			Enabled        bool    `yaml:"enabled"`         // Substitute a fixed location when acquisition fails
			Latitude       float64 `yaml:"latitude"`        // Fallback latitude
			Longitude      float64 `yaml:"longitude"`       // Fallback longitude
			AccuracyMeters float64 `yaml:"accuracy_meters"` // Fallback accuracy
		} `yaml:"fallback"`
	} `yaml:"location"`

	Storage struct {
		AttendanceFile string `yaml:"attendance_file"` // Ledger file; empty keeps records in memory
	} `yaml:"storage"`

	ObjectStorage struct {
		Enabled         bool          `yaml:"enabled"`          // Upload QR code images
		Endpoint        string        `yaml:"endpoint"`         // S3-compatible endpoint
		AccessKeyID     string        `yaml:"access_key_id"`    // Access key
		SecretKeyFile   string        `yaml:"secret_key_file"`  // Path to the secret access key
		UseSSL          bool          `yaml:"use_ssl"`          // Use HTTPS
		Bucket          string        `yaml:"bucket"`           // Bucket for QR images
		Region          string        `yaml:"region"`           // Bucket region
		PresignedExpiry time.Duration `yaml:"presigned_expiry"` // Lifetime of download URLs
	} `yaml:"object_storage"`

	Services struct {
		Sessions struct {
			Enabled        bool   `yaml:"enabled"`         // Enable/disable session service
			Topic          string `yaml:"topic"`           // MQTT topic prefix for session requests
			QOS            int    `yaml:"qos"`             // MQTT QoS level
			QRCodeSize     int    `yaml:"qr_code_size"`    // Rendered QR image size in pixels
			EncryptPayload bool   `yaml:"encrypt_payload"` // Seal QR payloads with AES-GCM
		} `yaml:"sessions"`

		Attendance struct {
			Enabled bool   `yaml:"enabled"` // Enable/disable attendance service
			Topic   string `yaml:"topic"`   // MQTT topic prefix for claims
			QOS     int    `yaml:"qos"`     // MQTT QoS level
			Workers int    `yaml:"workers"` // Concurrent claim evaluations
		} `yaml:"attendance"`

		Heartbeat struct {
			Enabled  bool          `yaml:"enabled"`  // Enable/disable heartbeat service
			Topic    string        `yaml:"topic"`    // MQTT topic for heartbeats
			QOS      int           `yaml:"qos"`      // MQTT QoS level
			Interval time.Duration `yaml:"interval"` // Interval between heartbeats
		} `yaml:"heartbeat"`

		SessionExpiry struct {
			Enabled  bool          `yaml:"enabled"`  // Enable/disable expired session cleanup
			Interval time.Duration `yaml:"interval"` // Cleanup interval
		} `yaml:"session_expiry"`
	} `yaml:"services"`

	Security struct {
		MasterSecretFile string `yaml:"master_secret_file"` // Path to the master secret used for key derivation
	} `yaml:"security"`

	Middlewares struct {
		Signing struct {
			Enabled bool `yaml:"enabled"` // Sign outbound and verify inbound MQTT payloads
		} `yaml:"signing"`
	} `yaml:"middlewares"`
}

// LoadConfig loads the YAML configuration from the specified file, applies
// defaults and validates the result.
func LoadConfig(filename string, fileClient file.FileOperations) (*Config, error) {
	var config Config
	if err := fileClient.ReadYamlFile(filename, &config); err != nil {
		return nil, err
	}

	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &config, nil
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Node.LogLevel == "" {
		c.Node.LogLevel = "info"
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "geo-attendance"
	}

	v := &c.Verification
	if v.DefaultToleranceMeters == 0 {
		v.DefaultToleranceMeters = constants.DefaultToleranceMeters
	}
	if v.MaxReadingAge == 0 {
		v.MaxReadingAge = constants.DefaultMaxReadingAge
	}
	if v.MaxAccuracyMeters == 0 {
		v.MaxAccuracyMeters = constants.DefaultMaxAccuracyMeters
	}
	if v.MaxSessionAge == 0 {
		v.MaxSessionAge = constants.DefaultMaxSessionAge
	}
	if v.HistoryCapacity == 0 {
		v.HistoryCapacity = constants.DefaultHistoryCapacity
	}
	if v.Movement.Window == 0 {
		v.Movement.Window = constants.DefaultMovementWindow
	}
	if v.Movement.MaxDistanceMeters == 0 {
		v.Movement.MaxDistanceMeters = constants.DefaultMovementDistanceMeters
	}
	if v.Movement.MinInterval == 0 {
		v.Movement.MinInterval = constants.DefaultMovementInterval
	}
	if v.Integrity.Mode == "" {
		v.Integrity.Mode = integrity.ModeHMAC
	}
	if v.Integrity.LegacySecret == "" {
		v.Integrity.LegacySecret = integrity.DefaultLegacySecret
	}

	if c.Location.Provider == "" {
		c.Location.Provider = constants.ProviderNone
	}
	if c.Location.AcquisitionTimeout == 0 {
		c.Location.AcquisitionTimeout = constants.DefaultAcquisitionTimeout
	}

	if c.ObjectStorage.PresignedExpiry == 0 {
		c.ObjectStorage.PresignedExpiry = constants.DefaultPresignedURLExpiry
	}

	s := &c.Services
	if s.Sessions.QRCodeSize == 0 {
		s.Sessions.QRCodeSize = constants.DefaultQRCodeSize
	}
	if s.Attendance.Workers == 0 {
		s.Attendance.Workers = constants.DefaultAttendanceWorkers
	}
	if s.Heartbeat.Interval == 0 {
		s.Heartbeat.Interval = constants.DefaultHeartbeatInterval
	}
	if s.SessionExpiry.Interval == 0 {
		s.SessionExpiry.Interval = constants.DefaultExpiryCheckInterval
	}
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var errs []error

	if c.MQTT.Broker == "" {
		errs = append(errs, errors.New("mqtt.broker is required"))
	}

	modes := SliceToSet([]string{integrity.ModeLegacy, integrity.ModeHMAC})
	if _, ok := modes[c.Verification.Integrity.Mode]; !ok {
		errs = append(errs, fmt.Errorf("verification.integrity.mode %q is not supported", c.Verification.Integrity.Mode))
	}

	tol := c.Verification.DefaultToleranceMeters
	if tol < constants.MinToleranceMeters || tol > constants.MaxToleranceMeters {
		errs = append(errs, fmt.Errorf("verification.default_tolerance_meters must be within [%d, %d]",
			constants.MinToleranceMeters, constants.MaxToleranceMeters))
	}

	if m := c.Verification.Movement; m.Window < 2 {
		errs = append(errs, errors.New("verification.movement.window must be at least 2"))
	} else if c.Verification.HistoryCapacity < m.Window-1 {
		errs = append(errs, fmt.Errorf("verification.history_capacity must hold at least %d attempts for a movement window of %d",
			m.Window-1, m.Window))
	}

	providers := SliceToSet([]string{constants.ProviderNone, constants.ProviderSensor, constants.ProviderGoogle})
	if _, ok := providers[c.Location.Provider]; !ok {
		errs = append(errs, fmt.Errorf("location.provider %q is not supported", c.Location.Provider))
	}
	if c.Location.Provider == constants.ProviderSensor && c.Location.GPSDevicePort == "" {
		errs = append(errs, errors.New("location.gps_device_port is required for the sensor provider"))
	}
	if c.Location.Provider == constants.ProviderGoogle && c.Location.MapsAPIKey == "" {
		errs = append(errs, errors.New("location.maps_api_key is required for the google provider"))
	}

	needsSecret := c.Verification.Integrity.Mode == integrity.ModeHMAC ||
		c.Middlewares.Signing.Enabled ||
		c.Services.Sessions.EncryptPayload
	if needsSecret && c.Security.MasterSecretFile == "" {
		errs = append(errs, errors.New("security.master_secret_file is required for hmac integrity, signing or payload encryption"))
	}

	if c.ObjectStorage.Enabled && (c.ObjectStorage.Endpoint == "" || c.ObjectStorage.Bucket == "") {
		errs = append(errs, errors.New("object_storage.endpoint and object_storage.bucket are required when enabled"))
	}

	for name, qos := range map[string]int{
		"sessions":   c.Services.Sessions.QOS,
		"attendance": c.Services.Attendance.QOS,
		"heartbeat":  c.Services.Heartbeat.QOS,
	} {
		if qos < 0 || qos > 2 {
			errs = append(errs, fmt.Errorf("services.%s.qos must be 0, 1 or 2", name))
		}
	}

	if c.Services.Sessions.Enabled && c.Services.Sessions.Topic == "" {
		errs = append(errs, errors.New("services.sessions.topic is required"))
	}
	if c.Services.Attendance.Enabled && c.Services.Attendance.Topic == "" {
		errs = append(errs, errors.New("services.attendance.topic is required"))
	}
	if c.Services.Heartbeat.Enabled && c.Services.Heartbeat.Topic == "" {
		errs = append(errs, errors.New("services.heartbeat.topic is required"))
	}

	return errors.Join(errs...)
}
