package constants

import "time"

// Service names, in registration order.
const (
	SessionServiceName       = "sessions"
	AttendanceServiceName    = "attendance"
	HeartbeatServiceName     = "heartbeat"
	SessionExpiryServiceName = "session_expiry"
)

// Middleware names
const (
	SIGNING_MIDDLEWARE = "signing"
)

// Location provider kinds
const (
	ProviderNone   = "none"
	ProviderSensor = "sensor"
	ProviderGoogle = "google"
)

// Claim response statuses
const (
	ClaimStatusRecorded        = "recorded"
	ClaimStatusRejected        = "rejected"
	ClaimStatusAlreadyRecorded = "already_recorded"
	ClaimStatusError           = "error"
)

const (
	DefaultAttendanceWorkers   = 4
	DefaultHeartbeatInterval   = 30 * time.Second
	DefaultExpiryCheckInterval = time.Minute
	DefaultQRCodeSize          = 256
	DefaultPresignedURLExpiry  = 24 * time.Hour
	DefaultAcquisitionTimeout  = 15 * time.Second
)

// Heartbeat statuses
const (
	StatusAlive = "alive"
)
