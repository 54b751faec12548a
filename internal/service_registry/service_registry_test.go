package service_registry

import (
	"errors"
	"testing"

	"github.com/benmeehan/geo-attendance/internal/constants"
	"github.com/benmeehan/geo-attendance/internal/mocks"
	"github.com/benmeehan/geo-attendance/internal/state_managers"
	"github.com/benmeehan/geo-attendance/internal/utils"
	"github.com/benmeehan/geo-attendance/internal/verifier"
	"github.com/benmeehan/geo-attendance/pkg/encryption"
	"github.com/benmeehan/geo-attendance/pkg/integrity"
	"github.com/benmeehan/geo-attendance/pkg/qrpayload"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	name     string
	startErr error
	stopErr  error
	events   *[]string
}

func (f *fakeService) Start() error {
	*f.events = append(*f.events, "start:"+f.name)
	return f.startErr
}

func (f *fakeService) Stop() error {
	*f.events = append(*f.events, "stop:"+f.name)
	return f.stopErr
}

func TestServiceRegistry_StartStopOrder(t *testing.T) {
	var events []string
	sr := NewServiceRegistry(new(mocks.MockMQTTClient), zerolog.Nop())
	sr.RegisterService("a", &fakeService{name: "a", events: &events})
	sr.RegisterService("b", &fakeService{name: "b", events: &events})
	sr.RegisterService("a", &fakeService{name: "dup", events: &events})

	require.NoError(t, sr.StartServices())
	require.NoError(t, sr.StopServices())

	assert.Equal(t, []string{"start:a", "start:b", "stop:b", "stop:a"}, events)
	assert.Equal(t, []string{"a", "b"}, sr.ServiceNames())
}

func TestServiceRegistry_StartRollback(t *testing.T) {
	var events []string
	sr := NewServiceRegistry(new(mocks.MockMQTTClient), zerolog.Nop())
	sr.RegisterService("a", &fakeService{name: "a", events: &events})
	sr.RegisterService("b", &fakeService{name: "b", events: &events, startErr: errors.New("boom")})
	sr.RegisterService("c", &fakeService{name: "c", events: &events})

	err := sr.StartServices()

	assert.ErrorContains(t, err, "boom")
	assert.Equal(t, []string{"start:a", "start:b", "stop:a"}, events)
}

func TestServiceRegistry_StopJoinsErrors(t *testing.T) {
	var events []string
	sr := NewServiceRegistry(new(mocks.MockMQTTClient), zerolog.Nop())
	sr.RegisterService("a", &fakeService{name: "a", events: &events, stopErr: errors.New("a failed")})
	sr.RegisterService("b", &fakeService{name: "b", events: &events, stopErr: errors.New("b failed")})

	err := sr.StopServices()

	assert.ErrorContains(t, err, "a failed")
	assert.ErrorContains(t, err, "b failed")
}

func testConfig() *utils.Config {
	var cfg utils.Config
	cfg.MQTT.Broker = "tcp://localhost:1883"
	cfg.Services.Sessions.Enabled = true
	cfg.Services.Sessions.Topic = "sessions"
	cfg.Services.Attendance.Enabled = true
	cfg.Services.Attendance.Topic = "attendance"
	cfg.Services.Heartbeat.Enabled = true
	cfg.Services.Heartbeat.Topic = "heartbeat"
	cfg.Services.SessionExpiry.Enabled = true
	cfg.ApplyDefaults()
	return &cfg
}

func TestRegisterServices_Order(t *testing.T) {
	sr := NewServiceRegistry(new(mocks.MockMQTTClient), zerolog.Nop())
	hasher := integrity.NewLegacyChecksum(integrity.DefaultLegacySecret)

	err := sr.RegisterServices(testConfig(), Dependencies{
		NodeID:     "node-1",
		Middleware: new(mocks.MockMQTTMiddleware),
		Hasher:     hasher,
		Verifier:   verifier.New(verifier.DefaultOptions(), hasher, zerolog.Nop()),
		Sessions:   state_managers.NewMemorySessionStore(),
		Ledger:     state_managers.NewFileAttendanceLedger("", nil, zerolog.Nop()),
		Codec:      qrpayload.NewCodec(nil),
	})

	require.NoError(t, err)
	assert.Equal(t, []string{
		constants.SessionServiceName,
		constants.AttendanceServiceName,
		constants.HeartbeatServiceName,
		constants.SessionExpiryServiceName,
	}, sr.ServiceNames())
}

func TestRegisterServices_RequiresDependencies(t *testing.T) {
	sr := NewServiceRegistry(new(mocks.MockMQTTClient), zerolog.Nop())
	assert.Error(t, sr.RegisterServices(testConfig(), Dependencies{}))

	err := sr.RegisterServices(testConfig(), Dependencies{Middleware: new(mocks.MockMQTTMiddleware)})
	assert.ErrorContains(t, err, "requires a verifier")
}

func TestInitializeMiddlewares(t *testing.T) {
	sr := NewServiceRegistry(new(mocks.MockMQTTClient), zerolog.Nop())
	cfg := testConfig()

	chain, err := sr.InitializeMiddlewares(cfg, nil)
	require.NoError(t, err)
	assert.NotNil(t, chain)

	cfg.Middlewares.Signing.Enabled = true
	_, err = sr.InitializeMiddlewares(cfg, nil)
	assert.ErrorContains(t, err, "signing")

	signer, err := encryption.NewSigner([]byte("0123456789abcdef"))
	require.NoError(t, err)
	chain, err = sr.InitializeMiddlewares(cfg, signer)
	require.NoError(t, err)
	assert.NotNil(t, chain)
}
