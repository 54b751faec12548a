package mqtt_middleware_test

import (
	"errors"
	"testing"

	mqtt_middleware "github.com/benmeehan/geo-attendance/internal/middlewares/mqtt"
	"github.com/benmeehan/geo-attendance/internal/mocks"
	"github.com/benmeehan/geo-attendance/pkg/encryption"
	mqttLib "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newSigner(t *testing.T) *encryption.Signer {
	t.Helper()
	signer, err := encryption.NewSigner([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	return signer
}

func TestChainedMQTTClient_NoMiddlewares(t *testing.T) {
	client := new(mocks.MockMQTTClient)
	client.On("Publish", "t", byte(1), false, []byte("x")).Return(mocks.NewCompletedToken(nil))
	client.On("Unsubscribe", []string{"t"}).Return(mocks.NewCompletedToken(errors.New("gone")))

	chain := mqtt_middleware.NewChainedMQTTClient(client, nil)

	assert.NoError(t, chain.Publish("t", 1, false, []byte("x")))
	assert.EqualError(t, chain.Unsubscribe("t"), "gone")
	client.AssertExpectations(t)
}

func TestChainedMQTTClient_LinksInOrder(t *testing.T) {
	outer := new(mocks.MockMQTTMiddleware)
	inner := new(mocks.MockMQTTMiddleware)
	inner.On("SetNext", mock.Anything).Return()
	outer.On("SetNext", inner).Return()
	outer.On("Publish", "attendance/response/r1", byte(1), false, "ok").Return(nil)

	chain := mqtt_middleware.NewChainedMQTTClient(new(mocks.MockMQTTClient), []mqtt_middleware.MQTTMiddleware{outer, inner})

	require.NoError(t, chain.Publish("attendance/response/r1", 1, false, "ok"))
	outer.AssertExpectations(t)
	inner.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestChainedMQTTClient_InitFailure(t *testing.T) {
	mw := new(mocks.MockMQTTMiddleware)
	mw.On("SetNext", mock.Anything).Return()
	mw.On("Init", "params").Return(errors.New("boom"))

	chain := mqtt_middleware.NewChainedMQTTClient(new(mocks.MockMQTTClient), []mqtt_middleware.MQTTMiddleware{mw})

	assert.ErrorContains(t, chain.Init("params"), "boom")
}

func TestSigningMiddleware_SignsOutbound(t *testing.T) {
	signer := newSigner(t)
	client := new(mocks.MockMQTTClient)

	var published []byte
	client.On("Publish", "attendance/response/r1", byte(1), false, mock.Anything).
		Run(func(args mock.Arguments) { published = args.Get(3).([]byte) }).
		Return(mocks.NewCompletedToken(nil))

	mw := mqtt_middleware.NewSigningMiddleware(signer, zerolog.Nop())
	chain := mqtt_middleware.NewChainedMQTTClient(client, []mqtt_middleware.MQTTMiddleware{mw})
	require.NoError(t, chain.Init(nil))

	require.NoError(t, chain.Publish("attendance/response/r1", 1, false, map[string]string{"status": "ok"}))

	payload, ok := signer.VerifyPayloadSignature(published)
	require.True(t, ok)
	assert.JSONEq(t, `{"status":"ok"}`, string(payload))
}

func TestSigningMiddleware_VerifiesInbound(t *testing.T) {
	signer := newSigner(t)
	client := new(mocks.MockMQTTClient)

	var handler mqttLib.MessageHandler
	client.On("Subscribe", "attendance/submit", byte(1), mock.Anything).
		Run(func(args mock.Arguments) { handler = args.Get(2).(mqttLib.MessageHandler) }).
		Return(mocks.NewCompletedToken(nil))

	mw := mqtt_middleware.NewSigningMiddleware(signer, zerolog.Nop())
	chain := mqtt_middleware.NewChainedMQTTClient(client, []mqtt_middleware.MQTTMiddleware{mw})

	var received [][]byte
	require.NoError(t, chain.Subscribe("attendance/submit", 1, func(_ mqttLib.Client, msg mqttLib.Message) {
		received = append(received, msg.Payload())
	}))
	require.NotNil(t, handler)

	signed, err := signer.SignPayload([]byte("hello"))
	require.NoError(t, err)

	handler(nil, mocks.NewMockMessage("attendance/submit", signed))
	handler(nil, mocks.NewMockMessage("attendance/submit", []byte("unsigned")))

	tampered := append([]byte{}, signed...)
	tampered[0] ^= 0xff
	handler(nil, mocks.NewMockMessage("attendance/submit", tampered))

	require.Len(t, received, 1)
	assert.Equal(t, []byte("hello"), received[0])
}

func TestSigningMiddleware_RequiresSigner(t *testing.T) {
	mw := mqtt_middleware.NewSigningMiddleware(nil, zerolog.Nop())
	assert.Error(t, mw.Init(nil))
	assert.ErrorIs(t, mw.Publish("t", 0, false, []byte("x")), mqtt_middleware.ErrNoNextMiddleware)
}
