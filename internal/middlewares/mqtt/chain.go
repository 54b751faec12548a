package mqtt_middleware

import (
	"fmt"

	"github.com/benmeehan/geo-attendance/pkg/mqtt"
	mqttLib "github.com/eclipse/paho.mqtt.golang"
)

// ChainedMQTTClient is the entry point services publish and subscribe
// through. Calls pass through each middleware in order and end at the broker
// client.
type ChainedMQTTClient struct {
	middlewares []MQTTMiddleware
	head        MQTTMiddleware
}

// NewChainedMQTTClient links middlewares in order and terminates the chain at mqttClient.
func NewChainedMQTTClient(mqttClient mqtt.MQTTClient, middlewares []MQTTMiddleware) *ChainedMQTTClient {
	var next MQTTMiddleware = &brokerLink{client: mqttClient}
	for i := len(middlewares) - 1; i >= 0; i-- {
		middlewares[i].SetNext(next)
		next = middlewares[i]
	}
	return &ChainedMQTTClient{middlewares: middlewares, head: next}
}

// Init initializes every middleware with params, stopping at the first failure.
func (c *ChainedMQTTClient) Init(params interface{}) error {
	for i, mw := range c.middlewares {
		if err := mw.Init(params); err != nil {
			return fmt.Errorf("failed to init middleware %d: %w", i, err)
		}
	}
	return nil
}

func (c *ChainedMQTTClient) Publish(topic string, qos byte, retained bool, payload interface{}) error {
	return c.head.Publish(topic, qos, retained, payload)
}

func (c *ChainedMQTTClient) Subscribe(topic string, qos byte, callback mqttLib.MessageHandler) error {
	return c.head.Subscribe(topic, qos, callback)
}

func (c *ChainedMQTTClient) Unsubscribe(topics ...string) error {
	return c.head.Unsubscribe(topics...)
}

// SetNext is a no-op; the chain is always the outermost link.
func (c *ChainedMQTTClient) SetNext(MQTTMiddleware) {}

// brokerLink terminates the chain and waits for the broker to acknowledge.
type brokerLink struct {
	client mqtt.MQTTClient
}

func (b *brokerLink) Init(interface{}) error { return nil }

func (b *brokerLink) SetNext(MQTTMiddleware) {}

func (b *brokerLink) Publish(topic string, qos byte, retained bool, payload interface{}) error {
	return await(b.client.Publish(topic, qos, retained, payload))
}

func (b *brokerLink) Subscribe(topic string, qos byte, callback mqttLib.MessageHandler) error {
	return await(b.client.Subscribe(topic, qos, callback))
}

func (b *brokerLink) Unsubscribe(topics ...string) error {
	return await(b.client.Unsubscribe(topics...))
}

func await(token mqttLib.Token) error {
	token.Wait()
	return token.Error()
}
