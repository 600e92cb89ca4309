package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/gmulz/viam-automated-gate/internal/config"
	"github.com/gmulz/viam-automated-gate/internal/logging"
)

// bufferCapacity bounds how many events are held while the broker is away.
const bufferCapacity = 128

// CommandHandler executes a decoded command payload and returns the
// response payload. Implemented by the command dispatcher.
type CommandHandler interface {
	Dispatch(ctx context.Context, source string, cmd map[string]any) (map[string]any, error)
}

// RealClient talks to an actual MQTT broker: it subscribes to the command
// topic and publishes responses, operation events, and system events.
type RealClient struct {
	client  paho.Client
	topics  Topics
	qos     byte
	handler CommandHandler
	logger  *logging.Logger

	// onConnection, if set, is called with the new connection state.
	onConnection func(connected bool)

	mu     sync.Mutex
	buffer *ringBuffer
}

// NewRealClient connects to the broker and subscribes to the command topic.
// onConnection may be nil.
func NewRealClient(cfg config.MQTTConfig, handler CommandHandler, logger *logging.Logger, onConnection func(bool)) (*RealClient, error) {
	c := &RealClient{
		topics:       TopicsFor(cfg.TopicPrefix),
		qos:          byte(cfg.QoS),
		handler:      handler,
		logger:       logger,
		onConnection: onConnection,
		buffer:       newRingBuffer(bufferCapacity),
	}

	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(c.onConnectionLost)

	c.client = paho.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return c, nil
}

// onConnect runs on every (re)connect: paho does not restore subscriptions.
func (c *RealClient) onConnect(client paho.Client) {
	token := client.Subscribe(c.topics.Command, c.qos, c.handleCommand)
	if !token.WaitTimeout(5 * time.Second) {
		c.logger.Error("command subscribe timeout", "topic", c.topics.Command)
	} else if err := token.Error(); err != nil {
		c.logger.Error("command subscribe failed", "topic", c.topics.Command, "error", err)
	} else {
		c.logger.Info("mqtt connected", "command_topic", c.topics.Command)
	}

	c.drainBuffer()

	if c.onConnection != nil {
		c.onConnection(true)
	}
}

func (c *RealClient) onConnectionLost(_ paho.Client, err error) {
	c.logger.Warn("mqtt connection lost", "error", err)
	if c.onConnection != nil {
		c.onConnection(false)
	}
}

// handleCommand decodes an inbound command and publishes the response.
// Runs in its own goroutine: open/close block until the operation ends.
func (c *RealClient) handleCommand(_ paho.Client, msg paho.Message) {
	go func() {
		var cmd map[string]any
		if err := json.Unmarshal(msg.Payload(), &cmd); err != nil {
			c.logger.Warn("malformed command payload", "error", err)
			c.publishResponse(nil, map[string]any{"status": "error", "error": "malformed command payload"})
			return
		}

		resp, err := c.handler.Dispatch(context.Background(), "mqtt", cmd)
		if err != nil {
			resp = map[string]any{"status": "error", "error": err.Error()}
		}
		c.publishResponse(cmd, resp)
	}()
}

// publishResponse echoes a request id, if present, into the response.
func (c *RealClient) publishResponse(cmd, resp map[string]any) {
	if id, ok := cmd["id"].(string); ok {
		resp["id"] = id
	}
	payload, err := json.Marshal(resp)
	if err != nil {
		c.logger.Error("marshal response", "error", err)
		return
	}
	if err := c.publish(c.topics.Response, c.qos, false, payload); err != nil {
		c.logger.Error("publish response", "error", err)
	}
}

// PublishEvent sends an operation outcome event. Events are buffered while
// the broker is unreachable and replayed on reconnect.
func (c *RealClient) PublishEvent(event Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	return c.publish(c.topics.Events, c.qos, false, payload)
}

// PublishSystem sends a system lifecycle event.
func (c *RealClient) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	// QoS 1 (at-least-once) for lifecycle events - we want to ensure delivery
	return c.publish(c.topics.System, 1, event.Retained, payload)
}

func (c *RealClient) publish(topic string, qos byte, retained bool, payload []byte) error {
	if !c.client.IsConnected() {
		c.mu.Lock()
		dropped := c.buffer.push(bufferedMsg{topic: topic, payload: payload, qos: qos, retained: retained})
		n := c.buffer.len()
		c.mu.Unlock()
		if dropped {
			c.logger.Warn("offline buffer full, dropping oldest message", "capacity", bufferCapacity)
		}
		c.logger.Debug("broker offline, message buffered", "topic", topic, "buffered", n)
		return nil
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

func (c *RealClient) drainBuffer() {
	c.mu.Lock()
	msgs := c.buffer.drainAll()
	c.mu.Unlock()
	if len(msgs) == 0 {
		return
	}

	c.logger.Info("replaying buffered messages", "count", len(msgs))
	for _, m := range msgs {
		token := c.client.Publish(m.topic, m.qos, m.retained, m.payload)
		if !token.WaitTimeout(5 * time.Second) {
			c.logger.Warn("buffered publish timeout", "topic", m.topic)
		} else if err := token.Error(); err != nil {
			c.logger.Warn("buffered publish failed", "topic", m.topic, "error", err)
		}
	}
}

// IsConnected reports whether the broker connection is up.
func (c *RealClient) IsConnected() bool {
	return c.client.IsConnected()
}

// Close disconnects from the broker.
func (c *RealClient) Close() error {
	c.client.Disconnect(1000) // 1 second timeout
	return nil
}
