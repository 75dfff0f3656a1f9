package transport

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Publisher is the outbound half of the transport, consumed by the dispatch
// stage of the pipeline
type Publisher interface {
	PublishUpdate(ctx context.Context, gatewayMAC string, cmd UpdateCommand) error
}

// MessageHandler receives decoded inbound messages. Implemented by the
// pipeline's confirmation consumer.
type MessageHandler interface {
	HandleResult(ctx context.Context, msg ResultMessage)
	HandleHeartbeat(ctx context.Context, msg HeartbeatMessage)
}

// Options configures the broker connection
type Options struct {
	BrokerURL      string
	ClientID       string
	Namespace      string
	Username       string
	Password       string
	QoS            byte
	ConnectTimeout time.Duration
	PublishTimeout time.Duration
}

// MQTTClient connects the pipeline to the gateway broker. Subscriptions are
// re-established on every (re)connect so a broker restart never leaves the
// process deaf.
type MQTTClient struct {
	opts    Options
	client  mqtt.Client
	handler MessageHandler
	logger  *log.Logger

	mu        sync.RWMutex
	connected bool
}

// NewMQTTClient creates a transport client; Connect must be called before use
func NewMQTTClient(opts Options, handler MessageHandler, logWriter io.Writer) *MQTTClient {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 5 * time.Second
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = 2 * time.Second
	}
	if logWriter == nil {
		logWriter = os.Stdout
	}
	return &MQTTClient{
		opts:    opts,
		handler: handler,
		logger:  log.New(logWriter, "transport ", log.LstdFlags|log.LUTC),
	}
}

// Connect establishes the broker connection and the wildcard subscriptions
func (c *MQTTClient) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(c.opts.BrokerURL)
	opts.SetClientID(c.opts.ClientID)
	if c.opts.Username != "" {
		opts.SetUsername(c.opts.Username)
		opts.SetPassword(c.opts.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(client mqtt.Client) {
		c.mu.Lock()
		c.connected = true
		c.mu.Unlock()
		c.logger.Printf("connected to broker %s", c.opts.BrokerURL)
		c.subscribe(client)
	}

	opts.OnConnectionLost = func(client mqtt.Client, err error) {
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
		c.logger.Printf("broker connection lost, auto-reconnect pending: %v", err)
	}

	c.client = mqtt.NewClient(opts)

	token := c.client.Connect()
	if !token.WaitTimeout(c.opts.ConnectTimeout) {
		return fmt.Errorf("broker connection timeout after %s", c.opts.ConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("broker connection failed: %w", err)
	}
	return nil
}

// subscribe installs the two wildcard subscriptions; called on every connect
func (c *MQTTClient) subscribe(client mqtt.Client) {
	subs := map[string]mqtt.MessageHandler{
		ResultTopicFilter(c.opts.Namespace):    c.onResult,
		HeartbeatTopicFilter(c.opts.Namespace): c.onHeartbeat,
	}
	for topic, handler := range subs {
		token := client.Subscribe(topic, c.opts.QoS, handler)
		if !token.WaitTimeout(c.opts.ConnectTimeout) || token.Error() != nil {
			c.logger.Printf("subscribe to %s failed: %v", topic, token.Error())
			continue
		}
		c.logger.Printf("subscribed to %s", topic)
	}
}

func (c *MQTTClient) onResult(_ mqtt.Client, raw mqtt.Message) {
	msg, err := DecodeResult(raw.Payload())
	if err != nil {
		c.logger.Printf("dropping undecodable result on %s: %v", raw.Topic(), err)
		return
	}
	if c.handler != nil {
		c.handler.HandleResult(context.Background(), msg)
	}
}

func (c *MQTTClient) onHeartbeat(_ mqtt.Client, raw mqtt.Message) {
	msg, err := DecodeHeartbeat(raw.Payload())
	if err != nil {
		c.logger.Printf("dropping undecodable heartbeat on %s: %v", raw.Topic(), err)
		return
	}
	if c.handler != nil {
		c.handler.HandleHeartbeat(context.Background(), msg)
	}
}

// PublishUpdate sends one update command to a gateway with broker
// acknowledgement. Publish failure is reported to the caller, never treated
// as silent success.
func (c *MQTTClient) PublishUpdate(ctx context.Context, gatewayMAC string, cmd UpdateCommand) error {
	if !c.isConnected() {
		return fmt.Errorf("broker not connected")
	}

	payload, err := EncodeUpdateCommand(cmd)
	if err != nil {
		return err
	}

	topic := CommandTopic(c.opts.Namespace, gatewayMAC)
	token := c.client.Publish(topic, c.opts.QoS, false, payload)
	if !token.WaitTimeout(c.opts.PublishTimeout) {
		return fmt.Errorf("publish to %s timed out after %s", topic, c.opts.PublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s failed: %w", topic, err)
	}

	c.logger.Printf("published update for tag %s to %s (token %d, %d bytes)", cmd.TagSerial, topic, cmd.Token, len(payload))
	return nil
}

// Disconnect closes the broker connection with a short grace period
func (c *MQTTClient) Disconnect() {
	if c.client != nil && c.client.IsConnected() {
		c.client.Disconnect(250)
		c.logger.Printf("disconnected from broker")
	}
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
}

func (c *MQTTClient) isConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}
