package mqtt

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"growmat/backend/pkg/utils"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTBuilder registers MQTT publications and subscriptions and owns the broker connection.
type MQTTBuilder struct {
	client        pahomqtt.Client
	wrappedClient *MQTTClient
	l             *slog.Logger
	opts          MQTTClientOptions

	mu            sync.RWMutex
	operationIDs  map[string]struct{}
	publications  map[string]*PublicationSpec
	subscriptions map[string]*SubscriptionSpec

	connected      atomic.Bool
	runConnectOnce atomic.Bool
}

// MQTTClientOptions contains configuration for creating an MQTT client.
type MQTTClientOptions struct {
	BrokerURL string
	ClientID  string
	Username  string
	Password  string
	// WillTopic, when set, receives WillPayload (retained) if the client disappears without disconnecting.
	WillTopic   string
	WillPayload string
	// OnConnect runs after every (re)connect, once all subscriptions are in place.
	OnConnect func()
}

// NewMQTTBuilder creates a new MQTT builder with the given broker configuration.
func NewMQTTBuilder(l *slog.Logger, opts MQTTClientOptions) (*MQTTBuilder, error) {
	l = l.With(slog.String("component", "mqtt-builder"))

	if opts.BrokerURL == "" {
		return nil, errors.New("broker URL is required")
	}

	if opts.ClientID == "" {
		return nil, errors.New("client ID is required")
	}

	mb := &MQTTBuilder{
		l:             l,
		opts:          opts,
		operationIDs:  make(map[string]struct{}),
		publications:  make(map[string]*PublicationSpec),
		subscriptions: make(map[string]*SubscriptionSpec),
	}

	clientOpts := pahomqtt.NewClientOptions()
	clientOpts.AddBroker(opts.BrokerURL)
	clientOpts.SetClientID(opts.ClientID)

	if opts.Username != "" {
		clientOpts.SetUsername(opts.Username)
	}

	if opts.Password != "" {
		clientOpts.SetPassword(opts.Password)
	}

	// Retry every 5 seconds, max interval 15 seconds
	clientOpts.SetAutoReconnect(true)
	clientOpts.SetConnectRetry(true)
	clientOpts.SetConnectTimeout(5 * time.Second)
	clientOpts.SetConnectRetryInterval(5 * time.Second)
	clientOpts.SetMaxReconnectInterval(15 * time.Second)
	clientOpts.SetKeepAlive(30 * time.Second)
	clientOpts.SetOrderMatters(false)

	clientOpts.SetOnConnectHandler(mb.onConnect)
	clientOpts.SetConnectionLostHandler(mb.onConnectionLost)
	clientOpts.SetReconnectingHandler(mb.onReconnecting)

	if opts.WillTopic != "" {
		clientOpts.SetWill(opts.WillTopic, opts.WillPayload, byte(QoSAtLeastOnce), true)
	}

	mb.client = pahomqtt.NewClient(clientOpts)
	mb.wrappedClient = &MQTTClient{
		client:  mb.client,
		builder: mb,
	}

	l.Info("MQTT builder created", slog.String("broker", opts.BrokerURL), slog.String("clientID", opts.ClientID))

	return mb, nil
}

// Client returns the publishing client.
func (mb *MQTTBuilder) Client() *MQTTClient {
	return mb.wrappedClient
}

// RegisterPublish registers a publication operation.
func (mb *MQTTBuilder) RegisterPublish(topic string, spec PublicationSpec) error {
	if mb.runConnectOnce.Load() {
		return errors.New("cannot register publication after connecting to MQTT broker")
	}

	if err := validateTopicPattern(topic); err != nil {
		return fmt.Errorf("invalid topic pattern: %w", err)
	}

	if err := validatePublicationSpec(spec); err != nil {
		return fmt.Errorf("invalid publication spec: %w", err)
	}

	if err := validateTopicParameters(topic, spec.TopicParameters); err != nil {
		return fmt.Errorf("invalid topic parameters in operationID %s: %w", spec.OperationID, err)
	}

	mb.mu.Lock()
	defer mb.mu.Unlock()

	if _, exists := mb.operationIDs[spec.OperationID]; exists {
		return fmt.Errorf("duplicate operationID: %s", spec.OperationID)
	}

	spec.Topic = topic
	spec.TopicMQTT = convertTopicToMQTT(topic)

	mb.operationIDs[spec.OperationID] = struct{}{}
	mb.publications[spec.OperationID] = &spec

	mb.l.Info("Registered MQTT publication", slog.String("operationID", spec.OperationID), slog.String("topic", topic), slog.String("group", spec.Group))

	return nil
}

// MustRegisterPublish registers a publication operation and terminates the program if an error occurs.
func (mb *MQTTBuilder) MustRegisterPublish(topic string, spec PublicationSpec) {
	if err := mb.RegisterPublish(topic, spec); err != nil {
		mb.l.Error("Failed to register publication", slog.String("operationID", spec.OperationID), slog.String("topic", topic), utils.ErrAttr(err))
		os.Exit(1)
	}
}

// RegisterSubscribe registers a subscription operation.
func (mb *MQTTBuilder) RegisterSubscribe(topic string, spec SubscriptionSpec) error {
	if mb.runConnectOnce.Load() {
		return errors.New("cannot register subscription after connecting to MQTT broker")
	}

	if err := validateTopicPattern(topic); err != nil {
		return fmt.Errorf("invalid topic pattern: %w", err)
	}

	if err := validateSubscriptionSpec(spec); err != nil {
		return fmt.Errorf("invalid subscription spec: %w", err)
	}

	if err := validateTopicParameters(topic, spec.TopicParameters); err != nil {
		return fmt.Errorf("invalid topic parameters in operationID %s: %w", spec.OperationID, err)
	}

	mb.mu.Lock()
	defer mb.mu.Unlock()

	if _, exists := mb.operationIDs[spec.OperationID]; exists {
		return fmt.Errorf("duplicate operationID: %s", spec.OperationID)
	}

	spec.Topic = topic
	spec.TopicMQTT = convertTopicToMQTT(topic)

	mb.operationIDs[spec.OperationID] = struct{}{}
	mb.subscriptions[spec.OperationID] = &spec

	mb.l.Info("Registered MQTT subscription", slog.String("operationID", spec.OperationID), slog.String("topic", topic), slog.String("group", spec.Group))

	return nil
}

// MustRegisterSubscribe registers a subscription operation and terminates the program if an error occurs.
func (mb *MQTTBuilder) MustRegisterSubscribe(topic string, spec SubscriptionSpec) {
	if err := mb.RegisterSubscribe(topic, spec); err != nil {
		mb.l.Error("Failed to register subscription", slog.String("operationID", spec.OperationID), slog.String("topic", topic), utils.ErrAttr(err))
		os.Exit(1)
	}
}

// Operations returns the registered operations sorted by operationID.
func (mb *MQTTBuilder) Operations() []OperationInfo {
	mb.mu.RLock()
	defer mb.mu.RUnlock()

	ops := make([]OperationInfo, 0, len(mb.operationIDs))

	for _, p := range mb.publications {
		ops = append(ops, OperationInfo{
			OperationID: p.OperationID, Kind: "publish", Topic: p.Topic,
			Summary: p.Summary, Group: p.Group, QoS: p.QoS, Retained: p.Retained,
		})
	}

	for _, s := range mb.subscriptions {
		ops = append(ops, OperationInfo{
			OperationID: s.OperationID, Kind: "subscribe", Topic: s.Topic,
			Summary: s.Summary, Group: s.Group, QoS: s.QoS,
		})
	}

	sort.Slice(ops, func(i, j int) bool { return ops[i].OperationID < ops[j].OperationID })

	return ops
}

// Connect connects to the MQTT broker and waits until the first connection succeeds.
func (mb *MQTTBuilder) Connect() error {
	mb.runConnectOnce.Store(true)

	mb.l.Info("Connecting to MQTT broker... Will wait indefinitely for connection to complete")

	token := mb.client.Connect()

	done := make(chan struct{})
	defer close(done)

	go func() {
		ticker := time.NewTicker(time.Second * 30)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if mb.client.IsConnectionOpen() {
					return
				}

				mb.l.Warn("MQTT has not done an initial connection yet, still waiting...")
			}
		}
	}()

	token.Wait()

	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}

	mb.l.Info("Connected to MQTT broker")

	return nil
}

// Disconnect disconnects from the MQTT broker.
func (mb *MQTTBuilder) Disconnect() {
	if !mb.client.IsConnected() {
		return
	}

	mb.l.Info("Disconnecting from MQTT broker...")
	mb.client.Disconnect(250) // 250ms grace period
	mb.connected.Store(false)
	mb.l.Info("Disconnected from MQTT broker")
}

// onConnect is called when the client successfully connects or reconnects to the broker.
func (mb *MQTTBuilder) onConnect(client pahomqtt.Client) {
	mb.mu.RLock()
	subs := make([]*SubscriptionSpec, 0, len(mb.subscriptions))
	for _, spec := range mb.subscriptions {
		subs = append(subs, spec)
	}
	mb.mu.RUnlock()

	mb.l.Info("Connected to MQTT broker, subscribing to topics", slog.Int("subscriptionCount", len(subs)))
	mb.connected.Store(true)

	for _, spec := range subs {
		token := client.Subscribe(spec.TopicMQTT, byte(spec.QoS), spec.Handler)
		token.Wait()

		if err := token.Error(); err != nil {
			mb.l.Error("Failed to subscribe", slog.String("topic", spec.TopicMQTT), slog.String("operationID", spec.OperationID), utils.ErrAttr(err))
			continue
		}

		mb.l.Info("Subscribed", slog.String("topic", spec.TopicMQTT), slog.String("operationID", spec.OperationID))
	}

	if mb.opts.OnConnect != nil {
		go mb.opts.OnConnect()
	}
}

// onConnectionLost is called when the client loses connection to the broker.
func (mb *MQTTBuilder) onConnectionLost(_ pahomqtt.Client, err error) {
	mb.l.Warn("Connection to MQTT broker lost", utils.ErrAttr(err))
	mb.connected.Store(false)
}

// onReconnecting is called when the client is reconnecting to the broker.
func (mb *MQTTBuilder) onReconnecting(_ pahomqtt.Client, opts *pahomqtt.ClientOptions) {
	mb.l.Info("Reconnecting to MQTT broker", slog.String("broker", opts.Servers[0].String()))
}
