package mqtt

import (
	"errors"
	"fmt"
	"sync"
	"time"

	paho_mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/cvele/playnite-web-mqtt/internal/pkg/config"
)

const (
	connectTimeout    = time.Second * 5
	publishTimeout    = time.Second * 10
	subscribeTimeout  = time.Second * 5
	disconnectQuiesce = 250 // milliseconds handed to paho on disconnect
)

var (
	ErrConnectTimeout = errors.New("unable to connect in time")
	ErrNotConnected   = errors.New("not connected to broker")
)

// Handler is the callback signature for received messages. Paho invokes
// handlers in delivery order on its router goroutine; they must not block for
// long.
type Handler func(topic string, payload []byte)

type subscription struct {
	topic   string
	qos     byte
	handler Handler
}

// Service wraps a paho client with subscription tracking so the full
// subscription set is replayed after every reconnect.
type Service struct {
	client paho_mqtt.Client
	logger *zap.Logger

	subMu sync.RWMutex
	subs  map[string]subscription

	cbMu       sync.RWMutex
	onConnect  func()
	onConnLost func(error)
}

func New(client paho_mqtt.Client) *Service {
	return &Service{
		client: client,
		logger: zap.L(),
		subs:   make(map[string]subscription),
	}
}

// NewFromConfig builds a service plus its paho client from cfg, with the
// connection callbacks already bound.
func NewFromConfig(cfg *config.MqttConfig) *Service {
	s := &Service{
		logger: zap.L(),
		subs:   make(map[string]subscription),
	}
	opts := NewClientOptions(cfg)
	s.Bind(opts)
	s.client = paho_mqtt.NewClient(opts)
	return s
}

// NewClientOptions builds paho options from cfg. Auto-reconnect stays on;
// reconnection events surface through the OnConnect/OnConnectionLost
// callbacks set on the Service.
func NewClientOptions(cfg *config.MqttConfig) *paho_mqtt.ClientOptions {
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "playnite-web-mqtt"
	}
	opts := paho_mqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL()).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetOrderMatters(true).
		SetCleanSession(true)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	return opts
}

// Bind attaches the service's connection callbacks to opts. Must be called
// before the paho client is created from opts.
func (s *Service) Bind(opts *paho_mqtt.ClientOptions) {
	opts.SetOnConnectHandler(func(_ paho_mqtt.Client) { s.handleConnect() })
	opts.SetConnectionLostHandler(func(_ paho_mqtt.Client, err error) { s.handleConnectionLost(err) })
}

func (s *Service) Connect() error {
	token := s.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return ErrConnectTimeout
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	return nil
}

func (s *Service) Disconnect() {
	s.client.Disconnect(disconnectQuiesce)
}

func (s *Service) IsConnected() bool {
	return s.client.IsConnected()
}

// SetOnConnect registers a callback fired on initial connect and on every
// reconnect, after tracked subscriptions have been restored.
func (s *Service) SetOnConnect(callback func()) {
	s.cbMu.Lock()
	s.onConnect = callback
	s.cbMu.Unlock()
}

func (s *Service) SetOnConnectionLost(callback func(error)) {
	s.cbMu.Lock()
	s.onConnLost = callback
	s.cbMu.Unlock()
}

func (s *Service) handleConnect() {
	s.restoreSubscriptions()

	s.cbMu.RLock()
	callback := s.onConnect
	s.cbMu.RUnlock()
	if callback != nil {
		callback()
	}
}

func (s *Service) handleConnectionLost(err error) {
	s.logger.Warn("mqtt connection lost", zap.Error(err))

	s.cbMu.RLock()
	callback := s.onConnLost
	s.cbMu.RUnlock()
	if callback != nil {
		callback(err)
	}
}

// restoreSubscriptions replays every tracked subscription. Resubscription is
// always the full set; no partial state is modeled, a burst of redundant
// messages after reconnect is the accepted cost.
func (s *Service) restoreSubscriptions() {
	s.subMu.RLock()
	defer s.subMu.RUnlock()

	for _, sub := range s.subs {
		s.client.Subscribe(sub.topic, sub.qos, wrapHandler(sub.handler))
		s.logger.Debug("restored subscription", zap.String("topic", sub.topic))
	}
}

func wrapHandler(handler Handler) paho_mqtt.MessageHandler {
	return func(_ paho_mqtt.Client, msg paho_mqtt.Message) {
		handler(msg.Topic(), msg.Payload())
	}
}
