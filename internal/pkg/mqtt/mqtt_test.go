package mqtt

import (
	"errors"
	"testing"
	"time"

	paho_mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockToken struct {
	err     error
	timeout bool
}

func (m *mockToken) Wait() bool                     { return !m.timeout }
func (m *mockToken) WaitTimeout(time.Duration) bool { return !m.timeout }
func (m *mockToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (m *mockToken) Error() error { return m.err }

type subscribeCall struct {
	topic string
	qos   byte
}

type mockClient struct {
	connected  bool
	publishes  []string
	subscribes []subscribeCall
	token      *mockToken
}

func newMockClient() *mockClient {
	return &mockClient{connected: true, token: &mockToken{}}
}

func (m *mockClient) IsConnected() bool        { return m.connected }
func (m *mockClient) IsConnectionOpen() bool   { return m.connected }
func (m *mockClient) Connect() paho_mqtt.Token { return m.token }
func (m *mockClient) Disconnect(uint)          { m.connected = false }
func (m *mockClient) Publish(topic string, _ byte, _ bool, _ interface{}) paho_mqtt.Token {
	m.publishes = append(m.publishes, topic)
	return m.token
}
func (m *mockClient) Subscribe(topic string, qos byte, _ paho_mqtt.MessageHandler) paho_mqtt.Token {
	m.subscribes = append(m.subscribes, subscribeCall{topic: topic, qos: qos})
	return m.token
}
func (m *mockClient) SubscribeMultiple(map[string]byte, paho_mqtt.MessageHandler) paho_mqtt.Token {
	return m.token
}
func (m *mockClient) Unsubscribe(...string) paho_mqtt.Token        { return m.token }
func (m *mockClient) AddRoute(string, paho_mqtt.MessageHandler)    {}
func (m *mockClient) OptionsReader() paho_mqtt.ClientOptionsReader { return paho_mqtt.ClientOptionsReader{} }

func TestPublishNotConnected(t *testing.T) {
	t.Parallel()
	client := newMockClient()
	client.connected = false
	s := New(client)

	err := s.Publish("topic", 0, false, []byte("x"))
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Empty(t, client.publishes)
}

func TestPublish(t *testing.T) {
	t.Parallel()
	client := newMockClient()
	s := New(client)

	require.NoError(t, s.Publish("a/b", 1, true, []byte("x")))
	assert.Equal(t, []string{"a/b"}, client.publishes)
}

func TestSubscribeTracksForRestore(t *testing.T) {
	t.Parallel()
	client := newMockClient()
	s := New(client)

	require.NoError(t, s.Subscribe("base/#", 1, func(string, []byte) {}))
	require.NoError(t, s.Subscribe("cmd/+/set", 0, func(string, []byte) {}))
	require.Len(t, client.subscribes, 2)

	// Simulate a reconnect: the full subscription set replays.
	client.subscribes = nil
	s.handleConnect()

	topics := []string{client.subscribes[0].topic, client.subscribes[1].topic}
	assert.ElementsMatch(t, []string{"base/#", "cmd/+/set"}, topics)
}

func TestOnConnectCallbackAfterRestore(t *testing.T) {
	t.Parallel()
	client := newMockClient()
	s := New(client)
	require.NoError(t, s.Subscribe("base/#", 1, func(string, []byte) {}))

	var subsAtCallback int
	s.SetOnConnect(func() { subsAtCallback = len(client.subscribes) })

	client.subscribes = nil
	s.handleConnect()

	// Restoration happens before the callback sees the connection.
	assert.Equal(t, 1, subsAtCallback)
}

func TestConnectError(t *testing.T) {
	t.Parallel()
	client := newMockClient()
	client.token = &mockToken{err: errors.New("auth failed")}
	s := New(client)

	assert.Error(t, s.Connect())
}

func TestConnectTimeout(t *testing.T) {
	t.Parallel()
	client := newMockClient()
	client.token = &mockToken{timeout: true}
	s := New(client)

	assert.ErrorIs(t, s.Connect(), ErrConnectTimeout)
}
