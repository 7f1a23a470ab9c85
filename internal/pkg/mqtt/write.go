package mqtt

import (
	"fmt"

	"go.uber.org/zap"
)

// Publish sends payload and waits for the broker to acknowledge, bounded by
// the publish timeout. A timeout without an error is treated as accepted;
// QoS 0 tokens may never flow.
func (s *Service) Publish(topic string, qos byte, retained bool, payload []byte) error {
	if !s.client.IsConnected() {
		return ErrNotConnected
	}
	token := s.client.Publish(topic, qos, retained, payload)
	if token.WaitTimeout(publishTimeout) {
		return nil
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// Subscribe registers handler for topic and tracks the subscription for
// replay after reconnect.
func (s *Service) Subscribe(topic string, qos byte, handler Handler) error {
	s.subMu.Lock()
	s.subs[topic] = subscription{topic: topic, qos: qos, handler: handler}
	s.subMu.Unlock()

	token := s.client.Subscribe(topic, qos, wrapHandler(handler))
	if !token.WaitTimeout(subscribeTimeout) {
		return fmt.Errorf("subscribe to %s: %w", topic, ErrConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe to %s: %w", topic, err)
	}
	s.logger.Debug("subscribed", zap.String("topic", topic), zap.Uint8("qos", qos))
	return nil
}
