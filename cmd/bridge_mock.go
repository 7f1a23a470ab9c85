package cmd

import (
	"github.com/cvele/playnite-web-mqtt/internal/pkg/playnite"
)

// MockBridgeService is a test double for BridgeService.
type MockBridgeService struct {
	ConnectFunc func() error
	CloseFunc   func() error
	StateFunc   func() playnite.ConnState
}

func (m *MockBridgeService) Connect() error {
	if m.ConnectFunc != nil {
		return m.ConnectFunc()
	}
	return nil
}

func (m *MockBridgeService) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

func (m *MockBridgeService) State() playnite.ConnState {
	if m.StateFunc != nil {
		return m.StateFunc()
	}
	return playnite.StateDisconnected
}
