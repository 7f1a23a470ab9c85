package cmd

import (
	"github.com/cvele/playnite-web-mqtt/internal/pkg/playnite"
)

// BridgeService is what cmd.run expects from the playnite session supervisor.
type BridgeService interface {
	Connect() error
	Close() error
	State() playnite.ConnState
}
