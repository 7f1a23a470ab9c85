package model

import (
	"strings"
	"time"
)

// DisplayState is the switch-facing state of a game as last reported by the
// remote library. The feed carries no sequence numbers, so the latest message
// always wins.
type DisplayState string

const (
	StateUnknown DisplayState = "unknown"
	StateStopped DisplayState = "stopped"
	StateStarted DisplayState = "started"
)

// ParseDisplayState maps a raw state token from the feed onto a DisplayState.
// The second return value is false for tokens the feed is not known to emit;
// callers treat those as StateUnknown.
func ParseDisplayState(token string) (DisplayState, bool) {
	switch strings.ToLower(strings.TrimSpace(token)) {
	case "started", "starting", "launching", "running":
		return StateStarted, true
	case "stopped", "stopping", "installed":
		return StateStopped, true
	default:
		return StateUnknown, false
	}
}

type Command string

const (
	CommandStart     Command = "start"
	CommandStop      Command = "stop"
	CommandInstall   Command = "install"
	CommandUninstall Command = "uninstall"
)

// TargetState is the optimistic display state a command implies, or
// StateUnknown for commands with no state semantics (install/uninstall).
func (c Command) TargetState() DisplayState {
	switch c {
	case CommandStart:
		return StateStarted
	case CommandStop:
		return StateStopped
	default:
		return StateUnknown
	}
}

// PendingCommand records an issued command awaiting confirmation from the
// feed. It is cleared by the next authoritative state message or by the
// expiry sweep, whichever comes first.
type PendingCommand struct {
	Command  Command
	IssuedAt time.Time
}

// GameEntity is one discovered game. Entities are created on the first state
// or cover message referencing an unknown id and are never deleted; the
// remote library provides no removal signal.
type GameEntity struct {
	ID           string
	Name         string
	DisplayState DisplayState
	CoverDigest  string
	Pending      *PendingCommand
}

// GameRecord is the wire shape of a discovery message and of each element of
// a library snapshot.
type GameRecord struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	State       string `json:"state,omitempty"`
	IsInstalled *bool  `json:"isInstalled,omitempty"`
}

// Installed reports whether the record describes an installed game. Records
// that omit the flag are assumed installed.
func (r GameRecord) Installed() bool {
	return r.IsInstalled == nil || *r.IsInstalled
}
