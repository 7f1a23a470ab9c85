package dispatcher

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/cvele/playnite-web-mqtt/internal/pkg/model"
)

// commandPublisher is the slice of the MQTT client the dispatcher needs.
type commandPublisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// commandRegistry records optimistic state for issued commands.
type commandRegistry interface {
	IssueCommand(id string, cmd model.Command) model.PendingCommand
}

// Dispatcher publishes user intents back to the remote library. Publishing is
// fire-and-forget: confirmation, if any, arrives later as a state message.
type Dispatcher struct {
	pub       commandPublisher
	reg       commandRegistry
	topicBase string
	logger    *zap.Logger
}

func New(pub commandPublisher, reg commandRegistry, topicBase string) *Dispatcher {
	return &Dispatcher{
		pub:       pub,
		reg:       reg,
		topicBase: topicBase,
		logger:    zap.L(),
	}
}

func (d *Dispatcher) RequestStart(id string) error {
	return d.requestCommand(id, model.CommandStart)
}

func (d *Dispatcher) RequestStop(id string) error {
	return d.requestCommand(id, model.CommandStop)
}

func (d *Dispatcher) RequestInstall(id string) error {
	return d.requestCommand(id, model.CommandInstall)
}

func (d *Dispatcher) RequestUninstall(id string) error {
	return d.requestCommand(id, model.CommandUninstall)
}

// RequestLibraryRefresh asks the remote library for a full snapshot. The
// reply arrives asynchronously on the response topic and drives bulk
// discovery of any previously unseen games.
func (d *Dispatcher) RequestLibraryRefresh() error {
	topic := fmt.Sprintf("%s/request/library", d.topicBase)
	if err := d.pub.Publish(topic, 1, false, nil); err != nil {
		return fmt.Errorf("library refresh request: %w", err)
	}
	d.logger.Info("requested library snapshot", zap.String("topic", topic))
	return nil
}

func (d *Dispatcher) requestCommand(id string, cmd model.Command) error {
	topic := fmt.Sprintf("%s/entity/release/%s/set", d.topicBase, id)
	if err := d.pub.Publish(topic, 1, false, []byte(cmd)); err != nil {
		return fmt.Errorf("%s command for %s: %w", cmd, id, err)
	}
	pending := d.reg.IssueCommand(id, cmd)
	d.logger.Info("issued command",
		zap.String("game_id", id),
		zap.String("command", string(cmd)),
		zap.Time("issued_at", pending.IssuedAt))
	return nil
}
