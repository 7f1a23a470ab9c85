package homeassistant

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gosimple/slug"
	"go.uber.org/zap"

	"github.com/cvele/playnite-web-mqtt/internal/pkg/model"
	"github.com/cvele/playnite-web-mqtt/internal/pkg/mqtt"
)

const (
	discoveryPrefix = "homeassistant"
	// bridgePrefix namespaces the command topics we advertise to HA, so the
	// command subscription wildcard never catches other integrations.
	bridgePrefix = "playnite-web-mqtt"

	payloadOn    = "start"
	payloadOff   = "stop"
	payloadPress = "PRESS"
)

// mqttClient is the slice of the shared MQTT service this platform uses.
type mqttClient interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
	Subscribe(topic string, qos byte, handler mqtt.Handler) error
}

// commandSink receives user intents coming back from Home Assistant.
type commandSink interface {
	RequestStart(id string) error
	RequestStop(id string) error
	RequestLibraryRefresh() error
}

// Platform mirrors games into Home Assistant via MQTT discovery: one switch
// and one image entity per game, plus a library-refresh button per bridge.
// Commands flow back through the advertised command topics.
type Platform struct {
	client     mqttClient
	dispatcher commandSink
	topicBase  string
	deviceSlug string
	logger     *zap.Logger

	announced map[string]struct{}
}

func New(client mqttClient, dispatcher commandSink, topicBase string) *Platform {
	return &Platform{
		client:     client,
		dispatcher: dispatcher,
		topicBase:  topicBase,
		deviceSlug: strings.ReplaceAll(slug.Make(topicBase), "-", "_"),
		logger:     zap.L(),
		announced:  make(map[string]struct{}),
	}
}

// Setup announces the library-refresh button and subscribes to the command
// topics. Call once after the MQTT session is up.
func (p *Platform) Setup() error {
	if err := p.announceButton(); err != nil {
		return err
	}
	switchFilter := fmt.Sprintf("%s/%s/game/+/set", bridgePrefix, p.deviceSlug)
	if err := p.client.Subscribe(switchFilter, 1, p.handleSwitchCommand); err != nil {
		return err
	}
	buttonTopic := fmt.Sprintf("%s/%s/library/refresh", bridgePrefix, p.deviceSlug)
	return p.client.Subscribe(buttonTopic, 1, p.handleButtonCommand)
}

// AnnounceEntity publishes retained discovery configs for game. Repeat
// announcements for the same id are no-ops.
func (p *Platform) AnnounceEntity(_ context.Context, game model.GameEntity) error {
	if _, exists := p.announced[game.ID]; exists {
		return nil
	}

	name := game.Name
	if name == "" {
		name = game.ID
	}
	objectID := p.objectID(game.ID)

	switchCfg := model.SwitchConfig{
		Tilda:        fmt.Sprintf("%s/switch/%s", discoveryPrefix, objectID),
		Name:         name,
		ID:           objectID,
		StateTopic:   "~/state",
		CommandTopic: fmt.Sprintf("%s/%s/game/%s/set", bridgePrefix, p.deviceSlug, game.ID),
		PayloadOn:    payloadOn,
		PayloadOff:   payloadOff,
		Device:       p.device(),
	}
	if err := p.publishConfig("switch", objectID, switchCfg); err != nil {
		return err
	}

	imageCfg := model.ImageConfig{
		Tilda:       fmt.Sprintf("%s/image/%s", discoveryPrefix, objectID),
		Name:        fmt.Sprintf("%s Cover", name),
		ID:          objectID + "_cover",
		ImageTopic:  "~/state",
		ContentType: "image/jpeg",
		Device:      p.device(),
	}
	if err := p.publishConfig("image", objectID, imageCfg); err != nil {
		return err
	}

	p.announced[game.ID] = struct{}{}
	p.logger.Debug("announced game to home assistant",
		zap.String("game_id", game.ID), zap.String("object_id", objectID))
	return nil
}

// PublishState pushes the display state onto the switch state topic. Unknown
// maps to HA's "None" reset payload.
func (p *Platform) PublishState(_ context.Context, game model.GameEntity) error {
	var payload string
	switch game.DisplayState {
	case model.StateStarted:
		payload = payloadOn
	case model.StateStopped:
		payload = payloadOff
	default:
		payload = "None"
	}
	topic := fmt.Sprintf("%s/switch/%s/state", discoveryPrefix, p.objectID(game.ID))
	return p.client.Publish(topic, 0, false, []byte(payload))
}

// PublishCover pushes raw transcoded bytes onto the image topic, retained so
// HA restarts keep the artwork.
func (p *Platform) PublishCover(_ context.Context, game model.GameEntity, data []byte) error {
	topic := fmt.Sprintf("%s/image/%s/state", discoveryPrefix, p.objectID(game.ID))
	return p.client.Publish(topic, 0, true, data)
}

func (p *Platform) announceButton() error {
	objectID := p.deviceSlug + "_request_library"
	cfg := model.ButtonConfig{
		Tilda:        fmt.Sprintf("%s/button/%s", discoveryPrefix, objectID),
		Name:         "Request Game Library",
		ID:           objectID,
		CommandTopic: fmt.Sprintf("%s/%s/library/refresh", bridgePrefix, p.deviceSlug),
		PayloadPress: payloadPress,
		Device:       p.device(),
	}
	return p.publishConfig("button", objectID, cfg)
}

func (p *Platform) publishConfig(component, objectID string, cfg any) error {
	payload, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	topic := fmt.Sprintf("%s/%s/%s/config", discoveryPrefix, component, objectID)
	return p.client.Publish(topic, 1, true, payload)
}

func (p *Platform) handleSwitchCommand(topic string, payload []byte) {
	// <bridgePrefix>/<deviceSlug>/game/<id>/set
	segments := strings.Split(topic, "/")
	if len(segments) != 5 {
		p.logger.Warn("unexpected command topic", zap.String("topic", topic))
		return
	}
	id := segments[3]

	var err error
	switch cmd := strings.TrimSpace(string(payload)); cmd {
	case payloadOn:
		err = p.dispatcher.RequestStart(id)
	case payloadOff:
		err = p.dispatcher.RequestStop(id)
	default:
		p.logger.Warn("unrecognized switch command",
			zap.String("game_id", id), zap.String("payload", cmd))
		return
	}
	if err != nil {
		p.logger.Error("failed to forward switch command",
			zap.String("game_id", id), zap.Error(err))
	}
}

func (p *Platform) handleButtonCommand(topic string, payload []byte) {
	if strings.TrimSpace(string(payload)) != payloadPress {
		return
	}
	if err := p.dispatcher.RequestLibraryRefresh(); err != nil {
		p.logger.Error("failed to forward library refresh", zap.Error(err))
	}
}

func (p *Platform) objectID(gameID string) string {
	return fmt.Sprintf("%s_%s", p.deviceSlug, strings.ReplaceAll(slug.Make(gameID), "-", "_"))
}

// device ties every entity to one HA device per remote library instance.
func (p *Platform) device() model.DiscoveryDevice {
	return model.DiscoveryDevice{
		Name:         humanFriendly(p.topicBase),
		Identifiers:  []string{p.deviceSlug},
		Model:        "Playnite Web MQTT",
		Manufacturer: "Playnite Web",
	}
}

// humanFriendly turns the last topic-base segment into a display name,
// e.g. "playnite/playniteweb_gamerig" -> "Playniteweb Gamerig".
func humanFriendly(topicBase string) string {
	segments := strings.Split(topicBase, "/")
	last := segments[len(segments)-1]
	words := strings.Fields(strings.ReplaceAll(last, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
