package playnite

import (
	"fmt"
	"sync"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/cvele/playnite-web-mqtt/internal/pkg/contxt"
	"github.com/cvele/playnite-web-mqtt/internal/pkg/covers"
	"github.com/cvele/playnite-web-mqtt/internal/pkg/model"
	"github.com/cvele/playnite-web-mqtt/internal/pkg/mqtt"
	"github.com/cvele/playnite-web-mqtt/internal/pkg/publisher"
	"github.com/cvele/playnite-web-mqtt/internal/pkg/registry"
	"github.com/cvele/playnite-web-mqtt/internal/pkg/router"
)

const publishTimeout = time.Second * 5

// ConnState is the supervisor's session state. Loss of the broker at any
// point drops straight back to Disconnected; there is no partial state.
type ConnState string

const (
	StateDisconnected ConnState = "disconnected"
	StateConnecting   ConnState = "connecting"
	StateSubscribed   ConnState = "subscribed"
)

// mqttService is the slice of the shared MQTT client the supervisor owns.
type mqttService interface {
	Connect() error
	Disconnect()
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload []byte) error
	Subscribe(topic string, qos byte, handler mqtt.Handler) error
	SetOnConnect(func())
	SetOnConnectionLost(func(error))
}

// refresher requests a library snapshot; satisfied by the dispatcher.
type refresher interface {
	RequestLibraryRefresh() error
}

// Service supervises the session with the remote Playnite Web agent: it
// subscribes to the wildcard tree under the topic base, routes every inbound
// message, and replays subscription plus library refresh after reconnects so
// entity state is never stale following a gap.
type Service struct {
	topicBase  string
	client     mqttService
	reg        *registry.Registry
	pipeline   *covers.Pipeline
	dispatcher refresher
	rtr        *router.Router
	errChan    chan error
	logger     *zap.Logger

	stateMu sync.RWMutex
	state   ConnState
}

func New(topicBase string, client mqttService, reg *registry.Registry, pipeline *covers.Pipeline, dispatcher refresher, errChan chan error) *Service {
	s := &Service{
		topicBase:  topicBase,
		client:     client,
		reg:        reg,
		pipeline:   pipeline,
		dispatcher: dispatcher,
		errChan:    errChan,
		logger:     zap.L(),
		state:      StateDisconnected,
	}
	s.rtr = router.New(topicBase, s)
	return s
}

// Connect establishes the session. The wildcard subscription and the initial
// library refresh run from the on-connect callback so they also replay on
// every reconnect.
func (s *Service) Connect() error {
	s.setState(StateConnecting)
	s.client.SetOnConnect(s.onConnect)
	s.client.SetOnConnectionLost(s.onConnectionLost)
	if err := s.client.Connect(); err != nil {
		s.setState(StateDisconnected)
		return fmt.Errorf("playnite session: %w", err)
	}
	return nil
}

// Close tears the session down.
func (s *Service) Close() error {
	s.client.Disconnect()
	s.setState(StateDisconnected)
	return nil
}

// State returns the current session state.
func (s *Service) State() ConnState {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

// Router exposes the topic router, mainly for diagnostics.
func (s *Service) Router() *router.Router { return s.rtr }

func (s *Service) setState(state ConnState) {
	s.stateMu.Lock()
	s.state = state
	s.stateMu.Unlock()
}

func (s *Service) sendIfErr(err error) {
	if err != nil {
		s.errChan <- err
	}
}

func (s *Service) onConnect() {
	if err := s.client.Subscribe(s.topicBase+"/#", 1, s.onMessage); err != nil {
		s.sendIfErr(err)
		return
	}
	s.setState(StateSubscribed)
	s.logger.Info("subscribed to game library feed", zap.String("topic_base", s.topicBase))

	// One refresh per (re)subscribe keeps entities from going stale across
	// reconnect gaps.
	s.sendIfErr(s.dispatcher.RequestLibraryRefresh())
}

func (s *Service) onConnectionLost(err error) {
	s.setState(StateDisconnected)
	s.logger.Warn("lost connection to broker", zap.Error(err))
}

// onMessage feeds every inbound message through the router. Messages arrive
// one at a time in delivery order; cover transcoding runs inline on this
// path, which serializes bursts by design.
func (s *Service) onMessage(topic string, payload []byte) {
	s.rtr.Route(topic, payload)
}

// HandleState applies an authoritative state message.
func (s *Service) HandleState(id string, state model.DisplayState) {
	res := s.reg.UpsertState(id, state)
	s.publishEntity(id, res)
}

// HandleDiscovery creates or refreshes an entity from a discovery record.
// Uninstalled games are skipped, matching the remote agent's behaviour of
// announcing its full catalogue.
func (s *Service) HandleDiscovery(rec model.GameRecord) {
	if !rec.Installed() {
		s.logger.Debug("skipping uninstalled game",
			zap.String("game_id", rec.ID), zap.String("name", rec.Name))
		return
	}
	res := s.reg.UpsertName(rec.ID, rec.Name)
	if rec.State != "" {
		state, _ := model.ParseDisplayState(rec.State)
		sres := s.reg.UpsertState(rec.ID, state)
		res.Changed = res.Changed || sres.Changed
	}
	s.publishEntity(rec.ID, res)
}

// HandleCover feeds a raw cover payload through the transcoding pipeline.
// The entity is discovered first if this is its first sighting.
func (s *Service) HandleCover(id string, raw []byte) {
	if _, known := s.reg.Get(id); !known {
		res := s.reg.UpsertName(id, "")
		s.publishEntity(id, res)
	}
	if err := s.pipeline.HandleCover(id, raw); err != nil {
		// Logged by the pipeline; previous cover stays in place.
		return
	}
}

// HandleSnapshot applies a bulk library snapshot.
func (s *Service) HandleSnapshot(records []model.GameRecord) {
	installed := lo.Filter(records, func(rec model.GameRecord, _ int) bool {
		return rec.Installed()
	})
	s.logger.Info("applying library snapshot",
		zap.Int("records", len(records)), zap.Int("installed", len(installed)))

	for id, res := range s.reg.BulkUpsert(installed) {
		s.publishEntity(id, res)
	}
}

// HandleConnection reacts to the remote agent's presence topic: an agent
// coming online may carry a library the bridge has never seen.
func (s *Service) HandleConnection(online bool) {
	if !online {
		s.logger.Info("remote library agent went offline")
		return
	}
	s.logger.Info("remote library agent online, refreshing library")
	s.sendIfErr(s.dispatcher.RequestLibraryRefresh())
}

// publishEntity mirrors a registry change to the entity platforms: announce
// on first sight, then state. Every registry entity ends up announced.
func (s *Service) publishEntity(id string, res registry.UpsertResult) {
	game, ok := s.reg.Get(id)
	if !ok {
		return
	}
	ctx := contxt.NewContext(publishTimeout)
	if res.Created {
		publisher.AnnounceEntity(ctx, game)
	}
	if res.Created || res.Changed {
		publisher.PublishState(ctx, game)
	}
}
