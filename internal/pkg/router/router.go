package router

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/cvele/playnite-web-mqtt/internal/pkg/model"
)

// Kind classifies a recognized topic shape.
type Kind string

const (
	KindState      Kind = "state"
	KindCover      Kind = "cover"
	KindDiscovery  Kind = "discovery"
	KindSnapshot   Kind = "snapshot"
	KindConnection Kind = "connection"
)

// TopicAddress is the parsed, immutable form of an inbound topic. It exists
// purely for dispatch; no field is ever mutated after parsing.
type TopicAddress struct {
	Base     string
	Category string // "entity", "response" or "connection"
	Kind     Kind
	ID       string
	Suffix   string
}

// Disposition is the outcome of routing one message.
type Disposition int

const (
	// Ignored: topic outside the base, or a shape we do not recognize.
	// Unrelated broker traffic is expected, so this is not an error.
	Ignored Disposition = iota
	// Dispatched: recognized shape, payload handed to its handler.
	Dispatched
	// DispatchedPayloadError: recognized shape with an unusable payload.
	// The message is dropped and entity state is left untouched, so a
	// transient corrupt message can never flap an entity to unknown.
	DispatchedPayloadError
)

// Handlers receives parsed payloads from the router. Implemented by the
// bridge service; message ordering follows MQTT delivery order.
type Handlers interface {
	HandleState(id string, state model.DisplayState)
	HandleDiscovery(rec model.GameRecord)
	HandleCover(id string, raw []byte)
	HandleSnapshot(records []model.GameRecord)
	HandleConnection(online bool)
}

type Router struct {
	base     string
	handlers Handlers
	logger   *zap.Logger

	// diagnostic counters, exposed for tests and health logging.
	ignored      atomic.Uint64
	malformed    atomic.Uint64
	payloadError atomic.Uint64
}

func New(topicBase string, handlers Handlers) *Router {
	return &Router{
		base:     strings.TrimSuffix(topicBase, "/"),
		handlers: handlers,
		logger:   zap.L(),
	}
}

// Parse maps topic onto a TopicAddress, or false when the topic does not
// belong to this bridge's base or matches no known shape.
func (r *Router) Parse(topic string) (TopicAddress, bool) {
	rest, ok := strings.CutPrefix(topic, r.base+"/")
	if !ok {
		return TopicAddress{}, false
	}
	segments := strings.Split(rest, "/")
	addr := TopicAddress{Base: r.base}

	switch {
	case len(segments) == 1 && segments[0] == "connection":
		addr.Category = "connection"
		addr.Kind = KindConnection
		return addr, true
	case len(segments) == 3 && segments[0] == "entity" && segments[1] == "release":
		addr.Category = "entity"
		addr.Kind = KindDiscovery
		addr.ID = segments[2]
		return addr, addr.ID != ""
	case len(segments) == 4 && segments[0] == "entity" && segments[1] == "release" && segments[3] == "state":
		addr.Category = "entity"
		addr.Kind = KindState
		addr.ID = segments[2]
		return addr, addr.ID != ""
	case len(segments) >= 5 && segments[0] == "entity" && segments[1] == "release" && segments[3] == "asset":
		addr.Category = "entity"
		addr.Kind = KindCover
		addr.ID = segments[2]
		addr.Suffix = strings.Join(segments[4:], "/")
		return addr, addr.ID != ""
	case len(segments) == 3 && segments[0] == "response" && segments[1] == "game" && segments[2] == "state":
		addr.Category = "response"
		addr.Kind = KindSnapshot
		return addr, true
	}
	return TopicAddress{}, false
}

// Route classifies topic and dispatches payload to the matching handler.
func (r *Router) Route(topic string, payload []byte) Disposition {
	addr, ok := r.Parse(topic)
	if !ok {
		if strings.HasPrefix(topic, r.base+"/") {
			r.malformed.Add(1)
			r.logger.Debug("unrecognized topic under base", zap.String("topic", topic))
		}
		r.ignored.Add(1)
		return Ignored
	}

	switch addr.Kind {
	case KindState:
		return r.routeState(addr, payload)
	case KindCover:
		if len(payload) == 0 {
			return r.payloadErr(addr, fmt.Errorf("empty cover payload"))
		}
		r.handlers.HandleCover(addr.ID, payload)
		return Dispatched
	case KindDiscovery:
		return r.routeDiscovery(addr, payload)
	case KindSnapshot:
		return r.routeSnapshot(addr, payload)
	case KindConnection:
		r.handlers.HandleConnection(strings.EqualFold(strings.TrimSpace(string(payload)), "online"))
		return Dispatched
	}
	r.ignored.Add(1)
	return Ignored
}

func (r *Router) routeState(addr TopicAddress, payload []byte) Disposition {
	token := strings.TrimSpace(string(payload))
	if token == "" {
		return r.payloadErr(addr, fmt.Errorf("empty state payload"))
	}
	state, known := model.ParseDisplayState(token)
	if !known {
		// Unrecognized tokens degrade to unknown but still dispatch;
		// only an unusable payload leaves the entity untouched.
		r.logger.Warn("unrecognized state token",
			zap.String("game_id", addr.ID), zap.String("token", token))
	}
	r.handlers.HandleState(addr.ID, state)
	return Dispatched
}

func (r *Router) routeDiscovery(addr TopicAddress, payload []byte) Disposition {
	var rec model.GameRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return r.payloadErr(addr, err)
	}
	if rec.ID == "" {
		return r.payloadErr(addr, fmt.Errorf("discovery record missing id"))
	}
	r.handlers.HandleDiscovery(rec)
	return Dispatched
}

func (r *Router) routeSnapshot(addr TopicAddress, payload []byte) Disposition {
	var records []model.GameRecord
	if err := json.Unmarshal(payload, &records); err != nil {
		// The agent publishes single-record updates on the same topic.
		var rec model.GameRecord
		if err2 := json.Unmarshal(payload, &rec); err2 != nil || rec.ID == "" {
			return r.payloadErr(addr, err)
		}
		records = []model.GameRecord{rec}
	}
	r.handlers.HandleSnapshot(records)
	return Dispatched
}

func (r *Router) payloadErr(addr TopicAddress, err error) Disposition {
	r.payloadError.Add(1)
	r.logger.Warn("dropping message with bad payload",
		zap.String("kind", string(addr.Kind)),
		zap.String("game_id", addr.ID),
		zap.Error(err))
	return DispatchedPayloadError
}

// IgnoredCount reports how many messages were ignored since start.
func (r *Router) IgnoredCount() uint64 { return r.ignored.Load() }

// MalformedCount reports ignored messages that were under the base but
// matched no recognized shape.
func (r *Router) MalformedCount() uint64 { return r.malformed.Load() }

// PayloadErrorCount reports recognized messages dropped for bad payloads.
func (r *Router) PayloadErrorCount() uint64 { return r.payloadError.Load() }
