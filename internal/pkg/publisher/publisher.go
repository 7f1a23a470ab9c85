package publisher

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/cvele/playnite-web-mqtt/internal/pkg/model"
)

var errAlreadyRegistered = errors.New("platform already registered")

var (
	mu                  sync.RWMutex
	registeredPlatforms = make(map[string]Platform)

	// lastStates dedupes state publishes per platform+game so a burst of
	// identical feed messages does not spam the platform.
	lastStates sync.Map
)

// Platform is an entity platform the bridge mirrors games into. The bridge
// never reads state back; the registry stays the single source of truth.
type Platform interface {
	AnnounceEntity(ctx context.Context, game model.GameEntity) error
	PublishState(ctx context.Context, game model.GameEntity) error
	PublishCover(ctx context.Context, game model.GameEntity, data []byte) error
}

func RegisterPlatform(name string, platform Platform) error {
	mu.Lock()
	defer mu.Unlock()
	if _, ok := registeredPlatforms[name]; ok {
		return errAlreadyRegistered
	}
	registeredPlatforms[name] = platform
	return nil
}

// Reset drops all registered platforms and dedupe state. Test helper.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	registeredPlatforms = make(map[string]Platform)
	lastStates.Range(func(key, _ any) bool {
		lastStates.Delete(key)
		return true
	})
}

func platforms() map[string]Platform {
	mu.RLock()
	defer mu.RUnlock()
	out := make(map[string]Platform, len(registeredPlatforms))
	for name, p := range registeredPlatforms {
		out[name] = p
	}
	return out
}

// AnnounceEntity announces a newly discovered game to every platform.
func AnnounceEntity(ctx context.Context, game model.GameEntity) {
	for name, platform := range platforms() {
		if err := platform.AnnounceEntity(ctx, game); err != nil {
			zap.L().Error("failed to announce entity", zap.Error(err),
				zap.String("platform", name), zap.String("game_id", game.ID))
			continue
		}
		zap.L().Debug("announced entity",
			zap.String("platform", name), zap.String("game_id", game.ID))
	}
}

// PublishState pushes the game's display state to every platform, skipping
// platforms that already hold the same value.
func PublishState(ctx context.Context, game model.GameEntity) {
	for name, platform := range platforms() {
		if !shouldUpdate(name, game) {
			continue
		}
		if err := platform.PublishState(ctx, game); err != nil {
			zap.L().Error("failed to publish state", zap.Error(err),
				zap.String("platform", name), zap.String("game_id", game.ID))
			continue
		}
		zap.L().Debug("published state",
			zap.String("platform", name),
			zap.String("game_id", game.ID),
			zap.String("state", string(game.DisplayState)))
	}
}

// PublishCover pushes transcoded cover bytes to every platform. Dedupe is the
// cover pipeline's job (content digest), not done here.
func PublishCover(ctx context.Context, game model.GameEntity, data []byte) {
	for name, platform := range platforms() {
		if err := platform.PublishCover(ctx, game, data); err != nil {
			zap.L().Error("failed to publish cover", zap.Error(err),
				zap.String("platform", name), zap.String("game_id", game.ID))
			continue
		}
		zap.L().Debug("published cover",
			zap.String("platform", name),
			zap.String("game_id", game.ID),
			zap.Int("bytes", len(data)))
	}
}

func shouldUpdate(platform string, game model.GameEntity) bool {
	key := fmt.Sprintf("%s_%s", platform, game.ID)
	old, exists := lastStates.Load(key)
	if exists && old.(model.DisplayState) == game.DisplayState {
		return false
	}
	lastStates.Store(key, game.DisplayState)
	return true
}
