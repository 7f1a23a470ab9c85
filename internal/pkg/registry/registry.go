package registry

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cvele/playnite-web-mqtt/internal/pkg/model"
)

// CommandTimeout bounds how long an unconfirmed command stays pending before
// the expiry sweep clears it. Expiry never alters the display state.
const CommandTimeout = 30 * time.Second

// Registry is the single source of truth for game state. Discovery happens on
// first sight: any state, cover or snapshot message referencing an unknown id
// creates the entity. Entities are never removed.
//
// Consistency model is last-write-wins: the feed carries no sequence numbers,
// so the latest state message always overwrites. This mirrors the upstream
// feed's documented behaviour and is deliberately not "fixed" here.
type Registry struct {
	mu    sync.RWMutex
	games map[string]*model.GameEntity

	logger *zap.Logger
	now    func() time.Time
}

// UpsertResult describes what an upsert changed.
type UpsertResult struct {
	// Created is true when the entity was discovered by this call.
	Created bool
	// Changed is true when the visible state of the entity changed.
	Changed bool
}

func New() *Registry {
	return &Registry{
		games:  make(map[string]*model.GameEntity),
		logger: zap.L(),
		now:    time.Now,
	}
}

// locked; callers hold r.mu.
func (r *Registry) getOrCreate(id string) (*model.GameEntity, bool) {
	if g, ok := r.games[id]; ok {
		return g, false
	}
	g := &model.GameEntity{
		ID:           id,
		DisplayState: model.StateUnknown,
	}
	r.games[id] = g
	return g, true
}

// UpsertState applies an authoritative state message. The entity is created
// if absent and the state overwritten unconditionally; any pending command is
// confirmed or rolled back by the observed value either way.
func (r *Registry) UpsertState(id string, state model.DisplayState) UpsertResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, created := r.getOrCreate(id)
	changed := g.DisplayState != state
	g.DisplayState = state
	if g.Pending != nil {
		if g.Pending.Command.TargetState() != state {
			r.logger.Debug("pending command overridden by feed",
				zap.String("game_id", id),
				zap.String("command", string(g.Pending.Command)),
				zap.String("observed", string(state)))
		}
		g.Pending = nil
		changed = true
	}
	return UpsertResult{Created: created, Changed: changed || created}
}

// UpsertName records the display name from a discovery or snapshot record.
func (r *Registry) UpsertName(id, name string) UpsertResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, created := r.getOrCreate(id)
	changed := name != "" && g.Name != name
	if changed {
		g.Name = name
	}
	return UpsertResult{Created: created, Changed: changed || created}
}

// UpsertCover stores the content digest of the last successfully transcoded
// cover for id, creating the entity if this is the first sighting.
func (r *Registry) UpsertCover(id, dig string) UpsertResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, created := r.getOrCreate(id)
	changed := g.CoverDigest != dig
	g.CoverDigest = dig
	return UpsertResult{Created: created, Changed: changed || created}
}

// BulkUpsert applies a library snapshot. Each record overwrites the known
// state for its id; entities absent from the snapshot are left alone, since
// the feed has no deletion signalling.
func (r *Registry) BulkUpsert(records []model.GameRecord) map[string]UpsertResult {
	results := make(map[string]UpsertResult, len(records))
	for _, rec := range records {
		if rec.ID == "" {
			continue
		}
		res := r.UpsertName(rec.ID, rec.Name)
		if rec.State != "" {
			state, ok := model.ParseDisplayState(rec.State)
			if !ok {
				r.logger.Warn("unrecognized state token in snapshot",
					zap.String("game_id", rec.ID), zap.String("token", rec.State))
			}
			sres := r.UpsertState(rec.ID, state)
			res.Changed = res.Changed || sres.Changed
		}
		results[rec.ID] = res
	}
	return results
}

// Get returns a copy of the entity, or false if the id is unknown.
func (r *Registry) Get(id string) (model.GameEntity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, ok := r.games[id]
	if !ok {
		return model.GameEntity{}, false
	}
	return cloneEntity(g), true
}

// List returns a copy of every known entity, in no particular order.
func (r *Registry) List() []model.GameEntity {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.GameEntity, 0, len(r.games))
	for _, g := range r.games {
		out = append(out, cloneEntity(g))
	}
	return out
}

// IssueCommand records cmd as pending for id and optimistically flips the
// display state to the command's target. The flip is corrected by the next
// UpsertState if the feed reports otherwise. Returns the pending token.
func (r *Registry) IssueCommand(id string, cmd model.Command) model.PendingCommand {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, _ := r.getOrCreate(id)
	pending := model.PendingCommand{Command: cmd, IssuedAt: r.now()}
	g.Pending = &pending
	if target := cmd.TargetState(); target != model.StateUnknown {
		g.DisplayState = target
	}
	return pending
}

// ConfirmCommand clears the pending command for id when the observed state
// matches its target. Returns true if a pending command was cleared.
func (r *Registry) ConfirmCommand(id string, observed model.DisplayState) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.games[id]
	if !ok || g.Pending == nil {
		return false
	}
	if g.Pending.Command.TargetState() != observed {
		return false
	}
	g.Pending = nil
	return true
}

// ExpireCommands clears pending commands older than CommandTimeout without
// touching display state. This is a diagnostic no-op, not an error: the feed
// simply never confirmed. Returns the ids that were cleared.
func (r *Registry) ExpireCommands(now time.Time) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var expired []string
	for id, g := range r.games {
		if g.Pending != nil && now.Sub(g.Pending.IssuedAt) >= CommandTimeout {
			g.Pending = nil
			expired = append(expired, id)
		}
	}
	return expired
}

func cloneEntity(g *model.GameEntity) model.GameEntity {
	out := *g
	if g.Pending != nil {
		p := *g.Pending
		out.Pending = &p
	}
	return out
}
