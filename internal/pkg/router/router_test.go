package router

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cvele/playnite-web-mqtt/internal/pkg/model"
)

const base = "playnite/playniteweb_gamerig"

// mockHandlers records dispatched payloads, winet_mock style.
type mockHandlers struct {
	states      map[string]model.DisplayState
	discoveries []model.GameRecord
	covers      map[string][]byte
	snapshots   [][]model.GameRecord
	connections []bool
}

func newMockHandlers() *mockHandlers {
	return &mockHandlers{
		states: make(map[string]model.DisplayState),
		covers: make(map[string][]byte),
	}
}

func (m *mockHandlers) HandleState(id string, state model.DisplayState) { m.states[id] = state }
func (m *mockHandlers) HandleDiscovery(rec model.GameRecord)            { m.discoveries = append(m.discoveries, rec) }
func (m *mockHandlers) HandleCover(id string, raw []byte)               { m.covers[id] = raw }
func (m *mockHandlers) HandleSnapshot(recs []model.GameRecord)          { m.snapshots = append(m.snapshots, recs) }
func (m *mockHandlers) HandleConnection(online bool)                    { m.connections = append(m.connections, online) }

func TestRouteState(t *testing.T) {
	t.Parallel()
	h := newMockHandlers()
	r := New(base, h)

	disp := r.Route(base+"/entity/release/abc123/state", []byte("started"))

	assert.Equal(t, Dispatched, disp)
	assert.Equal(t, model.StateStarted, h.states["abc123"])
}

func TestRouteStateUnrecognizedToken(t *testing.T) {
	t.Parallel()
	h := newMockHandlers()
	r := New(base, h)

	disp := r.Route(base+"/entity/release/abc123/state", []byte("hyperdrive"))

	// Unknown tokens still dispatch, mapped to unknown.
	assert.Equal(t, Dispatched, disp)
	assert.Equal(t, model.StateUnknown, h.states["abc123"])
}

func TestRouteStateEmptyPayload(t *testing.T) {
	t.Parallel()
	h := newMockHandlers()
	r := New(base, h)

	disp := r.Route(base+"/entity/release/abc123/state", nil)

	assert.Equal(t, DispatchedPayloadError, disp)
	assert.Empty(t, h.states, "bad payload must not reach the handler")
	assert.Equal(t, uint64(1), r.PayloadErrorCount())
}

func TestRouteCover(t *testing.T) {
	t.Parallel()
	h := newMockHandlers()
	r := New(base, h)

	disp := r.Route(base+"/entity/release/abc123/asset/cover", []byte{0xff, 0xd8, 0xff})

	assert.Equal(t, Dispatched, disp)
	assert.Equal(t, []byte{0xff, 0xd8, 0xff}, h.covers["abc123"])
}

func TestRouteCoverDeepSuffix(t *testing.T) {
	t.Parallel()
	h := newMockHandlers()
	r := New(base, h)

	// The agent publishes assets with trailing type segments.
	disp := r.Route(base+"/entity/release/abc123/asset/cover/image_png", []byte{1})

	assert.Equal(t, Dispatched, disp)

	addr, ok := r.Parse(base + "/entity/release/abc123/asset/cover/image_png")
	require.True(t, ok)
	assert.Equal(t, KindCover, addr.Kind)
	assert.Equal(t, "cover/image_png", addr.Suffix)
}

func TestRouteDiscovery(t *testing.T) {
	t.Parallel()
	h := newMockHandlers()
	r := New(base, h)

	installed := true
	payload, err := json.Marshal(model.GameRecord{ID: "abc123", Name: "Doom", IsInstalled: &installed})
	require.NoError(t, err)

	disp := r.Route(base+"/entity/release/abc123", payload)

	assert.Equal(t, Dispatched, disp)
	require.Len(t, h.discoveries, 1)
	assert.Equal(t, "Doom", h.discoveries[0].Name)
}

func TestRouteSnapshot(t *testing.T) {
	t.Parallel()
	h := newMockHandlers()
	r := New(base, h)

	payload := []byte(`[{"id":"a","name":"A","state":"stopped"},{"id":"b","name":"B","state":"started"}]`)
	disp := r.Route(base+"/response/game/state", payload)

	assert.Equal(t, Dispatched, disp)
	require.Len(t, h.snapshots, 1)
	assert.Len(t, h.snapshots[0], 2)
}

func TestRouteSnapshotSingleRecord(t *testing.T) {
	t.Parallel()
	h := newMockHandlers()
	r := New(base, h)

	disp := r.Route(base+"/response/game/state", []byte(`{"id":"a","state":"started"}`))

	assert.Equal(t, Dispatched, disp)
	require.Len(t, h.snapshots, 1)
	require.Len(t, h.snapshots[0], 1)
	assert.Equal(t, "a", h.snapshots[0][0].ID)
}

func TestRouteSnapshotBadPayload(t *testing.T) {
	t.Parallel()
	h := newMockHandlers()
	r := New(base, h)

	disp := r.Route(base+"/response/game/state", []byte(`{{{`))

	assert.Equal(t, DispatchedPayloadError, disp)
	assert.Empty(t, h.snapshots)
}

func TestRouteConnection(t *testing.T) {
	t.Parallel()
	h := newMockHandlers()
	r := New(base, h)

	r.Route(base+"/connection", []byte("online"))
	r.Route(base+"/connection", []byte("offline"))

	assert.Equal(t, []bool{true, false}, h.connections)
}

func TestRouteIgnoresForeignTopics(t *testing.T) {
	t.Parallel()
	h := newMockHandlers()
	r := New(base, h)

	assert.Equal(t, Ignored, r.Route("zigbee2mqtt/bedroom/light", []byte("on")))
	assert.Equal(t, Ignored, r.Route("playnite/otherpc/entity/release/x/state", []byte("started")))
	assert.Equal(t, uint64(0), r.MalformedCount(), "foreign traffic is not malformed")
}

func TestRouteMalformedUnderBase(t *testing.T) {
	t.Parallel()
	h := newMockHandlers()
	r := New(base, h)

	assert.Equal(t, Ignored, r.Route(base+"/entity/release", []byte("x")))
	assert.Equal(t, Ignored, r.Route(base+"/entity/unknown/a/state", []byte("x")))
	assert.Equal(t, uint64(2), r.MalformedCount())
	assert.Equal(t, uint64(2), r.IgnoredCount())
}

func TestParseAddressShapes(t *testing.T) {
	t.Parallel()
	r := New(base, newMockHandlers())

	tests := []struct {
		topic string
		kind  Kind
		id    string
	}{
		{base + "/entity/release/g1/state", KindState, "g1"},
		{base + "/entity/release/g1", KindDiscovery, "g1"},
		{base + "/entity/release/g1/asset/cover", KindCover, "g1"},
		{base + "/response/game/state", KindSnapshot, ""},
		{base + "/connection", KindConnection, ""},
	}
	for _, tc := range tests {
		addr, ok := r.Parse(tc.topic)
		require.True(t, ok, tc.topic)
		assert.Equal(t, tc.kind, addr.Kind, tc.topic)
		assert.Equal(t, tc.id, addr.ID, tc.topic)
	}
}
