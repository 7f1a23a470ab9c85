package dispatcher

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cvele/playnite-web-mqtt/internal/pkg/model"
	"github.com/cvele/playnite-web-mqtt/internal/pkg/registry"
)

type publishCall struct {
	topic   string
	payload []byte
}

type mockPublisher struct {
	calls []publishCall
	err   error
}

func (m *mockPublisher) Publish(topic string, _ byte, _ bool, payload []byte) error {
	if m.err != nil {
		return m.err
	}
	m.calls = append(m.calls, publishCall{topic: topic, payload: payload})
	return nil
}

const base = "playnite/playniteweb_gamerig"

func TestRequestStart(t *testing.T) {
	t.Parallel()
	pub := &mockPublisher{}
	reg := registry.New()
	d := New(pub, reg, base)

	require.NoError(t, d.RequestStart("g1"))

	require.Len(t, pub.calls, 1)
	assert.Equal(t, base+"/entity/release/g1/set", pub.calls[0].topic)
	assert.Equal(t, []byte("start"), pub.calls[0].payload)

	// Optimistic update landed in the registry.
	game, ok := reg.Get("g1")
	require.True(t, ok)
	assert.Equal(t, model.StateStarted, game.DisplayState)
	require.NotNil(t, game.Pending)
	assert.Equal(t, model.CommandStart, game.Pending.Command)
}

func TestRequestStop(t *testing.T) {
	t.Parallel()
	pub := &mockPublisher{}
	reg := registry.New()
	d := New(pub, reg, base)

	require.NoError(t, d.RequestStop("g1"))

	require.Len(t, pub.calls, 1)
	assert.Equal(t, []byte("stop"), pub.calls[0].payload)
	game, _ := reg.Get("g1")
	assert.Equal(t, model.StateStopped, game.DisplayState)
}

func TestRequestInstallUninstall(t *testing.T) {
	t.Parallel()
	pub := &mockPublisher{}
	reg := registry.New()
	d := New(pub, reg, base)

	require.NoError(t, d.RequestInstall("g1"))
	require.NoError(t, d.RequestUninstall("g1"))

	require.Len(t, pub.calls, 2)
	assert.Equal(t, []byte("install"), pub.calls[0].payload)
	assert.Equal(t, []byte("uninstall"), pub.calls[1].payload)
}

func TestRequestLibraryRefresh(t *testing.T) {
	t.Parallel()
	pub := &mockPublisher{}
	d := New(pub, registry.New(), base)

	require.NoError(t, d.RequestLibraryRefresh())

	require.Len(t, pub.calls, 1)
	assert.Equal(t, base+"/request/library", pub.calls[0].topic)
	assert.Empty(t, pub.calls[0].payload)
}

func TestPublishFailureSkipsOptimisticUpdate(t *testing.T) {
	t.Parallel()
	pub := &mockPublisher{err: errors.New("not connected")}
	reg := registry.New()
	d := New(pub, reg, base)

	err := d.RequestStart("g1")
	assert.Error(t, err)

	// No optimistic flip when nothing went out.
	_, ok := reg.Get("g1")
	assert.False(t, ok)
}
