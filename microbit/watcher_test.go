package microbit

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_Reconnect(t *testing.T) {
	r := newTestRig(t)
	r.connect(t)

	w := NewWatcher(r.d, &WatcherConfig{ConnPollRate: Duration(time.Second), ConnectTimeout: Duration(time.Second)})
	w.WatchConn()
	defer w.Stop()

	r.sim.Drop(errors.New("out of range"))
	require.Equal(t, Disconnected, r.d.State())

	require.Eventually(t, func() bool {
		r.clk.Add(time.Second)
		return r.d.State() == Connected
	}, eventually, 5*time.Millisecond)
	assert.True(t, r.sim.IsConnected())
}

func TestWatcher_Stop(t *testing.T) {
	r := newTestRig(t)
	w := NewWatcher(r.d, nil)
	w.Stop()

	w.WatchConn()
	w.Stop()
	r.clk.Add(time.Duration(DefaultWatcherConfig.ConnPollRate) * 2)
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, Disconnected, r.d.State())
}

func TestWatcher_RespectsDisconnect(t *testing.T) {
	r := newTestRig(t)
	r.connect(t)

	w := NewWatcher(r.d, &WatcherConfig{ConnPollRate: Duration(time.Second), ConnectTimeout: Duration(time.Second)})
	w.WatchConn()
	defer w.Stop()

	require.NoError(t, r.d.Disconnect())
	for i := 0; i < 5; i++ {
		r.clk.Add(time.Second)
		time.Sleep(5 * time.Millisecond)
	}
	assert.Equal(t, Disconnected, r.d.State())
	assert.False(t, r.sim.IsConnected())

	// an explicit Connect hands the link back to the watcher
	r.connect(t)
	r.sim.Drop(errors.New("out of range"))
	require.Eventually(t, func() bool {
		r.clk.Add(time.Second)
		return r.d.State() == Connected
	}, eventually, 5*time.Millisecond)
}

func TestWatcher_InitialConnect(t *testing.T) {
	r := newTestRig(t)

	w := NewWatcher(r.d, &WatcherConfig{ConnPollRate: Duration(time.Second), ConnectTimeout: Duration(time.Second)})
	w.WatchConn()
	defer w.Stop()

	require.Eventually(t, func() bool {
		r.clk.Add(time.Second)
		return r.d.State() == Connected
	}, eventually, 5*time.Millisecond)
}
