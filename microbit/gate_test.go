package microbit

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eventually = time.Second

func testGate(t *testing.T) (*SendGate, *clock.Mock) {
	clk := clock.NewMock()
	log, _ := test.NewNullLogger()
	return NewSendGate(clk, SendTimeout, log), clk
}

// never returns a write that is never acknowledged.
func never(writes *int32) func() <-chan error {
	return func() <-chan error {
		atomic.AddInt32(writes, 1)
		return make(chan error)
	}
}

func TestSendGate_Busy(t *testing.T) {
	g, _ := testGate(t)
	var writes int32

	assert.Equal(t, Accepted, g.Admit(never(&writes)))
	assert.Equal(t, Busy, g.Admit(never(&writes)))
	assert.EqualValues(t, 1, atomic.LoadInt32(&writes))
	assert.True(t, g.Pending())
}

func TestSendGate_Timeout(t *testing.T) {
	g, clk := testGate(t)
	var writes int32

	require.Equal(t, Accepted, g.Admit(never(&writes)))
	deadline, ok := g.Deadline()
	assert.True(t, ok)
	assert.Equal(t, clk.Now().Add(SendTimeout), deadline)

	clk.Add(SendTimeout - time.Millisecond)
	assert.Equal(t, Busy, g.Admit(never(&writes)))

	clk.Add(time.Millisecond)
	require.Eventually(t, func() bool { return !g.Pending() }, eventually, time.Millisecond)
	assert.Equal(t, Accepted, g.Admit(never(&writes)))
	assert.EqualValues(t, 2, atomic.LoadInt32(&writes))
}

func TestSendGate_Completion(t *testing.T) {
	g, _ := testGate(t)
	done := make(chan error, 1)

	require.Equal(t, Accepted, g.Admit(func() <-chan error { return done }))
	done <- nil
	require.Eventually(t, func() bool { return !g.Pending() }, eventually, time.Millisecond)

	closed := make(chan error)
	require.Equal(t, Accepted, g.Admit(func() <-chan error { return closed }))
	close(closed)
	require.Eventually(t, func() bool { return !g.Pending() }, eventually, time.Millisecond)
}

func TestSendGate_FailedWriteWaitsTimeout(t *testing.T) {
	clk := clock.NewMock()
	log, hook := test.NewNullLogger()
	g := NewSendGate(clk, SendTimeout, log)

	require.Equal(t, Accepted, g.Admit(func() <-chan error { return completed(errors.New("boom")) }))
	require.Eventually(t, func() bool {
		e := hook.LastEntry()
		return e != nil && e.Level == logrus.WarnLevel
	}, eventually, time.Millisecond)
	assert.True(t, g.Pending())

	clk.Add(SendTimeout)
	require.Eventually(t, func() bool { return !g.Pending() }, eventually, time.Millisecond)
}

func TestSendGate_LateCompletion(t *testing.T) {
	g, _ := testGate(t)
	var writes int32
	first := make(chan error, 1)

	require.Equal(t, Accepted, g.Admit(func() <-chan error { return first }))
	g.Reset()
	assert.False(t, g.Pending())

	require.Equal(t, Accepted, g.Admit(never(&writes)))
	// the first command's completion must not release the second one
	first <- nil
	time.Sleep(10 * time.Millisecond)
	assert.True(t, g.Pending())
	assert.Equal(t, Busy, g.Admit(never(&writes)))
}

func TestSendGate_LateTimeout(t *testing.T) {
	g, clk := testGate(t)
	var writes int32

	require.Equal(t, Accepted, g.Admit(never(&writes)))
	clk.Add(SendTimeout / 2)
	g.Reset()
	require.Equal(t, Accepted, g.Admit(never(&writes)))

	// first command's deadline passes, second one's doesn't
	clk.Add(SendTimeout / 2)
	time.Sleep(10 * time.Millisecond)
	assert.True(t, g.Pending())

	clk.Add(SendTimeout / 2)
	require.Eventually(t, func() bool { return !g.Pending() }, eventually, time.Millisecond)
}

func TestSendGate_ReleaseStopsAwait(t *testing.T) {
	g, clk := testGate(t)

	for _, release := range []func(){
		g.Reset,
		func() { clk.Add(SendTimeout) },
	} {
		done := make(chan error)
		require.Equal(t, Accepted, g.Admit(func() <-chan error { return done }))
		// let await start listening
		time.Sleep(10 * time.Millisecond)
		release()
		require.Eventually(t, func() bool { return !g.Pending() }, eventually, time.Millisecond)

		// nobody receives on an unbuffered channel once await returned
		select {
		case done <- nil:
			t.Fatal("completion still awaited after release")
		case <-time.After(20 * time.Millisecond):
		}
	}
}
