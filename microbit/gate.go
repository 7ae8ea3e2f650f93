package microbit

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"
)

type Status int

const (
	Accepted     Status = iota // written, awaiting acknowledgment
	Busy                       // a previous command is still awaiting acknowledgment
	NotConnected               // no link, nothing written
	Rejected                   // invalid command, nothing written
)

// SendGate lets at most one command await acknowledgment at a time.
// A command that is never acknowledged releases the gate after timeout,
// at the cost of possibly losing or duplicating its effect.
type SendGate struct {
	mu       sync.Mutex
	clock    clock.Clock
	timeout  time.Duration
	log      logrus.FieldLogger
	busy     bool
	gen      uint64
	timer    *clock.Timer
	deadline time.Time
	cancel   chan struct{} // closed on release, stops the pending await
}

func NewSendGate(clk clock.Clock, timeout time.Duration, log logrus.FieldLogger) *SendGate {
	if clk == nil {
		clk = clock.New()
	}
	if timeout <= 0 {
		timeout = SendTimeout
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &SendGate{clock: clk, timeout: timeout, log: log}
}

// Admit calls write unless a command is already awaiting acknowledgment.
// The channel returned by write yields the transport completion: nil
// (or a close) releases the gate, an error leaves it to the timeout.
func (g *SendGate) Admit(write func() <-chan error) Status {
	g.mu.Lock()
	if g.busy {
		g.mu.Unlock()
		return Busy
	}
	g.busy = true
	g.gen++
	gen := g.gen
	g.deadline = g.clock.Now().Add(g.timeout)
	g.timer = g.clock.AfterFunc(g.timeout, func() { g.expire(gen) })
	cancel := make(chan struct{})
	g.cancel = cancel
	g.mu.Unlock()

	done := write()
	if done != nil {
		go g.await(gen, done, cancel)
	}
	return Accepted
}

// Pending reports whether a command is awaiting acknowledgment.
func (g *SendGate) Pending() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.busy
}

// Deadline returns when the pending command will be given up on.
func (g *SendGate) Deadline() (time.Time, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.deadline, g.busy
}

// Reset releases the gate and discards the pending command's completion.
func (g *SendGate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.gen++
	g.releaseLocked()
}

func (g *SendGate) await(gen uint64, done <-chan error, cancel <-chan struct{}) {
	var (
		err error
		ok  bool
	)
	select {
	case err, ok = <-done:
	case <-cancel:
		return
	}
	if ok && err != nil {
		g.log.WithError(err).Warn("command write failed, waiting for gate timeout")
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if gen != g.gen || !g.busy {
		return
	}
	g.releaseLocked()
}

func (g *SendGate) expire(gen uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if gen != g.gen || !g.busy {
		return
	}
	g.log.Debugf("no acknowledgment after %s, releasing send gate", g.timeout)
	g.releaseLocked()
}

func (g *SendGate) releaseLocked() {
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
	if g.cancel != nil {
		close(g.cancel)
		g.cancel = nil
	}
	g.busy = false
	g.deadline = time.Time{}
}
