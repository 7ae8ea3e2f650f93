package microbit

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Simulator is an in-process peripheral implementing Transport. Written
// slot values are echoed back in motion frames.
type Simulator struct {
	mu         sync.Mutex
	clock      clock.Clock
	autoAck    bool
	hold       time.Duration
	connected  bool
	peripheral string
	writes     [][]byte
	pending    []chan error
	onData     func([]byte)
	onLost     func(error)
	lost       []error

	slots [SlotCount]int16
	tick  int
}

// NewSimulator returns a simulator acknowledging every write at once.
func NewSimulator(clk clock.Clock) *Simulator {
	if clk == nil {
		clk = clock.New()
	}
	return &Simulator{clock: clk, autoAck: true}
}

// SetAutoAck makes later writes complete at once (true) or only through
// Ack (false).
func (s *Simulator) SetAutoAck(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.autoAck = on
}

// SetHold delays automatic acknowledgments by d.
func (s *Simulator) SetHold(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hold = d
}

// Ack completes the oldest pending write with err, false if none.
func (s *Simulator) Ack(err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return false
	}
	s.pending[0] <- err
	s.pending = s.pending[1:]
	return true
}

func (s *Simulator) ConnectTo(ctx context.Context, peripheral string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = true
	s.peripheral = peripheral
	return nil
}

func (s *Simulator) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return ErrNotConnected
	}
	s.connected = false
	s.onData = nil
	return nil
}

func (s *Simulator) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *Simulator) Peripheral() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peripheral
}

func (s *Simulator) Write(_, _ string, data []byte, _ bool) <-chan error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return completed(ErrNotConnected)
	}
	frame := append([]byte(nil), data...)
	s.writes = append(s.writes, frame)
	if c, err := ParseCommand(frame); err == nil && c.Tag == CmdSlotValue && len(c.Payload) == 3 && int(c.Payload[0]) < SlotCount {
		s.slots[c.Payload[0]] = int16(uint16(c.Payload[1]) | uint16(c.Payload[2])<<8)
	}
	done := make(chan error, 1)
	switch {
	case s.autoAck && s.hold > 0:
		s.clock.AfterFunc(s.hold, func() { done <- nil })
	case s.autoAck:
		done <- nil
	default:
		s.pending = append(s.pending, done)
	}
	return done
}

func (s *Simulator) Read(_, _ string, onData func([]byte)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return ErrNotConnected
	}
	s.onData = onData
	return nil
}

func (s *Simulator) NotifyLinkLost(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lost = append(s.lost, err)
	s.connected = false
	s.onData = nil
}

func (s *Simulator) OnLinkLost(f func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onLost = f
}

// Drop simulates the peripheral going away on its own.
func (s *Simulator) Drop(err error) {
	s.mu.Lock()
	s.connected = false
	s.onData = nil
	onLost := s.onLost
	s.mu.Unlock()
	if onLost != nil {
		onLost(err)
	}
}

// Writes returns every frame written so far.
func (s *Simulator) Writes() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.writes))
	copy(out, s.writes)
	return out
}

// LinkLost returns every error reported through NotifyLinkLost.
func (s *Simulator) LinkLost() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]error(nil), s.lost...)
}

// Inject delivers frame to the registered reader, false if nobody listens.
func (s *Simulator) Inject(frame []byte) bool {
	s.mu.Lock()
	onData := s.onData
	s.mu.Unlock()
	if onData == nil {
		return false
	}
	onData(frame)
	return true
}

func (s *Simulator) InjectTelemetry(t Telemetry) bool {
	return s.Inject(EncodeTelemetry(t))
}

// Run emits environment, motion and inertial frames in turn every
// interval until ctx is done.
func (s *Simulator) Run(ctx context.Context, interval time.Duration) {
	ticker := s.clock.Ticker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.InjectTelemetry(s.next())
		}
	}
}

// next builds the following generated frame.
func (s *Simulator) next() Telemetry {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tick++
	n := s.tick
	t := Telemetry{ButtonA: uint8(n / 30 % 2), ButtonB: uint8(n / 45 % 2)}
	switch n % 3 {
	case 0:
		t.Record = Environment{
			Analog:  [3]uint16{uint16(n % 1024), uint16(512), uint16(1023 - n%1024)},
			Heading: uint16(n * 5 % 360),
			Light:   uint8(n),
		}
	case 1:
		t.Record = Motion{Slots: s.slots, Digital: uint8(n / 3)}
	default:
		t.Record = Inertial{Magnetic: 50000, Accel: [3]int16{0, 0, -G}}
	}
	return t
}
