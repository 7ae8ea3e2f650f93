package microbit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"
)

type State int

const (
	Disconnected State = iota
	Connected
	Stale     // telemetry stopped, link reported lost
	NilDriver // State() called on a nil *Driver
)

// Option configures a Driver.
type Option func(*Driver)

func WithLogger(log logrus.FieldLogger) Option {
	return func(d *Driver) { d.log = log }
}

// WithClock replaces the wall clock used by timers and pacing.
func WithClock(clk clock.Clock) Option {
	return func(d *Driver) { d.clock = clk }
}

// WithLinkLostHandler registers h, called outside any lock when telemetry
// stops or the transport reports the link lost.
func WithLinkLostHandler(h func(err error)) Option {
	return func(d *Driver) { d.onLinkLost = h }
}

// Driver talks to one peripheral over one Transport. All entry points
// are safe for concurrent use.
type Driver struct {
	sync.Mutex
	transport  Transport
	config     *Config
	clock      clock.Clock
	log        logrus.FieldLogger
	onLinkLost func(err error)

	sensors  *Sensors
	gate     *SendGate
	watchdog *Watchdog
	state    State
	session  uint64 // bumped by every reset, outdated callbacks are dropped
	held     bool   // set by Disconnect, cleared by Connect
}

func NewDriver(transport Transport, cfg *Config, opts ...Option) (*Driver, error) {
	if transport == nil {
		return nil, errors.New("microbit: nil transport")
	}
	if cfg == nil {
		cfg = NewConfig()
	}
	if err := cfg.sanitize(); err != nil {
		return nil, err
	}
	d := &Driver{
		transport: transport,
		config:    cfg,
		state:     Disconnected,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.clock == nil {
		d.clock = clock.New()
	}
	if d.log == nil {
		d.log = logrus.StandardLogger()
	}
	d.log = d.log.WithField("component", "microbit")
	d.sensors = NewSensors(cfg.Pins)
	d.gate = NewSendGate(d.clock, time.Duration(cfg.SendTimeout), d.log)
	d.watchdog = NewWatchdog(d.clock, time.Duration(cfg.StaleTimeout), d.stale)

	if lr, ok := transport.(LinkReporter); ok {
		lr.OnLinkLost(d.linkLost)
	}
	return d, nil
}

// Connect opens the link to the configured peripheral, subscribes to
// telemetry and arms the watchdog.
func (d *Driver) Connect(ctx context.Context) error {
	d.Lock()
	d.held = false
	d.Unlock()

	peripheral := d.config.Peripheral
	if err := d.transport.ConnectTo(ctx, peripheral); err != nil {
		return fmt.Errorf("connect %q: %w", peripheral, err)
	}

	d.Lock()
	d.resetLocked()
	session := d.session
	d.Unlock()

	err := d.transport.Read(ServiceID, RxCharUUID, func(b []byte) {
		d.receive(session, b)
	})
	if err != nil {
		_ = d.transport.Disconnect()
		return fmt.Errorf("subscribe telemetry: %w", err)
	}

	d.Lock()
	if session == d.session {
		d.state = Connected
		d.watchdog.Arm()
	}
	d.Unlock()
	d.log.WithField("peripheral", peripheral).Info("connected")

	// keeps the buzzer on pin 0 from ticking
	if t := d.SetPinPWM(0, 0); !t.Accepted() {
		d.log.WithError(t.Err).Debug("couldn't silence pin 0")
	}
	return nil
}

// Disconnect closes the link and resets every cached value, the send gate
// and the watchdog, regardless of the transport's answer. A Watcher leaves
// the driver alone until the next Connect.
func (d *Driver) Disconnect() error {
	d.Lock()
	d.held = true
	d.Unlock()

	err := d.transport.Disconnect()
	d.Lock()
	d.resetLocked()
	d.state = Disconnected
	d.Unlock()
	if err != nil {
		return fmt.Errorf("disconnect: %w", err)
	}
	d.log.Info("disconnected")
	return nil
}

// IsConnected never fails, a nil Driver isn't connected.
func (d *Driver) IsConnected() bool {
	if d == nil || d.transport == nil {
		return false
	}
	return d.transport.IsConnected()
}

func (d *Driver) State() State {
	if d == nil {
		return NilDriver
	}
	d.Lock()
	defer d.Unlock()
	return d.state
}

// wantsReconnect reports whether the link is down without the caller
// having asked for it.
func (d *Driver) wantsReconnect() bool {
	d.Lock()
	defer d.Unlock()
	return d.state != Connected && !d.held
}

func (d *Driver) Config() Config {
	return *d.config
}

// Send frames payload behind tag and writes it if the link is up and no
// other command awaits acknowledgment. It never blocks.
func (d *Driver) Send(tag Tag, payload []byte) *Ticket {
	t := &Ticket{clock: d.clock}
	if !d.IsConnected() {
		t.Status, t.Err = NotConnected, ErrNotConnected
		return t
	}
	frame, err := Encode(tag, payload, d.config.MaxWriteSize)
	if err != nil {
		t.Status, t.Err = Rejected, err
		return t
	}
	t.Status = d.gate.Admit(func() <-chan error {
		return d.transport.Write(ServiceID, TxCharUUID, frame, true)
	})
	switch t.Status {
	case Accepted:
		t.Pace = Pacing(tag, payload)
		d.log.WithField("tag", tag).Debugf("sent % x", frame)
	case Busy:
		t.Err = ErrBusy
	}
	return t
}

func (d *Driver) SendCommand(c Command) *Ticket {
	return d.Send(c.Tag, c.Payload)
}

// DisplayText scrolls text across the display.
func (d *Driver) DisplayText(text string) *Ticket {
	return d.SendCommand(TextCommand(text))
}

// DisplayMatrix lights the display and, once accepted, caches rows.
func (d *Driver) DisplayMatrix(rows [MatrixRows]uint8) *Ticket {
	return d.writeThrough(MatrixCommand(rows), func(s *Sensors) { s.SetMatrix(rows) })
}

func (d *Driver) SetPinPWM(pin uint8, value uint16) *Ticket {
	return d.SendCommand(PinPWMCommand(pin, value))
}

// SetSlot writes value to slot and, once accepted, caches it without
// waiting for acknowledgment. A later failure is not rolled back.
func (d *Driver) SetSlot(slot int, value int16) *Ticket {
	if slot < 0 || slot >= SlotCount {
		return &Ticket{
			Status: Rejected,
			Err:    fmt.Errorf("slot %d out of range [0, %d)", slot, SlotCount),
			clock:  d.clock,
		}
	}
	return d.writeThrough(SlotCommand(uint8(slot), value), func(s *Sensors) { s.SetSlot(slot, value) })
}

func (d *Driver) writeThrough(c Command, apply func(*Sensors)) *Ticket {
	d.Lock()
	session := d.session
	d.Unlock()

	t := d.SendCommand(c)
	if t.Accepted() {
		d.Lock()
		if session == d.session {
			apply(d.sensors)
		}
		d.Unlock()
	}
	return t
}

// OnTransportData feeds one inbound frame to the driver, for transports
// that don't go through Read.
func (d *Driver) OnTransportData(frame []byte) {
	d.Lock()
	session := d.session
	d.Unlock()
	d.receive(session, frame)
}

// receive decodes frame, merges it into the cache and resets the watchdog.
// Short frames are dropped and don't count as link activity.
func (d *Driver) receive(session uint64, frame []byte) {
	d.Lock()
	defer d.Unlock()
	if session != d.session || d.state != Connected {
		return
	}
	t, err := Decode(frame)
	if err != nil {
		d.log.WithError(err).Debug("dropping telemetry")
		return
	}
	if t.Record == nil {
		d.log.WithField("shape", t.Shape).Debug("unknown telemetry shape")
	}
	d.sensors.Update(t)
	d.watchdog.Reset()
}

// stale is called by the watchdog. A frame received while it waited for
// the lock re-armed the watchdog and wins.
func (d *Driver) stale() {
	d.Lock()
	if d.state != Connected || d.watchdog.Armed() {
		d.Unlock()
		return
	}
	d.resetLocked()
	d.state = Stale
	d.Unlock()

	d.log.Warnf("no telemetry for %s: %s", d.config.StaleTimeout, DataStoppedReason)
	d.transport.NotifyLinkLost(ErrLinkStale)
	if d.onLinkLost != nil {
		d.onLinkLost(ErrLinkStale)
	}
}

// linkLost is called by transports implementing LinkReporter.
func (d *Driver) linkLost(err error) {
	d.Lock()
	if d.state != Connected {
		d.Unlock()
		return
	}
	d.resetLocked()
	d.state = Disconnected
	d.Unlock()

	d.log.WithError(err).Warn("link lost")
	if d.onLinkLost != nil {
		d.onLinkLost(err)
	}
}

func (d *Driver) resetLocked() {
	d.session++
	d.gate.Reset()
	d.watchdog.Stop()
	d.sensors.Reset()
}

// Busy reports whether a command awaits acknowledgment.
func (d *Driver) Busy() bool {
	return d.gate.Pending()
}

func (d *Driver) ButtonA() uint8 {
	d.Lock()
	defer d.Unlock()
	return d.sensors.ButtonA()
}

func (d *Driver) ButtonB() uint8 {
	d.Lock()
	defer d.Unlock()
	return d.sensors.ButtonB()
}

// Matrix returns the last bitmap sent to the display.
func (d *Driver) Matrix() [MatrixRows]uint8 {
	d.Lock()
	defer d.Unlock()
	return d.sensors.Matrix()
}

func (d *Driver) LightLevel() uint8 {
	d.Lock()
	defer d.Unlock()
	return d.sensors.LightLevel()
}

// CompassHeading is the angle from north in degrees.
func (d *Driver) CompassHeading() uint16 {
	d.Lock()
	defer d.Unlock()
	return d.sensors.CompassHeading()
}

// MagneticStrength is the field magnitude in nano tesla.
func (d *Driver) MagneticStrength() uint16 {
	d.Lock()
	defer d.Unlock()
	return d.sensors.MagneticStrength()
}

// Acceleration returns the reading of axis in milli-g.
func (d *Driver) Acceleration(axis Axis) float64 {
	d.Lock()
	defer d.Unlock()
	return d.sensors.Acceleration(axis)
}

func (d *Driver) AccelerationX() float64 { return d.Acceleration(AxisX) }
func (d *Driver) AccelerationY() float64 { return d.Acceleration(AxisY) }
func (d *Driver) AccelerationZ() float64 { return d.Acceleration(AxisZ) }

func (d *Driver) AnalogValue(pin int) (uint16, bool) {
	d.Lock()
	defer d.Unlock()
	return d.sensors.AnalogValue(pin)
}

func (d *Driver) DigitalValue(pin int) (uint8, bool) {
	d.Lock()
	defer d.Unlock()
	return d.sensors.DigitalValue(pin)
}

func (d *Driver) Slot(i int) int16 {
	d.Lock()
	defer d.Unlock()
	return d.sensors.Slot(i)
}

// Snapshot retrieves every cached value at once.
func (d *Driver) Snapshot() Snapshot {
	if d == nil {
		return Snapshot{State: NilDriver}
	}
	d.Lock()
	defer d.Unlock()
	sn := Snapshot{Time: d.clock.Now(), State: d.state}
	d.sensors.fill(&sn)
	return sn
}
