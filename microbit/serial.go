package microbit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.bug.st/serial"
)

// A micro:bit running the serial bridge firmware relays the same frames
// over its USB UART, each one prefixed by its length:
//   Length(1) | Frame(Length)
// Zero length bytes are keep-alives and are skipped.

var ErrClosedPort = errors.New("serial port is closed")

var DefaultSerialConfig = &serial.Mode{
	BaudRate: 115200,
	Parity:   serial.NoParity,
	DataBits: 8,
	StopBits: serial.OneStopBit,
}

var DefaultTimeout = time.Second

// PortOpener opens a serial port, serial.Open by default.
type PortOpener func(name string, mode *serial.Mode) (io.ReadWriteCloser, error)

func openSerial(name string, mode *serial.Mode) (io.ReadWriteCloser, error) {
	return serial.Open(name, mode)
}

type writeRequest struct {
	frame []byte
	done  chan error
}

// SerialConnection is a Transport over a serial port. Services and
// characteristics are ignored, the port carries both directions.
type SerialConnection struct {
	ReadTimeout time.Duration // read poll, lets the read routine notice Close
	Open        PortOpener

	config *serial.Mode
	log    logrus.FieldLogger

	mu        sync.Mutex
	port      io.ReadWriteCloser
	path      string
	onData    func([]byte)
	onLost    func(error)
	wrChan    chan writeRequest
	closeChan chan struct{}
	wg        sync.WaitGroup
}

func NewSerial(config *serial.Mode, log logrus.FieldLogger) *SerialConnection {
	if config == nil {
		config = DefaultSerialConfig
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &SerialConnection{
		ReadTimeout: DefaultTimeout,
		Open:        openSerial,
		config:      config,
		log:         log.WithField("component", "serial"),
	}
}

// ConnectTo opens port name and starts the read and write routines.
func (sc *SerialConnection) ConnectTo(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.port != nil {
		return fmt.Errorf("already connected to %q", sc.path)
	}
	port, err := sc.Open(name, sc.config)
	if err != nil {
		return fmt.Errorf("open %q: %w", name, err)
	}
	if p, ok := port.(interface{ SetReadTimeout(time.Duration) error }); ok {
		if err := p.SetReadTimeout(sc.ReadTimeout); err != nil {
			sc.log.WithError(err).Debug("couldn't set read timeout")
		}
	}
	sc.port = port
	sc.path = name
	sc.wrChan = make(chan writeRequest, 4)
	sc.closeChan = make(chan struct{})
	sc.start(port, sc.wrChan, sc.closeChan)
	sc.log.Infof("opened \"%s\"", name)
	return nil
}

// start begins the two routines responsible
// for reading and writing on serial port.
func (sc *SerialConnection) start(port io.ReadWriteCloser, wr chan writeRequest, closing chan struct{}) {
	sc.wg.Add(2)
	go func() {
		defer sc.wg.Done()
		sc.readRoutine(port, closing)
	}()
	go func() {
		defer sc.wg.Done()
		sc.writeRoutine(port, wr, closing)
	}()
}

// Disconnect notifies read/write routines to stop, closes the port
// and waits for the routines to return.
func (sc *SerialConnection) Disconnect() error {
	sc.mu.Lock()
	port := sc.port
	if port == nil {
		sc.mu.Unlock()
		return ErrClosedPort
	}
	sc.port = nil
	close(sc.closeChan)
	sc.mu.Unlock()

	err := port.Close()
	sc.wg.Wait()
	return err
}

func (sc *SerialConnection) IsConnected() bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.port != nil
}

// Path returns device name / path of serial port.
func (sc *SerialConnection) Path() string {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.path
}

// Write queues data for the write routine without blocking.
func (sc *SerialConnection) Write(_, _ string, data []byte, _ bool) <-chan error {
	if len(data) == 0 || len(data) > 0xff {
		return completed(fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(data)))
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.port == nil {
		return completed(ErrClosedPort)
	}
	req := writeRequest{
		frame: append([]byte{byte(len(data))}, data...),
		done:  make(chan error, 1),
	}
	select {
	case sc.wrChan <- req:
	default:
		return completed(errors.New("serial write queue full"))
	}
	return req.done
}

func (sc *SerialConnection) Read(_, _ string, onData func([]byte)) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.onData = onData
	return nil
}

func (sc *SerialConnection) OnLinkLost(f func(error)) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.onLost = f
}

// NotifyLinkLost closes the port, the peripheral will be reopened
// by an explicit ConnectTo.
func (sc *SerialConnection) NotifyLinkLost(err error) {
	sc.log.Printf("closing serial connection to \"%s\": %s", sc.Path(), err)
	if err := sc.Disconnect(); err != nil && !errors.Is(err, ErrClosedPort) {
		sc.log.WithError(err).Warn("in sc.Disconnect")
	}
}

func (sc *SerialConnection) readRoutine(port io.Reader, closing chan struct{}) {
	var (
		buf   = make([]byte, 64)
		split frameSplitter
	)
	for {
		n, err := port.Read(buf)
		select {
		case <-closing:
			return
		default:
		}
		if err != nil {
			sc.lost(err)
			return
		}
		for _, frame := range split.Feed(buf[:n]) {
			sc.mu.Lock()
			onData := sc.onData
			sc.mu.Unlock()
			if onData != nil {
				onData(frame)
			}
		}
	}
}

func (sc *SerialConnection) writeRoutine(port io.Writer, wr chan writeRequest, closing chan struct{}) {
	for {
		select {
		case req := <-wr:
			_, err := port.Write(req.frame)
			if err != nil {
				sc.log.WithError(err).Warn("in sc.writeRoutine")
			}
			req.done <- err
		case <-closing:
			for {
				select {
				case req := <-wr:
					req.done <- ErrClosedPort
				default:
					return
				}
			}
		}
	}
}

// lost is called by the read routine when the port fails under it.
func (sc *SerialConnection) lost(err error) {
	sc.mu.Lock()
	port := sc.port
	onLost := sc.onLost
	if port != nil {
		sc.port = nil
		close(sc.closeChan)
	}
	sc.mu.Unlock()
	if port == nil {
		return
	}
	_ = port.Close()
	sc.log.WithError(err).Warnf("lost \"%s\"", sc.Path())
	if onLost != nil {
		onLost(err)
	}
}

// frameSplitter cuts a length-prefixed byte stream into frames.
type frameSplitter struct {
	buf []byte
}

// Feed appends b to the pending bytes and returns every complete frame.
func (fs *frameSplitter) Feed(b []byte) [][]byte {
	fs.buf = append(fs.buf, b...)
	var frames [][]byte
	for len(fs.buf) > 0 {
		n := int(fs.buf[0])
		if n == 0 {
			fs.buf = fs.buf[1:]
			continue
		}
		if len(fs.buf) < 1+n {
			break
		}
		frame := make([]byte, n)
		copy(frame, fs.buf[1:1+n])
		frames = append(frames, frame)
		fs.buf = fs.buf[1+n:]
	}
	if len(fs.buf) == 0 {
		fs.buf = nil
	}
	return frames
}
