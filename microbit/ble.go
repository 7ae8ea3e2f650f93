package microbit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"tinygo.org/x/bluetooth"
)

var ErrPeripheralGone = errors.New("peripheral disconnected")

// BLEConnection is a Transport over a Bluetooth Low Energy adapter.
type BLEConnection struct {
	ConnectTimeout time.Duration

	adapter *bluetooth.Adapter
	log     logrus.FieldLogger

	mu        sync.Mutex
	enabled   bool
	connected bool
	address   string
	device    bluetooth.Device
	chars     map[bluetooth.UUID]bluetooth.DeviceCharacteristic
	onLost    func(error)
}

// NewBLE returns a transport on adapter, bluetooth.DefaultAdapter if nil.
func NewBLE(adapter *bluetooth.Adapter, log logrus.FieldLogger) *BLEConnection {
	if adapter == nil {
		adapter = bluetooth.DefaultAdapter
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &BLEConnection{
		ConnectTimeout: 10 * time.Second,
		adapter:        adapter,
		log:            log.WithField("component", "ble"),
	}
}

// parseUUID accepts 16-bit short forms ("f005") and full UUIDs.
func parseUUID(s string) (bluetooth.UUID, error) {
	if len(s) == 4 {
		v, err := strconv.ParseUint(s, 16, 16)
		if err != nil {
			return bluetooth.UUID{}, fmt.Errorf("invalid uuid %q: %w", s, err)
		}
		return bluetooth.New16BitUUID(uint16(v)), nil
	}
	return bluetooth.ParseUUID(s)
}

func (bc *BLEConnection) enable() error {
	if bc.enabled {
		return nil
	}
	if err := bc.adapter.Enable(); err != nil {
		return fmt.Errorf("enable adapter: %w", err)
	}
	bc.adapter.SetConnectHandler(bc.connectHandler)
	bc.enabled = true
	return nil
}

// ConnectTo connects to the peripheral at MAC address and discovers
// the More service characteristics.
func (bc *BLEConnection) ConnectTo(ctx context.Context, address string) error {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	if bc.connected {
		return fmt.Errorf("already connected to %s", bc.address)
	}
	if err := bc.enable(); err != nil {
		return err
	}

	timeout := bc.ConnectTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var addr bluetooth.Address
	addr.Set(address)
	device, err := bc.adapter.Connect(addr, bluetooth.ConnectionParams{
		ConnectionTimeout: bluetooth.NewDuration(timeout),
	})
	if err != nil {
		return err
	}

	chars, err := discover(device)
	if err != nil {
		_ = device.Disconnect()
		return err
	}
	bc.device = device
	bc.chars = chars
	bc.address = address
	bc.connected = true
	bc.log.Infof("connected to %s", address)
	return nil
}

func discover(device bluetooth.Device) (map[bluetooth.UUID]bluetooth.DeviceCharacteristic, error) {
	svc, err := parseUUID(ServiceID)
	if err != nil {
		return nil, err
	}
	rx, err := parseUUID(RxCharUUID)
	if err != nil {
		return nil, err
	}
	tx, err := parseUUID(TxCharUUID)
	if err != nil {
		return nil, err
	}

	services, err := device.DiscoverServices([]bluetooth.UUID{svc})
	if err != nil {
		return nil, fmt.Errorf("discover service %s: %w", ServiceID, err)
	}
	if len(services) == 0 {
		return nil, fmt.Errorf("service %s not found", ServiceID)
	}
	found, err := services[0].DiscoverCharacteristics([]bluetooth.UUID{rx, tx})
	if err != nil {
		return nil, fmt.Errorf("discover characteristics: %w", err)
	}
	chars := make(map[bluetooth.UUID]bluetooth.DeviceCharacteristic, len(found))
	for _, c := range found {
		chars[c.UUID()] = c
	}
	for _, u := range []bluetooth.UUID{rx, tx} {
		if _, ok := chars[u]; !ok {
			return nil, fmt.Errorf("characteristic %s not found", u)
		}
	}
	return chars, nil
}

func (bc *BLEConnection) characteristic(uuid string) (bluetooth.DeviceCharacteristic, error) {
	u, err := parseUUID(uuid)
	if err != nil {
		return bluetooth.DeviceCharacteristic{}, err
	}
	bc.mu.Lock()
	defer bc.mu.Unlock()
	if !bc.connected {
		return bluetooth.DeviceCharacteristic{}, ErrNotConnected
	}
	c, ok := bc.chars[u]
	if !ok {
		return bluetooth.DeviceCharacteristic{}, fmt.Errorf("characteristic %s not discovered", uuid)
	}
	return c, nil
}

// Write writes data from a separate goroutine, the returned channel
// gets the outcome.
func (bc *BLEConnection) Write(_, characteristic string, data []byte, withResponse bool) <-chan error {
	c, err := bc.characteristic(characteristic)
	if err != nil {
		return completed(err)
	}
	buf := append([]byte(nil), data...)
	done := make(chan error, 1)
	go func() {
		done <- writeCharacteristic(c, buf, withResponse, bc.log)
	}()
	return done
}

func (bc *BLEConnection) Read(_, characteristic string, onData func([]byte)) error {
	c, err := bc.characteristic(characteristic)
	if err != nil {
		return err
	}
	return c.EnableNotifications(func(buf []byte) {
		onData(append([]byte(nil), buf...))
	})
}

func (bc *BLEConnection) Disconnect() error {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	if !bc.connected {
		return ErrNotConnected
	}
	bc.connected = false
	bc.chars = nil
	return bc.device.Disconnect()
}

func (bc *BLEConnection) IsConnected() bool {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	return bc.connected
}

func (bc *BLEConnection) OnLinkLost(f func(error)) {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	bc.onLost = f
}

// NotifyLinkLost drops the connection, reconnecting is up to the caller.
func (bc *BLEConnection) NotifyLinkLost(err error) {
	bc.log.WithError(err).Warn("dropping link")
	if err := bc.Disconnect(); err != nil && !errors.Is(err, ErrNotConnected) {
		bc.log.WithError(err).Warn("in bc.Disconnect")
	}
}

func (bc *BLEConnection) connectHandler(device bluetooth.Device, connected bool) {
	if connected {
		return
	}
	bc.mu.Lock()
	if !bc.connected || !strings.EqualFold(device.Address.String(), bc.address) {
		bc.mu.Unlock()
		return
	}
	bc.connected = false
	bc.chars = nil
	onLost, address := bc.onLost, bc.address
	bc.mu.Unlock()

	bc.log.Warnf("%s disconnected", address)
	if onLost != nil {
		onLost(ErrPeripheralGone)
	}
}
