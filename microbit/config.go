package microbit

import (
	"fmt"
	"time"
)

// Duration is a time.Duration read from and written to config files as
// a human string ("4.5s").
type Duration time.Duration

func (d Duration) String() string {
	return time.Duration(d).String()
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", b, err)
	}
	*d = Duration(v)
	return nil
}

type Config struct {
	Peripheral   string   // BLE MAC address or serial port path
	Pins         PinMap   // pins carried by telemetry frames
	SendTimeout  Duration // release of an unacknowledged command
	StaleTimeout Duration // longest telemetry silence before the link is reported dead
	MaxWriteSize int      // transport single write limit in bytes
}

var DefaultConfig = Config{
	Pins:         DefaultPinMap,
	SendTimeout:  Duration(SendTimeout),
	StaleTimeout: Duration(StaleTimeout),
	MaxWriteSize: DefaultMaxSize,
}

func NewConfig() *Config {
	cfg := DefaultConfig
	cfg.Pins = DefaultPinMap.clone()
	return &cfg
}

// sanitize fills zero values with defaults.
func (cfg *Config) sanitize() error {
	if len(cfg.Pins.Analog) == 0 && len(cfg.Pins.Digital) == 0 {
		cfg.Pins = DefaultPinMap.clone()
	}
	if err := cfg.Pins.Validate(); err != nil {
		return err
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = Duration(SendTimeout)
	}
	if cfg.StaleTimeout <= 0 {
		cfg.StaleTimeout = Duration(StaleTimeout)
	}
	if cfg.MaxWriteSize <= 0 {
		cfg.MaxWriteSize = DefaultMaxSize
	}
	return nil
}
