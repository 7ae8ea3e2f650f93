package web

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/solar3s/gomore/microbit"
	"go.bug.st/serial"
)

// Transport names accepted in Device.Transport.
const (
	TransportBLE    = "ble"
	TransportSerial = "serial"
	TransportSim    = "sim"
)

var DefaultConfig = Config{
	Device:  DefaultDeviceConfig,
	Driver:  microbit.DefaultConfig,
	Watcher: microbit.DefaultWatcherConfig,
	Web:     DefaultServerConfig,
	Serial:  *microbit.DefaultSerialConfig,
}

type Config struct {
	Device  DeviceConfig
	Driver  microbit.Config
	Watcher microbit.WatcherConfig
	Web     ServerConfig
	Serial  serial.Mode
}

type DeviceConfig struct {
	Transport   string            // ble, serial or sim
	Reconnect   bool              // reconnect on link lost, see Watcher
	SimInterval microbit.Duration // telemetry period of the simulator
	SimHold     microbit.Duration // acknowledgment delay of the simulator
}

var DefaultDeviceConfig = DeviceConfig{
	Transport:   TransportBLE,
	Reconnect:   true,
	SimInterval: microbit.Duration(50 * time.Millisecond),
	SimHold:     microbit.Duration(20 * time.Millisecond),
}

// NewConfig returns a deep copy of DefaultConfig.
func NewConfig() *Config {
	cfg := DefaultConfig
	cfg.Driver = *microbit.NewConfig()
	return &cfg
}

// Validate checks values main can't fix by itself.
func (cfg *Config) Validate() error {
	switch cfg.Device.Transport {
	case TransportBLE, TransportSerial, TransportSim:
	default:
		return fmt.Errorf("unknown transport %q, want %s, %s or %s",
			cfg.Device.Transport, TransportBLE, TransportSerial, TransportSim)
	}
	if cfg.Device.Transport != TransportSim && cfg.Driver.Peripheral == "" {
		return fmt.Errorf("no peripheral configured for %s transport", cfg.Device.Transport)
	}
	return cfg.Driver.Pins.Validate()
}

// ReadConfig decodes the toml file at path over a copy of DefaultConfig.
func ReadConfig(path string) (*Config, error) {
	cfg := NewConfig()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// WriteConfig encodes cfg to path, creating parent directories.
func WriteConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
