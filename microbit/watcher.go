package microbit

import (
	"context"
	"sync"
	"time"
)

// Watcher reconnects a driver to its configured peripheral after the link
// was lost or went stale.
type Watcher struct {
	d      *Driver
	cfg    *WatcherConfig
	stopCh chan struct{}
	wg     sync.WaitGroup
}

type WatcherConfig struct {
	ConnPollRate   Duration
	ConnectTimeout Duration
}

var DefaultWatcherConfig = WatcherConfig{
	ConnPollRate:   Duration(time.Second * 2),
	ConnectTimeout: Duration(time.Second * 10),
}

func NewWatcher(d *Driver, cfg *WatcherConfig) *Watcher {
	if cfg == nil {
		cfg = &DefaultWatcherConfig
	}
	if cfg.ConnPollRate <= 0 {
		cfg.ConnPollRate = DefaultWatcherConfig.ConnPollRate
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultWatcherConfig.ConnectTimeout
	}
	return &Watcher{
		d:   d,
		cfg: cfg,
	}
}

func (w *Watcher) Stop() {
	if w.stopCh == nil {
		return
	}
	w.d.log.Debug("stopping conn watcher")
	close(w.stopCh)
	w.wg.Wait()
	w.stopCh = nil
}

// WatchConn polls the driver state every ConnPollRate and calls Connect
// whenever it isn't Connected, unless Disconnect was called last.
func (w *Watcher) WatchConn() {
	w.stopCh = make(chan struct{})
	stopCh := w.stopCh
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ticker := w.d.clock.Ticker(time.Duration(w.cfg.ConnPollRate))
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
			case <-stopCh:
				return
			}

			if !w.d.wantsReconnect() {
				continue
			}
			ctx, cancel := context.WithTimeout(context.Background(), time.Duration(w.cfg.ConnectTimeout))
			err := w.d.Connect(ctx)
			cancel()
			if err != nil {
				w.d.log.WithError(err).Debug("reconnect failed")
			}
		}
	}()
}
