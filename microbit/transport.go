package microbit

import "context"

// Transport moves raw frames to and from the peripheral. Implementations
// deliver inbound frames from a single goroutine, in arrival order.
type Transport interface {
	ConnectTo(ctx context.Context, peripheral string) error
	Disconnect() error
	IsConnected() bool

	// Write sends data on characteristic. The returned channel yields
	// once when the write completed (nil) or failed.
	Write(service, characteristic string, data []byte, withResponse bool) <-chan error

	// Read registers onData for every notification on characteristic,
	// replacing any previous callback.
	Read(service, characteristic string, onData func([]byte)) error

	// NotifyLinkLost reports a disconnect-worthy condition found above
	// the transport, such as telemetry going silent.
	NotifyLinkLost(err error)
}

// LinkReporter is implemented by transports able to report a link lost on
// their side (peripheral powered off, cable pulled).
type LinkReporter interface {
	OnLinkLost(func(err error))
}

// completed returns a channel already holding err.
func completed(err error) <-chan error {
	ch := make(chan error, 1)
	ch <- err
	return ch
}
