package client

// defaultBufferSize is the per-handle receive buffer requested from the
// engine when no override is given.
const defaultBufferSize = 64 * 1024

// Options tunes behavior forwarded to the transport engine.
type Options struct {
	// BufferSize is the receive buffer the engine is asked to use per handle.
	// Zero selects the 64 KiB default.
	BufferSize int

	// DisableTLSChecks skips certificate and host verification.
	DisableTLSChecks bool

	// TCPNoDelay disables Nagle's algorithm on new connections.
	TCPNoDelay bool

	// Pipelining lets the engine share one transport connection between
	// handles.
	Pipelining bool

	// Debug turns on the engine's verbose per-handle output.
	Debug bool
}

func (o Options) withDefaults() Options {
	if o.BufferSize == 0 {
		o.BufferSize = defaultBufferSize
	}
	return o
}
