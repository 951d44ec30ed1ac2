// Package engine defines the contract between the multiplexing client and the
// transport engine that performs connection setup, TLS, and HTTP wire I/O.
//
// The engine owns everything below the socket: framing, chunked transfer,
// compression, redirects. The client owns scheduling: it watches the
// descriptors the engine announces, drives the engine when they become ready,
// and collects per-handle completions.
package engine

import "time"

// Handle is one engine-managed unit of work for a single request/response
// exchange. Handles are created once and reused across exchanges; a Handle
// must be usable as a map key.
type Handle any

// ResultCode is the engine's terminal status for one handle.
type ResultCode int

const (
	ResultOK ResultCode = iota
	ResultTimeout
	ResultHostNotFound
	ResultCouldNotConnect
	ResultSendError
	ResultRecvError
	// ResultAbortedByCallback is reported when a per-handle callback returned
	// an error, aborting the exchange.
	ResultAbortedByCallback
)

// Completion pairs a finished handle with its result.
type Completion struct {
	Handle Handle
	Result ResultCode
}

// EventFlags describes which directions of a descriptor became ready.
type EventFlags uint8

const (
	EventInput EventFlags = 1 << iota
	EventOutput
)

func (f EventFlags) Input() bool  { return f&EventInput != 0 }
func (f EventFlags) Output() bool { return f&EventOutput != 0 }

// SocketAction is the engine's requested change to descriptor monitoring.
type SocketAction uint8

const (
	SocketNone SocketAction = iota
	SocketWatchInput
	SocketWatchOutput
	SocketWatchBoth
	SocketRemove
)

func (a SocketAction) Input() bool  { return a == SocketWatchInput || a == SocketWatchBoth }
func (a SocketAction) Output() bool { return a == SocketWatchOutput || a == SocketWatchBoth }

// SocketStateFunc is invoked by the engine whenever its interest in a
// descriptor changes. The token is whatever was last bound to the descriptor
// via AssignSocket, nil for a descriptor seen for the first time.
type SocketStateFunc func(fd int, action SocketAction, token any)

// TimerFunc is invoked by the engine to request a housekeeping run in ms
// milliseconds. Zero asks for an immediate run, a negative value cancels the
// pending request.
type TimerFunc func(ms int64)

// Header is one header field sent with a request. An empty Value explicitly
// clears a header the engine would otherwise add on its own.
type Header struct {
	Name  string
	Value string
}

// HandleOptions configures a handle for one exchange.
type HandleOptions struct {
	URL    string
	Method string

	Headers []Header

	// Upload streams a request body through ReadBody; UploadSize is its total
	// length.
	Upload     bool
	UploadSize int64

	// Post sends PostBody as a fixed-size request body of PostSize bytes.
	Post     bool
	PostBody []byte
	PostSize int64

	// NoBody tells the engine not to expect a response body.
	NoBody bool

	// BufferSize is the receive buffer to use for this handle.
	BufferSize int

	// Timeout bounds the whole exchange. Zero means no per-handle timeout.
	Timeout time.Duration

	SkipTLSVerify bool
	TCPNoDelay    bool
	Verbose       bool

	// OnHeaderLine receives each raw response header line, terminator
	// included, for every line up to and including the blank terminator.
	// Returning an error aborts the exchange.
	OnHeaderLine func(line []byte) error

	// OnBodyChunk receives each response body chunk verbatim. Returning an
	// error aborts the exchange.
	OnBodyChunk func(chunk []byte) error

	// ReadBody fills p with the next upload bytes and reports how many were
	// written. Zero signals end of body. Called repeatedly until it returns
	// zero.
	ReadBody func(p []byte) int
}

// Engine is the external transport engine. One instance is shared by all
// handles. Apart from the registered callbacks, which the engine invokes
// synchronously while being driven, every method is called from the loop
// thread only.
type Engine interface {
	NewHandle() Handle
	ConfigureHandle(h Handle, opts HandleOptions) error

	// Register submits a configured handle for execution.
	Register(h Handle) error
	// Remove detaches a completed handle so it can be reconfigured and
	// registered again.
	Remove(h Handle) error

	// DriveSocket reports readiness of fd to the engine and returns the
	// number of still-running handles.
	DriveSocket(fd int, flags EventFlags) (running int, err error)
	// DriveTimeout runs the engine's time-based housekeeping: expiring
	// handles, retrying non-blocking operations.
	DriveTimeout() (running int, err error)

	// PollCompleted drains the handles that reached a terminal state since
	// the last poll.
	PollCompleted() []Completion

	// AssignSocket binds an opaque token to a descriptor so later
	// SocketStateFunc invocations for it carry the token.
	AssignSocket(fd int, token any) error

	SetSocketStateFunc(fn SocketStateFunc)
	SetTimerFunc(fn TimerFunc)
	SetPipelining(enabled bool)
}
