// Package enginetest provides a scripted in-memory transport engine for
// exercising loop code without real sockets.
package enginetest

import (
	"github.com/pkg/errors"

	"async-http/engine"
)

// Handle is the fake engine's unit of work.
type Handle struct {
	id uint64
}

// Response scripts what the engine plays back the next time a registered
// handle is driven.
type Response struct {
	// HeaderLines are fed one by one to the handle's header callback,
	// terminators included.
	HeaderLines []string

	// BodyChunks are fed verbatim to the body callback.
	BodyChunks [][]byte

	// Result is reported through PollCompleted afterwards.
	Result engine.ResultCode
}

type handleState struct {
	opts       engine.HandleOptions
	scripts    []Response
	registered bool

	registerCount int
	uploaded      []byte
}

// Engine is a scripted [engine.Engine]. Like a real engine it only makes
// progress while being driven, and it invokes the registered callbacks
// synchronously on the driving goroutine.
type Engine struct {
	socketState engine.SocketStateFunc
	timer       engine.TimerFunc

	states    map[engine.Handle]*handleState
	running   []engine.Handle
	completed []engine.Completion
	tokens    map[int]any
	nextID    uint64

	// TimeoutOnRegister is reported through the timer callback after every
	// successful Register. Zero (the default) requests an immediate
	// housekeeping run; a negative value cancels the pending deadline.
	TimeoutOnRegister int64

	// RemoveErr, when set, is returned from Remove.
	RemoveErr error

	// Pipelining records the last SetPipelining value.
	Pipelining bool

	// MaxRunning records the highest number of concurrently registered
	// handles observed.
	MaxRunning int

	// LastDrivenFd and LastDrivenFlags record the most recent DriveSocket
	// call.
	LastDrivenFd    int
	LastDrivenFlags engine.EventFlags
}

var _ engine.Engine = (*Engine)(nil)

func New() *Engine {
	return &Engine{
		states:       make(map[engine.Handle]*handleState),
		tokens:       make(map[int]any),
		LastDrivenFd: -1,
	}
}

func (e *Engine) NewHandle() engine.Handle {
	e.nextID++
	h := &Handle{id: e.nextID}
	e.states[h] = &handleState{}
	return h
}

func (e *Engine) ConfigureHandle(h engine.Handle, opts engine.HandleOptions) error {
	st, ok := e.states[h]
	if !ok {
		return errors.New("unknown handle")
	}
	st.opts = opts
	return nil
}

func (e *Engine) Register(h engine.Handle) error {
	st, ok := e.states[h]
	if !ok {
		return errors.New("unknown handle")
	}
	if st.registered {
		return errors.New("handle already registered")
	}

	st.registered = true
	st.registerCount++
	e.running = append(e.running, h)
	e.MaxRunning = max(e.MaxRunning, len(e.running))

	if e.timer != nil {
		e.timer(e.TimeoutOnRegister)
	}

	return nil
}

// Remove detaches the handle even when RemoveErr is scripted, so recovery
// paths stay testable.
func (e *Engine) Remove(h engine.Handle) error {
	st, ok := e.states[h]
	if !ok {
		return errors.New("unknown handle")
	}
	st.registered = false

	for i, running := range e.running {
		if running == h {
			e.running = append(e.running[:i], e.running[i+1:]...)
			break
		}
	}

	return e.RemoveErr
}

func (e *Engine) DriveSocket(fd int, flags engine.EventFlags) (int, error) {
	e.LastDrivenFd = fd
	e.LastDrivenFlags = flags
	return e.replay(), nil
}

func (e *Engine) DriveTimeout() (int, error) {
	return e.replay(), nil
}

func (e *Engine) PollCompleted() []engine.Completion {
	out := e.completed
	e.completed = nil
	return out
}

func (e *Engine) AssignSocket(fd int, token any) error {
	e.tokens[fd] = token
	return nil
}

func (e *Engine) SetSocketStateFunc(fn engine.SocketStateFunc) { e.socketState = fn }
func (e *Engine) SetTimerFunc(fn engine.TimerFunc)             { e.timer = fn }
func (e *Engine) SetPipelining(enabled bool)                   { e.Pipelining = enabled }

// Script enqueues a response to play back when h is next driven. Scripts
// queue up, one consumed per exchange.
func (e *Engine) Script(h engine.Handle, res Response) {
	st := e.states[h]
	st.scripts = append(st.scripts, res)
}

// AnnounceSocket reports a descriptor state change through the socket
// callback, carrying whatever token was assigned to fd.
func (e *Engine) AnnounceSocket(fd int, action engine.SocketAction) {
	e.socketState(fd, action, e.tokens[fd])
}

// RequestTimeout reports a housekeeping deadline through the timer callback.
func (e *Engine) RequestTimeout(ms int64) {
	e.timer(ms)
}

// Uploaded returns everything the engine consumed as request body during the
// most recent exchange on h.
func (e *Engine) Uploaded(h engine.Handle) []byte {
	return e.states[h].uploaded
}

// RegisterCount returns how many times h has been registered over its
// lifetime.
func (e *Engine) RegisterCount(h engine.Handle) int {
	return e.states[h].registerCount
}

// Running returns the number of currently registered handles.
func (e *Engine) Running() int { return len(e.running) }

func (e *Engine) replay() int {
	for _, h := range append([]engine.Handle(nil), e.running...) {
		st := e.states[h]
		if !st.registered || len(st.scripts) == 0 {
			continue
		}

		res := st.scripts[0]
		st.scripts = st.scripts[1:]

		e.playback(h, st, res)
	}

	return len(e.running)
}

func (e *Engine) playback(h engine.Handle, st *handleState, res Response) {
	st.uploaded = nil

	switch {
	case st.opts.Upload && st.opts.ReadBody != nil:
		// Drain the upload supplier the way a real engine writes the body.
		size := st.opts.BufferSize
		if size <= 0 {
			size = 16 * 1024
		}
		buf := make([]byte, size)
		for {
			n := st.opts.ReadBody(buf)
			if n == 0 {
				break
			}
			st.uploaded = append(st.uploaded, buf[:n]...)
		}
	case st.opts.Post:
		st.uploaded = append([]byte(nil), st.opts.PostBody...)
	}

	for _, line := range res.HeaderLines {
		if st.opts.OnHeaderLine == nil {
			break
		}
		if err := st.opts.OnHeaderLine([]byte(line)); err != nil {
			e.complete(h, engine.ResultAbortedByCallback)
			return
		}
	}

	if !st.opts.NoBody {
		for _, chunk := range res.BodyChunks {
			if st.opts.OnBodyChunk == nil {
				break
			}
			if err := st.opts.OnBodyChunk(chunk); err != nil {
				e.complete(h, engine.ResultAbortedByCallback)
				return
			}
		}
	}

	e.complete(h, res.Result)
}

func (e *Engine) complete(h engine.Handle, code engine.ResultCode) {
	e.completed = append(e.completed, engine.Completion{Handle: h, Result: code})
}
