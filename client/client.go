// Package client implements an asynchronous, callback-driven HTTP client
// multiplexing many concurrent requests over a small fixed pool of transport
// engine handles.
//
// The client does not run its own goroutine. An embedder steps it:
//
//	for {
//		waitReadable(c.SelectFd())
//		for c.ProcessOne() {
//		}
//	}
//
// Submit is the only entry point safe to call from other goroutines; every
// callback runs synchronously on the stepping goroutine.
package client

import (
	"log/slog"
	"net/url"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/valyala/bytebufferpool"

	"async-http/engine"
	"async-http/reactor"
)

// Client coordinates the request queue, the connection pool, and the event
// loop glue around one transport engine.
type Client struct {
	baseURL string
	opts    Options

	eng   engine.Engine
	pool  *connPool
	queue *requestQueue

	poller *reactor.Poller
	wakeup *reactor.WakeupFD
	timer  *reactor.TimerFD

	logger *slog.Logger
	clock  clock.Clock
}

// socketTracked marks a descriptor already registered with the poller, so
// later state changes modify instead of add.
type socketTracked struct{}

// New builds a Client multiplexing at most numParallel in-flight requests
// against baseURL. Bounded submission queues are not implemented: a nonzero
// queueSize fails with [ErrBoundedQueueUnsupported] before any setup.
func New(
	eng engine.Engine,
	baseURL string,
	numParallel uint,
	queueSize int,
	logger *slog.Logger,
	clk clock.Clock,
	opts Options,
) (*Client, error) {
	if queueSize > 0 {
		return nil, errors.Wrap(ErrBoundedQueueUnsupported, "constructing client")
	}

	c := &Client{
		baseURL: baseURL,
		opts:    opts.withDefaults(),
		eng:     eng,
		pool:    newConnPool(eng, numParallel),
		queue:   newRequestQueue(),
		logger:  logger,
		clock:   clk,
	}

	poller, err := reactor.NewPoller(c.handleEvent)
	if err != nil {
		return nil, errors.Wrap(err, "creating poller")
	}
	c.poller = poller

	wakeup, err := reactor.NewWakeupFD()
	if err != nil {
		_ = poller.Close()
		return nil, errors.Wrap(err, "creating wakeup fd")
	}
	c.wakeup = wakeup

	timer, err := reactor.NewTimerFD()
	if err != nil {
		_ = poller.Close()
		_ = wakeup.Close()
		return nil, errors.Wrap(err, "creating timer fd")
	}
	c.timer = timer

	// Both stay registered for the client's whole lifetime.
	if err := poller.Add(wakeup.Fd(), true, false); err != nil {
		_ = c.Close()
		return nil, errors.Wrap(err, "registering wakeup fd")
	}
	if err := poller.Add(timer.Fd(), true, false); err != nil {
		_ = c.Close()
		return nil, errors.Wrap(err, "registering timer fd")
	}

	eng.SetSocketStateFunc(c.socketStateChanged)
	eng.SetTimerFunc(c.timeoutRequested)
	eng.SetPipelining(opts.Pipelining)

	// Kick-start the engine so it can report its first housekeeping deadline.
	if _, err := eng.DriveTimeout(); err != nil {
		_ = c.Close()
		return nil, errors.Wrap(err, "kick-starting engine")
	}

	return c, nil
}

// Close releases the loop descriptors. It must not race with ProcessOne.
func (c *Client) Close() error {
	var firstErr error
	for _, closeFn := range []func() error{c.poller.Close, c.wakeup.Close, c.timer.Close} {
		if err := closeFn(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Submit enqueues one request and wakes the loop. Safe to call from any
// goroutine. The returned boolean reports acceptance; with unbounded queueing
// every request is accepted.
func (c *Client) Submit(
	verb, resource string,
	cbs Callbacks,
	content Content,
	queryParams Params,
	headers Params,
	timeout time.Duration,
) bool {
	req := newRequest(
		verb,
		c.buildURL(resource, queryParams),
		cbs,
		content,
		headers,
		timeout,
		c.clock.Now(),
	)

	c.queue.enqueue(req)

	// Wake the loop so it sees there is something new to do.
	if err := c.wakeup.Signal(); err != nil {
		c.logger.Error("signaling wakeup", slog.Any("error", err))
	}

	return true
}

// PendingCount reports requests submitted but not yet bound to a connection.
func (c *Client) PendingCount() int {
	return int(c.queue.len())
}

// SelectFd returns the descriptor the embedder should wait on before calling
// ProcessOne.
func (c *Client) SelectFd() int {
	return c.poller.SelectFd()
}

// ProcessOne handles at most one ready event and reports whether progress was
// made.
func (c *Client) ProcessOne() bool {
	progressed, err := c.poller.ProcessOne()
	if err != nil {
		c.logger.Error("processing ready event", slog.Any("error", err))
		return false
	}
	return progressed
}

func (c *Client) buildURL(resource string, query Params) string {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	_, _ = buf.WriteString(c.baseURL)
	_, _ = buf.WriteString(resource)

	for i, p := range query {
		if i == 0 {
			_ = buf.WriteByte('?')
		} else {
			_ = buf.WriteByte('&')
		}
		_, _ = buf.WriteString(url.QueryEscape(p.Name))
		_ = buf.WriteByte('=')
		_, _ = buf.WriteString(url.QueryEscape(p.Value))
	}

	return buf.String()
}

func (c *Client) handleEvent(ev reactor.Event) {
	switch ev.Fd {
	case c.wakeup.Fd():
		c.onWakeup()
	case c.timer.Fd():
		c.onTimerFired()
	default:
		c.onSocketReady(ev)
	}
}

func (c *Client) onWakeup() {
	// Coalesce every signal raised since the last pass.
	if _, err := c.wakeup.Drain(); err != nil {
		c.logger.Error("draining wakeup signal", slog.Any("error", err))
	}

	c.bindQueued()
}

func (c *Client) onTimerFired() {
	if _, err := c.timer.Consume(); err != nil {
		c.logger.Error("consuming timer expiration", slog.Any("error", err))
	}

	if _, err := c.eng.DriveTimeout(); err != nil {
		c.logger.Error("driving engine on timeout", slog.Any("error", err))
	}
	c.checkCompleted()
}

func (c *Client) onSocketReady(ev reactor.Event) {
	var flags engine.EventFlags
	if ev.Input {
		flags |= engine.EventInput
	}
	if ev.Output {
		flags |= engine.EventOutput
	}

	if _, err := c.eng.DriveSocket(ev.Fd, flags); err != nil {
		c.logger.Error("driving engine on socket readiness",
			slog.Int("fd", ev.Fd), slog.Any("error", err))
	}
	c.checkCompleted()
}

// bindQueued binds as many queued requests as there are free connections, in
// submission order, and hands each to the engine.
func (c *Client) bindQueued() {
	avail := c.pool.freeCount()
	if avail == 0 {
		return
	}

	for _, req := range c.queue.drain(avail) {
		conn, err := c.pool.acquire()
		if err != nil {
			c.logger.Error("acquiring connection", slog.Any("error", err))
			req.cbs.OnDone(req, KindUnknown)
			continue
		}
		conn.req = req

		if err := c.startRequest(conn); err != nil {
			c.logger.Error("starting request",
				slog.String("url", req.url), slog.Any("error", err))
			c.failBound(conn, KindUnknown)
		}
	}
}

func (c *Client) startRequest(conn *conn) error {
	opts := conn.configure(c.opts)

	if err := c.eng.ConfigureHandle(conn.handle, opts); err != nil {
		return errors.Wrap(err, "configuring handle")
	}
	if err := c.eng.Register(conn.handle); err != nil {
		return errors.Wrap(err, "registering handle for execution")
	}

	return nil
}

// checkCompleted finalizes every handle the engine reports as terminal.
func (c *Client) checkCompleted() {
	for _, completion := range c.eng.PollCompleted() {
		conn, ok := c.pool.lookup(completion.Handle)
		if !ok {
			c.logger.Error("completion for unknown handle")
			continue
		}
		c.finalize(conn, completion.Result)
	}
}

// finalize delivers the terminal callback, detaches the handle, and recycles
// the slot. A failed detach is logged and the slot forcibly recycled; one bad
// connection must never take down its siblings.
func (c *Client) finalize(conn *conn, result engine.ResultCode) {
	req := conn.req
	if req == nil || conn.doneFired {
		c.logger.Error("completion for idle connection", slog.Int("slot", conn.slot))
		return
	}
	conn.doneFired = true

	kind := translateResult(result, c.logger)
	if conn.parseErr != nil {
		kind = KindProtocolParse
	}

	req.cbs.OnDone(req, kind)

	c.logger.Debug("request finished",
		slog.String("verb", req.verb),
		slog.String("url", req.url),
		slog.String("kind", kind.String()),
		slog.Duration("elapsed", c.clock.Since(req.submittedAt)),
	)

	if err := c.eng.Remove(conn.handle); err != nil {
		c.logger.Error("removing handle from engine",
			slog.Int("slot", conn.slot), slog.Any("error", err))
	}
	if err := c.pool.release(conn); err != nil {
		c.logger.Error("releasing connection",
			slog.Int("slot", conn.slot), slog.Any("error", err))
	}

	// A slot just freed up. Let queued work claim it.
	if err := c.wakeup.Signal(); err != nil {
		c.logger.Error("signaling wakeup", slog.Any("error", err))
	}
}

// failBound delivers a terminal callback for a request that never reached the
// engine and recycles its slot.
func (c *Client) failBound(conn *conn, kind Kind) {
	req := conn.req
	conn.doneFired = true
	req.cbs.OnDone(req, kind)

	if err := c.pool.release(conn); err != nil {
		c.logger.Error("releasing connection",
			slog.Int("slot", conn.slot), slog.Any("error", err))
	}
}

// socketStateChanged is invoked by the engine whenever its interest in a
// descriptor changes.
func (c *Client) socketStateChanged(fd int, action engine.SocketAction, token any) {
	switch action {
	case engine.SocketNone:
		return
	case engine.SocketRemove:
		if err := c.poller.Remove(fd); err != nil {
			c.logger.Error("unregistering socket",
				slog.Int("fd", fd), slog.Any("error", err))
		}
		return
	}

	if token != nil {
		if err := c.poller.Modify(fd, action.Input(), action.Output()); err != nil {
			c.logger.Error("modifying socket interest",
				slog.Int("fd", fd), slog.Any("error", err))
		}
		return
	}

	if err := c.poller.Add(fd, action.Input(), action.Output()); err != nil {
		c.logger.Error("registering socket",
			slog.Int("fd", fd), slog.Any("error", err))
		return
	}
	if err := c.eng.AssignSocket(fd, socketTracked{}); err != nil {
		c.logger.Error("assigning socket token",
			slog.Int("fd", fd), slog.Any("error", err))
	}
}

// timeoutRequested rearms the housekeeping timer. Zero runs housekeeping
// synchronously instead of deferring it to the next loop pass; a negative
// value cancels the pending deadline.
func (c *Client) timeoutRequested(ms int64) {
	if ms < 0 {
		if err := c.timer.Stop(); err != nil {
			c.logger.Error("stopping timer", slog.Any("error", err))
		}
		return
	}

	if ms == 0 {
		if err := c.timer.Stop(); err != nil {
			c.logger.Error("stopping timer", slog.Any("error", err))
		}
		if _, err := c.eng.DriveTimeout(); err != nil {
			c.logger.Error("driving engine on timeout", slog.Any("error", err))
		}
		c.checkCompleted()
		return
	}

	if err := c.timer.Set(time.Duration(ms) * time.Millisecond); err != nil {
		c.logger.Error("arming timer", slog.Any("error", err))
	}
}
