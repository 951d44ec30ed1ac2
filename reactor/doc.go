// Package reactor provides the readiness primitives behind an externally
// stepped event loop: an epoll-backed multiplexer, an eventfd wakeup signal,
// and a rearmable timerfd deadline.
//
// Nothing here spawns goroutines. The embedder waits on [Poller.SelectFd] and
// pulls one event at a time with [Poller.ProcessOne].
package reactor
