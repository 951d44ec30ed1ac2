package reactor

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Event is one readiness notification.
type Event struct {
	Fd     int
	Input  bool
	Output bool
}

// HandlerFunc receives ready events, one per ProcessOne call, on the calling
// goroutine.
type HandlerFunc func(Event)

// Poller is an epoll-backed readiness multiplexer. The epoll descriptor
// itself is what the embedder waits on; ProcessOne never blocks.
type Poller struct {
	epfd   int
	handle HandlerFunc
}

func NewPoller(handle HandlerFunc) (*Poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, errors.Wrap(err, "creating epoll instance")
	}

	return &Poller{epfd: epfd, handle: handle}, nil
}

// SelectFd returns the descriptor to wait on before calling ProcessOne.
func (p *Poller) SelectFd() int { return p.epfd }

func (p *Poller) Add(fd int, input, output bool) error {
	ev := unix.EpollEvent{Events: interestFlags(input, output), Fd: int32(fd)}
	return errors.Wrapf(unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev), "adding fd %d", fd)
}

func (p *Poller) Modify(fd int, input, output bool) error {
	ev := unix.EpollEvent{Events: interestFlags(input, output), Fd: int32(fd)}
	return errors.Wrapf(unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, &ev), "modifying fd %d", fd)
}

func (p *Poller) Remove(fd int) error {
	return errors.Wrapf(unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil), "removing fd %d", fd)
}

// ProcessOne delivers at most one ready event to the handler. It reports
// whether progress was made.
func (p *Poller) ProcessOne() (progressed bool, err error) {
	var events [1]unix.EpollEvent

	for {
		n, err := unix.EpollWait(p.epfd, events[:], 0)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return false, errors.Wrap(err, "waiting on epoll")
		}
		if n == 0 {
			return false, nil
		}

		ev := events[0]
		p.handle(Event{
			Fd: int(ev.Fd),
			// Hangups and errors are surfaced as input so the consumer gets
			// driven and notices the failure itself.
			Input:  ev.Events&(unix.EPOLLIN|unix.EPOLLHUP|unix.EPOLLERR) != 0,
			Output: ev.Events&unix.EPOLLOUT != 0,
		})

		return true, nil
	}
}

func (p *Poller) Close() error {
	return errors.Wrap(unix.Close(p.epfd), "closing epoll instance")
}

func interestFlags(input, output bool) uint32 {
	var flags uint32
	if input {
		flags |= unix.EPOLLIN
	}
	if output {
		flags |= unix.EPOLLOUT
	}
	return flags
}
