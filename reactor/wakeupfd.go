package reactor

import (
	"encoding/binary"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// WakeupFD is a cross-thread wakeup signal backed by an eventfd.
// Signal may be called from any goroutine; Drain belongs to the loop thread.
type WakeupFD struct {
	fd int
}

func NewWakeupFD() (*WakeupFD, error) {
	fd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		return nil, errors.Wrap(err, "creating eventfd")
	}

	return &WakeupFD{fd: fd}, nil
}

func (w *WakeupFD) Fd() int { return w.fd }

// Signal raises the wakeup. Signals raised while one is already pending
// coalesce; the loop observes a single wake.
func (w *WakeupFD) Signal() error {
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], 1)

	for {
		_, err := unix.Write(w.fd, buf[:])
		switch {
		case err == nil:
			return nil
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.EAGAIN):
			// Counter saturated. A wake is already pending.
			return nil
		default:
			return errors.Wrap(err, "writing to eventfd")
		}
	}
}

// Drain consumes every pending signal and returns how many were coalesced
// since the last drain.
func (w *WakeupFD) Drain() (uint64, error) {
	var total uint64
	var buf [8]byte

	for {
		_, err := unix.Read(w.fd, buf[:])
		switch {
		case err == nil:
			total += binary.NativeEndian.Uint64(buf[:])
		case errors.Is(err, unix.EINTR):
		case errors.Is(err, unix.EAGAIN):
			return total, nil
		default:
			return total, errors.Wrap(err, "reading from eventfd")
		}
	}
}

func (w *WakeupFD) Close() error {
	return errors.Wrap(unix.Close(w.fd), "closing eventfd")
}
