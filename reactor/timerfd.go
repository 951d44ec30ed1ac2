package reactor

import (
	"encoding/binary"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// TimerFD is a rearmable one-shot deadline backed by a monotonic timerfd.
// Every Set replaces the pending deadline.
type TimerFD struct {
	fd int
}

func NewTimerFD() (*TimerFD, error) {
	fd, err := unix.TimerfdCreate(unix.CLOCK_MONOTONIC, unix.TFD_NONBLOCK|unix.TFD_CLOEXEC)
	if err != nil {
		return nil, errors.Wrap(err, "creating timerfd")
	}

	return &TimerFD{fd: fd}, nil
}

func (t *TimerFD) Fd() int { return t.fd }

// Set arms the timer to fire once after d. A non-positive duration is clamped
// to the shortest representable delay; a zero it_value would disarm the
// kernel timer instead of firing it.
func (t *TimerFD) Set(d time.Duration) error {
	if d <= 0 {
		d = time.Nanosecond
	}

	spec := unix.ItimerSpec{Value: unix.NsecToTimespec(d.Nanoseconds())}
	if err := unix.TimerfdSettime(t.fd, 0, &spec, nil); err != nil {
		return errors.Wrap(err, "arming timerfd")
	}

	return nil
}

// Stop cancels the pending deadline, if any.
func (t *TimerFD) Stop() error {
	spec := unix.ItimerSpec{}
	if err := unix.TimerfdSettime(t.fd, 0, &spec, nil); err != nil {
		return errors.Wrap(err, "disarming timerfd")
	}

	return nil
}

// Consume clears the timer's readiness and returns the number of expirations
// since the last consume. Zero means the timer has not fired.
func (t *TimerFD) Consume() (uint64, error) {
	var buf [8]byte

	for {
		_, err := unix.Read(t.fd, buf[:])
		switch {
		case err == nil:
			return binary.NativeEndian.Uint64(buf[:]), nil
		case errors.Is(err, unix.EINTR):
		case errors.Is(err, unix.EAGAIN):
			return 0, nil
		default:
			return 0, errors.Wrap(err, "reading from timerfd")
		}
	}
}

func (t *TimerFD) Close() error {
	return errors.Wrap(unix.Close(t.fd), "closing timerfd")
}
