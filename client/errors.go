package client

import (
	"log/slog"

	"github.com/pkg/errors"

	"async-http/engine"
)

// ErrBoundedQueueUnsupported is returned by New when a bounded submission
// queue is requested. Bounded queueing is not implemented; construction fails
// outright instead of silently downgrading to unbounded.
var ErrBoundedQueueUnsupported = errors.New("bounded queue semantics not implemented")

// Kind classifies the outcome of one request, delivered through OnDone.
type Kind uint8

const (
	KindNone Kind = iota
	KindTimeout
	KindHostNotFound
	KindCouldNotConnect
	KindSendError
	KindRecvError
	// KindProtocolParse reports a malformed status line. It is produced by
	// the header parser, never by result-code translation.
	KindProtocolParse
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindTimeout:
		return "timeout"
	case KindHostNotFound:
		return "host not found"
	case KindCouldNotConnect:
		return "could not connect"
	case KindSendError:
		return "send error"
	case KindRecvError:
		return "receive error"
	case KindProtocolParse:
		return "protocol parse error"
	case KindUnknown:
		return "unknown"
	}
	return "invalid"
}

// translateResult maps an engine result code onto a Kind. The mapping is
// total: codes it does not recognize become KindUnknown, logged for
// diagnosis.
func translateResult(code engine.ResultCode, logger *slog.Logger) Kind {
	switch code {
	case engine.ResultOK:
		return KindNone
	case engine.ResultTimeout:
		return KindTimeout
	case engine.ResultHostNotFound:
		return KindHostNotFound
	case engine.ResultCouldNotConnect:
		return KindCouldNotConnect
	case engine.ResultSendError:
		return KindSendError
	case engine.ResultRecvError:
		return KindRecvError
	default:
		logger.Warn("unrecognized engine result code", slog.Int("code", int(code)))
		return KindUnknown
	}
}
