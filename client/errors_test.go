package client

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"async-http/engine"
)

func TestTranslateResult(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	testcases := []struct {
		desc string
		code engine.ResultCode
		kind Kind
	}{
		{desc: "ok", code: engine.ResultOK, kind: KindNone},
		{desc: "timeout", code: engine.ResultTimeout, kind: KindTimeout},
		{desc: "host not found", code: engine.ResultHostNotFound, kind: KindHostNotFound},
		{desc: "could not connect", code: engine.ResultCouldNotConnect, kind: KindCouldNotConnect},
		{desc: "send error", code: engine.ResultSendError, kind: KindSendError},
		{desc: "recv error", code: engine.ResultRecvError, kind: KindRecvError},
		{desc: "callback abort", code: engine.ResultAbortedByCallback, kind: KindUnknown},
		{desc: "unrecognized code", code: engine.ResultCode(999), kind: KindUnknown},
		{desc: "negative code", code: engine.ResultCode(-1), kind: KindUnknown},
	}

	for _, tc := range testcases {
		t.Run(tc.desc, func(t *testing.T) {
			assert.Equal(t, tc.kind, translateResult(tc.code, logger))
		})
	}
}

func TestKindString(t *testing.T) {
	kinds := map[Kind]string{
		KindNone:            "none",
		KindTimeout:         "timeout",
		KindHostNotFound:    "host not found",
		KindCouldNotConnect: "could not connect",
		KindSendError:       "send error",
		KindRecvError:       "receive error",
		KindProtocolParse:   "protocol parse error",
		KindUnknown:         "unknown",
		Kind(250):           "invalid",
	}

	for kind, expected := range kinds {
		assert.Equal(t, expected, kind.String())
	}
}
