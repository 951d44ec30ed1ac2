package client

import (
	"bytes"
	"strconv"

	"github.com/pkg/errors"

	"async-http/engine"
	sliceutil "async-http/lib/slice"
)

var errMalformedStatusLine = errors.New("malformed status line")

var (
	statusLinePrefix = []byte("HTTP/")
	interimPrefix    = []byte("HTTP/1.1 100")
	headerTerminator = []byte("\r\n")
)

// conn binds one in-flight request to one engine handle. A conn is either
// free or bound to exactly one request; everything per-request is cleared
// when the slot is released.
type conn struct {
	handle engine.Handle
	slot   int

	req           *Request
	uploadOffset  int
	afterContinue bool
	parseErr      error
	doneFired     bool
}

// configure builds the handle options for the bound request. Called once per
// binding, before the handle is registered with the engine.
func (c *conn) configure(opts Options) engine.HandleOptions {
	c.afterContinue = false

	ho := engine.HandleOptions{
		URL:           c.req.url,
		Method:        c.req.verb,
		BufferSize:    opts.BufferSize,
		Timeout:       c.req.timeout,
		SkipTLSVerify: opts.DisableTLSChecks,
		TCPNoDelay:    opts.TCPNoDelay,
		Verbose:       opts.Debug,
		OnHeaderLine:  c.onHeaderLine,
		OnBodyChunk:   c.onBodyChunk,
		ReadBody:      c.readBody,
	}

	headers := append(Params(nil), c.req.headers...)

	body := c.req.content.Body
	sendsBody := false

	switch c.req.verb {
	case "GET":
	case "HEAD":
		ho.NoBody = true
	case "PUT":
		ho.Upload = true
		ho.UploadSize = int64(len(body))
		sendsBody = true
	case "POST":
		ho.Post = true
		ho.PostBody = body
		ho.PostSize = int64(len(body))
		sendsBody = true
	default:
		// Custom method token. A body, when present, goes out as a
		// fixed-size payload.
		if !c.req.content.empty() {
			ho.Post = true
			ho.PostBody = body
			ho.PostSize = int64(len(body))
			sendsBody = true
		}
	}

	if sendsBody {
		headers = append(headers,
			Param{Name: "Content-Length", Value: strconv.Itoa(len(body))},
			// No chunked uploads: the body length is declared exactly.
			Param{Name: "Transfer-Encoding", Value: ""},
			Param{Name: "Content-Type", Value: c.req.content.ContentType},
			// The engine would otherwise negotiate "Expect: 100-continue"
			// on uploads above its own size threshold.
			Param{Name: "Expect", Value: ""},
		)
	}

	ho.Headers = sliceutil.Map(headers, func(p Param) engine.Header {
		return engine.Header{Name: p.Name, Value: p.Value}
	})

	return ho
}

// onHeaderLine consumes one raw header line. Exactly one interim "100
// Continue" exchange is swallowed; the following status line and headers are
// delivered as the real response.
func (c *conn) onHeaderLine(line []byte) error {
	switch {
	case bytes.HasPrefix(line, interimPrefix):
		c.afterContinue = true
	case c.afterContinue:
		if bytes.Equal(line, headerTerminator) {
			c.afterContinue = false
		}
	case bytes.HasPrefix(line, statusLinePrefix):
		version, code, err := parseStatusLine(line)
		if err != nil {
			c.parseErr = err
			return err
		}
		c.req.cbs.OnResponseStart(c.req, version, code)
	default:
		c.req.cbs.OnHeader(c.req, line)
	}

	return nil
}

func (c *conn) onBodyChunk(chunk []byte) error {
	c.req.cbs.OnData(c.req, chunk)
	return nil
}

// readBody supplies the next upload bytes. Once the offset reaches the body
// length it returns zero to signal end-of-body.
func (c *conn) readBody(p []byte) int {
	n := copy(p, c.req.content.Body[c.uploadOffset:])
	c.uploadOffset += n
	return n
}

// clear drops per-request transient state so the slot can be rebound.
func (c *conn) clear() {
	c.req = nil
	c.uploadOffset = 0
	c.afterContinue = false
	c.parseErr = nil
	c.doneFired = false
}

func parseStatusLine(line []byte) (version string, code int, err error) {
	sp := bytes.IndexByte(line, ' ')
	if sp < 0 {
		return "", 0, errors.Wrapf(errMalformedStatusLine, "no separator after version in %q", line)
	}
	version = string(line[:sp])

	rest := line[sp+1:]
	sp = bytes.IndexByte(rest, ' ')
	if sp < 0 {
		return "", 0, errors.Wrapf(errMalformedStatusLine, "no separator after status code in %q", line)
	}

	code, convErr := strconv.Atoi(string(rest[:sp]))
	if convErr != nil {
		return "", 0, errors.Wrapf(errMalformedStatusLine, "non-numeric status code in %q", line)
	}

	return version, code, nil
}
