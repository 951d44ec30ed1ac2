package client

import "time"

// Param is one name/value pair.
type Param struct {
	Name  string
	Value string
}

// Params is an ordered list of name/value pairs used for query strings and
// request headers. Order is preserved and duplicate names are allowed.
type Params []Param

// Content is an optional request body with its declared content type.
type Content struct {
	Body        []byte
	ContentType string
}

func (c Content) empty() bool { return len(c.Body) == 0 }

// Callbacks receives the response events for one request. Every method runs
// synchronously on the loop goroutine; a blocking callback stalls every other
// in-flight request.
type Callbacks interface {
	// OnResponseStart reports the status line of the final response. Interim
	// responses are never reported.
	OnResponseStart(req *Request, httpVersion string, code int)

	// OnHeader receives each raw header line verbatim, terminator included,
	// up to and including the blank line ending the header section.
	OnHeader(req *Request, line []byte)

	// OnData receives each response body chunk verbatim.
	OnData(req *Request, chunk []byte)

	// OnDone fires exactly once per accepted request, after which the request
	// is released.
	OnDone(req *Request, kind Kind)
}

// Request is one submitted exchange. It is immutable after creation: owned by
// the queue until bound, by exactly one connection while in flight, and
// released after OnDone.
type Request struct {
	verb    string
	url     string
	cbs     Callbacks
	content Content
	headers Params
	timeout time.Duration

	submittedAt time.Time
}

func newRequest(
	verb, url string,
	cbs Callbacks,
	content Content,
	headers Params,
	timeout time.Duration,
	submittedAt time.Time,
) *Request {
	return &Request{
		verb:        verb,
		url:         url,
		cbs:         cbs,
		content:     content,
		headers:     headers,
		timeout:     timeout,
		submittedAt: submittedAt,
	}
}

func (r *Request) Verb() string           { return r.verb }
func (r *Request) URL() string            { return r.url }
func (r *Request) Content() Content       { return r.content }
func (r *Request) Headers() Params        { return r.headers }
func (r *Request) Timeout() time.Duration { return r.timeout }
