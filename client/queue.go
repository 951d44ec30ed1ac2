package client

import (
	"sync"

	"async-http/lib/ds/queue"
)

// requestQueue is the FIFO between Submit and the loop thread. The mutex
// guards only the enqueue/drain boundary; no request re-enters the queue
// after being drained.
type requestQueue struct {
	mu sync.Mutex
	q  *queue.NaiveQueue[*Request]
}

func newRequestQueue() *requestQueue {
	return &requestQueue{q: queue.NewNaive[*Request](0)}
}

func (rq *requestQueue) enqueue(r *Request) {
	rq.mu.Lock()
	defer rq.mu.Unlock()

	rq.q.Enqueue(r)
}

// drain removes and returns at most limit requests, in submission order.
func (rq *requestQueue) drain(limit uint) []*Request {
	rq.mu.Lock()
	defer rq.mu.Unlock()

	n := min(limit, rq.q.Len())
	if n == 0 {
		return nil
	}

	out := make([]*Request, 0, n)
	for i := uint(0); i < n; i++ {
		req, _ := rq.q.Dequeue()
		out = append(out, req)
	}

	return out
}

func (rq *requestQueue) len() uint {
	rq.mu.Lock()
	defer rq.mu.Unlock()

	return rq.q.Len()
}
