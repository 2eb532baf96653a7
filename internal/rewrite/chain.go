// Package rewrite applies the proxy's privacy transforms — domain
// blocking, cookie stripping, fingerprint randomization — to requests
// and responses as they pass through the engine.
package rewrite

import (
	"net/http"
)

// Rewriter processes a single request/response pair. ProcessRequest may
// short-circuit the chain by returning a non-nil response, in which case
// the engine never contacts the origin server and instead runs that
// response back through the chain's ProcessResponse phase.
// ProcessResponse runs for every rewriter in reverse chain order,
// regardless of whether the request phase short-circuited.
type Rewriter interface {
	ProcessRequest(req *http.Request) (out *http.Request, short *http.Response, err error)
	ProcessResponse(resp *http.Response, req *http.Request) (*http.Response, error)
}

// Chain runs an ordered list of Rewriters over a request/response pair.
type Chain struct {
	rewriters []Rewriter
}

// NewChain builds a Chain that runs rewriters in the given order for
// requests, and in reverse order for responses, so that the rewriter
// which saw the request last is the first to see its response.
func NewChain(rewriters ...Rewriter) *Chain {
	return &Chain{rewriters: rewriters}
}

// ProcessRequest runs every rewriter's ProcessRequest in order, stopping
// early if one returns a non-nil response or an error.
func (c *Chain) ProcessRequest(req *http.Request) (*http.Request, *http.Response, error) {
	for _, rw := range c.rewriters {
		out, short, err := rw.ProcessRequest(req)
		if err != nil {
			return req, nil, err
		}
		req = out
		if short != nil {
			return req, short, nil
		}
	}
	return req, nil, nil
}

// ProcessResponse runs every rewriter's ProcessResponse in reverse
// chain order.
func (c *Chain) ProcessResponse(resp *http.Response, req *http.Request) (*http.Response, error) {
	for i := len(c.rewriters) - 1; i >= 0; i-- {
		out, err := c.rewriters[i].ProcessResponse(resp, req)
		if err != nil {
			return resp, err
		}
		resp = out
	}
	return resp, nil
}
