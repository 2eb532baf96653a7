package rewrite

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/blanktrace/blanktrace/internal/telemetry"
)

const blockedResponseBody = "Blocked by BlankTrace"

// Blocker is the subset of policy.Blocker that BlockRewriter needs.
type Blocker interface {
	CheckAndTrack(ctx context.Context, host string) (bool, error)
}

// BlockRewriter refuses requests to hosts a Blocker has flagged,
// answering with a synthetic 403 instead of reaching the origin.
type BlockRewriter struct {
	blocker Blocker
	logger  telemetry.Logger
}

// NewBlockRewriter builds a BlockRewriter backed by blocker.
func NewBlockRewriter(blocker Blocker, logger telemetry.Logger) *BlockRewriter {
	if logger == nil {
		logger = telemetry.Noop()
	}
	return &BlockRewriter{blocker: blocker, logger: logger}
}

// ProcessRequest blocks the request with a 403 if its host matches a
// block rule.
func (b *BlockRewriter) ProcessRequest(req *http.Request) (*http.Request, *http.Response, error) {
	host := req.URL.Hostname()
	if host == "" {
		host = req.Host
	}

	blocked, err := b.blocker.CheckAndTrack(req.Context(), host)
	if err != nil {
		b.logger.Warn("block check failed for %s: %v", host, err)
	}
	if !blocked {
		return req, nil, nil
	}

	b.logger.Info("blocking request to %s", host)
	return req, blockResponse(req), nil
}

// ProcessResponse is a no-op; blocking only happens on the request side.
func (b *BlockRewriter) ProcessResponse(resp *http.Response, _ *http.Request) (*http.Response, error) {
	return resp, nil
}

func blockResponse(req *http.Request) *http.Response {
	resp := &http.Response{
		StatusCode: http.StatusForbidden,
		Status:     "403 Forbidden",
		Proto:      "HTTP/1.1",
		ProtoMajor: 1,
		ProtoMinor: 1,
		Header:     make(http.Header),
		Body:       io.NopCloser(strings.NewReader(blockedResponseBody)),
		Request:    req,
	}
	resp.Header.Set("Content-Type", "text/plain; charset=utf-8")
	resp.Header.Set("Content-Length", strconv.Itoa(len(blockedResponseBody)))
	return resp
}
