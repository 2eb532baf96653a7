package mitm

import (
	"bufio"
	"errors"
	"io"
	"net"
	"net/http"

	"github.com/blanktrace/blanktrace/internal/telemetry"
)

// handleNonConnect serves plain (non-TLS) proxy requests directly on
// the hijacked connection, so the same bounded-request-line and
// keep-alive handling applies whether or not the tunnel is encrypted.
func (e *Engine) handleNonConnect(conn net.Conn, first *http.Request, logger telemetry.Logger) {
	reader := bufio.NewReaderSize(conn, MaxRequestLineBytes)
	req := first
	for {
		fwd, err := forwardableRequest(req)
		if err != nil {
			logger.Error("failed to build forwarded request for %s: %v", req.Host, err)
			writeStatusLine(conn, http.StatusBadGateway, "Bad Gateway")
			return
		}

		resp, err := e.runChain(fwd, conn.RemoteAddr().String())
		if err != nil {
			logger.Error("request to %s failed: %v", req.Host, err)
			writeStatusLine(conn, http.StatusBadGateway, "Bad Gateway")
			return
		}

		keepAlive := !resp.Close && !req.Close
		if err := resp.Write(conn); err != nil {
			logger.Debug("failed to write response for %s: %v", req.Host, err)
			return
		}
		resp.Body.Close()

		if !keepAlive {
			return
		}

		req, err = e.readNext(conn, reader, logger)
		if err != nil {
			return
		}
	}
}

// readNext reads the next pipelined request off reader, which wraps
// conn and is reused across the connection's lifetime so that bytes
// buffered past one request's end (the start of the next, pipelined
// request) aren't discarded between reads.
func (e *Engine) readNext(conn net.Conn, reader *bufio.Reader, logger telemetry.Logger) (*http.Request, error) {
	req, err := http.ReadRequest(reader)
	if err != nil {
		if errors.Is(err, bufio.ErrBufferFull) {
			writeStatusLine(conn, http.StatusBadRequest, "Request Line Too Long")
		} else if !errors.Is(err, io.EOF) {
			logger.Debug("failed to read next request: %v", err)
		}
		return nil, err
	}
	return req, nil
}

// forwardableRequest rebuilds req into one http.Client.Do will accept.
// A request read by http.ReadRequest (or handed to ServeHTTP by the
// http.Server for a plain proxy request) has RequestURI set, which
// net/http's client rejects outright; http.NewRequest leaves it unset.
func forwardableRequest(req *http.Request) (*http.Request, error) {
	fwd, err := http.NewRequest(req.Method, req.URL.String(), req.Body)
	if err != nil {
		return nil, err
	}
	fwd.Header = req.Header
	return fwd.WithContext(req.Context()), nil
}
