package mitm

import (
	"bufio"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"

	"github.com/blanktrace/blanktrace/internal/errs"
	"github.com/blanktrace/blanktrace/internal/telemetry"
)

var connectionEstablished = []byte("HTTP/1.1 200 Connection established\r\n\r\n")

// handleConnect terminates TLS twice: once toward the client, using a
// leaf certificate signed by the local authority for the tunnel's
// target host, and once toward the origin (via e.client, which verifies
// the origin's real certificate normally). Every request read off the
// tunnel runs through the rewrite chain before being forwarded.
func (e *Engine) handleConnect(conn net.Conn, r *http.Request, logger telemetry.Logger) {
	host := r.URL.Hostname()
	if host == "" {
		host = stripPort(r.Host)
	}
	logger = logger.WithField("host", host)

	if _, err := conn.Write(connectionEstablished); err != nil {
		logger.Error("failed to write connection established: %v", err)
		return
	}

	leaf, err := e.leaves.Get(host)
	if err != nil {
		logger.Error("failed to mint leaf certificate: %v", err)
		return
	}

	tlsConn := tls.Server(conn, &tls.Config{Certificates: []tls.Certificate{*leaf}})
	defer tlsConn.Close()
	if err := tlsConn.Handshake(); err != nil {
		logger.Debug("TLS handshake with client failed: %v", err)
		return
	}

	e.serveTunnel(tlsConn, host, r, logger)
}

// serveTunnel reads successive HTTP/1.1 requests off conn until the
// client closes the connection, an oversized request line arrives, or a
// request asks to close the connection.
func (e *Engine) serveTunnel(conn net.Conn, host string, outer *http.Request, logger telemetry.Logger) {
	reader := bufio.NewReaderSize(conn, MaxRequestLineBytes)

	for {
		req, err := http.ReadRequest(reader)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			if errors.Is(err, bufio.ErrBufferFull) {
				writeStatusLine(conn, http.StatusBadRequest, "Request Line Too Long")
				return
			}
			logger.Debug("tunnel ended: %v", err)
			return
		}

		forwardURL := "https://" + outer.Host + req.RequestURI
		fwd, err := http.NewRequest(req.Method, forwardURL, req.Body)
		if err != nil {
			logger.Error("failed to build forwarded request: %v", err)
			writeStatusLine(conn, http.StatusBadGateway, "Bad Gateway")
			return
		}
		fwd.Header = req.Header
		fwd = fwd.WithContext(outer.Context())

		resp, err := e.runChain(fwd, conn.RemoteAddr().String())
		if err != nil {
			logger.Error("request failed: %v", err)
			writeStatusLine(conn, http.StatusBadGateway, "Bad Gateway")
			return
		}

		keepAlive := !resp.Close && !req.Close
		if err := resp.Write(conn); err != nil {
			logger.Debug("failed to write response to tunnel: %v", err)
			return
		}
		resp.Body.Close()

		if !keepAlive {
			return
		}
	}
}

// runChain executes the rewrite chain's request phase, forwards to the
// origin if not short-circuited, and then runs the response phase.
// Every request that reaches here is recorded to the audit log,
// whether it was forwarded to the origin or answered by a
// short-circuited response (e.g. a block).
func (e *Engine) runChain(req *http.Request, clientIP string) (*http.Response, error) {
	rewritten, short, err := e.chain.ProcessRequest(req)
	if err != nil {
		return nil, errs.New(errs.ErrCreateRequest, "process_request", "", err)
	}

	resp := short
	if resp == nil {
		resp, err = e.client.Do(rewritten)
		if err != nil {
			return nil, errs.New(errs.ErrSendRequest, "do_request", "", err)
		}
	}

	if e.requestSink != nil {
		e.requestSink.RecordRequest(rewritten.URL.Hostname(), rewritten.URL.Path, rewritten.Header.Get("User-Agent"), clientIP)
	}

	return e.chain.ProcessResponse(resp, rewritten)
}

func writeStatusLine(conn net.Conn, status int, reason string) {
	conn.Write([]byte("HTTP/1.1 " + strconv.Itoa(status) + " " + reason + "\r\n\r\n"))
}

func stripPort(hostport string) string {
	host, _, err := net.SplitHostPort(hostport)
	if err != nil {
		return hostport
	}
	return host
}
