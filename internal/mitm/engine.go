// Package mitm terminates intercepted CONNECT tunnels, runs the
// configured rewrite chain over every request/response pair, and
// forwards the result to the origin server.
package mitm

import (
	"crypto/tls"
	"net/http"

	"github.com/google/uuid"

	"github.com/blanktrace/blanktrace/internal/rewrite"
	"github.com/blanktrace/blanktrace/internal/telemetry"
)

// MaxRequestLineBytes bounds the buffer used to read a request's start
// line, both for the initial proxy request and for every request read
// off a persistent tunnel. A client sending a longer line gets a 400
// instead of tying up a buffer of unbounded size.
const MaxRequestLineBytes = 16 * 1024

// HTTPClient is the subset of *http.Client the engine needs to reach
// origin servers.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// RequestLogSink records a single proxied request for the audit log,
// once per request regardless of whether it was forwarded or blocked.
type RequestLogSink interface {
	RecordRequest(domain, path, userAgent, clientIP string)
}

var _ http.Handler = (*Engine)(nil)

// Engine is the proxy's http.Handler: it dispatches CONNECT requests to
// the TLS-terminating tunnel handler, and plain requests to the direct
// forwarder, running the rewrite chain over both.
type Engine struct {
	leaves      LeafSource
	chain       *rewrite.Chain
	client      HTTPClient
	requestSink RequestLogSink
	logger      telemetry.Logger
}

// LeafSource mints or retrieves a TLS certificate to present for host.
type LeafSource interface {
	Get(host string) (*tls.Certificate, error)
}

// NewEngine builds an Engine. client defaults to &http.Client{} if nil.
// requestSink may be nil, in which case requests simply aren't logged.
func NewEngine(leaves LeafSource, chain *rewrite.Chain, client HTTPClient, requestSink RequestLogSink, logger telemetry.Logger) *Engine {
	if client == nil {
		client = &http.Client{}
	}
	if logger == nil {
		logger = telemetry.Noop()
	}
	return &Engine{leaves: leaves, chain: chain, client: client, requestSink: requestSink, logger: logger}
}

// ServeHTTP hijacks the underlying connection for every request — both
// CONNECT tunnels and plain proxy requests are handled on the raw
// connection so the engine controls framing and keep-alive itself.
func (e *Engine) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := hijack(w)
	if err != nil {
		e.logger.Error("hijack failed: %v", err)
		http.Error(w, "hijack failed", http.StatusInternalServerError)
		return
	}
	defer conn.Close()

	connLogger := e.logger.WithField("conn_id", uuid.NewString())

	if r.Method == http.MethodConnect {
		e.handleConnect(conn, r, connLogger)
		return
	}
	e.handleNonConnect(conn, r, connLogger)
}
