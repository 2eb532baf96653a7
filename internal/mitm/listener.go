package mitm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/blanktrace/blanktrace/internal/errs"
	"github.com/blanktrace/blanktrace/internal/telemetry"
)

// ShutdownGrace bounds how long Listener.Shutdown waits for the
// http.Server to stop. Proxied connections are hijacked by the Engine,
// and http.Server neither waits for nor closes hijacked connections, so
// in-flight tunnels are not drained within this bound.
const ShutdownGrace = 5 * time.Second

// Listener binds the proxy's single listening port. Browsers configured
// to use this proxy connect here for both HTTP and HTTPS (via CONNECT)
// traffic — there is deliberately only one port, matching how a real
// system proxy setting is configured.
type Listener struct {
	server *http.Server
	logger telemetry.Logger
}

// NewListener binds addr (typically 127.0.0.1:<port>) with engine as
// the handler. Binding happens in Serve, not here, so construction
// never fails.
func NewListener(addr string, engine *Engine, logger telemetry.Logger) *Listener {
	if logger == nil {
		logger = telemetry.Noop()
	}
	return &Listener{
		server: &http.Server{
			Addr:    addr,
			Handler: engine,
		},
		logger: logger,
	}
}

// Serve blocks until the listener is shut down or fails to bind.
func (l *Listener) Serve() error {
	l.logger.Info("listening on %s", l.server.Addr)
	if err := l.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errs.New(errs.ErrStartupIO, "listen", fmt.Sprintf("bind %s", l.server.Addr), err)
	}
	return nil
}

// Shutdown stops accepting new connections, waiting up to ShutdownGrace
// for connections the http.Server still owns. Connections already
// hijacked by the Engine (every CONNECT tunnel and plain proxy request)
// are neither waited for nor closed.
func (l *Listener) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), ShutdownGrace)
	defer cancel()
	return l.server.Shutdown(ctx)
}
