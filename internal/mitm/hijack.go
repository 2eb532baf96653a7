package mitm

import (
	"net"
	"net/http"

	"github.com/blanktrace/blanktrace/internal/errs"
)

func hijack(w http.ResponseWriter) (net.Conn, error) {
	hijacker, ok := w.(http.Hijacker)
	if !ok {
		return nil, errs.New(errs.ErrHijack, "hijack", "response writer does not support hijacking", nil)
	}
	conn, _, err := hijacker.Hijack()
	if err != nil {
		return nil, errs.New(errs.ErrHijack, "hijack", "", err)
	}
	return conn, nil
}
