package rewrite

import (
	"net/http"

	"github.com/blanktrace/blanktrace/internal/policy"
	"github.com/blanktrace/blanktrace/internal/telemetry"
)

// FingerprintEventSink records fingerprint rotation events for the
// audit store.
type FingerprintEventSink interface {
	RecordFingerprint(userAgent, acceptLanguage, mode string)
}

// FingerprintSource supplies the fingerprint to apply to the next
// request, rotating it first if due.
type FingerprintSource interface {
	Current() policy.Snapshot
}

// FingerprintRewriter rewrites the User-Agent and Accept-Language
// headers on outgoing requests, and strips Referer, per the current
// fingerprint state.
type FingerprintRewriter struct {
	source FingerprintSource
	sink   FingerprintEventSink
	logger telemetry.Logger
}

// NewFingerprintRewriter builds a FingerprintRewriter drawing
// fingerprints from source.
func NewFingerprintRewriter(source FingerprintSource, sink FingerprintEventSink, logger telemetry.Logger) *FingerprintRewriter {
	if logger == nil {
		logger = telemetry.Noop()
	}
	return &FingerprintRewriter{source: source, sink: sink, logger: logger}
}

// ProcessRequest applies the current fingerprint to req.
func (f *FingerprintRewriter) ProcessRequest(req *http.Request) (*http.Request, *http.Response, error) {
	snap := f.source.Current()

	if snap.RandomizeUserAgent && snap.UserAgent != "" {
		req.Header.Set("User-Agent", snap.UserAgent)
	}
	if snap.RandomizeAcceptLanguage && snap.AcceptLanguage != "" {
		req.Header.Set("Accept-Language", snap.AcceptLanguage)
	}
	if snap.StripReferer {
		req.Header.Del("Referer")
	}

	if snap.Rotated && f.sink != nil {
		f.sink.RecordFingerprint(snap.UserAgent, snap.AcceptLanguage, string(snap.Mode))
	}

	return req, nil, nil
}

// ProcessResponse is a no-op; fingerprinting only affects outgoing
// requests.
func (f *FingerprintRewriter) ProcessResponse(resp *http.Response, _ *http.Request) (*http.Response, error) {
	return resp, nil
}
