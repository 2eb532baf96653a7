package mitm

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/blanktrace/blanktrace/internal/rewrite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubClient struct {
	resp *http.Response
	err  error
	seen *http.Request
}

func (s *stubClient) Do(req *http.Request) (*http.Response, error) {
	s.seen = req
	if s.err != nil {
		return nil, s.err
	}
	return s.resp, nil
}

func newOKResponse(body string) *http.Response {
	rec := httptest.NewRecorder()
	rec.WriteHeader(http.StatusOK)
	rec.WriteString(body)
	return rec.Result()
}

func TestEngine_RunChain_ForwardsToClientWhenNotShortCircuited(t *testing.T) {
	t.Parallel()
	client := &stubClient{resp: newOKResponse("hello")}
	chain := rewrite.NewChain()
	engine := NewEngine(nil, chain, client, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "http://example.com/", nil)
	resp, err := engine.runChain(req, "203.0.113.1:54321")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotNil(t, client.seen)
}

type recordedRequestLog struct {
	domain, path, userAgent, clientIP string
}

type fakeRequestSink struct {
	calls []recordedRequestLog
}

func (f *fakeRequestSink) RecordRequest(domain, path, userAgent, clientIP string) {
	f.calls = append(f.calls, recordedRequestLog{domain, path, userAgent, clientIP})
}

func TestEngine_RunChain_LogsForwardedRequest(t *testing.T) {
	t.Parallel()
	client := &stubClient{resp: newOKResponse("hello")}
	chain := rewrite.NewChain()
	sink := &fakeRequestSink{}
	engine := NewEngine(nil, chain, client, sink, nil)

	req := httptest.NewRequest(http.MethodGet, "http://example.com/page", nil)
	req.Header.Set("User-Agent", "probe/1.0")
	_, err := engine.runChain(req, "203.0.113.1:54321")
	require.NoError(t, err)

	require.Len(t, sink.calls, 1)
	assert.Equal(t, "example.com", sink.calls[0].domain)
	assert.Equal(t, "/page", sink.calls[0].path)
	assert.Equal(t, "probe/1.0", sink.calls[0].userAgent)
	assert.Equal(t, "203.0.113.1:54321", sink.calls[0].clientIP)
}

func TestEngine_RunChain_LogsShortCircuitedRequest(t *testing.T) {
	t.Parallel()
	client := &stubClient{resp: newOKResponse("should not be used")}
	chain := rewrite.NewChain(&shortCircuitRewriter{resp: newOKResponse("blocked")})
	sink := &fakeRequestSink{}
	engine := NewEngine(nil, chain, client, sink, nil)

	req := httptest.NewRequest(http.MethodGet, "http://blocked.example/", nil)
	_, err := engine.runChain(req, "203.0.113.1:54321")
	require.NoError(t, err)

	require.Len(t, sink.calls, 1)
	assert.Equal(t, "blocked.example", sink.calls[0].domain)
}

type shortCircuitRewriter struct {
	resp *http.Response
}

func (s *shortCircuitRewriter) ProcessRequest(req *http.Request) (*http.Request, *http.Response, error) {
	return req, s.resp, nil
}

func (s *shortCircuitRewriter) ProcessResponse(resp *http.Response, _ *http.Request) (*http.Response, error) {
	return resp, nil
}

func TestEngine_RunChain_SkipsClientWhenShortCircuited(t *testing.T) {
	t.Parallel()
	client := &stubClient{resp: newOKResponse("should not be used")}
	chain := rewrite.NewChain(&shortCircuitRewriter{resp: newOKResponse("blocked")})
	engine := NewEngine(nil, chain, client, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "http://blocked.example/", nil)
	resp, err := engine.runChain(req, "203.0.113.1:54321")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Nil(t, client.seen)
}

func TestStripPort(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "example.com", stripPort("example.com:443"))
	assert.Equal(t, "example.com", stripPort("example.com"))
}

type fakeLeafSource struct {
	cert *tls.Certificate
	err  error
}

func (f *fakeLeafSource) Get(_ string) (*tls.Certificate, error) {
	return f.cert, f.err
}

func TestHijack_FailsWithoutHijackerSupport(t *testing.T) {
	t.Parallel()
	rec := httptest.NewRecorder()
	_, err := hijack(rec)
	assert.Error(t, err)
}

func TestEngine_ServeHTTP_RespondsInternalErrorWithoutHijacker(t *testing.T) {
	t.Parallel()
	engine := NewEngine(&fakeLeafSource{}, rewrite.NewChain(), &stubClient{}, nil, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "http://example.com/", nil)
	req.URL = &url.URL{Scheme: "http", Host: "example.com", Path: "/"}
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
