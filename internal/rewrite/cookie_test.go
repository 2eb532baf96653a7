package rewrite

import (
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedCookieEvent struct {
	domain  string
	cookie  string
	blocked bool
}

type fakeCookieSink struct {
	events []recordedCookieEvent
}

func (f *fakeCookieSink) RecordCookie(domain, cookie string, blocked bool) {
	f.events = append(f.events, recordedCookieEvent{domain, cookie, blocked})
}

func TestCookieRewriter_BlockAllStripsRequestCookie(t *testing.T) {
	t.Parallel()
	sink := &fakeCookieSink{}
	rw := NewCookieRewriter(true, false, false, nil, nil, nil, sink, nil)

	req := httptest.NewRequest(http.MethodGet, "http://example.com/", nil)
	req.Header.Set("Cookie", "foo=bar")

	out, short, err := rw.ProcessRequest(req)
	require.NoError(t, err)
	require.Nil(t, short)
	assert.Empty(t, out.Header.Get("Cookie"))
	require.Len(t, sink.events, 1)
	assert.True(t, sink.events[0].blocked)
}

func TestCookieRewriter_BlockAllLogsEachPairSeparately(t *testing.T) {
	t.Parallel()
	sink := &fakeCookieSink{}
	rw := NewCookieRewriter(true, false, false, nil, nil, nil, sink, nil)

	req := httptest.NewRequest(http.MethodGet, "http://example.com/", nil)
	req.Header.Set("Cookie", "a=1; b=2")

	out, _, err := rw.ProcessRequest(req)
	require.NoError(t, err)
	assert.Empty(t, out.Header.Get("Cookie"))
	require.Len(t, sink.events, 2)
	assert.Equal(t, "a=1", sink.events[0].cookie)
	assert.True(t, sink.events[0].blocked)
	assert.Equal(t, "b=2", sink.events[1].cookie)
	assert.True(t, sink.events[1].blocked)
}

func TestCookieRewriter_AllowListOverridesBlockAll(t *testing.T) {
	t.Parallel()
	sink := &fakeCookieSink{}
	rw := NewCookieRewriter(true, false, false, []string{"trusted.com"}, nil, nil, sink, nil)

	req := httptest.NewRequest(http.MethodGet, "http://trusted.com/", nil)
	req.Header.Set("Cookie", "foo=bar")

	out, _, err := rw.ProcessRequest(req)
	require.NoError(t, err)
	assert.Equal(t, "foo=bar", out.Header.Get("Cookie"))
	assert.Empty(t, sink.events)
}

func TestCookieRewriter_AllowListRegimeStripsHostsNotListed(t *testing.T) {
	t.Parallel()
	sink := &fakeCookieSink{}
	rw := NewCookieRewriter(false, false, false, []string{"github.test"}, nil, nil, sink, nil)

	req := httptest.NewRequest(http.MethodGet, "http://other.test/", nil)
	req.Header.Set("Cookie", "session=abc")

	out, _, err := rw.ProcessRequest(req)
	require.NoError(t, err)
	assert.Empty(t, out.Header.Get("Cookie"))
	require.Len(t, sink.events, 1)
	assert.True(t, sink.events[0].blocked)
}

func TestCookieRewriter_AllowListRegimeStripsResponseForHostsNotListed(t *testing.T) {
	t.Parallel()
	sink := &fakeCookieSink{}
	rw := NewCookieRewriter(false, false, false, []string{"github.test"}, nil, nil, sink, nil)

	req := httptest.NewRequest(http.MethodGet, "http://other.test/", nil)
	resp := &http.Response{Header: http.Header{}}
	resp.Header.Set("Set-Cookie", "sess=1")

	out, err := rw.ProcessResponse(resp, req)
	require.NoError(t, err)
	assert.Empty(t, out.Header.Get("Set-Cookie"))
}

func TestCookieRewriter_BlockListOverridesDefaultAllow(t *testing.T) {
	t.Parallel()
	sink := &fakeCookieSink{}
	rw := NewCookieRewriter(false, false, false, nil, []string{"evil.com"}, nil, sink, nil)

	req := httptest.NewRequest(http.MethodGet, "http://evil.com/", nil)
	req.Header.Set("Cookie", "foo=bar")

	out, _, err := rw.ProcessRequest(req)
	require.NoError(t, err)
	assert.Empty(t, out.Header.Get("Cookie"))
	require.Len(t, sink.events, 1)
}

func TestCookieRewriter_LogsAttemptsWithoutStripping(t *testing.T) {
	t.Parallel()
	sink := &fakeCookieSink{}
	rw := NewCookieRewriter(false, true, false, nil, nil, nil, sink, nil)

	req := httptest.NewRequest(http.MethodGet, "http://example.com/", nil)
	req.Header.Set("Cookie", "foo=bar")

	out, _, err := rw.ProcessRequest(req)
	require.NoError(t, err)
	assert.Equal(t, "foo=bar", out.Header.Get("Cookie"))
	require.Len(t, sink.events, 1)
	assert.False(t, sink.events[0].blocked)
}

func TestCookieRewriter_AutoBlockTrackersStripsMatchingHost(t *testing.T) {
	t.Parallel()
	sink := &fakeCookieSink{}
	patterns := []*regexp.Regexp{regexp.MustCompile(`tracker\.example`)}
	rw := NewCookieRewriter(false, false, true, nil, nil, patterns, sink, nil)

	req := httptest.NewRequest(http.MethodGet, "http://ads.tracker.example/", nil)
	req.Header.Set("Cookie", "foo=bar")

	out, _, err := rw.ProcessRequest(req)
	require.NoError(t, err)
	assert.Empty(t, out.Header.Get("Cookie"))
	require.Len(t, sink.events, 1)
	assert.True(t, sink.events[0].blocked)
}

func TestCookieRewriter_AllowListOverridesAutoBlockTrackers(t *testing.T) {
	t.Parallel()
	sink := &fakeCookieSink{}
	patterns := []*regexp.Regexp{regexp.MustCompile(`tracker\.example`)}
	rw := NewCookieRewriter(false, false, true, []string{"tracker.example"}, nil, patterns, sink, nil)

	req := httptest.NewRequest(http.MethodGet, "http://ads.tracker.example/", nil)
	req.Header.Set("Cookie", "foo=bar")

	out, _, err := rw.ProcessRequest(req)
	require.NoError(t, err)
	assert.Equal(t, "foo=bar", out.Header.Get("Cookie"))
	assert.Empty(t, sink.events)
}

func TestCookieRewriter_StripsResponseSetCookie(t *testing.T) {
	t.Parallel()
	sink := &fakeCookieSink{}
	rw := NewCookieRewriter(true, false, false, nil, nil, nil, sink, nil)

	req := httptest.NewRequest(http.MethodGet, "http://example.com/", nil)
	resp := &http.Response{Header: http.Header{}}
	resp.Header.Set("Set-Cookie", "sess=1")

	out, err := rw.ProcessResponse(resp, req)
	require.NoError(t, err)
	assert.Empty(t, out.Header.Get("Set-Cookie"))
}
