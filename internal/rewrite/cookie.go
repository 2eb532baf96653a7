package rewrite

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/blanktrace/blanktrace/internal/telemetry"
)

// CookieEventSink records cookie strip/log events for the audit store.
type CookieEventSink interface {
	RecordCookie(domain, cookie string, blocked bool)
}

// CookieRewriter strips or logs Cookie / Set-Cookie headers according to
// an allow-list / block-list policy. The allow list always wins over
// both the block list and block_all; hosts are matched by suffix, so
// "example.com" also covers "www.example.com".
//
// A non-empty allow_list puts the policy into an allow-list regime:
// every host not in allow_list is stripped, regardless of block_all or
// block_list. With an empty allow_list, the policy is default-allow,
// and only block_all, block_list, or an auto-blocked tracker match
// causes stripping.
//
// When autoBlockTrackers is set, a host matching one of the blocking
// policy's tracker patterns is treated as cookie-block-worthy too, even
// if it appears in neither block_list nor block_all — unless it's also
// in allow_list, which still wins.
type CookieRewriter struct {
	blockAll          bool
	logAttempts       bool
	autoBlockTrackers bool
	allowList         []string
	blockList         []string
	trackerPatterns   []*regexp.Regexp
	sink              CookieEventSink
	logger            telemetry.Logger
}

// NewCookieRewriter builds a CookieRewriter from the cookie policy.
// trackerPatterns is the blocking policy's compiled pattern set, used
// only when autoBlockTrackers is true; it may be nil otherwise.
func NewCookieRewriter(blockAll, logAttempts, autoBlockTrackers bool, allowList, blockList []string, trackerPatterns []*regexp.Regexp, sink CookieEventSink, logger telemetry.Logger) *CookieRewriter {
	if logger == nil {
		logger = telemetry.Noop()
	}
	return &CookieRewriter{
		blockAll:          blockAll,
		logAttempts:       logAttempts,
		autoBlockTrackers: autoBlockTrackers,
		allowList:         allowList,
		blockList:         blockList,
		trackerPatterns:   trackerPatterns,
		sink:              sink,
		logger:            logger,
	}
}

// ProcessRequest strips the Cookie header from outgoing requests whose
// host is blocked, or logs it when log_attempts is set and no stripping
// occurred. The header is parsed into its individual name=value pairs
// so the audit log records one cookie_traffic row per pair, not one row
// for the whole header.
func (c *CookieRewriter) ProcessRequest(req *http.Request) (*http.Request, *http.Response, error) {
	host := req.URL.Hostname()
	if host == "" {
		host = req.Host
	}

	if c.anyHasSuffix(c.allowList, host) {
		return req, nil, nil
	}

	shouldBlock := len(c.allowList) > 0 || c.blockAll || c.anyHasSuffix(c.blockList, host) || c.isAutoBlockedTracker(host)

	header := req.Header.Get("Cookie")
	pairs := splitCookiePairs(header)
	if len(pairs) == 0 {
		return req, nil, nil
	}

	if shouldBlock {
		req.Header.Del("Cookie")
		for _, p := range pairs {
			c.record(host, p, true)
		}
	} else if c.logAttempts {
		for _, p := range pairs {
			c.record(host, p, false)
		}
	}

	return req, nil, nil
}

// ProcessResponse strips the Set-Cookie header from responses, using
// the same allow/block precedence as requests.
func (c *CookieRewriter) ProcessResponse(resp *http.Response, req *http.Request) (*http.Response, error) {
	host := ""
	if req != nil {
		host = req.URL.Hostname()
		if host == "" {
			host = req.Host
		}
	}

	if host != "" && c.anyHasSuffix(c.allowList, host) {
		return resp, nil
	}

	shouldBlock := len(c.allowList) > 0 || c.blockAll || (host != "" && (c.anyHasSuffix(c.blockList, host) || c.isAutoBlockedTracker(host)))

	cookie := resp.Header.Get("Set-Cookie")
	if cookie == "" {
		return resp, nil
	}

	if shouldBlock {
		resp.Header.Del("Set-Cookie")
		c.record(host, cookie, true)
	} else if c.logAttempts {
		c.record(host, cookie, false)
	}

	return resp, nil
}

func (c *CookieRewriter) record(host, cookie string, blocked bool) {
	if c.sink == nil {
		return
	}
	if host == "" {
		host = "unknown"
	}
	c.sink.RecordCookie(host, cookie, blocked)
}

// isAutoBlockedTracker reports whether host matches one of the blocking
// policy's tracker patterns, when auto_block_trackers is enabled.
func (c *CookieRewriter) isAutoBlockedTracker(host string) bool {
	if !c.autoBlockTrackers || host == "" {
		return false
	}
	for _, p := range c.trackerPatterns {
		if p.MatchString(host) {
			return true
		}
	}
	return false
}

func (c *CookieRewriter) anyHasSuffix(list []string, host string) bool {
	for _, d := range list {
		if strings.HasSuffix(host, d) {
			return true
		}
	}
	return false
}

// splitCookiePairs parses a Cookie header value ("a=1; b=2") into its
// individual name=value pairs, so each one can be audited separately.
func splitCookiePairs(header string) []string {
	if header == "" {
		return nil
	}
	parts := strings.Split(header, ";")
	pairs := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			pairs = append(pairs, p)
		}
	}
	return pairs
}
