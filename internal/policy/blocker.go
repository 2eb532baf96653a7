// Package policy implements the domain-blocking, whitelist, and
// fingerprint-rotation decisions the proxy makes for every request,
// independent of how those decisions get applied to the wire.
package policy

import (
	"context"
	"regexp"

	"github.com/blanktrace/blanktrace/internal/telemetry"
)

// TrackerStore is the persistence surface Blocker needs. It is satisfied
// by the audit store so that hit counts and manual blocks survive
// restarts.
type TrackerStore interface {
	IncrementTracker(ctx context.Context, host, category string) (hitCount int64, blocked bool, err error)
	SetBlocked(ctx context.Context, host string, blocked bool) error
	IsBlocked(ctx context.Context, host string) (bool, error)
}

// Blocker decides whether a request to a given host should be blocked,
// tracking hit counts for hosts that match a block pattern and promoting
// them to a hard block once they cross the configured threshold.
type Blocker struct {
	patterns  []*regexp.Regexp
	store     TrackerStore
	whitelist *WhitelistCache
	logger    telemetry.Logger

	autoBlock          bool
	autoBlockThreshold uint64
}

// NewBlocker builds a Blocker from compiled block patterns.
func NewBlocker(patterns []*regexp.Regexp, autoBlock bool, autoBlockThreshold uint64, store TrackerStore, whitelist *WhitelistCache, logger telemetry.Logger) *Blocker {
	if logger == nil {
		logger = telemetry.Noop()
	}
	return &Blocker{
		patterns:           patterns,
		store:              store,
		whitelist:          whitelist,
		logger:             logger,
		autoBlock:          autoBlock,
		autoBlockThreshold: autoBlockThreshold,
	}
}

// CheckAndTrack reports whether a request to host should be blocked. A
// whitelisted host always passes, regardless of pattern matches. A host
// that matches a block pattern is tracked in the store; once its hit
// count reaches the auto-block threshold (and auto-blocking is enabled)
// it is promoted to a persistent block. A host that never matches a
// pattern skips tracking, but is still checked against the store's
// persisted blocked flag, so a manual block (the `block` CLI
// subcommand) takes effect even for hosts no regex ever flags.
func (b *Blocker) CheckAndTrack(ctx context.Context, host string) (bool, error) {
	if b.whitelist != nil {
		whitelisted, err := b.whitelist.Contains(ctx, host)
		if err != nil {
			b.logger.Warn("whitelist lookup failed for %s: %v", host, err)
		} else if whitelisted {
			return false, nil
		}
	}

	if !b.matches(host) {
		blocked, err := b.store.IsBlocked(ctx, host)
		if err != nil {
			b.logger.Warn("blocked-status lookup failed for %s: %v", host, err)
			return false, err
		}
		return blocked, nil
	}

	hitCount, blocked, err := b.store.IncrementTracker(ctx, host, "regex_match")
	if err != nil {
		// If tracking fails we still know the host matched a block
		// pattern, so fail closed.
		return true, err
	}

	// The request that crosses the threshold is still forwarded: blocked
	// reflects the state *before* this hit, so auto-block takes effect
	// starting with the next request to this host, not this one.
	if !blocked && b.autoBlock && uint64(hitCount) >= b.autoBlockThreshold {
		if err := b.store.SetBlocked(ctx, host, true); err != nil {
			b.logger.Warn("failed to persist auto-block for %s: %v", host, err)
		}
	}

	return blocked, nil
}

func (b *Blocker) matches(host string) bool {
	for _, p := range b.patterns {
		if p.MatchString(host) {
			return true
		}
	}
	return false
}
