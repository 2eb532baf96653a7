package store

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/blanktrace/blanktrace/internal/telemetry"
)

// DefaultBatchInterval is how often buffered events are flushed to
// SQLite even if the batch hasn't filled up.
const DefaultBatchInterval = 200 * time.Millisecond

// DefaultBatchSize caps how many events accumulate before a flush is
// forced regardless of the timer.
const DefaultBatchSize = 200

type eventKind int

const (
	eventCookie eventKind = iota
	eventFingerprint
	eventRequest
)

type event struct {
	kind eventKind

	domain  string
	cookie  string
	blocked bool

	userAgent      string
	acceptLanguage string
	mode           string

	path     string
	clientIP string
}

// Sink is a bounded, asynchronous audit log writer. Producers call its
// Record* methods from request-handling goroutines; a single background
// goroutine batches events and commits them to the Store. When the
// buffer is full, the oldest queued event is dropped rather than
// blocking the caller — a lost audit row is preferable to stalling the
// proxy's hot path.
type Sink struct {
	store  *Store
	logger telemetry.Logger

	events chan event
	done   chan struct{}

	batchSize     int
	batchInterval time.Duration

	dropped int64
}

// NewSink creates a Sink backed by store with a channel buffer of
// capacity bufferSize (DefaultBatchSize*4 if bufferSize <= 0).
func NewSink(store *Store, bufferSize int, logger telemetry.Logger) *Sink {
	if bufferSize <= 0 {
		bufferSize = DefaultBatchSize * 4
	}
	if logger == nil {
		logger = telemetry.Noop()
	}
	return &Sink{
		store:         store,
		logger:        logger,
		events:        make(chan event, bufferSize),
		done:          make(chan struct{}),
		batchSize:     DefaultBatchSize,
		batchInterval: DefaultBatchInterval,
	}
}

// RecordCookie enqueues a cookie strip/log event. Satisfies
// rewrite.CookieEventSink.
func (s *Sink) RecordCookie(domain, cookie string, blocked bool) {
	s.enqueue(event{kind: eventCookie, domain: domain, cookie: cookie, blocked: blocked})
}

// RecordFingerprint enqueues a fingerprint rotation event. Satisfies
// rewrite.FingerprintEventSink.
func (s *Sink) RecordFingerprint(userAgent, acceptLanguage, mode string) {
	s.enqueue(event{kind: eventFingerprint, userAgent: userAgent, acceptLanguage: acceptLanguage, mode: mode})
}

// RecordRequest enqueues a proxied-request audit event.
func (s *Sink) RecordRequest(domain, path, userAgent, clientIP string) {
	s.enqueue(event{kind: eventRequest, domain: domain, path: path, userAgent: userAgent, clientIP: clientIP})
}

func (s *Sink) enqueue(e event) {
	select {
	case s.events <- e:
	default:
		select {
		case <-s.events:
			atomic.AddInt64(&s.dropped, 1)
		default:
		}
		select {
		case s.events <- e:
		default:
			atomic.AddInt64(&s.dropped, 1)
		}
	}
}

// Dropped returns the number of events discarded so far because the
// buffer was full.
func (s *Sink) Dropped() int64 {
	return atomic.LoadInt64(&s.dropped)
}

// Run drains events into batched commits until ctx is canceled, then
// flushes whatever remains and returns.
func (s *Sink) Run(ctx context.Context) {
	ticker := time.NewTicker(s.batchInterval)
	defer ticker.Stop()
	defer close(s.done)

	batch := make([]event, 0, s.batchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		s.commit(batch)
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			s.drainRemaining(&batch)
			flush()
			return
		case e := <-s.events:
			batch = append(batch, e)
			if len(batch) >= s.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

// drainRemaining pulls any events still sitting in the channel without
// blocking, so a shutdown flush doesn't lose events queued just before
// cancellation.
func (s *Sink) drainRemaining(batch *[]event) {
	for {
		select {
		case e := <-s.events:
			*batch = append(*batch, e)
		default:
			return
		}
	}
}

func (s *Sink) commit(batch []event) {
	ctx := context.Background()
	for _, e := range batch {
		var err error
		switch e.kind {
		case eventCookie:
			err = s.store.InsertCookieEvent(ctx, e.domain, e.cookie, e.blocked)
		case eventFingerprint:
			err = s.store.InsertFingerprintEvent(ctx, e.userAgent, e.acceptLanguage, e.mode)
		case eventRequest:
			err = s.store.InsertRequestLog(ctx, e.domain, e.path, e.userAgent, e.clientIP)
		}
		if err != nil {
			s.logger.Warn("audit log write failed: %v", err)
		}
	}
}

// Wait blocks until Run has returned after its context was canceled.
func (s *Sink) Wait() {
	<-s.done
}
