package audit

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"trustcore/internal/platform/metrics"
)

// ErrRecorderClosed is returned by Append after Close.
var ErrRecorderClosed = errors.New("audit recorder closed")

const (
	defaultAppendBuffer = 256
	defaultStoreTimeout = 5 * time.Second
)

// Recorder owns the hash chain. All appends funnel through one writer
// goroutine, so "exactly one writer" is structural rather than a locking
// convention: the previous-hash an entry chains to is never ambiguous, even
// under concurrent callers. Append replies synchronously so callers learn
// the assigned sequence id and get back-pressure when the store is slow.
type Recorder struct {
	store        Store
	logger       *slog.Logger
	metrics      *metrics.Metrics
	storeTimeout time.Duration

	requests chan appendRequest
	wg       sync.WaitGroup

	// mu orders submissions against Close: a request is either enqueued
	// before the closing flag flips, and then drained, or rejected.
	mu        sync.RWMutex
	closing   bool
	closeOnce sync.Once
	closed    chan struct{}

	// Writer-goroutine state. Loaded from the store head on the first
	// append, then maintained locally.
	initialized bool
	nextSeq     int64
	prevHash    string
}

type appendRequest struct {
	ctx   context.Context
	draft Draft
	reply chan appendReply
}

type appendReply struct {
	seq int64
	err error
}

// RecorderOption configures the Recorder.
type RecorderOption func(*Recorder)

// WithRecorderLogger sets a logger for append failures.
func WithRecorderLogger(logger *slog.Logger) RecorderOption {
	return func(r *Recorder) {
		r.logger = logger
	}
}

// WithRecorderMetrics counts appends and append failures.
func WithRecorderMetrics(m *metrics.Metrics) RecorderOption {
	return func(r *Recorder) {
		r.metrics = m
	}
}

// WithAppendBuffer overrides the request channel capacity when positive.
func WithAppendBuffer(size int) RecorderOption {
	return func(r *Recorder) {
		if size > 0 {
			r.requests = make(chan appendRequest, size)
		}
	}
}

// WithStoreTimeout bounds each store write made by the writer goroutine.
func WithStoreTimeout(d time.Duration) RecorderOption {
	return func(r *Recorder) {
		if d > 0 {
			r.storeTimeout = d
		}
	}
}

// NewRecorder constructs a Recorder and starts its writer goroutine.
func NewRecorder(store Store, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		store:        store,
		requests:     make(chan appendRequest, defaultAppendBuffer),
		closed:       make(chan struct{}),
		storeTimeout: defaultStoreTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	r.wg.Add(1)
	go r.run()
	return r
}

// Append records one entry and returns its assigned sequence id. It blocks
// until the entry is durably persisted or the context is done. A store
// failure does not roll back the operation being audited; the caller decides
// whether to surface or log it.
func (r *Recorder) Append(ctx context.Context, draft Draft) (int64, error) {
	req := appendRequest{ctx: ctx, draft: draft, reply: make(chan appendReply, 1)}

	r.mu.RLock()
	if r.closing {
		r.mu.RUnlock()
		return 0, ErrRecorderClosed
	}
	select {
	case r.requests <- req:
		r.mu.RUnlock()
	case <-ctx.Done():
		r.mu.RUnlock()
		return 0, ctx.Err()
	}

	select {
	case rep := <-req.reply:
		return rep.seq, rep.err
	case <-ctx.Done():
		// The writer may still persist the entry; the caller only loses
		// the sequence id, not the durability.
		return 0, ctx.Err()
	}
}

// Close stops accepting appends and drains pending requests. The requests
// channel is never closed: submissions race only against the closing flag,
// so a late Append gets ErrRecorderClosed instead of a send on a closed
// channel.
func (r *Recorder) Close() {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closing = true
		r.mu.Unlock()
		close(r.closed)
	})
	r.wg.Wait()
}

func (r *Recorder) run() {
	defer r.wg.Done()
	for {
		select {
		case req := <-r.requests:
			r.handle(req)
		case <-r.closed:
			// Everything enqueued before the flag flipped is drained.
			for {
				select {
				case req := <-r.requests:
					r.handle(req)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) handle(req appendRequest) {
	seq, err := r.append(req.ctx, req.draft)
	if err != nil {
		r.metrics.IncrementAuditAppendErrors()
		r.logger.Error("audit append failed",
			"error", err,
			"action", req.draft.Action,
			"subject", req.draft.Subject,
		)
	} else {
		r.metrics.IncrementAuditAppends()
	}
	req.reply <- appendReply{seq: seq, err: err}
}

func (r *Recorder) append(ctx context.Context, draft Draft) (int64, error) {
	// A caller abandoning its request must not abort the store write, so
	// the write runs under the recorder's own deadline.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.storeTimeout)
	defer cancel()

	if err := r.initChain(ctx); err != nil {
		return 0, err
	}

	ts := draft.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	severity := draft.Severity
	if severity == "" {
		severity = SeverityInfo
	}

	entry := &Entry{
		SequenceID:  r.nextSeq,
		Timestamp:   ts,
		Subject:     draft.Subject,
		Category:    draft.Category,
		Action:      draft.Action,
		EntityType:  draft.EntityType,
		EntityID:    draft.EntityID,
		Severity:    severity,
		BeforeState: draft.BeforeState,
		AfterState:  draft.AfterState,
		Tier:        TierActive,
	}
	entry.PreviousEntryHash = r.prevHash
	entry.EntryHash = ComputeHash(entry, r.prevHash)

	if err := r.store.Append(ctx, entry); err != nil {
		return 0, err
	}

	r.nextSeq++
	r.prevHash = entry.EntryHash
	return entry.SequenceID, nil
}

// initChain loads the chain head once. A purged head is fine: the stored
// previous-hash of the next surviving entry still anchors verification.
func (r *Recorder) initChain(ctx context.Context) error {
	if r.initialized {
		return nil
	}
	head, err := r.store.Head(ctx)
	switch {
	case err == nil:
		r.nextSeq = head.SequenceID + 1
		r.prevHash = head.EntryHash
	case isNotFound(err):
		r.nextSeq = 1
		r.prevHash = GenesisHash
	default:
		return err
	}
	r.initialized = true
	return nil
}
