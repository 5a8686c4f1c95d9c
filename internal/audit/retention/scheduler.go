// Package retention ages audit entries through their tiers: active entries
// past the active window are verified and archived; archived entries past
// the archive window are purged. Archival is a re-classification on the same
// store; purge is the only physical deletion in the system and only ever
// touches the archived tier.
package retention

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"trustcore/internal/audit"
	"trustcore/internal/platform/metrics"
)

// archiveBatchLimit bounds how many entries one cycle touches per phase, so
// a long backlog cannot hold the cycle lock indefinitely. The next tick
// picks up where this one left off.
const archiveBatchLimit = 500

// Verifier is the integrity check run before any entry leaves the active
// tier. Corrupted entries are never silently archived.
type Verifier interface {
	VerifyEntry(ctx context.Context, seq int64) (bool, error)
}

// Notifier receives operator-relevant retention outcomes. Implementations
// must not block the cycle on delivery.
type Notifier interface {
	IntegrityViolation(ctx context.Context, seq int64, reason string)
	RetentionResult(ctx context.Context, result TaskResult)
}

// Scheduler runs retention cycles on a fixed interval. One instance per
// process; a cycle never overlaps with itself. If a tick fires while the
// previous cycle is still running, the tick is skipped and the interval
// itself throttles the retry.
type Scheduler struct {
	store    audit.Store
	verifier Verifier
	notifier Notifier
	logger   *slog.Logger
	metrics  *metrics.Metrics

	policyMu sync.RWMutex
	policy   Policy

	// runMu enforces the no-overlap guarantee for both ticked and manual runs.
	runMu sync.Mutex

	statsMu sync.Mutex
	stats   Statistics
}

// Option configures the Scheduler.
type Option func(*Scheduler)

// WithLogger overrides the logger used for cycle errors.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithNotifier sets the ops notification channel.
func WithNotifier(n Notifier) Option {
	return func(s *Scheduler) {
		s.notifier = n
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) {
		s.metrics = m
	}
}

// New constructs a Scheduler with a validated policy.
func New(store audit.Store, verifier Verifier, policy Policy, opts ...Option) (*Scheduler, error) {
	if store == nil || verifier == nil {
		return nil, fmt.Errorf("store and verifier are required")
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	s := &Scheduler{
		store:    store,
		verifier: verifier,
		policy:   policy,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Policy returns the current retention policy.
func (s *Scheduler) Policy() Policy {
	s.policyMu.RLock()
	defer s.policyMu.RUnlock()
	return s.policy
}

// UpdatePolicy replaces the policy after validation. The new interval takes
// effect on the next tick.
func (s *Scheduler) UpdatePolicy(policy Policy) error {
	if err := policy.Validate(); err != nil {
		return err
	}
	s.policyMu.Lock()
	s.policy = policy
	s.policyMu.Unlock()
	return nil
}

// Statistics returns aggregate scheduler activity since process start.
func (s *Scheduler) Statistics() Statistics {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return s.stats
}

// Start runs retention cycles until ctx is cancelled. It never blocks
// request handling: cycles run on this goroutine only.
func (s *Scheduler) Start(ctx context.Context) error {
	for {
		interval := s.Policy().TaskInterval
		select {
		case <-time.After(interval):
			if _, err := s.Run(ctx); err != nil {
				s.logger.ErrorContext(ctx, "retention cycle failed", "error", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Run executes a single retention cycle, also used as the manual trigger.
// A failed cycle is recorded with Success=false and does not stop the
// scheduler; the next tick retries independently.
func (s *Scheduler) Run(ctx context.Context) (TaskResult, error) {
	if !s.runMu.TryLock() {
		return TaskResult{}, fmt.Errorf("retention cycle already running")
	}
	defer s.runMu.Unlock()

	policy := s.Policy()
	start := time.Now()
	result := TaskResult{ExecutedAt: start, Success: true}

	var errs []error
	if policy.AutoArchive {
		archived, flagged, err := s.archivePhase(ctx, policy, start)
		result.Archived = archived
		result.Flagged = flagged
		if err != nil {
			errs = append(errs, fmt.Errorf("archive phase: %w", err))
		}
	}
	if policy.AutoPurge {
		purged, freed, err := s.purgePhase(ctx, policy, start)
		result.Purged = purged
		result.SpaceFreed = freed
		if err != nil {
			errs = append(errs, fmt.Errorf("purge phase: %w", err))
		}
	}

	result.Duration = time.Since(start)
	err := errors.Join(errs...)
	if err != nil {
		result.Success = false
		result.Error = err.Error()
	}

	s.recordResult(ctx, result)
	return result, err
}

// archivePhase verifies and archives aged active entries. Entries that fail
// verification are flagged and left active; they block on the active tier
// until an operator intervenes.
func (s *Scheduler) archivePhase(ctx context.Context, policy Policy, now time.Time) (archived, flagged int, err error) {
	cutoff := now.Add(-policy.ActiveRetention)
	candidates, err := s.store.ListActiveOlderThan(ctx, cutoff, archiveBatchLimit)
	if err != nil {
		return 0, 0, err
	}

	for _, entry := range candidates {
		valid, verr := s.verifier.VerifyEntry(ctx, entry.SequenceID)
		if verr != nil {
			return archived, flagged, verr
		}
		if !valid {
			flagged++
			if s.metrics != nil {
				s.metrics.IncrementIntegrityFailures()
			}
			s.logger.ErrorContext(ctx, "audit entry failed verification, not archiving",
				"sequence_id", entry.SequenceID,
			)
			if ferr := s.store.MarkFlagged(ctx, entry.SequenceID, "hash verification failed before archival"); ferr != nil {
				return archived, flagged, ferr
			}
			if s.notifier != nil {
				s.notifier.IntegrityViolation(ctx, entry.SequenceID, "hash verification failed before archival")
			}
			continue
		}
		if aerr := s.store.MarkArchived(ctx, entry.SequenceID, now); aerr != nil {
			return archived, flagged, aerr
		}
		archived++
	}
	return archived, flagged, nil
}

// purgePhase removes archived entries whose archival time has aged past the
// archive window. Irreversible, archived tier only.
func (s *Scheduler) purgePhase(ctx context.Context, policy Policy, now time.Time) (purged int, freed int64, err error) {
	cutoff := now.Add(-policy.ArchiveRetention)
	candidates, err := s.store.ListArchivedOlderThan(ctx, cutoff, archiveBatchLimit)
	if err != nil {
		return 0, 0, err
	}
	if len(candidates) == 0 {
		return 0, 0, nil
	}

	seqs := make([]int64, 0, len(candidates))
	for _, entry := range candidates {
		seqs = append(seqs, entry.SequenceID)
	}
	return s.store.PurgeArchived(ctx, seqs)
}

func (s *Scheduler) recordResult(ctx context.Context, result TaskResult) {
	s.statsMu.Lock()
	s.stats.Cycles++
	if !result.Success {
		s.stats.FailedCycles++
	}
	s.stats.TotalArchived += result.Archived
	s.stats.TotalPurged += result.Purged
	s.stats.TotalFlagged += result.Flagged
	s.stats.TotalSpaceFreed += result.SpaceFreed
	last := result
	s.stats.LastResult = &last
	s.statsMu.Unlock()

	outcome := "success"
	if !result.Success {
		outcome = "failure"
	}
	if s.metrics != nil {
		s.metrics.ObserveRetentionCycle(outcome, result.Duration.Seconds(), result.Archived, result.Purged)
	}
	if s.notifier != nil {
		s.notifier.RetentionResult(ctx, result)
	}
	s.logger.InfoContext(ctx, "retention cycle finished",
		"archived", result.Archived,
		"purged", result.Purged,
		"flagged", result.Flagged,
		"success", result.Success,
		"duration", result.Duration.String(),
	)
}
