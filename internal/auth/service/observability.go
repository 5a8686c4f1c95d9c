package service

import (
	"context"

	"trustcore/internal/audit"
	"trustcore/internal/auth/models"
)

// record appends an audit draft, logging and swallowing failures. An audit
// outage must not turn a completed authentication decision into an error; the
// gap is visible in the append-error metric and the log.
func (s *Service) record(ctx context.Context, draft audit.Draft) {
	if s.auditor == nil {
		return
	}
	if _, err := s.auditor.Append(ctx, draft); err != nil {
		s.logger.ErrorContext(ctx, "audit append failed",
			"error", err,
			"action", draft.Action,
			"subject", draft.Subject,
		)
	}
}

// recordAuthFailure emits the security event for a failed login attempt and
// bumps the failure counter.
func (s *Service) recordAuthFailure(ctx context.Context, identifier, reason string, meta models.ClientMeta) {
	if s.metrics != nil {
		s.metrics.IncrementAuthFailures()
	}
	draft := audit.SecurityEvent(identifier, "login_failed", reason)
	draft.EntityID = meta.DisplayName()
	s.record(ctx, draft)
}
