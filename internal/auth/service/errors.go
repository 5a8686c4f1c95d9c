package service

import (
	"errors"

	"trustcore/internal/sentinel"
	dErrors "trustcore/pkg/domain-errors"
)

// errorMapping pairs a store sentinel with the domain error it becomes at the
// service boundary. Stores speak sentinels; callers see codes.
type errorMapping struct {
	sentinel error
	code     dErrors.Code
	message  string
}

// rotationErrorMappings translate ConsumeByHash outcomes. Order matters only
// for readability; sentinels are disjoint.
var rotationErrorMappings = []errorMapping{
	{sentinel.ErrAlreadyRevoked, dErrors.CodeTokenRevoked, "refresh token has been revoked"},
	{sentinel.ErrExpired, dErrors.CodeTokenExpired, "refresh token has expired"},
	{sentinel.ErrNotFound, dErrors.CodeInvalidToken, "refresh token not recognized"},
}

// translate maps a store error through the given table. Anything the table
// does not name is an infrastructure failure and classifies as transient.
func translate(err error, mappings []errorMapping) error {
	for _, m := range mappings {
		if errors.Is(err, m.sentinel) {
			return dErrors.New(m.code, m.message)
		}
	}
	return dErrors.Wrap(err, dErrors.CodeTransientStore, "token store unavailable")
}
