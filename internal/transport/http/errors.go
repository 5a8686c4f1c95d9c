package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "trustcore/pkg/domain-errors"
)

// statusByCode maps domain codes to HTTP statuses. Domain code strings double
// as the wire error codes so clients match on stable identifiers, not prose.
var statusByCode = map[dErrors.Code]int{
	dErrors.CodeNotFound:     http.StatusNotFound,
	dErrors.CodeBadRequest:   http.StatusBadRequest,
	dErrors.CodeInvalidInput: http.StatusBadRequest,
	dErrors.CodeValidation:   http.StatusBadRequest,
	dErrors.CodeConflict:     http.StatusConflict,
	dErrors.CodeUnauthorized: http.StatusUnauthorized,
	dErrors.CodeForbidden:    http.StatusForbidden,

	dErrors.CodeInvalidCredentials: http.StatusUnauthorized,
	dErrors.CodeInvalidToken:       http.StatusUnauthorized,
	dErrors.CodeTokenRevoked:       http.StatusUnauthorized,
	dErrors.CodeTokenExpired:       http.StatusUnauthorized,
	dErrors.CodeAccountInactive:    http.StatusForbidden,
	dErrors.CodeUnverifiedIdentity: http.StatusForbidden,

	dErrors.CodeFederationError: http.StatusBadGateway,
	dErrors.CodeTransientStore:  http.StatusServiceUnavailable,

	// Policy updates surface validation as configuration errors; over HTTP
	// they are the client's bad input.
	dErrors.CodeConfiguration: http.StatusBadRequest,
}

// writeError translates a domain error to a JSON error envelope. Unknown
// errors collapse to a generic 500 so internals never leak to clients.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := dErrors.CodeInternal

	var domainErr *dErrors.Error
	if errors.As(err, &domainErr) {
		code = domainErr.Code
		if s, ok := statusByCode[domainErr.Code]; ok {
			status = s
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": string(code),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
