package util

import (
	"errors"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDomainErrorPassesThrough(t *testing.T) {
	err := NewInvalidTransition("ticket not open", map[string]any{"status": "CLOSED"})

	domainErr := ToDomainError(err)

	assert.Equal(t, CodeInvalidTransition, domainErr.Code)
	assert.Equal(t, http.StatusConflict, domainErr.HTTPStatus)
	assert.Equal(t, "CLOSED", domainErr.Details["status"])
}

func TestToDomainErrorMapsNoRows(t *testing.T) {
	domainErr := ToDomainError(pgx.ErrNoRows)

	assert.Equal(t, CodeNotFound, domainErr.Code)
	assert.Equal(t, http.StatusNotFound, domainErr.HTTPStatus)
}

func TestToDomainErrorWrapsUnknown(t *testing.T) {
	cause := errors.New("connection reset")

	domainErr := ToDomainError(cause)

	assert.Equal(t, CodeInternal, domainErr.Code)
	require.ErrorIs(t, domainErr, cause)
}

func TestNewAdmissionDeniedCarriesRetryHint(t *testing.T) {
	err := NewAdmissionDenied(1500)

	var domainErr *DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, CodeAdmissionDenied, domainErr.Code)
	assert.Equal(t, http.StatusTooManyRequests, domainErr.HTTPStatus)
	assert.Equal(t, int64(1500), domainErr.Details["retry_after_ms"])
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeDuplicateTicket, CodeOf(NewDuplicateTicket("dup", nil)))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	assert.Empty(t, CodeOf(nil))
}
