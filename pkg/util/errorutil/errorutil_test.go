package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDomainErrorKeepsDomainErrors(t *testing.T) {
	original := NewAlreadyHandled("request already handled", map[string]any{"request_id": "r1"})
	wrapped := fmt.Errorf("accept: %w", original)

	domainErr := ToDomainError(wrapped)
	require.NotNil(t, domainErr)
	assert.Equal(t, CodeAlreadyHandled, domainErr.Code)
	assert.Equal(t, http.StatusConflict, domainErr.HTTPStatus)
	assert.Equal(t, "r1", domainErr.Details["request_id"])
}

func TestToDomainErrorMapsNoRows(t *testing.T) {
	domainErr := ToDomainError(fmt.Errorf("load ticket: %w", pgx.ErrNoRows))
	assert.Equal(t, CodeNotFound, domainErr.Code)
	assert.Equal(t, http.StatusNotFound, domainErr.HTTPStatus)
}

func TestToDomainErrorFallsBackToInternal(t *testing.T) {
	cause := errors.New("connection reset")
	domainErr := ToDomainError(cause)
	assert.Equal(t, CodeInternal, domainErr.Code)
	assert.ErrorIs(t, domainErr, cause)
}

func TestHasCode(t *testing.T) {
	assert.True(t, HasCode(NewUnauthorized("nope"), CodeUnauthorized))
	assert.True(t, HasCode(fmt.Errorf("wrap: %w", NewInvalidTransition("reviewed", nil)), CodeInvalidTransition))
	assert.False(t, HasCode(errors.New("plain"), CodeInternal))
	assert.False(t, HasCode(nil, CodeNotFound))
	assert.Nil(t, MapError(nil))
}

func TestUnauthorizedVersusUnauthenticated(t *testing.T) {
	assert.Equal(t, http.StatusForbidden, ToDomainError(NewUnauthorized("x")).HTTPStatus)
	assert.Equal(t, http.StatusUnauthorized, ToDomainError(NewUnauthenticated("x")).HTTPStatus)
}
