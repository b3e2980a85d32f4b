package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
)

func TestDomainErrorIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("assign: %w", NewNoEligibleStaff(7))

	require.ErrorIs(t, err, ErrNoEligibleStaff)
	require.NotErrorIs(t, err, ErrInvalidArgument)

	var domainErr *DomainError
	require.ErrorAs(t, err, &domainErr)
	require.Equal(t, http.StatusUnprocessableEntity, domainErr.HTTPStatus)
	require.Equal(t, int64(7), domainErr.Details["company_id"])
}

func TestNewStorageFailure(t *testing.T) {
	t.Run("wraps infrastructure errors", func(t *testing.T) {
		cause := errors.New("conn refused")
		err := NewStorageFailure(cause)

		require.ErrorIs(t, err, ErrStorageFailure)
		require.ErrorIs(t, err, cause)
		require.Equal(t, http.StatusInternalServerError, ToDomainError(err).HTTPStatus)
	})

	t.Run("passes domain errors through", func(t *testing.T) {
		err := NewStorageFailure(NewInvalidArgument("bad", nil))

		require.ErrorIs(t, err, ErrInvalidArgument)
		require.NotErrorIs(t, err, ErrStorageFailure)
	})
}

func TestToDomainError(t *testing.T) {
	require.Nil(t, ToDomainError(nil))
	require.Equal(t, CodeNotFound, ToDomainError(pgx.ErrNoRows).Code)
	require.Equal(t, CodeInternal, ToDomainError(errors.New("boom")).Code)
	require.Equal(t, CodeDistributionDisabled, ToDomainError(NewDistributionDisabled("off", nil)).Code)
}
