package dto

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/lead-distribution/internal/domain"
	apperrors "github.com/spec-kit/lead-distribution/pkg/errorutil"
)

func TestDecodeSettingsPatch(t *testing.T) {
	t.Run("keeps allow-listed keys and drops the rest", func(t *testing.T) {
		patch, err := DecodeSettingsPatch([]byte(`{
			"strategy": "performance_based",
			"is_active": false,
			"parameters": {"top_performer_percent": 70},
			"company_id": 99,
			"version": 12
		}`))

		require.NoError(t, err)
		require.True(t, patch.Strategy.Set)
		require.Equal(t, domain.StrategyPerformanceBased, patch.Strategy.Value)
		require.True(t, patch.IsActive.Set)
		require.False(t, patch.IsActive.Value)
		require.Equal(t, 70, patch.Parameters.Value.TopPerformerPercent)
		require.False(t, patch.RoundRobinOrder.Set)
		require.False(t, patch.LastAssignedTo.Set)
	})

	t.Run("null clears the rotation fields", func(t *testing.T) {
		patch, err := DecodeSettingsPatch([]byte(`{"round_robin_order": null, "last_assigned_to": null}`))

		require.NoError(t, err)
		require.True(t, patch.RoundRobinOrder.Set)
		require.Nil(t, patch.RoundRobinOrder.Value)
		require.True(t, patch.LastAssignedTo.Set)
		require.Nil(t, patch.LastAssignedTo.Value)
	})

	bad := map[string]string{
		"not json":           `strategy=manual`,
		"only unknown keys":  `{"company_id": 1}`,
		"empty object":       `{}`,
		"unknown strategy":   `{"strategy": "lottery"}`,
		"null strategy":      `{"strategy": null}`,
		"null is_active":     `{"is_active": null}`,
		"wrong type":         `{"is_active": "yes"}`,
		"unknown parameter":  `{"parameters": {"weights": [1, 2]}}`,
		"non positive order": `{"round_robin_order": [3, -1]}`,
	}
	for name, body := range bad {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeSettingsPatch([]byte(body))
			require.ErrorIs(t, err, apperrors.ErrInvalidArgument)
		})
	}
}

func TestValidateRequests(t *testing.T) {
	count := func(n int) *int { return &n }

	require.NoError(t, Validate(CountRequest{}))
	require.NoError(t, Validate(CountRequest{Count: count(100)}))
	require.ErrorIs(t, Validate(CountRequest{Count: count(0)}), apperrors.ErrInvalidArgument)
	require.ErrorIs(t, Validate(CountRequest{Count: count(101)}), apperrors.ErrInvalidArgument)

	require.NoError(t, Validate(ManualAssignmentRequest{Assignments: []ManualAssignment{{StaffID: 1, LeadIDs: []int64{2}}}}))
	require.ErrorIs(t, Validate(ManualAssignmentRequest{}), apperrors.ErrInvalidArgument)
	require.ErrorIs(t, Validate(ManualAssignmentRequest{Assignments: []ManualAssignment{{StaffID: 1}}}), apperrors.ErrInvalidArgument)
	require.ErrorIs(t, Validate(ManualAssignmentRequest{Assignments: []ManualAssignment{{StaffID: 1, LeadIDs: []int64{0}}}}), apperrors.ErrInvalidArgument)
}
