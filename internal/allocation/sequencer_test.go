package allocation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/lead-distribution/internal/domain"
	"github.com/spec-kit/lead-distribution/internal/testutil"
)

const company int64 = 42

func TestSequencer_Next(t *testing.T) {
	ctx := context.Background()

	t.Run("seeds the order from the active roster and returns the first member", func(t *testing.T) {
		store := testutil.NewStore()
		a := store.AddStaff(company, "a", domain.StaffStatusActive)
		store.AddStaff(company, "off", domain.StaffStatusInactive)
		c := store.AddStaff(company, "c", domain.StaffStatusActive)
		seq := NewSequencer(store, store, SequencerOptions{})

		next, err := seq.Next(ctx, company)

		require.NoError(t, err)
		require.Equal(t, a, next.ID)
		settings, err := store.Get(ctx, company)
		require.NoError(t, err)
		require.Equal(t, []int64{a, c}, settings.RoundRobinOrder)
		require.Nil(t, settings.LastAssignedTo)
	})

	t.Run("returns nothing for an empty roster", func(t *testing.T) {
		store := testutil.NewStore()
		seq := NewSequencer(store, store, SequencerOptions{})

		next, err := seq.Next(ctx, company)

		require.NoError(t, err)
		require.Nil(t, next)
		require.Zero(t, store.SettingsWrites())
	})

	t.Run("rotates and wraps once the caller advances the cursor", func(t *testing.T) {
		store := testutil.NewStore()
		a := store.AddStaff(company, "a", domain.StaffStatusActive)
		b := store.AddStaff(company, "b", domain.StaffStatusActive)
		c := store.AddStaff(company, "c", domain.StaffStatusActive)
		seq := NewSequencer(store, store, SequencerOptions{})

		var got []int64
		for i := 0; i < 4; i++ {
			next, err := seq.Next(ctx, company)
			require.NoError(t, err)
			got = append(got, next.ID)
			require.NoError(t, seq.UpdateLastAssigned(ctx, company, next.ID))
		}

		require.Equal(t, []int64{a, b, c, a}, got)
	})

	t.Run("does not advance on its own", func(t *testing.T) {
		store := testutil.NewStore()
		a := store.AddStaff(company, "a", domain.StaffStatusActive)
		store.AddStaff(company, "b", domain.StaffStatusActive)
		seq := NewSequencer(store, store, SequencerOptions{})

		first, err := seq.Next(ctx, company)
		require.NoError(t, err)
		second, err := seq.Next(ctx, company)
		require.NoError(t, err)

		require.Equal(t, a, first.ID)
		require.Equal(t, a, second.ID)
	})

	t.Run("restarts at the head when the last pointer left the order", func(t *testing.T) {
		store := testutil.NewStore()
		a := store.AddStaff(company, "a", domain.StaffStatusActive)
		b := store.AddStaff(company, "b", domain.StaffStatusActive)
		stranger := int64(999)
		_, err := store.Create(ctx, &domain.DistributionSettings{
			CompanyID:       company,
			Strategy:        domain.StrategyRoundRobin,
			IsActive:        true,
			RoundRobinOrder: []int64{a, b},
			LastAssignedTo:  &stranger,
		})
		require.NoError(t, err)
		seq := NewSequencer(store, store, SequencerOptions{})

		next, err := seq.Next(ctx, company)

		require.NoError(t, err)
		require.Equal(t, a, next.ID)
	})

	t.Run("returns nothing when the next slot is no longer active", func(t *testing.T) {
		store := testutil.NewStore()
		a := store.AddStaff(company, "a", domain.StaffStatusActive)
		b := store.AddStaff(company, "b", domain.StaffStatusActive)
		c := store.AddStaff(company, "c", domain.StaffStatusActive)
		seq := NewSequencer(store, store, SequencerOptions{})
		_, err := seq.Next(ctx, company)
		require.NoError(t, err)
		require.NoError(t, seq.UpdateLastAssigned(ctx, company, a))
		store.SetStaffStatus(b, domain.StaffStatusSuspended)

		next, err := seq.Next(ctx, company)

		require.NoError(t, err)
		require.Nil(t, next)
		settings, err := store.Get(ctx, company)
		require.NoError(t, err)
		require.Equal(t, []int64{a, b, c}, settings.RoundRobinOrder)
	})

	t.Run("reseeds after drift when configured", func(t *testing.T) {
		store := testutil.NewStore()
		a := store.AddStaff(company, "a", domain.StaffStatusActive)
		b := store.AddStaff(company, "b", domain.StaffStatusActive)
		c := store.AddStaff(company, "c", domain.StaffStatusActive)
		seq := NewSequencer(store, store, SequencerOptions{ReseedOnDrift: true})
		_, err := seq.Next(ctx, company)
		require.NoError(t, err)
		require.NoError(t, seq.UpdateLastAssigned(ctx, company, a))
		store.SetStaffStatus(b, domain.StaffStatusInactive)

		skipped, err := seq.Next(ctx, company)
		require.NoError(t, err)
		require.Nil(t, skipped)

		next, err := seq.Next(ctx, company)
		require.NoError(t, err)
		require.Equal(t, a, next.ID)
		settings, err := store.Get(ctx, company)
		require.NoError(t, err)
		require.Equal(t, []int64{a, c}, settings.RoundRobinOrder)
	})

	t.Run("surfaces storage errors", func(t *testing.T) {
		store := testutil.NewStore()
		store.AddStaff(company, "a", domain.StaffStatusActive)
		boom := errors.New("connection reset")
		store.Fail("settings.get", boom)
		seq := NewSequencer(store, store, SequencerOptions{})

		_, err := seq.Next(ctx, company)

		require.ErrorIs(t, err, boom)
	})
}

func TestSequencer_Reset(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore()
	a := store.AddStaff(company, "a", domain.StaffStatusActive)
	seq := NewSequencer(store, store, SequencerOptions{})
	_, err := seq.Next(ctx, company)
	require.NoError(t, err)
	require.NoError(t, seq.UpdateLastAssigned(ctx, company, a))

	require.NoError(t, seq.Reset(ctx, company))

	settings, err := store.Get(ctx, company)
	require.NoError(t, err)
	require.Nil(t, settings.RoundRobinOrder)
	require.Nil(t, settings.LastAssignedTo)

	next, err := seq.Next(ctx, company)
	require.NoError(t, err)
	require.Equal(t, a, next.ID)
}
