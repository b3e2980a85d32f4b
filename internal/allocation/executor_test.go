package allocation

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/lead-distribution/internal/domain"
	"github.com/spec-kit/lead-distribution/internal/observability"
	"github.com/spec-kit/lead-distribution/internal/testutil"
	apperrors "github.com/spec-kit/lead-distribution/pkg/errorutil"
)

func newExecutor(store *testutil.Store) *Executor {
	return NewExecutor(store, nil, observability.NewMetrics(prometheus.NewRegistry()))
}

func TestExecutor_Apply(t *testing.T) {
	ctx := context.Background()

	t.Run("binds leads and writes one activity each", func(t *testing.T) {
		store := testutil.NewStore()
		staff := store.AddStaff(company, "a", domain.StaffStatusActive)
		leads := store.AddLeads(company, 2)
		actor := int64(77)

		results, err := newExecutor(store).Apply(ctx, company, domain.StrategyManual,
			domain.AssignmentPlan{{StaffID: staff, LeadIDs: leads}}, &actor, nil)

		require.NoError(t, err)
		require.Equal(t, []domain.BatchResult{{StaffID: staff, AssignedLeads: leads}}, results)
		for _, id := range leads {
			lead := store.Lead(id)
			require.Equal(t, staff, *lead.AssignedTo)
			require.Equal(t, actor, *lead.AssignedBy)
			require.NotNil(t, lead.AssignedAt)
		}
		activities := store.Activities()
		require.Len(t, activities, 2)
		for _, rec := range activities {
			require.Equal(t, domain.ActivityActionAssigned, rec.Action)
			require.Equal(t, domain.StrategyManual.ActivityNote(), rec.Note)
			require.Equal(t, actor, *rec.ActorID)
		}
	})

	t.Run("skips leads that are already owned", func(t *testing.T) {
		store := testutil.NewStore()
		a := store.AddStaff(company, "a", domain.StaffStatusActive)
		b := store.AddStaff(company, "b", domain.StaffStatusActive)
		leads := store.AddLeads(company, 3)
		store.Claim(leads[1], a)

		results, err := newExecutor(store).Apply(ctx, company, domain.StrategyAutomatic,
			domain.AssignmentPlan{{StaffID: b, LeadIDs: leads}}, nil, nil)

		require.NoError(t, err)
		require.Equal(t, []int64{leads[0], leads[2]}, results[0].AssignedLeads)
		require.Equal(t, a, *store.Lead(leads[1]).AssignedTo)
		require.Len(t, store.Activities(), 2)
	})

	t.Run("ignores leads of another company", func(t *testing.T) {
		store := testutil.NewStore()
		staff := store.AddStaff(company, "a", domain.StaffStatusActive)
		foreign := store.AddLeads(company+1, 1)

		results, err := newExecutor(store).Apply(ctx, company, domain.StrategyManual,
			domain.AssignmentPlan{{StaffID: staff, LeadIDs: foreign}}, nil, nil)

		require.NoError(t, err)
		require.Empty(t, results[0].AssignedLeads)
		require.Nil(t, store.Lead(foreign[0]).AssignedTo)
	})

	t.Run("binds nothing to staff outside the company's active roster", func(t *testing.T) {
		store := testutil.NewStore()
		outsider := store.AddStaff(company+1, "x", domain.StaffStatusActive)
		departed := store.AddStaff(company, "d", domain.StaffStatusInactive)
		leads := store.AddLeads(company, 2)

		results, err := newExecutor(store).Apply(ctx, company, domain.StrategyManual, domain.AssignmentPlan{
			{StaffID: outsider, LeadIDs: leads[:1]},
			{StaffID: departed, LeadIDs: leads[1:]},
		}, nil, nil)

		require.NoError(t, err)
		require.Empty(t, results[0].AssignedLeads)
		require.Empty(t, results[1].AssignedLeads)
		require.Nil(t, store.Lead(leads[0]).AssignedTo)
		require.Nil(t, store.Lead(leads[1]).AssignedTo)
		require.Empty(t, store.Activities())
	})

	t.Run("rolls a batch back when activities cannot be written", func(t *testing.T) {
		store := testutil.NewStore()
		a := store.AddStaff(company, "a", domain.StaffStatusActive)
		b := store.AddStaff(company, "b", domain.StaffStatusActive)
		leads := store.AddLeads(company, 3)
		boom := errors.New("disk full")

		committed := []domain.BatchResult{}
		onCommit := func(ctx context.Context, result domain.BatchResult) {
			committed = append(committed, result)
			store.Fail("activities", boom)
		}
		plan := domain.AssignmentPlan{
			{StaffID: a, LeadIDs: leads[:2]},
			{StaffID: b, LeadIDs: leads[2:]},
		}

		results, err := newExecutor(store).Apply(ctx, company, domain.StrategyAutomatic, plan, nil, onCommit)

		require.ErrorIs(t, err, apperrors.ErrStorageFailure)
		require.ErrorIs(t, err, boom)
		require.Equal(t, []domain.BatchResult{{StaffID: a, AssignedLeads: leads[:2]}}, results)
		require.Equal(t, results, committed)
		require.Equal(t, a, *store.Lead(leads[0]).AssignedTo)
		require.Nil(t, store.Lead(leads[2]).AssignedTo)
		require.Len(t, store.Activities(), 2)
	})

	t.Run("does not report empty batches as committed", func(t *testing.T) {
		store := testutil.NewStore()
		a := store.AddStaff(company, "a", domain.StaffStatusActive)
		leads := store.AddLeads(company, 1)
		store.Claim(leads[0], a)

		calls := 0
		results, err := newExecutor(store).Apply(ctx, company, domain.StrategyAutomatic,
			domain.AssignmentPlan{{StaffID: a, LeadIDs: leads}}, nil,
			func(context.Context, domain.BatchResult) { calls++ })

		require.NoError(t, err)
		require.Len(t, results, 1)
		require.Empty(t, results[0].AssignedLeads)
		require.Zero(t, calls)
	})

	t.Run("stops before the first batch when the context is done", func(t *testing.T) {
		store := testutil.NewStore()
		a := store.AddStaff(company, "a", domain.StaffStatusActive)
		leads := store.AddLeads(company, 1)
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		results, err := newExecutor(store).Apply(cancelled, company, domain.StrategyManual,
			domain.AssignmentPlan{{StaffID: a, LeadIDs: leads}}, nil, nil)

		require.ErrorIs(t, err, context.Canceled)
		require.Empty(t, results)
		require.Zero(t, store.BindCalls())
	})
}

func TestExecutor_ConcurrentBindsNeverOverlap(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore()
	a := store.AddStaff(company, "a", domain.StaffStatusActive)
	b := store.AddStaff(company, "b", domain.StaffStatusActive)
	leads := store.AddLeads(company, 20)
	executor := newExecutor(store)

	var wg sync.WaitGroup
	results := make([][]domain.BatchResult, 2)
	errs := make([]error, 2)
	for i, staff := range []int64{a, b} {
		wg.Add(1)
		go func(i int, staff int64) {
			defer wg.Done()
			results[i], errs[i] = executor.Apply(ctx, company, domain.StrategyAutomatic,
				domain.AssignmentPlan{{StaffID: staff, LeadIDs: leads}}, nil, nil)
		}(i, staff)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	total := len(results[0][0].AssignedLeads) + len(results[1][0].AssignedLeads)
	require.Equal(t, len(leads), total)
	require.Len(t, store.Activities(), len(leads))
}
