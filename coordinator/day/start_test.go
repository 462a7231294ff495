package day

import (
	"context"
	"encoding/hex"
	"testing"

	"github.com/ai4all-network/coordinator/coordinator/assign"
	dbtest "github.com/ai4all-network/coordinator/coordinator/db/testing"
	"github.com/ai4all-network/coordinator/coordinator/events"
	"github.com/ai4all-network/coordinator/coordinator/state"
	"github.com/ai4all-network/coordinator/shared/params"
	"github.com/ai4all-network/coordinator/shared/pqsig"
	"github.com/ai4all-network/coordinator/shared/testutil/assert"
	"github.com/ai4all-network/coordinator/shared/testutil/require"
)

func TestStartDay_LocksRosterAndEmitsEvents(t *testing.T) {
	srv, _ := setupService(t)
	ctx := context.Background()

	alice := registerAccount(t, srv)
	bob := registerAccount(t, srv)

	res := mustStartDay(t, srv, "2026-01-28")
	assert.Equal(t, "2026-01-28", res.DayID)
	assert.Equal(t, string(state.PhaseActive), res.Phase)
	assert.Equal(t, 2, res.RosterSize)
	assert.Equal(t, 6, res.TotalBlocks, "minimal config runs 2 blocks x 3 batches")
	assert.Equal(t, 1, res.CanaryCount)
	assert.Equal(t, assign.RosterHash([]string{alice, bob}), res.RosterHash)
	assert.Equal(t, assign.DeriveSeed("2026-01-28", res.RosterHash), res.Seed)

	evs, err := srv.cfg.Database.EventsByDay(ctx, "2026-01-28")
	require.NoError(t, err)
	// Two registrations happened on the same calendar day.
	require.Equal(t, 5, len(evs))
	assert.Equal(t, events.TypeRosterLocked, evs[2].EventType)
	assert.Equal(t, events.TypeWorkAssigned, evs[3].EventType)
	assert.Equal(t, events.TypeCanariesSelected, evs[4].EventType)

	saved, err := srv.cfg.Database.AssignmentsByDay(ctx, "2026-01-28")
	require.NoError(t, err)
	assert.Equal(t, res.Assignments, len(saved))

	lc, err := srv.cfg.Database.DayLifecycle(ctx)
	require.NoError(t, err)
	require.NotNil(t, lc)
	assert.Equal(t, string(state.PhaseActive), lc.Phase)
	assert.Equal(t, "2026-01-28", lc.DayID)
}

func TestStartDay_SecondStartRejected(t *testing.T) {
	srv, _ := setupService(t)

	registerAccount(t, srv)
	mustStartDay(t, srv, "")

	_, err := srv.StartDay(context.Background(), "")
	require.Equal(t, ErrDayAlreadyActive, err)
}

func TestStartDay_EmptyRoster(t *testing.T) {
	srv, _ := setupService(t)

	res := mustStartDay(t, srv, "")
	assert.Equal(t, 0, res.RosterSize)
	assert.Equal(t, 0, res.Assignments)
	assert.Equal(t, 0, res.CanaryCount)
	assert.Equal(t, state.PhaseActive, srv.day.Phase)
}

func TestStartDay_InvalidDayID(t *testing.T) {
	srv, _ := setupService(t)
	_, err := srv.StartDay(context.Background(), "Jan-28-2026")
	require.ErrorContains(t, "invalid day id", err)
}

func TestStartDay_DefaultsToCurrentDay(t *testing.T) {
	srv, _ := setupService(t)
	res := mustStartDay(t, srv, "")
	assert.Equal(t, "2026-01-28", res.DayID)
}

// Two coordinators with the same roster must derive the same seed and hand
// out the same blocks, independent of the machine they run on.
func TestStartDay_DeterministicAcrossInstances(t *testing.T) {
	params.SetupTestConfigCleanup(t)
	params.OverrideCoordinatorConfig(params.MinimalConfig())
	ctx := context.Background()

	key, err := pqsig.RandKey()
	require.NoError(t, err)
	pub := key.PublicKey().Marshal()
	account := pqsig.AddressFromPublicKey(pub)

	a, _ := newTestService(t, dbtest.SetupMemoryDB(t))
	b, _ := newTestService(t, dbtest.SetupMemoryDB(t))
	for _, srv := range []*Service{a, b} {
		_, err := srv.Register(ctx, account, hex.EncodeToString(pub))
		require.NoError(t, err)
	}

	resA := mustStartDay(t, a, "2026-01-28")
	resB := mustStartDay(t, b, "2026-01-28")
	assert.Equal(t, resA.RosterHash, resB.RosterHash)
	assert.Equal(t, resA.Seed, resB.Seed)
	assert.Equal(t, resA.TotalBlocks, resB.TotalBlocks)

	workA, err := a.WorkFor(ctx, account, "")
	require.NoError(t, err)
	workB, err := b.WorkFor(ctx, account, "")
	require.NoError(t, err)
	require.NotNil(t, workA.Assignment)
	require.NotNil(t, workB.Assignment)
	assert.DeepEqual(t, workA.Assignment.BlockIDs, workB.Assignment.BlockIDs)
	assert.Equal(t, workA.Assignment.BatchNumber, workB.Assignment.BatchNumber)
}
