package day

import (
	"context"
	"encoding/hex"
	"math"
	"testing"
	"time"

	"github.com/ai4all-network/coordinator/coordinator/db"
	dbtest "github.com/ai4all-network/coordinator/coordinator/db/testing"
	"github.com/ai4all-network/coordinator/coordinator/state"
	"github.com/ai4all-network/coordinator/shared/params"
	"github.com/ai4all-network/coordinator/shared/pqsig"
	"github.com/ai4all-network/coordinator/shared/testutil/require"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) advance(d time.Duration) { c.now = c.now.Add(d) }

// setupService builds a day service over a fresh in-memory store with the
// minimal config and a clock pinned to the morning of 2026-01-28.
func setupService(t *testing.T) (*Service, *testClock) {
	params.SetupTestConfigCleanup(t)
	params.OverrideCoordinatorConfig(params.MinimalConfig())
	return newTestService(t, dbtest.SetupMemoryDB(t))
}

func newTestService(t *testing.T, d db.Database) (*Service, *testClock) {
	clock := &testClock{now: time.Date(2026, 1, 28, 9, 0, 0, 0, time.UTC)}
	srv, err := NewService(context.Background(), &Config{Database: d, Now: clock.Now})
	require.NoError(t, err)
	require.NoError(t, srv.restore(context.Background()))
	return srv, clock
}

func registerAccount(t *testing.T, srv *Service) string {
	t.Helper()
	key, err := pqsig.RandKey()
	require.NoError(t, err)
	pub := key.PublicKey().Marshal()
	account := pqsig.AddressFromPublicKey(pub)
	res, err := srv.Register(context.Background(), account, hex.EncodeToString(pub))
	require.NoError(t, err)
	require.Equal(t, account, res.AccountID)
	return account
}

func mustStartDay(t *testing.T, srv *Service, dayID string) *StartResult {
	t.Helper()
	res, err := srv.StartDay(context.Background(), dayID)
	require.NoError(t, err)
	return res
}

func goodSubmission(blockID string) *state.BlockSubmission {
	return &state.BlockSubmission{
		BlockID:              blockID,
		BlockType:            state.BlockTypeInference,
		ResourceUsage:        0.9,
		DifficultyMultiplier: 1.0,
		ValidationPassed:     true,
	}
}

// nonCanaryBlocks returns the account's assigned block ids that carry no
// canary, in assignment order.
func nonCanaryBlocks(t *testing.T, srv *Service, accountID string) []string {
	t.Helper()
	a := srv.day.AssignmentFor(accountID)
	require.NotNil(t, a, "account has no assignment")
	ids := make([]string, 0, len(a.BlockIDs))
	for _, id := range a.BlockIDs {
		if !srv.day.IsCanary(id) {
			ids = append(ids, id)
		}
	}
	return ids
}

func canaryBlocks(t *testing.T, srv *Service, accountID string) []string {
	t.Helper()
	a := srv.day.AssignmentFor(accountID)
	require.NotNil(t, a, "account has no assignment")
	ids := make([]string, 0)
	for _, id := range a.BlockIDs {
		if srv.day.IsCanary(id) {
			ids = append(ids, id)
		}
	}
	return ids
}

func submitOne(t *testing.T, srv *Service, accountID string, sub *state.BlockSubmission) *SubmissionOutcome {
	t.Helper()
	outs, err := srv.SubmitWork(context.Background(), accountID, "", []*state.BlockSubmission{sub})
	require.NoError(t, err)
	require.Equal(t, 1, len(outs))
	return outs[0]
}

func countEvents(t *testing.T, srv *Service, dayID, eventType string) int {
	t.Helper()
	evs, err := srv.cfg.Database.EventsByDay(context.Background(), dayID)
	require.NoError(t, err)
	n := 0
	for _, ev := range evs {
		if ev.EventType == eventType {
			n++
		}
	}
	return n
}

func approxEqual(t *testing.T, want, got float64, msg string) {
	t.Helper()
	if math.Abs(want-got) > 1e-9 {
		t.Errorf("%s: got %v, wanted %v", msg, got, want)
	}
}

func TestNewService_RequiresDatabase(t *testing.T) {
	_, err := NewService(context.Background(), &Config{})
	require.ErrorContains(t, "requires a database", err)
	_, err = NewService(context.Background(), nil)
	require.ErrorContains(t, "requires a database", err)
}

func TestService_StopAndStatus(t *testing.T) {
	srv, _ := setupService(t)
	require.NoError(t, srv.Status())
	require.NoError(t, srv.Stop())
	select {
	case <-srv.ctx.Done():
	default:
		t.Fatal("service context not canceled after Stop")
	}
}
