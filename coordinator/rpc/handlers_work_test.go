package rpc

import (
	"net/http"
	"testing"

	"github.com/ai4all-network/coordinator/coordinator/day"
	"github.com/ai4all-network/coordinator/coordinator/state"
	"github.com/ai4all-network/coordinator/shared/testutil/assert"
	"github.com/ai4all-network/coordinator/shared/testutil/require"
)

func TestRequestWork_RequiresActiveDay(t *testing.T) {
	e := setupServer(t)
	a := newTestAccount(t)
	e.register(t, a)

	w := e.do(t, http.MethodPost, "/work/request", &WorkRequest{AuthFields: a.auth(e)})
	checkStatus(t, http.StatusConflict, w)
	assert.Equal(t, ReasonDayNotStarted, errorReason(t, w))
}

func TestRequestWork_ReturnsAssignment(t *testing.T) {
	e := setupServer(t)
	a := newTestAccount(t)
	e.register(t, a)
	start := e.startDay(t)

	res := e.workFor(t, a)
	assert.Equal(t, start.DayID, res.DayID)
	assert.Equal(t, true, res.Assigned)
	require.NotNil(t, res.Assignment)
	assert.Equal(t, a.id, res.Assignment.ContributorID)
	assert.Equal(t, start.TotalBlocks, len(res.Assignment.BlockIDs))
	assert.Equal(t, 3, res.Assignment.BatchNumber)
}

func TestRequestWork_RosterLocked(t *testing.T) {
	e := setupServer(t)
	a := newTestAccount(t)
	e.register(t, a)
	e.startDay(t)

	// Registering after the roster locked is fine, but work starts
	// tomorrow.
	late := newTestAccount(t)
	e.register(t, late)
	res := e.workFor(t, late)
	assert.Equal(t, false, res.Assigned)
	assert.Equal(t, day.ReasonRosterLocked, res.Reason)
	assert.Equal(t, true, res.Assignment == nil)
}

func TestRequestWork_DayMismatch(t *testing.T) {
	e := setupServer(t)
	a := newTestAccount(t)
	e.register(t, a)
	e.startDay(t)

	w := e.do(t, http.MethodPost, "/work/request", &WorkRequest{
		AuthFields: a.auth(e),
		DayID:      "2026-02-02",
	})
	checkStatus(t, http.StatusConflict, w)
	assert.Equal(t, ReasonDayMismatch, errorReason(t, w))
}

func TestSubmitWork_AcceptsAssignedBlocks(t *testing.T) {
	e := setupServer(t)
	a := newTestAccount(t)
	e.register(t, a)
	e.startDay(t)

	res := e.submitAll(t, a)
	require.Equal(t, 6, len(res.Results))
	canaries := 0
	for _, o := range res.Results {
		assert.Equal(t, true, o.Accepted, "block %s rejected: %s", o.BlockID, o.Reason)
		if o.CanaryDetected {
			assert.Equal(t, true, o.CanaryPassed)
			canaries++
		}
	}
	assert.Equal(t, 1, canaries)
}

func TestSubmitWork_IdempotentRetries(t *testing.T) {
	e := setupServer(t)
	a := newTestAccount(t)
	e.register(t, a)
	e.startDay(t)
	work := e.workFor(t, a)

	// A worker retrying a delivery gets byte-identical outcomes and the
	// duplicate is not double counted.
	blockID := work.Assignment.BlockIDs[0]
	first := e.submitBlocks(t, a, []string{blockID})
	for i := 0; i < 2; i++ {
		again := e.submitBlocks(t, a, []string{blockID})
		require.DeepEqual(t, first, again)
	}

	st := e.day.DayStatus()
	assert.Equal(t, 1, st.PendingSubmissions)
}

func TestSubmitWork_RequiresSubmissions(t *testing.T) {
	e := setupServer(t)
	a := newTestAccount(t)
	e.register(t, a)
	e.startDay(t)

	w := e.do(t, http.MethodPost, "/work/submit", &SubmitWorkRequest{AuthFields: a.auth(e)})
	checkStatus(t, http.StatusBadRequest, w)
}

func TestSubmitWork_RequiresAuth(t *testing.T) {
	e := setupServer(t)
	a := newTestAccount(t)

	// Never registered: the coordinator has no key to verify against.
	w := e.do(t, http.MethodPost, "/work/submit", &SubmitWorkRequest{
		AuthFields:  a.auth(e),
		Submissions: []*state.BlockSubmission{goodBlock("blk")},
	})
	checkStatus(t, http.StatusUnauthorized, w)
}

func TestSubmitWork_RequiresActiveDay(t *testing.T) {
	e := setupServer(t)
	a := newTestAccount(t)
	e.register(t, a)

	w := e.do(t, http.MethodPost, "/work/submit", &SubmitWorkRequest{
		AuthFields:  a.auth(e),
		Submissions: []*state.BlockSubmission{goodBlock("blk")},
	})
	checkStatus(t, http.StatusConflict, w)
	assert.Equal(t, ReasonDayNotStarted, errorReason(t, w))
}

func TestSubmitWork_UnassignedBlockRejected(t *testing.T) {
	e := setupServer(t)
	a := newTestAccount(t)
	e.register(t, a)
	e.startDay(t)

	res := e.submitBlocks(t, a, []string{"2026-01-28-blk-9999"})
	require.Equal(t, 1, len(res.Results))
	assert.Equal(t, false, res.Results[0].Accepted)
	assert.NotEqual(t, "", res.Results[0].Reason)
}
