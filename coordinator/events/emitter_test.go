package events

import (
	"context"
	"testing"
	"time"

	"github.com/ai4all-network/coordinator/shared/testutil/assert"
	"github.com/ai4all-network/coordinator/shared/testutil/require"
)

// stubSeqSource hands out sequence numbers from a fixed table, defaulting
// to zero for unseen days.
type stubSeqSource struct {
	next map[string]int64
}

func (s *stubSeqSource) NextSequence(_ context.Context, dayID string) (int64, error) {
	if s.next == nil {
		return 0, nil
	}
	return s.next[dayID], nil
}

func TestEmitter_BatchChainsFromGenesis(t *testing.T) {
	ctx := context.Background()
	em := NewEmitter(&stubSeqSource{}, "")
	ts := time.Date(2026, 1, 28, 9, 0, 0, 0, time.UTC)

	b := em.Begin()
	first, err := b.Add(ctx, "2026-01-28", TypeNodeRegistered, "ai4a0a", NodeRegisteredPayload("ai4a0a", "deadbeef"), ts)
	require.NoError(t, err)
	second, err := b.Add(ctx, "2026-01-28", TypeNodeRegistered, "ai4a0b", NodeRegisteredPayload("ai4a0b", "deadbeef"), ts)
	require.NoError(t, err)

	assert.Equal(t, GenesisHash, first.PrevEventHash)
	assert.Equal(t, int64(0), first.SequenceNumber)
	assert.Equal(t, first.EventHash, second.PrevEventHash)
	assert.Equal(t, int64(1), second.SequenceNumber)
	assert.Equal(t, "2026-01-28T09:00:00.000Z", first.Timestamp)
	require.NoError(t, VerifyChain(b.Events(), GenesisHash))
}

func TestEmitter_CommitAdvancesHead(t *testing.T) {
	ctx := context.Background()
	em := NewEmitter(&stubSeqSource{}, "")
	ts := time.Now().UTC()

	b := em.Begin()
	ev, err := b.Add(ctx, "2026-01-28", TypeNodeRegistered, "ai4a0a", NodeRegisteredPayload("ai4a0a", "deadbeef"), ts)
	require.NoError(t, err)

	// Not yet committed: a fresh batch still chains from genesis.
	assert.Equal(t, GenesisHash, em.PrevHash())

	em.Commit(b)
	assert.Equal(t, ev.EventHash, em.PrevHash())

	b2 := em.Begin()
	next, err := b2.Add(ctx, "2026-01-28", TypeNodeRegistered, "ai4a0b", NodeRegisteredPayload("ai4a0b", "deadbeef"), ts)
	require.NoError(t, err)
	assert.Equal(t, ev.EventHash, next.PrevEventHash)
	assert.Equal(t, int64(1), next.SequenceNumber)
}

func TestEmitter_DiscardedBatchLeavesChainIntact(t *testing.T) {
	ctx := context.Background()
	em := NewEmitter(&stubSeqSource{}, "")
	ts := time.Now().UTC()

	b := em.Begin()
	_, err := b.Add(ctx, "2026-01-28", TypeNodeRegistered, "ai4a0a", NodeRegisteredPayload("ai4a0a", "deadbeef"), ts)
	require.NoError(t, err)
	// Simulate an append failure by dropping the batch on the floor.

	b2 := em.Begin()
	ev, err := b2.Add(ctx, "2026-01-28", TypeNodeRegistered, "ai4a0a", NodeRegisteredPayload("ai4a0a", "deadbeef"), ts)
	require.NoError(t, err)
	assert.Equal(t, GenesisHash, ev.PrevEventHash)
	assert.Equal(t, int64(0), ev.SequenceNumber)
}

func TestEmitter_SequenceRestartsPerDay(t *testing.T) {
	ctx := context.Background()
	em := NewEmitter(&stubSeqSource{}, "")
	ts := time.Now().UTC()

	b := em.Begin()
	_, err := b.Add(ctx, "2026-01-28", TypeNodeRegistered, "ai4a0a", NodeRegisteredPayload("ai4a0a", "deadbeef"), ts)
	require.NoError(t, err)
	_, err = b.Add(ctx, "2026-01-28", TypeNodeRegistered, "ai4a0b", NodeRegisteredPayload("ai4a0b", "deadbeef"), ts)
	require.NoError(t, err)
	em.Commit(b)

	b2 := em.Begin()
	ev, err := b2.Add(ctx, "2026-01-29", TypeRosterLocked, "", map[string]interface{}{}, ts)
	require.NoError(t, err)
	assert.Equal(t, int64(0), ev.SequenceNumber)
	assert.Equal(t, em.PrevHash(), ev.PrevEventHash)
}

func TestEmitter_ResumesDaySequenceFromStore(t *testing.T) {
	// After a restart the store already holds events for the day; the
	// emitter must continue its numbering, not collide at zero.
	ctx := context.Background()
	em := NewEmitter(&stubSeqSource{next: map[string]int64{"2026-01-28": 7}}, "deadbeef")
	ts := time.Now().UTC()

	b := em.Begin()
	ev, err := b.Add(ctx, "2026-01-28", TypeNodeRegistered, "ai4a0a", NodeRegisteredPayload("ai4a0a", "deadbeef"), ts)
	require.NoError(t, err)
	assert.Equal(t, int64(7), ev.SequenceNumber)
	assert.Equal(t, "deadbeef", ev.PrevEventHash)
}

func TestEvent_CheckHashDetectsTampering(t *testing.T) {
	ctx := context.Background()
	em := NewEmitter(&stubSeqSource{}, "")
	b := em.Begin()
	ev, err := b.Add(ctx, "2026-01-28", TypeNodeRegistered, "ai4a0a", NodeRegisteredPayload("ai4a0a", "deadbeef"), time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, ev.CheckHash())

	ev.Payload["accountId"] = "ai4a0b"
	require.ErrorContains(t, "hash mismatch", ev.CheckHash())
}

func TestVerifyChain_Failures(t *testing.T) {
	ctx := context.Background()
	ts := time.Now().UTC()
	build := func() []*Event {
		em := NewEmitter(&stubSeqSource{}, "")
		b := em.Begin()
		for _, id := range []string{"ai4a0a", "ai4a0b", "ai4a0c"} {
			_, err := b.Add(ctx, "2026-01-28", TypeNodeRegistered, id, NodeRegisteredPayload(id, "deadbeef"), ts)
			require.NoError(t, err)
		}
		return b.Events()
	}

	t.Run("valid", func(t *testing.T) {
		require.NoError(t, VerifyChain(build(), GenesisHash))
	})
	t.Run("wrong starting point", func(t *testing.T) {
		require.ErrorContains(t, "chains to", VerifyChain(build(), "deadbeef"))
	})
	t.Run("broken link", func(t *testing.T) {
		evs := build()
		evs[1].PrevEventHash = "deadbeef"
		// The hash no longer matches once prevEventHash is edited.
		require.ErrorContains(t, "hash mismatch", VerifyChain(evs, GenesisHash))
	})
	t.Run("dropped event", func(t *testing.T) {
		evs := build()
		require.ErrorContains(t, "chains to", VerifyChain([]*Event{evs[0], evs[2]}, GenesisHash))
	})
	t.Run("unknown starting point accepted when unset", func(t *testing.T) {
		evs := build()
		require.NoError(t, VerifyChain(evs[1:], ""))
	})
}
