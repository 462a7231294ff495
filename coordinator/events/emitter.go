package events

import (
	"context"
	"sync"
	"time"

	"github.com/ai4all-network/coordinator/shared/timeutil"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// SequenceSource yields the next sequence number for a day. The store
// backs this so that an emitter switching to a day that already holds
// events (after a restart, or registrations trickling in after a
// finalize) continues the day's numbering instead of colliding.
type SequenceSource interface {
	NextSequence(ctx context.Context, dayID string) (int64, error)
}

// Emitter tracks the chain head and hands out event batches. Batches are
// built off to the side and only advance the emitter once the caller has
// durably appended them, so a failed write never leaves the chain
// pointing at events that do not exist.
type Emitter struct {
	lock     sync.Mutex
	seqSrc   SequenceSource
	prevHash string
	day      string
	nextSeq  int64
}

// NewEmitter returns an emitter chaining after prevHash. Pass GenesisHash
// for an empty log.
func NewEmitter(seqSrc SequenceSource, prevHash string) *Emitter {
	if prevHash == "" {
		prevHash = GenesisHash
	}
	return &Emitter{
		seqSrc:   seqSrc,
		prevHash: prevHash,
		nextSeq:  -1,
	}
}

// PrevHash returns the hash of the last committed event, or GenesisHash.
func (em *Emitter) PrevHash() string {
	em.lock.Lock()
	defer em.lock.Unlock()
	return em.prevHash
}

// Batch accumulates events that chain onto the emitter's head without
// moving it. Append the batch to the store first, then Commit.
type Batch struct {
	em       *Emitter
	events   []*Event
	prevHash string
	day      string
	nextSeq  int64
}

// Begin opens a new batch at the current chain position.
func (em *Emitter) Begin() *Batch {
	em.lock.Lock()
	defer em.lock.Unlock()
	return &Batch{
		em:       em,
		prevHash: em.prevHash,
		day:      em.day,
		nextSeq:  em.nextSeq,
	}
}

// Add builds, hashes and chains one event onto the batch.
func (b *Batch) Add(ctx context.Context, dayID, eventType, actorID string, payload map[string]interface{}, ts time.Time) (*Event, error) {
	if dayID != b.day || b.nextSeq < 0 {
		seq, err := b.em.seqSrc.NextSequence(ctx, dayID)
		if err != nil {
			return nil, errors.Wrapf(err, "could not determine next sequence for day %s", dayID)
		}
		b.day = dayID
		b.nextSeq = seq
	}
	if payload == nil {
		payload = map[string]interface{}{}
	}
	ev := &Event{
		EventID:        uuid.New().String(),
		DayID:          dayID,
		SequenceNumber: b.nextSeq,
		Timestamp:      timeutil.ISO(ts),
		EventType:      eventType,
		ActorID:        actorID,
		Payload:        payload,
		PrevEventHash:  b.prevHash,
	}
	h, err := ev.ComputeHash()
	if err != nil {
		return nil, errors.Wrap(err, "could not hash event")
	}
	ev.EventHash = h
	b.events = append(b.events, ev)
	b.prevHash = h
	b.nextSeq++
	return ev, nil
}

// Events returns the batch contents in emission order.
func (b *Batch) Events() []*Event {
	return b.events
}

// Empty reports whether the batch holds no events.
func (b *Batch) Empty() bool {
	return len(b.events) == 0
}

// Commit advances the emitter to the batch's chain position. Call only
// after the batch has been appended to the store.
func (em *Emitter) Commit(b *Batch) {
	if b.Empty() {
		return
	}
	em.lock.Lock()
	defer em.lock.Unlock()
	em.prevHash = b.prevHash
	em.day = b.day
	em.nextSeq = b.nextSeq
}
