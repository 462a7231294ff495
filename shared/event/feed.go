// Package event provides a typed one-to-many subscription feed used to fan
// out coordinator notifications (emitted event batches, day phase changes)
// to monitoring and caching consumers. Values sent to a Feed are delivered
// to all subscribed channels. A subscriber whose buffer is full is skipped
// rather than blocking the sender, so carrier channels should be buffered
// generously.
package event

import "sync"

// Subscription represents a stream of values. The carrier channel stops
// receiving when Unsubscribe is called.
type Subscription interface {
	Err() <-chan error
	Unsubscribe()
}

// Feed implements one-to-many subscriptions where the carrier of values is
// a channel. The zero value is ready to use.
type Feed[T any] struct {
	mu   sync.Mutex
	subs []*feedSub[T]
}

type feedSub[T any] struct {
	feed    *Feed[T]
	channel chan<- T
	errOnce sync.Once
	err     chan error
}

// Subscribe adds a channel to the feed. Future sends will be delivered on
// the channel until the subscription is canceled.
func (f *Feed[T]) Subscribe(channel chan<- T) Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub := &feedSub[T]{feed: f, channel: channel, err: make(chan error, 1)}
	f.subs = append(f.subs, sub)
	return sub
}

// Send delivers value to all subscribed channels and returns the number of
// subscribers that received it.
func (f *Feed[T]) Send(value T) (nsent int) {
	f.mu.Lock()
	subs := make([]*feedSub[T], len(f.subs))
	copy(subs, f.subs)
	f.mu.Unlock()

	for _, sub := range subs {
		select {
		case sub.channel <- value:
			nsent++
		default:
		}
	}
	return nsent
}

func (f *Feed[T]) remove(sub *feedSub[T]) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, s := range f.subs {
		if s == sub {
			f.subs = append(f.subs[:i], f.subs[i+1:]...)
			return
		}
	}
}

// Unsubscribe removes the subscription's channel from the feed.
func (sub *feedSub[T]) Unsubscribe() {
	sub.errOnce.Do(func() {
		sub.feed.remove(sub)
		close(sub.err)
	})
}

// Err returns a channel that is closed on unsubscribe.
func (sub *feedSub[T]) Err() <-chan error {
	return sub.err
}
