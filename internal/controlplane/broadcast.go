package controlplane

import (
	"context"
	"sync"
	"time"

	"github.com/dxgicapture/service/internal/workerpool"
)

// subscriber is one connected client's delivery channel.
type subscriber struct {
	id   uint64
	pool *workerpool.Pool
	send func(Event)
}

// Broadcaster fans Event notifications out to every subscribed client except
// the one whose command caused the event (matching the original's
// `client_id == id` self-origin skip in ipc.rs).
type Broadcaster struct {
	mu        sync.Mutex
	nextID    uint64
	subs      map[uint64]*subscriber
	queueSize int
	workers   int
}

// NewBroadcaster returns an empty Broadcaster. queueSize bounds how many
// pending sends each subscriber can have outstanding before new ones are
// dropped for that subscriber: tokio's broadcast channel deals with a slow
// receiver by advancing past it and handing back a Lagged error on its next
// recv, and a bounded per-client worker pool queue is the Go-idiomatic
// substitute, dropping the event for that one client instead of
// disconnecting every other subscriber. workers bounds the size of each
// subscriber's own delivery pool (§4.6 BroadcastWorkers).
func NewBroadcaster(queueSize, workers int) *Broadcaster {
	if queueSize < 1 {
		queueSize = 1
	}
	if workers < 1 {
		workers = 1
	}
	return &Broadcaster{
		subs:      make(map[uint64]*subscriber),
		queueSize: queueSize,
		workers:   workers,
	}
}

// Subscribe registers send as the delivery function for a new client and
// returns its id (to pass as origin on that client's own commands) and an
// unsubscribe func to call when the connection closes.
func (b *Broadcaster) Subscribe(send func(Event)) (id uint64, unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id = b.nextID
	sub := &subscriber{
		id:   id,
		pool: workerpool.New(b.workers, b.queueSize),
		send: send,
	}
	b.subs[id] = sub

	return id, func() { b.unsubscribe(id) }
}

func (b *Broadcaster) unsubscribe(id uint64) {
	b.mu.Lock()
	sub, ok := b.subs[id]
	delete(b.subs, id)
	b.mu.Unlock()

	if ok {
		sub.pool.StopAccepting()
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			sub.pool.Drain(ctx)
		}()
	}
}

// Publish delivers event to every subscriber except origin. Each delivery
// runs on that subscriber's own worker pool so one slow client's connection
// cannot block delivery to any other client.
func (b *Broadcaster) Publish(origin uint64, event Event) {
	b.mu.Lock()
	targets := make([]*subscriber, 0, len(b.subs))
	for id, sub := range b.subs {
		if id == origin {
			continue
		}
		targets = append(targets, sub)
	}
	b.mu.Unlock()

	for _, sub := range targets {
		sub := sub
		if !sub.pool.Submit(func() { sub.send(event) }) {
			log.Warn("broadcast queue full, event dropped for subscriber", "subscriber_id", sub.id)
		}
	}
}
