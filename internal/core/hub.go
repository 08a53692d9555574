package core

import "context"

// ReloadHub fans reload events out to live-reload subscribers.
// All subscriber bookkeeping happens on the Run goroutine.
type ReloadHub struct {
	register   chan *Subscriber
	unregister chan *Subscriber
	broadcast  chan ReloadEvent
	done       chan struct{}

	subscribers map[*Subscriber]struct{}
}

// NewHub creates a reload hub. Call Run to start it.
func NewHub() *ReloadHub {
	return &ReloadHub{
		register:    make(chan *Subscriber),
		unregister:  make(chan *Subscriber),
		broadcast:   make(chan ReloadEvent, 16),
		done:        make(chan struct{}),
		subscribers: make(map[*Subscriber]struct{}),
	}
}

// Run processes subscriptions and broadcasts until ctx is cancelled.
// Subscriber channels are closed when Run returns.
func (h *ReloadHub) Run(ctx context.Context) {
	defer func() {
		for sub := range h.subscribers {
			close(sub.Events)
			delete(h.subscribers, sub)
		}
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case sub := <-h.register:
			h.subscribers[sub] = struct{}{}
		case sub := <-h.unregister:
			if _, ok := h.subscribers[sub]; ok {
				close(sub.Events)
				delete(h.subscribers, sub)
			}
		case ev := <-h.broadcast:
			for sub := range h.subscribers {
				select {
				case sub.Events <- ev:
				default:
					// subscriber is behind; it will pick up the next event
				}
			}
		}
	}
}

// Subscribe registers a new subscriber.
func (h *ReloadHub) Subscribe(id string) (*Subscriber, error) {
	sub := NewSubscriber(id)
	select {
	case h.register <- sub:
		return sub, nil
	case <-h.done:
		return nil, ErrHubStopped
	}
}

// Unsubscribe removes sub and closes its event channel.
func (h *ReloadHub) Unsubscribe(sub *Subscriber) {
	select {
	case h.unregister <- sub:
	case <-h.done:
	}
}

// Publish queues ev for every current subscriber. It never blocks: when the
// queue is full or the hub has stopped the event is dropped.
func (h *ReloadHub) Publish(ev ReloadEvent) bool {
	select {
	case <-h.done:
		return false
	default:
	}
	select {
	case h.broadcast <- ev:
		return true
	default:
		return false
	}
}

// Done is closed once Run has returned.
func (h *ReloadHub) Done() <-chan struct{} {
	return h.done
}
