package core

// Subscriber receives reload events from a ReloadHub.
type Subscriber struct {
	ID     string
	Events chan ReloadEvent
}

// NewSubscriber constructs a subscriber with a small event buffer.
func NewSubscriber(id string) *Subscriber {
	return &Subscriber{
		ID:     id,
		Events: make(chan ReloadEvent, 4),
	}
}
