package core

import (
	"testing"
	"time"
)

func mustEvent(t *testing.T, ch <-chan ReloadEvent) ReloadEvent {
	t.Helper()

	select {
	case ev, ok := <-ch:
		if !ok {
			t.Fatalf("event channel closed")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("expected reload event not received")
	}
	return ReloadEvent{}
}

func mustClose(t *testing.T, ch <-chan ReloadEvent) {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatalf("event channel not closed")
		}
	}
}
