package handlertest

import (
	"context"
	"sync"

	"opencanvas-service/events"
	"opencanvas-service/model"
)

var _ events.Publisher = (*Events)(nil)

// Views is a handler.ViewGate with a fixed answer.
type Views struct {
	mu     sync.Mutex
	OK     bool
	Reason string
	Err    error
	calls  int
}

func (f *Views) Allow(context.Context, string, string) (bool, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.OK, f.Reason, f.Err
}

func (f *Views) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// Events records every published engagement event.
type Events struct {
	mu     sync.Mutex
	events []model.EngagementEvent
}

func (r *Events) Publish(_ context.Context, ev model.EngagementEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

// Kinds lists the kinds of the recorded events in publish order.
func (r *Events) Kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, ev := range r.events {
		out = append(out, ev.Kind)
	}
	return out
}
