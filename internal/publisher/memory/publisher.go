// Package memory provides an in-process publisher that records run events,
// used when no Pub/Sub topic is configured and for assertions in tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/appmeta-scraper/internal/scrape"
)

// PublishedEvent captures one published run event.
type PublishedEvent struct {
	Topic string
	Event scrape.RunEvent
}

// Publisher stores published run events for later inspection.
type Publisher struct {
	mu     sync.RWMutex
	events []PublishedEvent
}

// New returns an empty memory Publisher.
func New() *Publisher {
	return &Publisher{}
}

// Publish records the event and returns a sequence-numbered pseudo ID.
func (p *Publisher) Publish(_ context.Context, topic string, event scrape.RunEvent) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, PublishedEvent{Topic: topic, Event: event})
	return fmt.Sprintf("memory-%d", len(p.events)), nil
}

// Events returns a copy of the recorded events in publish order.
func (p *Publisher) Events() []PublishedEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]PublishedEvent, len(p.events))
	copy(out, p.events)
	return out
}

// RoundEvents returns only the round summaries, in publish order.
func (p *Publisher) RoundEvents() []scrape.RunEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]scrape.RunEvent, 0, len(p.events))
	for _, e := range p.events {
		if e.Event.Event == scrape.EventRoundDone {
			out = append(out, e.Event)
		}
	}
	return out
}
