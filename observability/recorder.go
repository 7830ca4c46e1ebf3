package observability

import "versechain/native/chain"

// EventRecorder bridges chain lifecycle events into Prometheus counters.
type EventRecorder struct{}

func (EventRecorder) RecordChainEvent(event chain.Event) {
	m := Chain()
	switch event.Type {
	case chain.EventChainCreated:
		m.RecordChainCreated(event.Verse)
	case chain.EventStepApplied, chain.EventChainDone:
		m.RecordStepApplied(event.Kind)
	case chain.EventStepFailed:
		m.RecordStepFailed(event.Kind)
	case chain.EventChainUnwound:
		m.RecordChainUnwound(event.Verse)
	}
}
