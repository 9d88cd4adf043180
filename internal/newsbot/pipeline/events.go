package pipeline

import (
	"sync"
	"sync/atomic"
)

// EventKind identifies a pipeline event.
type EventKind int

const (
	SweepStarted EventKind = iota
	SourceDone
	SweepDone
)

func (k EventKind) String() string {
	switch k {
	case SweepStarted:
		return "sweep_started"
	case SourceDone:
		return "source_done"
	case SweepDone:
		return "sweep_done"
	}
	return "unknown"
}

// Event is published to subscribers as a sweep progresses. Source is set for
// SourceDone. Sweep is set for SweepStarted, without sources, and for SweepDone.
type Event struct {
	Kind   EventKind
	RunID  string
	Source *SourceReport
	Sweep  *SweepReport
}

// bus fans events out to subscribers without ever blocking the pipeline.
type bus struct {
	mu      sync.RWMutex
	subs    map[int]chan Event
	next    int
	dropped atomic.Int64
}

func (b *bus) subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)
	b.mu.Lock()
	if b.subs == nil {
		b.subs = make(map[int]chan Event)
	}
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

func (b *bus) publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.dropped.Add(1)
		}
	}
}
