// Package netmon tracks backend reachability and publishes transition events.
// The monitor itself is passive: one or more signal sources (HTTP probe,
// websocket heartbeat) feed observations into SetOnline, and the monitor
// emits an event only when the state actually flips. Subscribers therefore
// see transitions, never raw connectivity samples.
package netmon

import (
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// State is the current reachability plus the time of the last transition.
type State struct {
	Online bool
	Since  time.Time
}

// Event is a single reachability transition.
type Event struct {
	Online bool
	At     time.Time
}

// subscriber buffer size. Publishing never blocks; if a subscriber falls
// this far behind, newer transitions are dropped for it with a warning.
const eventBuffer = 8

// Monitor holds the single current network state and fans transition
// events out to subscribers.
type Monitor struct {
	clock  clockwork.Clock
	logger *slog.Logger

	mu     sync.Mutex
	state  State
	subs   map[int]chan Event
	nextID int
}

// New creates a Monitor that starts optimistically online: the first
// request should attempt the network rather than queue on a cold start.
func New(logger *slog.Logger) *Monitor {
	return NewWithClock(clockwork.NewRealClock(), logger)
}

// NewWithClock is New with an injectable clock for deterministic tests.
func NewWithClock(clock clockwork.Clock, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}

	return &Monitor{
		clock:  clock,
		logger: logger,
		state:  State{Online: true, Since: clock.Now()},
		subs:   make(map[int]chan Event),
	}
}

// State returns the current reachability state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state
}

// SetOnline records a connectivity observation. Repeated observations of
// the unchanged state are absorbed here — only a genuine flip produces an
// event, which is the transition-boundary debounce the offline queue
// depends on to avoid redundant drains from flapping signals.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()

	if m.state.Online == online {
		m.mu.Unlock()
		return
	}

	now := m.clock.Now()
	m.state = State{Online: online, Since: now}
	ev := Event{Online: online, At: now}

	subs := make([]chan Event, 0, len(m.subs))
	for _, ch := range m.subs {
		subs = append(subs, ch)
	}
	m.mu.Unlock()

	m.logger.Info("network state changed", slog.Bool("online", online))

	for _, ch := range subs {
		select {
		case ch <- ev:
		default:
			m.logger.Warn("dropping network event for slow subscriber",
				slog.Bool("online", online))
		}
	}
}

// Subscribe registers a transition listener. The returned cancel function
// removes the subscription and closes the channel.
func (m *Monitor) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, eventBuffer)

	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = ch
	m.mu.Unlock()

	cancel := func() {
		m.mu.Lock()
		if _, ok := m.subs[id]; ok {
			delete(m.subs, id)
			close(ch)
		}
		m.mu.Unlock()
	}

	return ch, cancel
}
