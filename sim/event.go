package sim

import (
	"fmt"
	"sort"
	"time"
)

// Lifecycle phases of one time step, in execution order.
type Phase int

const (
	// PhasePrepare runs before state changes; components snapshot
	// previous-step state here.
	PhasePrepare Phase = iota
	// PhaseTimeStep runs the state changes: aging, transitions, deaths.
	PhaseTimeStep
	// PhaseCleanup runs after state changes settle.
	PhaseCleanup
	// PhaseCollectMetrics runs last; observers accumulate here.
	PhaseCollectMetrics
	numPhases
)

func (p Phase) String() string {
	switch p {
	case PhasePrepare:
		return "time_step__prepare"
	case PhaseTimeStep:
		return "time_step"
	case PhaseCleanup:
		return "time_step__cleanup"
	case PhaseCollectMetrics:
		return "collect_metrics"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Event carries the shared context of one step to every listener.
// Time is the instant the step completes; Dt is the step length in days.
type Event struct {
	Time time.Time
	Step int
	Dt   float64
}

// Listener is a per-phase callback.
type Listener func(ev Event)

// Listener priorities run 0 through 9; lower runs earlier. Listeners with
// equal priority run in registration order, which follows the component
// manifest, so execution order is deterministic.
const (
	PriorityFirst   = 0
	PriorityDefault = 5
	PriorityLast    = 9
)

type listenerEntry struct {
	priority int
	order    int
	fn       Listener
}

// EventBus dispatches step lifecycle events to registered listeners.
type EventBus struct {
	phases [numPhases][]listenerEntry
	sorted bool
}

// NewEventBus returns an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{}
}

// Listen registers a listener on a phase with the given priority.
func (b *EventBus) Listen(phase Phase, priority int, fn Listener) {
	if phase < 0 || phase >= numPhases {
		panic(fmt.Sprintf("sim: unknown phase %d", int(phase)))
	}
	if priority < PriorityFirst || priority > PriorityLast {
		panic(fmt.Sprintf("sim: listener priority %d outside [%d, %d]", priority, PriorityFirst, PriorityLast))
	}
	entries := b.phases[phase]
	b.phases[phase] = append(entries, listenerEntry{priority: priority, order: len(entries), fn: fn})
	b.sorted = false
}

// Fire invokes a phase's listeners in priority order.
func (b *EventBus) Fire(phase Phase, ev Event) {
	if !b.sorted {
		b.sort()
	}
	for _, e := range b.phases[phase] {
		e.fn(ev)
	}
}

func (b *EventBus) sort() {
	for p := range b.phases {
		entries := b.phases[p]
		sort.SliceStable(entries, func(i, j int) bool {
			if entries[i].priority != entries[j].priority {
				return entries[i].priority < entries[j].priority
			}
			return entries[i].order < entries[j].order
		})
	}
	b.sorted = true
}
