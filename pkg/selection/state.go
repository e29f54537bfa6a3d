// Package selection holds the state → district drill-down selection and
// enforces its cascade: choosing a higher level invalidates all lower levels.
package selection

import "sync"

// HierarchyLevel is one tier of the drill-down, in cascade order.
type HierarchyLevel int

const (
	Root HierarchyLevel = iota
	State
	District
)

func (l HierarchyLevel) String() string {
	switch l {
	case Root:
		return "root"
	case State:
		return "state"
	case District:
		return "district"
	}
	return "unknown"
}

// Selection is a value copy of the current choice.
// District is non-empty only if State is non-empty.
type Selection struct {
	State    string `json:"state"`
	District string `json:"district"`
}

// Level returns the deepest selected level.
func (s Selection) Level() HierarchyLevel {
	switch {
	case s.State == "":
		return Root
	case s.District == "":
		return State
	default:
		return District
	}
}

// Op identifies the mutation that produced a Change.
type Op int

const (
	OpSetState Op = iota + 1
	OpSetDistrict
	OpClear
)

func (o Op) String() string {
	switch o {
	case OpSetState:
		return "set_state"
	case OpSetDistrict:
		return "set_district"
	case OpClear:
		return "clear"
	}
	return "unknown"
}

// Change describes one accepted mutation.
type Change struct {
	Op   Op
	Prev Selection
	Cur  Selection
}

// Observer is called after every accepted mutation.
type Observer func(Change)

// SelectionState is the mutable selection container.
type SelectionState struct {
	mu        sync.RWMutex
	cur       Selection
	observers []Observer
}

// New returns an empty selection.
func New() *SelectionState {
	return &SelectionState{}
}

// Subscribe registers an observer for selection transitions.
func (s *SelectionState) Subscribe(fn Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// Current returns a copy of the selection.
func (s *SelectionState) Current() Selection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// CanSelectDistrict reports whether the district selector is enabled.
func (s *SelectionState) CanSelectDistrict() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur.State != ""
}

// SetState selects a state and always clears the district.
// This is the only path that resets the district.
func (s *SelectionState) SetState(value string) {
	s.update(OpSetState, func(sel *Selection) bool {
		sel.State = value
		sel.District = ""
		return true
	})
}

// SetDistrict selects a district. It is rejected (returns false, nothing changes)
// while no state is selected.
func (s *SelectionState) SetDistrict(value string) bool {
	return s.update(OpSetDistrict, func(sel *Selection) bool {
		if sel.State == "" {
			return false
		}
		sel.District = value
		return true
	})
}

// Clear resets both levels.
func (s *SelectionState) Clear() {
	s.update(OpClear, func(sel *Selection) bool {
		*sel = Selection{}
		return true
	})
}

func (s *SelectionState) update(op Op, mutate func(*Selection) bool) bool {
	s.mu.Lock()
	prev := s.cur
	if !mutate(&s.cur) {
		s.mu.Unlock()
		return false
	}
	cur := s.cur
	observers := append([]Observer(nil), s.observers...)
	s.mu.Unlock()

	ch := Change{Op: op, Prev: prev, Cur: cur}
	for _, fn := range observers {
		fn(ch)
	}
	return true
}
