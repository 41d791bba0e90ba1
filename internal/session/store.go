package session

import (
	"sync"
	"time"
)

// Store owns the activity and statistics tables for a fixed set of agents.
// Every registered agent has a record from construction onward; records
// are never added or removed. All mutation happens under one lock, so
// readers always see both tables at a consistent point.
type Store struct {
	mu     sync.RWMutex
	order  []string // registry order
	states map[string]*AgentState
	stats  map[string]*AgentStats
}

// NewStore creates a Store with an idle record for every agent. lastActive
// starts at now. Duplicate ids after the first are ignored.
func NewStore(agents []Agent, now time.Time) *Store {
	s := &Store{
		order:  make([]string, 0, len(agents)),
		states: make(map[string]*AgentState, len(agents)),
		stats:  make(map[string]*AgentStats, len(agents)),
	}
	for _, a := range agents {
		if _, dup := s.states[a.ID]; dup {
			continue
		}
		s.order = append(s.order, a.ID)
		s.states[a.ID] = &AgentState{
			ID:         a.ID,
			Name:       a.Name,
			State:      Idle,
			LastActive: now,
		}
		s.stats[a.ID] = newAgentStats(a)
	}
	return s
}

// Agents returns the registry in order.
func (s *Store) Agents() []Agent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]Agent, 0, len(s.order))
	for _, id := range s.order {
		st := s.states[id]
		result = append(result, Agent{ID: st.ID, Name: st.Name})
	}
	return result
}

// Known reports whether id is a registered agent.
func (s *Store) Known(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.states[id]
	return ok
}

// Apply reconciles one event into the tables. Events for unknown agents
// are dropped. It reports whether anything changed.
func (s *Store) Apply(ev Event, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.states[ev.AgentID]
	if !ok {
		return false
	}
	stats := s.stats[ev.AgentID]

	switch ev.Kind {
	case EventEnqueue:
		st.State = Working
		st.LastActive = now
		if ev.Task != "" {
			task := ev.Task
			st.CurrentTask = &task
		}
		stats.recordStart(now)
		return true

	case EventTaskDone:
		label := ev.Task
		if st.CurrentTask != nil {
			label = *st.CurrentTask
		}
		st.setIdle()
		st.LastActive = now
		stats.recordCompletion(label, now)
		return true
	}
	return false
}

// Sweep demotes working agents whose last event is older than maxInactive.
// It leaves LastActive and the stats untouched, since a missed task-done
// line is not a completed task. It returns the demoted ids.
func (s *Store) Sweep(now time.Time, maxInactive time.Duration) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var demoted []string
	for _, id := range s.order {
		st := s.states[id]
		if st.State != Working {
			continue
		}
		if now.Sub(st.LastActive) > maxInactive {
			st.setIdle()
			demoted = append(demoted, id)
		}
	}
	return demoted
}

// ResetStreak zeroes an agent's current streak. No gateway log line maps
// to a failure today, so nothing in the poll loop calls this.
func (s *Store) ResetStreak(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats, ok := s.stats[id]
	if !ok {
		return false
	}
	stats.resetStreak()
	return true
}

// States returns a copy of every agent's activity record in registry order.
func (s *Store) States() []AgentState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]AgentState, 0, len(s.order))
	for _, id := range s.order {
		result = append(result, s.states[id].Clone())
	}
	return result
}

func (s *Store) State(id string) (AgentState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[id]
	if !ok {
		return AgentState{}, false
	}
	return st.Clone(), true
}

// Stats returns a copy of every agent's statistics in registry order.
func (s *Store) Stats() []AgentStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]AgentStats, 0, len(s.order))
	for _, id := range s.order {
		result = append(result, s.stats[id].Clone())
	}
	return result
}

func (s *Store) StatsByID(id string) (AgentStats, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats, ok := s.stats[id]
	if !ok {
		return AgentStats{}, false
	}
	return stats.Clone(), true
}

// WorkingCount returns the number of agents currently working.
func (s *Store) WorkingCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, st := range s.states {
		if st.State == Working {
			n++
		}
	}
	return n
}
