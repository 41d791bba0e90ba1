package session

import "time"

// AgentStats is the productivity record for one registered agent. It lives
// for the process lifetime; nothing is persisted.
type AgentStats struct {
	ID               string         `json:"id"`
	Name             string         `json:"name"`
	TasksCompleted   int            `json:"tasksCompleted"`
	CurrentStreak    int            `json:"currentStreak"`
	BestStreak       int            `json:"bestStreak"`
	TimeWorkedToday  float64        `json:"timeWorkedToday"` // seconds
	ActivityCounts   map[string]int `json:"activityCounts"`
	FavoriteActivity string         `json:"favoriteActivity,omitempty"`
	LastTaskStart    *time.Time     `json:"lastTaskStart,omitempty"`

	// workedDay is the local date TimeWorkedToday accumulates for.
	workedDay string
}

func newAgentStats(a Agent) *AgentStats {
	return &AgentStats{
		ID:             a.ID,
		Name:           a.Name,
		ActivityCounts: make(map[string]int),
	}
}

// Clone returns a deep copy with the map and pointer fields duplicated.
func (st *AgentStats) Clone() AgentStats {
	c := *st
	c.ActivityCounts = make(map[string]int, len(st.ActivityCounts))
	for k, v := range st.ActivityCounts {
		c.ActivityCounts[k] = v
	}
	if st.LastTaskStart != nil {
		t := *st.LastTaskStart
		c.LastTaskStart = &t
	}
	return c
}

// recordStart marks the start of a task unless one is already in progress.
func (st *AgentStats) recordStart(now time.Time) bool {
	if st.LastTaskStart != nil {
		return false
	}
	t := now
	st.LastTaskStart = &t
	return true
}

// recordCompletion applies task completion accounting. label may be empty.
func (st *AgentStats) recordCompletion(label string, now time.Time) {
	st.TasksCompleted++
	st.CurrentStreak++
	if st.CurrentStreak > st.BestStreak {
		st.BestStreak = st.CurrentStreak
	}

	if st.LastTaskStart != nil {
		day := now.Local().Format("2006-01-02")
		if st.workedDay != day {
			st.TimeWorkedToday = 0
			st.workedDay = day
		}
		if d := now.Sub(*st.LastTaskStart); d > 0 {
			st.TimeWorkedToday += d.Seconds()
		}
		st.LastTaskStart = nil
	}

	if label == "" {
		return
	}
	st.ActivityCounts[label]++
	// Strictly greater: on a tie the earlier favorite stays.
	if st.FavoriteActivity == "" || st.ActivityCounts[label] > st.ActivityCounts[st.FavoriteActivity] {
		st.FavoriteActivity = label
	}
}

// resetStreak zeroes the current streak. BestStreak is kept.
func (st *AgentStats) resetStreak() {
	st.CurrentStreak = 0
}
