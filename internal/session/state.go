package session

import (
	"encoding/json"
	"time"
)

type State int

const (
	Idle State = iota
	Working
)

var stateNames = map[State]string{
	Idle:    "idle",
	Working: "working",
}

var stateFromName = map[string]State{
	"idle":    Idle,
	"working": Working,
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "unknown"
}

func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *State) UnmarshalJSON(data []byte) error {
	var n string
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	if v, ok := stateFromName[n]; ok {
		*s = v
	}
	return nil
}

// AgentState is the live activity record for one registered agent.
// CurrentTask is nil unless State is Working.
type AgentState struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	State       State     `json:"state"`
	CurrentTask *string   `json:"currentTask"`
	LastActive  time.Time `json:"lastActive"`
}

// Clone returns a deep copy of the AgentState.
func (a *AgentState) Clone() AgentState {
	c := *a
	if a.CurrentTask != nil {
		task := *a.CurrentTask
		c.CurrentTask = &task
	}
	return c
}

func (a *AgentState) IsWorking() bool {
	return a.State == Working
}

// setIdle demotes the agent and clears its task, keeping the invariant
// that only working agents carry a task.
func (a *AgentState) setIdle() {
	a.State = Idle
	a.CurrentTask = nil
}
