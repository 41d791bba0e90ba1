package session

import (
	"encoding/json"
	"testing"
	"time"
)

func TestStateMarshalJSON(t *testing.T) {
	tests := []struct {
		state    State
		expected string
	}{
		{Idle, `"idle"`},
		{Working, `"working"`},
	}

	for _, tt := range tests {
		data, err := json.Marshal(tt.state)
		if err != nil {
			t.Errorf("Marshal(%v) error: %v", tt.state, err)
			continue
		}
		if string(data) != tt.expected {
			t.Errorf("Marshal(%v) = %s, want %s", tt.state, data, tt.expected)
		}
	}
}

func TestStateUnmarshalJSON(t *testing.T) {
	tests := []struct {
		input    string
		expected State
	}{
		{`"idle"`, Idle},
		{`"working"`, Working},
		{`"bogus"`, Idle},
	}

	for _, tt := range tests {
		var s State
		if err := json.Unmarshal([]byte(tt.input), &s); err != nil {
			t.Errorf("Unmarshal(%s) error: %v", tt.input, err)
			continue
		}
		if s != tt.expected {
			t.Errorf("Unmarshal(%s) = %v, want %v", tt.input, s, tt.expected)
		}
	}
}

func TestAgentStateJSONFields(t *testing.T) {
	last := time.Date(2026, 1, 30, 10, 0, 0, 0, time.UTC)
	s := AgentState{ID: "nova", Name: "Nova", State: Idle, LastActive: last}

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal to map error: %v", err)
	}
	for _, field := range []string{"id", "name", "state", "currentTask", "lastActive"} {
		if _, ok := raw[field]; !ok {
			t.Errorf("JSON missing %q field: %s", field, data)
		}
	}
	if raw["currentTask"] != nil {
		t.Errorf("currentTask = %v, want null for idle agent", raw["currentTask"])
	}
	if raw["state"] != "idle" {
		t.Errorf("state = %v, want idle", raw["state"])
	}
	if raw["lastActive"] != "2026-01-30T10:00:00Z" {
		t.Errorf("lastActive = %v, want RFC 3339 timestamp", raw["lastActive"])
	}
}

func TestAgentStateClone(t *testing.T) {
	task := "cron"
	s := &AgentState{ID: "nova", State: Working, CurrentTask: &task}

	c := s.Clone()
	*c.CurrentTask = "mutated"

	if *s.CurrentTask != "cron" {
		t.Error("Clone did not deep-copy CurrentTask; mutation leaked into original")
	}
}

func TestSetIdleClearsTask(t *testing.T) {
	task := "cron"
	s := &AgentState{ID: "nova", State: Working, CurrentTask: &task}
	s.setIdle()

	if s.IsWorking() {
		t.Error("setIdle left agent working")
	}
	if s.CurrentTask != nil {
		t.Error("setIdle left a current task on an idle agent")
	}
}
