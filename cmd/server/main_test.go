package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/PolarJunction/AgentOffice/internal/config"
	"github.com/PolarJunction/AgentOffice/internal/session"
)

const sampleLog = `2026-01-30T10:00:00Z lane enqueue: lane=session:agent:nova:cron:abc queueSize=1
2026-01-30T10:00:01Z lane task done: lane=session:agent:nova:cron:abc durationMs=1200
{"1":"lane enqueue: lane=session:agent:zero-cron-9f9f","_meta":{"path":{"method":"logToFile"}}}
lane enqueue: lane=cron queueSize=1
lane enqueue: lane=session:agent:ghost:main
[gateway] heartbeat ok
`

func writeSample(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gw.log")
	if err := os.WriteFile(path, []byte(sampleLog), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRegistry(t *testing.T) {
	cfg := config.Default()
	if got := registry(cfg); len(got) != len(session.DefaultAgents) {
		t.Errorf("default registry has %d agents, want %d", len(got), len(session.DefaultAgents))
	}

	cfg.Agents = []config.AgentConfig{{ID: "nova", Name: "Nova"}, {ID: "solo"}}
	got := registry(cfg)
	if len(got) != 2 || got[1].Name != "solo" {
		t.Errorf("registry = %+v, want configured agents with id as fallback name", got)
	}
}

func TestLoadConfigMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "none.yaml")

	if _, err := loadConfig(path, false); err != nil {
		t.Errorf("implicit missing config: %v", err)
	}
	if _, err := loadConfig(path, true); err == nil {
		t.Error("explicit missing config returned no error")
	}
}

func TestReplayFile(t *testing.T) {
	store, events, err := replayFile(writeSample(t), session.DefaultAgents, time.Now())
	if err != nil {
		t.Fatalf("replayFile: %v", err)
	}
	if events != 5 {
		t.Errorf("events = %d, want 5", events)
	}

	nova, _ := store.StatsByID("nova")
	if nova.TasksCompleted != 1 || nova.FavoriteActivity != "cron" {
		t.Errorf("nova stats = %+v", nova)
	}
	zero, _ := store.State("zero")
	if zero.State != session.Working {
		t.Errorf("zero state = %s, want working", zero.State)
	}
}

func TestReplayFileMissing(t *testing.T) {
	if _, _, err := replayFile(filepath.Join(t.TempDir(), "none.log"), session.DefaultAgents, time.Now()); err == nil {
		t.Error("replay of a missing file returned no error")
	}
}

func TestReplayCommand(t *testing.T) {
	path := writeSample(t)

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"replay", path, "--config", filepath.Join(t.TempDir(), "none.yaml")})

	// An explicit but missing config is an error.
	if err := cmd.Execute(); err == nil {
		t.Fatal("replay with a missing explicit config succeeded")
	}

	out.Reset()
	cmd = newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"replay", path})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("replay: %v", err)
	}
	for _, want := range []string{"Nova", "Zero-1", "working", "cron", "5 lane events"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("replay output missing %q:\n%s", want, out.String())
		}
	}
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out.String(), "agentoffice") {
		t.Errorf("version output = %q", out.String())
	}
}
