package mock

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/PolarJunction/AgentOffice/internal/config"
)

// laneKinds are the lane segments the gateway appends after the agent id.
var laneKinds = []string{"main", "cron", "subagent", "heartbeat"}

var noiseLines = []string{
	"[gateway] heartbeat ok",
	"[ws] client connected id=%d",
	"[telegram] poll returned 0 updates",
	"[gateway] model request tokens=%d",
}

// mockAgent tracks one agent's synthetic lane.
type mockAgent struct {
	id     string
	token  string // lane token written to the log, e.g. "zero-cron-ab12"
	kind   string
	busy   bool
	doneAt int // tick at which the running task finishes
}

// Generator appends synthetic gateway lane lines to a log file so the
// whole tail pipeline can run without a gateway.
type Generator struct {
	pattern  string
	interval time.Duration

	mu     sync.Mutex
	rng    *rand.Rand
	agents []*mockAgent
	tick   int
}

// NewGenerator writes to pattern, which may contain {date}, one step every
// interval. seed makes the sequence of lines reproducible.
func NewGenerator(pattern string, agentIDs []string, interval time.Duration, seed int64) *Generator {
	g := &Generator{
		pattern:  pattern,
		interval: interval,
		rng:      rand.New(rand.NewSource(seed)),
	}
	for _, id := range agentIDs {
		g.agents = append(g.agents, &mockAgent{id: id})
	}
	return g
}

func (g *Generator) Start(ctx context.Context) {
	go g.run(ctx)
}

func (g *Generator) run(ctx context.Context) {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if _, err := g.Step(now); err != nil {
				log.Printf("[mock] %v", err)
			}
		}
	}
}

// Step advances every agent by one tick and appends the resulting lines.
// It returns the lines written.
func (g *Generator) Step(now time.Time) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.tick++
	var lines []string
	for _, a := range g.agents {
		switch {
		case a.busy && g.tick >= a.doneAt:
			a.busy = false
			msg := fmt.Sprintf("lane task done: lane=%s durationMs=%d", g.lane(a), g.rng.Intn(60000)+500)
			lines = append(lines, g.format(now, msg))
		case !a.busy && g.rng.Float64() < 0.3:
			g.assignTask(a)
			msg := fmt.Sprintf("lane enqueue: lane=%s queueSize=%d", g.lane(a), g.rng.Intn(3)+1)
			lines = append(lines, g.format(now, msg))
		}
	}
	if g.rng.Float64() < 0.1 {
		lines = append(lines, g.format(now, "lane enqueue: lane=cron queueSize=1"))
	}
	if g.rng.Float64() < 0.5 {
		lines = append(lines, g.format(now, g.noise()))
	}

	if len(lines) == 0 {
		return nil, nil
	}
	if err := g.appendLines(config.ResolveLogPath(g.pattern, now), lines); err != nil {
		return nil, err
	}
	return lines, nil
}

func (g *Generator) assignTask(a *mockAgent) {
	a.busy = true
	a.doneAt = g.tick + 1 + g.rng.Intn(5)
	a.kind = laneKinds[g.rng.Intn(len(laneKinds))]
	a.token = a.id
	// Cron runs sometimes show up as "<agent>-cron-<run id>" with no kind.
	if a.kind == "cron" && g.rng.Intn(2) == 0 {
		a.token = fmt.Sprintf("%s-cron-%06x", a.id, g.rng.Intn(1<<24))
		a.kind = ""
	}
}

func (g *Generator) lane(a *mockAgent) string {
	lane := "session:agent:" + a.token
	if a.kind != "" {
		lane += ":" + a.kind + fmt.Sprintf(":%04x", g.rng.Intn(1<<16))
	}
	return lane
}

func (g *Generator) noise() string {
	line := noiseLines[g.rng.Intn(len(noiseLines))]
	if strings.Contains(line, "%d") {
		line = fmt.Sprintf(line, g.rng.Intn(5000))
	}
	return line
}

// format renders msg either as a plain timestamped line or as the JSON
// envelope the gateway's file logger writes.
func (g *Generator) format(now time.Time, msg string) string {
	ts := now.UTC().Format("2006-01-02T15:04:05.000Z")
	if g.rng.Intn(2) == 0 {
		return ts + " " + msg
	}
	env := map[string]interface{}{
		"0":     `{"subsystem":"gateway/lanes"}`,
		"1":     msg,
		"_meta": map[string]interface{}{"path": map[string]string{"method": "logToFile"}, "date": ts},
		"time":  ts,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return ts + " " + msg
	}
	return string(data)
}

func (g *Generator) appendLines(path string, lines []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.WriteString(strings.Join(lines, "\n") + "\n"); err != nil {
		return fmt.Errorf("appending to %s: %w", path, err)
	}
	return nil
}
