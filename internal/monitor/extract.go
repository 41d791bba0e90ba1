package monitor

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/PolarJunction/AgentOffice/internal/session"
)

// Gateway lane lines look like:
//
//	lane enqueue: lane=session:agent:zero:cron:abc123 queueSize=1
//	lane task done: lane=session:agent:zero:cron:abc123 durationMs=5000
var (
	enqueueRe  = regexp.MustCompile(`lane enqueue: lane=session:agent:([A-Za-z0-9_-]+)(?::([A-Za-z0-9_-]+))?`)
	taskDoneRe = regexp.MustCompile(`lane task done: lane=session:agent:([A-Za-z0-9_-]+)(?::([A-Za-z0-9_-]+))?`)
)

const cronLaneMarker = "lane enqueue: lane=cron"

// cronSuffix marks agent tokens such as "zero-cron-abc123".
const cronSuffix = "-cron"

// logEnvelope is the structured line the gateway writes when a plain log
// call is forwarded to the file logger. The message text sits under "1".
type logEnvelope struct {
	Meta struct {
		Path struct {
			Method string `json:"method"`
		} `json:"path"`
	} `json:"_meta"`
	Message json.RawMessage `json:"1"`
}

// Extract splits chunk into lines and returns the lane events they carry,
// in order. Lines that match nothing are dropped.
func Extract(chunk []byte) []session.Event {
	var events []session.Event
	for _, raw := range bytes.Split(chunk, []byte{'\n'}) {
		line := strings.TrimRight(string(raw), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if ev, ok := ClassifyLine(unwrapEnvelope(line)); ok {
			events = append(events, ev)
		}
	}
	return events
}

// unwrapEnvelope returns the nested message of a forwarded log call, or the
// line itself when it is not one.
func unwrapEnvelope(line string) string {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "{") {
		return line
	}
	var env logEnvelope
	if err := json.Unmarshal([]byte(trimmed), &env); err != nil {
		return line
	}
	if env.Meta.Path.Method != "logToFile" || len(env.Message) == 0 {
		return line
	}
	var msg string
	if err := json.Unmarshal(env.Message, &msg); err != nil {
		return line
	}
	return msg
}

// ClassifyLine matches a single message against the known lane patterns.
// The first matching rule wins.
func ClassifyLine(msg string) (session.Event, bool) {
	if m := enqueueRe.FindStringSubmatch(msg); m != nil {
		return laneEvent(session.EventEnqueue, m[1], m[2]), true
	}
	if m := taskDoneRe.FindStringSubmatch(msg); m != nil {
		return laneEvent(session.EventTaskDone, m[1], m[2]), true
	}
	if strings.Contains(msg, cronLaneMarker) {
		return session.Event{Kind: session.EventEnqueue, AgentID: session.CronAgentID, Task: "cron"}, true
	}
	return session.Event{}, false
}

func laneEvent(kind session.EventKind, token, kindSegment string) session.Event {
	id, hadCron := NormalizeAgentID(token)
	task := kindSegment
	if task == "" && hadCron {
		task = "cron"
	}
	return session.Event{Kind: kind, AgentID: id, Task: task}
}

// NormalizeAgentID strips a trailing "-cron..." suffix from a lane token and
// reports whether one was present.
func NormalizeAgentID(token string) (string, bool) {
	if i := strings.Index(token, cronSuffix); i > 0 {
		return token[:i], true
	}
	return token, false
}
