package session

// EventKind classifies gateway lane events.
type EventKind int

const (
	EventEnqueue  EventKind = iota // work queued on an agent's lane
	EventTaskDone                  // lane task finished
)

func (k EventKind) String() string {
	switch k {
	case EventEnqueue:
		return "enqueue"
	case EventTaskDone:
		return "task_done"
	}
	return "unknown"
}

// CronAgentID is the pseudo-agent for the gateway's own cron lane. It is
// not in the registry, so its events are dropped by the Store.
const CronAgentID = "cron"

// Event is one lane lifecycle event extracted from the gateway log.
type Event struct {
	Kind    EventKind
	AgentID string // normalized, e.g. "zero" for "zero-cron-abc"
	Task    string // lane kind label such as "cron"; empty if unknown
}
