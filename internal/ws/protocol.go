package ws

import (
	"time"

	"github.com/PolarJunction/AgentOffice/internal/session"
)

type MessageType string

const (
	MsgSnapshot MessageType = "snapshot"
	MsgHealth   MessageType = "tail_health"
)

type WSMessage struct {
	Type    MessageType `json:"type"`
	Seq     uint64      `json:"seq"`
	Payload interface{} `json:"payload"`
}

type SnapshotPayload struct {
	Agents []session.AgentState `json:"agents"`
	Stats  []session.AgentStats `json:"stats"`
}

// TailStatus is the health of gateway log reads.
type TailStatus string

const (
	StatusHealthy  TailStatus = "healthy"
	StatusDegraded TailStatus = "degraded"
	StatusFailed   TailStatus = "failed"
)

type TailHealth struct {
	Status              TailStatus `json:"status"`
	ConsecutiveFailures int        `json:"consecutiveFailures"`
	LastError           string     `json:"lastError,omitempty"`
	LastSuccess         *time.Time `json:"lastSuccess,omitempty"`
	Path                string     `json:"path"`
	Offset              int64      `json:"offset"`
	Running             bool       `json:"running"`
}

type GatewayStatus struct {
	Name    string  `json:"name"`
	Running bool    `json:"running"`
	PIDs    []int32 `json:"pids"`
	Error   string  `json:"error,omitempty"`
}

type HealthResponse struct {
	Status    string         `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
	Gateway   *GatewayStatus `json:"gateway,omitempty"`
	Tail      *TailHealth    `json:"tail,omitempty"`
	Clients   int            `json:"clients"`
}

type StatusResponse struct {
	Agents []session.AgentState `json:"agents"`
}
