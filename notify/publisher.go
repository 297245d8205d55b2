// Package notify fans committed Decisions out to downstream observers: a
// log, a Redis channel, or a set of WebSocket clients. It implements
// pipeline.DecisionSink, an event-publisher interface specialized to one
// payload, a playlist Decision.
package notify

import (
	"encoding/json"
	"log"
	"time"

	"github.com/waypointcast/tourguide/pipeline"
)

// Message is the wire shape every sink publishes.
type Message struct {
	Seq       int64           `json:"seq"`
	PointKey  string          `json:"point_key"`
	Status    pipeline.QueueStatus `json:"status"`
	Winner    *pipeline.Candidate  `json:"winner,omitempty"`
	Rationale string          `json:"rationale"`
	Timestamp time.Time       `json:"timestamp"`
}

func toMessage(e pipeline.Entry) Message {
	return Message{
		Seq:       e.Point.Seq,
		PointKey:  e.Point.Key,
		Status:    e.Decision.Status,
		Winner:    e.Decision.Winner,
		Rationale: e.Decision.Rationale,
		Timestamp: time.Now(),
	}
}

// LogSink writes every committed Decision to a log.Logger, the way the
// teacher's streaming.LogPublisher stands in for a real publisher in
// development.
type LogSink struct {
	logger *log.Logger
}

// NewLogSink builds a LogSink writing to log.Default().
func NewLogSink() *LogSink {
	return &LogSink{logger: log.Default()}
}

func (s *LogSink) Observe(e pipeline.Entry) {
	data, err := json.Marshal(toMessage(e))
	if err != nil {
		s.logger.Printf("notify: failed to marshal decision for %s: %v", e.Point.Key, err)
		return
	}
	s.logger.Printf("[DECISION] %s", string(data))
}
