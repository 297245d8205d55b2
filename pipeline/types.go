// Package pipeline implements the parallel-fan-out / tiered-timeout
// collection / profile-gated selection pipeline that turns a stream of
// route points into a playlist of winning content candidates.
package pipeline

import (
	"strings"
	"time"
)

// WorkerKind is a closed enumeration of content modalities fanned out for
// every Point. A deployment typically registers exactly one Worker per
// kind.
type WorkerKind string

const (
	KindVisual  WorkerKind = "visual"
	KindAudio   WorkerKind = "audio"
	KindTextual WorkerKind = "textual"
)

// String implements fmt.Stringer so WorkerKind prints cleanly in logs.
func (k WorkerKind) String() string { return string(k) }

// Point is a single location along a route. It is immutable once emitted
// by the Scheduler.
type Point struct {
	Key      string
	Name     string
	Lat      float64
	Lng      float64
	HasGeo   bool
	PointTag string // e.g. urban, historical, religious, scenic
	Seq      int64  // assigned by the Scheduler on emission; defines playlist order
}

// Candidate is one piece of content produced by one Worker for one Point.
// It is never mutated after construction.
type Candidate struct {
	Kind       WorkerKind
	Title      string
	Body       string
	Source     string
	Duration   time.Duration
	HasDur     bool
	Attributes map[string]any // filter inputs: topics, age_minimum, language, ...
}

// Topics returns the candidate's topics attribute as stored, accepting a
// []string or a single string. Any other value type yields nil; topics are
// not lower-cased or de-duplicated here.
func (c Candidate) Topics() []string {
	raw, ok := c.Attributes["topics"]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []string:
		return v
	case string:
		return []string{v}
	default:
		return nil
	}
}

// AgeMinimum returns the candidate's age_minimum attribute, if present.
func (c Candidate) AgeMinimum() (int, bool) {
	raw, ok := c.Attributes["age_minimum"]
	if !ok {
		return 0, false
	}
	switch v := raw.(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

// hasForbiddenTopic reports whether any of the candidate's topics matches
// (case-insensitively) a forbidden topic.
func (c Candidate) hasForbiddenTopic(forbidden map[string]struct{}) bool {
	for _, t := range c.Topics() {
		if _, bad := forbidden[strings.ToLower(t)]; bad {
			return true
		}
	}
	return false
}

// WorkerOutcome is the tagged union a Worker submits to a Smart Queue: it
// is either a successful Candidate or a terminal failure reason.
type WorkerOutcome struct {
	Kind      WorkerKind
	Success   bool
	Candidate Candidate
	Reason    string
}

// SuccessOutcome builds a successful WorkerOutcome.
func SuccessOutcome(kind WorkerKind, c Candidate) WorkerOutcome {
	c.Kind = kind
	return WorkerOutcome{Kind: kind, Success: true, Candidate: c}
}

// FailureOutcome builds a failed WorkerOutcome.
func FailureOutcome(kind WorkerKind, reason string) WorkerOutcome {
	return WorkerOutcome{Kind: kind, Success: false, Reason: reason}
}

// QueueStatus is the closed enumeration of terminal Smart Queue states.
type QueueStatus string

const (
	StatusComplete      QueueStatus = "COMPLETE"
	StatusSoftDegraded  QueueStatus = "SOFT_DEGRADED"
	StatusHardDegraded  QueueStatus = "HARD_DEGRADED"
	StatusFailed        QueueStatus = "FAILED"
)

// Profile governs Judge behavior: hard safety predicates plus soft
// weights and advisory preferences.
type Profile struct {
	ForbidKinds      map[WorkerKind]struct{}
	ForbiddenTopics  map[string]struct{} // lower-cased
	MaxDuration      time.Duration
	HasMaxDuration   bool
	MinAge           int
	HasMinAge        bool
	KindWeight       map[WorkerKind]float64 // default 1.0
	LanguagePrefs    []string
	InterestTags     []string
}

// NewProfile returns a Profile with empty/neutral defaults.
func NewProfile() Profile {
	return Profile{
		ForbidKinds:     make(map[WorkerKind]struct{}),
		ForbiddenTopics: make(map[string]struct{}),
		KindWeight:      make(map[WorkerKind]float64),
	}
}

// kindWeight returns the configured weight for kind, defaulting to 1.0.
func (p Profile) kindWeight(kind WorkerKind) float64 {
	if w, ok := p.KindWeight[kind]; ok {
		return w
	}
	return 1.0
}

// CandidateScore is the Judge's per-candidate scoring breakdown.
type CandidateScore struct {
	Kind            WorkerKind
	LocationScore   float64
	ProfileScore    float64
	QualityScore    float64
	EngagementScore float64
	FinalScore      float64
}

// Decision is the Judge's output for one Point.
type Decision struct {
	PointKey  string
	Winner    *Candidate
	Scores    []CandidateScore
	Status    QueueStatus
	Rationale string
}
