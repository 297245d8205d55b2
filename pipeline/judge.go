package pipeline

import (
	"sort"
	"strings"

	"github.com/waypointcast/tourguide/observability"
)

// ScoreFunc computes one rubric criterion's score for a candidate, on a
// 0-10 scale. Implementations must be total, deterministic, and free of
// side effects.
type ScoreFunc func(p Point, profile Profile, c Candidate) float64

// JudgeConfig is the Judge's injectable rubric: fixed weights plus one
// scorer per criterion. Scorers default to simple heuristics over
// candidate attributes when left nil.
type JudgeConfig struct {
	Weights    JudgeWeights
	Location   ScoreFunc
	ProfileFit ScoreFunc
	Quality    ScoreFunc
	Engagement ScoreFunc
}

// DefaultJudgeConfig returns the default weights and heuristic scorers.
func DefaultJudgeConfig() JudgeConfig {
	return JudgeConfig{
		Weights:    DefaultJudgeWeights(),
		Location:   defaultLocationScore,
		ProfileFit: defaultProfileScore,
		Quality:    defaultQualityScore,
		Engagement: defaultEngagementScore,
	}
}

// Judge applies hard safety filters then the weighted rubric to select one
// winning Candidate per Point.
type Judge struct {
	cfg JudgeConfig
}

// NewJudge builds a Judge, filling in any nil scorer with its default.
func NewJudge(cfg JudgeConfig) *Judge {
	def := DefaultJudgeConfig()
	if cfg.Location == nil {
		cfg.Location = def.Location
	}
	if cfg.ProfileFit == nil {
		cfg.ProfileFit = def.ProfileFit
	}
	if cfg.Quality == nil {
		cfg.Quality = def.Quality
	}
	if cfg.Engagement == nil {
		cfg.Engagement = def.Engagement
	}
	return &Judge{cfg: cfg}
}

// Decide filters candidates against profile's hard predicates, scores the
// survivors, and picks a winner. If no candidate survives the filter, or
// status is already StatusFailed, the decision carries a nil winner.
func (j *Judge) Decide(p Point, candidates []Candidate, profile Profile, status QueueStatus) Decision {
	d := Decision{PointKey: p.Key, Status: status}

	if status == StatusFailed {
		d.Rationale = "queue-failed"
		observability.JudgeNoWinner.WithLabelValues(d.Rationale).Inc()
		return d
	}

	survivors := j.filter(candidates, profile)
	if len(survivors) == 0 {
		d.Rationale = "no-eligible-candidate"
		observability.JudgeNoWinner.WithLabelValues(d.Rationale).Inc()
		return d
	}

	scores := make([]CandidateScore, len(survivors))
	for i, c := range survivors {
		scores[i] = j.score(p, profile, c)
	}
	d.Scores = scores

	winnerIdx := pickWinner(scores)
	winner := survivors[winnerIdx]
	d.Winner = &winner
	if len(survivors) == 1 {
		d.Rationale = "only-eligible-candidate"
	} else {
		d.Rationale = topCriterion(scores[winnerIdx], j.cfg.Weights)
	}
	observability.JudgeScore.Observe(scores[winnerIdx].FinalScore)
	return d
}

// filter applies profile's hard predicates: forbidden kinds, forbidden
// topics, duration ceiling, and minimum age.
func (j *Judge) filter(candidates []Candidate, profile Profile) []Candidate {
	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if _, forbidden := profile.ForbidKinds[c.Kind]; forbidden {
			continue
		}
		if c.hasForbiddenTopic(profile.ForbiddenTopics) {
			continue
		}
		if profile.HasMaxDuration && c.HasDur && c.Duration > profile.MaxDuration {
			continue
		}
		if profile.HasMinAge {
			if age, ok := c.AgeMinimum(); ok && age > profile.MinAge {
				continue
			}
		}
		out = append(out, c)
	}
	return out
}

func (j *Judge) score(p Point, profile Profile, c Candidate) CandidateScore {
	w := j.cfg.Weights
	loc := clamp10(j.cfg.Location(p, profile, c))
	prof := clamp10(j.cfg.ProfileFit(p, profile, c))
	qual := clamp10(j.cfg.Quality(p, profile, c))
	eng := clamp10(j.cfg.Engagement(p, profile, c))

	raw := w.Location*loc + w.Profile*prof + w.Quality*qual + w.Engagement*eng
	final := raw * profile.kindWeight(c.Kind)

	return CandidateScore{
		Kind:            c.Kind,
		LocationScore:   loc,
		ProfileScore:    prof,
		QualityScore:    qual,
		EngagementScore: eng,
		FinalScore:      final,
	}
}

// pickWinner returns the index of the highest FinalScore, breaking ties by
// kind name ascending for a stable, arbitrary-but-deterministic result.
func pickWinner(scores []CandidateScore) int {
	best := 0
	for i := 1; i < len(scores); i++ {
		if scores[i].FinalScore > scores[best].FinalScore {
			best = i
			continue
		}
		if scores[i].FinalScore == scores[best].FinalScore && scores[i].Kind < scores[best].Kind {
			best = i
		}
	}
	return best
}

// topCriterion names the weighted rubric component that contributed most
// to the winner's score, for the Decision's Rationale field.
func topCriterion(s CandidateScore, w JudgeWeights) string {
	type contribution struct {
		name  string
		value float64
	}
	contribs := []contribution{
		{"location-relevance", w.Location * s.LocationScore},
		{"profile-match", w.Profile * s.ProfileScore},
		{"content-quality", w.Quality * s.QualityScore},
		{"engagement", w.Engagement * s.EngagementScore},
	}
	sort.SliceStable(contribs, func(i, j int) bool { return contribs[i].value > contribs[j].value })
	return contribs[0].name
}

func clamp10(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 10 {
		return 10
	}
	return v
}

// Default heuristic scorers. These are intentionally simple — real
// deployments are expected to supply their own ScoreFuncs grounded in
// actual content-quality signals.

func defaultLocationScore(p Point, _ Profile, c Candidate) float64 {
	score := 5.0
	tag := strings.ToLower(p.PointTag)
	if tag == "" {
		return score
	}
	for _, t := range c.Topics() {
		if strings.ToLower(t) == tag {
			score += 4.0
			break
		}
	}
	return score
}

func defaultProfileScore(_ Point, profile Profile, c Candidate) float64 {
	if len(profile.InterestTags) == 0 {
		return 5.0
	}
	topics := c.Topics()
	if len(topics) == 0 {
		return 5.0
	}
	interest := make(map[string]struct{}, len(profile.InterestTags))
	for _, t := range profile.InterestTags {
		interest[strings.ToLower(t)] = struct{}{}
	}
	hits := 0
	for _, t := range topics {
		if _, ok := interest[strings.ToLower(t)]; ok {
			hits++
		}
	}
	return clamp10(10 * float64(hits) / float64(len(topics)))
}

func defaultQualityScore(_ Point, _ Profile, c Candidate) float64 {
	// Proxy for production effort: longer bodies score higher, flattening
	// out past ~600 characters.
	n := len(c.Body)
	if n > 600 {
		n = 600
	}
	return clamp10(2.0 + 8.0*float64(n)/600.0)
}

func defaultEngagementScore(_ Point, _ Profile, c Candidate) float64 {
	if !c.HasDur {
		return 6.0
	}
	// A mild preference for a 15-180s sweet spot, tapering outside it.
	secs := c.Duration.Seconds()
	switch {
	case secs < 15:
		return 3.0
	case secs <= 180:
		return 8.0
	case secs <= 360:
		return 6.0
	default:
		return 4.0
	}
}
