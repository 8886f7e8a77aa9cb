package bootstrap

import (
	"time"
)

// Phase identifies a bootstrap step.
type Phase int

const (
	Migrate Phase = iota
	Fixtures
	Superuser
)

func (p Phase) String() string {
	switch p {
	case Migrate:
		return "migrate"
	case Fixtures:
		return "fixtures"
	case Superuser:
		return "superuser"
	default:
		return "unknown"
	}
}

// Status is the outcome of a phase or fixture.
type Status string

const (
	StatusOK      Status = "ok"
	StatusError   Status = "error"
	StatusSkipped Status = "skipped"
)

// PhaseResult records how one phase ended.
type PhaseResult struct {
	Phase    Phase
	Status   Status
	Attempts int
	Detail   string // human note, e.g. why the phase was skipped
	Err      error
	Elapsed  time.Duration
}

// FixtureResult records one fixture load.
type FixtureResult struct {
	Name     string
	Status   Status
	Attempts int
	Records  int
	Err      error
}

// Report is the outcome of one bootstrap run.
type Report struct {
	RunID       string
	StartedAt   time.Time
	Phases      []PhaseResult
	Fixtures    []FixtureResult
	Credentials *Credentials // set only when a superuser was created by this run
}

// Phase returns the result recorded for p.
func (r *Report) Phase(p Phase) (PhaseResult, bool) {
	for _, res := range r.Phases {
		if res.Phase == p {
			return res, true
		}
	}
	return PhaseResult{}, false
}

// Failed reports whether a fatal phase failed. Only the migration phase is fatal.
func (r *Report) Failed() bool {
	res, ok := r.Phase(Migrate)
	return ok && res.Status == StatusError
}

// FixtureCounts tallies fixture outcomes.
func (r *Report) FixtureCounts() (loaded, skipped int) {
	for _, f := range r.Fixtures {
		if f.Status == StatusOK {
			loaded++
		} else {
			skipped++
		}
	}
	return loaded, skipped
}
