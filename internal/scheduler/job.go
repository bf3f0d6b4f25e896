package scheduler

import (
	"context"
	"time"
)

// Job is a unit of recurring background work.
// ⭐ SSOT: 스케줄 작업 인터페이스는 여기서만 정의
type Job interface {
	// Name identifies the job in logs and stats.
	Name() string

	// Run executes one cycle. The context carries the per-run timeout
	// and is cancelled when the scheduler shuts down mid-run.
	Run(ctx context.Context) error

	// Schedule returns a cron expression with a seconds field,
	// e.g. "0 * * * * *" for every minute.
	Schedule() string
}

// RunRecord captures the outcome of a single job cycle.
type RunRecord struct {
	Job        string        `json:"job"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Duration   time.Duration `json:"duration"`
	Attempts   int           `json:"attempts"`
	Error      string        `json:"error,omitempty"`
}

// Succeeded reports whether the cycle ended without an error.
func (r RunRecord) Succeeded() bool {
	return r.Error == ""
}

const runLogCapacity = 100

// runLog keeps the most recent cycle outcomes for one job.
type runLog struct {
	records []RunRecord
}

func (l *runLog) add(r RunRecord) {
	l.records = append(l.records, r)
	if len(l.records) > runLogCapacity {
		l.records = l.records[len(l.records)-runLogCapacity:]
	}
}

func (l *runLog) last() (RunRecord, bool) {
	if len(l.records) == 0 {
		return RunRecord{}, false
	}
	return l.records[len(l.records)-1], true
}

func (l *runLog) successRate() float64 {
	if len(l.records) == 0 {
		return 0
	}
	ok := 0
	for _, r := range l.records {
		if r.Succeeded() {
			ok++
		}
	}
	return float64(ok) / float64(len(l.records))
}
