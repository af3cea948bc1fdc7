package health

import (
	"sync"
	"time"
)

type Condition int

const (
	ConditionHealthy  Condition = iota // No failures since the last success
	ConditionDegraded                  // Failing, below threshold
	ConditionFailing                   // Threshold reached
)

// State is a snapshot of the tracker.
type State struct {
	Condition           Condition     `json:"-"`
	ConditionName       string        `json:"condition"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	LastSuccessAt       *time.Time    `json:"last_success_at,omitempty"`
	LastDetectionAt     *time.Time    `json:"last_detection_at,omitempty"`
	Threshold           int           `json:"threshold"`
	Cooldown            time.Duration `json:"cooldown"`
}

type Tracker struct {
	mutex            sync.Mutex
	failures         int
	lastSuccess      time.Time
	lastDetection    time.Time
	failureThreshold int
	cooldown         time.Duration
	now              func() time.Time
}

type Option func(*Tracker)

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

func NewTracker(threshold int, cooldown time.Duration, opts ...Option) *Tracker {
	if threshold < 1 {
		threshold = 1
	}

	t := &Tracker{
		failureThreshold: threshold,
		cooldown:         cooldown,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// ReportSuccess resets the failure run and stamps the success time.
func (t *Tracker) ReportSuccess() {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.failures = 0
	t.lastSuccess = t.now()
}

// ReportFailure extends the current failure run.
func (t *Tracker) ReportFailure() {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.failures++
}

// ShouldDetectNow reports whether the failure run has reached the threshold
// and no detection was attempted within the cooldown window.
func (t *Tracker) ShouldDetectNow() bool {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.failures < t.failureThreshold {
		return false
	}

	if t.lastDetection.IsZero() {
		return true
	}

	return t.now().Sub(t.lastDetection) >= t.cooldown
}

// MarkDetectionAttempted stamps the start of a redetection round. It is
// called whether or not the round ends up finding a new address.
func (t *Tracker) MarkDetectionAttempted() {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.lastDetection = t.now()
}

// TryBeginDetection combines ShouldDetectNow and MarkDetectionAttempted under
// one lock so that only one of several concurrently failing callers starts a
// round.
func (t *Tracker) TryBeginDetection() bool {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.failures < t.failureThreshold {
		return false
	}

	now := t.now()
	if !t.lastDetection.IsZero() && now.Sub(t.lastDetection) < t.cooldown {
		return false
	}

	t.lastDetection = now
	return true
}

func (t *Tracker) ConsecutiveFailures() int {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.failures
}

func (t *Tracker) Condition() Condition {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.condition()
}

func (t *Tracker) condition() Condition {
	switch {
	case t.failures == 0:
		return ConditionHealthy
	case t.failures < t.failureThreshold:
		return ConditionDegraded
	default:
		return ConditionFailing
	}
}

func (t *Tracker) Snapshot() State {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	cond := t.condition()
	st := State{
		Condition:           cond,
		ConditionName:       cond.String(),
		ConsecutiveFailures: t.failures,
		Threshold:           t.failureThreshold,
		Cooldown:            t.cooldown,
	}
	if !t.lastSuccess.IsZero() {
		ts := t.lastSuccess
		st.LastSuccessAt = &ts
	}
	if !t.lastDetection.IsZero() {
		ts := t.lastDetection
		st.LastDetectionAt = &ts
	}
	return st
}

func (c Condition) String() string {
	switch c {
	case ConditionHealthy:
		return "HEALTHY"
	case ConditionDegraded:
		return "DEGRADED"
	case ConditionFailing:
		return "FAILING"
	default:
		return "UNKNOWN"
	}
}
