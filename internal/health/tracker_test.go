package health_test

import (
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/campus-gateway/internal/health"
)

type fakeClock struct {
	mutex sync.Mutex
	now   time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.now = c.now.Add(d)
}

var _ = Describe("Tracker", func() {
	var (
		tracker *health.Tracker
		clock   *fakeClock
	)

	BeforeEach(func() {
		clock = &fakeClock{now: time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)}
		tracker = health.NewTracker(3, 30*time.Second, health.WithClock(clock.Now))
	})

	Describe("NewTracker", func() {
		It("should start healthy with no failures", func() {
			Expect(tracker.ConsecutiveFailures()).To(Equal(0))
			Expect(tracker.Condition()).To(Equal(health.ConditionHealthy))
			Expect(tracker.ShouldDetectNow()).To(BeFalse())
		})

		It("should clamp the threshold to at least one", func() {
			t := health.NewTracker(0, time.Second)
			t.ReportFailure()
			Expect(t.ShouldDetectNow()).To(BeTrue())
		})
	})

	Describe("ShouldDetectNow", func() {
		It("should stay false one failure below threshold", func() {
			tracker.ReportFailure()
			tracker.ReportFailure()
			Expect(tracker.ShouldDetectNow()).To(BeFalse())
			Expect(tracker.Condition()).To(Equal(health.ConditionDegraded))
		})

		It("should become true at exactly threshold failures", func() {
			tracker.ReportFailure()
			tracker.ReportFailure()
			tracker.ReportFailure()
			Expect(tracker.ShouldDetectNow()).To(BeTrue())
			Expect(tracker.Condition()).To(Equal(health.ConditionFailing))
		})

		It("should be suppressed inside the cooldown window", func() {
			for i := 0; i < 3; i++ {
				tracker.ReportFailure()
			}
			tracker.MarkDetectionAttempted()

			tracker.ReportFailure()
			Expect(tracker.ShouldDetectNow()).To(BeFalse())

			clock.Advance(29 * time.Second)
			Expect(tracker.ShouldDetectNow()).To(BeFalse())

			clock.Advance(time.Second)
			Expect(tracker.ShouldDetectNow()).To(BeTrue())
		})

		It("should not be re-armed by a success inside the cooldown", func() {
			for i := 0; i < 3; i++ {
				tracker.ReportFailure()
			}
			tracker.MarkDetectionAttempted()
			tracker.ReportSuccess()

			for i := 0; i < 3; i++ {
				tracker.ReportFailure()
			}
			Expect(tracker.ShouldDetectNow()).To(BeFalse())
		})
	})

	Describe("ReportSuccess", func() {
		It("should reset consecutive failures regardless of count", func() {
			for i := 0; i < 10; i++ {
				tracker.ReportFailure()
			}
			tracker.ReportSuccess()
			Expect(tracker.ConsecutiveFailures()).To(Equal(0))
			Expect(tracker.Condition()).To(Equal(health.ConditionHealthy))
		})

		It("should stamp the last success time", func() {
			tracker.ReportSuccess()
			st := tracker.Snapshot()
			Expect(st.LastSuccessAt).NotTo(BeNil())
			Expect(*st.LastSuccessAt).To(Equal(clock.Now()))
		})
	})

	Describe("TryBeginDetection", func() {
		It("should let exactly one concurrent caller start a round", func() {
			for i := 0; i < 3; i++ {
				tracker.ReportFailure()
			}

			const callers = 50
			var (
				wg      sync.WaitGroup
				mutex   sync.Mutex
				started int
			)
			wg.Add(callers)
			for i := 0; i < callers; i++ {
				go func() {
					defer wg.Done()
					if tracker.TryBeginDetection() {
						mutex.Lock()
						started++
						mutex.Unlock()
					}
				}()
			}
			wg.Wait()

			Expect(started).To(Equal(1))
			Expect(tracker.Snapshot().LastDetectionAt).NotTo(BeNil())
		})

		It("should refuse below threshold without stamping", func() {
			Expect(tracker.TryBeginDetection()).To(BeFalse())
			Expect(tracker.Snapshot().LastDetectionAt).To(BeNil())
		})
	})

	Describe("Snapshot", func() {
		It("should describe the current state", func() {
			tracker.ReportFailure()
			st := tracker.Snapshot()
			Expect(st.ConsecutiveFailures).To(Equal(1))
			Expect(st.ConditionName).To(Equal("DEGRADED"))
			Expect(st.Threshold).To(Equal(3))
			Expect(st.Cooldown).To(Equal(30 * time.Second))
			Expect(st.LastSuccessAt).To(BeNil())
		})
	})

	Describe("Condition.String", func() {
		It("should return correct string representation", func() {
			Expect(health.ConditionHealthy.String()).To(Equal("HEALTHY"))
			Expect(health.ConditionDegraded.String()).To(Equal("DEGRADED"))
			Expect(health.ConditionFailing.String()).To(Equal("FAILING"))
		})
	})
})
