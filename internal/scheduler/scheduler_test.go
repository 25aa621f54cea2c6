package scheduler_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"smart-task-manager/backend/internal/models"
	"smart-task-manager/backend/internal/repositories"
	"smart-task-manager/backend/internal/scheduler"
	"smart-task-manager/backend/internal/services"

	"github.com/gofrs/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// fakeSweeper counts calls and tracks how many sweeps overlap.
type fakeSweeper struct {
	calls      atomic.Int32
	running    atomic.Int32
	maxRunning atomic.Int32
	hold       time.Duration
	failFirst  bool
	panicFirst bool
	deadlines  chan bool
}

func (f *fakeSweeper) Sweep(ctx context.Context, now time.Time) (int, error) {
	n := f.calls.Add(1)
	current := f.running.Add(1)
	defer f.running.Add(-1)
	for {
		seen := f.maxRunning.Load()
		if current <= seen || f.maxRunning.CompareAndSwap(seen, current) {
			break
		}
	}

	if f.deadlines != nil {
		_, ok := ctx.Deadline()
		select {
		case f.deadlines <- ok:
		default:
		}
	}
	if n == 1 && f.panicFirst {
		panic("sweep exploded")
	}
	if n == 1 && f.failFirst {
		return 0, errors.New("database unavailable")
	}
	if f.hold > 0 {
		time.Sleep(f.hold)
	}
	return 1, nil
}

var _ = Describe("Scheduler", func() {
	var (
		sweeper *fakeSweeper
		sched   *scheduler.Scheduler
	)

	stop := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		Expect(sched.Stop(ctx)).To(Succeed())
	}

	BeforeEach(func() {
		sweeper = &fakeSweeper{}
	})

	Describe("Ticking", func() {
		It("runs the sweep on every interval", func() {
			sched = scheduler.NewScheduler(sweeper, scheduler.Config{Interval: time.Second})
			Expect(sched.Start()).To(Succeed())
			defer stop()

			Eventually(func() int32 { return sweeper.calls.Load() }, 4*time.Second, 50*time.Millisecond).
				Should(BeNumerically(">=", 2))
		})

		It("refuses to start twice", func() {
			sched = scheduler.NewScheduler(sweeper, scheduler.Config{Interval: time.Second})
			Expect(sched.Start()).To(Succeed())
			defer stop()

			Expect(sched.Start()).To(MatchError(scheduler.ErrAlreadyStarted))
		})

		It("keeps ticking after a failed sweep", func() {
			sweeper.failFirst = true
			sched = scheduler.NewScheduler(sweeper, scheduler.Config{Interval: time.Second})
			Expect(sched.Start()).To(Succeed())
			defer stop()

			Eventually(func() int32 { return sweeper.calls.Load() }, 4*time.Second, 50*time.Millisecond).
				Should(BeNumerically(">=", 2))
		})

		It("keeps ticking after a panicking sweep", func() {
			sweeper.panicFirst = true
			sched = scheduler.NewScheduler(sweeper, scheduler.Config{Interval: time.Second})
			Expect(sched.Start()).To(Succeed())
			defer stop()

			Eventually(func() int32 { return sweeper.calls.Load() }, 4*time.Second, 50*time.Millisecond).
				Should(BeNumerically(">=", 2))
		})

		It("never overlaps sweeps that outlast the interval", func() {
			sweeper.hold = 1500 * time.Millisecond
			sched = scheduler.NewScheduler(sweeper, scheduler.Config{Interval: time.Second})
			Expect(sched.Start()).To(Succeed())

			Eventually(func() int32 { return sweeper.calls.Load() }, 6*time.Second, 50*time.Millisecond).
				Should(BeNumerically(">=", 2))
			stop()

			Expect(sweeper.maxRunning.Load()).To(Equal(int32(1)))
		})

		It("bounds each sweep with a deadline", func() {
			sweeper.deadlines = make(chan bool, 1)
			sched = scheduler.NewScheduler(sweeper, scheduler.Config{Interval: time.Second, Timeout: 200 * time.Millisecond})

			_, err := sched.RunNow(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(sweeper.deadlines).To(Receive(BeTrue()))
		})
	})

	Describe("Stopping", func() {
		It("waits for the in-flight sweep", func() {
			sweeper.hold = 500 * time.Millisecond
			sched = scheduler.NewScheduler(sweeper, scheduler.Config{Interval: time.Second})
			Expect(sched.Start()).To(Succeed())

			Eventually(func() int32 { return sweeper.running.Load() }, 3*time.Second, 10*time.Millisecond).
				Should(Equal(int32(1)))
			stop()

			Expect(sweeper.running.Load()).To(BeZero())
		})

		It("waits for an in-flight RunNow", func() {
			sweeper.hold = 500 * time.Millisecond
			sched = scheduler.NewScheduler(sweeper, scheduler.Config{Interval: time.Minute})
			Expect(sched.Start()).To(Succeed())

			go func() {
				defer GinkgoRecover()
				_, _ = sched.RunNow(context.Background())
			}()
			Eventually(func() int32 { return sweeper.running.Load() }, time.Second, 5*time.Millisecond).
				Should(Equal(int32(1)))

			stop()
			Expect(sweeper.running.Load()).To(BeZero())
			Expect(sweeper.calls.Load()).To(Equal(int32(1)))
		})

		It("gives up waiting when the context ends", func() {
			sweeper.hold = time.Second
			sched = scheduler.NewScheduler(sweeper, scheduler.Config{Interval: time.Minute})

			go func() {
				defer GinkgoRecover()
				_, _ = sched.RunNow(context.Background())
			}()
			Eventually(func() int32 { return sweeper.running.Load() }, time.Second, 5*time.Millisecond).
				Should(Equal(int32(1)))

			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()
			Expect(sched.Stop(ctx)).To(MatchError(context.DeadlineExceeded))

			Eventually(func() int32 { return sweeper.running.Load() }, 2*time.Second, 10*time.Millisecond).
				Should(BeZero())
		})

		It("can be started again after stopping", func() {
			sched = scheduler.NewScheduler(sweeper, scheduler.Config{Interval: time.Second})
			Expect(sched.Start()).To(Succeed())
			stop()

			Expect(sched.Start()).To(Succeed())
			defer stop()
			Eventually(func() int32 { return sweeper.calls.Load() }, 3*time.Second, 50*time.Millisecond).
				Should(BeNumerically(">=", 1))
		})

		It("is a no-op when never started", func() {
			sched = scheduler.NewScheduler(sweeper, scheduler.Config{})
			stop()
		})
	})

	Describe("RunNow", func() {
		It("reports the sweep result", func() {
			sched = scheduler.NewScheduler(sweeper, scheduler.Config{})
			triggered, err := sched.RunNow(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(triggered).To(Equal(1))
		})

		It("returns sweep errors", func() {
			sweeper.failFirst = true
			sched = scheduler.NewScheduler(sweeper, scheduler.Config{})
			_, err := sched.RunNow(context.Background())
			Expect(err).To(MatchError("database unavailable"))
		})

		It("serializes with concurrent callers", func() {
			sweeper.hold = 50 * time.Millisecond
			sched = scheduler.NewScheduler(sweeper, scheduler.Config{})

			var wg sync.WaitGroup
			for i := 0; i < 4; i++ {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					_, _ = sched.RunNow(context.Background())
				}()
			}
			wg.Wait()

			Expect(sweeper.calls.Load()).To(Equal(int32(4)))
			Expect(sweeper.maxRunning.Load()).To(Equal(int32(1)))
		})
	})

	Describe("with the reminder sweeper", func() {
		It("fires due reminders exactly once across ticks", func() {
			store := repositories.NewMemoryReminderStore()
			ctx := context.Background()
			userID := uuid.Must(uuid.NewV4())

			due := &models.Reminder{UserID: userID, TriggerTime: time.Now().Add(-time.Minute), Message: "due", ReminderType: models.ReminderTypeAbsolute}
			later := &models.Reminder{UserID: userID, TriggerTime: time.Now().Add(time.Hour), Message: "later", ReminderType: models.ReminderTypeAbsolute}
			Expect(store.Insert(ctx, due)).To(Succeed())
			Expect(store.Insert(ctx, later)).To(Succeed())

			sched = scheduler.NewScheduler(services.NewReminderSweeper(store, nil, nil), scheduler.Config{})

			triggered, err := sched.RunNow(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(triggered).To(Equal(1))

			triggered, err = sched.RunNow(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(triggered).To(BeZero())

			fired, err := store.FindByID(ctx, due.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(fired.Status).To(Equal(models.ReminderStatusTriggered))

			waiting, err := store.FindByID(ctx, later.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(waiting.Status).To(Equal(models.ReminderStatusPending))
		})
	})
})
