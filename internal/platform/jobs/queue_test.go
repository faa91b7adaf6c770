package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testQueue(t *testing.T, opts Options) *Queue {
	t.Helper()
	if opts.PollInterval == 0 {
		opts.PollInterval = 5 * time.Millisecond
	}
	if opts.EvictAfter == 0 {
		opts.EvictAfter = -1 // disabled unless the test opts in
	}
	return NewQueue(zerolog.Nop(), opts)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestSubmitReturnsImmediately(t *testing.T) {
	q := testQueue(t, Options{})
	release := make(chan struct{})
	q.Register("slow", func(context.Context, Job, func(int)) (any, error) {
		<-release
		return "done", nil
	})

	job, err := q.Submit("slow", Payload{RequestID: "r1"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if job.Status != StatusWaiting {
		t.Errorf("status = %q, want waiting", job.Status)
	}
	if job.ID == 0 {
		t.Error("job id not assigned")
	}
	close(release)

	waitFor(t, time.Second, func() bool {
		j, ok := q.Job(job.ID)
		return ok && j.Status == StatusCompleted
	})
	j, _ := q.Job(job.ID)
	if j.Result != "done" {
		t.Errorf("result = %v, want done", j.Result)
	}
}

func TestSubmitUnknownTypeFails(t *testing.T) {
	q := testQueue(t, Options{})
	if _, err := q.Submit("nope", Payload{}); err == nil {
		t.Fatal("expected error for unregistered job type")
	}
}

func TestConcurrencyBound(t *testing.T) {
	const limit = 3
	q := testQueue(t, Options{Concurrency: limit})

	var running, peak int64
	release := make(chan struct{})
	q.Register("work", func(context.Context, Job, func(int)) (any, error) {
		n := atomic.AddInt64(&running, 1)
		for {
			p := atomic.LoadInt64(&peak)
			if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
				break
			}
		}
		<-release
		atomic.AddInt64(&running, -1)
		return nil, nil
	})

	for i := 0; i < 10; i++ {
		if _, err := q.Submit("work", Payload{}); err != nil {
			t.Fatal(err)
		}
	}

	waitFor(t, time.Second, func() bool { return atomic.LoadInt64(&running) == limit })
	// Give the scheduler a few more passes to (incorrectly) overshoot.
	time.Sleep(30 * time.Millisecond)
	if got := atomic.LoadInt64(&running); got != limit {
		t.Errorf("running = %d, want %d", got, limit)
	}
	close(release)

	waitFor(t, 2*time.Second, func() bool {
		for id := int64(1); id <= 10; id++ {
			if j, ok := q.Job(id); !ok || j.Status != StatusCompleted {
				return false
			}
		}
		return true
	})
	if got := atomic.LoadInt64(&peak); got > limit {
		t.Errorf("peak concurrency = %d, exceeds limit %d", got, limit)
	}
}

func TestFailedJobDoesNotBlockOthers(t *testing.T) {
	q := testQueue(t, Options{Concurrency: 1})
	q.Register("bad", func(context.Context, Job, func(int)) (any, error) {
		return nil, errors.New("archive unreachable")
	})
	q.Register("good", func(context.Context, Job, func(int)) (any, error) {
		return "ok", nil
	})

	bad, _ := q.Submit("bad", Payload{RequestID: "r-bad"})
	good, _ := q.Submit("good", Payload{RequestID: "r-good"})

	waitFor(t, time.Second, func() bool {
		j, ok := q.Job(good.ID)
		return ok && j.Status == StatusCompleted
	})

	j, _ := q.Job(bad.ID)
	if j.Status != StatusFailed {
		t.Errorf("bad job status = %q, want failed", j.Status)
	}
	if j.Error != "archive unreachable" {
		t.Errorf("error = %q", j.Error)
	}
	if j.Result != nil {
		t.Error("failed job should not carry a result")
	}
}

func TestHandlerPanicMarksJobFailed(t *testing.T) {
	q := testQueue(t, Options{})
	q.Register("panics", func(context.Context, Job, func(int)) (any, error) {
		panic("boom")
	})
	q.Register("fine", func(context.Context, Job, func(int)) (any, error) {
		return nil, nil
	})

	p, _ := q.Submit("panics", Payload{})
	f, _ := q.Submit("fine", Payload{})

	waitFor(t, time.Second, func() bool {
		a, okA := q.Job(p.ID)
		b, okB := q.Job(f.ID)
		return okA && okB && a.Status.Terminal() && b.Status == StatusCompleted
	})
	j, _ := q.Job(p.ID)
	if j.Status != StatusFailed {
		t.Errorf("status = %q, want failed", j.Status)
	}
}

func TestProgressCheckpoints(t *testing.T) {
	q := testQueue(t, Options{})
	var mu sync.Mutex
	var seen []int
	block := make(chan struct{})
	q.Register("steps", func(_ context.Context, _ Job, progress func(int)) (any, error) {
		progress(10)
		progress(50)
		mu.Lock()
		seen = append(seen, 1)
		mu.Unlock()
		<-block
		progress(100)
		return nil, nil
	})

	job, _ := q.Submit("steps", Payload{})
	waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 1
	})

	j, _ := q.Job(job.ID)
	if j.Progress != 50 {
		t.Errorf("progress = %d, want 50", j.Progress)
	}
	close(block)
	waitFor(t, time.Second, func() bool {
		j, ok := q.Job(job.ID)
		return ok && j.Status == StatusCompleted
	})
}

func TestJobByRequestID(t *testing.T) {
	q := testQueue(t, Options{})
	done := make(chan struct{})
	q.Register("work", func(context.Context, Job, func(int)) (any, error) {
		<-done
		return nil, nil
	})

	q.Submit("work", Payload{InstanceID: "inst-1", RequestID: "req_abc"})
	q.Submit("work", Payload{InstanceID: "inst-2", RequestID: "req_def"})

	j, ok := q.JobByRequestID("req_def")
	if !ok {
		t.Fatal("job not found by request id")
	}
	if j.Payload.InstanceID != "inst-2" {
		t.Errorf("instance = %q, want inst-2", j.Payload.InstanceID)
	}
	if _, ok := q.JobByRequestID("req_missing"); ok {
		t.Error("unexpected hit for unknown request id")
	}
	close(done)
}

func TestTerminalJobsEvicted(t *testing.T) {
	q := testQueue(t, Options{EvictAfter: 20 * time.Millisecond})
	q.Register("quick", func(context.Context, Job, func(int)) (any, error) {
		return nil, nil
	})

	job, _ := q.Submit("quick", Payload{RequestID: "r1"})
	waitFor(t, time.Second, func() bool {
		j, ok := q.Job(job.ID)
		return ok && j.Status == StatusCompleted
	})
	waitFor(t, time.Second, func() bool {
		_, ok := q.Job(job.ID)
		return !ok
	})
	if _, ok := q.JobByRequestID("r1"); ok {
		t.Error("evicted job still reachable by request id")
	}
}

func TestQueueDrainsAndRestarts(t *testing.T) {
	q := testQueue(t, Options{})
	var runs int64
	q.Register("count", func(context.Context, Job, func(int)) (any, error) {
		atomic.AddInt64(&runs, 1)
		return nil, nil
	})

	first, _ := q.Submit("count", Payload{})
	waitFor(t, time.Second, func() bool {
		j, ok := q.Job(first.ID)
		return ok && j.Status == StatusCompleted
	})
	// Let the scheduling loop wind down, then submit again.
	time.Sleep(30 * time.Millisecond)

	second, _ := q.Submit("count", Payload{})
	waitFor(t, time.Second, func() bool {
		j, ok := q.Job(second.ID)
		return ok && j.Status == StatusCompleted
	})
	if atomic.LoadInt64(&runs) != 2 {
		t.Errorf("runs = %d, want 2", runs)
	}
}
