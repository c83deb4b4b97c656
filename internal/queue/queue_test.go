package queue

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/merge-warden/internal/core"
)

// fakeAnalyzer lets each test script the analysis outcome.
type fakeAnalyzer struct {
	fn    func(ctx context.Context, pr *core.PRData) (*core.ReviewResult, error)
	calls atomic.Int32
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, pr *core.PRData) (*core.ReviewResult, error) {
	f.calls.Add(1)
	if f.fn != nil {
		return f.fn(ctx, pr)
	}
	return &core.ReviewResult{MergeScore: 90, Status: core.ReviewStatusApproved, Summary: "looks good"}, nil
}

func testConfig() Config {
	return Config{
		MaxConcurrentJobs: 3,
		MaxRetries:        2,
		RetryDelay:        20 * time.Millisecond,
		JobTimeout:        time.Second,
		PollInterval:      10 * time.Millisecond,
		ErrorPollInterval: 20 * time.Millisecond,
		CleanupInterval:   time.Hour,
		Retention:         24 * time.Hour,
	}
}

func testPR(prNumber int) *core.PRData {
	return &core.PRData{
		InstallationID: 1001,
		RepoOwner:      "acme",
		RepoName:       "widgets",
		RepoFullName:   "acme/widgets",
		PRNumber:       prNumber,
		Title:          "Add feature",
		Author:         "dev",
		LinkedIssues:   []int{7},
	}
}

func newTestService(t *testing.T, cfg Config, analyzer core.Analyzer) *Service {
	t.Helper()
	s := NewService(cfg, analyzer, nil, discardLogger())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Stop(ctx)
	})
	return s
}

func waitForJob(t *testing.T, s *Service, id string, pred func(*core.Job) bool) *core.Job {
	t.Helper()
	var last *core.Job
	require.Eventually(t, func() bool {
		job, err := s.GetJob(id)
		if err != nil {
			return false
		}
		last = job
		return pred(job)
	}, 5*time.Second, 5*time.Millisecond)
	return last
}

func TestSubmitValidatesPayload(t *testing.T) {
	s := newTestService(t, testConfig(), &fakeAnalyzer{})

	_, _, err := s.Submit(context.Background(), &core.PRData{PRNumber: 5})
	require.ErrorIs(t, err, core.ErrInvalidPayload)
}

func TestSubmitDeduplicatesInFlightPR(t *testing.T) {
	release := make(chan struct{})
	analyzer := &fakeAnalyzer{fn: func(ctx context.Context, _ *core.PRData) (*core.ReviewResult, error) {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return &core.ReviewResult{Status: core.ReviewStatusApproved, Summary: "ok"}, nil
	}}
	s := newTestService(t, testConfig(), analyzer)

	first, created, err := s.Submit(context.Background(), testPR(42))
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := s.Submit(context.Background(), testPR(42))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	close(release)
	done := waitForJob(t, s, first.ID, (*core.Job).Terminal)
	assert.Equal(t, core.JobStatusCompleted, done.Status)

	// With the previous job terminal, the same PR may be analyzed again.
	third, created, err := s.Submit(context.Background(), testPR(42))
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, first.ID, third.ID)
}

func TestConcurrencyCeiling(t *testing.T) {
	release := make(chan struct{})
	analyzer := &fakeAnalyzer{fn: func(ctx context.Context, _ *core.PRData) (*core.ReviewResult, error) {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return &core.ReviewResult{Status: core.ReviewStatusApproved, Summary: "ok"}, nil
	}}
	cfg := testConfig()
	cfg.JobTimeout = 10 * time.Second
	s := newTestService(t, cfg, analyzer)

	ids := make([]string, 0, 5)
	for i := 1; i <= 5; i++ {
		job, created, err := s.Submit(context.Background(), testPR(i))
		require.NoError(t, err)
		require.True(t, created)
		ids = append(ids, job.ID)
	}

	// The scheduler fills exactly MaxConcurrentJobs slots and holds there.
	require.Eventually(t, func() bool {
		return s.Stats().Processing == 3
	}, 5*time.Second, 5*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	stats := s.Stats()
	assert.Equal(t, 3, stats.Processing)
	assert.Equal(t, 2, stats.Pending)
	assert.Equal(t, 3, s.ActiveCount())

	close(release)
	for _, id := range ids {
		job := waitForJob(t, s, id, (*core.Job).Terminal)
		assert.Equal(t, core.JobStatusCompleted, job.Status)
	}
	assert.Equal(t, 5, s.Stats().Completed)
}

func TestTransientFailureRetriesUntilBudgetExhausted(t *testing.T) {
	analyzer := &fakeAnalyzer{fn: func(_ context.Context, _ *core.PRData) (*core.ReviewResult, error) {
		return nil, errors.New("connection refused")
	}}
	s := newTestService(t, testConfig(), analyzer)

	job, _, err := s.Submit(context.Background(), testPR(42))
	require.NoError(t, err)

	failed := waitForJob(t, s, job.ID, (*core.Job).Terminal)
	assert.Equal(t, core.JobStatusFailed, failed.Status)
	assert.Equal(t, 2, failed.RetryCount)
	assert.Equal(t, "connection refused", failed.Error)
	// Initial attempt plus two retries.
	assert.Equal(t, int32(3), analyzer.calls.Load())
}

func TestRetryAnnotationFormat(t *testing.T) {
	var failOnce atomic.Bool
	release := make(chan struct{})
	analyzer := &fakeAnalyzer{fn: func(ctx context.Context, _ *core.PRData) (*core.ReviewResult, error) {
		if failOnce.CompareAndSwap(false, true) {
			return nil, errors.New("connection refused")
		}
		select {
		case <-release:
		case <-ctx.Done():
		}
		return &core.ReviewResult{Status: core.ReviewStatusApproved, Summary: "ok"}, nil
	}}
	cfg := testConfig()
	cfg.RetryDelay = 200 * time.Millisecond
	s := newTestService(t, cfg, analyzer)

	job, _, err := s.Submit(context.Background(), testPR(42))
	require.NoError(t, err)

	// After the first failure the job is re-queued with the retry annotation
	// and a not-before gate in the future.
	requeued := waitForJob(t, s, job.ID, func(j *core.Job) bool {
		return j.Status == core.JobStatusPending && j.RetryCount == 1
	})
	assert.Equal(t, "Retry 1/2: connection refused", requeued.Error)
	assert.Nil(t, requeued.StartedAt)
	assert.False(t, requeued.NotBefore.IsZero())

	close(release)
	done := waitForJob(t, s, job.ID, (*core.Job).Terminal)
	assert.Equal(t, core.JobStatusCompleted, done.Status)
	assert.Empty(t, done.Error)
	// The retry respected its delay gate.
	require.NotNil(t, done.CompletedAt)
	assert.True(t, done.CompletedAt.After(requeued.NotBefore))
}

func TestPermanentFailureSkipsRetries(t *testing.T) {
	analyzer := &fakeAnalyzer{fn: func(_ context.Context, _ *core.PRData) (*core.ReviewResult, error) {
		return nil, errors.New("PR not found: acme/widgets#42")
	}}
	s := newTestService(t, testConfig(), analyzer)

	job, _, err := s.Submit(context.Background(), testPR(42))
	require.NoError(t, err)

	failed := waitForJob(t, s, job.ID, (*core.Job).Terminal)
	assert.Equal(t, core.JobStatusFailed, failed.Status)
	assert.Equal(t, 0, failed.RetryCount)
	assert.Equal(t, "PR not found: acme/widgets#42", failed.Error)
	assert.Equal(t, int32(1), analyzer.calls.Load())
}

func TestAnalyzerPanicIsContained(t *testing.T) {
	analyzer := &fakeAnalyzer{fn: func(_ context.Context, _ *core.PRData) (*core.ReviewResult, error) {
		panic("nil map write")
	}}
	s := newTestService(t, testConfig(), analyzer)

	job, _, err := s.Submit(context.Background(), testPR(42))
	require.NoError(t, err)

	failed := waitForJob(t, s, job.ID, (*core.Job).Terminal)
	assert.Equal(t, core.JobStatusFailed, failed.Status)
	assert.Contains(t, failed.Error, "analyzer panic")
	// Panics are treated as transient, so the full budget is spent.
	assert.Equal(t, 2, failed.RetryCount)
}

func TestJobTimeoutCancelsAttempt(t *testing.T) {
	ctxSeen := make(chan error, 8)
	analyzer := &fakeAnalyzer{fn: func(ctx context.Context, _ *core.PRData) (*core.ReviewResult, error) {
		<-ctx.Done()
		ctxSeen <- ctx.Err()
		return nil, ctx.Err()
	}}
	cfg := testConfig()
	cfg.JobTimeout = 50 * time.Millisecond
	cfg.MaxRetries = 0
	s := newTestService(t, cfg, analyzer)

	job, _, err := s.Submit(context.Background(), testPR(42))
	require.NoError(t, err)

	failed := waitForJob(t, s, job.ID, (*core.Job).Terminal)
	assert.Equal(t, core.JobStatusFailed, failed.Status)
	assert.Equal(t, "analysis timeout after 50ms", failed.Error)
	assert.ErrorIs(t, <-ctxSeen, context.DeadlineExceeded)
}

func TestCancelJob(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	analyzer := &fakeAnalyzer{fn: func(ctx context.Context, _ *core.PRData) (*core.ReviewResult, error) {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return &core.ReviewResult{Status: core.ReviewStatusApproved, Summary: "ok"}, nil
	}}
	cfg := testConfig()
	cfg.MaxConcurrentJobs = 1
	s := newTestService(t, cfg, analyzer)

	first, _, err := s.Submit(context.Background(), testPR(1))
	require.NoError(t, err)
	second, _, err := s.Submit(context.Background(), testPR(2))
	require.NoError(t, err)

	// Wait until the single slot is taken by the first job.
	waitForJob(t, s, first.ID, func(j *core.Job) bool {
		return j.Status == core.JobStatusProcessing
	})

	// The still-pending second job can be cancelled.
	require.NoError(t, s.CancelJob(second.ID))
	cancelled, err := s.GetJob(second.ID)
	require.NoError(t, err)
	assert.Equal(t, core.JobStatusFailed, cancelled.Status)
	assert.Equal(t, "Job cancelled", cancelled.Error)
	require.NotNil(t, cancelled.CompletedAt)

	// The processing job cannot.
	err = s.CancelJob(first.ID)
	require.ErrorIs(t, err, core.ErrJobNotCancellable)

	// Neither can a terminal one.
	err = s.CancelJob(second.ID)
	require.ErrorIs(t, err, core.ErrJobNotCancellable)

	// Unknown ids are reported distinctly.
	err = s.CancelJob("no-such-job")
	require.ErrorIs(t, err, core.ErrJobNotFound)
}

func TestLifecycleEvents(t *testing.T) {
	s := newTestService(t, testConfig(), &fakeAnalyzer{})

	events, unsub := s.Subscribe()
	defer unsub()

	job, _, err := s.Submit(context.Background(), testPR(42))
	require.NoError(t, err)
	waitForJob(t, s, job.ID, (*core.Job).Terminal)

	seen := make([]EventType, 0, 3)
	deadline := time.After(2 * time.Second)
	for len(seen) < 3 {
		select {
		case e := <-events:
			require.Equal(t, job.ID, e.Job.ID)
			seen = append(seen, e.Type)
		case <-deadline:
			t.Fatalf("timed out waiting for events, saw %v", seen)
		}
	}
	assert.Equal(t, []EventType{EventJobAdded, EventJobStarted, EventJobCompleted}, seen)
}

func TestStopDrainsAndRejectsNewWork(t *testing.T) {
	release := make(chan struct{})
	analyzer := &fakeAnalyzer{fn: func(ctx context.Context, _ *core.PRData) (*core.ReviewResult, error) {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return &core.ReviewResult{Status: core.ReviewStatusApproved, Summary: "ok"}, nil
	}}
	s := NewService(testConfig(), analyzer, nil, discardLogger())

	job, _, err := s.Submit(context.Background(), testPR(42))
	require.NoError(t, err)
	waitForJob(t, s, job.ID, func(j *core.Job) bool {
		return j.Status == core.JobStatusProcessing
	})

	go func() {
		time.Sleep(100 * time.Millisecond)
		close(release)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	assert.Equal(t, 0, s.ActiveCount())

	_, _, err = s.Submit(context.Background(), testPR(43))
	require.ErrorIs(t, err, ErrQueueStopped)
}

func TestStopDeadlineExceeded(t *testing.T) {
	started := make(chan struct{})
	block := make(chan struct{})
	defer close(block)
	analyzer := &fakeAnalyzer{fn: func(_ context.Context, _ *core.PRData) (*core.ReviewResult, error) {
		close(started)
		<-block // ignores cancellation on purpose
		return nil, errors.New("too late")
	}}
	cfg := testConfig()
	cfg.JobTimeout = time.Minute
	s := newTestService(t, cfg, analyzer)

	_, _, err := s.Submit(context.Background(), testPR(42))
	require.NoError(t, err)
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = s.Stop(ctx)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "still processing"))
}

func TestGetJobNotFound(t *testing.T) {
	s := newTestService(t, testConfig(), &fakeAnalyzer{})

	_, err := s.GetJob("missing")
	require.ErrorIs(t, err, core.ErrJobNotFound)
}
